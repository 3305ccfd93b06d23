package hotload

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dbsmedya/hotload/internal/graph"
	"github.com/dbsmedya/hotload/internal/logger"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/registry"
	"github.com/dbsmedya/hotload/internal/typemap"
)

// precompute warms the mapper and comparator caches before traversal. Types
// of the replaced assemblies are resolved level by level (bases and
// declaring types first); the types of one level run in parallel.
type precompute struct {
	mapper  *typemap.Mapper
	layout  *typemap.Comparator
	workers int
	logger  *logger.Logger
}

func newPrecompute(mapper *typemap.Mapper, layout *typemap.Comparator, workers int, log *logger.Logger) *precompute {
	return &precompute{mapper: mapper, layout: layout, workers: workers, logger: log}
}

// run returns the number of types resolved. Precompute only fills caches,
// so a failure to order the types leaves resolution to the walker.
func (p *precompute) run(replacements []registry.Replacement) int {
	olds := make([]*meta.Assembly, 0, len(replacements))
	for _, r := range replacements {
		olds = append(olds, r.Old)
	}

	g, err := graph.BuildFromAssemblies(olds...)
	if err != nil {
		p.logger.Warnw("Skipping type precompute", "error", err)
		return 0
	}
	levels, err := g.Levels()
	if err != nil {
		p.logger.Warnw("Skipping type precompute", "error", err)
		return 0
	}

	var resolved atomic.Int64
	for i, level := range levels {
		var eg errgroup.Group
		eg.SetLimit(p.workers)
		for _, name := range level {
			node := g.GetNode(name)
			if node == nil || node.Type == nil {
				continue
			}
			t := node.Type
			eg.Go(func() error {
				p.resolve(t)
				resolved.Add(1)
				return nil
			})
		}
		_ = eg.Wait()
		p.logger.Debugw("Precompute level resolved", "level", i, "types", len(level))
	}

	return int(resolved.Load())
}

func (p *precompute) resolve(t *meta.Type) {
	r := p.mapper.Map(t)
	if r.Outcome != typemap.Mapped || t.IsGenericDefinition() {
		return
	}
	p.layout.AreLayoutEquivalent(t, r.Type)
}
