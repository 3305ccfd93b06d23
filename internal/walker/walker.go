// Package walker performs one hotload pass over the live heap: it discovers
// static roots of watched assemblies, claims every reachable instance once,
// and migrates members through the upgrader registry and delegates through
// the delegate upgrader.
package walker

import (
	"fmt"
	"time"

	"github.com/dbsmedya/hotload/internal/delegates"
	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/logger"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/registry"
	"github.com/dbsmedya/hotload/internal/report"
	"github.com/dbsmedya/hotload/internal/typemap"
	"github.com/dbsmedya/hotload/internal/upgrade"
)

// State is the phase a pass is in.
type State int

const (
	RootDiscovery State = iota
	Traversing
	Finalizing
	Done
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case RootDiscovery:
		return "root-discovery"
	case Traversing:
		return "traversing"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Options are the attribute names that steer a pass.
type Options struct {
	SkipAttribute      string
	ResetAttribute     string
	CallbackAttribute  string
	WarnGenericStatics bool
}

// DefaultOptions returns the default attribute names.
func DefaultOptions() Options {
	return Options{
		SkipAttribute:      "SkipHotload",
		ResetAttribute:     "ResetOnHotload",
		CallbackAttribute:  "OnHotloaded",
		WarnGenericStatics: true,
	}
}

// Config wires a walker to the state of one pass.
type Config struct {
	Mapper     *typemap.Mapper
	Layout     *typemap.Comparator
	Upgraders  *upgrade.Registry
	Old        meta.Facade // resolves watched assembly names
	Watches    []registry.WatchedRoot
	Statics    *heap.Statics
	Singletons map[string]*heap.Object // new-side instances by logical identity
	Options    Options
	Logger     *logger.Logger
}

type forward struct {
	old heap.Value
	set func(heap.Value)
}

type notification struct {
	obj  *heap.Object
	path string
}

// Walker runs a single pass. It is not reusable and not safe for concurrent
// use; upgraders call back into it through upgrade.Context.
type Walker struct {
	mapper     *typemap.Mapper
	layout     *typemap.Comparator
	upgraders  *upgrade.Registry
	old        meta.Facade
	watches    []registry.WatchedRoot
	statics    *heap.Statics
	singletons map[string]*heap.Object
	opts       Options
	logger     *logger.Logger

	collector *report.Collector
	delegates *delegates.Upgrader
	state     State
	visited   *VisitedSet
	queue     *workQueue
	root      string

	forwards    []forward
	deferred    []func()
	notify      []notification
	warnedTypes map[string]bool
}

// New creates a walker for one pass.
func New(cfg Config) (*Walker, error) {
	if cfg.Mapper == nil {
		return nil, fmt.Errorf("walker requires a type mapper")
	}
	if cfg.Upgraders == nil {
		return nil, fmt.Errorf("walker requires an upgrader registry")
	}
	if cfg.Statics == nil {
		return nil, fmt.Errorf("walker requires a static field store")
	}
	if cfg.Layout == nil {
		cfg.Layout = typemap.NewComparator(cfg.Mapper)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	w := &Walker{
		mapper:      cfg.Mapper,
		layout:      cfg.Layout,
		upgraders:   cfg.Upgraders,
		old:         cfg.Old,
		watches:     cfg.Watches,
		statics:     cfg.Statics,
		singletons:  cfg.Singletons,
		opts:        cfg.Options,
		logger:      cfg.Logger,
		visited:     NewVisitedSet(),
		queue:       newWorkQueue(),
		warnedTypes: make(map[string]bool),
	}
	w.delegates = delegates.New(w)
	return w, nil
}

// State returns the phase the walker is in.
func (w *Walker) State() State {
	return w.state
}

// Visited returns the instances claimed so far.
func (w *Walker) Visited() *VisitedSet {
	return w.visited
}

// Run executes the pass, recording diagnostics and timings into c.
func (w *Walker) Run(c *report.Collector) {
	w.collector = c

	w.transition(RootDiscovery)
	roots := w.discoverRoots()

	w.transition(Traversing)
	for _, r := range roots {
		w.processRoot(r)
	}

	w.transition(Finalizing)
	w.finalize()

	w.transition(Done)
	w.logger.Debugw("Walk completed",
		"roots", len(roots),
		"visited", w.visited.Len())
}

func (w *Walker) transition(s State) {
	w.logger.Debugw("Walker state changed", "from", w.state.String(), "to", s.String())
	w.state = s
}

// drain migrates every pending instance.
func (w *Walker) drain() {
	for !w.queue.IsEmpty() {
		item, _ := w.queue.Dequeue()
		start := time.Now()
		switch old := item.old.(type) {
		case *heap.Object:
			w.migrateMembers(old, item.oldType, item.replacement.(*heap.Object), item.path)
			w.collector.Instance(item.replacement.(*heap.Object).Type.QualifiedName(), item.root, time.Since(start))
		case *heap.Array:
			repl := item.replacement.(*heap.Array)
			w.migrateElements(old, repl, item.path)
			w.collector.Instance(repl.Type().QualifiedName(), item.root, time.Since(start))
		}
	}
}

// Claim implements upgrade.Context and delegates.Context.
func (w *Walker) Claim(old heap.Value, path string) heap.Value {
	return w.claim(old, path)
}

// Forward implements upgrade.Context.
func (w *Walker) Forward(old heap.Value, set func(heap.Value)) {
	w.forwards = append(w.forwards, forward{old: old, set: set})
}

// Map implements upgrade.Context and delegates.Context.
func (w *Walker) Map(t *meta.Type) typemap.Result {
	return w.mapper.Map(t)
}

// Compatible implements upgrade.Context. A value declared as oldDecl fits a
// slot declared as newDecl when its mapped type is newDecl or assignable to
// it.
func (w *Walker) Compatible(oldDecl, newDecl *meta.Type) bool {
	if oldDecl == nil || newDecl == nil {
		return false
	}
	t := w.mapper.Target(oldDecl)
	if t == nil {
		return false
	}
	return t == newDecl || t.AssignableTo(newDecl)
}

// SameSignature implements upgrade.Context.
func (w *Walker) SameSignature(oldM, newM *meta.Method) bool {
	return w.mapper.SameSignature(oldM, newM)
}

// MatchMethod implements delegates.Context.
func (w *Walker) MatchMethod(old *meta.Method, newOwner *meta.Type) (*meta.Method, []*meta.Method) {
	return w.mapper.MatchMethod(old, newOwner)
}

// Report implements upgrade.Context and delegates.Context.
func (w *Walker) Report(kind report.Kind, typ, path, message string) {
	w.collector.Add(kind, typ, path, message)
	switch kind {
	case report.Error:
		w.logger.Errorw(message, "type", typ, "path", path)
	case report.Warning:
		w.logger.Warnw(message, "type", typ, "path", path)
	default:
		w.logger.Debugw(message, "type", typ, "path", path)
	}
}

// Defer implements upgrade.Context.
func (w *Walker) Defer(fn func()) {
	w.deferred = append(w.deferred, fn)
}
