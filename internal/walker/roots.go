package walker

import (
	"fmt"
	"time"

	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/registry"
	"github.com/dbsmedya/hotload/internal/report"
	"github.com/dbsmedya/hotload/internal/typemap"
	"github.com/dbsmedya/hotload/internal/upgrade"
)

// root is a static field seeding the traversal.
type root struct {
	field *meta.Field
	owner *meta.Type
	label string
}

// discoverRoots lists the static fields of watched assemblies, in watch
// registration order then type definition order.
func (w *Walker) discoverRoots() []root {
	var roots []root
	seen := make(map[*meta.Field]bool)

	for _, watch := range w.watches {
		asm, err := w.resolveWatched(watch)
		if err != nil {
			w.Report(report.Warning, "", watch.Assembly, err.Error())
			continue
		}

		for _, t := range asm.Types() {
			if !watch.Matches(t) || w.optedOut(t.Attributes) {
				continue
			}
			for _, f := range t.StaticFields() {
				if seen[f] || w.optedOut(f.Attributes) {
					continue
				}
				seen[f] = true

				if isOpenGeneric(t) {
					// Statics of open generic types live per instantiation,
					// and instantiations cannot be enumerated.
					if w.opts.WarnGenericStatics {
						w.Report(report.Warning, t.QualifiedName(), report.Member(t.QualifiedName(), f.Name),
							fmt.Sprintf("static field %s of generic type is not migrated; mark it %s to silence this warning",
								f.Name, w.opts.SkipAttribute))
					}
					continue
				}

				roots = append(roots, root{
					field: f,
					owner: t,
					label: report.Member(t.QualifiedName(), f.Name),
				})
			}
		}
	}

	w.logger.Debugw("Roots discovered", "count", len(roots), "watches", len(w.watches))
	return roots
}

func (w *Walker) resolveWatched(watch registry.WatchedRoot) (*meta.Assembly, error) {
	if w.old == nil {
		return nil, fmt.Errorf("no image to resolve watched assembly %q", watch.Assembly)
	}
	asm, err := registry.Resolve(w.old, watch.Assembly)
	if err != nil {
		return nil, fmt.Errorf("watched assembly: %w", err)
	}
	return asm, nil
}

// optedOut reports whether attrs carry the skip or reset attribute.
func (w *Walker) optedOut(attrs []meta.Attribute) bool {
	for _, a := range attrs {
		if (w.opts.SkipAttribute != "" && a.Type == w.opts.SkipAttribute) ||
			(w.opts.ResetAttribute != "" && a.Type == w.opts.ResetAttribute) {
			return true
		}
	}
	return false
}

func isOpenGeneric(t *meta.Type) bool {
	for ; t != nil; t = t.DeclaringType {
		if t.IsGenericDefinition() {
			return true
		}
	}
	return false
}

// processRoot migrates one static field and everything reachable from it
// before the next root is started.
func (w *Walker) processRoot(r root) {
	w.root = r.label
	log := w.logger.WithRoot(r.label)
	value := w.statics.Get(r.field)

	owner := w.mapper.Map(r.owner)
	if owner.Outcome == typemap.Unchanged {
		if replacement := w.claim(value, r.label); replacement != value {
			w.statics.Set(r.field, replacement)
		}
		w.drain()
		log.Debug("Root traversed")
		return
	}

	// The root itself moves or is dropped, whatever it holds.
	w.collector.MarkReached()
	if owner.Outcome == typemap.Removed {
		if !heap.IsDefault(r.field.Type, value) {
			w.Report(report.Warning, r.owner.QualifiedName(), r.label,
				"declaring type removed ("+owner.Reason+"); static value dropped")
		}
		return
	}

	if ft := w.mapper.Map(r.field.Type); ft.Outcome == typemap.Removed {
		w.Report(report.Error, r.owner.QualifiedName(), r.label,
			fmt.Sprintf("declared type %s of root cannot be resolved: %s", r.field.Type.FullName(), ft.Reason))
		return
	}

	nf := owner.Type.StaticField(r.field.Name)
	if nf == nil {
		if heap.IsDefault(r.field.Type, value) {
			w.Report(report.Info, owner.Type.QualifiedName(), r.label, "static field removed")
		} else {
			w.Report(report.Warning, owner.Type.QualifiedName(), r.label, "static field removed; value dropped")
		}
		return
	}

	w.apply(upgrade.Slot{
		Old:   r.field,
		New:   nf,
		Value: value,
		Path:  r.label,
		Set:   func(v heap.Value) { w.statics.Set(nf, v) },
	})
	w.drain()
	log.Debug("Root traversed")
}

// apply resolves and runs the upgrader for one member pair.
func (w *Walker) apply(s upgrade.Slot) upgrade.Outcome {
	u := w.upgraders.Resolve(s.Old, s.New)
	start := time.Now()
	outcome := u.Apply(w, s)
	w.collector.Processor(u.Name(), w.root, time.Since(start))
	return outcome
}
