package walker

import (
	"fmt"

	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/report"
	"github.com/dbsmedya/hotload/internal/upgrade"
)

// migrateMembers fills n from the slots of old, laid out by oldType. n is
// old itself for in-place migrations.
func (w *Walker) migrateMembers(old *heap.Object, oldType *meta.Type, n *heap.Object, path string) {
	oldFields := oldType.InstanceFields()
	values := make([]heap.Value, len(oldFields))
	copy(values, old.Slots)

	// Same declarations: only the values held may have changed.
	if n == old && n.Type == oldType {
		for i, f := range oldFields {
			n.Slots[i] = w.claim(values[i], report.Member(path, f.Name))
		}
		return
	}

	matched := make([]bool, len(oldFields))
	for ni, nf := range n.Type.InstanceFields() {
		oi := matchField(oldFields, nf)
		if oi < 0 {
			continue
		}
		matched[oi] = true
		w.apply(upgrade.Slot{
			Old:   oldFields[oi],
			New:   nf,
			Value: values[oi],
			Path:  report.Member(path, nf.Name),
			Set:   func(v heap.Value) { n.Slots[ni] = v },
		})
	}

	for oi, of := range oldFields {
		if matched[oi] {
			continue
		}
		p := report.Member(path, of.Name)
		if heap.IsDefault(of.Type, values[oi]) {
			w.Report(report.Info, of.DeclaringType.QualifiedName(), p, "member removed")
		} else {
			w.Report(report.Warning, of.DeclaringType.QualifiedName(), p,
				fmt.Sprintf("member removed; %s value dropped", of.Type.FullName()))
		}
	}
}

// matchField finds the old field carrying the state of nf: same name,
// preferring the same declaring level, most derived first.
func matchField(fields []*meta.Field, nf *meta.Field) int {
	idx := -1
	for i := len(fields) - 1; i >= 0; i-- {
		f := fields[i]
		if f.Name != nf.Name {
			continue
		}
		if f.DeclaringType.Name == nf.DeclaringType.Name {
			return i
		}
		if idx < 0 {
			idx = i
		}
	}
	return idx
}

// migrateElements claims every element of old into n, preserving length
// and every dimension.
func (w *Walker) migrateElements(old, n *heap.Array, path string) {
	for i, x := range old.Items {
		n.Items[i] = w.claim(x, report.Index(path, old.IndexLabel(i)))
	}
}

// finalize resolves forward references, runs deferred actions and notifies
// migrated instances.
func (w *Walker) finalize() {
	resolved := 0
	for _, f := range w.forwards {
		if r, ok := w.visited.Get(f.old); ok {
			f.set(r)
			resolved++
		}
	}
	for _, fn := range w.deferred {
		fn()
	}
	w.callbacks()

	w.logger.Debugw("Pass finalized",
		"forwards", len(w.forwards),
		"forwards_resolved", resolved,
		"deferred", len(w.deferred),
		"notified", len(w.notify))
}

func (w *Walker) callbacks() {
	if w.opts.CallbackAttribute == "" {
		return
	}
	for _, n := range w.notify {
		m := callbackMethod(n.obj.Type, w.opts.CallbackAttribute)
		if m == nil {
			continue
		}
		if _, err := m.Body(n.obj, nil); err != nil {
			w.Report(report.Warning, n.obj.Type.QualifiedName(), n.path,
				fmt.Sprintf("%s failed after reload: %v", m, err))
		}
	}
}

// callbackMethod returns the most derived instance method of t tagged attr.
func callbackMethod(t *meta.Type, attr string) *meta.Method {
	for ; t != nil; t = t.Base {
		for _, m := range t.Definition().Methods {
			if !m.Static && m.Body != nil && m.HasAttribute(attr) {
				return m
			}
		}
	}
	return nil
}
