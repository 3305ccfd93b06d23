package walker

import (
	"time"

	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/report"
	"github.com/dbsmedya/hotload/internal/typemap"
)

// claim returns the replacement of old. Reference instances are decided
// and recorded on first sight; their members are migrated when the queue
// reaches them. Value types have no identity and are migrated inline.
func (w *Walker) claim(old heap.Value, path string) heap.Value {
	switch v := old.(type) {
	case *heap.Object:
		if v.Type.IsValueType() {
			return w.claimValue(v, path)
		}
		if r, ok := w.visited.Get(v); ok {
			return r
		}
		return w.claimObject(v, path)
	case *heap.Array:
		if r, ok := w.visited.Get(v); ok {
			return r
		}
		return w.claimArray(v, path)
	case *heap.Delegate:
		if r, ok := w.visited.Get(v); ok {
			return r
		}
		r := w.delegates.Upgrade(v, path)
		w.visited.Put(v, r)
		if r != heap.Value(v) || w.mapper.IsSwapped(v.Type) {
			w.collector.MarkReached()
		}
		return r
	}
	// nil, primitives, strings and dead sentinels carry over as they are.
	return old
}

func (w *Walker) claimObject(v *heap.Object, path string) heap.Value {
	oldType := v.Type
	if w.mapper.IsSwapped(oldType) {
		w.collector.MarkReached()
	}

	tr := w.mapper.Map(oldType)
	switch {
	case tr.Outcome == typemap.Removed:
		return w.dead(v, oldType, path, tr.Reason)
	case tr.Outcome == typemap.Unchanged:
		w.visited.Put(v, v)
		w.enqueue(v, oldType, v, path)
		return v
	}
	w.warnAmbiguous(oldType, tr, path)

	if w.layout.AreLayoutEquivalent(oldType, tr.Type) {
		v.Type = tr.Type
		w.visited.Put(v, v)
		w.enqueue(v, oldType, v, path)
		w.notify = append(w.notify, notification{obj: v, path: path})
		return v
	}

	n := w.singleton(v.Identity, tr.Type)
	if n == nil {
		n = heap.New(tr.Type)
		n.Identity = v.Identity
	}
	w.visited.Put(v, n)
	w.enqueue(v, oldType, n, path)
	w.notify = append(w.notify, notification{obj: n, path: path})
	return n
}

// claimValue migrates a struct inline.
func (w *Walker) claimValue(v *heap.Object, path string) heap.Value {
	start := time.Now()
	oldType := v.Type
	if w.mapper.IsSwapped(oldType) {
		w.collector.MarkReached()
	}

	tr := w.mapper.Map(oldType)
	var n *heap.Object
	switch {
	case tr.Outcome == typemap.Removed:
		w.warnRemoved(oldType, path, tr.Reason)
		return &heap.Dead{Type: oldType}
	case tr.Outcome == typemap.Unchanged:
		n = v
	case w.layout.AreLayoutEquivalent(oldType, tr.Type):
		w.warnAmbiguous(oldType, tr, path)
		v.Type = tr.Type
		n = v
	default:
		w.warnAmbiguous(oldType, tr, path)
		n = heap.New(tr.Type)
	}
	w.migrateMembers(v, oldType, n, path)
	w.collector.Instance(n.Type.QualifiedName(), w.root, time.Since(start))
	return n
}

func (w *Walker) claimArray(a *heap.Array, path string) heap.Value {
	oldType := a.Type()
	if w.mapper.IsSwapped(a.Elem) {
		w.collector.MarkReached()
	}

	tr := w.mapper.Map(a.Elem)
	switch tr.Outcome {
	case typemap.Removed:
		return w.dead(a, oldType, path, tr.Reason)
	case typemap.Unchanged:
		w.visited.Put(a, a)
		w.enqueue(a, oldType, a, path)
		return a
	}

	n := &heap.Array{
		Elem:    tr.Type,
		Lengths: append([]int(nil), a.Lengths...),
		Items:   make([]heap.Value, len(a.Items)),
	}
	w.visited.Put(a, n)
	w.enqueue(a, oldType, n, path)
	return n
}

func (w *Walker) enqueue(old heap.Value, oldType *meta.Type, replacement heap.Value, path string) {
	w.queue.Enqueue(workItem{
		old:         old,
		oldType:     oldType,
		replacement: replacement,
		path:        path,
		root:        w.root,
	})
}

// dead records a sentinel for an instance whose type is gone. Nothing
// reachable only through it is migrated.
func (w *Walker) dead(old heap.Value, t *meta.Type, path, reason string) heap.Value {
	d := &heap.Dead{Type: t}
	w.visited.Put(old, d)
	w.warnRemoved(t, path, reason)
	return d
}

// warnRemoved reports a removed type once per pass.
func (w *Walker) warnRemoved(t *meta.Type, path, reason string) {
	key := "removed|" + t.QualifiedName()
	if w.warnedTypes[key] {
		return
	}
	w.warnedTypes[key] = true
	w.Report(report.Warning, t.QualifiedName(), path, "type removed ("+reason+"); instances replaced by dead sentinels")
}

// warnAmbiguous reports a synthesized type that matched several candidates
// or scope overloads, once per pass.
func (w *Walker) warnAmbiguous(t *meta.Type, tr typemap.Result, path string) {
	if !tr.Ambiguous() {
		return
	}
	key := "ambiguous|" + t.QualifiedName()
	if w.warnedTypes[key] {
		return
	}
	w.warnedTypes[key] = true
	w.Report(report.Warning, t.QualifiedName(), path, tr.Ambiguity(t))
}

// singleton returns the registered new-side instance with the given
// identity when it has the expected type.
func (w *Walker) singleton(identity string, t *meta.Type) *heap.Object {
	if identity == "" || w.singletons == nil {
		return nil
	}
	if s, ok := w.singletons[identity]; ok && s.Type == t {
		return s
	}
	return nil
}
