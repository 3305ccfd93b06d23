// Package delegates migrates delegate instances: each invocation-list entry
// is rebound to the migrated target and the matching new method, or
// replaced by a stub that fails with heap.ErrUnimplementedAfterReload.
package delegates

import (
	"fmt"

	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/report"
	"github.com/dbsmedya/hotload/internal/typemap"
)

// Context is what the delegate upgrader needs from the running pass.
type Context interface {
	Claim(old heap.Value, path string) heap.Value
	Map(t *meta.Type) typemap.Result
	MatchMethod(old *meta.Method, newOwner *meta.Type) (*meta.Method, []*meta.Method)
	Report(kind report.Kind, typ, path, message string)
}

// Upgrader migrates delegates for one pass. Warnings about a declaration are
// recorded once per pass no matter how many delegates reference it. It is
// not safe for concurrent use.
type Upgrader struct {
	ctx    Context
	warned map[string]bool
}

// New creates a delegate upgrader for one pass.
func New(ctx Context) *Upgrader {
	return &Upgrader{ctx: ctx, warned: make(map[string]bool)}
}

// Upgrade returns the replacement of d. The same delegate is returned when
// neither its type nor any entry changed; otherwise a new delegate with the
// same number of entries in the same order.
func (u *Upgrader) Upgrade(d *heap.Delegate, path string) heap.Value {
	tr := u.ctx.Map(d.Type)
	if tr.Outcome == typemap.Removed {
		u.warnOnce("type|"+d.Type.QualifiedName(), d.Type.QualifiedName(), path,
			"delegate type removed: "+tr.Reason)
		return &heap.Dead{Type: d.Type}
	}

	changed := tr.Outcome == typemap.Mapped
	entries := make([]heap.Binding, len(d.Entries))
	for i, e := range d.Entries {
		p := path
		if d.IsMulticast() {
			p = report.InvocationEntry(path, i)
		}
		entries[i] = u.entry(e, p)
		if !sameBinding(e, entries[i]) {
			changed = true
		}
	}
	if !changed {
		return d
	}
	return heap.NewDelegate(tr.Type, entries...)
}

func (u *Upgrader) entry(e heap.Binding, path string) heap.Binding {
	switch e.Kind {
	case heap.BindStub:
		return e
	case heap.BindGraph:
		return u.graph(e, path)
	}
	return u.compiled(e, path)
}

// graph migrates the backing graph object like any instance and rewraps it.
func (u *Upgrader) graph(e heap.Binding, path string) heap.Binding {
	switch g := u.ctx.Claim(e.Target, path).(type) {
	case *heap.Object:
		if g == e.Target {
			return e
		}
		return heap.BindGraphObject(g)
	case *heap.Dead:
		return heap.Stub(nil, "graph type "+g.Type.FullName()+" removed")
	}
	return heap.Stub(nil, "graph binding lost its graph object")
}

func (u *Upgrader) compiled(e heap.Binding, path string) heap.Binding {
	m := e.Method
	if m == nil {
		return e
	}
	owner := m.DeclaringType
	om := u.ctx.Map(owner)

	// The most derived target type is gone while the declaration survives:
	// virtual dispatch can no longer reach the original override.
	if obj, ok := e.Target.(*heap.Object); ok && obj.Type != owner && om.Outcome != typemap.Removed {
		if rt := u.ctx.Map(obj.Type); rt.Outcome == typemap.Removed {
			u.warnOnce("target|"+obj.Type.QualifiedName()+"|"+declKey(m), obj.Type.QualifiedName(), path,
				fmt.Sprintf("runtime target type of %s removed; delegate entry stubbed", m))
			return heap.Stub(m, "runtime target type "+obj.Type.FullName()+" removed")
		}
	}

	args, argsChanged, err := u.mapArgs(e.MethodArgs)
	if err != nil {
		u.warnOnce("args|"+declKey(m), owner.QualifiedName(), path,
			fmt.Sprintf("generic argument of %s removed: %v; delegate entry stubbed", m, err))
		return heap.Stub(m, err.Error())
	}

	switch om.Outcome {
	case typemap.Removed:
		u.warnOnce("method|"+declKey(m), owner.QualifiedName(), path,
			fmt.Sprintf("declaring type of %s removed; delegate entry stubbed", m))
		return heap.Stub(m, "declaring type removed")
	case typemap.Unchanged:
		target := u.ctx.Claim(e.Target, path)
		if dead, ok := target.(*heap.Dead); ok {
			return heap.Stub(m, "target type "+dead.Type.FullName()+" removed")
		}
		if target == e.Target && !argsChanged {
			return e
		}
		return heap.Bind(target, m, args...)
	}

	nm, candidates := u.ctx.MatchMethod(m, om.Type)
	if nm == nil {
		u.warnOnce("method|"+declKey(m), om.Type.QualifiedName(), path,
			fmt.Sprintf("no method matching %s in %s; delegate entry stubbed", m, om.Type.FullName()))
		return heap.Stub(m, "no matching method in "+om.Type.FullName())
	}
	if len(candidates) > 1 {
		u.warnOnce("ambiguous|"+declKey(m), om.Type.QualifiedName(), path,
			fmt.Sprintf("%d methods match %s; bound to %s", len(candidates), m, nm))
	}

	// A non-capturing lambda whose body did not change keeps its binding.
	if m.Static && m.IsLambda() && m.BodyHash != "" && m.BodyHash == nm.BodyHash && !argsChanged {
		return e
	}

	target := u.ctx.Claim(e.Target, path)
	if dead, ok := target.(*heap.Dead); ok {
		return heap.Stub(m, "target type "+dead.Type.FullName()+" removed")
	}
	return heap.Bind(target, nm, args...)
}

func (u *Upgrader) mapArgs(args []*meta.Type) ([]*meta.Type, bool, error) {
	if len(args) == 0 {
		return nil, false, nil
	}
	out := make([]*meta.Type, len(args))
	changed := false
	for i, a := range args {
		r := u.ctx.Map(a)
		if r.Outcome == typemap.Removed {
			return nil, false, fmt.Errorf("%s: %s", a.FullName(), r.Reason)
		}
		out[i] = r.Type
		changed = changed || r.Type != a
	}
	return out, changed, nil
}

func (u *Upgrader) warnOnce(key, typ, path, message string) {
	if u.warned[key] {
		return
	}
	u.warned[key] = true
	u.ctx.Report(report.Warning, typ, path, message)
}

func declKey(m *meta.Method) string {
	if m.DeclaringType == nil {
		return m.String()
	}
	return m.DeclaringType.QualifiedName() + "|" + m.String()
}

func sameBinding(a, b heap.Binding) bool {
	if a.Kind != b.Kind || a.Target != b.Target || a.Method != b.Method || a.Reason != b.Reason {
		return false
	}
	if len(a.MethodArgs) != len(b.MethodArgs) {
		return false
	}
	for i := range a.MethodArgs {
		if a.MethodArgs[i] != b.MethodArgs[i] {
			return false
		}
	}
	return true
}
