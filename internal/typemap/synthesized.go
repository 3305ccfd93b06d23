package typemap

import (
	"github.com/dbsmedya/hotload/internal/meta"
)

// matchSynthesized resolves a compiler-generated type by shape. Generated
// names are not stable between builds, so the candidate must be nested in
// the mapped owner, have the same synthesized kind and declaring scope, and
// capture the same multiset of (mapped) field types.
func (m *Mapper) matchSynthesized(t *meta.Type) Result {
	owner := m.Map(t.DeclaringType)
	if owner.Outcome == Removed {
		return removed("declaring type %s removed: %s", t.DeclaringType.FullName(), owner.Reason)
	}
	newOwner := owner.Type

	var overloads []*meta.Method
	if t.Scope != "" {
		var ok bool
		if overloads, ok = m.scopeMethods(newOwner, t.Scope, t.ScopeParams); !ok {
			return removed("scope method %s.%s no longer exists with a matching signature", newOwner.FullName(), t.Scope)
		}
	}

	want, ok := m.captureShape(t)
	if !ok {
		return removed("a captured variable type of %s was removed", t.FullName())
	}

	var candidates []*meta.Type
	for _, nt := range newOwner.NestedTypes {
		if nt.Synthesized != t.Synthesized || nt.Scope != t.Scope || nt.Arity() != t.Arity() {
			continue
		}
		if !m.sameScopeParams(t.ScopeParams, nt.ScopeParams) {
			continue
		}
		if sameShape(want, shapeOf(nt)) {
			candidates = append(candidates, nt)
		}
	}

	var r Result
	switch len(candidates) {
	case 0:
		return removed("no %s in %s for scope %q with matching captures", t.Synthesized, newOwner.FullName(), t.Scope)
	case 1:
		r = mapped(candidates[0])
	default:
		chosen := candidates[0]
		for _, c := range candidates {
			if c.Name == t.Name {
				chosen = c
				break
			}
		}
		r = Result{Type: chosen, Outcome: Mapped, Candidates: candidates}
	}
	if len(overloads) > 1 {
		r.Overloads = overloads
	}
	return r
}

// scopeMethods lists the methods of owner the scope of a synthesized type
// or lambda maps to: same name and, when known, parameter types that map to
// the old ones. A synthesized owner (a state machine holding a closure)
// declares the scope itself and yields no methods.
func (m *Mapper) scopeMethods(owner *meta.Type, scope string, params []*meta.Type) ([]*meta.Method, bool) {
	if owner.Synthesized != meta.NotSynthesized && owner.Scope == scope &&
		m.sameScopeParams(params, owner.ScopeParams) {
		return nil, true
	}
	holder := owner.ScopeHolder()
	if holder == nil {
		return nil, false
	}
	var out []*meta.Method
	for _, nm := range holder.MethodsNamed(scope) {
		if params == nil || m.sameParams(params, nm.Params) {
			out = append(out, nm)
		}
	}
	return out, len(out) > 0
}

// declaresScope reports whether the scope of a lambda declared in t is known
// to the model, either as a method of the scope holder or as the scope of a
// synthesized t.
func declaresScope(t *meta.Type, scope string) bool {
	if t == nil {
		return false
	}
	if t.Synthesized != meta.NotSynthesized && t.Scope == scope {
		return true
	}
	holder := t.ScopeHolder()
	return holder != nil && len(holder.MethodsNamed(scope)) > 0
}

// sameScopeParams compares recorded scope signatures. An unknown signature
// on either side matches by name alone.
func (m *Mapper) sameScopeParams(oldParams, newParams []*meta.Type) bool {
	if oldParams == nil || newParams == nil {
		return true
	}
	return m.sameParams(oldParams, newParams)
}

// captureShape lists the mapped declared types of the captured fields.
func (m *Mapper) captureShape(t *meta.Type) ([]*meta.Type, bool) {
	fields := t.DeclaredInstanceFields()
	out := make([]*meta.Type, 0, len(fields))
	for _, f := range fields {
		r := m.Map(f.Type)
		if r.Outcome == Removed {
			return nil, false
		}
		out = append(out, r.Type)
	}
	return out, true
}

func shapeOf(t *meta.Type) []*meta.Type {
	fields := t.DeclaredInstanceFields()
	out := make([]*meta.Type, len(fields))
	for i, f := range fields {
		out[i] = f.Type
	}
	return out
}

// sameShape compares two type multisets by descriptor identity.
func sameShape(a, b []*meta.Type) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[*meta.Type]int, len(a))
	for _, t := range a {
		counts[t]++
	}
	for _, t := range b {
		counts[t]--
		if counts[t] < 0 {
			return false
		}
	}
	return true
}
