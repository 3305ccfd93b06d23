package typemap

import (
	"github.com/dbsmedya/hotload/internal/meta"
)

// SameSignature reports whether newM has the signature oldM maps to: static
// flag, method generic arity, parameter types and return type.
func (m *Mapper) SameSignature(oldM, newM *meta.Method) bool {
	if oldM.Static != newM.Static ||
		len(oldM.GenericParams) != len(newM.GenericParams) ||
		!m.sameParams(oldM.Params, newM.Params) {
		return false
	}
	return m.sameSlot(oldM.Return, newM.Return)
}

func (m *Mapper) sameParams(oldParams, newParams []*meta.Type) bool {
	if len(oldParams) != len(newParams) {
		return false
	}
	for i := range oldParams {
		if !m.sameSlot(oldParams[i], newParams[i]) {
			return false
		}
	}
	return true
}

func (m *Mapper) sameSlot(oldT, newT *meta.Type) bool {
	switch {
	case oldT == nil || newT == nil:
		return oldT == newT
	case oldT.Kind == meta.KindGenericParam:
		return newT.Kind == meta.KindGenericParam &&
			newT.Position == oldT.Position &&
			(newT.OwnerMethod == nil) == (oldT.OwnerMethod == nil)
	}
	r := m.Map(oldT)
	return r.Outcome != Removed && r.Type == newT
}

// MatchMethod finds the method of newOwner that replaces oldM. Named methods
// match by name and signature. Lambdas and local functions have unstable
// names and match by declaring scope and signature instead, and only while
// the scope method itself survives with a matching signature. When several
// candidates qualify, the one with the same name wins, else the first in
// declaration order; every candidate is returned so callers can warn.
func (m *Mapper) MatchMethod(oldM *meta.Method, newOwner *meta.Type) (*meta.Method, []*meta.Method) {
	if newOwner == nil {
		return nil, nil
	}
	lambda := oldM.IsLambda() || (oldM.DeclaringType != nil && oldM.DeclaringType.Synthesized != meta.NotSynthesized)
	if lambda && oldM.Scope != "" && declaresScope(oldM.DeclaringType, oldM.Scope) {
		if _, ok := m.scopeMethods(newOwner, oldM.Scope, oldM.ScopeParams); !ok {
			return nil, nil
		}
	}

	var candidates []*meta.Method
	for _, nm := range newOwner.Methods {
		if lambda {
			if nm.Scope != oldM.Scope || !m.sameScopeParams(oldM.ScopeParams, nm.ScopeParams) {
				continue
			}
		} else if nm.Name != oldM.Name {
			continue
		}
		if m.SameSignature(oldM, nm) {
			candidates = append(candidates, nm)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	for _, c := range candidates {
		if c.Name == oldM.Name {
			return c, candidates
		}
	}
	return candidates[0], candidates
}
