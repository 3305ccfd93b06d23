// Package typemap resolves old type descriptors to their counterparts in the
// replacement assemblies and decides whether two descriptors share a layout.
package typemap

import (
	"fmt"
	"sync"

	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/registry"
)

// Outcome classifies a type mapping.
type Outcome int

const (
	// Unchanged means the type lives in an assembly that is not replaced.
	Unchanged Outcome = iota
	// Mapped means a matching type exists in the replacement assembly.
	Mapped
	// Removed means no matching type exists any more.
	Removed
)

// String returns a human-readable outcome.
func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Mapped:
		return "mapped"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Result is the mapping of one old type. Type is the old type itself for
// Unchanged, the new type for Mapped and nil for Removed. Candidates lists
// every equally good match when the choice was ambiguous; Overloads lists the
// same-named scope methods a synthesized type could belong to when its scope
// signature is unknown.
type Result struct {
	Type       *meta.Type
	Outcome    Outcome
	Reason     string
	Candidates []*meta.Type
	Overloads  []*meta.Method
}

// Ambiguous reports whether more than one candidate or scope overload matched.
func (r Result) Ambiguous() bool {
	return len(r.Candidates) > 1 || len(r.Overloads) > 1
}

// Ambiguity describes why the choice for t was ambiguous, or "" when it was not.
func (r Result) Ambiguity(t *meta.Type) string {
	switch {
	case len(r.Candidates) > 1:
		return fmt.Sprintf("several new types match %s; migrated to %s", t.FullName(), r.Type.FullName())
	case len(r.Overloads) > 1:
		return fmt.Sprintf("%d overloads of scope method %s match %s; migrated to %s",
			len(r.Overloads), t.Scope, t.FullName(), r.Type.FullName())
	}
	return ""
}

func unchanged(t *meta.Type) Result { return Result{Type: t, Outcome: Unchanged} }
func mapped(t *meta.Type) Result    { return Result{Type: t, Outcome: Mapped} }

func removed(format string, args ...any) Result {
	return Result{Outcome: Removed, Reason: fmt.Sprintf(format, args...)}
}

// Mapper maps old types to new types. Results are memoized for the lifetime
// of the mapper, which is one pass. It is safe for concurrent use.
type Mapper struct {
	swaps map[*meta.Assembly]*meta.Assembly

	mu   sync.RWMutex
	memo map[*meta.Type]Result
}

// NewMapper creates a mapper over the effective replacements of a pass.
func NewMapper(replacements []registry.Replacement) *Mapper {
	swaps := make(map[*meta.Assembly]*meta.Assembly, len(replacements))
	for _, r := range replacements {
		if !r.Identity() {
			swaps[r.Old] = r.New
		}
	}
	return &Mapper{swaps: swaps, memo: make(map[*meta.Type]Result)}
}

// IsSwapped reports whether t is owned by a replaced assembly.
func (m *Mapper) IsSwapped(t *meta.Type) bool {
	if t == nil {
		return false
	}
	switch {
	case t.Kind == meta.KindArray:
		return m.IsSwapped(t.Elem)
	case t.GenericDef != nil:
		if m.IsSwapped(t.GenericDef) {
			return true
		}
		for _, a := range t.GenericArgs {
			if m.IsSwapped(a) {
				return true
			}
		}
		return false
	}
	_, ok := m.swaps[t.OwningAssembly()]
	return ok
}

// Map resolves an old type.
func (m *Mapper) Map(t *meta.Type) Result {
	if t == nil {
		return unchanged(nil)
	}
	m.mu.RLock()
	r, ok := m.memo[t]
	m.mu.RUnlock()
	if ok {
		return r
	}
	r = m.resolve(t)
	m.store(t, r)
	return r
}

// Target returns the type an old type resolves to, or nil when removed.
func (m *Mapper) Target(t *meta.Type) *meta.Type {
	return m.Map(t).Type
}

func (m *Mapper) store(t *meta.Type, r Result) {
	m.mu.Lock()
	m.memo[t] = r
	m.mu.Unlock()
}

func (m *Mapper) resolve(t *meta.Type) Result {
	switch {
	case t.Kind == meta.KindGenericParam:
		return unchanged(t)
	case t.Kind == meta.KindArray:
		return m.resolveArray(t)
	case t.GenericDef != nil:
		return m.resolveClosed(t)
	}
	return m.resolveDefinition(t)
}

func (m *Mapper) resolveArray(t *meta.Type) Result {
	e := m.Map(t.Elem)
	switch e.Outcome {
	case Removed:
		return removed("element type %s removed: %s", t.Elem.FullName(), e.Reason)
	case Unchanged:
		return unchanged(t)
	}
	return mapped(meta.ArrayOf(e.Type, t.Rank))
}

// resolveClosed maps the definition and every argument; a single failure
// fails the whole instantiation.
func (m *Mapper) resolveClosed(t *meta.Type) Result {
	def := m.Map(t.GenericDef)
	if def.Outcome == Removed {
		return removed("generic definition %s removed: %s", t.GenericDef.FullName(), def.Reason)
	}
	changed := def.Outcome == Mapped
	args := make([]*meta.Type, len(t.GenericArgs))
	for i, a := range t.GenericArgs {
		ar := m.Map(a)
		if ar.Outcome == Removed {
			return removed("type argument %s of %s removed: %s", a.FullName(), t.FullName(), ar.Reason)
		}
		args[i] = ar.Type
		changed = changed || ar.Outcome == Mapped
	}
	if !changed {
		return unchanged(t)
	}
	closed, err := meta.Instantiate(def.Type, args...)
	if err != nil {
		return removed("cannot instantiate %s: %v", def.Type.FullName(), err)
	}
	return mapped(closed)
}

func (m *Mapper) resolveDefinition(t *meta.Type) Result {
	newAsm, ok := m.swaps[t.OwningAssembly()]
	if !ok {
		return unchanged(t)
	}

	var r Result
	switch {
	case t.Synthesized != meta.NotSynthesized && t.DeclaringType != nil:
		r = m.matchSynthesized(t)
	case t.DeclaringType != nil:
		outer := m.Map(t.DeclaringType)
		if outer.Outcome == Removed {
			return removed("declaring type %s removed: %s", t.DeclaringType.FullName(), outer.Reason)
		}
		r = byName(t, outer.Type.Nested(t.Name), newAsm)
	default:
		r = byName(t, newAsm.Type(t.FullName()), newAsm)
	}
	if r.Outcome == Removed {
		return r
	}

	// Publish the provisional result so recursive references through the
	// base chain (class Node : Base<Node>) terminate.
	m.store(t, r)
	if t.Base != nil {
		if b := m.Map(t.Base); b.Outcome == Removed {
			return removed("base type %s removed: %s", t.Base.FullName(), b.Reason)
		}
	}
	return r
}

func byName(t, candidate *meta.Type, newAsm *meta.Assembly) Result {
	switch {
	case candidate == nil:
		return removed("no type named %s in %s", t.FullName(), newAsm.Name)
	case candidate.Arity() != t.Arity():
		return removed("generic arity of %s changed from %d to %d", t.FullName(), t.Arity(), candidate.Arity())
	case t.IsValueType() != candidate.IsValueType():
		return removed("%s changed from %s to %s", t.FullName(), t.Kind, candidate.Kind)
	}
	return mapped(candidate)
}
