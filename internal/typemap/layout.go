package typemap

import (
	"sync"

	"github.com/dbsmedya/hotload/internal/meta"
)

type typePair struct {
	old, new *meta.Type
}

// Comparator decides whether an old instance can be reinterpreted under a
// new descriptor without copying. It is safe for concurrent use.
type Comparator struct {
	mapper *Mapper

	mu   sync.RWMutex
	memo map[typePair]bool
}

// NewComparator creates a comparator that resolves member types through m.
func NewComparator(m *Mapper) *Comparator {
	return &Comparator{mapper: m, memo: make(map[typePair]bool)}
}

// AreLayoutEquivalent reports whether oldT and newT agree on kind, explicit
// layout, attributes, generic arguments, base chain, per-level fields (name,
// offset, attributes, slot type), property backing fields and events.
func (c *Comparator) AreLayoutEquivalent(oldT, newT *meta.Type) bool {
	if oldT == newT {
		return true
	}
	if oldT == nil || newT == nil {
		return false
	}
	p := typePair{oldT, newT}
	if v, ok := c.cached(p); ok {
		return v
	}
	v := c.equivalent(oldT, newT, make(map[typePair]bool))
	c.mu.Lock()
	c.memo[p] = v
	c.mu.Unlock()
	return v
}

func (c *Comparator) cached(p typePair) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.memo[p]
	return v, ok
}

// equivalent is coinductive: a pair already under comparison is assumed
// equivalent, so recursive value types terminate. Only completed top-level
// answers are memoized.
func (c *Comparator) equivalent(o, n *meta.Type, seen map[typePair]bool) bool {
	if o == n {
		return true
	}
	if o == nil || n == nil {
		return false
	}
	p := typePair{o, n}
	if seen[p] {
		return true
	}
	if v, ok := c.cached(p); ok {
		return v
	}
	seen[p] = true

	if o.Kind != n.Kind || o.ExplicitLayout != n.ExplicitLayout {
		return false
	}
	if !meta.AttributesEqual(o.Definition().Attributes, n.Definition().Attributes) {
		return false
	}
	if o.Kind == meta.KindArray {
		return o.Rank == n.Rank && c.slot(o.Elem, n.Elem, seen)
	}
	if len(o.GenericArgs) != len(n.GenericArgs) {
		return false
	}
	for i := range o.GenericArgs {
		if c.mapper.Target(o.GenericArgs[i]) != n.GenericArgs[i] {
			return false
		}
	}

	switch {
	case o.Base == nil && n.Base == nil:
	case o.Base == nil || n.Base == nil:
		return false
	case c.mapper.Target(o.Base) != n.Base:
		return false
	case !c.equivalent(o.Base, n.Base, seen):
		return false
	}

	return c.fields(o, n, seen) && c.properties(o, n, seen) && c.events(o, n)
}

func (c *Comparator) fields(o, n *meta.Type, seen map[typePair]bool) bool {
	of, nf := o.DeclaredInstanceFields(), n.DeclaredInstanceFields()
	if len(of) != len(nf) {
		return false
	}
	for i := range of {
		a, b := of[i], nf[i]
		if a.Name != b.Name || a.Offset != b.Offset {
			return false
		}
		if !meta.AttributesEqual(a.Attributes, b.Attributes) {
			return false
		}
		if !c.slot(a.Type, b.Type, seen) {
			return false
		}
	}
	return true
}

func (c *Comparator) properties(o, n *meta.Type, seen map[typePair]bool) bool {
	if len(o.Properties) != len(n.Properties) {
		return false
	}
	for i := range o.Properties {
		a, b := o.Properties[i], n.Properties[i]
		if a.Name != b.Name || a.BackingField != b.BackingField {
			return false
		}
		if !c.slot(a.Type, b.Type, seen) {
			return false
		}
	}
	return true
}

func (c *Comparator) events(o, n *meta.Type) bool {
	if len(o.Events) != len(n.Events) {
		return false
	}
	for i := range o.Events {
		a, b := o.Events[i], n.Events[i]
		if a.Name != b.Name || c.mapper.Target(a.Type) != b.Type {
			return false
		}
	}
	return true
}

// slot compares declared slot types: references by mapped identity, value
// types by mapped identity and recursive layout equivalence.
func (c *Comparator) slot(o, n *meta.Type, seen map[typePair]bool) bool {
	switch {
	case o == nil || n == nil:
		return o == n
	case o.Kind == meta.KindGenericParam:
		return n.Kind == meta.KindGenericParam && o.Position == n.Position
	}
	if c.mapper.Target(o) != n {
		return false
	}
	if o.IsValueType() {
		return c.equivalent(o, n, seen)
	}
	return true
}
