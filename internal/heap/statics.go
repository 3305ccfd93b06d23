package heap

import (
	"sync"

	"github.com/dbsmedya/hotload/internal/meta"
)

// Statics stores the values of static fields, keyed by field descriptor.
// Old and new images have distinct descriptors, so both generations can
// coexist in one store.
type Statics struct {
	mu     sync.RWMutex
	values map[*meta.Field]Value
}

// NewStatics creates an empty store.
func NewStatics() *Statics {
	return &Statics{values: make(map[*meta.Field]Value)}
}

// Get returns the value of a static field, or its default when unset.
func (s *Statics) Get(f *meta.Field) Value {
	s.mu.RLock()
	v, ok := s.values[f]
	s.mu.RUnlock()
	if !ok {
		return Zero(f.Type)
	}
	return v
}

// Set stores the value of a static field.
func (s *Statics) Set(f *meta.Field, v Value) {
	s.mu.Lock()
	s.values[f] = v
	s.mu.Unlock()
}

// Lookup returns the value of the named static field declared on t.
func (s *Statics) Lookup(t *meta.Type, name string) (Value, bool) {
	f := t.StaticField(name)
	if f == nil {
		return nil, false
	}
	return s.Get(f), true
}

// Len returns the number of fields with a stored value.
func (s *Statics) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
