package walker

import (
	"sync"

	"github.com/dbsmedya/hotload/internal/heap"
)

// VisitedSet maps every old instance claimed during a pass to its
// replacement. The replacement is the instance itself when it was migrated
// in place. It is safe for concurrent use.
type VisitedSet struct {
	mu sync.RWMutex
	m  map[heap.Value]heap.Value
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{m: make(map[heap.Value]heap.Value)}
}

// Get returns the replacement recorded for old.
func (s *VisitedSet) Get(old heap.Value) (heap.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.m[old]
	return r, ok
}

// Put records the replacement of old. It returns false, leaving the set
// untouched, when old was already recorded.
func (s *VisitedSet) Put(old, replacement heap.Value) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[old]; ok {
		return false
	}
	s.m[old] = replacement
	return true
}

// Len returns the number of recorded instances.
func (s *VisitedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
