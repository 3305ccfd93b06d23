package upgrade

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dbsmedya/hotload/internal/meta"
)

// BuiltinPriority is the priority of the built-in upgraders. User upgraders
// registered with a priority of zero or more are consulted first.
const BuiltinPriority = -1000

type fieldPair struct {
	old, new *meta.Field
}

type entry struct {
	upgrader Upgrader
	seq      int
	builtin  bool
}

// Registry holds the upgraders of the process. Resolution is cached per
// member pair until the registry changes.
type Registry struct {
	mu       sync.RWMutex
	entries  []entry
	seq      int
	cache    map[fieldPair]Upgrader
	fallback Upgrader
}

// NewRegistry creates a registry holding the built-in upgraders.
func NewRegistry() *Registry {
	r := &Registry{cache: make(map[fieldPair]Upgrader), fallback: Copy{}}
	r.add(AutoSkip{}, true)
	r.add(DelegateMember{}, true)
	return r
}

// Register adds an upgrader.
func (r *Registry) Register(u Upgrader) error {
	if u == nil {
		return fmt.Errorf("upgrader is nil")
	}
	r.add(u, false)
	return nil
}

func (r *Registry) add(u Upgrader, builtin bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.entries = append(r.entries, entry{upgrader: u, seq: r.seq, builtin: builtin})
	sort.SliceStable(r.entries, func(i, j int) bool {
		a, b := r.entries[i], r.entries[j]
		if a.upgrader.Priority() != b.upgrader.Priority() {
			return a.upgrader.Priority() > b.upgrader.Priority()
		}
		return a.seq < b.seq
	})
	r.cache = make(map[fieldPair]Upgrader)
}

// Resolve returns the highest-priority upgrader applying to the member pair,
// or the default copy upgrader.
func (r *Registry) Resolve(oldField, newField *meta.Field) Upgrader {
	key := fieldPair{oldField, newField}
	r.mu.RLock()
	u, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return u
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.cache[key]; ok {
		return u
	}
	u = r.fallback
	for _, e := range r.entries {
		if e.upgrader.Applies(oldField, newField) {
			u = e.upgrader
			break
		}
	}
	r.cache[key] = u
	return u
}

// Upgraders returns every registered upgrader in resolution order.
func (r *Registry) Upgraders() []Upgrader {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Upgrader, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.upgrader
	}
	return out
}

// Len returns the number of user-registered upgraders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if !e.builtin {
			n++
		}
	}
	return n
}

// Clear removes every user-registered upgrader. Built-ins stay.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.builtin {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	r.cache = make(map[fieldPair]Upgrader)
}

// AddUpgrader registers a zero-valued upgrader of type T.
func AddUpgrader[T any, PT interface {
	*T
	Upgrader
}](r *Registry) PT {
	u := PT(new(T))
	r.add(u, false)
	return u
}
