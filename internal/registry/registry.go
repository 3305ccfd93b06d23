// Package registry holds the process-wide hotload configuration: which old
// assembly is replaced by which new one, and which assemblies are scanned
// for static roots.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dbsmedya/hotload/internal/meta"
)

// ErrAssemblyNotFound is returned when an assembly name cannot be resolved.
var ErrAssemblyNotFound = errors.New("assembly not found")

// Replacement pairs an old assembly with the new assembly replacing it.
type Replacement struct {
	Old *meta.Assembly
	New *meta.Assembly
}

// Identity reports whether the replacement is a no-op.
func (r Replacement) Identity() bool {
	return r.Old == r.New
}

// Replacements records assembly replacements. It is safe for concurrent use,
// but must not be mutated while a pass is running.
type Replacements struct {
	mu    sync.RWMutex
	pairs []Replacement
}

// NewReplacements creates an empty registry.
func NewReplacements() *Replacements {
	return &Replacements{}
}

// Add registers a replacement. A later replacement of the same old assembly
// overrides the earlier one.
func (r *Replacements) Add(oldAsm, newAsm *meta.Assembly) error {
	if oldAsm == nil || newAsm == nil {
		return fmt.Errorf("replacement requires both assemblies")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.pairs {
		if p.Old == oldAsm {
			r.pairs[i].New = newAsm
			return nil
		}
	}
	r.pairs = append(r.pairs, Replacement{Old: oldAsm, New: newAsm})
	return nil
}

// Replacement returns the new assembly replacing old. Identity replacements
// are reported as not swapped.
func (r *Replacements) Replacement(old *meta.Assembly) (*meta.Assembly, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.pairs {
		if p.Old == old && !p.Identity() {
			return p.New, true
		}
	}
	return nil, false
}

// Effective returns the replacements that actually swap an assembly.
func (r *Replacements) Effective() []Replacement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Replacement
	for _, p := range r.pairs {
		if !p.Identity() {
			out = append(out, p)
		}
	}
	return out
}

// All returns every registered replacement.
func (r *Replacements) All() []Replacement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Replacement(nil), r.pairs...)
}

// Len returns the number of registered replacements.
func (r *Replacements) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairs)
}

// Clear removes every replacement.
func (r *Replacements) Clear() {
	r.mu.Lock()
	r.pairs = nil
	r.mu.Unlock()
}

// TypeFilter selects the types of a watched assembly whose statics are roots.
type TypeFilter func(*meta.Type) bool

// WatchedRoot declares an assembly whose static fields seed the traversal.
type WatchedRoot struct {
	Assembly string
	Filter   TypeFilter
}

// Matches reports whether t passes the filter. A nil filter matches all.
func (w WatchedRoot) Matches(t *meta.Type) bool {
	return w.Filter == nil || w.Filter(t)
}

// Watches records watched roots.
type Watches struct {
	mu    sync.RWMutex
	roots []WatchedRoot
}

// NewWatches creates an empty registry.
func NewWatches() *Watches {
	return &Watches{}
}

// Add registers a watched root.
func (w *Watches) Add(root WatchedRoot) error {
	if root.Assembly == "" {
		return fmt.Errorf("watched root requires an assembly name")
	}
	w.mu.Lock()
	w.roots = append(w.roots, root)
	w.mu.Unlock()
	return nil
}

// All returns every watched root in registration order.
func (w *Watches) All() []WatchedRoot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]WatchedRoot(nil), w.roots...)
}

// Len returns the number of watched roots.
func (w *Watches) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.roots)
}

// Clear removes every watched root.
func (w *Watches) Clear() {
	w.mu.Lock()
	w.roots = nil
	w.mu.Unlock()
}

// Resolve looks up an assembly by name in a facade.
func Resolve(f meta.Facade, name string) (*meta.Assembly, error) {
	a, ok := f.Assembly(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAssemblyNotFound, name)
	}
	return a, nil
}
