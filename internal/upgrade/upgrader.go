// Package upgrade resolves how each member of a migrated instance is carried
// from its old declaration to its new one.
package upgrade

import (
	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/report"
	"github.com/dbsmedya/hotload/internal/typemap"
)

// Context is the view of the running pass an upgrader works through.
type Context interface {
	// Claim returns the replacement of an old value, migrating it when it is
	// seen for the first time.
	Claim(old heap.Value, path string) heap.Value
	// Forward calls set with the replacement of old at the end of the pass,
	// but only if old was reached through some other member.
	Forward(old heap.Value, set func(heap.Value))
	// Map resolves an old type.
	Map(t *meta.Type) typemap.Result
	// Compatible reports whether a value declared as oldDecl may be stored
	// in a slot declared as newDecl once migrated.
	Compatible(oldDecl, newDecl *meta.Type) bool
	// SameSignature reports whether newM has the mapped signature of oldM.
	SameSignature(oldM, newM *meta.Method) bool
	// Report records a diagnostic.
	Report(kind report.Kind, typ, path, message string)
	// Defer runs fn once traversal has drained.
	Defer(fn func())
}

// Slot is one member being migrated. Set writes the member of the
// replacement instance; Value is the old value.
type Slot struct {
	Old   *meta.Field
	New   *meta.Field
	Value heap.Value
	Path  string
	Set   func(heap.Value)
}

// Owner returns the qualified name of the type that declares the new member.
func (s Slot) Owner() string {
	return s.New.DeclaringType.QualifiedName()
}

// Outcome is what an upgrader did with a slot.
type Outcome int

const (
	Copied Outcome = iota
	Skipped
	Defaulted
	Forwarded
)

// String returns a human-readable outcome.
func (o Outcome) String() string {
	switch o {
	case Copied:
		return "copied"
	case Skipped:
		return "skipped"
	case Defaulted:
		return "defaulted"
	case Forwarded:
		return "forwarded"
	default:
		return "unknown"
	}
}

// Upgrader migrates members matching a pattern.
type Upgrader interface {
	// Name identifies the upgrader in timing reports.
	Name() string
	// Priority orders applicable upgraders; higher runs first.
	Priority() int
	// Applies reports whether the upgrader handles the member pair.
	Applies(oldField, newField *meta.Field) bool
	// Apply migrates one slot.
	Apply(ctx Context, s Slot) Outcome
}
