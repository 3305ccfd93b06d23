// Package heap models the live objects migrated by a hotload pass: objects
// with field slots, arrays, delegates, dead-instance sentinels and static
// field storage.
package heap

import (
	"fmt"

	"github.com/dbsmedya/hotload/internal/meta"
)

// Value is anything a slot can hold: nil, a Go primitive (bool, int32,
// int64, float32, float64, string), *Object, *Array, *Delegate or *Dead.
type Value = any

// Object is an instance of a class or struct. Slots follow
// Type.InstanceFields order.
type Object struct {
	Type  *meta.Type
	Slots []Value

	// Identity is an optional logical identity used to match a live instance
	// with an already constructed new-side singleton.
	Identity string
}

// New returns a zero-initialized instance of t.
func New(t *meta.Type) *Object {
	fields := t.InstanceFields()
	o := &Object{Type: t, Slots: make([]Value, len(fields))}
	for i, f := range fields {
		o.Slots[i] = Zero(f.Type)
	}
	return o
}

// Get returns the value of the named instance field, or nil.
func (o *Object) Get(name string) Value {
	i := o.Type.FieldIndex(name)
	if i < 0 || i >= len(o.Slots) {
		return nil
	}
	return o.Slots[i]
}

// Set stores a value into the named instance field.
func (o *Object) Set(name string, v Value) error {
	i := o.Type.FieldIndex(name)
	if i < 0 || i >= len(o.Slots) {
		return fmt.Errorf("type %s has no instance field %q", o.Type.FullName(), name)
	}
	o.Slots[i] = v
	return nil
}

// MustSet is Set for fields known to exist.
func (o *Object) MustSet(name string, v Value) *Object {
	if err := o.Set(name, v); err != nil {
		panic(err)
	}
	return o
}

// Dead replaces every reference to an instance whose type no longer exists.
// It is opaque: nothing reachable only through it is migrated.
type Dead struct {
	Type *meta.Type
}

// String implements fmt.Stringer.
func (d *Dead) String() string {
	return "dead instance of " + d.Type.QualifiedName()
}

// Zero returns the default value of a slot declared as t.
func Zero(t *meta.Type) Value {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case meta.KindPrimitive:
		switch t {
		case meta.Boolean:
			return false
		case meta.Int32:
			return int32(0)
		case meta.Int64:
			return int64(0)
		case meta.Single:
			return float32(0)
		case meta.Double:
			return float64(0)
		}
		return nil
	case meta.KindEnum:
		if t.Underlying != nil {
			return Zero(t.Underlying)
		}
		return int32(0)
	case meta.KindStruct:
		if t.GenericDef == meta.Nullable {
			return nil
		}
		return New(t)
	}
	return nil
}

// IsDefault reports whether v equals the default value of a slot declared as t.
func IsDefault(t *meta.Type, v Value) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case int32:
		return x == 0
	case int64:
		return x == 0
	case float32:
		return x == 0
	case float64:
		return x == 0
	case string:
		return false
	case *Object:
		if !x.Type.IsValueType() {
			return false
		}
		fields := x.Type.InstanceFields()
		for i, f := range fields {
			if i < len(x.Slots) && !IsDefault(f.Type, x.Slots[i]) {
				return false
			}
		}
		return true
	}
	return false
}
