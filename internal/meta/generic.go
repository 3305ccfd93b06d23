package meta

import (
	"fmt"
	"strings"
	"sync"
)

// instMu serializes instantiation so a closed type is never observed half
// built; recursion inside one instantiation goes through instantiate.
var instMu sync.Mutex

// Instantiate returns the closed instantiation of def with the given
// arguments. Instantiations are memoized on the definition, so the same
// arguments always yield the same descriptor. def must be fully declared
// before its first instantiation.
func Instantiate(def *Type, args ...*Type) (*Type, error) {
	if def == nil {
		return nil, fmt.Errorf("generic definition is nil")
	}
	if !def.IsGenericDefinition() {
		return nil, fmt.Errorf("type %s is not a generic definition", def.FullName())
	}
	if len(args) != len(def.GenericParams) {
		return nil, fmt.Errorf("type %s expects %d type arguments, got %d",
			def.FullName(), len(def.GenericParams), len(args))
	}
	for i, a := range args {
		if a == nil {
			return nil, fmt.Errorf("type argument %d of %s is nil", i, def.FullName())
		}
	}

	instMu.Lock()
	defer instMu.Unlock()
	return instantiate(def, args), nil
}

func instantiate(def *Type, args []*Type) *Type {
	key := instanceKey(args)
	if def.instances == nil {
		def.instances = make(map[string]*Type)
	}
	if t, ok := def.instances[key]; ok {
		return t
	}
	closed := &Type{
		Name:           def.Name,
		Namespace:      def.Namespace,
		DeclaringType:  def.DeclaringType,
		Kind:           def.Kind,
		Underlying:     def.Underlying,
		GenericDef:     def,
		GenericArgs:    append([]*Type(nil), args...),
		Attributes:     def.Attributes,
		ExplicitLayout: def.ExplicitLayout,
		Synthesized:    def.Synthesized,
		Scope:          def.Scope,
		ScopeParams:    def.ScopeParams,
		NestedTypes:    def.NestedTypes,
		Properties:     def.Properties,
	}
	// Publish before substituting members so self-referencing field types
	// resolve to this descriptor.
	def.instances[key] = closed

	s := substitution{owner: def, args: args}
	closed.Base = s.apply(def.Base)
	for _, f := range def.Fields {
		closed.Fields = append(closed.Fields, &Field{
			Name:          f.Name,
			Type:          s.apply(f.Type),
			DeclaringType: closed,
			Static:        f.Static,
			Offset:        f.Offset,
			Attributes:    f.Attributes,
		})
	}
	for _, e := range def.Events {
		closed.Events = append(closed.Events, &Event{Name: e.Name, Type: s.apply(e.Type)})
	}
	for _, m := range def.Methods {
		cm := *m
		cm.DeclaringType = closed
		cm.Return = s.apply(m.Return)
		cm.Params = make([]*Type, len(m.Params))
		for i, p := range m.Params {
			cm.Params[i] = s.apply(p)
		}
		closed.Methods = append(closed.Methods, &cm)
	}
	return closed
}

// MustInstantiate is Instantiate for statically known arguments.
func MustInstantiate(def *Type, args ...*Type) *Type {
	t, err := Instantiate(def, args...)
	if err != nil {
		panic(err)
	}
	return t
}

// ArrayOf returns the array type with the given element type and rank.
func ArrayOf(elem *Type, rank int) *Type {
	if rank < 1 {
		rank = 1
	}
	elem.mu.Lock()
	defer elem.mu.Unlock()
	if elem.arrays == nil {
		elem.arrays = make(map[int]*Type)
	}
	if t, ok := elem.arrays[rank]; ok {
		return t
	}
	t := &Type{Kind: KindArray, Elem: elem, Rank: rank, Base: Object}
	elem.arrays[rank] = t
	return t
}

// instanceKey identifies an argument list by descriptor identity; old and new
// images may hold distinct types with equal names.
func instanceKey(args []*Type) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%p", a)
	}
	return strings.Join(parts, ",")
}

type substitution struct {
	owner *Type
	args  []*Type
}

func (s substitution) apply(t *Type) *Type {
	switch {
	case t == nil:
		return nil
	case t.Kind == KindGenericParam:
		if t.DeclaringType == s.owner && t.Position < len(s.args) {
			return s.args[t.Position]
		}
		return t
	case t.Kind == KindArray:
		return ArrayOf(s.apply(t.Elem), t.Rank)
	case t.GenericDef != nil:
		args := make([]*Type, len(t.GenericArgs))
		changed := false
		for i, a := range t.GenericArgs {
			args[i] = s.apply(a)
			changed = changed || args[i] != a
		}
		if !changed {
			return t
		}
		return instantiate(t.GenericDef, args)
	case t.IsGenericDefinition() && t == s.owner:
		// A bare reference to the definition inside itself means the
		// instantiation being built.
		return instantiate(t, s.args)
	}
	return t
}
