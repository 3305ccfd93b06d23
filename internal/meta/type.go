// Package meta provides the metadata facade for hotload: assemblies, types,
// members, attributes and generic parameters of one program image.
package meta

import (
	"strings"
	"sync"
)

// Kind classifies a type descriptor.
type Kind int

const (
	KindClass Kind = iota
	KindStruct
	KindEnum
	KindInterface
	KindDelegate
	KindArray
	KindPrimitive
	KindGenericParam
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindInterface:
		return "interface"
	case KindDelegate:
		return "delegate"
	case KindArray:
		return "array"
	case KindPrimitive:
		return "primitive"
	case KindGenericParam:
		return "generic-param"
	default:
		return "unknown"
	}
}

// Synthesized marks compiler-generated types whose names are not stable
// between two builds of the same source.
type Synthesized int

const (
	NotSynthesized    Synthesized = iota
	SynthClosure                  // holds captured variables of a lambda or local function
	SynthLambdaHolder             // holds non-capturing lambdas of a type
	SynthStateMachine             // async or iterator state machine
)

// String returns a human-readable name for the synthesized kind.
func (s Synthesized) String() string {
	switch s {
	case NotSynthesized:
		return "none"
	case SynthClosure:
		return "closure"
	case SynthLambdaHolder:
		return "lambda-holder"
	case SynthStateMachine:
		return "state-machine"
	default:
		return "unknown"
	}
}

// Type is a type descriptor. Open generic definitions carry GenericParams,
// closed instantiations carry GenericDef and GenericArgs.
type Type struct {
	Name          string
	Namespace     string
	DeclaringType *Type
	Assembly      *Assembly
	Kind          Kind
	Base          *Type
	Underlying    *Type // enum underlying primitive

	GenericParams []*Type // open definitions only
	GenericDef    *Type   // closed instantiations only
	GenericArgs   []*Type // closed instantiations only

	// Generic parameter descriptors.
	Position    int
	OwnerMethod *Method

	// Array descriptors.
	Elem *Type
	Rank int

	Fields      []*Field
	Properties  []*Property
	Events      []*Event
	Methods     []*Method
	NestedTypes []*Type
	Attributes  []Attribute

	ExplicitLayout bool
	Synthesized    Synthesized
	Scope          string  // declaring method name of a synthesized type
	ScopeParams    []*Type // parameter types of Scope; nil when unknown

	mu        sync.Mutex
	instances map[string]*Type
	arrays    map[int]*Type
}

// FullName returns the namespace-qualified name including the nesting chain
// ("+" separated), generic arguments and array suffixes.
func (t *Type) FullName() string {
	if t == nil {
		return "<nil>"
	}
	switch {
	case t.Kind == KindArray:
		return t.Elem.FullName() + arraySuffix(t.Rank)
	case t.Kind == KindGenericParam:
		return t.Name
	case t.GenericDef != nil:
		args := make([]string, len(t.GenericArgs))
		for i, a := range t.GenericArgs {
			args[i] = a.FullName()
		}
		return t.GenericDef.FullName() + "[" + strings.Join(args, ",") + "]"
	}
	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "+" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// String implements fmt.Stringer.
func (t *Type) String() string {
	return t.FullName()
}

// QualifiedName prefixes FullName with the owning assembly.
func (t *Type) QualifiedName() string {
	if t == nil {
		return "<nil>"
	}
	if asm := t.OwningAssembly(); asm != nil {
		return asm.Name + "::" + t.FullName()
	}
	return t.FullName()
}

// OwningAssembly returns the assembly that defines t, looking through
// instantiations, arrays and nesting.
func (t *Type) OwningAssembly() *Assembly {
	switch {
	case t == nil:
		return nil
	case t.Kind == KindArray:
		return t.Elem.OwningAssembly()
	case t.GenericDef != nil:
		return t.GenericDef.OwningAssembly()
	case t.Assembly != nil:
		return t.Assembly
	case t.DeclaringType != nil:
		return t.DeclaringType.OwningAssembly()
	}
	return nil
}

func arraySuffix(rank int) string {
	if rank <= 1 {
		return "[]"
	}
	return "[" + strings.Repeat(",", rank-1) + "]"
}

// Arity returns the number of generic parameters or arguments.
func (t *Type) Arity() int {
	if t.GenericDef != nil {
		return len(t.GenericArgs)
	}
	return len(t.GenericParams)
}

// IsGenericDefinition reports whether t is an open generic type definition.
func (t *Type) IsGenericDefinition() bool {
	return len(t.GenericParams) > 0
}

// IsClosedGeneric reports whether t is an instantiation of a generic definition.
func (t *Type) IsClosedGeneric() bool {
	return t.GenericDef != nil
}

// IsValueType reports whether instances of t are copied by value.
func (t *Type) IsValueType() bool {
	switch t.Kind {
	case KindStruct, KindEnum:
		return true
	case KindPrimitive:
		return t != String
	}
	return false
}

// Definition returns the generic definition of a closed type, or t itself.
func (t *Type) Definition() *Type {
	if t.GenericDef != nil {
		return t.GenericDef
	}
	return t
}

// ScopeHolder returns the first type in the nesting chain of t that is not
// compiler-generated, which is the type declaring the scope methods of
// synthesized types nested in it.
func (t *Type) ScopeHolder() *Type {
	for ; t != nil; t = t.DeclaringType {
		if t.Synthesized == NotSynthesized {
			return t
		}
	}
	return nil
}

// Param returns the i-th generic parameter of an open definition.
func (t *Type) Param(i int) *Type {
	return t.GenericParams[i]
}

// HasAttribute reports whether t carries an attribute with the given type name.
func (t *Type) HasAttribute(name string) bool {
	return hasAttribute(t.Definition().Attributes, name)
}

// Attribute returns the first attribute with the given type name.
func (t *Type) Attribute(name string) (Attribute, bool) {
	return findAttribute(t.Definition().Attributes, name)
}

// InstanceFields returns the non-static fields of t, base levels first.
// The position of a field in this list is its slot index.
func (t *Type) InstanceFields() []*Field {
	var fields []*Field
	if t.Base != nil {
		fields = t.Base.InstanceFields()
	}
	for _, f := range t.Fields {
		if !f.Static {
			fields = append(fields, f)
		}
	}
	return fields
}

// DeclaredInstanceFields returns the non-static fields declared on t itself.
func (t *Type) DeclaredInstanceFields() []*Field {
	var fields []*Field
	for _, f := range t.Fields {
		if !f.Static {
			fields = append(fields, f)
		}
	}
	return fields
}

// StaticFields returns the static fields declared on t.
func (t *Type) StaticFields() []*Field {
	var fields []*Field
	for _, f := range t.Fields {
		if f.Static {
			fields = append(fields, f)
		}
	}
	return fields
}

// FieldIndex returns the slot index of the named instance field, or -1.
// The most derived declaration wins when a name is hidden.
func (t *Type) FieldIndex(name string) int {
	fields := t.InstanceFields()
	for i := len(fields) - 1; i >= 0; i-- {
		if fields[i].Name == name {
			return i
		}
	}
	return -1
}

// StaticField returns the named static field declared on t, or nil.
func (t *Type) StaticField(name string) *Field {
	for _, f := range t.Fields {
		if f.Static && f.Name == name {
			return f
		}
	}
	return nil
}

// Nested returns the nested type with the given simple name, or nil.
func (t *Type) Nested(name string) *Type {
	for _, n := range t.NestedTypes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// MethodsNamed returns every method declared on t with the given name.
func (t *Type) MethodsNamed(name string) []*Method {
	var out []*Method
	for _, m := range t.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Invoke returns the signature method of a delegate type.
func (t *Type) Invoke() *Method {
	if t.Kind != KindDelegate {
		return nil
	}
	for _, m := range t.Methods {
		if m.Name == "Invoke" {
			return m
		}
	}
	return nil
}

// IsSubclassOf reports whether other appears in the base chain of t.
func (t *Type) IsSubclassOf(other *Type) bool {
	for b := t.Base; b != nil; b = b.Base {
		if b == other {
			return true
		}
	}
	return false
}

// AssignableTo reports whether a value of type t can be stored in a slot
// declared as target.
func (t *Type) AssignableTo(target *Type) bool {
	if t == target || target == Object {
		return true
	}
	if t.IsSubclassOf(target) {
		return true
	}
	if target.GenericDef == Nullable && len(target.GenericArgs) == 1 {
		return target.GenericArgs[0] == t
	}
	return false
}
