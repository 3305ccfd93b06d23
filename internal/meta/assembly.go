package meta

import (
	"fmt"
	"strings"
)

// Assembly is a named unit of compiled types.
type Assembly struct {
	Name  string
	types []*Type
	index map[string]*Type
}

// NewAssembly creates an empty assembly.
func NewAssembly(name string) *Assembly {
	return &Assembly{
		Name:  name,
		index: make(map[string]*Type),
	}
}

// Types returns every type of the assembly, nested types included, in
// definition order.
func (a *Assembly) Types() []*Type {
	return a.types
}

// Type returns the type with the given full name (nesting with "+", generic
// arity with a backtick suffix), or nil.
func (a *Assembly) Type(fullName string) *Type {
	return a.index[fullName]
}

func (a *Assembly) register(t *Type) {
	a.types = append(a.types, t)
	a.index[t.FullName()] = t
}

// Define adds a top-level type. Classes derive from Object unless rebased.
func (a *Assembly) Define(namespace, name string, kind Kind) *Type {
	t := &Type{
		Name:      name,
		Namespace: namespace,
		Assembly:  a,
		Kind:      kind,
	}
	if kind == KindClass {
		t.Base = Object
	}
	a.register(t)
	return t
}

// DefineGeneric adds an open generic type definition. The backtick arity
// suffix is appended to name.
func (a *Assembly) DefineGeneric(namespace, name string, kind Kind, params ...string) *Type {
	t := &Type{
		Name:      fmt.Sprintf("%s`%d", name, len(params)),
		Namespace: namespace,
		Assembly:  a,
		Kind:      kind,
	}
	if kind == KindClass {
		t.Base = Object
	}
	t.GenericParams = genericParams(t, params)
	a.register(t)
	return t
}

// DefineDelegate adds a delegate type with the given Invoke signature.
func (a *Assembly) DefineDelegate(namespace, name string, ret *Type, params ...*Type) *Type {
	t := a.Define(namespace, name, KindDelegate)
	t.AddMethod("Invoke", ret, params...)
	return t
}

func genericParams(owner *Type, names []string) []*Type {
	out := make([]*Type, len(names))
	for i, n := range names {
		out[i] = &Type{
			Name:          n,
			Kind:          KindGenericParam,
			Position:      i,
			DeclaringType: owner,
		}
	}
	return out
}

// Nest adds a nested type to t.
func (t *Type) Nest(name string, kind Kind) *Type {
	n := &Type{
		Name:          name,
		DeclaringType: t,
		Assembly:      t.Assembly,
		Kind:          kind,
	}
	if kind == KindClass {
		n.Base = Object
	}
	t.NestedTypes = append(t.NestedTypes, n)
	if t.Assembly != nil {
		t.Assembly.register(n)
	}
	return n
}

// NestSynthesized adds a compiler-generated nested type declared by the
// method named scope.
func (t *Type) NestSynthesized(name string, kind Synthesized, scope string) *Type {
	n := t.Nest(name, KindClass)
	n.Synthesized = kind
	n.Scope = scope
	return n
}

// ScopedBy records the parameter types of the scope method of a synthesized
// type, telling overloads of the same name apart.
func (t *Type) ScopedBy(params ...*Type) *Type {
	t.ScopeParams = append([]*Type{}, params...)
	return t
}

// Extends sets the base type.
func (t *Type) Extends(base *Type) *Type {
	t.Base = base
	return t
}

// WithUnderlying sets the underlying primitive of an enum.
func (t *Type) WithUnderlying(u *Type) *Type {
	t.Underlying = u
	return t
}

// With attaches an attribute.
func (t *Type) With(attr Attribute) *Type {
	t.Attributes = append(t.Attributes, attr)
	return t
}

// Explicit marks t as having an explicit field layout.
func (t *Type) Explicit() *Type {
	t.ExplicitLayout = true
	return t
}

// AddField declares an instance field.
func (t *Type) AddField(name string, typ *Type) *Field {
	f := &Field{Name: name, Type: typ, DeclaringType: t, Offset: -1}
	t.Fields = append(t.Fields, f)
	return f
}

// AddStaticField declares a static field.
func (t *Type) AddStaticField(name string, typ *Type) *Field {
	f := t.AddField(name, typ)
	f.Static = true
	return f
}

// AddProperty declares a property backed by the named field.
func (t *Type) AddProperty(name string, typ *Type, backingField string) *Property {
	p := &Property{Name: name, Type: typ, BackingField: backingField}
	t.Properties = append(t.Properties, p)
	return p
}

// AddEvent declares an event.
func (t *Type) AddEvent(name string, typ *Type) *Event {
	e := &Event{Name: name, Type: typ}
	t.Events = append(t.Events, e)
	return e
}

// AddMethod declares an instance method.
func (t *Type) AddMethod(name string, ret *Type, params ...*Type) *Method {
	m := &Method{Name: name, DeclaringType: t, Return: ret, Params: params}
	t.Methods = append(t.Methods, m)
	return m
}

// AddStaticMethod declares a static method.
func (t *Type) AddStaticMethod(name string, ret *Type, params ...*Type) *Method {
	m := t.AddMethod(name, ret, params...)
	m.Static = true
	return m
}

// Facade enumerates the assemblies of one program image.
type Facade interface {
	Assembly(name string) (*Assembly, bool)
	Assemblies() []*Assembly
}

// Image is an in-memory Facade.
type Image struct {
	Name       string
	assemblies []*Assembly
}

// NewImage creates an image over the given assemblies. The builtin assembly
// is always resolvable.
func NewImage(name string, assemblies ...*Assembly) *Image {
	return &Image{Name: name, assemblies: assemblies}
}

// Add appends an assembly to the image.
func (i *Image) Add(a *Assembly) {
	i.assemblies = append(i.assemblies, a)
}

// Assembly resolves an assembly by name.
func (i *Image) Assembly(name string) (*Assembly, bool) {
	for _, a := range i.assemblies {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	if strings.EqualFold(name, Builtin.Name) {
		return Builtin, true
	}
	return nil, false
}

// Assemblies returns the assemblies of the image in registration order.
func (i *Image) Assemblies() []*Assembly {
	return i.assemblies
}
