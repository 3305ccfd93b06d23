package meta

import (
	"fmt"
	"reflect"
	"strings"
)

// Field describes a field declared on a type.
type Field struct {
	Name          string
	Type          *Type
	DeclaringType *Type
	Static        bool
	Offset        int // explicit layout offset, -1 when unset
	Attributes    []Attribute
}

// String returns "Type.Field".
func (f *Field) String() string {
	return f.DeclaringType.FullName() + "." + f.Name
}

// HasAttribute reports whether f carries an attribute with the given type name.
func (f *Field) HasAttribute(name string) bool {
	return hasAttribute(f.Attributes, name)
}

// At sets an explicit layout offset.
func (f *Field) At(offset int) *Field {
	f.Offset = offset
	return f
}

// With attaches an attribute.
func (f *Field) With(attr Attribute) *Field {
	f.Attributes = append(f.Attributes, attr)
	return f
}

// Property associates a property with its backing field.
type Property struct {
	Name         string
	Type         *Type
	BackingField string
}

// Event describes an event declaration.
type Event struct {
	Name string
	Type *Type
}

// Body is the executable implementation of a method. self is the bound
// target (nil for static methods).
type Body func(self any, args []any) (any, error)

// Method describes a method, lambda or local function.
type Method struct {
	Name          string
	DeclaringType *Type
	Params        []*Type
	Return        *Type
	Static        bool
	Virtual       bool
	GenericParams []*Type
	Scope         string  // user method that declared this lambda or local function
	ScopeParams   []*Type // parameter types of Scope; nil when unknown
	BodyHash      string
	Body          Body
	Attributes    []Attribute
}

// String returns "Type.Method(params)".
func (m *Method) String() string {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.FullName()
	}
	owner := "<nil>"
	if m.DeclaringType != nil {
		owner = m.DeclaringType.FullName()
	}
	return fmt.Sprintf("%s.%s(%s)", owner, m.Name, strings.Join(params, ","))
}

// IsLambda reports whether m was declared inside another method.
func (m *Method) IsLambda() bool {
	return m.Scope != ""
}

// HasAttribute reports whether m carries an attribute with the given type name.
func (m *Method) HasAttribute(name string) bool {
	return hasAttribute(m.Attributes, name)
}

// Implement sets the body and its content hash.
func (m *Method) Implement(hash string, body Body) *Method {
	m.BodyHash = hash
	m.Body = body
	return m
}

// InScope marks m as a lambda or local function declared in the named method.
func (m *Method) InScope(scope string) *Method {
	m.Scope = scope
	return m
}

// ScopedBy records the parameter types of the declaring scope method, telling
// overloads of the same name apart.
func (m *Method) ScopedBy(params ...*Type) *Method {
	m.ScopeParams = append([]*Type{}, params...)
	return m
}

// AsVirtual marks m as virtually dispatched.
func (m *Method) AsVirtual() *Method {
	m.Virtual = true
	return m
}

// With attaches an attribute.
func (m *Method) With(attr Attribute) *Method {
	m.Attributes = append(m.Attributes, attr)
	return m
}

// Generic declares method-level generic parameters and returns them.
func (m *Method) Generic(names ...string) []*Type {
	for i, n := range names {
		m.GenericParams = append(m.GenericParams, &Type{
			Name:        n,
			Kind:        KindGenericParam,
			Position:    i,
			OwnerMethod: m,
		})
	}
	return m.GenericParams
}

// FindOverride returns the implementation of m used for a target whose
// runtime type is rt. Non-virtual methods resolve to themselves.
func FindOverride(rt *Type, m *Method) *Method {
	if !m.Virtual {
		return m
	}
	for t := rt; t != nil; t = t.Base {
		for _, cand := range t.MethodsNamed(m.Name) {
			if cand.Virtual && sameParams(cand.Params, m.Params) {
				return cand
			}
		}
	}
	return m
}

func sameParams(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Attribute is a custom attribute application.
type Attribute struct {
	Type  string
	Args  []any
	Named map[string]any
}

// Attr builds an attribute with positional arguments.
func Attr(typ string, args ...any) Attribute {
	return Attribute{Type: typ, Args: args}
}

// NamedArg returns a named argument.
func (a Attribute) NamedArg(name string) (any, bool) {
	v, ok := a.Named[name]
	return v, ok
}

// Equal compares type, positional and named arguments.
func (a Attribute) Equal(b Attribute) bool {
	if a.Type != b.Type || len(a.Args) != len(b.Args) || len(a.Named) != len(b.Named) {
		return false
	}
	for i := range a.Args {
		if !reflect.DeepEqual(a.Args[i], b.Args[i]) {
			return false
		}
	}
	for k, v := range a.Named {
		w, ok := b.Named[k]
		if !ok || !reflect.DeepEqual(v, w) {
			return false
		}
	}
	return true
}

// AttributesEqual compares two attribute lists in order.
func AttributesEqual(a, b []Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func hasAttribute(attrs []Attribute, name string) bool {
	_, ok := findAttribute(attrs, name)
	return ok
}

func findAttribute(attrs []Attribute, name string) (Attribute, bool) {
	for _, a := range attrs {
		if a.Type == name {
			return a, true
		}
	}
	return Attribute{}, false
}
