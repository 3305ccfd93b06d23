// Package manifest loads program images and live heaps from YAML files.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
)

// Image describes a program image.
type Image struct {
	Name       string     `yaml:"name"`
	Assemblies []Assembly `yaml:"assemblies"`
}

// Assembly describes one assembly of an image.
type Assembly struct {
	Name  string `yaml:"name"`
	Types []Type `yaml:"types"`
}

// Type describes a type declaration. Top-level types are named with their
// namespace ("Game.Player"); nested types use their simple name.
type Type struct {
	Name        string      `yaml:"name"`
	Kind        string      `yaml:"kind,omitempty"` // class (default), struct, enum, interface, delegate
	Base        string      `yaml:"base,omitempty"`
	Underlying  string      `yaml:"underlying,omitempty"`
	Explicit    bool        `yaml:"explicit,omitempty"`
	Generic     []string    `yaml:"generic,omitempty"`
	Synthesized string      `yaml:"synthesized,omitempty"` // closure, lambdas, state_machine
	Scope       string      `yaml:"scope,omitempty"`
	ScopeParams []string    `yaml:"scope_params,omitempty"`
	Attributes  []Attribute `yaml:"attributes,omitempty"`
	Fields      []Field     `yaml:"fields,omitempty"`
	Statics     []Field     `yaml:"static_fields,omitempty"`
	Properties  []Property  `yaml:"properties,omitempty"`
	Events      []Event     `yaml:"events,omitempty"`
	Methods     []Method    `yaml:"methods,omitempty"`
	Nested      []Type      `yaml:"nested,omitempty"`
}

// Attribute describes an attribute application.
type Attribute struct {
	Type  string         `yaml:"type"`
	Args  []any          `yaml:"args,omitempty"`
	Named map[string]any `yaml:"named,omitempty"`
}

// Field describes an instance or static field.
type Field struct {
	Name       string      `yaml:"name"`
	Type       string      `yaml:"type"`
	Offset     *int        `yaml:"offset,omitempty"`
	Attributes []Attribute `yaml:"attributes,omitempty"`
}

// Property describes a property and its backing field.
type Property struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Backing string `yaml:"backing,omitempty"`
}

// Event describes an event.
type Event struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Method describes a method. A body is attached when Result or Field is
// set: the method returns the constant, or the named field of its target.
// Lambdas name their declaring method in Scope; ScopeParams, when given,
// lists its parameter types and is otherwise taken from the declaring method
// if it is not overloaded.
type Method struct {
	Name        string      `yaml:"name"`
	Returns     string      `yaml:"returns,omitempty"`
	Params      []string    `yaml:"params,omitempty"`
	Static      bool        `yaml:"static,omitempty"`
	Virtual     bool        `yaml:"virtual,omitempty"`
	Generic     []string    `yaml:"generic,omitempty"`
	Scope       string      `yaml:"scope,omitempty"`
	ScopeParams []string    `yaml:"scope_params,omitempty"`
	Hash        string      `yaml:"hash,omitempty"`
	Result      any         `yaml:"result,omitempty"`
	Field       string      `yaml:"field,omitempty"`
	Attributes  []Attribute `yaml:"attributes,omitempty"`
}

// LoadImage reads and builds an image manifest.
func LoadImage(path string) (*meta.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image manifest: %w", err)
	}
	img, err := ParseImage(data)
	if err != nil {
		return nil, fmt.Errorf("image manifest %s: %w", path, err)
	}
	return img, nil
}

// ParseImage decodes and builds an image manifest. Unknown keys are errors.
func ParseImage(data []byte) (*meta.Image, error) {
	var m Image
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse image manifest: %w", err)
	}
	return m.Build()
}

// declared pairs a type declaration with its descriptor.
type declared struct {
	decl   *Type
	typ    *meta.Type
	res    *resolver
	params []*meta.Type // generic parameters in scope
}

// Build creates the described image. Every type is declared before any
// member is resolved, so members may reference types declared later in the
// manifest. Generic definitions are populated first so that instantiations
// made while populating other types see every member; a generic definition
// may only instantiate builtins and generic definitions listed before it.
func (m *Image) Build() (*meta.Image, error) {
	img := meta.NewImage(m.Name)
	var decls []*declared
	for ai := range m.Assemblies {
		decl := &m.Assemblies[ai]
		if decl.Name == "" {
			return nil, fmt.Errorf("assembly %d has no name", ai)
		}
		if _, ok := img.Assembly(decl.Name); ok {
			return nil, fmt.Errorf("assembly %q declared twice", decl.Name)
		}
		asm := meta.NewAssembly(decl.Name)
		img.Add(asm)
		res := &resolver{image: img, home: asm}
		for ti := range decl.Types {
			d, err := declare(res, &decl.Types[ti], nil)
			if err != nil {
				return nil, fmt.Errorf("assembly %s: %w", decl.Name, err)
			}
			decls = append(decls, d...)
		}
	}

	for _, generic := range []bool{true, false} {
		for _, d := range decls {
			if d.typ.IsGenericDefinition() != generic {
				continue
			}
			if err := d.populate(); err != nil {
				return nil, fmt.Errorf("type %s: %w", d.typ.QualifiedName(), err)
			}
		}
	}
	for _, d := range decls {
		d.inferScopes()
	}

	for _, d := range decls {
		seen := map[*meta.Type]bool{}
		for b := d.typ; b != nil; b = b.Base {
			if seen[b.Definition()] {
				return nil, fmt.Errorf("type %s: inheritance cycle through %s", d.typ.QualifiedName(), b.FullName())
			}
			seen[b.Definition()] = true
		}
	}
	return img, nil
}

func declare(res *resolver, decl *Type, parent *declared) ([]*declared, error) {
	if decl.Name == "" {
		return nil, fmt.Errorf("type without a name")
	}
	kind, err := parseKind(decl.Kind)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", decl.Name, err)
	}
	synth, err := parseSynthesized(decl.Synthesized)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", decl.Name, err)
	}

	d := &declared{decl: decl, res: res}
	switch {
	case parent != nil:
		if len(decl.Generic) > 0 {
			return nil, fmt.Errorf("nested type %s: nested generic definitions are not supported", decl.Name)
		}
		if synth != meta.NotSynthesized {
			if kind != meta.KindClass {
				return nil, fmt.Errorf("synthesized type %s must be a class", decl.Name)
			}
			d.typ = parent.typ.NestSynthesized(decl.Name, synth, decl.Scope)
		} else {
			d.typ = parent.typ.Nest(decl.Name, kind)
		}
		d.params = parent.params
	default:
		if synth != meta.NotSynthesized {
			return nil, fmt.Errorf("synthesized type %s must be nested", decl.Name)
		}
		ns, name := splitName(decl.Name)
		if res.home.Type(decl.Name) != nil {
			return nil, fmt.Errorf("type %s declared twice", decl.Name)
		}
		if len(decl.Generic) > 0 {
			d.typ = res.home.DefineGeneric(ns, name, kind, decl.Generic...)
			d.params = d.typ.GenericParams
		} else {
			d.typ = res.home.Define(ns, name, kind)
		}
	}

	out := []*declared{d}
	for i := range decl.Nested {
		nested, err := declare(res, &decl.Nested[i], d)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}

func (d *declared) populate() error {
	decl, t := d.decl, d.typ

	if decl.Base != "" {
		base, err := d.res.resolve(decl.Base, d.params)
		if err != nil {
			return fmt.Errorf("base: %w", err)
		}
		t.Extends(base)
	}
	if decl.Underlying != "" {
		if t.Kind != meta.KindEnum {
			return fmt.Errorf("only enums have an underlying type")
		}
		u, err := d.res.resolve(decl.Underlying, nil)
		if err != nil {
			return fmt.Errorf("underlying: %w", err)
		}
		t.WithUnderlying(u)
	}
	if decl.Explicit {
		t.Explicit()
	}
	if decl.ScopeParams != nil {
		if decl.Scope == "" {
			return fmt.Errorf("scope_params without a scope")
		}
		params, err := d.resolveAll(decl.ScopeParams, d.params)
		if err != nil {
			return fmt.Errorf("scope parameter: %w", err)
		}
		t.ScopedBy(params...)
	}
	for _, a := range decl.Attributes {
		t.With(a.build())
	}

	for _, f := range decl.Fields {
		if err := d.addField(f, false); err != nil {
			return err
		}
	}
	for _, f := range decl.Statics {
		if err := d.addField(f, true); err != nil {
			return err
		}
	}
	for _, p := range decl.Properties {
		typ, err := d.res.resolve(p.Type, d.params)
		if err != nil {
			return fmt.Errorf("property %s: %w", p.Name, err)
		}
		t.AddProperty(p.Name, typ, p.Backing)
	}
	for _, e := range decl.Events {
		typ, err := d.res.resolve(e.Type, d.params)
		if err != nil {
			return fmt.Errorf("event %s: %w", e.Name, err)
		}
		t.AddEvent(e.Name, typ)
	}
	for _, m := range decl.Methods {
		if err := d.addMethod(m); err != nil {
			return fmt.Errorf("method %s: %w", m.Name, err)
		}
	}

	if t.Kind == meta.KindDelegate && t.Invoke() == nil {
		return fmt.Errorf("delegate declares no Invoke method")
	}
	return nil
}

func (d *declared) addField(decl Field, static bool) error {
	typ, err := d.res.resolve(decl.Type, d.params)
	if err != nil {
		return fmt.Errorf("field %s: %w", decl.Name, err)
	}
	var f *meta.Field
	if static {
		f = d.typ.AddStaticField(decl.Name, typ)
	} else {
		f = d.typ.AddField(decl.Name, typ)
	}
	if decl.Offset != nil {
		if !d.typ.ExplicitLayout {
			return fmt.Errorf("field %s: offsets require an explicit layout", decl.Name)
		}
		f.At(*decl.Offset)
	}
	for _, a := range decl.Attributes {
		f.With(a.build())
	}
	return nil
}

func (d *declared) addMethod(decl Method) error {
	m := d.typ.AddMethod(decl.Name, nil)
	m.Static = decl.Static
	params := d.params
	if len(decl.Generic) > 0 {
		params = append(append([]*meta.Type(nil), d.params...), m.Generic(decl.Generic...)...)
	}

	if decl.Returns != "" && decl.Returns != "void" {
		ret, err := d.res.resolve(decl.Returns, params)
		if err != nil {
			return fmt.Errorf("return type: %w", err)
		}
		m.Return = ret
	}
	for i, p := range decl.Params {
		pt, err := d.res.resolve(p, params)
		if err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
		m.Params = append(m.Params, pt)
	}

	if decl.Virtual {
		m.AsVirtual()
	}
	if decl.Scope != "" {
		m.InScope(decl.Scope)
	}
	if decl.ScopeParams != nil {
		if decl.Scope == "" {
			return fmt.Errorf("scope_params without a scope")
		}
		sp, err := d.resolveAll(decl.ScopeParams, d.params)
		if err != nil {
			return fmt.Errorf("scope parameter: %w", err)
		}
		m.ScopedBy(sp...)
	}
	for _, a := range decl.Attributes {
		m.With(a.build())
	}

	body, err := decl.body(m)
	if err != nil {
		return err
	}
	if body != nil || decl.Hash != "" {
		m.Implement(decl.Hash, body)
	}
	return nil
}

func (d *declared) resolveAll(names []string, params []*meta.Type) ([]*meta.Type, error) {
	out := make([]*meta.Type, len(names))
	for i, n := range names {
		t, err := d.res.resolve(n, params)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// inferScopes records the scope signature of synthesized types and lambdas
// that declared none. Declarations come before their nested types, so an
// enclosing state machine is settled before the closures it holds.
func (d *declared) inferScopes() {
	t := d.typ
	if t.Scope != "" && t.ScopeParams == nil {
		t.ScopeParams = scopeSignature(t.DeclaringType, t.Scope)
	}
	for _, m := range t.Methods {
		if m.Scope != "" && m.ScopeParams == nil {
			m.ScopeParams = scopeSignature(t, m.Scope)
		}
	}
}

// scopeSignature returns the parameter types of the method named scope as
// seen from t, or nil when it is missing or overloaded.
func scopeSignature(t *meta.Type, scope string) []*meta.Type {
	if t == nil {
		return nil
	}
	if t.Synthesized != meta.NotSynthesized && t.Scope == scope {
		return t.ScopeParams
	}
	holder := t.ScopeHolder()
	if holder == nil {
		return nil
	}
	methods := holder.MethodsNamed(scope)
	if len(methods) != 1 {
		return nil
	}
	return append([]*meta.Type{}, methods[0].Params...)
}

func (decl Method) body(m *meta.Method) (meta.Body, error) {
	switch {
	case decl.Result != nil && decl.Field != "":
		return nil, fmt.Errorf("result and field are exclusive")
	case decl.Result != nil:
		if m.Return == nil {
			return nil, fmt.Errorf("void method cannot return a result")
		}
		v, err := convertScalar(m.Return, decl.Result)
		if err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
		return func(any, []any) (any, error) { return v, nil }, nil
	case decl.Field != "":
		if m.Static {
			return nil, fmt.Errorf("static method cannot return an instance field")
		}
		name := decl.Field
		return func(self any, _ []any) (any, error) {
			o, ok := self.(*heap.Object)
			if !ok {
				return nil, fmt.Errorf("%s: target is %T, not an object", m, self)
			}
			return o.Get(name), nil
		}, nil
	}
	return nil, nil
}

func (a Attribute) build() meta.Attribute {
	return meta.Attribute{Type: a.Type, Args: a.Args, Named: a.Named}
}

func splitName(full string) (namespace, name string) {
	if i := strings.LastIndex(full, "."); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}

func parseKind(s string) (meta.Kind, error) {
	switch strings.ToLower(s) {
	case "", "class":
		return meta.KindClass, nil
	case "struct":
		return meta.KindStruct, nil
	case "enum":
		return meta.KindEnum, nil
	case "interface":
		return meta.KindInterface, nil
	case "delegate":
		return meta.KindDelegate, nil
	}
	return meta.KindClass, fmt.Errorf("unknown kind %q", s)
}

func parseSynthesized(s string) (meta.Synthesized, error) {
	switch strings.ToLower(s) {
	case "":
		return meta.NotSynthesized, nil
	case "closure":
		return meta.SynthClosure, nil
	case "lambdas", "lambda-holder":
		return meta.SynthLambdaHolder, nil
	case "state_machine", "state-machine":
		return meta.SynthStateMachine, nil
	}
	return meta.NotSynthesized, fmt.Errorf("unknown synthesized kind %q", s)
}
