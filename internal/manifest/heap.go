package manifest

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
)

// Heap describes the live state of an image: reference objects keyed by id
// and the static fields that root them.
//
// A value is a YAML scalar converted to the declared slot type, null, a
// sequence (a one-dimensional array of the declared element type), or a
// mapping with exactly one of these keys:
//
//	ref:      id of an object
//	struct:   {type, fields} inline value-type instance
//	array:    {elem, lengths, items} items in row-major order
//	delegate: {type, entries: [{target, type, method, method_args, graph, stub}]}
type Heap struct {
	Objects map[string]HeapObject `yaml:"objects"`
	Statics []Static              `yaml:"statics"`
}

// HeapObject describes one reference object.
type HeapObject struct {
	Type     string               `yaml:"type"`
	Identity string               `yaml:"identity,omitempty"`
	Fields   map[string]yaml.Node `yaml:"fields,omitempty"`
}

// Static assigns a static field.
type Static struct {
	Type  string    `yaml:"type"`
	Field string    `yaml:"field"`
	Value yaml.Node `yaml:"value"`
}

type structValue struct {
	Type   string               `yaml:"type"`
	Fields map[string]yaml.Node `yaml:"fields"`
}

type arrayValue struct {
	Elem    string      `yaml:"elem"`
	Lengths []int       `yaml:"lengths"`
	Items   []yaml.Node `yaml:"items"`
}

type delegateValue struct {
	Type    string          `yaml:"type"`
	Entries []delegateEntry `yaml:"entries"`
}

type delegateEntry struct {
	Target     string   `yaml:"target,omitempty"` // object id for instance methods
	Type       string   `yaml:"type,omitempty"`   // declaring type for static methods
	Method     string   `yaml:"method,omitempty"`
	MethodArgs []string `yaml:"method_args,omitempty"`
	Graph      string   `yaml:"graph,omitempty"` // object id of a graph implementation
	Stub       string   `yaml:"stub,omitempty"`  // reason of an unimplemented entry
}

// LiveHeap is a heap built from a manifest.
type LiveHeap struct {
	Statics *heap.Statics
	Objects map[string]*heap.Object
}

// LoadHeap reads a heap manifest and builds it against img.
func LoadHeap(path string, img meta.Facade) (*LiveHeap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read heap manifest: %w", err)
	}
	h, err := ParseHeap(data, img)
	if err != nil {
		return nil, fmt.Errorf("heap manifest %s: %w", path, err)
	}
	return h, nil
}

// ParseHeap decodes a heap manifest and builds it against img.
func ParseHeap(data []byte, img meta.Facade) (*LiveHeap, error) {
	var m Heap
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse heap manifest: %w", err)
	}
	return m.Build(img)
}

// Build creates the described objects and static values. All objects are
// allocated before any field is assigned, so references may form cycles.
func (m *Heap) Build(img meta.Facade) (*LiveHeap, error) {
	b := &heapBuilder{
		res:  &resolver{image: img},
		live: &LiveHeap{Statics: heap.NewStatics(), Objects: make(map[string]*heap.Object, len(m.Objects))},
	}

	ids := make([]string, 0, len(m.Objects))
	for id := range m.Objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		decl := m.Objects[id]
		t, err := b.res.resolve(decl.Type, nil)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", id, err)
		}
		if t.IsValueType() || t.Kind == meta.KindPrimitive || t.IsGenericDefinition() {
			return nil, fmt.Errorf("object %s: %s is not an instantiable reference type", id, t.FullName())
		}
		o := heap.New(t)
		o.Identity = decl.Identity
		b.live.Objects[id] = o
	}
	for _, id := range ids {
		if err := b.fill(b.live.Objects[id], m.Objects[id].Fields); err != nil {
			return nil, fmt.Errorf("object %s: %w", id, err)
		}
	}

	for i, s := range m.Statics {
		t, err := b.res.resolve(s.Type, nil)
		if err != nil {
			return nil, fmt.Errorf("static %d: %w", i, err)
		}
		f := t.StaticField(s.Field)
		if f == nil {
			return nil, fmt.Errorf("static %d: type %s has no static field %q", i, t.FullName(), s.Field)
		}
		v, err := b.value(f.Type, &s.Value)
		if err != nil {
			return nil, fmt.Errorf("static %s: %w", f, err)
		}
		b.live.Statics.Set(f, v)
	}
	return b.live, nil
}

type heapBuilder struct {
	res  *resolver
	live *LiveHeap
}

func (b *heapBuilder) fill(o *heap.Object, fields map[string]yaml.Node) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	all := o.Type.InstanceFields()
	for _, name := range names {
		i := o.Type.FieldIndex(name)
		if i < 0 {
			return fmt.Errorf("type %s has no instance field %q", o.Type.FullName(), name)
		}
		node := fields[name]
		v, err := b.value(all[i].Type, &node)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		o.Slots[i] = v
	}
	return nil
}

// value builds the value of a slot declared as t.
func (b *heapBuilder) value(t *meta.Type, n *yaml.Node) (heap.Value, error) {
	switch n.Kind {
	case 0:
		return heap.Zero(t), nil
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			if t.IsValueType() && t.GenericDef != meta.Nullable {
				return nil, fmt.Errorf("null assigned to value type %s", t.FullName())
			}
			return nil, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return convertScalar(t, v)
	case yaml.SequenceNode:
		if t.Kind != meta.KindArray || t.Rank != 1 {
			return nil, fmt.Errorf("line %d: sequence assigned to %s", n.Line, t.FullName())
		}
		return b.items(t.Elem, []int{len(n.Content)}, n.Content)
	case yaml.MappingNode:
		return b.tagged(t, n)
	}
	return nil, fmt.Errorf("line %d: unsupported value", n.Line)
}

func (b *heapBuilder) tagged(t *meta.Type, n *yaml.Node) (heap.Value, error) {
	if len(n.Content) != 2 {
		return nil, fmt.Errorf("line %d: value mapping must have exactly one key", n.Line)
	}
	key, body := n.Content[0].Value, n.Content[1]

	switch key {
	case "ref":
		o, ok := b.live.Objects[body.Value]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown object %q", body.Line, body.Value)
		}
		return o, nil

	case "struct":
		var s structValue
		if err := body.Decode(&s); err != nil {
			return nil, err
		}
		st, err := b.declared(t, s.Type)
		if err != nil {
			return nil, err
		}
		if !st.IsValueType() || st.Kind == meta.KindPrimitive {
			return nil, fmt.Errorf("line %d: %s is not a struct", body.Line, st.FullName())
		}
		o := heap.New(st)
		if err := b.fill(o, s.Fields); err != nil {
			return nil, err
		}
		return o, nil

	case "array":
		var a arrayValue
		if err := body.Decode(&a); err != nil {
			return nil, err
		}
		elem := t.Elem
		if a.Elem != "" {
			var err error
			if elem, err = b.res.resolve(a.Elem, nil); err != nil {
				return nil, err
			}
		}
		if elem == nil {
			return nil, fmt.Errorf("line %d: array element type of %s is unknown", body.Line, t.FullName())
		}
		lengths := a.Lengths
		if len(lengths) == 0 {
			lengths = []int{len(a.Items)}
		}
		items := make([]*yaml.Node, len(a.Items))
		for i := range a.Items {
			items[i] = &a.Items[i]
		}
		return b.items(elem, lengths, items)

	case "delegate":
		var d delegateValue
		if err := body.Decode(&d); err != nil {
			return nil, err
		}
		dt, err := b.declared(t, d.Type)
		if err != nil {
			return nil, err
		}
		if dt.Kind != meta.KindDelegate {
			return nil, fmt.Errorf("line %d: %s is not a delegate type", body.Line, dt.FullName())
		}
		entries := make([]heap.Binding, 0, len(d.Entries))
		for i, e := range d.Entries {
			bind, err := b.binding(e)
			if err != nil {
				return nil, fmt.Errorf("delegate entry %d: %w", i, err)
			}
			entries = append(entries, bind)
		}
		return heap.NewDelegate(dt, entries...), nil
	}
	return nil, fmt.Errorf("line %d: unknown value kind %q", n.Line, key)
}

// declared returns the explicitly named type, or the declared slot type.
func (b *heapBuilder) declared(slot *meta.Type, name string) (*meta.Type, error) {
	if name == "" {
		return slot, nil
	}
	return b.res.resolve(name, nil)
}

func (b *heapBuilder) items(elem *meta.Type, lengths []int, nodes []*yaml.Node) (heap.Value, error) {
	arr := heap.NewArray(elem, lengths...)
	if len(nodes) > 0 && len(nodes) != len(arr.Items) {
		return nil, fmt.Errorf("array of %v holds %d items, got %d", lengths, len(arr.Items), len(nodes))
	}
	for i, n := range nodes {
		v, err := b.value(elem, n)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		arr.Items[i] = v
	}
	return arr, nil
}

func (b *heapBuilder) binding(e delegateEntry) (heap.Binding, error) {
	if e.Graph != "" {
		g, ok := b.live.Objects[e.Graph]
		if !ok {
			return heap.Binding{}, fmt.Errorf("unknown graph object %q", e.Graph)
		}
		return heap.BindGraphObject(g), nil
	}

	var (
		target  heap.Value
		owner   *meta.Type
		dynamic *heap.Object
	)
	switch {
	case e.Target != "":
		o, ok := b.live.Objects[e.Target]
		if !ok {
			return heap.Binding{}, fmt.Errorf("unknown target object %q", e.Target)
		}
		target, owner, dynamic = o, o.Type, o
	case e.Type != "":
		t, err := b.res.resolve(e.Type, nil)
		if err != nil {
			return heap.Binding{}, err
		}
		owner = t
	default:
		return heap.Binding{}, fmt.Errorf("entry needs a target, a type or a graph")
	}

	m := findMethod(owner, e.Method)
	if m == nil {
		return heap.Binding{}, fmt.Errorf("type %s has no method %q", owner.FullName(), e.Method)
	}
	if dynamic == nil && !m.Static && e.Stub == "" {
		return heap.Binding{}, fmt.Errorf("method %s is an instance method and needs a target", m)
	}
	if e.Stub != "" {
		return heap.Stub(m, e.Stub), nil
	}

	args := make([]*meta.Type, len(e.MethodArgs))
	for i, a := range e.MethodArgs {
		t, err := b.res.resolve(a, nil)
		if err != nil {
			return heap.Binding{}, fmt.Errorf("method argument %d: %w", i, err)
		}
		args[i] = t
	}
	if len(args) != len(m.GenericParams) {
		return heap.Binding{}, fmt.Errorf("method %s expects %d method arguments, got %d", m, len(m.GenericParams), len(args))
	}
	return heap.Bind(target, m, args...), nil
}

// findMethod searches t and its bases for the first method with the given
// name.
func findMethod(t *meta.Type, name string) *meta.Method {
	for ; t != nil; t = t.Base {
		if ms := t.MethodsNamed(name); len(ms) > 0 {
			return ms[0]
		}
	}
	return nil
}
