package heap

import (
	"errors"
	"fmt"

	"github.com/dbsmedya/hotload/internal/meta"
)

// ErrUnimplementedAfterReload is matched by every error returned from a stub
// binding.
var ErrUnimplementedAfterReload = errors.New("unimplemented after reload")

// UnimplementedError is returned when a stub binding is invoked.
type UnimplementedError struct {
	Method string
	Reason string
}

func (e *UnimplementedError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrUnimplementedAfterReload, e.Method, e.Reason)
}

// Unwrap lets errors.Is match ErrUnimplementedAfterReload.
func (e *UnimplementedError) Unwrap() error {
	return ErrUnimplementedAfterReload
}

// BindingKind selects how a delegate entry is executed.
type BindingKind int

const (
	// BindCompiled calls Method on Target.
	BindCompiled BindingKind = iota
	// BindGraph calls the Invoke method of a data-driven graph object.
	BindGraph
	// BindStub fails with ErrUnimplementedAfterReload.
	BindStub
)

// String returns a human-readable binding kind.
func (k BindingKind) String() string {
	switch k {
	case BindCompiled:
		return "compiled"
	case BindGraph:
		return "graph"
	case BindStub:
		return "stub"
	default:
		return "unknown"
	}
}

// Binding is one entry of a delegate invocation list.
type Binding struct {
	Kind       BindingKind
	Target     Value        // bound instance, nil for static methods
	Method     *meta.Method // compiled method; for stubs, the original declaration
	MethodArgs []*meta.Type // generic method arguments
	Reason     string       // stub reason
}

// Bind creates a compiled binding.
func Bind(target Value, m *meta.Method, methodArgs ...*meta.Type) Binding {
	return Binding{Kind: BindCompiled, Target: target, Method: m, MethodArgs: methodArgs}
}

// BindGraphObject creates a binding implemented by a graph object.
func BindGraphObject(graph *Object) Binding {
	return Binding{Kind: BindGraph, Target: graph}
}

// Stub creates a binding that fails when invoked.
func Stub(original *meta.Method, reason string) Binding {
	return Binding{Kind: BindStub, Method: original, Reason: reason}
}

// Name describes the binding for diagnostics.
func (b Binding) Name() string {
	switch {
	case b.Method != nil:
		return b.Method.String()
	case b.Kind == BindGraph:
		if o, ok := b.Target.(*Object); ok {
			return "graph " + o.Type.FullName()
		}
		return "graph"
	}
	return "<unbound>"
}

// Invoke executes the binding.
func (b Binding) Invoke(args ...Value) (Value, error) {
	switch b.Kind {
	case BindStub:
		return nil, &UnimplementedError{Method: b.Name(), Reason: b.Reason}
	case BindGraph:
		g, ok := b.Target.(*Object)
		if !ok {
			return nil, fmt.Errorf("graph binding has no graph object")
		}
		invoke := g.Type.MethodsNamed("Invoke")
		if len(invoke) == 0 || invoke[0].Body == nil {
			return nil, fmt.Errorf("graph type %s has no Invoke implementation", g.Type.FullName())
		}
		return invoke[0].Body(g, args)
	}
	if b.Method == nil {
		return nil, fmt.Errorf("binding has no method")
	}
	m := b.Method
	if o, ok := b.Target.(*Object); ok && m.Virtual {
		m = meta.FindOverride(o.Type, m)
	}
	if m.Body == nil {
		return nil, fmt.Errorf("method %s has no body", m)
	}
	return m.Body(b.Target, args)
}

// Delegate is a single or multicast delegate instance.
type Delegate struct {
	Type    *meta.Type
	Entries []Binding
}

// NewDelegate creates a delegate of type t.
func NewDelegate(t *meta.Type, entries ...Binding) *Delegate {
	return &Delegate{Type: t, Entries: entries}
}

// IsMulticast reports whether d has more than one entry.
func (d *Delegate) IsMulticast() bool {
	return len(d.Entries) > 1
}

// Invoke calls every entry in order and returns the last result. The first
// failing entry stops the invocation.
func (d *Delegate) Invoke(args ...Value) (Value, error) {
	var last Value
	for i, e := range d.Entries {
		v, err := e.Invoke(args...)
		if err != nil {
			return nil, fmt.Errorf("delegate entry %d (%s): %w", i, e.Name(), err)
		}
		last = v
	}
	return last, nil
}
