package upgrade

import (
	"fmt"
	"path"
	"strings"

	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
)

// Action is what a pattern upgrader does with the members it matches.
type Action string

const (
	// ActionSkip leaves the member untouched: default on a new instance,
	// the old value on an instance reinterpreted in place.
	ActionSkip Action = "skip"
	// ActionReset stores the default value.
	ActionReset Action = "reset"
	// ActionWeak keeps the reference only if the target is reached through
	// another member.
	ActionWeak Action = "weak"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionSkip, ActionReset, ActionWeak:
		return a, nil
	case "":
		return ActionSkip, nil
	}
	return "", fmt.Errorf("unknown upgrader action %q (valid: skip, reset, weak)", s)
}

// Pattern matches members by a glob over "Namespace.Type.Member".
type Pattern struct {
	name     string
	glob     string
	priority int
	action   Action
}

// NewPattern creates a pattern upgrader.
func NewPattern(name, glob string, priority int, action Action) (*Pattern, error) {
	if glob == "" {
		return nil, fmt.Errorf("upgrader %s: empty member pattern", name)
	}
	if _, err := path.Match(glob, ""); err != nil {
		return nil, fmt.Errorf("upgrader %s: bad member pattern %q: %w", name, glob, err)
	}
	return &Pattern{name: name, glob: glob, priority: priority, action: action}, nil
}

func (p *Pattern) Name() string   { return p.name }
func (p *Pattern) Priority() int  { return p.priority }
func (p *Pattern) Action() Action { return p.action }

// Applies matches the glob against either declaration of the member.
func (p *Pattern) Applies(oldField, newField *meta.Field) bool {
	return p.match(newField) || p.match(oldField)
}

func (p *Pattern) match(f *meta.Field) bool {
	if f == nil {
		return false
	}
	ok, _ := path.Match(p.glob, f.String())
	return ok
}

func (p *Pattern) Apply(ctx Context, s Slot) Outcome {
	switch p.action {
	case ActionReset:
		s.Set(heap.Zero(s.New.Type))
		return Defaulted
	case ActionWeak:
		s.Set(heap.Zero(s.New.Type))
		if s.Value != nil && ctx.Compatible(s.Old.Type, s.New.Type) {
			ctx.Forward(s.Value, s.Set)
		}
		return Forwarded
	}
	return Skipped
}

// Attribute names read by FromAssembly.
const (
	NamedMember   = "Member"
	NamedPriority = "Priority"
	NamedAction   = "Action"
)

// FromAssembly builds a pattern upgrader for every type of asm tagged with
// the attribute named attr. The attribute carries the member glob, an
// optional priority and an optional action.
func FromAssembly(asm *meta.Assembly, attr string) ([]Upgrader, error) {
	var out []Upgrader
	for _, t := range asm.Types() {
		a, ok := t.Attribute(attr)
		if !ok {
			continue
		}
		u, err := fromAttribute(t, a)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func fromAttribute(t *meta.Type, a meta.Attribute) (*Pattern, error) {
	glob, _ := a.NamedArg(NamedMember)
	if glob == nil && len(a.Args) > 0 {
		glob = a.Args[0]
	}
	member, ok := glob.(string)
	if !ok {
		return nil, fmt.Errorf("upgrader %s: %s must be a string", t.FullName(), NamedMember)
	}

	priority := 0
	if v, ok := a.NamedArg(NamedPriority); ok {
		n, ok := v.(int)
		if !ok {
			return nil, fmt.Errorf("upgrader %s: %s must be an int", t.FullName(), NamedPriority)
		}
		priority = n
	}

	action := ActionSkip
	if v, ok := a.NamedArg(NamedAction); ok {
		s, _ := v.(string)
		parsed, err := ParseAction(s)
		if err != nil {
			return nil, fmt.Errorf("upgrader %s: %w", t.FullName(), err)
		}
		action = parsed
	}
	return NewPattern(t.FullName(), member, priority, action)
}
