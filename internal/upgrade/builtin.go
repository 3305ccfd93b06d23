package upgrade

import (
	"fmt"

	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/report"
)

// Copy is the default upgrader: it migrates the old value when the declared
// types stay compatible and leaves the default otherwise.
type Copy struct{}

func (Copy) Name() string                  { return "copy" }
func (Copy) Priority() int                 { return BuiltinPriority - 1 }
func (Copy) Applies(_, _ *meta.Field) bool { return true }

func (Copy) Apply(ctx Context, s Slot) Outcome {
	if !ctx.Compatible(s.Old.Type, s.New.Type) {
		if !heap.IsDefault(s.Old.Type, s.Value) {
			ctx.Report(report.Warning, s.Owner(), s.Path, fmt.Sprintf(
				"member type changed from %s to %s; value reset to default",
				s.Old.Type.FullName(), s.New.Type.FullName()))
		}
		s.Set(heap.Zero(s.New.Type))
		return Defaulted
	}
	s.Set(ctx.Claim(s.Value, s.Path))
	return Copied
}

// AutoSkip handles recoverable declaration changes, a widened enum or an
// added nullable wrapper, by leaving the default. It reports its own Warning
// in place of the generic type-change one.
type AutoSkip struct{}

func (AutoSkip) Name() string  { return "auto-skip" }
func (AutoSkip) Priority() int { return BuiltinPriority }

func (AutoSkip) Applies(oldField, newField *meta.Field) bool {
	_, ok := recoverableChange(oldField.Type, newField.Type)
	return ok
}

func (AutoSkip) Apply(ctx Context, s Slot) Outcome {
	reason, _ := recoverableChange(s.Old.Type, s.New.Type)
	if !heap.IsDefault(s.Old.Type, s.Value) {
		ctx.Report(report.Warning, s.Owner(), s.Path, "skipped: "+reason+"; value reset to default")
	}
	s.Set(heap.Zero(s.New.Type))
	return Skipped
}

func recoverableChange(o, n *meta.Type) (string, bool) {
	if o == nil || n == nil {
		return "", false
	}
	if o.Kind == meta.KindEnum && n.Kind == meta.KindEnum && o.FullName() == n.FullName() &&
		width(o.Underlying) < width(n.Underlying) {
		return fmt.Sprintf("enum %s widened from %s to %s",
			n.FullName(), o.Underlying.FullName(), n.Underlying.FullName()), true
	}
	if n.GenericDef == meta.Nullable && o.GenericDef != meta.Nullable &&
		len(n.GenericArgs) == 1 && n.GenericArgs[0].FullName() == o.FullName() {
		return fmt.Sprintf("%s wrapped as %s", o.FullName(), n.FullName()), true
	}
	return "", false
}

func width(t *meta.Type) int {
	switch t {
	case meta.Boolean:
		return 1
	case nil, meta.Int32, meta.Single:
		return 4
	case meta.Int64, meta.Double:
		return 8
	}
	return 0
}

// DelegateMember migrates delegate-typed members. A delegate whose type was
// replaced by a different delegate type with the same signature is retyped.
type DelegateMember struct{}

func (DelegateMember) Name() string  { return "delegate" }
func (DelegateMember) Priority() int { return BuiltinPriority }

func (DelegateMember) Applies(oldField, newField *meta.Field) bool {
	return oldField.Type.Definition().Kind == meta.KindDelegate &&
		newField.Type.Definition().Kind == meta.KindDelegate
}

func (DelegateMember) Apply(ctx Context, s Slot) Outcome {
	if ctx.Compatible(s.Old.Type, s.New.Type) {
		s.Set(ctx.Claim(s.Value, s.Path))
		return Copied
	}
	oldInvoke, newInvoke := s.Old.Type.Invoke(), s.New.Type.Invoke()
	if oldInvoke == nil || newInvoke == nil || !ctx.SameSignature(oldInvoke, newInvoke) {
		if s.Value != nil {
			ctx.Report(report.Warning, s.Owner(), s.Path, fmt.Sprintf(
				"delegate type changed from %s to incompatible %s; member reset",
				s.Old.Type.FullName(), s.New.Type.FullName()))
		}
		s.Set(nil)
		return Defaulted
	}
	switch d := ctx.Claim(s.Value, s.Path).(type) {
	case *heap.Delegate:
		s.Set(heap.NewDelegate(s.New.Type, d.Entries...))
	default:
		s.Set(d)
	}
	return Copied
}
