package manifest

import (
	"fmt"
	"math"

	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
)

// convertScalar converts a decoded YAML scalar to the slot representation
// of a value declared as t.
func convertScalar(t *meta.Type, v any) (heap.Value, error) {
	if v == nil {
		return heap.Zero(t), nil
	}
	switch {
	case t.Kind == meta.KindEnum:
		u := t.Underlying
		if u == nil {
			u = meta.Int32
		}
		return convertScalar(u, v)
	case t.GenericDef == meta.Nullable:
		return convertScalar(t.GenericArgs[0], v)
	}

	switch t {
	case meta.Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case meta.Int32:
		if n, ok := toInt64(v); ok {
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, fmt.Errorf("value %v overflows %s", v, t.FullName())
			}
			return int32(n), nil
		}
	case meta.Int64:
		if n, ok := toInt64(v); ok {
			return n, nil
		}
	case meta.Single:
		if f, ok := toFloat64(v); ok {
			return float32(f), nil
		}
	case meta.Double:
		if f, ok := toFloat64(v); ok {
			return f, nil
		}
	case meta.String:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case meta.Object:
		return box(v), nil
	}
	return nil, fmt.Errorf("cannot store %v (%T) in %s", v, v, t.FullName())
}

// box picks the slot representation of a scalar stored in an object slot.
func box(v any) heap.Value {
	if n, ok := v.(int); ok {
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n)
		}
		return int64(n)
	}
	return v
}

// toInt64 accepts the integer kinds the YAML decoder produces and integral
// floats.
func toInt64(v any) (int64, bool) {
	switch i := v.(type) {
	case int:
		return int64(i), true
	case int64:
		return i, true
	case int32:
		return int64(i), true
	case uint64:
		if i > math.MaxInt64 {
			return 0, false
		}
		return int64(i), true
	case float64:
		if i != math.Trunc(i) {
			return 0, false
		}
		return int64(i), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}
