package heap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dbsmedya/hotload/internal/meta"
)

// Array is a single or multi-dimensional array stored in row-major order.
type Array struct {
	Elem    *meta.Type
	Lengths []int
	Items   []Value
}

// NewArray allocates an array with zero-initialized elements.
func NewArray(elem *meta.Type, lengths ...int) *Array {
	if len(lengths) == 0 {
		lengths = []int{0}
	}
	n := 1
	for _, l := range lengths {
		n *= l
	}
	a := &Array{Elem: elem, Lengths: append([]int(nil), lengths...), Items: make([]Value, n)}
	for i := range a.Items {
		a.Items[i] = Zero(elem)
	}
	return a
}

// ArrayOf builds a one-dimensional array from values.
func ArrayOf(elem *meta.Type, values ...Value) *Array {
	return &Array{Elem: elem, Lengths: []int{len(values)}, Items: values}
}

// Type returns the array type descriptor.
func (a *Array) Type() *meta.Type {
	return meta.ArrayOf(a.Elem, len(a.Lengths))
}

// Rank returns the number of dimensions.
func (a *Array) Rank() int {
	return len(a.Lengths)
}

// Len returns the total number of elements.
func (a *Array) Len() int {
	return len(a.Items)
}

// Offset converts a multi-dimensional index to the flat item offset.
func (a *Array) Offset(index ...int) (int, error) {
	if len(index) != len(a.Lengths) {
		return 0, fmt.Errorf("array of rank %d indexed with %d indices", len(a.Lengths), len(index))
	}
	off := 0
	for d, i := range index {
		if i < 0 || i >= a.Lengths[d] {
			return 0, fmt.Errorf("index %d out of range for dimension %d (length %d)", i, d, a.Lengths[d])
		}
		off = off*a.Lengths[d] + i
	}
	return off, nil
}

// At returns the element at the given index.
func (a *Array) At(index ...int) Value {
	off, err := a.Offset(index...)
	if err != nil {
		return nil
	}
	return a.Items[off]
}

// Put stores an element at the given index.
func (a *Array) Put(v Value, index ...int) error {
	off, err := a.Offset(index...)
	if err != nil {
		return err
	}
	a.Items[off] = v
	return nil
}

// IndexLabel formats the flat offset as a breadcrumb, e.g. "[3]" or "[1,2]".
func (a *Array) IndexLabel(off int) string {
	if len(a.Lengths) <= 1 {
		return "[" + strconv.Itoa(off) + "]"
	}
	idx := make([]string, len(a.Lengths))
	for d := len(a.Lengths) - 1; d >= 0; d-- {
		l := a.Lengths[d]
		if l == 0 {
			idx[d] = "0"
			continue
		}
		idx[d] = strconv.Itoa(off % l)
		off /= l
	}
	return "[" + strings.Join(idx, ",") + "]"
}
