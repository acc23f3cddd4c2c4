// Package quantity defines the physical attributes carried by every particle
// and the buffer layout behind them. A quantity of first or second order owns
// one or two derivative arrays alongside its values, all kept at the same
// length as the particle count.
package quantity

import (
	"fmt"

	"github.com/regolith-sim/regolith/internal/geometry"
)

// Order determines how many derivative buffers a quantity carries.
type Order int

const (
	// Zero holds values only (mass, material flags).
	Zero Order = iota
	// First holds values and first derivatives (energy, density).
	First
	// Second holds values, first and second derivatives (position).
	Second
)

func (o Order) String() string {
	switch o {
	case Zero:
		return "zero"
	case First:
		return "first"
	case Second:
		return "second"
	}
	return fmt.Sprintf("Order(%d)", int(o))
}

// Derivative indexes a buffer within a quantity.
type Derivative int

const (
	Value Derivative = iota
	Dt
	D2t
)

// DataType tags the element type of a quantity's buffers.
type DataType int

const (
	Scalar DataType = iota
	Vector
	Tensor
	Index
)

func (d DataType) String() string {
	switch d {
	case Scalar:
		return "scalar"
	case Vector:
		return "vector"
	case Tensor:
		return "tensor"
	case Index:
		return "index"
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// Quantity is a set of parallel buffers of one element type. Buffers beyond
// the order are nil.
type Quantity struct {
	dtype DataType
	order Order

	scalars [3][]float64
	vectors [3][]geometry.Vec
	tensors [3][]geometry.SymTensor
	indices [3][]int32
}

// NewScalar creates a scalar quantity from values, zero-filling derivative
// buffers up to the order.
func NewScalar(order Order, values []float64) *Quantity {
	q := &Quantity{dtype: Scalar, order: order}
	q.scalars[Value] = values
	for d := Dt; Derivative(order) >= d; d++ {
		q.scalars[d] = make([]float64, len(values))
	}
	return q
}

// NewVector creates a vector quantity from values, zero-filling derivative
// buffers up to the order.
func NewVector(order Order, values []geometry.Vec) *Quantity {
	q := &Quantity{dtype: Vector, order: order}
	q.vectors[Value] = values
	for d := Dt; Derivative(order) >= d; d++ {
		q.vectors[d] = make([]geometry.Vec, len(values))
	}
	return q
}

// NewTensor creates a symmetric tensor quantity from values.
func NewTensor(order Order, values []geometry.SymTensor) *Quantity {
	q := &Quantity{dtype: Tensor, order: order}
	q.tensors[Value] = values
	for d := Dt; Derivative(order) >= d; d++ {
		q.tensors[d] = make([]geometry.SymTensor, len(values))
	}
	return q
}

// NewIndex creates an integer quantity. Index quantities are always zero
// order.
func NewIndex(values []int32) *Quantity {
	q := &Quantity{dtype: Index, order: Zero}
	q.indices[Value] = values
	return q
}

func (q *Quantity) Type() DataType { return q.dtype }
func (q *Quantity) Order() Order   { return q.order }

// Size returns the particle count of the value buffer.
func (q *Quantity) Size() int {
	switch q.dtype {
	case Scalar:
		return len(q.scalars[Value])
	case Vector:
		return len(q.vectors[Value])
	case Tensor:
		return len(q.tensors[Value])
	default:
		return len(q.indices[Value])
	}
}

// Scalars returns the buffer for the given derivative, or nil when the
// quantity is not scalar or the derivative exceeds its order.
func (q *Quantity) Scalars(d Derivative) []float64 {
	if q.dtype != Scalar || Derivative(q.order) < d {
		return nil
	}
	return q.scalars[d]
}

func (q *Quantity) Vectors(d Derivative) []geometry.Vec {
	if q.dtype != Vector || Derivative(q.order) < d {
		return nil
	}
	return q.vectors[d]
}

func (q *Quantity) Tensors(d Derivative) []geometry.SymTensor {
	if q.dtype != Tensor || Derivative(q.order) < d {
		return nil
	}
	return q.tensors[d]
}

func (q *Quantity) Indices() []int32 {
	if q.dtype != Index {
		return nil
	}
	return q.indices[Value]
}

// Clone deep-copies all buffers.
func (q *Quantity) Clone() *Quantity {
	out := &Quantity{dtype: q.dtype, order: q.order}
	for d := 0; d < 3; d++ {
		if q.scalars[d] != nil {
			out.scalars[d] = append([]float64(nil), q.scalars[d]...)
		}
		if q.vectors[d] != nil {
			out.vectors[d] = append([]geometry.Vec(nil), q.vectors[d]...)
		}
		if q.tensors[d] != nil {
			out.tensors[d] = append([]geometry.SymTensor(nil), q.tensors[d]...)
		}
		if q.indices[d] != nil {
			out.indices[d] = append([]int32(nil), q.indices[d]...)
		}
	}
	return out
}

// Compatible reports whether two quantities can be concatenated.
func (q *Quantity) Compatible(other *Quantity) bool {
	return q.dtype == other.dtype && q.order == other.order
}

// Append concatenates other's buffers onto q's. Callers must check
// Compatible first.
func (q *Quantity) Append(other *Quantity) {
	for d := 0; d < 3; d++ {
		if q.scalars[d] != nil {
			q.scalars[d] = append(q.scalars[d], other.scalars[d]...)
		}
		if q.vectors[d] != nil {
			q.vectors[d] = append(q.vectors[d], other.vectors[d]...)
		}
		if q.tensors[d] != nil {
			q.tensors[d] = append(q.tensors[d], other.tensors[d]...)
		}
		if q.indices[d] != nil {
			q.indices[d] = append(q.indices[d], other.indices[d]...)
		}
	}
}

// Remove deletes the particles at the given sorted ascending indices,
// preserving the order of survivors in every buffer.
func (q *Quantity) Remove(sorted []int) {
	for d := 0; d < 3; d++ {
		if q.scalars[d] != nil {
			q.scalars[d] = removeSlice(q.scalars[d], sorted)
		}
		if q.vectors[d] != nil {
			q.vectors[d] = removeSlice(q.vectors[d], sorted)
		}
		if q.tensors[d] != nil {
			q.tensors[d] = removeSlice(q.tensors[d], sorted)
		}
		if q.indices[d] != nil {
			q.indices[d] = removeSlice(q.indices[d], sorted)
		}
	}
}

func removeSlice[T any](s []T, sorted []int) []T {
	if len(sorted) == 0 {
		return s
	}
	out := s[:0]
	next := 0
	for i := range s {
		if next < len(sorted) && sorted[next] == i {
			next++
			continue
		}
		out = append(out, s[i])
	}
	return out
}
