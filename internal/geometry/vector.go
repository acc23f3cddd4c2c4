// Package geometry provides the small fixed-size linear algebra used
// throughout the engine: 3-vectors, symmetric tensors and closed intervals.
package geometry

import (
	"fmt"
	"math"
)

// Vec is a Cartesian 3-vector.
type Vec [3]float64

func V(x, y, z float64) Vec { return Vec{x, y, z} }

func (v Vec) Add(o Vec) Vec      { return Vec{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec) Sub(o Vec) Vec      { return Vec{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }
func (v Vec) Scale(s float64) Vec { return Vec{v[0] * s, v[1] * s, v[2] * s} }
func (v Vec) Neg() Vec           { return Vec{-v[0], -v[1], -v[2]} }

func Dot(a, b Vec) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func Cross(a, b Vec) Vec {
	return Vec{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func (v Vec) LenSq() float64 { return Dot(v, v) }
func (v Vec) Len() float64   { return math.Sqrt(v.LenSq()) }

// Normalized returns v scaled to unit length. Zero vectors are returned
// unchanged.
func (v Vec) Normalized() Vec {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

func (v Vec) IsFinite() bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return false
		}
	}
	return true
}

// MaxElement returns the largest component.
func (v Vec) MaxElement() float64 {
	return math.Max(v[0], math.Max(v[1], v[2]))
}

// MinElement returns the smallest component.
func (v Vec) MinElement() float64 {
	return math.Min(v[0], math.Min(v[1], v[2]))
}

// Abs returns the component-wise absolute value.
func (v Vec) Abs() Vec {
	return Vec{math.Abs(v[0]), math.Abs(v[1]), math.Abs(v[2])}
}

// Clamp limits each component to the interval r.
func (v Vec) Clamp(r Interval) Vec {
	return Vec{r.Clamp(v[0]), r.Clamp(v[1]), r.Clamp(v[2])}
}

func (v Vec) String() string {
	return fmt.Sprintf("%v %v %v", v[0], v[1], v[2])
}
