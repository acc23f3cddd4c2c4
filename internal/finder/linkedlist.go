package finder

import (
	"math"

	"github.com/regolith-sim/regolith/internal/geometry"
)

// LinkedList is a regular grid storing its cell contents as intrusive
// chains: one head index per cell, one next index per point. Rebuilding
// after small movements reuses both arrays without reallocation.
type LinkedList struct {
	points []geometry.Vec
	lower  geometry.Vec
	cell   geometry.Vec
	dims   [3]int
	heads  []int32
	next   []int32
}

func (l *LinkedList) Build(points []geometry.Vec) {
	l.points = points
	n := len(points)
	if n == 0 {
		l.heads = l.heads[:0]
		return
	}

	lower := points[0]
	upper := points[0]
	for _, p := range points[1:] {
		for c := 0; c < 3; c++ {
			lower[c] = math.Min(lower[c], p[c])
			upper[c] = math.Max(upper[c], p[c])
		}
	}
	l.lower = lower

	side := int(math.Cbrt(float64(n)))
	if side < 1 {
		side = 1
	}
	for c := 0; c < 3; c++ {
		l.dims[c] = side
		extent := upper[c] - lower[c]
		if extent <= 0 {
			l.dims[c] = 1
			l.cell[c] = 1
			continue
		}
		// widen slightly so the upper bound maps inside the last cell
		l.cell[c] = extent * (1 + 1e-10) / float64(side)
	}

	total := l.dims[0] * l.dims[1] * l.dims[2]
	if cap(l.heads) < total {
		l.heads = make([]int32, total)
	}
	l.heads = l.heads[:total]
	for i := range l.heads {
		l.heads[i] = -1
	}
	if cap(l.next) < n {
		l.next = make([]int32, n)
	}
	l.next = l.next[:n]
	for i, p := range points {
		c := l.cellOf(p)
		l.next[i] = l.heads[c]
		l.heads[c] = int32(i)
	}
}

// Rebuild rebins the points into the existing chains.
func (l *LinkedList) Rebuild(points []geometry.Vec) {
	l.Build(points)
}

func (l *LinkedList) clampIndex(p geometry.Vec) [3]int {
	var idx [3]int
	for c := 0; c < 3; c++ {
		i := int(math.Floor((p[c] - l.lower[c]) / l.cell[c]))
		if i < 0 {
			i = 0
		}
		if i >= l.dims[c] {
			i = l.dims[c] - 1
		}
		idx[c] = i
	}
	return idx
}

func (l *LinkedList) cellOf(p geometry.Vec) int {
	idx := l.clampIndex(p)
	return (idx[2]*l.dims[1]+idx[1])*l.dims[0] + idx[0]
}

func (l *LinkedList) Find(p geometry.Vec, radius float64, out []Neighbour) []Neighbour {
	if len(l.heads) == 0 {
		return out
	}
	r := geometry.V(radius, radius, radius)
	lo := l.clampIndex(p.Sub(r))
	hi := l.clampIndex(p.Add(r))
	r2 := radius * radius
	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				for i := l.heads[(z*l.dims[1]+y)*l.dims[0]+x]; i >= 0; i = l.next[i] {
					d2 := p.Sub(l.points[i]).LenSq()
					if d2 <= r2 {
						out = append(out, Neighbour{Index: int(i), DistSq: d2})
					}
				}
			}
		}
	}
	return out
}
