package finder

import (
	"math"

	"github.com/regolith-sim/regolith/internal/geometry"
)

// UniformGrid is a dense regular grid over the bounding box of the point
// set, with roughly one point per cell on average.
type UniformGrid struct {
	points []geometry.Vec
	lower  geometry.Vec
	cell   geometry.Vec // cell extents per axis
	dims   [3]int
	cells  [][]int32
}

func (g *UniformGrid) Build(points []geometry.Vec) {
	g.points = points
	n := len(points)
	if n == 0 {
		g.cells = nil
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
	g.lower = lower

	side := int(math.Cbrt(float64(n)))
	if side < 1 {
		side = 1
	}
	for c := 0; c < 3; c++ {
		g.dims[c] = side
		extent := upper[c] - lower[c]
		if extent <= 0 {
			g.dims[c] = 1
			g.cell[c] = 1
			continue
		}
		// widen slightly so the upper bound maps inside the last cell
		g.cell[c] = extent * (1 + 1e-10) / float64(side)
	}

	total := g.dims[0] * g.dims[1] * g.dims[2]
	g.cells = make([][]int32, total)
	for i, p := range points {
		c := g.cellOf(p)
		g.cells[c] = append(g.cells[c], int32(i))
	}
}

func (g *UniformGrid) clampIndex(p geometry.Vec) [3]int {
	var idx [3]int
	for c := 0; c < 3; c++ {
		i := int(math.Floor((p[c] - g.lower[c]) / g.cell[c]))
		if i < 0 {
			i = 0
		}
		if i >= g.dims[c] {
			i = g.dims[c] - 1
		}
		idx[c] = i
	}
	return idx
}

func (g *UniformGrid) cellOf(p geometry.Vec) int {
	idx := g.clampIndex(p)
	return (idx[2]*g.dims[1]+idx[1])*g.dims[0] + idx[0]
}

func (g *UniformGrid) Find(p geometry.Vec, radius float64, out []Neighbour) []Neighbour {
	if len(g.cells) == 0 {
		return out
	}
	r := geometry.V(radius, radius, radius)
	lo := g.clampIndex(p.Sub(r))
	hi := g.clampIndex(p.Add(r))
	r2 := radius * radius
	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				cell := g.cells[(z*g.dims[1]+y)*g.dims[0]+x]
				for _, i := range cell {
					d2 := p.Sub(g.points[i]).LenSq()
					if d2 <= r2 {
						out = append(out, Neighbour{Index: int(i), DistSq: d2})
					}
				}
			}
		}
	}
	return out
}
