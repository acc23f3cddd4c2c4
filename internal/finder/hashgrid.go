package finder

import (
	"math"

	"github.com/regolith-sim/regolith/internal/geometry"
)

type gridKey struct {
	x, y, z int32
}

// HashGrid is a sparse grid backed by a hash map, suited for point sets
// with large empty regions where a dense grid would waste memory.
type HashGrid struct {
	// CellSize overrides the derived cell size when positive.
	CellSize float64

	points []geometry.Vec
	size   float64
	cells  map[gridKey][]int32
}

func (h *HashGrid) Build(points []geometry.Vec) {
	h.points = points
	h.cells = make(map[gridKey][]int32, len(points))
	h.size = h.CellSize
	if h.size <= 0 {
		h.size = derivedCellSize(points)
	}
	for i, p := range points {
		k := h.keyOf(p)
		h.cells[k] = append(h.cells[k], int32(i))
	}
}

// derivedCellSize matches the mean inter-particle spacing so that cells
// hold a handful of points each.
func derivedCellSize(points []geometry.Vec) float64 {
	if len(points) == 0 {
		return 1
	}
	lower := points[0]
	upper := points[0]
	for _, p := range points[1:] {
		for c := 0; c < 3; c++ {
			lower[c] = math.Min(lower[c], p[c])
			upper[c] = math.Max(upper[c], p[c])
		}
	}
	volume := 1.0
	for c := 0; c < 3; c++ {
		volume *= math.Max(upper[c]-lower[c], 1e-10)
	}
	return 2 * math.Cbrt(volume/float64(len(points)))
}

func (h *HashGrid) keyOf(p geometry.Vec) gridKey {
	return gridKey{
		x: int32(math.Floor(p[0] / h.size)),
		y: int32(math.Floor(p[1] / h.size)),
		z: int32(math.Floor(p[2] / h.size)),
	}
}

func (h *HashGrid) Find(p geometry.Vec, radius float64, out []Neighbour) []Neighbour {
	if len(h.cells) == 0 {
		return out
	}
	lo := h.keyOf(p.Sub(geometry.V(radius, radius, radius)))
	hi := h.keyOf(p.Add(geometry.V(radius, radius, radius)))
	r2 := radius * radius
	for z := lo.z; z <= hi.z; z++ {
		for y := lo.y; y <= hi.y; y++ {
			for x := lo.x; x <= hi.x; x++ {
				for _, i := range h.cells[gridKey{x, y, z}] {
					d2 := p.Sub(h.points[i]).LenSq()
					if d2 <= r2 {
						out = append(out, Neighbour{Index: int(i), DistSq: d2})
					}
				}
			}
		}
	}
	return out
}
