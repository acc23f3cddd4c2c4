package finder

import "github.com/regolith-sim/regolith/internal/geometry"

// BruteForce checks every indexed point on each query. O(N) per query, but
// unbeatable for small point sets and the reference for correctness tests.
type BruteForce struct {
	points []geometry.Vec
}

func (b *BruteForce) Build(points []geometry.Vec) {
	b.points = points
}

func (b *BruteForce) Find(p geometry.Vec, radius float64, out []Neighbour) []Neighbour {
	r2 := radius * radius
	for i, q := range b.points {
		d2 := p.Sub(q).LenSq()
		if d2 <= r2 {
			out = append(out, Neighbour{Index: i, DistSq: d2})
		}
	}
	return out
}
