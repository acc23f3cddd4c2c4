package gravity

import (
	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/sched"
	"github.com/regolith-sim/regolith/internal/stats"
)

// BruteForce sums every pair directly. Exact, O(N^2), the reference the
// tree solver is validated against.
type BruteForce struct {
	G float64

	positions []geometry.Vec
	masses    []float64
}

func NewBruteForce(g float64) *BruteForce {
	return &BruteForce{G: g}
}

func (b *BruteForce) Build(positions []geometry.Vec, masses []float64) {
	b.positions = positions
	b.masses = masses
}

func (b *BruteForce) EvalAll(sch *sched.Scheduler, acc []geometry.Vec, st *stats.Stats) {
	n := len(b.positions)
	sch.For(n, func(i int) {
		p := b.positions[i]
		a := geometry.Vec{}
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			d := b.positions[j].Sub(p)
			r2 := d.LenSq()
			if r2 == 0 {
				continue
			}
			r := d.Len()
			a = a.Add(d.Scale(b.G * b.masses[j] / (r2 * r)))
		}
		acc[i] = acc[i].Add(a)
	})
}

func (b *BruteForce) EvalPoint(p geometry.Vec) geometry.Vec {
	a := geometry.Vec{}
	for j := range b.positions {
		d := b.positions[j].Sub(p)
		r2 := d.LenSq()
		if r2 == 0 {
			continue
		}
		r := d.Len()
		a = a.Add(d.Scale(b.G * b.masses[j] / (r2 * r)))
	}
	return a
}
