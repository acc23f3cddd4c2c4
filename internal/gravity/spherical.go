package gravity

import (
	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/sched"
	"github.com/regolith-sim/regolith/internal/stats"
)

// Spherical is the field of a single fixed central mass. Particles do not
// attract each other.
type Spherical struct {
	G      float64
	Mass   float64
	Center geometry.Vec

	positions []geometry.Vec
}

func (s *Spherical) Build(positions []geometry.Vec, masses []float64) {
	s.positions = positions
}

func (s *Spherical) EvalAll(sch *sched.Scheduler, acc []geometry.Vec, st *stats.Stats) {
	sch.For(len(s.positions), func(i int) {
		acc[i] = acc[i].Add(s.EvalPoint(s.positions[i]))
	})
}

func (s *Spherical) EvalPoint(p geometry.Vec) geometry.Vec {
	d := s.Center.Sub(p)
	r2 := d.LenSq()
	if r2 == 0 {
		return geometry.Vec{}
	}
	r := d.Len()
	return d.Scale(s.G * s.Mass / (r2 * r))
}
