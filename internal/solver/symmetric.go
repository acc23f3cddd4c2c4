package solver

import (
	"math"

	"github.com/regolith-sim/regolith/internal/finder"
	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/sched"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// Symmetric visits every pair once and accumulates into both particles, so
// momentum is conserved pairwise by construction. Each worker writes into
// its own buffer; buffers are merged serially at the end of the step.
type Symmetric struct {
	noCollide
	core    *sphCore
	buffers []symBuffer
}

type symBuffer struct {
	dv      []geometry.Vec
	drho    []float64
	du      []float64
	divv    []float64
	curl    []geometry.Vec
	strain  []geometry.SymTensor
	neigh   []int32
}

func NewSymmetric(run *settings.Settings[settings.RunID], sch *sched.Scheduler) (*Symmetric, error) {
	core, err := newSPHCore(run, sch)
	if err != nil {
		return nil, err
	}
	return &Symmetric{core: core}, nil
}

func (sy *Symmetric) Create(st *storage.Storage, mat *storage.Material) error {
	return sy.core.create(st, mat)
}

func (sy *Symmetric) prepareBuffers(n int) {
	workers := sy.core.sch.Workers()
	if len(sy.buffers) != workers {
		sy.buffers = make([]symBuffer, workers)
	}
	stressOn := sy.core.forces.Has(int(settings.ForceSolidStress))
	for t := range sy.buffers {
		b := &sy.buffers[t]
		if len(b.dv) != n {
			b.dv = make([]geometry.Vec, n)
			b.drho = make([]float64, n)
			b.du = make([]float64, n)
			b.divv = make([]float64, n)
			b.curl = make([]geometry.Vec, n)
			b.neigh = make([]int32, n)
			if stressOn {
				b.strain = make([]geometry.SymTensor, n)
			}
		} else {
			for i := 0; i < n; i++ {
				b.dv[i] = geometry.Vec{}
				b.drho[i] = 0
				b.du[i] = 0
				b.divv[i] = 0
				b.curl[i] = geometry.Vec{}
				b.neigh[i] = 0
				if stressOn {
					b.strain[i] = geometry.SymTensor{}
				}
			}
		}
	}
}

func (sy *Symmetric) Integrate(st *storage.Storage, rs *stats.Stats) error {
	c := sy.core
	s, err := c.takeViews(st)
	if err != nil {
		return err
	}
	c.clearDerivatives(s)
	if err := c.updatePressure(st, s); err != nil {
		return err
	}
	c.find.Build(s.r)
	sy.prepareBuffers(len(s.r))
	if c.balsara && len(c.curl) != len(s.r) {
		c.curl = make([]geometry.Vec, len(s.r))
	}

	c.sch.ForThreads(len(s.r), func(thread, from, to int) {
		var scratch []finder.Neighbour
		b := &sy.buffers[thread]
		for i := from; i < to; i++ {
			scratch = c.find.Find(s.r[i], s.searchRad, scratch[:0])
			sy.evalPairs(s, b, i, scratch)
		}
	})

	sy.mergeBuffers(s)
	c.finishSmoothingLength(s)
	c.rheology(st, s)
	c.morrisMonaghanEvolution(s)
	c.externalForces(s, rs)
	c.updateBalsara(s)

	if rs != nil {
		for _, n := range s.neigh {
			rs.Accum(stats.NeighbourCounts, float64(n))
		}
	}
	return nil
}

// evalPairs accumulates every pair (i, j) with j < i into both particles.
func (sy *Symmetric) evalPairs(s *sphState, b *symBuffer, i int, neighbours []finder.Neighbour) {
	c := sy.core
	pressureOn := c.forces.Has(int(settings.ForcePressure))
	stressOn := c.forces.Has(int(settings.ForceSolidStress)) && s.stress != nil

	pi := s.p[i] / (s.rho[i] * s.rho[i])

	for _, n := range neighbours {
		j := n.Index
		if j >= i {
			continue
		}
		hbar := 0.5 * (s.h[i] + s.h[j])
		if n.DistSq > c.kernelRadius*c.kernelRadius*hbar*hbar {
			continue
		}
		b.neigh[i]++
		b.neigh[j]++
		dr := s.r[i].Sub(s.r[j])
		dvel := s.v[i].Sub(s.v[j])
		dist := math.Sqrt(n.DistSq)
		gradVec := dr.Scale(c.kern.Grad(dist, hbar))
		mi, mj := s.m[i], s.m[j]

		vdotw := geometry.Dot(dvel, gradVec)
		b.drho[i] += mj * vdotw
		b.drho[j] += mi * vdotw
		b.divv[i] -= mj / s.rho[j] * vdotw
		b.divv[j] -= mi / s.rho[i] * vdotw
		if c.balsara {
			rot := geometry.Cross(dvel, gradVec)
			b.curl[i] = b.curl[i].Sub(rot.Scale(mj / s.rho[j]))
			b.curl[j] = b.curl[j].Sub(rot.Scale(mi / s.rho[i]))
		}

		av := c.artificialViscosity(s, i, j, dr, dvel)
		if pressureOn {
			pj := s.p[j] / (s.rho[j] * s.rho[j])
			f := gradVec.Scale(pi + pj + av)
			b.dv[i] = b.dv[i].Sub(f.Scale(mj))
			b.dv[j] = b.dv[j].Add(f.Scale(mi))
			b.du[i] += mj * (pi + 0.5*av) * vdotw
			b.du[j] += mi * (pj + 0.5*av) * vdotw
		}
		if stressOn {
			si := s.stress[i].Scale(1 / (s.rho[i] * s.rho[i]))
			sj := s.stress[j].Scale(1 / (s.rho[j] * s.rho[j]))
			f := si.Add(sj).Apply(gradVec)
			b.dv[i] = b.dv[i].Add(f.Scale(mj))
			b.dv[j] = b.dv[j].Sub(f.Scale(mi))
			rate := geometry.SymmetricOuter(dvel, gradVec)
			b.strain[i] = b.strain[i].Sub(rate.Scale(mj / s.rho[j]))
			b.strain[j] = b.strain[j].Sub(rate.Scale(mi / s.rho[i]))
		}
	}
}

func (sy *Symmetric) mergeBuffers(s *sphState) {
	c := sy.core
	c.sch.ForChunks(len(s.r), func(from, to int) {
		for i := from; i < to; i++ {
			for t := range sy.buffers {
				b := &sy.buffers[t]
				s.dv[i] = s.dv[i].Add(b.dv[i])
				s.drho[i] += b.drho[i]
				s.du[i] += b.du[i]
				s.divv[i] += b.divv[i]
				s.neigh[i] += b.neigh[i]
				if c.balsara {
					c.curl[i] = c.curl[i].Add(b.curl[i])
				}
				if b.strain != nil && s.dstress != nil {
					s.dstress[i] = s.dstress[i].Add(b.strain[i])
				}
			}
		}
	})
}
