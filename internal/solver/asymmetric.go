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

// Asymmetric accumulates each pair interaction into particle i only;
// iterations are independent and the particle loop parallelises without
// locks. Momentum is conserved only to the extent the kernel evaluation
// is symmetric in the pair.
type Asymmetric struct {
	noCollide
	core *sphCore
}

func NewAsymmetric(run *settings.Settings[settings.RunID], sch *sched.Scheduler) (*Asymmetric, error) {
	core, err := newSPHCore(run, sch)
	if err != nil {
		return nil, err
	}
	return &Asymmetric{core: core}, nil
}

func (a *Asymmetric) Create(st *storage.Storage, mat *storage.Material) error {
	return a.core.create(st, mat)
}

func (a *Asymmetric) Integrate(st *storage.Storage, rs *stats.Stats) error {
	c := a.core
	s, err := c.takeViews(st)
	if err != nil {
		return err
	}
	c.clearDerivatives(s)
	if err := c.updatePressure(st, s); err != nil {
		return err
	}
	c.find.Build(s.r)

	if c.balsara && len(c.curl) != len(s.r) {
		c.curl = make([]geometry.Vec, len(s.r))
	}

	c.sch.ForThreads(len(s.r), func(_, from, to int) {
		var scratch []finder.Neighbour
		for i := from; i < to; i++ {
			scratch = c.find.Find(s.r[i], s.searchRad, scratch[:0])
			a.evalParticle(s, i, scratch)
		}
	})

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

func (a *Asymmetric) evalParticle(s *sphState, i int, neighbours []finder.Neighbour) {
	c := a.core
	pressureOn := c.forces.Has(int(settings.ForcePressure))
	stressOn := c.forces.Has(int(settings.ForceSolidStress)) && s.stress != nil

	var acc geometry.Vec
	var drho, du, divv float64
	var curl geometry.Vec
	var strain geometry.SymTensor
	count := int32(0)

	pi := s.p[i] / (s.rho[i] * s.rho[i])
	var sigma geometry.SymTensor
	if stressOn {
		sigma = s.stress[i].Scale(1 / (s.rho[i] * s.rho[i]))
	}

	for _, n := range neighbours {
		j := n.Index
		if j == i {
			continue
		}
		hbar := 0.5 * (s.h[i] + s.h[j])
		if n.DistSq > c.kernelRadius*c.kernelRadius*hbar*hbar {
			continue
		}
		count++
		dr := s.r[i].Sub(s.r[j])
		dvel := s.v[i].Sub(s.v[j])
		dist := math.Sqrt(n.DistSq)
		grad := c.kern.Grad(dist, hbar)
		gradVec := dr.Scale(grad)
		mj := s.m[j]

		vdotw := geometry.Dot(dvel, gradVec)
		drho += mj * vdotw
		divv -= mj / s.rho[j] * vdotw
		if c.balsara {
			curl = curl.Sub(geometry.Cross(dvel, gradVec).Scale(mj / s.rho[j]))
		}

		av := c.artificialViscosity(s, i, j, dr, dvel)
		if pressureOn {
			pj := s.p[j] / (s.rho[j] * s.rho[j])
			acc = acc.Sub(gradVec.Scale(mj * (pi + pj + av)))
			du += mj * (pi + 0.5*av) * vdotw
		}
		if stressOn {
			sj := s.stress[j].Scale(1 / (s.rho[j] * s.rho[j]))
			acc = acc.Add(sigma.Add(sj).Apply(gradVec).Scale(mj))
			strain = strain.Sub(geometry.SymmetricOuter(dvel, gradVec).Scale(mj / s.rho[j]))
		}
	}

	s.dv[i] = s.dv[i].Add(acc)
	s.drho[i] = drho
	s.du[i] = du
	s.divv[i] = divv
	s.neigh[i] = count
	if c.balsara {
		c.curl[i] = curl
	}
	if stressOn {
		// strain rate; turned into a stress derivative by the rheology pass
		s.dstress[i] = strain
	}
}
