package solver

import (
	"errors"
	"math"

	"github.com/regolith-sim/regolith/internal/eos"
	"github.com/regolith-sim/regolith/internal/finder"
	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/gravity"
	"github.com/regolith-sim/regolith/internal/kernel"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/sched"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

var ErrNotImplemented = errors.New("solver: option not implemented")

const avEps = 0.01

// sphCore carries the configuration and scratch state shared by the SPH
// solver variants.
type sphCore struct {
	sch    *sched.Scheduler
	kern   kernel.Kernel
	find   finder.Finder
	grav   gravity.Gravity
	forces settings.FlagSet

	kernelRadius float64
	hMin         float64

	avKind  settings.ArtificialViscosity
	avAlpha float64
	avBeta  float64
	balsara bool

	slFlags        settings.FlagSet
	neighbourRange geometry.Interval
	enforcing      float64

	constantAcc geometry.Vec
	frameOmega  geometry.Vec

	// balsara factors of the previous step; ones on the first step
	balsaraFactor []float64
	curl          []geometry.Vec
}

func newSPHCore(run *settings.Settings[settings.RunID], sch *sched.Scheduler) (*sphCore, error) {
	find, err := finder.FromSettings(run)
	if err != nil {
		return nil, err
	}
	forces, err := settings.GetFlags(run, settings.SphSolverForces)
	if err != nil {
		return nil, err
	}
	avKind, err := settings.GetEnum[settings.ArtificialViscosity](run, settings.SphAVType)
	if err != nil {
		return nil, err
	}
	slFlags, err := settings.GetFlags(run, settings.SphSmoothingLength)
	if err != nil {
		return nil, err
	}
	c := &sphCore{
		sch:            sch,
		kern:           kernel.CubicSpline{},
		find:           find,
		forces:         forces,
		kernelRadius:   settings.MustGet[float64](run, settings.SphKernelRadius),
		hMin:           settings.MustGet[float64](run, settings.SphSmoothingLengthMin),
		avKind:         avKind,
		avAlpha:        settings.MustGet[float64](run, settings.SphAVAlpha),
		avBeta:         settings.MustGet[float64](run, settings.SphAVBeta),
		balsara:        settings.MustGet[bool](run, settings.SphAVUseBalsara),
		slFlags:        slFlags,
		neighbourRange: settings.MustGet[geometry.Interval](run, settings.SphNeighbourRange),
		enforcing:      settings.MustGet[float64](run, settings.SphNeighbourEnforcing),
		constantAcc:    settings.MustGet[geometry.Vec](run, settings.SphConstantAcceleration),
		frameOmega:     settings.MustGet[geometry.Vec](run, settings.SphFrameAngularFrequency),
	}
	if c.forces.Has(int(settings.ForceSurfaceTension)) {
		return nil, ErrNotImplemented
	}
	if c.avKind == settings.AVRiemann && c.balsara {
		// the Riemann viscosity has no alpha to gate
		return nil, ErrNotImplemented
	}
	if c.forces.Has(int(settings.ForceSelfGravity)) {
		c.grav, err = gravity.FromSettings(run)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// create allocates the quantities evolved by the SPH solvers on the body
// covered by the material, and records the quantity ranges consumed by the
// derivative timestep criterion.
func (c *sphCore) create(st *storage.Storage, mat *storage.Material) error {
	n := st.ParticleCount()
	rho0 := settings.MustGet[float64](mat.Params, settings.BodyDensity)
	u0 := settings.MustGet[float64](mat.Params, settings.BodyEnergy)

	if !st.Has(quantity.Density) {
		st.InsertScalar(quantity.Density, quantity.First, filled(n, rho0))
		st.InsertScalar(quantity.Energy, quantity.First, filled(n, u0))
		st.InsertScalar(quantity.Pressure, quantity.Zero, make([]float64, n))
		st.InsertScalar(quantity.SoundSpeed, quantity.Zero, make([]float64, n))
		st.InsertScalar(quantity.VelocityDivergence, quantity.Zero, make([]float64, n))
		st.InsertIndex(quantity.NeighbourCount, make([]int32, n))
	}
	if c.forces.Has(int(settings.ForceSolidStress)) && !st.Has(quantity.DeviatoricStress) {
		s0 := settings.MustGet[geometry.TracelessTensor](mat.Params, settings.BodyStressTensor)
		st.InsertTensor(quantity.DeviatoricStress, quantity.First, filled(n, s0.Full()))
		st.InsertScalar(quantity.Damage, quantity.First, make([]float64, n))
	}
	if c.avKind == settings.AVMorrisMonaghan && !st.Has(quantity.AVAlpha) {
		st.InsertScalar(quantity.AVAlpha, quantity.First, filled(n, c.avAlpha))
	}

	mat.SetRange(quantity.Density,
		settings.MustGet[geometry.Interval](mat.Params, settings.BodyDensityRange),
		settings.MustGet[float64](mat.Params, settings.BodyDensityMin))
	mat.SetRange(quantity.Energy,
		settings.MustGet[geometry.Interval](mat.Params, settings.BodyEnergyRange),
		settings.MustGet[float64](mat.Params, settings.BodyEnergyMin))
	if c.forces.Has(int(settings.ForceSolidStress)) {
		mat.SetRange(quantity.Damage,
			settings.MustGet[geometry.Interval](mat.Params, settings.BodyDamageRange),
			settings.MustGet[float64](mat.Params, settings.BodyDamageMin))
	}
	return nil
}

func filled[T any](n int, v T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// sphState gathers the views of one Integrate call.
type sphState struct {
	r, v, dv   []geometry.Vec
	m          []float64
	rho, drho  []float64
	u, du      []float64
	p, cs      []float64
	h, dh      []float64
	divv       []float64
	neigh      []int32
	stress     []geometry.SymTensor
	dstress    []geometry.SymTensor
	alpha      []float64
	dalpha     []float64
	searchRad  float64
}

func (c *sphCore) takeViews(st *storage.Storage) (*sphState, error) {
	s := &sphState{}
	var err error
	if s.r, err = st.Vectors(quantity.Position, quantity.Value); err != nil {
		return nil, err
	}
	if s.v, err = st.Vectors(quantity.Position, quantity.Dt); err != nil {
		return nil, err
	}
	if s.dv, err = st.Vectors(quantity.Position, quantity.D2t); err != nil {
		return nil, err
	}
	if s.m, err = st.Scalars(quantity.Mass, quantity.Value); err != nil {
		return nil, err
	}
	if s.rho, err = st.Scalars(quantity.Density, quantity.Value); err != nil {
		return nil, err
	}
	if s.drho, err = st.Scalars(quantity.Density, quantity.Dt); err != nil {
		return nil, err
	}
	if s.u, err = st.Scalars(quantity.Energy, quantity.Value); err != nil {
		return nil, err
	}
	if s.du, err = st.Scalars(quantity.Energy, quantity.Dt); err != nil {
		return nil, err
	}
	if s.p, err = st.Scalars(quantity.Pressure, quantity.Value); err != nil {
		return nil, err
	}
	if s.cs, err = st.Scalars(quantity.SoundSpeed, quantity.Value); err != nil {
		return nil, err
	}
	if s.h, err = st.Scalars(quantity.SmoothingLength, quantity.Value); err != nil {
		return nil, err
	}
	if s.dh, err = st.Scalars(quantity.SmoothingLength, quantity.Dt); err != nil {
		return nil, err
	}
	if s.divv, err = st.Scalars(quantity.VelocityDivergence, quantity.Value); err != nil {
		return nil, err
	}
	if s.neigh, err = st.Indices(quantity.NeighbourCount); err != nil {
		return nil, err
	}
	if st.Has(quantity.DeviatoricStress) {
		if s.stress, err = st.Tensors(quantity.DeviatoricStress, quantity.Value); err != nil {
			return nil, err
		}
		if s.dstress, err = st.Tensors(quantity.DeviatoricStress, quantity.Dt); err != nil {
			return nil, err
		}
	}
	if st.Has(quantity.AVAlpha) {
		if s.alpha, err = st.Scalars(quantity.AVAlpha, quantity.Value); err != nil {
			return nil, err
		}
		if s.dalpha, err = st.Scalars(quantity.AVAlpha, quantity.Dt); err != nil {
			return nil, err
		}
	}

	maxH := c.hMin
	for _, h := range s.h {
		maxH = math.Max(maxH, h)
	}
	s.searchRad = c.kernelRadius * maxH
	return s, nil
}

// updatePressure evaluates the equation of state of every partition and
// clamps density and energy into their material ranges.
func (c *sphCore) updatePressure(st *storage.Storage, s *sphState) error {
	for _, part := range st.Partitions() {
		e, err := eos.FromMaterial(part.Material.Params)
		if err != nil {
			return err
		}
		rhoRange := part.Material.Range(quantity.Density)
		uRange := part.Material.Range(quantity.Energy)
		from, to := part.From, part.To
		c.sch.ForChunks(to-from, func(lo, hi int) {
			for i := from + lo; i < from+hi; i++ {
				s.rho[i], s.drho[i] = geometry.ClampWithDerivative(s.rho[i], s.drho[i], rhoRange)
				s.u[i], s.du[i] = geometry.ClampWithDerivative(s.u[i], s.du[i], uRange)
				s.p[i], s.cs[i] = e.Evaluate(s.rho[i], s.u[i])
			}
		})
	}
	return nil
}

// clearDerivatives zeroes the accumulated highest derivatives.
func (c *sphCore) clearDerivatives(s *sphState) {
	c.sch.ForChunks(len(s.r), func(from, to int) {
		for i := from; i < to; i++ {
			s.dv[i] = geometry.Vec{}
			s.drho[i] = 0
			s.du[i] = 0
			s.dh[i] = 0
			if s.dstress != nil {
				s.dstress[i] = geometry.SymTensor{}
			}
			if s.dalpha != nil {
				s.dalpha[i] = 0
			}
		}
	})
}

// artificialViscosity returns the AV term of the pair and the factor of the
// viscous heating, zero for receding pairs.
func (c *sphCore) artificialViscosity(s *sphState, i, j int, dr, dvel geometry.Vec) float64 {
	vr := geometry.Dot(dvel, dr)
	if vr >= 0 || c.avKind == settings.AVNone {
		return 0
	}
	hbar := 0.5 * (s.h[i] + s.h[j])
	csbar := 0.5 * (s.cs[i] + s.cs[j])
	rhobar := 0.5 * (s.rho[i] + s.rho[j])
	mu := hbar * vr / (dr.LenSq() + avEps*hbar*hbar)

	switch c.avKind {
	case settings.AVRiemann:
		vsig := csbar - 1.5*mu
		return -c.avAlpha * vsig * mu / rhobar
	case settings.AVMorrisMonaghan:
		abar := 0.5 * (s.alpha[i] + s.alpha[j])
		bbar := 2 * abar
		return (-abar*csbar*mu + bbar*mu*mu) / rhobar
	default:
		alpha, beta := c.avAlpha, c.avBeta
		if c.balsara && c.balsaraFactor != nil {
			f := 0.5 * (c.balsaraFactor[i] + c.balsaraFactor[j])
			alpha *= f
			beta *= f
		}
		return (-alpha*csbar*mu + beta*mu*mu) / rhobar
	}
}

// finishSmoothingLength derives dh from the velocity divergence and the
// neighbour-enforcing term.
func (c *sphCore) finishSmoothingLength(s *sphState) {
	continuity := c.slFlags.Has(settings.SmoothingLengthContinuity)
	enforcing := c.slFlags.Has(settings.SmoothingLengthNeighbourEnforcing)
	c.sch.ForChunks(len(s.h), func(from, to int) {
		for i := from; i < to; i++ {
			if continuity {
				s.dh[i] += s.h[i] / 3 * s.divv[i]
			}
			if enforcing {
				n := float64(s.neigh[i])
				switch {
				case n < c.neighbourRange.Lo:
					s.dh[i] += c.enforcing * s.cs[i]
				case n > c.neighbourRange.Hi:
					s.dh[i] -= c.enforcing * s.cs[i]
				}
			}
			if s.h[i] < c.hMin {
				s.h[i] = c.hMin
				if s.dh[i] < 0 {
					s.dh[i] = 0
				}
			}
		}
	})
}

// externalForces adds gravity, the constant acceleration and the inertial
// forces of a rotating frame.
func (c *sphCore) externalForces(s *sphState, rs *stats.Stats) {
	if c.grav != nil {
		c.grav.Build(s.r, s.m)
		c.grav.EvalAll(c.sch, s.dv, rs)
	}
	hasConst := c.forces.Has(int(settings.ForceConstantAcceleration)) && c.constantAcc != geometry.Vec{}
	hasFrame := c.forces.Has(int(settings.ForceInertial)) && c.frameOmega != geometry.Vec{}
	if !hasConst && !hasFrame {
		return
	}
	c.sch.ForChunks(len(s.r), func(from, to int) {
		for i := from; i < to; i++ {
			if hasConst {
				s.dv[i] = s.dv[i].Add(c.constantAcc)
			}
			if hasFrame {
				coriolis := geometry.Cross(c.frameOmega, s.v[i]).Scale(-2)
				centrifugal := geometry.Cross(c.frameOmega, geometry.Cross(c.frameOmega, s.r[i])).Neg()
				s.dv[i] = s.dv[i].Add(coriolis).Add(centrifugal)
			}
		}
	})
}

// updateBalsara stores the switch factors computed from this step's
// divergence and curl for use in the next step.
func (c *sphCore) updateBalsara(s *sphState) {
	if !c.balsara {
		return
	}
	if len(c.balsaraFactor) != len(s.r) {
		c.balsaraFactor = make([]float64, len(s.r))
	}
	c.sch.ForChunks(len(s.r), func(from, to int) {
		for i := from; i < to; i++ {
			div := math.Abs(s.divv[i])
			curl := c.curl[i].Len()
			c.balsaraFactor[i] = div / (div + curl + 1e-4*s.cs[i]/s.h[i])
		}
	})
}

// rheology converts the accumulated strain rate in dstress into the Hooke
// stress derivative and applies the von Mises yield criterion to the stored
// stress.
func (c *sphCore) rheology(st *storage.Storage, s *sphState) {
	if s.dstress == nil {
		return
	}
	for _, part := range st.Partitions() {
		mu := settings.MustGet[float64](part.Material.Params, settings.BodyShearModulus)
		limit := settings.MustGet[float64](part.Material.Params, settings.BodyElasticityLimit)
		from, to := part.From, part.To
		c.sch.ForChunks(to-from, func(lo, hi int) {
			for i := from + lo; i < from+hi; i++ {
				strain := s.dstress[i]
				tr := strain.Trace() / 3
				strain.Diag = strain.Diag.Sub(geometry.V(tr, tr, tr))
				s.dstress[i] = strain.Scale(2 * mu)

				// von Mises: scale the stress down to the yield surface
				sigma := s.stress[i]
				j2 := 0.0
				for a := 0; a < 3; a++ {
					for b := 0; b < 3; b++ {
						j2 += 0.5 * sigma.At(a, b) * sigma.At(a, b)
					}
				}
				if vm := math.Sqrt(3 * j2); vm > limit {
					s.stress[i] = sigma.Scale(limit / vm)
				}
			}
		})
	}
}

// morrisMonaghanEvolution evolves the per-particle viscosity alpha toward
// its floor, with a source term in compressions.
func (c *sphCore) morrisMonaghanEvolution(s *sphState) {
	if c.avKind != settings.AVMorrisMonaghan {
		return
	}
	const alphaMin = 0.1
	c.sch.ForChunks(len(s.r), func(from, to int) {
		for i := from; i < to; i++ {
			tau := s.h[i] / (0.2 * math.Max(s.cs[i], 1e-20))
			source := math.Max(-s.divv[i], 0) * (c.avAlpha - s.alpha[i])
			s.dalpha[i] = -(s.alpha[i]-alphaMin)/tau + source
		}
	})
}
