package solver

import (
	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// Stabilization decorates a solver with a relaxation pass. After every step
// it pulls particle velocities toward the rigid-body co-moving field of the
// whole body and suppresses fracture, so an initial condition can settle
// into hydrostatic equilibrium before the actual run starts.
type Stabilization struct {
	inner   Solver
	damping float64
	start   float64
	end     float64
}

func NewStabilization(run *settings.Settings[settings.RunID], inner Solver) *Stabilization {
	return &Stabilization{
		inner:   inner,
		damping: settings.MustGet[float64](run, settings.SphStabilizationDamping),
		start:   settings.MustGet[float64](run, settings.RunStartTime),
		end:     settings.MustGet[float64](run, settings.RunEndTime),
	}
}

func (sb *Stabilization) Create(st *storage.Storage, mat *storage.Material) error {
	return sb.inner.Create(st, mat)
}

func (sb *Stabilization) Collide(st *storage.Storage, rs *stats.Stats, dt float64) error {
	return sb.inner.Collide(st, rs, dt)
}

func (sb *Stabilization) Integrate(st *storage.Storage, rs *stats.Stats) error {
	if err := sb.inner.Integrate(st, rs); err != nil {
		return err
	}

	r, err := st.Vectors(quantity.Position, quantity.Value)
	if err != nil {
		return err
	}
	v, err := st.Vectors(quantity.Position, quantity.Dt)
	if err != nil {
		return err
	}
	m, err := st.Scalars(quantity.Mass, quantity.Value)
	if err != nil {
		return err
	}

	com, vcom, omega := rigidBodyField(r, v, m)
	f := sb.factor(rs)
	for i := range v {
		rigid := vcom.Add(geometry.Cross(omega, r[i].Sub(com)))
		v[i] = rigid.Add(v[i].Sub(rigid).Scale(f))
	}

	// fracture must not develop while the body is being relaxed
	if damage, err := st.Scalars(quantity.Damage, quantity.Value); err == nil {
		zero(damage)
		if ddamage, err := st.Scalars(quantity.Damage, quantity.Dt); err == nil {
			zero(ddamage)
		}
	}
	if reduce, err := st.Scalars(quantity.YieldReduction, quantity.Value); err == nil {
		zero(reduce)
	}
	return nil
}

// factor is the retained fraction of the velocity deviation; it grows back
// to 1 as the phase approaches its end time, handing over an undamped state.
func (sb *Stabilization) factor(rs *stats.Stats) float64 {
	t := sb.start
	if rs != nil && rs.Has(stats.Time) {
		t = rs.Float(stats.Time)
	}
	span := sb.end - sb.start
	if span <= 0 {
		return 1
	}
	remaining := (sb.end - t) / span
	if remaining < 0 {
		remaining = 0
	} else if remaining > 1 {
		remaining = 1
	}
	return 1 - sb.damping*remaining
}

// rigidBodyField computes the centre-of-mass translation and the bulk
// rotation of the whole particle set, with the same pseudo-inverse treatment
// of degenerate inertia directions as the aggregate integrator.
func rigidBodyField(r, v []geometry.Vec, m []float64) (com, vcom, omega geometry.Vec) {
	mass := 0.0
	for i := range r {
		mass += m[i]
		com = com.Add(r[i].Scale(m[i]))
		vcom = vcom.Add(v[i].Scale(m[i]))
	}
	if mass == 0 {
		return com, vcom, omega
	}
	com = com.Scale(1 / mass)
	vcom = vcom.Scale(1 / mass)

	L := geometry.Vec{}
	var inertia geometry.SymTensor
	for i := range r {
		d := r[i].Sub(com)
		L = L.Add(geometry.Cross(d, v[i].Sub(vcom)).Scale(m[i]))
		d2 := d.LenSq()
		inertia.Diag = inertia.Diag.Add(geometry.V(m[i]*d2, m[i]*d2, m[i]*d2))
		inertia = inertia.Sub(geometry.SymmetricOuter(d, d).Scale(m[i]))
	}
	values, axes := inertia.Eigensystem()
	floor := 1e-12 * values.Abs().MaxElement()
	var wl geometry.Vec
	for c := 0; c < 3; c++ {
		if values[c] > floor {
			wl[c] = geometry.Dot(axes[c], L) / values[c]
		}
	}
	omega = axes[0].Scale(wl[0]).Add(axes[1].Scale(wl[1])).Add(axes[2].Scale(wl[2]))
	return com, vcom, omega
}

func zero(xs []float64) {
	for i := range xs {
		xs[i] = 0
	}
}
