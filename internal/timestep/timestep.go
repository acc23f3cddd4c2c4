// Package timestep advances the particle state in time. A Timestepper
// couples an integration scheme with the timestep criteria and keeps the
// step inside the configured bounds.
package timestep

import (
	"math"

	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/solver"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// minStepFraction floors the step relative to the configured initial step,
// so a pathological criterion cannot stall the run entirely.
const minStepFraction = 1e-12

type Timestepper struct {
	integ Integrator
	crit  Criterion

	dt        float64
	minStep   float64
	maxStep   float64
	maxChange float64
}

func New(integ Integrator, crit Criterion, initial, maxStep, maxChange float64) *Timestepper {
	return &Timestepper{
		integ:     integ,
		crit:      crit,
		dt:        initial,
		minStep:   initial * minStepFraction,
		maxStep:   maxStep,
		maxChange: maxChange,
	}
}

// FromSettings constructs the timestepper selected by the run settings.
func FromSettings(run *settings.Settings[settings.RunID]) (*Timestepper, error) {
	integ, err := IntegratorFromSettings(run)
	if err != nil {
		return nil, err
	}
	crit, err := CriterionFromSettings(run)
	if err != nil {
		return nil, err
	}
	return New(integ, crit,
		settings.MustGet[float64](run, settings.TimesteppingInitialStep),
		settings.MustGet[float64](run, settings.TimesteppingMaxStep),
		settings.MustGet[float64](run, settings.TimesteppingMaxChange)), nil
}

// Dt returns the step the next Step call will take.
func (t *Timestepper) Dt() float64 { return t.dt }

// Step advances the state by the current step: integrates, steps the
// attractors, resolves collisions and derives the next step from the
// criteria evaluated on the new state.
func (t *Timestepper) Step(st *storage.Storage, sol solver.Solver, rs *stats.Stats) error {
	dt := t.dt

	t.stepAttractors(st, dt)
	if err := t.integ.Advance(st, sol, rs, dt); err != nil {
		return err
	}
	if err := sol.Collide(st, rs, dt); err != nil {
		return err
	}

	next := t.crit.Compute(st, rs)
	if !math.IsInf(t.maxChange, 1) {
		next = math.Min(next, dt*(1+t.maxChange))
	}
	next = math.Max(next, t.minStep)
	next = math.Min(next, t.maxStep)
	t.dt = next

	if rs != nil {
		rs.Set(stats.Timestep, dt)
	}
	return nil
}

// stepAttractors kicks and drifts the point-mass attractors; their
// accelerations were filled by the previous gravity evaluation.
func (t *Timestepper) stepAttractors(st *storage.Storage, dt float64) {
	as := st.Attractors()
	for i := range as {
		as[i].Velocity = as[i].Velocity.Add(as[i].Acceleration.Scale(dt))
		as[i].Position = as[i].Position.Add(as[i].Velocity.Scale(dt))
	}
}
