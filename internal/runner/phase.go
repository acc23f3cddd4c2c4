package runner

import (
	"fmt"
	"math"

	"github.com/regolith-sim/regolith/internal/logger"
	"github.com/regolith-sim/regolith/internal/output"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/sched"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/solver"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// phase carries what every simulation phase shares: its own run settings
// overriding the global ones, a logger, and the resume state. A resumed
// phase refuses to start unless the state file carried the time, the step
// and the output index.
type phase struct {
	JobName string
	Run     *settings.Settings[settings.RunID]
	Log     logger.Logger
	Resumed bool
	Resume  output.ResumeInfo
}

func (p *phase) Name() string { return p.JobName }

func (p *phase) Slots() []Slot {
	return []Slot{{Name: "particles", Type: TypeParticles}}
}

func (p *phase) OutputType() Type { return TypeParticles }

// setResume marks the phase as continuing a saved run.
func (p *phase) setResume(info output.ResumeInfo) {
	p.Resumed = true
	p.Resume = info
}

// settings resolves the effective run settings of the phase.
func (p *phase) settings(global *settings.Settings[settings.RunID]) *settings.Settings[settings.RunID] {
	if p.Run != nil {
		return p.Run
	}
	if global != nil {
		return global
	}
	return settings.NewRun()
}

func (p *phase) logger(run *settings.Settings[settings.RunID]) (logger.Logger, error) {
	if p.Log != nil {
		return p.Log, nil
	}
	return logger.FromSettings(run)
}

// run integrates the storage with the given solver and reports the outcome
// through the callbacks. A failed run ends with an empty storage and the
// error recorded in the statistics.
func (p *phase) run(st *storage.Storage, run *settings.Settings[settings.RunID],
	lg logger.Logger, sol solver.Solver, cb *Callbacks) (*storage.Storage, error) {

	for _, part := range st.Partitions() {
		if part.Material == nil {
			continue
		}
		if err := sol.Create(st, part.Material); err != nil {
			return nil, err
		}
	}
	loop, err := NewLoop(run, sol, lg)
	if err != nil {
		return nil, err
	}
	err = loop.Run(st, cb)
	rs := loop.Stats()
	if err != nil {
		rs.Set(stats.RunError, err)
		cb.end(storage.New(), rs)
		return nil, err
	}
	cb.end(st, rs)
	return st, nil
}

// resumedSettings applies the saved time, step and output index on a clone
// of the run settings.
func (p *phase) resumedSettings(run *settings.Settings[settings.RunID]) (*settings.Settings[settings.RunID], error) {
	if !p.Resumed {
		return run, nil
	}
	if !p.Resume.HasTime || !p.Resume.HasTimestep || !p.Resume.HasIndex {
		return nil, fmt.Errorf("%w: resuming needs time, timestep and output index in the state file", ErrSetup)
	}
	run = run.Clone()
	run.Set(settings.RunStartTime, p.Resume.Time)
	run.Set(settings.TimesteppingInitialStep, p.Resume.Timestep)
	run.Set(settings.RunOutputFirstIndex, p.Resume.Index+1)
	return run, nil
}

func schedulerFrom(run *settings.Settings[settings.RunID]) *sched.Scheduler {
	return sched.New(
		settings.MustGet[int](run, settings.RunThreadCount),
		settings.MustGet[int](run, settings.RunThreadGranularity))
}

// SPHPhase integrates a hydrodynamic segment with the configured SPH
// solver.
type SPHPhase struct {
	phase
}

func NewSPHPhase(name string, run *settings.Settings[settings.RunID]) *SPHPhase {
	return &SPHPhase{phase{JobName: name, Run: run}}
}

func (p *SPHPhase) Evaluate(in *Inputs, global *settings.Settings[settings.RunID], cb *Callbacks) (any, error) {
	st, err := in.Particles("particles")
	if err != nil {
		return nil, err
	}
	run, err := p.resumedSettings(p.settings(global))
	if err != nil {
		return nil, err
	}
	lg, err := p.logger(run)
	if err != nil {
		return nil, err
	}
	sol, err := solver.FromSettings(run, schedulerFrom(run))
	if err != nil {
		return nil, err
	}
	return p.run(st, run, lg, sol, cb)
}

// StabilizationPhase relaxes a body towards hydrostatic equilibrium by
// damping the deviation from rigid-body motion and holding damage at zero.
type StabilizationPhase struct {
	phase
}

func NewStabilizationPhase(name string, run *settings.Settings[settings.RunID]) *StabilizationPhase {
	return &StabilizationPhase{phase{JobName: name, Run: run}}
}

func (p *StabilizationPhase) Evaluate(in *Inputs, global *settings.Settings[settings.RunID], cb *Callbacks) (any, error) {
	st, err := in.Particles("particles")
	if err != nil {
		return nil, err
	}
	run, err := p.resumedSettings(p.settings(global))
	if err != nil {
		return nil, err
	}
	lg, err := p.logger(run)
	if err != nil {
		return nil, err
	}
	inner, err := solver.FromSettings(run, schedulerFrom(run))
	if err != nil {
		return nil, err
	}
	return p.run(st, run, lg, solver.NewStabilization(run, inner), cb)
}

// NBodyPhase integrates a gravitational segment, typically the
// reaccumulation stage after a fragmentation run.
type NBodyPhase struct {
	phase
}

func NewNBodyPhase(name string, run *settings.Settings[settings.RunID]) *NBodyPhase {
	return &NBodyPhase{phase{JobName: name, Run: run}}
}

func (p *NBodyPhase) Evaluate(in *Inputs, global *settings.Settings[settings.RunID], cb *Callbacks) (any, error) {
	st, err := in.Particles("particles")
	if err != nil {
		return nil, err
	}
	run, err := p.resumedSettings(p.settings(global))
	if err != nil {
		return nil, err
	}
	run = run.Clone()
	run.Set(settings.SphSolverType,
		settings.EnumValue{ID: settings.EnumSolver, Value: int(settings.SolverNBody)})
	lg, err := p.logger(run)
	if err != nil {
		return nil, err
	}
	p.Handoff(st)
	sol, err := solver.NewNBody(run, schedulerFrom(run))
	if err != nil {
		return nil, err
	}
	return p.run(st, run, lg, sol, cb)
}

// Handoff adapts an SPH state for N-body integration: each smoothing length
// becomes the physical radius of a sphere holding the particle's mass at
// its current density, and stops evolving.
func (p *NBodyPhase) Handoff(st *storage.Storage) {
	h, err := st.Scalars(quantity.SmoothingLength, quantity.Value)
	if err != nil {
		return
	}
	m, errM := st.Scalars(quantity.Mass, quantity.Value)
	rho, errRho := st.Scalars(quantity.Density, quantity.Value)
	if errM == nil && errRho == nil {
		for i := range h {
			if rho[i] > 0 {
				h[i] = math.Cbrt(3 * m[i] / (4 * math.Pi * rho[i]))
			}
		}
	}
	if dh, err := st.Scalars(quantity.SmoothingLength, quantity.Dt); err == nil {
		for i := range dh {
			dh[i] = 0
		}
	}
}
