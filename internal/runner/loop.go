package runner

import (
	"fmt"
	"time"

	"github.com/regolith-sim/regolith/internal/logger"
	"github.com/regolith-sim/regolith/internal/output"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/solver"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
	"github.com/regolith-sim/regolith/internal/timestep"
)

// Loop drives one phase of a run: it repeatedly advances the timestepper,
// feeds the statistics to the logger and fires the output sink until an end
// condition holds. End conditions are the configured end time, an optional
// timestep count and an optional wall-clock limit.
type Loop struct {
	log  logger.Logger
	sol  solver.Solver
	step *timestep.Timestepper
	sink *output.Sink
	rs   *stats.Stats

	now       float64
	endTime   float64
	maxSteps  int
	wallclock float64
	diagEvery float64
	nextDiag  float64
}

func NewLoop(run *settings.Settings[settings.RunID], sol solver.Solver, lg logger.Logger) (*Loop, error) {
	stepper, err := timestep.FromSettings(run)
	if err != nil {
		return nil, err
	}
	sink, err := output.FromSettings(run)
	if err != nil {
		return nil, err
	}
	l := &Loop{
		log:       lg,
		sol:       sol,
		step:      stepper,
		sink:      sink,
		rs:        stats.New(),
		now:       settings.MustGet[float64](run, settings.RunStartTime),
		endTime:   settings.MustGet[float64](run, settings.RunEndTime),
		maxSteps:  settings.MustGet[int](run, settings.RunTimestepCount),
		wallclock: settings.MustGet[float64](run, settings.RunWallclockTime),
		diagEvery: settings.MustGet[float64](run, settings.RunDiagnosticsInterval),
	}
	l.nextDiag = l.now + l.diagEvery
	l.sink.SkipUntil(l.now)
	return l, nil
}

// Stats returns the metrics of the current step.
func (l *Loop) Stats() *stats.Stats { return l.rs }

// Time returns the simulation time reached so far.
func (l *Loop) Time() float64 { return l.now }

// Run integrates the storage until an end condition or an abort. A pending
// abort writes a final snapshot before returning ErrAborted. Snapshot
// errors are logged and do not stop the run.
func (l *Loop) Run(st *storage.Storage, cb *Callbacks) error {
	wall := time.Now()
	l.rs.Set(stats.Time, l.now)
	step := 0
	for l.now < l.endTime {
		if cb.aborted() {
			if err := l.sink.Write(st, l.rs, l.now); err != nil {
				logger.Errorf(l.log, "final snapshot failed: %v", err)
			}
			return ErrAborted
		}
		if l.maxSteps > 0 && step >= l.maxSteps {
			logger.Infof(l.log, "timestep limit of %d reached", l.maxSteps)
			break
		}
		if elapsed := time.Since(wall).Seconds(); l.wallclock > 0 && elapsed >= l.wallclock {
			logger.Infof(l.log, "wallclock limit reached after %d steps", step)
			break
		}
		dt := l.step.Dt()
		if err := l.step.Step(st, l.sol, l.rs); err != nil {
			return err
		}
		step++
		l.now += dt
		l.rs.Set(stats.Step, step)
		l.rs.Set(stats.Time, l.now)
		l.rs.Set(stats.WallclockTime, time.Since(wall).Seconds())
		l.diagnose(st)
		l.report(st)
		cb.timeStep(st, l.rs)
		for l.sink.Due(l.now) {
			if err := l.sink.Write(st, l.rs, l.now); err != nil {
				logger.Errorf(l.log, "snapshot failed: %v", err)
			}
		}
	}
	logger.Infof(l.log, "finished at t=%g after %d steps", l.now, step)
	return nil
}

// diagnose scans for non-finite positions and velocities once per
// diagnostics interval, warning instead of failing so a run can be
// inspected at its last good snapshot.
func (l *Loop) diagnose(st *storage.Storage) {
	if l.diagEvery <= 0 || l.now < l.nextDiag {
		return
	}
	for l.nextDiag <= l.now {
		l.nextDiag += l.diagEvery
	}
	r, err := st.Vectors(quantity.Position, quantity.Value)
	if err != nil {
		return
	}
	v, _ := st.Vectors(quantity.Position, quantity.Dt)
	bad := 0
	for i := range r {
		if !r[i].IsFinite() || (v != nil && !v[i].IsFinite()) {
			bad++
		}
	}
	if bad > 0 {
		logger.Warnf(l.log, "%d of %d particles have non-finite position or velocity at t=%g",
			bad, len(r), l.now)
	}
}

func (l *Loop) report(st *storage.Storage) {
	msg := fmt.Sprintf("step %d  t=%.6g  dt=%.3g  particles=%d",
		l.rs.Int(stats.Step), l.now, l.step.Dt(), st.ParticleCount())
	if l.rs.Has(stats.LimitingCriterion) {
		msg += "  limited by " + l.rs.String(stats.LimitingCriterion)
	}
	if n := l.rs.Int(stats.CollisionCount); n > 0 {
		msg += fmt.Sprintf("  collisions=%d", n)
	}
	if n := l.rs.Int(stats.OverlapCount); n > 0 {
		msg += fmt.Sprintf("  overlaps=%d", n)
	}
	logger.Infof(l.log, "%s", msg)
}
