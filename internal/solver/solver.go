// Package solver computes the time derivatives of all advected quantities.
// The asymmetric SPH solver parallelises trivially over particles, the
// symmetric solver conserves momentum pairwise through per-thread buffers,
// and the N-body solver evaluates pure gravity with optional caching.
package solver

import (
	"fmt"

	"github.com/regolith-sim/regolith/internal/sched"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// Solver turns the current particle state into derivatives.
type Solver interface {
	// Create allocates the quantities this solver evolves on a freshly
	// built body with the given material.
	Create(st *storage.Storage, mat *storage.Material) error

	// Integrate fills the highest derivatives of all advected quantities
	// from the current values. Deterministic for identical inputs.
	Integrate(st *storage.Storage, rs *stats.Stats) error

	// Collide resolves contacts after positions were advanced by dt.
	Collide(st *storage.Storage, rs *stats.Stats, dt float64) error
}

// FromSettings constructs the solver selected by the run settings.
func FromSettings(run *settings.Settings[settings.RunID], sch *sched.Scheduler) (Solver, error) {
	kind, err := settings.GetEnum[settings.Solver](run, settings.SphSolverType)
	if err != nil {
		return nil, err
	}
	switch kind {
	case settings.SolverAsymmetric:
		return NewAsymmetric(run, sch)
	case settings.SolverSymmetric:
		return NewSymmetric(run, sch)
	case settings.SolverNBody:
		return NewNBody(run, sch)
	default:
		return nil, fmt.Errorf("solver: unknown solver %d", int(kind))
	}
}

// noCollide is embedded by solvers without a collision pass.
type noCollide struct{}

func (noCollide) Collide(*storage.Storage, *stats.Stats, float64) error { return nil }
