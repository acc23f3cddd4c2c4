// Package gravity evaluates gravitational accelerations of particles and
// attractors. Variants trade accuracy for cost: exact pairwise summation,
// a Barnes-Hut octree with configurable opening angle, or a fixed central
// potential.
package gravity

import (
	"fmt"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/sched"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
)

// Gravity is built once per evaluation over the current particle state and
// then queried for accelerations.
type Gravity interface {
	// Build indexes the given point masses.
	Build(positions []geometry.Vec, masses []float64)

	// EvalAll adds the gravitational acceleration of every indexed
	// particle into acc.
	EvalAll(sch *sched.Scheduler, acc []geometry.Vec, st *stats.Stats)

	// EvalPoint returns the acceleration at an arbitrary position, used
	// for attractors. A particle at that exact position is excluded.
	EvalPoint(p geometry.Vec) geometry.Vec
}

// FromSettings constructs the gravity solver selected by the run settings.
func FromSettings(run *settings.Settings[settings.RunID]) (Gravity, error) {
	kind, err := settings.GetEnum[settings.Gravity](run, settings.GravitySolver)
	if err != nil {
		return nil, err
	}
	g := settings.MustGet[float64](run, settings.GravityConstantID)
	switch kind {
	case settings.GravityNone:
		return Null{}, nil
	case settings.GravityBruteForce:
		return NewBruteForce(g), nil
	case settings.GravityBarnesHut:
		return NewBarnesHut(
			g,
			settings.MustGet[float64](run, settings.GravityOpeningAngle),
			settings.MustGet[int](run, settings.GravityMultipoleOrder),
		), nil
	case settings.GravitySphericalPotential:
		return &Spherical{G: g, Mass: settings.MustGet[float64](run, settings.GravityCentralMass)}, nil
	default:
		return nil, fmt.Errorf("gravity: unknown solver %d", int(kind))
	}
}

// Null ignores gravity entirely.
type Null struct{}

func (Null) Build([]geometry.Vec, []float64)                         {}
func (Null) EvalAll(*sched.Scheduler, []geometry.Vec, *stats.Stats)  {}
func (Null) EvalPoint(geometry.Vec) geometry.Vec                     { return geometry.Vec{} }
