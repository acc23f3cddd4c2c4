// Package eos implements the equations of state consumed by the SPH solver.
// An EOS maps (density, specific energy) to pressure and sound speed.
package eos

import (
	"fmt"
	"math"

	"github.com/regolith-sim/regolith/internal/settings"
)

// EOS evaluates pressure and sound speed from the thermodynamic state of one
// particle.
type EOS interface {
	Evaluate(density, energy float64) (pressure, soundSpeed float64)
}

// FromMaterial constructs the EOS selected by the material parameters.
func FromMaterial(params *settings.Settings[settings.BodyID]) (EOS, error) {
	kind, err := settings.GetEnum[settings.EOS](params, settings.BodyEOS)
	if err != nil {
		return nil, err
	}
	switch kind {
	case settings.EOSIdealGas:
		return NewIdealGas(settings.MustGet[float64](params, settings.BodyAdiabaticIndex)), nil
	case settings.EOSTaitMurnaghan:
		return NewTait(
			settings.MustGet[float64](params, settings.BodyDensity),
			settings.MustGet[float64](params, settings.BodyTaitSoundSpeed),
			settings.MustGet[float64](params, settings.BodyTaitGamma),
		), nil
	case settings.EOSTillotson:
		return NewTillotson(TillotsonParams{
			Rho0:        settings.MustGet[float64](params, settings.BodyDensity),
			A:           settings.MustGet[float64](params, settings.BodyBulkModulus),
			B:           settings.MustGet[float64](params, settings.BodyTillotsonNonlinearB),
			SmallA:      settings.MustGet[float64](params, settings.BodyTillotsonSmallA),
			SmallB:      settings.MustGet[float64](params, settings.BodyTillotsonSmallB),
			Alpha:       settings.MustGet[float64](params, settings.BodyTillotsonAlpha),
			Beta:        settings.MustGet[float64](params, settings.BodyTillotsonBeta),
			Sublimation: settings.MustGet[float64](params, settings.BodyTillotsonSublimation),
			EnergyIV:    settings.MustGet[float64](params, settings.BodyTillotsonEnergyIV),
			EnergyCV:    settings.MustGet[float64](params, settings.BodyTillotsonEnergyCV),
		}), nil
	default:
		return nil, fmt.Errorf("eos: unknown equation of state %d", int(kind))
	}
}

// IdealGas is p = (gamma - 1) rho u.
type IdealGas struct {
	gamma float64
}

func NewIdealGas(gamma float64) IdealGas { return IdealGas{gamma: gamma} }

func (g IdealGas) Evaluate(density, energy float64) (float64, float64) {
	p := (g.gamma - 1) * density * energy
	cs := math.Sqrt(g.gamma * (g.gamma - 1) * math.Max(energy, 0))
	return p, cs
}

// Tait is the Tait-Murnaghan stiffened liquid EOS, independent of energy.
type Tait struct {
	rho0  float64
	c0    float64
	gamma float64
}

func NewTait(rho0, c0, gamma float64) Tait {
	return Tait{rho0: rho0, c0: c0, gamma: gamma}
}

func (t Tait) Evaluate(density, energy float64) (float64, float64) {
	k := t.rho0 * t.c0 * t.c0 / t.gamma
	p := k * (math.Pow(density/t.rho0, t.gamma) - 1)
	return p, t.c0
}

// TillotsonParams are the coefficients of the Tillotson EOS.
type TillotsonParams struct {
	Rho0        float64 // reference density
	A           float64 // bulk modulus
	B           float64 // nonlinear compressive term
	SmallA      float64
	SmallB      float64
	Alpha       float64
	Beta        float64
	Sublimation float64 // specific sublimation energy u0
	EnergyIV    float64 // incipient vaporization
	EnergyCV    float64 // complete vaporization
}

// Tillotson covers both the compressed/cold branch and the expanded hot
// branch, interpolating between the two for partially vaporized states.
type Tillotson struct {
	p TillotsonParams
}

func NewTillotson(p TillotsonParams) Tillotson { return Tillotson{p: p} }

func (t Tillotson) compressed(density, energy float64) float64 {
	eta := density / t.p.Rho0
	mu := eta - 1
	denom := energy/(t.p.Sublimation*eta*eta) + 1
	return (t.p.SmallA+t.p.SmallB/denom)*density*energy + t.p.A*mu + t.p.B*mu*mu
}

func (t Tillotson) expanded(density, energy float64) float64 {
	eta := density / t.p.Rho0
	mu := eta - 1
	nu := 1/eta - 1
	denom := energy/(t.p.Sublimation*eta*eta) + 1
	inner := t.p.SmallB*density*energy/denom + t.p.A*mu*math.Exp(-t.p.Beta*nu)
	return t.p.SmallA*density*energy + inner*math.Exp(-t.p.Alpha*nu*nu)
}

func (t Tillotson) pressure(density, energy float64) float64 {
	switch {
	case density >= t.p.Rho0 || energy <= t.p.EnergyIV:
		return t.compressed(density, energy)
	case energy >= t.p.EnergyCV:
		return t.expanded(density, energy)
	default:
		// partial vaporization: interpolate between branches
		pc := t.compressed(density, energy)
		pe := t.expanded(density, energy)
		x := (energy - t.p.EnergyIV) / (t.p.EnergyCV - t.p.EnergyIV)
		return pc*(1-x) + pe*x
	}
}

func (t Tillotson) Evaluate(density, energy float64) (float64, float64) {
	p := t.pressure(density, energy)

	// cs^2 = dP/drho + P/rho^2 dP/du, evaluated by central differences
	drho := 1e-6 * t.p.Rho0
	du := 1e-6*t.p.Sublimation + 1e-6*math.Abs(energy)
	dpdrho := (t.pressure(density+drho, energy) - t.pressure(density-drho, energy)) / (2 * drho)
	dpdu := (t.pressure(density, energy+du) - t.pressure(density, energy-du)) / (2 * du)
	cs2 := dpdrho + p/(density*density)*dpdu
	floor := 0.25 * t.p.A / t.p.Rho0
	if cs2 < floor {
		cs2 = floor
	}
	return p, math.Sqrt(cs2)
}
