package settings

import (
	"math"

	"github.com/regolith-sim/regolith/internal/geometry"
)

// BodyID enumerates the per-material parameters.
type BodyID int

const (
	BodyEOS BodyID = iota
	BodyAdiabaticIndex
	BodyTaitGamma
	BodyTaitSoundSpeed
	BodyTillotsonEnergyIV
	BodyTillotsonEnergyCV
	BodyTillotsonSmallA
	BodyTillotsonSmallB
	BodyTillotsonAlpha
	BodyTillotsonBeta
	BodyTillotsonNonlinearB
	BodyTillotsonSublimation

	BodyDensity
	BodyDensityRange
	BodyDensityMin
	BodyEnergy
	BodyEnergyRange
	BodyEnergyMin
	BodyDamage
	BodyDamageRange
	BodyDamageMin
	BodyStressTensor
	BodyStressTensorMin
	BodyBulkModulus
	BodyShearModulus
	BodyElasticityLimit
	BodyInitialDistribution
	BodyParticleCount
	BodyBodyCenter
	BodyBodyRadius
	BodyBodyVelocity
	BodyBodySpin
)

var bodyTable = newTable([]Entry[BodyID]{
	{BodyEOS, "eos", EnumValue{EnumEOS, int(EOSTillotson)},
		"Equation of state of the material."},
	{BodyAdiabaticIndex, "eos.adiabatic_index", 1.4,
		"Adiabatic index of the ideal gas law."},
	{BodyTaitGamma, "eos.tait.gamma", 7.0,
		"Exponent of the Tait equation."},
	{BodyTaitSoundSpeed, "eos.tait.sound_speed", 1484.0,
		"Sound speed entering the Tait equation."},
	{BodyTillotsonEnergyIV, "eos.tillotson.energy_iv", 4.72e6,
		"Energy of incipient vaporization."},
	{BodyTillotsonEnergyCV, "eos.tillotson.energy_cv", 1.82e7,
		"Energy of complete vaporization."},
	{BodyTillotsonSmallA, "eos.tillotson.small_a", 0.5,
		"Tillotson parameter a."},
	{BodyTillotsonSmallB, "eos.tillotson.small_b", 1.5,
		"Tillotson parameter b."},
	{BodyTillotsonAlpha, "eos.tillotson.alpha", 5.0,
		"Tillotson parameter alpha of the expanded branch."},
	{BodyTillotsonBeta, "eos.tillotson.beta", 5.0,
		"Tillotson parameter beta of the expanded branch."},
	{BodyTillotsonNonlinearB, "eos.tillotson.nonlinear_b", 2.67e10,
		"Nonlinear compressive term B."},
	{BodyTillotsonSublimation, "eos.tillotson.sublimation", 4.87e8,
		"Specific sublimation energy."},

	{BodyDensity, "material.density", 2700.0,
		"Initial density of the body."},
	{BodyDensityRange, "material.density.range", geometry.Interval{Lo: 50, Hi: math.Inf(1)},
		"Allowed range of the density quantity."},
	{BodyDensityMin, "material.density.min", 100.0,
		"Minimum scale of density used by the derivative timestep criterion."},
	{BodyEnergy, "material.energy", 0.0,
		"Initial specific internal energy."},
	{BodyEnergyRange, "material.energy.range", geometry.Interval{Lo: 0, Hi: math.Inf(1)},
		"Allowed range of the energy quantity."},
	{BodyEnergyMin, "material.energy.min", 1.0,
		"Minimum scale of energy used by the derivative timestep criterion."},
	{BodyDamage, "material.damage", 0.0,
		"Initial scalar damage."},
	{BodyDamageRange, "material.damage.range", geometry.Interval{Lo: 0, Hi: 1},
		"Allowed range of the damage quantity."},
	{BodyDamageMin, "material.damage.min", 0.03,
		"Minimum scale of damage used by the derivative timestep criterion."},
	{BodyStressTensor, "material.stress_tensor", geometry.TracelessTensor{},
		"Initial deviatoric stress."},
	{BodyStressTensorMin, "material.stress_tensor.min", 1e5,
		"Minimum scale of the deviatoric stress."},
	{BodyBulkModulus, "material.bulk_modulus", 2.67e10,
		"Bulk modulus of the material."},
	{BodyShearModulus, "material.shear_modulus", 2.27e10,
		"Shear modulus of the material."},
	{BodyElasticityLimit, "rheology.elasticity_limit", 3.5e9,
		"Von Mises yield limit."},
	{BodyInitialDistribution, "initial.distribution",
		EnumValue{EnumDistribution, int(DistributionHexagonal)},
		"Particle packing of the initial body."},
	{BodyParticleCount, "initial.particle_cnt", 10000,
		"Requested particle count of the body."},
	{BodyBodyCenter, "initial.center", geometry.Vec{},
		"Center of the body."},
	{BodyBodyRadius, "initial.radius", 1.0,
		"Radius of a spherical body."},
	{BodyBodyVelocity, "initial.velocity", geometry.Vec{},
		"Bulk velocity of the body."},
	{BodyBodySpin, "initial.spin", geometry.Vec{},
		"Angular frequency of the body around its center."},
})

// BodyTable exposes the immutable body defaults table.
func BodyTable() *Table[BodyID] { return bodyTable }
