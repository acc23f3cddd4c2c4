package settings

import (
	"math"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/paths"
)

// GravitationalConstant in SI units.
const GravitationalConstant = 6.6743e-11

// RunID enumerates the global run parameters. The numeric values are part of
// the on-disk ordering of saved settings files; append new keys at the end
// of a section rather than renumbering.
type RunID int

const (
	RunName RunID = iota
	RunComment
	RunTypeID
	RunStartTime
	RunEndTime
	RunTimestepCount
	RunWallclockTime
	RunRngSeed
	RunDiagnosticsInterval

	RunOutputType
	RunOutputInterval
	RunOutputSpacing
	RunOutputCustomTimes
	RunOutputFirstIndex
	RunOutputName
	RunOutputPath
	RunOutputQuantities

	RunThreadCount
	RunThreadGranularity

	RunLogger
	RunLoggerFile
	RunLoggerVerbosity

	SphSolverType
	SphSolverForces
	SphFinder
	SphKernelRadius
	SphSmoothingLength
	SphNeighbourRange
	SphNeighbourEnforcing
	SphAVType
	SphAVAlpha
	SphAVBeta
	SphAVUseBalsara
	SphSmoothingLengthMin
	SphStabilizationDamping
	SphSurfaceTension
	SphConstantAcceleration
	SphFrameAngularFrequency

	TimesteppingIntegrator
	TimesteppingCourantNumber
	TimesteppingInitialStep
	TimesteppingMaxStep
	TimesteppingCriterion
	TimesteppingDerivativeFactor
	TimesteppingAccelerationFactor
	TimesteppingDivergenceFactor
	TimesteppingMeanPower
	TimesteppingMaxChange
	TimesteppingMidpointCount
	TimesteppingBSAccuracy

	GravitySolver
	GravityOpeningAngle
	GravityMultipoleOrder
	GravityConstantID
	GravityCentralMass
	GravityRecomputationPeriod

	CollisionHandlerID
	CollisionOverlapID
	CollisionRestitutionNormal
	CollisionRestitutionTangent
	CollisionAllowedOverlap
	CollisionMergingLimit
	CollisionRotationMergingLimit

	NBodyInertiaTensor
	NBodyMaxRotationAngle
	NBodyAggregatesEnable
	NBodyAggregatesSource

	DomainCenter
	DomainRadius
	DomainSize

	FrameTilt
)

var runTable = newTable([]Entry[RunID]{
	{RunName, "run.name", "unnamed run",
		"User-specified name of the run, stored in output metadata."},
	{RunComment, "run.comment", "",
		"Auxiliary comment of the run."},
	{RunTypeID, "run.type", EnumValue{EnumRunType, int(RunTypeSPH)},
		"Type of the simulation, stored in output metadata."},
	{RunStartTime, "run.start_time", 0.0,
		"Starting time of the simulation in seconds. Nonzero when resuming a saved state."},
	{RunEndTime, "run.end_time", 10.0,
		"End time of the simulation in seconds."},
	{RunTimestepCount, "run.timestep_cnt", 0,
		"Maximum number of timesteps; zero disables the limit."},
	{RunWallclockTime, "run.wallclock_time", 0.0,
		"Maximum wall-clock duration in seconds; zero disables the limit."},
	{RunRngSeed, "run.rng.seed", 1234,
		"Seed of the random number generator."},
	{RunDiagnosticsInterval, "run.diagnostics_interval", 0.1,
		"Run-time period of diagnostics checks; zero runs them every step."},

	{RunOutputType, "run.output.type", FlagSet{ID: EnumOutput},
		"Snapshot formats written by the run."},
	{RunOutputInterval, "run.output.interval", 0.1,
		"Run-time interval between snapshots."},
	{RunOutputSpacing, "run.output.spacing", EnumValue{EnumOutputSpacing, int(SpacingLinear)},
		"Distribution of snapshot times."},
	{RunOutputCustomTimes, "run.output.custom_times", "0, 0.5, 1, 2, 10",
		"Comma-separated output times used by custom spacing."},
	{RunOutputFirstIndex, "run.output.first_index", 0,
		"Index of the first snapshot; nonzero when resuming."},
	{RunOutputName, "run.output.name", "out_%d.txt",
		"File mask of snapshots; %d is the running index, %e the quantity name."},
	{RunOutputPath, "run.output.path", paths.New("out"),
		"Directory receiving all run outputs."},
	{RunOutputQuantities, "run.output.quantities",
		Flags(EnumOutputQuantity, QuantityFlagPosition, QuantityFlagVelocity, QuantityFlagMass,
			QuantityFlagDensity, QuantityFlagEnergy, QuantityFlagSmoothingLength),
		"Columns of the text output."},

	{RunThreadCount, "run.thread.cnt", 0,
		"Worker count of the scheduler; zero uses all available CPUs."},
	{RunThreadGranularity, "run.thread.granularity", 1000,
		"Particles processed by one worker in a single batch."},

	{RunLogger, "run.logger", EnumValue{EnumLogger, int(LoggerStdout)},
		"Log sink of the run."},
	{RunLoggerFile, "run.logger.file", paths.New("log.txt"),
		"Log file path when the file logger is selected."},
	{RunLoggerVerbosity, "run.logger.verbosity", 2,
		"Log verbosity from 0 (quiet) to 3."},

	{SphSolverType, "sph.solver.type", EnumValue{EnumSolver, int(SolverSymmetric)},
		"Solver computing the particle derivatives."},
	{SphSolverForces, "sph.solver.forces", Flags(EnumForce, ForcePressure, ForceSolidStress),
		"Forces included in the physical model."},
	{SphFinder, "sph.finder", EnumValue{EnumFinder, int(FinderKdTree)},
		"Spatial index used for neighbour queries."},
	{SphKernelRadius, "sph.kernel.radius", 2.0,
		"Support radius of the SPH kernel in units of the smoothing length."},
	{SphSmoothingLength, "sph.adaptive_smoothing_length", FlagSet{ID: EnumSmoothingLength,
		Bits: SmoothingLengthContinuity},
		"Evolution of the smoothing length; empty flags keep it constant."},
	{SphNeighbourRange, "sph.neighbour.range", geometry.Interval{Lo: 25, Hi: 100},
		"Neighbour counts the solver tries to enforce."},
	{SphNeighbourEnforcing, "sph.neighbour.enforcing", 0.2,
		"Strength of neighbour-count enforcing; -infinity disables it."},
	{SphAVType, "sph.av.type", EnumValue{EnumArtificialViscosity, int(AVStandard)},
		"Artificial viscosity formulation."},
	{SphAVAlpha, "sph.av.alpha", 1.5,
		"Alpha coefficient of the standard artificial viscosity."},
	{SphAVBeta, "sph.av.beta", 3.0,
		"Beta coefficient of the standard artificial viscosity."},
	{SphAVUseBalsara, "sph.av.balsara", false,
		"Gates the artificial viscosity by the Balsara switch."},
	{SphSmoothingLengthMin, "sph.smoothing_length.min", 1e-5,
		"Lower bound of the smoothing length."},
	{SphStabilizationDamping, "sph.stabilization.damping", 0.1,
		"Velocity damping coefficient of the stabilization phase."},
	{SphSurfaceTension, "sph.surface_tension", 0.0,
		"Surface tension coefficient."},
	{SphConstantAcceleration, "sph.constant_acceleration", geometry.Vec{},
		"Homogeneous external acceleration."},
	{SphFrameAngularFrequency, "frame.angular_frequency", geometry.Vec{},
		"Angular frequency of the non-inertial reference frame."},

	{TimesteppingIntegrator, "timestep.integrator",
		EnumValue{EnumTimestepping, int(TimesteppingPredictorCorrector)},
		"Integration scheme advancing the state."},
	{TimesteppingCourantNumber, "timestep.courant_number", 0.2,
		"Courant number of the CFL condition."},
	{TimesteppingInitialStep, "timestep.initial", 0.03,
		"Initial timestep; also the fallback when all criteria are disabled."},
	{TimesteppingMaxStep, "timestep.max_step", 10.0,
		"Upper bound of the adaptive timestep."},
	{TimesteppingCriterion, "timestep.criterion",
		Flags(EnumCriterion, CriterionCourant, CriterionDerivative, CriterionAcceleration),
		"Active timestep criteria, combined by the generalised mean."},
	{TimesteppingDerivativeFactor, "timestep.derivative_factor", 0.2,
		"Multiplier of the value-to-derivative criterion."},
	{TimesteppingAccelerationFactor, "timestep.acceleration_factor", 0.2,
		"Multiplier of the acceleration criterion."},
	{TimesteppingDivergenceFactor, "timestep.divergence_factor", 0.005,
		"Multiplier of the velocity divergence criterion."},
	{TimesteppingMeanPower, "timestep.mean_power", math.Inf(-1),
		"Exponent of the generalised mean combining per-particle steps; -infinity selects the minimum."},
	{TimesteppingMaxChange, "timestep.max_change", math.Inf(1),
		"Maximum relative growth of the timestep between steps."},
	{TimesteppingMidpointCount, "timestep.midpoint_count", 5,
		"Substep count of the modified midpoint method."},
	{TimesteppingBSAccuracy, "timestep.bs.accuracy", 1e-3,
		"Target accuracy of the Bulirsch-Stoer integrator."},

	{GravitySolver, "gravity.solver", EnumValue{EnumGravity, int(GravityBarnesHut)},
		"Gravity evaluation scheme."},
	{GravityOpeningAngle, "gravity.opening_angle", 0.5,
		"Opening angle of the Barnes-Hut tree walk."},
	{GravityMultipoleOrder, "gravity.multipole_order", 3,
		"Order of the multipole expansion."},
	{GravityCentralMass, "gravity.central_mass", 5.972e24,
		"Mass of the central body of the spherical potential."},
	{GravityConstantID, "gravity.constant", GravitationalConstant,
		"Gravitational constant; changeable for scaled simulations."},
	{GravityRecomputationPeriod, "gravity.recomputation_period", 0.0,
		"Period of gravity re-evaluation; accelerations are cached in between. Zero recomputes every step."},

	{CollisionHandlerID, "collision.handler",
		EnumValue{EnumCollisionHandler, int(CollisionMergeOrBounce)},
		"Outcome applied to particle collisions."},
	{CollisionOverlapID, "collision.overlap", EnumValue{EnumOverlap, int(OverlapRepel)},
		"Resolution of particle overlaps."},
	{CollisionRestitutionNormal, "collision.restitution_normal", 0.8,
		"Normal restitution coefficient of bounces."},
	{CollisionRestitutionTangent, "collision.restitution_tangent", 1.0,
		"Tangential restitution coefficient of bounces."},
	{CollisionAllowedOverlap, "collision.allowed_overlap", 0.01,
		"Relative overlap below which contacts are not reported."},
	{CollisionMergingLimit, "collision.merging_limit", 1.0,
		"Scale of the escape-speed merge condition; zero merges unconditionally."},
	{CollisionRotationMergingLimit, "collision.rotation_merging_limit", 1.0,
		"Analogous limit for the rotation of the merger."},

	{NBodyInertiaTensor, "nbody.inertia_tensor", false,
		"Evolves the inertia tensors of particles instead of assuming spheres."},
	{NBodyMaxRotationAngle, "nbody.max_rotation_angle", 0.5,
		"Maximum rotation of a particle within a single timestep."},
	{NBodyAggregatesEnable, "nbody.aggregates.enable", false,
		"Enables rigid aggregates in the N-body solver."},
	{NBodyAggregatesSource, "nbody.aggregates.source",
		EnumValue{EnumAggregateSource, int(AggregatesFromParticles)},
		"Initial grouping of particles into aggregates."},

	{DomainCenter, "domain.center", geometry.Vec{},
		"Center of the computational domain."},
	{DomainRadius, "domain.radius", 1.0,
		"Radius of a spherical domain."},
	{DomainSize, "domain.size", geometry.Vec{1, 1, 1},
		"Dimensions of a box domain."},

	{FrameTilt, "frame.tilt", geometry.NullTensor(),
		"Orientation of the body frame relative to the world frame."},
})

// RunTable exposes the immutable run defaults table.
func RunTable() *Table[RunID] { return runTable }
