package settings

// Solver selects how particle derivatives are evaluated.
type Solver int

const (
	SolverSymmetric Solver = iota
	SolverAsymmetric
	SolverNBody
)

// Finder selects the spatial index used for neighbour queries.
type Finder int

const (
	FinderBruteForce Finder = iota
	FinderUniformGrid
	FinderHashGrid
	FinderKdTree
	FinderLinkedList
	FinderOctree
)

// Timestepping selects the integration scheme.
type Timestepping int

const (
	TimesteppingEuler Timestepping = iota
	TimesteppingLeapfrog
	TimesteppingRungeKutta
	TimesteppingPredictorCorrector
	TimesteppingModifiedMidpoint
	TimesteppingBulirschStoer
)

// Timestep criteria, combined as flags.
const (
	CriterionCourant      = 1 << iota // dt <= C * h / cs
	CriterionDerivative               // dt <= factor * |v| / |dv|
	CriterionAcceleration             // dt <= factor * sqrt(h / |a|)
	CriterionDivergence               // dt <= factor / |div v|
)

// Forces included by the SPH solvers, combined as flags.
const (
	ForcePressure = 1 << iota
	ForceSolidStress
	ForceSelfGravity
	ForceConstantAcceleration
	ForceInertial
	ForceSurfaceTension
)

// ArtificialViscosity selects the AV formulation.
type ArtificialViscosity int

const (
	AVNone ArtificialViscosity = iota
	AVStandard
	AVRiemann
	AVMorrisMonaghan
)

// Smoothing-length evolution, combined as flags (continuity equation and
// neighbour enforcing can be active together).
const (
	SmoothingLengthConst              = 0
	SmoothingLengthContinuity         = 1 << 0
	SmoothingLengthNeighbourEnforcing = 1 << 1
)

// Gravity selects the gravity evaluation scheme of the N-body solver.
type Gravity int

const (
	GravityNone Gravity = iota
	GravityBruteForce
	GravityBarnesHut
	GravitySphericalPotential
)

// CollisionHandler selects the outcome of an actual particle collision.
type CollisionHandler int

const (
	CollisionNone CollisionHandler = iota
	CollisionPerfectMerging
	CollisionElasticBounce
	CollisionMergeOrBounce
	CollisionAggregates
)

// Overlap selects how particle overlaps are resolved.
type Overlap int

const (
	OverlapNone Overlap = iota
	OverlapForceMerge
	OverlapRepel
	OverlapRepelOrMerge
	OverlapInternalBounce
	OverlapPassOrMerge
)

// LoggerKind selects the log sink of a run.
type LoggerKind int

const (
	LoggerNone LoggerKind = iota
	LoggerStdout
	LoggerFile
)

// OutputKind selects the snapshot format.
type OutputKind int

const (
	OutputNone OutputKind = iota
	OutputText
	OutputState
	OutputVTK
	OutputSFD
)

// OutputSpacing selects how snapshot times are distributed.
type OutputSpacing int

const (
	SpacingLinear OutputSpacing = iota
	SpacingLogarithmic
	SpacingCustom
)

// Output quantity flags select the columns of the text output.
const (
	QuantityFlagPosition = 1 << iota
	QuantityFlagVelocity
	QuantityFlagMass
	QuantityFlagDensity
	QuantityFlagEnergy
	QuantityFlagPressure
	QuantityFlagDamage
	QuantityFlagSmoothingLength
	QuantityFlagAggregateID
)

// EOS selects the equation of state of a body.
type EOS int

const (
	EOSIdealGas EOS = iota
	EOSTaitMurnaghan
	EOSTillotson
)

// Distribution selects the initial particle packing of a body.
type Distribution int

const (
	DistributionHexagonal Distribution = iota
	DistributionCubic
	DistributionRandom
)

// AggregateSource selects how initial aggregates are created.
type AggregateSource int

const (
	AggregatesFromParticles AggregateSource = iota
	AggregatesFromMaterials
)

// RunType labels the simulation type stored in output metadata.
type RunType int

const (
	RunTypeSPH RunType = iota
	RunTypeNBody
	RunTypeRubblePile
)

func init() {
	RegisterEnum(EnumSolver, []EnumDef{
		{int(SolverSymmetric), "symmetric_solver", "SPH solver with pairwise symmetric accumulation"},
		{int(SolverAsymmetric), "asymmetric_solver", "SPH solver accumulating only into the queried particle"},
		{int(SolverNBody), "nbody_solver", "gravity-only solver with collision handling"},
	})
	RegisterEnum(EnumFinder, []EnumDef{
		{int(FinderBruteForce), "brute_force", "O(N^2) pairwise search"},
		{int(FinderUniformGrid), "uniform_grid", "regular grid of cells"},
		{int(FinderHashGrid), "hash_grid", "sparse grid backed by a hash map"},
		{int(FinderKdTree), "kd_tree", "k-d tree with median splits"},
		{int(FinderLinkedList), "linked_list", "grid of per-cell particle chains"},
		{int(FinderOctree), "octree", "octree with leaf buckets"},
	})
	RegisterEnum(EnumTimestepping, []EnumDef{
		{int(TimesteppingEuler), "euler_explicit", "explicit (forward) Euler"},
		{int(TimesteppingLeapfrog), "leap_frog", "leapfrog, 2nd order"},
		{int(TimesteppingRungeKutta), "runge_kutta", "Runge-Kutta, 4th order"},
		{int(TimesteppingPredictorCorrector), "predictor_corrector", "predictor-corrector, 2nd order"},
		{int(TimesteppingModifiedMidpoint), "modified_midpoint", "modified midpoint with fixed substeps"},
		{int(TimesteppingBulirschStoer), "bulirsch_stoer", "Bulirsch-Stoer with adaptive order"},
	})
	RegisterEnum(EnumCriterion, []EnumDef{
		{CriterionCourant, "courant", "Courant-Friedrichs-Lewy condition"},
		{CriterionDerivative, "derivative", "by value-to-derivative ratio of quantities"},
		{CriterionAcceleration, "acceleration", "by particle acceleration"},
		{CriterionDivergence, "divergence", "by velocity divergence"},
	})
	RegisterEnum(EnumForce, []EnumDef{
		{ForcePressure, "pressure", "pressure gradient"},
		{ForceSolidStress, "solid_stress", "divergence of the deviatoric stress"},
		{ForceSelfGravity, "self_gravity", "gravitational attraction of particles"},
		{ForceConstantAcceleration, "constant_acceleration", "homogeneous external field"},
		{ForceInertial, "inertial", "Coriolis and centrifugal forces"},
		{ForceSurfaceTension, "surface_tension", "surface tension"},
	})
	RegisterEnum(EnumArtificialViscosity, []EnumDef{
		{int(AVNone), "none", "no artificial viscosity"},
		{int(AVStandard), "standard", "Monaghan 1989"},
		{int(AVRiemann), "riemann", "Riemann-solver based"},
		{int(AVMorrisMonaghan), "morris_monaghan", "time-dependent coefficients"},
	})
	RegisterEnum(EnumSmoothingLength, []EnumDef{
		{SmoothingLengthContinuity, "continuity_equation", "h from the continuity equation"},
		{SmoothingLengthNeighbourEnforcing, "sound_speed_enforcing", "term enforcing the neighbour count"},
	})
	RegisterEnum(EnumGravity, []EnumDef{
		{int(GravityNone), "none", "no gravity"},
		{int(GravityBruteForce), "brute_force", "pairwise summation"},
		{int(GravityBarnesHut), "barnes_hut", "Barnes-Hut octree"},
		{int(GravitySphericalPotential), "spherical", "point mass in spherical potential"},
	})
	RegisterEnum(EnumCollisionHandler, []EnumDef{
		{int(CollisionNone), "none", "collisions are ignored"},
		{int(CollisionPerfectMerging), "perfect_merging", "colliding particles always merge"},
		{int(CollisionElasticBounce), "elastic_bounce", "bounce with restitution coefficients"},
		{int(CollisionMergeOrBounce), "merge_or_bounce", "merge below mutual escape speed, else bounce"},
		{int(CollisionAggregates), "aggregate", "colliding particles join into rigid aggregates"},
	})
	RegisterEnum(EnumOverlap, []EnumDef{
		{int(OverlapNone), "none", "overlaps are ignored"},
		{int(OverlapForceMerge), "force_merge", "overlapping particles merge"},
		{int(OverlapRepel), "repel", "particles shift apart along the connecting line"},
		{int(OverlapRepelOrMerge), "repel_or_merge", "merge when below escape speed, else repel"},
		{int(OverlapInternalBounce), "internal_bounce", "bounce when moving towards each other"},
		{int(OverlapPassOrMerge), "pass_or_merge", "merge when below escape speed, else pass through"},
	})
	RegisterEnum(EnumLogger, []EnumDef{
		{int(LoggerNone), "none", "no log"},
		{int(LoggerStdout), "stdout", "log to standard output"},
		{int(LoggerFile), "file", "log to file"},
	})
	RegisterEnum(EnumOutput, []EnumDef{
		{int(OutputNone), "none", "no output"},
		{int(OutputText), "text_file", "tab-separated text file"},
		{int(OutputState), "state_file", "lossless state file allowing resume"},
		{int(OutputVTK), "vtk_file", "VTK unstructured grid"},
		{int(OutputSFD), "sfd_file", "size-frequency distribution"},
	})
	RegisterEnum(EnumOutputSpacing, []EnumDef{
		{int(SpacingLinear), "linear", "outputs equidistant in time"},
		{int(SpacingLogarithmic), "logarithmic", "output interval grows geometrically"},
		{int(SpacingCustom), "custom", "explicit list of output times"},
	})
	RegisterEnum(EnumOutputQuantity, []EnumDef{
		{QuantityFlagPosition, "position", "particle positions"},
		{QuantityFlagVelocity, "velocity", "particle velocities"},
		{QuantityFlagMass, "mass", "particle masses"},
		{QuantityFlagDensity, "density", "density"},
		{QuantityFlagEnergy, "energy", "specific internal energy"},
		{QuantityFlagPressure, "pressure", "pressure"},
		{QuantityFlagDamage, "damage", "scalar damage"},
		{QuantityFlagSmoothingLength, "smoothing_length", "smoothing length"},
		{QuantityFlagAggregateID, "aggregate_id", "persistent aggregate index"},
	})
	RegisterEnum(EnumEOS, []EnumDef{
		{int(EOSIdealGas), "ideal_gas", "ideal gas law"},
		{int(EOSTaitMurnaghan), "tait", "Tait-Murnaghan, weakly compressible"},
		{int(EOSTillotson), "tillotson", "Tillotson 1962"},
	})
	RegisterEnum(EnumDistribution, []EnumDef{
		{int(DistributionHexagonal), "hexagonal", "hexagonal close packing"},
		{int(DistributionCubic), "cubic", "cubic lattice"},
		{int(DistributionRandom), "random", "uniform random positions"},
	})
	RegisterEnum(EnumAggregateSource, []EnumDef{
		{int(AggregatesFromParticles), "particles", "one aggregate per particle"},
		{int(AggregatesFromMaterials), "materials", "one aggregate per material partition"},
	})
	RegisterEnum(EnumRunType, []EnumDef{
		{int(RunTypeSPH), "sph", "hydrodynamic simulation"},
		{int(RunTypeNBody), "nbody", "gravitational N-body simulation"},
		{int(RunTypeRubblePile), "rubble_pile", "rubble pile with aggregates"},
	})
}
