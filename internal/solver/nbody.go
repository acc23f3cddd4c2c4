package solver

import (
	"github.com/regolith-sim/regolith/internal/aggregate"
	"github.com/regolith-sim/regolith/internal/collision"
	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/gravity"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/sched"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// NBody evolves point masses under mutual gravity. Particles carry no
// hydrodynamic state; the smoothing length is reinterpreted as the physical
// radius of a sphere, which the collision pipeline uses for contact tests.
type NBody struct {
	sch  *sched.Scheduler
	grav gravity.Gravity

	// gravity is rebuilt only when this much simulated time has passed
	// since the last evaluation; zero recomputes every step
	period    float64
	lastBuild float64
	built     bool
	cached    []geometry.Vec

	engine *collision.Engine

	aggregates    bool
	aggSource     settings.AggregateSource
	holder        *aggregate.Holder
	holderSize    int
	inertiaEvolve bool
}

func NewNBody(run *settings.Settings[settings.RunID], sch *sched.Scheduler) (*NBody, error) {
	grav, err := gravity.FromSettings(run)
	if err != nil {
		return nil, err
	}
	engine, err := collision.EngineFromSettings(run)
	if err != nil {
		return nil, err
	}
	source, err := settings.GetEnum[settings.AggregateSource](run, settings.NBodyAggregatesSource)
	if err != nil {
		return nil, err
	}
	return &NBody{
		sch:           sch,
		grav:          grav,
		period:        settings.MustGet[float64](run, settings.GravityRecomputationPeriod),
		engine:        engine,
		aggregates:    settings.MustGet[bool](run, settings.NBodyAggregatesEnable),
		aggSource:     source,
		inertiaEvolve: settings.MustGet[bool](run, settings.NBodyInertiaTensor),
	}, nil
}

func (nb *NBody) Create(st *storage.Storage, mat *storage.Material) error {
	if _, err := st.Vectors(quantity.Position, quantity.Value); err != nil {
		return err
	}
	if _, err := st.Scalars(quantity.Mass, quantity.Value); err != nil {
		return err
	}
	if _, err := st.Scalars(quantity.SmoothingLength, quantity.Value); err != nil {
		return err
	}
	if _, err := st.Vectors(quantity.AngularFrequency, quantity.Value); err != nil {
		st.InsertVector(quantity.AngularFrequency, quantity.Zero,
			make([]geometry.Vec, st.ParticleCount()))
	}
	if nb.inertiaEvolve {
		if _, err := st.Tensors(quantity.MomentOfInertia, quantity.Value); err != nil {
			st.InsertTensor(quantity.MomentOfInertia, quantity.Zero,
				sphereInertias(st))
		}
	}
	if nb.aggregates && !st.Has(quantity.AggregateID) {
		st.InsertIndex(quantity.AggregateID, make([]int32, st.ParticleCount()))
	}
	return nil
}

func sphereInertias(st *storage.Storage) []geometry.SymTensor {
	m, _ := st.Scalars(quantity.Mass, quantity.Value)
	h, _ := st.Scalars(quantity.SmoothingLength, quantity.Value)
	out := make([]geometry.SymTensor, len(m))
	for i := range out {
		mom := 0.4 * m[i] * h[i] * h[i]
		out[i].Diag = geometry.V(mom, mom, mom)
	}
	return out
}

func (nb *NBody) Integrate(st *storage.Storage, rs *stats.Stats) error {
	r, err := st.Vectors(quantity.Position, quantity.Value)
	if err != nil {
		return err
	}
	dv, err := st.Vectors(quantity.Position, quantity.D2t)
	if err != nil {
		return err
	}
	m, err := st.Scalars(quantity.Mass, quantity.Value)
	if err != nil {
		return err
	}
	for i := range dv {
		dv[i] = geometry.Vec{}
	}

	now := 0.0
	if rs != nil && rs.Has(stats.Time) {
		now = rs.Float(stats.Time)
	}
	fresh := !nb.built || len(nb.cached) != len(r) ||
		nb.period <= 0 || now-nb.lastBuild >= nb.period
	if fresh {
		nb.grav.Build(r, m)
		if len(nb.cached) != len(r) {
			nb.cached = make([]geometry.Vec, len(r))
		} else {
			for i := range nb.cached {
				nb.cached[i] = geometry.Vec{}
			}
		}
		nb.grav.EvalAll(nb.sch, nb.cached, rs)
		nb.lastBuild = now
		nb.built = true
	}
	copy(dv, nb.cached)

	attractors := st.Attractors()
	for i := range attractors {
		attractors[i].Acceleration = nb.grav.EvalPoint(attractors[i].Position)
	}

	if nb.aggregates {
		nb.ensureHolder(st)
		dt := 0.0
		if rs != nil && rs.Has(stats.Timestep) {
			dt = rs.Float(stats.Timestep)
		}
		if err := nb.holder.Integrate(dt, rs); err != nil {
			return err
		}
	}
	return nil
}

func (nb *NBody) Collide(st *storage.Storage, rs *stats.Stats, dt float64) error {
	before := st.ParticleCount()
	if err := nb.engine.Resolve(st, dt, rs); err != nil {
		return err
	}
	if nb.aggregates && st.ParticleCount() != before {
		// indices shifted; regroup from the persisted aggregate ids
		nb.holder = nil
	}
	return nil
}

// ensureHolder builds the aggregate grouping on first use. When the
// particle count changed under an existing holder, the grouping is rebuilt
// from the persisted aggregate ids instead, so merges survive removals.
func (nb *NBody) ensureHolder(st *storage.Storage) {
	if nb.holder != nil && nb.holderSize == st.ParticleCount() {
		return
	}
	if nb.holderSize > 0 {
		if h, err := aggregate.NewFromIDs(st); err == nil {
			nb.holder = h
			nb.holderSize = st.ParticleCount()
			st.SetUserData(nb.holder)
			return
		}
	}
	if nb.aggSource == settings.AggregatesFromMaterials {
		nb.holder = aggregate.NewFromPartitions(st)
	} else {
		nb.holder = aggregate.NewSingletons(st)
	}
	nb.holderSize = st.ParticleCount()
	st.SetUserData(nb.holder)
}
