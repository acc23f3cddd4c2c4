package collision

import (
	"math"
	"testing"

	"github.com/regolith-sim/regolith/internal/aggregate"
	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

func pairStorage(r1, r2 geometry.Vec, v1, v2 geometry.Vec, m1, m2, h1, h2 float64) *storage.Storage {
	st := storage.New()
	st.InsertVector(quantity.Position, quantity.Second, []geometry.Vec{r1, r2})
	v, _ := st.Vectors(quantity.Position, quantity.Dt)
	v[0], v[1] = v1, v2
	st.InsertScalar(quantity.Mass, quantity.Zero, []float64{m1, m2})
	st.InsertScalar(quantity.SmoothingLength, quantity.Zero, []float64{h1, h2})
	return st
}

func TestRecordOrdering(t *testing.T) {
	var s Set
	s.Add(Record{I: 5, J: 2, Time: 0.2})
	s.Add(Record{I: 1, J: 3, Time: 0.1, Overlap: 0.5})
	s.Add(Record{I: 0, J: 4, Time: 0.1, Overlap: 0.9})
	out := s.Drain()
	if out[0].Overlap != 0.9 || out[1].Overlap != 0.5 || out[2].Time != 0.2 {
		t.Errorf("order = %+v", out)
	}
	if out[2].I != 2 || out[2].J != 5 {
		t.Error("indices must be normalised to i < j")
	}
	if !s.Empty() {
		t.Error("drain must empty the set")
	}
}

func TestRepelPreservesCenterOfMass(t *testing.T) {
	st := pairStorage(
		geometry.V(0, 0, 0), geometry.V(1.5, 0, 0),
		geometry.Vec{}, geometry.Vec{},
		1, 1, 1, 1,
	)
	e := &Engine{Handler: NullHandler{}, Overlap: &Repel{}, AllowedOverlap: 0.01}
	if err := e.Resolve(st, 0.1, nil); err != nil {
		t.Fatal(err)
	}
	r, _ := st.Vectors(quantity.Position, quantity.Value)
	dist := r[1].Sub(r[0]).Len()
	if dist < 1.98 {
		t.Errorf("distance after repel = %v", dist)
	}
	com := r[0].Add(r[1]).Scale(0.5)
	if com.Sub(geometry.V(0.75, 0, 0)).Len() > 1e-12 {
		t.Errorf("centre of mass moved to %v", com)
	}
	if r[0][1] != 0 || r[0][2] != 0 {
		t.Error("displacement must stay on the connecting line")
	}
}

func TestPerfectMergingConservation(t *testing.T) {
	st := pairStorage(
		geometry.V(0, 0, 0), geometry.V(1.9, 0, 0),
		geometry.V(1, 0, 0), geometry.V(-1, 0, 0),
		1, 3, 1, 1,
	)
	rs := stats.New()
	e := &Engine{Handler: &PerfectMerging{}, Overlap: NullOverlap{}, AllowedOverlap: 0.2}
	if err := e.Resolve(st, 1, rs); err != nil {
		t.Fatal(err)
	}
	if st.ParticleCount() != 1 {
		t.Fatalf("count = %d", st.ParticleCount())
	}
	m, _ := st.Scalars(quantity.Mass, quantity.Value)
	v, _ := st.Vectors(quantity.Position, quantity.Dt)
	h, _ := st.Scalars(quantity.SmoothingLength, quantity.Value)
	if m[0] != 4 {
		t.Errorf("merged mass = %v", m[0])
	}
	// momentum: 1*1 + 3*(-1) = -2, v = -0.5
	if math.Abs(v[0][0]+0.5) > 1e-12 {
		t.Errorf("merged velocity = %v", v[0])
	}
	if math.Abs(h[0]-math.Cbrt(2)) > 1e-12 {
		t.Errorf("merged radius = %v", h[0])
	}
	if rs.Int(stats.MergerCount) != 1 {
		t.Errorf("merger count = %d", rs.Int(stats.MergerCount))
	}
}

func TestElasticBounceHeadOn(t *testing.T) {
	st := pairStorage(
		geometry.V(-1.05, 0, 0), geometry.V(1.05, 0, 0),
		geometry.V(1, 0, 0), geometry.V(-1, 0, 0),
		1, 1, 1, 1,
	)
	e := &Engine{
		Handler:        &ElasticBounce{RestitutionNormal: 0.5, RestitutionTangent: 1},
		Overlap:        NullOverlap{},
		AllowedOverlap: 0.01,
	}
	if err := e.Resolve(st, 1, nil); err != nil {
		t.Fatal(err)
	}
	v, _ := st.Vectors(quantity.Position, quantity.Dt)
	// equal masses head-on: each keeps half of its reversed speed
	if math.Abs(v[0][0]+0.5) > 1e-12 || math.Abs(v[1][0]-0.5) > 1e-12 {
		t.Errorf("velocities = %v %v", v[0], v[1])
	}
	total := v[0].Add(v[1])
	if total.Len() > 1e-12 {
		t.Errorf("momentum not conserved: %v", total)
	}
}

func TestMergeOrBounceUsesEscapeSpeed(t *testing.T) {
	g := 6.674e-11
	merge := &MergeOrBounce{
		Bounce:       ElasticBounce{RestitutionNormal: 1, RestitutionTangent: 1},
		G:            g,
		MergingLimit: 1,
	}
	// fast pair bounces
	st := pairStorage(
		geometry.V(-1, 0, 0), geometry.V(1, 0, 0),
		geometry.V(1, 0, 0), geometry.V(-1, 0, 0),
		1e3, 1e3, 1, 1,
	)
	if err := merge.Initialize(st); err != nil {
		t.Fatal(err)
	}
	removed := map[int]struct{}{}
	res, err := merge.Collide(0, 1, removed)
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultBounce || len(removed) != 0 {
		t.Errorf("fast pair: result %v, removed %v", res, removed)
	}

	// slow pair merges: escape speed of 2e12 kg at 2 m is ~11.5 m/s
	st = pairStorage(
		geometry.V(-1, 0, 0), geometry.V(1, 0, 0),
		geometry.V(0.01, 0, 0), geometry.V(-0.01, 0, 0),
		1e12, 1e12, 1, 1,
	)
	if err := merge.Initialize(st); err != nil {
		t.Fatal(err)
	}
	removed = map[int]struct{}{}
	res, err = merge.Collide(0, 1, removed)
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultMerge || len(removed) != 1 {
		t.Errorf("slow pair: result %v, removed %v", res, removed)
	}
}

func TestDuplicateRemovalDiscarded(t *testing.T) {
	st := storage.New()
	st.InsertVector(quantity.Position, quantity.Second, []geometry.Vec{
		{0, 0, 0}, {1.0, 0, 0}, {2.0, 0, 0},
	})
	st.InsertScalar(quantity.Mass, quantity.Zero, []float64{1, 1, 1})
	st.InsertScalar(quantity.SmoothingLength, quantity.Zero, []float64{0.8, 0.8, 0.8})

	p := &PerfectMerging{}
	if err := p.Initialize(st); err != nil {
		t.Fatal(err)
	}
	removed := map[int]struct{}{}
	if res, _ := p.Collide(0, 1, removed); res != ResultMerge {
		t.Fatal("first merge failed")
	}
	// particle 1 is gone; merging it again must be discarded
	if res, _ := p.Collide(2, 1, removed); res != ResultNone {
		t.Error("merge with a removed particle must be discarded")
	}
	if len(removed) != 1 {
		t.Errorf("removed = %v", removed)
	}
}

func TestPassOrMergeIgnoresFastPairs(t *testing.T) {
	p := &PassOrMerge{G: 6.674e-11, MergingLimit: 1}
	st := pairStorage(
		geometry.V(0, 0, 0), geometry.V(1, 0, 0),
		geometry.V(10, 0, 0), geometry.Vec{},
		1, 1, 1, 1,
	)
	if err := p.Initialize(st); err != nil {
		t.Fatal(err)
	}
	r, _ := st.Vectors(quantity.Position, quantity.Value)
	before := [2]geometry.Vec{r[0], r[1]}
	removed := map[int]struct{}{}
	res, _ := p.HandleOverlap(0, 1, removed)
	if res != ResultNone || r[0] != before[0] || r[1] != before[1] {
		t.Error("fast overlapping pair must pass through unchanged")
	}
}

func TestAggregateHandlerGluesPairs(t *testing.T) {
	st := pairStorage(
		geometry.V(0, 0, 0), geometry.V(1.9, 0, 0),
		geometry.V(1, 0, 0), geometry.V(-1, 0, 0),
		1, 1, 1, 1,
	)
	st.InsertIndex(quantity.AggregateID, []int32{0, 1})

	rs := stats.New()
	e := &Engine{
		Handler:        &AggregateHandler{},
		Overlap:        NullOverlap{},
		AllowedOverlap: 0.2,
	}
	if err := e.Resolve(st, 1, rs); err != nil {
		t.Fatal(err)
	}
	if st.ParticleCount() != 2 {
		t.Fatalf("count = %d, no particle may be removed", st.ParticleCount())
	}
	holder, ok := st.UserData().(*aggregate.Holder)
	if !ok {
		t.Fatal("no holder attached to the storage")
	}
	if holder.AggregateOf(0) != holder.AggregateOf(1) {
		t.Error("colliding pair not in one aggregate")
	}
	ids, _ := st.Indices(quantity.AggregateID)
	if ids[0] != 0 || ids[1] != 0 {
		t.Errorf("aggregate ids = %v", ids)
	}
	// zero restitution: the glued pair comes to a relative stop
	v, _ := st.Vectors(quantity.Position, quantity.Dt)
	if v[0].Sub(v[1]).Len() > 1e-12 {
		t.Errorf("relative velocity after gluing = %v", v[0].Sub(v[1]))
	}
	if rs.Int(stats.BounceCount) != 1 {
		t.Errorf("bounce count = %d", rs.Int(stats.BounceCount))
	}
}

func TestAggregateHandlerFromSettings(t *testing.T) {
	v, ok := settings.EnumValueOf(settings.EnumCollisionHandler, "aggregate")
	if !ok || v != int(settings.CollisionAggregates) {
		t.Fatalf("aggregate variant = %d, %v", v, ok)
	}
	run := settings.NewRun().Set(settings.CollisionHandlerID,
		settings.EnumValue{ID: settings.EnumCollisionHandler, Value: v})
	h, err := HandlerFromSettings(run)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := h.(*AggregateHandler); !ok {
		t.Errorf("handler = %T", h)
	}
}

func TestEngineFromSettings(t *testing.T) {
	run := settings.NewRun()
	run.Set(settings.CollisionHandlerID,
		settings.EnumValue{ID: settings.EnumCollisionHandler, Value: int(settings.CollisionMergeOrBounce)})
	run.Set(settings.CollisionOverlapID,
		settings.EnumValue{ID: settings.EnumOverlap, Value: int(settings.OverlapRepelOrMerge)})
	e, err := EngineFromSettings(run)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Handler.(*MergeOrBounce); !ok {
		t.Errorf("handler = %T", e.Handler)
	}
	if _, ok := e.Overlap.(*RepelOrMerge); !ok {
		t.Errorf("overlap = %T", e.Overlap)
	}
}
