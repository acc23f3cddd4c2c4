package aggregate

import (
	"testing"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/storage"
)

func particleStorage(pos []geometry.Vec, masses []float64) *storage.Storage {
	st := storage.New()
	st.InsertVector(quantity.Position, quantity.Second, pos)
	st.InsertScalar(quantity.Mass, quantity.Zero, masses)
	st.InsertIndex(quantity.AggregateID, make([]int32, len(pos)))
	return st
}

func TestMergePreservesIDs(t *testing.T) {
	st := particleStorage(
		[]geometry.Vec{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}},
		[]float64{1, 1, 1},
	)
	h := NewSingletons(st)
	if h.Count() != 3 {
		t.Fatalf("count = %d", h.Count())
	}

	// equal sizes: the lower original id survives
	h.Merge(h.AggregateOf(0), h.AggregateOf(1))
	h.Merge(h.AggregateOf(0), h.AggregateOf(2))
	if h.Count() != 1 {
		t.Errorf("count after merges = %d", h.Count())
	}
	for p := 0; p < 3; p++ {
		if h.AggregateOf(p).ID() != 0 {
			t.Errorf("particle %d has aggregate id %d", p, h.AggregateOf(p).ID())
		}
	}
	ids, _ := st.Indices(quantity.AggregateID)
	for p, id := range ids {
		if id != 0 {
			t.Errorf("id quantity of particle %d = %d", p, id)
		}
	}
}

func TestMergeSelfIsNoOp(t *testing.T) {
	st := particleStorage([]geometry.Vec{{0, 0, 0}, {1, 0, 0}}, []float64{1, 1})
	h := NewSingletons(st)
	h.Merge(h.AggregateOf(0), h.AggregateOf(1))
	a := h.AggregateOf(0)
	h.Merge(a, a)
	if h.Count() != 1 || a.Size() != 2 {
		t.Errorf("count %d size %d", h.Count(), a.Size())
	}
}

func TestLargerAggregateSurvives(t *testing.T) {
	st := particleStorage(
		[]geometry.Vec{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}},
		[]float64{1, 1, 1},
	)
	h := NewSingletons(st)
	h.Merge(h.AggregateOf(1), h.AggregateOf(2)) // id 1 survives the tie
	if h.AggregateOf(2).ID() != 1 {
		t.Fatalf("id = %d", h.AggregateOf(2).ID())
	}
	h.Merge(h.AggregateOf(0), h.AggregateOf(1)) // size 2 beats size 1
	if h.AggregateOf(0).ID() != 1 {
		t.Errorf("id after size-based merge = %d", h.AggregateOf(0).ID())
	}
}

func TestSameAggregateIsEquivalence(t *testing.T) {
	st := particleStorage(
		[]geometry.Vec{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}},
		[]float64{1, 1, 1, 1},
	)
	h := NewSingletons(st)
	h.Merge(h.AggregateOf(0), h.AggregateOf(1))
	h.Merge(h.AggregateOf(2), h.AggregateOf(3))
	h.Merge(h.AggregateOf(1), h.AggregateOf(2))
	a := h.AggregateOf(0)
	for p := 1; p < 4; p++ {
		if h.AggregateOf(p) != a {
			t.Errorf("particle %d in different aggregate", p)
		}
	}
}

func TestFromPartitions(t *testing.T) {
	st := particleStorage(
		[]geometry.Vec{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}, {4, 0, 0}},
		[]float64{1, 1, 1, 1, 1},
	)
	_ = st.AddPartition(storage.NewMaterial(settings.NewBody()), 3)
	_ = st.AddPartition(storage.NewMaterial(settings.NewBody()), 2)
	h := NewFromPartitions(st)
	if h.Count() != 2 {
		t.Fatalf("count = %d", h.Count())
	}
	if h.AggregateOf(0) != h.AggregateOf(2) || h.AggregateOf(3) != h.AggregateOf(4) {
		t.Error("partition members in different aggregates")
	}
	if h.AggregateOf(2) == h.AggregateOf(3) {
		t.Error("partitions share an aggregate")
	}
}

// A rigidly rotating pair must keep its velocity field under Integrate.
func TestRegroupFromPersistedIDs(t *testing.T) {
	st := particleStorage(
		[]geometry.Vec{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}},
		[]float64{1, 1, 1, 1},
	)
	h := NewSingletons(st)
	h.Merge(h.AggregateOf(0), h.AggregateOf(1))
	h.Merge(h.AggregateOf(2), h.AggregateOf(3))

	// removal compacts the id quantity; the grouping must follow
	st.Remove([]int{1})
	rebuilt, err := NewFromIDs(st)
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt.ParticleCount() != 3 {
		t.Fatalf("tracked particles = %d", rebuilt.ParticleCount())
	}
	if rebuilt.Count() != 2 {
		t.Errorf("count = %d", rebuilt.Count())
	}
	if rebuilt.AggregateOf(0).ID() != 0 {
		t.Errorf("survivor id = %d", rebuilt.AggregateOf(0).ID())
	}
	if rebuilt.AggregateOf(1) != rebuilt.AggregateOf(2) {
		t.Error("merged pair separated by the rebuild")
	}
	if rebuilt.AggregateOf(1).ID() != 2 {
		t.Errorf("pair id = %d", rebuilt.AggregateOf(1).ID())
	}

	if _, err := NewFromIDs(storage.New()); err == nil {
		t.Error("rebuild without an id quantity must fail")
	}
}

func TestIntegrateKeepsRigidRotation(t *testing.T) {
	omega := geometry.V(0, 0, 2)
	pos := []geometry.Vec{{1, 0, 0}, {-1, 0, 0}}
	st := particleStorage(pos, []float64{1, 1})
	v, _ := st.Vectors(quantity.Position, quantity.Dt)
	for i := range v {
		v[i] = geometry.Cross(omega, pos[i])
	}
	h := NewSingletons(st)
	h.Merge(h.AggregateOf(0), h.AggregateOf(1))

	if err := h.Integrate(1e-3, nil); err != nil {
		t.Fatal(err)
	}
	for i := range v {
		want := geometry.Cross(omega, pos[i])
		if v[i].Sub(want).Len() > 1e-9 {
			t.Errorf("particle %d velocity %v, want %v", i, v[i], want)
		}
	}
	// centripetal acceleration omega x (omega x d)
	dv, _ := st.Vectors(quantity.Position, quantity.D2t)
	want0 := geometry.Cross(omega, geometry.Cross(omega, pos[0]))
	if dv[0].Sub(want0).Len() > 1e-9 {
		t.Errorf("acceleration %v, want %v", dv[0], want0)
	}
}

func TestIntegrateSkipsSingletons(t *testing.T) {
	st := particleStorage([]geometry.Vec{{0, 0, 0}}, []float64{1})
	v, _ := st.Vectors(quantity.Position, quantity.Dt)
	v[0] = geometry.V(1, 2, 3)
	h := NewSingletons(st)
	if err := h.Integrate(0.1, nil); err != nil {
		t.Fatal(err)
	}
	if v[0] != geometry.V(1, 2, 3) {
		t.Errorf("singleton velocity changed: %v", v[0])
	}
}

func TestMomentumPreservedByIntegrate(t *testing.T) {
	pos := []geometry.Vec{{1, 0, 0}, {-1, 0.5, 0}, {0, -0.5, 1}}
	masses := []float64{1, 2, 3}
	st := particleStorage(pos, masses)
	v, _ := st.Vectors(quantity.Position, quantity.Dt)
	v[0] = geometry.V(0, 1, 0)
	v[1] = geometry.V(0.2, -0.3, 0.1)
	v[2] = geometry.V(-0.1, 0, 0.4)
	before := geometry.Vec{}
	for i := range v {
		before = before.Add(v[i].Scale(masses[i]))
	}
	h := NewSingletons(st)
	h.Merge(h.AggregateOf(0), h.AggregateOf(1))
	h.Merge(h.AggregateOf(0), h.AggregateOf(2))
	if err := h.Integrate(1e-3, nil); err != nil {
		t.Fatal(err)
	}
	after := geometry.Vec{}
	for i := range v {
		after = after.Add(v[i].Scale(masses[i]))
	}
	if after.Sub(before).Len() > 1e-9*before.Len() {
		t.Errorf("momentum %v -> %v", before, after)
	}
}
