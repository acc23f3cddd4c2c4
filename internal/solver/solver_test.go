package solver

import (
	"math"
	"math/rand"
	"testing"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/sched"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

func testRun() *settings.Settings[settings.RunID] {
	return settings.NewRun().
		Set(settings.SphSolverForces, settings.Flags(settings.EnumForce, settings.ForcePressure)).
		Set(settings.GravitySolver, settings.EnumValue{ID: settings.EnumGravity, Value: int(settings.GravityBruteForce)})
}

func testBody() *settings.Settings[settings.BodyID] {
	return settings.NewBody().
		Set(settings.BodyEOS, settings.EnumValue{ID: settings.EnumEOS, Value: int(settings.EOSIdealGas)}).
		Set(settings.BodyEnergy, 1e3)
}

// cloud builds a jittered cubic lattice of side particles per axis with the
// solver quantities created on it.
func cloud(t *testing.T, side int, sol Solver) (*storage.Storage, *storage.Material) {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	spacing := 1.0
	n := side * side * side
	r := make([]geometry.Vec, 0, n)
	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			for z := 0; z < side; z++ {
				p := geometry.V(float64(x), float64(y), float64(z))
				jitter := geometry.V(rng.Float64(), rng.Float64(), rng.Float64()).
					Sub(geometry.V(0.5, 0.5, 0.5)).Scale(0.2 * spacing)
				r = append(r, p.Add(jitter))
			}
		}
	}
	st := storage.New()
	st.InsertVector(quantity.Position, quantity.Second, r)
	st.InsertScalar(quantity.Mass, quantity.Zero, filled(n, 1.0))
	st.InsertScalar(quantity.SmoothingLength, quantity.First, filled(n, 1.5*spacing))

	mat := storage.NewMaterial(testBody())
	if err := st.AddPartition(mat, n); err != nil {
		t.Fatal(err)
	}
	if err := sol.Create(st, mat); err != nil {
		t.Fatal(err)
	}
	return st, mat
}

func totalForce(t *testing.T, st *storage.Storage) geometry.Vec {
	t.Helper()
	dv, err := st.Vectors(quantity.Position, quantity.D2t)
	if err != nil {
		t.Fatal(err)
	}
	m, _ := st.Scalars(quantity.Mass, quantity.Value)
	var sum geometry.Vec
	for i := range dv {
		sum = sum.Add(dv[i].Scale(m[i]))
	}
	return sum
}

func maxForce(t *testing.T, st *storage.Storage) float64 {
	t.Helper()
	dv, err := st.Vectors(quantity.Position, quantity.D2t)
	if err != nil {
		t.Fatal(err)
	}
	out := 0.0
	for i := range dv {
		out = math.Max(out, dv[i].Len())
	}
	return out
}

func TestSymmetricConservesMomentum(t *testing.T) {
	sol, err := NewSymmetric(testRun(), sched.Serial())
	if err != nil {
		t.Fatal(err)
	}
	st, _ := cloud(t, 4, sol)
	if err := sol.Integrate(st, nil); err != nil {
		t.Fatal(err)
	}
	scale := maxForce(t, st)
	if scale == 0 {
		t.Fatal("no forces at all, nothing is being tested")
	}
	if f := totalForce(t, st); f.Len() > 1e-10*scale {
		t.Errorf("net force %v at force scale %v", f, scale)
	}
}

func TestSymmetricMatchesAsymmetric(t *testing.T) {
	asym, err := NewAsymmetric(testRun(), sched.Serial())
	if err != nil {
		t.Fatal(err)
	}
	sym, err := NewSymmetric(testRun(), sched.Serial())
	if err != nil {
		t.Fatal(err)
	}
	st1, _ := cloud(t, 3, asym)
	st2 := st1.Clone()
	if err := asym.Integrate(st1, nil); err != nil {
		t.Fatal(err)
	}
	if err := sym.Integrate(st2, nil); err != nil {
		t.Fatal(err)
	}

	dv1, _ := st1.Vectors(quantity.Position, quantity.D2t)
	dv2, _ := st2.Vectors(quantity.Position, quantity.D2t)
	drho1, _ := st1.Scalars(quantity.Density, quantity.Dt)
	drho2, _ := st2.Scalars(quantity.Density, quantity.Dt)
	for i := range dv1 {
		if diff := dv1[i].Sub(dv2[i]).Len(); diff > 1e-9*(1+dv1[i].Len()) {
			t.Fatalf("particle %d: dv %v vs %v", i, dv1[i], dv2[i])
		}
		if diff := math.Abs(drho1[i] - drho2[i]); diff > 1e-9*(1+math.Abs(drho1[i])) {
			t.Fatalf("particle %d: drho %v vs %v", i, drho1[i], drho2[i])
		}
	}
}

func TestSymmetricParallelMatchesSerial(t *testing.T) {
	serial, err := NewSymmetric(testRun(), sched.Serial())
	if err != nil {
		t.Fatal(err)
	}
	par, err := NewSymmetric(testRun(), sched.New(4, 1))
	if err != nil {
		t.Fatal(err)
	}
	st1, _ := cloud(t, 3, serial)
	st2 := st1.Clone()
	if err := serial.Integrate(st1, nil); err != nil {
		t.Fatal(err)
	}
	if err := par.Integrate(st2, nil); err != nil {
		t.Fatal(err)
	}
	dv1, _ := st1.Vectors(quantity.Position, quantity.D2t)
	dv2, _ := st2.Vectors(quantity.Position, quantity.D2t)
	for i := range dv1 {
		if diff := dv1[i].Sub(dv2[i]).Len(); diff > 1e-9*(1+dv1[i].Len()) {
			t.Fatalf("particle %d: dv %v vs %v", i, dv1[i], dv2[i])
		}
	}
}

func TestSurfaceTensionNotImplemented(t *testing.T) {
	run := settings.NewRun().Set(settings.SphSolverForces,
		settings.Flags(settings.EnumForce, settings.ForceSurfaceTension))
	if _, err := NewAsymmetric(run, sched.Serial()); err == nil {
		t.Fatal("expected an error for the surface tension force")
	}
}

// inert satisfies Solver without touching the state, so the wrapper's own
// contribution can be observed in isolation.
type inert struct{ noCollide }

func (inert) Create(*storage.Storage, *storage.Material) error { return nil }
func (inert) Integrate(*storage.Storage, *stats.Stats) error   { return nil }

func TestStabilizationDampsVelocityDeviation(t *testing.T) {
	run := settings.NewRun().
		Set(settings.RunStartTime, 0.0).
		Set(settings.RunEndTime, 10.0).
		Set(settings.SphStabilizationDamping, 0.1)
	sb := NewStabilization(run, inert{})

	st := storage.New()
	rng := rand.New(rand.NewSource(7))
	n := 50
	r := make([]geometry.Vec, n)
	for i := range r {
		r[i] = geometry.V(rng.Float64(), rng.Float64(), rng.Float64())
	}
	st.InsertVector(quantity.Position, quantity.Second, r)
	v, _ := st.Vectors(quantity.Position, quantity.Dt)
	for i := range v {
		v[i] = geometry.V(rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64())
	}
	st.InsertScalar(quantity.Mass, quantity.Zero, filled(n, 2.0))
	st.InsertScalar(quantity.Damage, quantity.Zero, filled(n, 0.5))

	deviation := func() float64 {
		r, _ := st.Vectors(quantity.Position, quantity.Value)
		v, _ := st.Vectors(quantity.Position, quantity.Dt)
		m, _ := st.Scalars(quantity.Mass, quantity.Value)
		com, vcom, omega := rigidBodyField(r, v, m)
		sum := 0.0
		for i := range v {
			rigid := vcom.Add(geometry.Cross(omega, r[i].Sub(com)))
			sum += v[i].Sub(rigid).Len()
		}
		return sum / float64(n)
	}

	prev := deviation()
	if prev == 0 {
		t.Fatal("initial state has no deviation to damp")
	}
	for step := 0; step < 5; step++ {
		rs := stats.New()
		rs.Set(stats.Time, float64(step))
		if err := sb.Integrate(st, rs); err != nil {
			t.Fatal(err)
		}
		cur := deviation()
		if cur >= prev {
			t.Fatalf("step %d: deviation %v did not decrease from %v", step, cur, prev)
		}
		prev = cur

		damage, _ := st.Scalars(quantity.Damage, quantity.Value)
		for i, d := range damage {
			if d != 0 {
				t.Fatalf("step %d: damage[%d] = %v", step, i, d)
			}
		}
	}
}

func TestStabilizationExpiresAtEndTime(t *testing.T) {
	run := settings.NewRun().
		Set(settings.RunStartTime, 0.0).
		Set(settings.RunEndTime, 1.0).
		Set(settings.SphStabilizationDamping, 0.5)
	sb := NewStabilization(run, inert{})

	st := storage.New()
	st.InsertVector(quantity.Position, quantity.Second,
		[]geometry.Vec{geometry.V(0, 0, 0), geometry.V(1, 0, 0)})
	v, _ := st.Vectors(quantity.Position, quantity.Dt)
	v[0] = geometry.V(0, 1, 0)
	v[1] = geometry.V(0, -1, 0)
	st.InsertScalar(quantity.Mass, quantity.Zero, []float64{1, 1})

	rs := stats.New()
	rs.Set(stats.Time, 1.0)
	if err := sb.Integrate(st, rs); err != nil {
		t.Fatal(err)
	}
	if v[0].Sub(geometry.V(0, 1, 0)).Len() > 1e-12 {
		t.Errorf("velocity changed at the end of the phase: %v", v[0])
	}
}

func nbodyPair(t *testing.T, sol *NBody) *storage.Storage {
	t.Helper()
	st := storage.New()
	st.InsertVector(quantity.Position, quantity.Second,
		[]geometry.Vec{geometry.V(0, 0, 0), geometry.V(10, 0, 0)})
	st.InsertScalar(quantity.Mass, quantity.Zero, []float64{1e10, 2e10})
	st.InsertScalar(quantity.SmoothingLength, quantity.Zero, []float64{1, 1})
	mat := storage.NewMaterial(testBody())
	if err := st.AddPartition(mat, 2); err != nil {
		t.Fatal(err)
	}
	if err := sol.Create(st, mat); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestNBodyConservesMomentum(t *testing.T) {
	sol, err := NewNBody(testRun(), sched.Serial())
	if err != nil {
		t.Fatal(err)
	}
	st := nbodyPair(t, sol)
	if err := sol.Integrate(st, nil); err != nil {
		t.Fatal(err)
	}
	dv, _ := st.Vectors(quantity.Position, quantity.D2t)
	if dv[0][0] <= 0 || dv[1][0] >= 0 {
		t.Fatalf("accelerations not attractive: %v %v", dv[0], dv[1])
	}
	if f := totalForce(t, st); f.Len() > 1e-12*maxForce(t, st) {
		t.Errorf("net force %v", f)
	}
}

func TestNBodyRecomputationPeriod(t *testing.T) {
	run := testRun().Set(settings.GravityRecomputationPeriod, 1.0)
	sol, err := NewNBody(run, sched.Serial())
	if err != nil {
		t.Fatal(err)
	}
	st := nbodyPair(t, sol)

	rs := stats.New()
	rs.Set(stats.Time, 0.0)
	if err := sol.Integrate(st, rs); err != nil {
		t.Fatal(err)
	}
	dv, _ := st.Vectors(quantity.Position, quantity.D2t)
	first := dv[0]

	// move the pair apart; within the period the cached field is reused
	r, _ := st.Vectors(quantity.Position, quantity.Value)
	r[1][0] = 100
	rs.Set(stats.Time, 0.5)
	if err := sol.Integrate(st, rs); err != nil {
		t.Fatal(err)
	}
	if dv[0] != first {
		t.Fatalf("gravity recomputed within the period: %v vs %v", dv[0], first)
	}

	rs.Set(stats.Time, 2.0)
	if err := sol.Integrate(st, rs); err != nil {
		t.Fatal(err)
	}
	if dv[0] == first {
		t.Fatal("gravity not recomputed after the period elapsed")
	}
	if math.Abs(dv[0][0]/first[0]-1.0/100) > 1e-12 {
		t.Errorf("recomputed acceleration %v, expected 1/100 of %v", dv[0], first)
	}
}

func TestNBodyAggregatesSurviveRemoval(t *testing.T) {
	run := testRun().Set(settings.NBodyAggregatesEnable, true)
	sol, err := NewNBody(run, sched.Serial())
	if err != nil {
		t.Fatal(err)
	}
	st := storage.New()
	st.InsertVector(quantity.Position, quantity.Second,
		[]geometry.Vec{{0, 0, 0}, {3, 0, 0}, {6, 0, 0}, {9, 0, 0}})
	st.InsertScalar(quantity.Mass, quantity.Zero, []float64{1, 1, 1, 1})
	st.InsertScalar(quantity.SmoothingLength, quantity.Zero, []float64{1, 1, 1, 1})
	mat := storage.NewMaterial(testBody())
	if err := st.AddPartition(mat, 4); err != nil {
		t.Fatal(err)
	}
	if err := sol.Create(st, mat); err != nil {
		t.Fatal(err)
	}

	sol.ensureHolder(st)
	sol.holder.Merge(sol.holder.AggregateOf(2), sol.holder.AggregateOf(3))

	// a merging handler removed a particle; indices shift, ids persist
	st.Remove([]int{1})
	sol.holder = nil
	sol.ensureHolder(st)
	if sol.holder.ParticleCount() != 3 {
		t.Fatalf("tracked particles = %d", sol.holder.ParticleCount())
	}
	if sol.holder.Count() != 2 {
		t.Errorf("aggregate count = %d", sol.holder.Count())
	}
	if sol.holder.AggregateOf(1) != sol.holder.AggregateOf(2) {
		t.Error("grouping lost across the removal")
	}
}

func TestFromSettings(t *testing.T) {
	for _, tc := range []struct {
		kind settings.Solver
		want string
	}{
		{settings.SolverAsymmetric, "*solver.Asymmetric"},
		{settings.SolverSymmetric, "*solver.Symmetric"},
		{settings.SolverNBody, "*solver.NBody"},
	} {
		run := testRun().Set(settings.SphSolverType,
			settings.EnumValue{ID: settings.EnumSolver, Value: int(tc.kind)})
		sol, err := FromSettings(run, sched.Serial())
		if err != nil {
			t.Fatal(err)
		}
		switch sol.(type) {
		case *Asymmetric:
			if tc.want != "*solver.Asymmetric" {
				t.Errorf("kind %d: got Asymmetric", tc.kind)
			}
		case *Symmetric:
			if tc.want != "*solver.Symmetric" {
				t.Errorf("kind %d: got Symmetric", tc.kind)
			}
		case *NBody:
			if tc.want != "*solver.NBody" {
				t.Errorf("kind %d: got NBody", tc.kind)
			}
		}
	}
}
