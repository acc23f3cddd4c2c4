package runner

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/output"
	"github.com/regolith-sim/regolith/internal/paths"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// recordJob yields a fixed value and counts its evaluations.
type recordJob struct {
	name  string
	out   Type
	value any
	slots []Slot
	runs  int
	order *[]string
}

func (j *recordJob) Name() string     { return j.name }
func (j *recordJob) Slots() []Slot    { return j.slots }
func (j *recordJob) OutputType() Type { return j.out }

func (j *recordJob) Evaluate(in *Inputs, global *settings.Settings[settings.RunID], cb *Callbacks) (any, error) {
	j.runs++
	if j.order != nil {
		*j.order = append(*j.order, j.name)
	}
	return j.value, nil
}

func particleJob(name string, order *[]string) *recordJob {
	return &recordJob{name: name, out: TypeParticles, value: storage.New(), order: order}
}

func consumerJob(name string, slots []string, order *[]string) *recordJob {
	j := &recordJob{name: name, out: TypeParticles, value: storage.New(), order: order}
	for _, s := range slots {
		j.slots = append(j.slots, Slot{Name: s, Type: TypeParticles})
	}
	return j
}

func TestConnectChecksSlotAndType(t *testing.T) {
	sink := NewNode(consumerJob("sink", []string{"in"}, nil))
	material := NewNode(&recordJob{name: "mat", out: TypeMaterial})

	if err := sink.Connect(material, "in"); !errors.Is(err, ErrSlotType) {
		t.Errorf("type mismatch not reported, got %v", err)
	}
	if err := sink.Connect(NewNode(particleJob("p", nil)), "nope"); !errors.Is(err, ErrSlot) {
		t.Errorf("unknown slot not reported, got %v", err)
	}
	if err := sink.Connect(NewNode(particleJob("p", nil)), "in"); err != nil {
		t.Errorf("valid connection failed: %v", err)
	}
}

func TestConnectRejectsCycles(t *testing.T) {
	a := NewNode(consumerJob("a", []string{"in"}, nil))
	b := NewNode(consumerJob("b", []string{"in"}, nil))
	c := NewNode(consumerJob("c", []string{"in"}, nil))

	if err := b.Connect(a, "in"); err != nil {
		t.Fatal(err)
	}
	if err := c.Connect(b, "in"); err != nil {
		t.Fatal(err)
	}
	if err := a.Connect(c, "in"); !errors.Is(err, ErrCycle) {
		t.Errorf("cycle not rejected, got %v", err)
	}
	if err := a.Connect(a, "in"); !errors.Is(err, ErrCycle) {
		t.Errorf("self loop not rejected, got %v", err)
	}
}

func TestPrepareRunsProvidersInOrder(t *testing.T) {
	var order []string
	source := NewNode(particleJob("source", &order))
	left := NewNode(consumerJob("left", []string{"in"}, &order))
	right := NewNode(consumerJob("right", []string{"in"}, &order))
	sink := NewNode(consumerJob("sink", []string{"a", "b"}, &order))

	for _, c := range []struct {
		node, provider *Node
		slot           string
	}{
		{left, source, "in"},
		{right, source, "in"},
		{sink, left, "a"},
		{sink, right, "b"},
	} {
		if err := c.node.Connect(c.provider, c.slot); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := sink.Prepare(nil, nil); err != nil {
		t.Fatal(err)
	}
	if len(order) != 4 || order[0] != "source" || order[3] != "sink" {
		t.Errorf("evaluation order %v", order)
	}
	if n := source.Job().(*recordJob).runs; n != 1 {
		t.Errorf("shared provider ran %d times", n)
	}
}

func TestPrepareReportsUnboundSlot(t *testing.T) {
	sink := NewNode(consumerJob("sink", []string{"in"}, nil))
	if _, err := sink.Prepare(nil, nil); !errors.Is(err, ErrUnbound) {
		t.Errorf("unbound slot not reported, got %v", err)
	}
}

func TestDrainChanges(t *testing.T) {
	sink := NewNode(consumerJob("sink", []string{"in"}, nil))
	provider := NewNode(particleJob("p", nil))

	if err := sink.Connect(provider, "in"); err != nil {
		t.Fatal(err)
	}
	sink.Disconnect("in")
	sink.Disconnect("in") // second disconnect must not notify again

	changes := sink.DrainChanges()
	if len(changes) != 2 || changes[0] != "in" {
		t.Errorf("changes %v", changes)
	}
	if len(sink.DrainChanges()) != 0 {
		t.Error("drain did not clear the queue")
	}
}

func testBodyParams(n int, dist settings.Distribution) *settings.Settings[settings.BodyID] {
	return settings.NewBody().
		Set(settings.BodyParticleCount, n).
		Set(settings.BodyInitialDistribution,
			settings.EnumValue{ID: settings.EnumDistribution, Value: int(dist)}).
		Set(settings.BodyDensity, 2700.0).
		Set(settings.BodyBodyRadius, 1.0).
		Set(settings.BodyEOS, settings.EnumValue{ID: settings.EnumEOS, Value: int(settings.EOSIdealGas)}).
		Set(settings.BodyEnergy, 1e3)
}

func buildBody(t *testing.T, params *settings.Settings[settings.BodyID]) *storage.Storage {
	t.Helper()
	body := NewNode(NewMonolithicBody("body"))
	if err := body.Connect(NewNode(NewBodyParameters("params", params)), "material"); err != nil {
		t.Fatal(err)
	}
	v, err := body.Prepare(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return v.(*storage.Storage)
}

func TestMonolithicBodyMassAndVelocity(t *testing.T) {
	spin := geometry.V(0, 0, 2)
	bulk := geometry.V(5, 0, 0)
	params := testBodyParams(500, settings.DistributionCubic).
		Set(settings.BodyBodyVelocity, bulk).
		Set(settings.BodyBodySpin, spin)
	st := buildBody(t, params)

	r, _ := st.Vectors(quantity.Position, quantity.Value)
	v, _ := st.Vectors(quantity.Position, quantity.Dt)
	m, _ := st.Scalars(quantity.Mass, quantity.Value)

	total := 0.0
	for i := range r {
		if r[i].Len() > 1.0+1e-12 {
			t.Fatalf("particle %d outside the body: %v", i, r[i])
		}
		want := bulk.Add(geometry.Cross(spin, r[i]))
		if v[i].Sub(want).Len() > 1e-12 {
			t.Fatalf("particle %d velocity %v, want %v", i, v[i], want)
		}
		total += m[i]
	}
	wantMass := 2700.0 * 4.0 / 3.0 * math.Pi
	if math.Abs(total-wantMass)/wantMass > 1e-12 {
		t.Errorf("total mass %g, want %g", total, wantMass)
	}
	if len(st.Partitions()) != 1 {
		t.Errorf("partitions %d", len(st.Partitions()))
	}
}

func TestPackingsApproximateRequestedCount(t *testing.T) {
	for _, dist := range []settings.Distribution{
		settings.DistributionHexagonal,
		settings.DistributionCubic,
		settings.DistributionRandom,
	} {
		st := buildBody(t, testBodyParams(1000, dist))
		n := st.ParticleCount()
		if n < 700 || n > 1300 {
			t.Errorf("distribution %d produced %d particles, want about 1000", int(dist), n)
		}
	}
}

func TestMergeBodiesKeepsPartitions(t *testing.T) {
	merge := NewNode(NewMergeBodies("merge", 2))
	for i, center := range []geometry.Vec{geometry.V(-5, 0, 0), geometry.V(5, 0, 0)} {
		params := testBodyParams(50, settings.DistributionRandom).
			Set(settings.BodyBodyCenter, center)
		body := NewNode(NewMonolithicBody("body"))
		if err := body.Connect(NewNode(NewBodyParameters("params", params)), "material"); err != nil {
			t.Fatal(err)
		}
		if err := merge.Connect(body, mergeSlot(i)); err != nil {
			t.Fatal(err)
		}
	}
	v, err := merge.Prepare(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	st := v.(*storage.Storage)
	if st.ParticleCount() != 100 {
		t.Errorf("merged count %d", st.ParticleCount())
	}
	if len(st.Partitions()) != 2 {
		t.Errorf("merged partitions %d", len(st.Partitions()))
	}
}

func quietRun() *settings.Settings[settings.RunID] {
	return settings.NewRun().
		Set(settings.RunLogger, settings.EnumValue{ID: settings.EnumLogger, Value: int(settings.LoggerNone)}).
		Set(settings.SphSolverForces, settings.Flags(settings.EnumForce, settings.ForcePressure)).
		Set(settings.TimesteppingInitialStep, 1e-3).
		Set(settings.RunEndTime, 1.0).
		Set(settings.RunTimestepCount, 3)
}

func TestSPHPhaseRunsAndReports(t *testing.T) {
	run := quietRun()
	phase := NewNode(NewSPHPhase("sph", run))
	body := NewNode(NewMonolithicBody("body"))
	if err := body.Connect(NewNode(NewBodyParameters("params", testBodyParams(100, settings.DistributionRandom))), "material"); err != nil {
		t.Fatal(err)
	}
	if err := phase.Connect(body, "particles"); err != nil {
		t.Fatal(err)
	}

	steps := 0
	var started []string
	var final *storage.Storage
	var finalStats *stats.Stats
	cb := &Callbacks{
		OnStart:    func(job Job) { started = append(started, job.Name()) },
		OnTimeStep: func(st *storage.Storage, rs *stats.Stats) { steps++ },
		OnEnd: func(st *storage.Storage, rs *stats.Stats) {
			final, finalStats = st, rs
		},
	}
	v, err := phase.Prepare(run, cb)
	if err != nil {
		t.Fatal(err)
	}
	st := v.(*storage.Storage)

	if steps != 3 {
		t.Errorf("observed %d steps, want 3", steps)
	}
	if len(started) != 3 || started[2] != "sph" {
		t.Errorf("started jobs %v", started)
	}
	if final != st || finalStats == nil {
		t.Error("final state not reported through OnEnd")
	}
	if finalStats.Float(stats.Time) <= 0 {
		t.Errorf("time did not advance: %v", finalStats.Float(stats.Time))
	}
	if !st.Has(quantity.Density) || !st.Has(quantity.Pressure) {
		t.Error("solver quantities missing after the run")
	}
}

func TestAbortStopsTheRun(t *testing.T) {
	run := quietRun().Set(settings.RunTimestepCount, 1000)
	phase := NewNode(NewSPHPhase("sph", run))
	body := NewNode(NewMonolithicBody("body"))
	if err := body.Connect(NewNode(NewBodyParameters("params", testBodyParams(60, settings.DistributionRandom))), "material"); err != nil {
		t.Fatal(err)
	}
	if err := phase.Connect(body, "particles"); err != nil {
		t.Fatal(err)
	}

	ended := false
	cb := &Callbacks{
		ShouldAbort: func() bool { return true },
		OnEnd:       func(st *storage.Storage, rs *stats.Stats) { ended = true },
	}
	if _, err := phase.Prepare(run, cb); !errors.Is(err, ErrAborted) {
		t.Errorf("abort not reported, got %v", err)
	}
	if !ended {
		t.Error("OnEnd not called on abort")
	}
}

func TestNBodyHandoffConservesMass(t *testing.T) {
	st := storage.New()
	st.InsertVector(quantity.Position, quantity.Second, []geometry.Vec{{}, {1, 0, 0}})
	st.InsertScalar(quantity.Mass, quantity.Zero, []float64{8, 1})
	st.InsertScalar(quantity.SmoothingLength, quantity.First, []float64{0.5, 0.5})
	st.InsertScalar(quantity.Density, quantity.First, []float64{6, 6})
	dh, _ := st.Scalars(quantity.SmoothingLength, quantity.Dt)
	dh[0] = 0.1

	var p NBodyPhase
	p.Handoff(st)

	h, _ := st.Scalars(quantity.SmoothingLength, quantity.Value)
	for i, m := range []float64{8, 1} {
		want := math.Cbrt(3 * m / (4 * math.Pi * 6))
		if math.Abs(h[i]-want) > 1e-12 {
			t.Errorf("radius[%d] = %g, want %g", i, h[i], want)
		}
	}
	if h[0]/h[1] < 1.99 || h[0]/h[1] > 2.01 {
		t.Errorf("radius ratio %g, want 2 for 8x the mass", h[0]/h[1])
	}
	if dh[0] != 0 {
		t.Error("smoothing length still evolving after handoff")
	}
}

func TestSetupRoundTrip(t *testing.T) {
	setup := &Setup{Run: settings.NewRun()}
	setup.Run.Set(settings.RunName, "impact test")
	setup.Run.Set(settings.RunEndTime, 3.5)
	setup.Bodies = append(setup.Bodies, NamedBody{
		Name:   "target",
		Params: settings.NewBody().Set(settings.BodyParticleCount, 250),
	})

	p := paths.New(filepath.Join(t.TempDir(), "impact.cnf"))
	if err := setup.Save(p); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadSetup(p)
	if err != nil {
		t.Fatal(err)
	}
	if name := settings.MustGet[string](loaded.Run, settings.RunName); name != "impact test" {
		t.Errorf("run name %q", name)
	}
	if end := settings.MustGet[float64](loaded.Run, settings.RunEndTime); end != 3.5 {
		t.Errorf("end time %v", end)
	}
	if len(loaded.Bodies) != 1 || loaded.Bodies[0].Name != "target" {
		t.Fatalf("bodies %+v", loaded.Bodies)
	}
	if n := settings.MustGet[int](loaded.Bodies[0].Params, settings.BodyParticleCount); n != 250 {
		t.Errorf("particle count %d", n)
	}

	if _, err := loaded.Graph(); err != nil {
		t.Errorf("graph assembly failed: %v", err)
	}
	empty := &Setup{Run: settings.NewRun()}
	if _, err := empty.Graph(); !errors.Is(err, ErrSetup) {
		t.Errorf("empty setup not rejected, got %v", err)
	}
}

func TestCompositeSetupChainsPhases(t *testing.T) {
	setup := &Setup{Run: settings.NewRun().Set(settings.RunEndTime, 10.0)}
	setup.Bodies = append(setup.Bodies, NamedBody{
		Name:   "target",
		Params: settings.NewBody().Set(settings.BodyParticleCount, 250),
	})
	setup.Phases = append(setup.Phases,
		PhaseSpec{Name: "stabilization", Run: settings.NewRun().Set(settings.RunEndTime, 100.0)},
		PhaseSpec{Name: "fragmentation", Run: settings.NewRun()},
		PhaseSpec{Name: "reaccumulation", Run: settings.NewRun().Set(settings.RunEndTime, 3600.0)},
	)

	p := paths.New(filepath.Join(t.TempDir(), "composite.cnf"))
	if err := setup.Save(p); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadSetup(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Bodies) != 1 || loaded.Bodies[0].Name != "target" {
		t.Fatalf("bodies %+v", loaded.Bodies)
	}
	if len(loaded.Phases) != 3 {
		t.Fatalf("phases %+v", loaded.Phases)
	}
	for i, want := range []string{"stabilization", "fragmentation", "reaccumulation"} {
		if loaded.Phases[i].Name != want {
			t.Errorf("phase %d = %q, want %q", i, loaded.Phases[i].Name, want)
		}
	}
	if end := settings.MustGet[float64](loaded.Phases[2].Run, settings.RunEndTime); end != 3600.0 {
		t.Errorf("reaccumulation end time %v", end)
	}

	sink, err := loaded.Graph()
	if err != nil {
		t.Fatal(err)
	}
	var chain []string
	for n := sink; n != nil; n = n.Provider("particles") {
		chain = append(chain, n.Job().Name())
	}
	want := []string{"reaccumulation", "fragmentation", "stabilization", "bodies"}
	if len(chain) != len(want) {
		t.Fatalf("chain %v", chain)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("chain[%d] = %q, want %q", i, chain[i], want[i])
		}
	}

	// with an output directory the intermediate states are saved
	loaded.Run.Set(settings.RunOutputPath, t.TempDir())
	sink, err = loaded.Graph()
	if err != nil {
		t.Fatal(err)
	}
	chain = nil
	for n := sink; n != nil; n = n.Provider("particles") {
		chain = append(chain, n.Job().Name())
	}
	want = []string{
		"reaccumulation", "fragmentation state", "fragmentation",
		"stabilization state", "stabilization", "bodies",
	}
	if len(chain) != len(want) {
		t.Fatalf("chain with saves %v", chain)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("chain[%d] = %q, want %q", i, chain[i], want[i])
		}
	}
}

func TestResumedSetupLoadsStateFile(t *testing.T) {
	st := buildBody(t, testBodyParams(40, settings.DistributionRandom))
	rs := stats.New()
	rs.Set(stats.Timestep, 2.5e-3)
	w := &output.StateWriter{
		Mask: output.NewMask(paths.New(t.TempDir()), "resume_%d.scf", 7),
	}
	p, err := w.Write(st, rs, 1.25)
	if err != nil {
		t.Fatal(err)
	}

	setup := &Setup{Run: quietRun(), Resume: p}
	sink, err := setup.Graph()
	if err != nil {
		t.Fatal(err)
	}
	load, ok := sink.Provider("particles").Job().(*LoadFile)
	if !ok {
		t.Fatalf("source job = %T", sink.Provider("particles").Job())
	}
	if !load.Info.HasTime || load.Info.Time != 1.25 {
		t.Errorf("resume time %+v", load.Info)
	}
	if !load.Info.HasTimestep || load.Info.Timestep != 2.5e-3 {
		t.Errorf("resume timestep %+v", load.Info)
	}
	if !load.Info.HasIndex || load.Info.Index != 7 {
		t.Errorf("resume index %+v", load.Info)
	}
	ph, ok := sink.Job().(*SPHPhase)
	if !ok {
		t.Fatalf("sink job = %T", sink.Job())
	}
	if !ph.Resumed {
		t.Error("phase not marked resumed")
	}
	run, err := ph.resumedSettings(ph.Run)
	if err != nil {
		t.Fatal(err)
	}
	if start := settings.MustGet[float64](run, settings.RunStartTime); start != 1.25 {
		t.Errorf("start time %v", start)
	}
	if first := settings.MustGet[int](run, settings.RunOutputFirstIndex); first != 8 {
		t.Errorf("first output index %d", first)
	}
}

func TestCompositeRunHandsOffBetweenPhases(t *testing.T) {
	setup := &Setup{Run: quietRun().Set(settings.RunTimestepCount, 2)}
	setup.Bodies = append(setup.Bodies, NamedBody{
		Name:   "target",
		Params: testBodyParams(60, settings.DistributionRandom),
	})
	setup.Phases = append(setup.Phases,
		PhaseSpec{Name: "stabilization", Run: settings.NewRun()},
		PhaseSpec{Name: "reaccumulation", Run: settings.NewRun()},
	)
	sink, err := setup.Graph()
	if err != nil {
		t.Fatal(err)
	}

	steps := 0
	var started []string
	cb := &Callbacks{
		OnStart:    func(job Job) { started = append(started, job.Name()) },
		OnTimeStep: func(st *storage.Storage, rs *stats.Stats) { steps++ },
	}
	v, err := sink.Prepare(setup.Run, cb)
	if err != nil {
		t.Fatal(err)
	}
	st := v.(*storage.Storage)
	if st.ParticleCount() == 0 {
		t.Fatal("empty storage out of the composite run")
	}

	if len(started) == 0 || started[len(started)-1] != "reaccumulation" {
		t.Fatalf("started jobs %v", started)
	}
	ran := map[string]bool{}
	for _, name := range started {
		ran[name] = true
	}
	if !ran["stabilization"] || !ran["reaccumulation"] {
		t.Errorf("phases started: %v", started)
	}
	if steps != 4 {
		t.Errorf("observed %d steps over two phases, want 4", steps)
	}

	// the handoff froze the smoothing lengths before the last phase
	dh, err := st.Scalars(quantity.SmoothingLength, quantity.Dt)
	if err != nil {
		t.Fatal(err)
	}
	for i, d := range dh {
		if d != 0 {
			t.Fatalf("dh[%d] = %v after handoff", i, d)
		}
	}
}
