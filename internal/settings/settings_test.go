package settings

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/paths"
)

func TestDefaults(t *testing.T) {
	s := NewRun()

	name, err := Get[string](s, RunName)
	if err != nil {
		t.Fatalf("get default: %v", err)
	}
	if name != "unnamed run" {
		t.Errorf("default run name %q", name)
	}

	courant, err := Get[float64](s, TimesteppingCourantNumber)
	if err != nil || courant != 0.2 {
		t.Errorf("default courant = %v, err %v", courant, err)
	}
}

func TestSetGet(t *testing.T) {
	s := NewRun()
	s.Set(DomainRadius, 3.5)

	r, err := Get[float64](s, DomainRadius)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r != 3.5 {
		t.Errorf("got %v, want 3.5", r)
	}
}

func TestTypeMismatch(t *testing.T) {
	s := NewRun()
	if _, err := Get[int](s, DomainRadius); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestGetFlags(t *testing.T) {
	s := NewRun()
	f, err := GetFlags(s, TimesteppingCriterion)
	if err != nil {
		t.Fatalf("get flags: %v", err)
	}
	if !f.Has(CriterionCourant) || !f.Has(CriterionDerivative) {
		t.Errorf("default criteria missing: %v", f)
	}
	if f.Has(CriterionDivergence) {
		t.Errorf("divergence should be off by default")
	}
}

func TestAddEntries(t *testing.T) {
	a := NewRun()
	a.Set(RunName, "first")
	a.Set(RunEndTime, 5.0)

	b := NewRun()
	b.Set(RunName, "second")

	a.AddEntries(b)

	if got := MustGet[string](a, RunName); got != "second" {
		t.Errorf("overridden name %q", got)
	}
	if got := MustGet[float64](a, RunEndTime); got != 5.0 {
		t.Errorf("untouched key changed: %v", got)
	}
}

func TestFlagString(t *testing.T) {
	f := Flags(EnumForce, ForcePressure, ForceSelfGravity)
	if f.String() != "pressure | self_gravity" {
		t.Errorf("flag string %q", f.String())
	}
	if EmptyFlags(EnumForce).String() != "0" {
		t.Errorf("empty flags should render as 0")
	}

	parsed, err := ParseFlags(EnumForce, "pressure | self_gravity")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != f {
		t.Errorf("round trip mismatch: %v != %v", parsed, f)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewRun()
	s.Set(DomainRadius, 3.5)
	s.Set(RunName, "lll")
	s.Set(TimesteppingCriterion, EmptyFlags(EnumCriterion))
	s.Set(SphConstantAcceleration, geometry.Vec{0, 0, -9.81})
	s.Set(SphNeighbourRange, geometry.Interval{Lo: 30, Hi: math.Inf(1)})

	file := paths.New(filepath.Join(t.TempDir(), "run.sph"))
	if err := s.SaveFile(file); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := NewRun()
	if err := loaded.LoadFile(file); err != nil {
		t.Fatalf("load: %v", err)
	}

	s.Each(func(key RunID, name string, want any) {
		got, ok := loaded.raw(key)
		if !ok {
			t.Fatalf("key %q lost", name)
		}
		if FormatValue(got) != FormatValue(want) {
			t.Errorf("key %q: got %v, want %v", name, got, want)
		}
	})

	if got := MustGet[string](loaded, RunName); got != "lll" {
		t.Errorf("run name %q", got)
	}
	if f := MustGet[FlagSet](loaded, TimesteppingCriterion); !f.Empty() {
		t.Errorf("criteria should be empty, got %v", f)
	}
	if r := MustGet[geometry.Interval](loaded, SphNeighbourRange); !math.IsInf(r.Hi, 1) {
		t.Errorf("interval upper bound lost: %v", r)
	}
}

func TestDeserializeErrors(t *testing.T) {
	s := NewRun()
	if err := s.Deserialize("no.such.key = 1\n"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
	if err := s.Deserialize("run.end_time = banana\n"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if err := s.Deserialize("run.end_time 3.5\n"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue for missing '=', got %v", err)
	}
}

func TestSerializeStableOrder(t *testing.T) {
	a := NewRun().Serialize()
	b := NewRun().Serialize()
	if a != b {
		t.Error("serialisation is not deterministic")
	}
}

func TestEnumRegistry(t *testing.T) {
	name, ok := EnumName(EnumSolver, int(SolverAsymmetric))
	if !ok || name != "asymmetric_solver" {
		t.Errorf("enum name %q ok=%v", name, ok)
	}
	v, ok := EnumValueOf(EnumSolver, "nbody_solver")
	if !ok || v != int(SolverNBody) {
		t.Errorf("enum value %d ok=%v", v, ok)
	}
}
