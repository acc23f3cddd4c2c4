package stats

import "testing"

func TestMinMaxMean(t *testing.T) {
	var m MinMaxMean
	for _, x := range []float64{3, 1, 4, 1, 5} {
		m.Accum(x)
	}
	if m.Min() != 1 || m.Max() != 5 || m.Count() != 5 {
		t.Errorf("min %v max %v count %d", m.Min(), m.Max(), m.Count())
	}
	if m.Mean() != 2.8 {
		t.Errorf("mean = %v", m.Mean())
	}
}

func TestCounters(t *testing.T) {
	s := New()
	s.Increment(CollisionCount)
	s.Increment(CollisionCount)
	s.Add(MergerCount, 3)
	if s.Int(CollisionCount) != 2 || s.Int(MergerCount) != 3 {
		t.Errorf("collisions %d mergers %d", s.Int(CollisionCount), s.Int(MergerCount))
	}
}

func TestTypedAccess(t *testing.T) {
	s := New()
	s.Set(Timestep, 0.025)
	s.Set(LimitingCriterion, "courant")
	s.Set(Step, 7)
	if s.Float(Timestep) != 0.025 || s.String(LimitingCriterion) != "courant" || s.Int(Step) != 7 {
		t.Error("typed getters returned wrong values")
	}
	// int promotes to float
	if s.Float(Step) != 7 {
		t.Errorf("Float(Step) = %v", s.Float(Step))
	}
	// absent metric yields zero value
	if s.Float(Time) != 0 || s.Has(Time) {
		t.Error("absent metric must read as zero")
	}
}

func TestAccumAndClear(t *testing.T) {
	s := New()
	s.Accum(NeighbourCounts, 10)
	s.Accum(NeighbourCounts, 20)
	if d := s.Distribution(NeighbourCounts); d == nil || d.Mean() != 15 {
		t.Errorf("distribution = %+v", d)
	}
	s.Clear()
	if s.Has(NeighbourCounts) {
		t.Error("clear must drop metrics")
	}
}
