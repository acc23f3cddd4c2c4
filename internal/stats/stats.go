// Package stats collects per-step metrics of a run: the chosen timestep and
// which criterion restricted it, collision counts, neighbour statistics.
// A Stats value is filled by the solver and timestepper each step and handed
// to the logger and the run callbacks.
package stats

import "math"

// ID identifies one metric.
type ID int

const (
	Step ID = iota
	Time
	Timestep
	WallclockTime
	LimitingCriterion
	LimitingQuantity
	LimitingParticle
	NeighbourCounts
	CollisionCount
	BounceCount
	MergerCount
	OverlapCount
	AggregateCount
	GravityNodeCount
	RunError
)

// MinMaxMean accumulates a scalar distribution.
type MinMaxMean struct {
	min, max, sum float64
	count         int
}

func (m *MinMaxMean) Accum(x float64) {
	if m.count == 0 {
		m.min = x
		m.max = x
	} else {
		m.min = math.Min(m.min, x)
		m.max = math.Max(m.max, x)
	}
	m.sum += x
	m.count++
}

func (m *MinMaxMean) Min() float64 { return m.min }
func (m *MinMaxMean) Max() float64 { return m.max }
func (m *MinMaxMean) Count() int   { return m.count }

func (m *MinMaxMean) Mean() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// Stats is a loosely typed metric bag. Not safe for concurrent writes; the
// run loop owns it between parallel regions.
type Stats struct {
	values map[ID]any
}

func New() *Stats {
	return &Stats{values: make(map[ID]any)}
}

func (s *Stats) Set(id ID, v any) { s.values[id] = v }

func (s *Stats) Has(id ID) bool {
	_, ok := s.values[id]
	return ok
}

// Increment adds one to an integer metric, starting from zero.
func (s *Stats) Increment(id ID) {
	n, _ := s.values[id].(int)
	s.values[id] = n + 1
}

// Add accumulates into an integer metric.
func (s *Stats) Add(id ID, n int) {
	prev, _ := s.values[id].(int)
	s.values[id] = prev + n
}

// Accum accumulates x into a MinMaxMean metric.
func (s *Stats) Accum(id ID, x float64) {
	m, ok := s.values[id].(*MinMaxMean)
	if !ok {
		m = &MinMaxMean{}
		s.values[id] = m
	}
	m.Accum(x)
}

func (s *Stats) Int(id ID) int {
	n, _ := s.values[id].(int)
	return n
}

func (s *Stats) Float(id ID) float64 {
	switch v := s.values[id].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func (s *Stats) String(id ID) string {
	v, _ := s.values[id].(string)
	return v
}

func (s *Stats) Distribution(id ID) *MinMaxMean {
	m, _ := s.values[id].(*MinMaxMean)
	return m
}

func (s *Stats) Err(id ID) error {
	e, _ := s.values[id].(error)
	return e
}

// Clear drops all metrics, reusing the map.
func (s *Stats) Clear() {
	for k := range s.values {
		delete(s.values, k)
	}
}
