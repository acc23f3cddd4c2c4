package collision

import (
	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/storage"
)

// NullOverlap leaves overlapping pairs alone.
type NullOverlap struct{}

func (NullOverlap) Initialize(*storage.Storage) error { return nil }

func (NullOverlap) HandleOverlap(int, int, map[int]struct{}) (Result, error) {
	return ResultNone, nil
}

// ForceMerge always merges overlapping pairs.
type ForceMerge struct {
	s *state
}

func (f *ForceMerge) Initialize(st *storage.Storage) error {
	var err error
	f.s, err = newState(st)
	return err
}

func (f *ForceMerge) HandleOverlap(i, j int, removed map[int]struct{}) (Result, error) {
	return mergeParticles(f.s, i, j, removed), nil
}

// repelPair shifts both particles apart along the connecting line, inversely
// to mass, until they just touch. Positions change, velocities do not, and
// the centre of mass is preserved.
func repelPair(s *state, i, j int) {
	dr := s.r[i].Sub(s.r[j])
	dist := dr.Len()
	sum := s.h[i] + s.h[j]
	if dist >= sum {
		return
	}
	var n geometry.Vec
	if dist > 0 {
		n = dr.Scale(1 / dist)
	} else {
		// coincident centres have no connecting line; pick a fixed axis
		n = geometry.V(1, 0, 0)
	}
	mass := s.m[i] + s.m[j]
	gap := sum - dist
	s.r[i] = s.r[i].Add(n.Scale(gap * s.m[j] / mass))
	s.r[j] = s.r[j].Sub(n.Scale(gap * s.m[i] / mass))
}

// Repel resolves overlaps purely geometrically.
type Repel struct {
	s *state
}

func (r *Repel) Initialize(st *storage.Storage) error {
	var err error
	r.s, err = newState(st)
	return err
}

func (r *Repel) HandleOverlap(i, j int, removed map[int]struct{}) (Result, error) {
	repelPair(r.s, i, j)
	return ResultNone, nil
}

// RepelOrMerge merges bound pairs and repels unbound ones.
type RepelOrMerge struct {
	G            float64
	MergingLimit float64

	s *state
}

func (r *RepelOrMerge) Initialize(st *storage.Storage) error {
	var err error
	r.s, err = newState(st)
	return err
}

func (r *RepelOrMerge) HandleOverlap(i, j int, removed map[int]struct{}) (Result, error) {
	if belowEscapeSpeed(r.s, i, j, r.G, r.MergingLimit) {
		return mergeParticles(r.s, i, j, removed), nil
	}
	repelPair(r.s, i, j)
	return ResultNone, nil
}

// InternalBounce bounces pairs that approach each other and ignores pairs
// already separating, letting aggregates rest in contact.
type InternalBounce struct {
	Collider Handler

	s *state
}

func (b *InternalBounce) Initialize(st *storage.Storage) error {
	if err := b.Collider.Initialize(st); err != nil {
		return err
	}
	var err error
	b.s, err = newState(st)
	return err
}

func (b *InternalBounce) HandleOverlap(i, j int, removed map[int]struct{}) (Result, error) {
	s := b.s
	dr := s.r[i].Sub(s.r[j])
	vrel := s.v[i].Sub(s.v[j])
	if geometry.Dot(dr, vrel) >= 0 {
		// separating already
		return ResultNone, nil
	}
	return b.Collider.Collide(i, j, removed)
}

// PassOrMerge merges bound pairs and lets unbound ones pass through each
// other.
type PassOrMerge struct {
	G            float64
	MergingLimit float64

	s *state
}

func (p *PassOrMerge) Initialize(st *storage.Storage) error {
	var err error
	p.s, err = newState(st)
	return err
}

func (p *PassOrMerge) HandleOverlap(i, j int, removed map[int]struct{}) (Result, error) {
	if belowEscapeSpeed(p.s, i, j, p.G, p.MergingLimit) {
		return mergeParticles(p.s, i, j, removed), nil
	}
	return ResultNone, nil
}

func belowEscapeSpeed(s *state, i, j int, g, limit float64) bool {
	mass := s.m[i] + s.m[j]
	dist := s.h[i] + s.h[j]
	vrel := s.v[i].Sub(s.v[j]).Len()
	return vrel < limit*escapeSpeed(g, mass, dist)
}
