package collision

import (
	"math"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/storage"
)

// NullHandler ignores collisions.
type NullHandler struct{}

func (NullHandler) Initialize(*storage.Storage) error { return nil }

func (NullHandler) Collide(int, int, map[int]struct{}) (Result, error) {
	return ResultNone, nil
}

// mergeParticles writes the merger into the more massive particle of the
// pair and marks the other one removed. Mass, momentum and angular momentum
// are conserved; the merged radius keeps the total volume.
func mergeParticles(s *state, i, j int, removed map[int]struct{}) Result {
	if s.m[j] > s.m[i] {
		i, j = j, i
	}
	if _, dup := removed[j]; dup {
		return ResultNone
	}

	mi, mj := s.m[i], s.m[j]
	mass := mi + mj
	com := s.r[i].Scale(mi / mass).Add(s.r[j].Scale(mj / mass))
	vcom := s.v[i].Scale(mi / mass).Add(s.v[j].Scale(mj / mass))
	radius := math.Cbrt(math.Pow(s.h[i], 3) + math.Pow(s.h[j], 3))

	if s.omega != nil {
		s.omega[i] = mergedSpin(s, i, j, com, vcom, mass, radius)
	}
	s.r[i] = com
	s.v[i] = vcom
	s.m[i] = mass
	s.h[i] = radius
	removed[j] = struct{}{}
	return ResultMerge
}

// mergedSpin conserves the total angular momentum about the merger's centre
// of mass, treating particles as homogeneous spheres.
func mergedSpin(s *state, i, j int, com, vcom geometry.Vec, mass, radius float64) geometry.Vec {
	L := geometry.Vec{}
	for _, k := range [2]int{i, j} {
		d := s.r[k].Sub(com)
		L = L.Add(geometry.Cross(d, s.v[k].Sub(vcom)).Scale(s.m[k]))
		L = L.Add(s.omega[k].Scale(sphereInertia(s.m[k], s.h[k])))
	}
	return L.Scale(1 / sphereInertia(mass, radius))
}

func sphereInertia(m, r float64) float64 { return 0.4 * m * r * r }

// PerfectMerging merges every colliding pair.
type PerfectMerging struct {
	s *state
}

func (p *PerfectMerging) Initialize(st *storage.Storage) error {
	var err error
	p.s, err = newState(st)
	return err
}

func (p *PerfectMerging) Collide(i, j int, removed map[int]struct{}) (Result, error) {
	return mergeParticles(p.s, i, j, removed), nil
}

// ElasticBounce reflects the normal relative velocity with the normal
// restitution and scales the tangential component with the tangential
// restitution. The pair is also separated to contact distance, shifted
// inversely to mass so the centre of mass stays put.
type ElasticBounce struct {
	RestitutionNormal  float64
	RestitutionTangent float64

	s *state
}

func (e *ElasticBounce) Initialize(st *storage.Storage) error {
	var err error
	e.s, err = newState(st)
	return err
}

func (e *ElasticBounce) Collide(i, j int, removed map[int]struct{}) (Result, error) {
	s := e.s
	dr := s.r[i].Sub(s.r[j])
	dist := dr.Len()
	if dist == 0 {
		return ResultNone, nil
	}
	n := dr.Scale(1 / dist)

	mi, mj := s.m[i], s.m[j]
	mass := mi + mj
	vcom := s.v[i].Scale(mi / mass).Add(s.v[j].Scale(mj / mass))
	vrel := s.v[i].Sub(s.v[j])
	vn := n.Scale(geometry.Dot(vrel, n))
	vt := vrel.Sub(vn)

	vrel = vn.Scale(-e.RestitutionNormal).Add(vt.Scale(e.RestitutionTangent))
	s.v[i] = vcom.Add(vrel.Scale(mj / mass))
	s.v[j] = vcom.Sub(vrel.Scale(mi / mass))

	// separate to contact distance, preserving the centre of mass
	if gap := s.h[i] + s.h[j] - dist; gap > 0 {
		s.r[i] = s.r[i].Add(n.Scale(gap * mj / mass))
		s.r[j] = s.r[j].Sub(n.Scale(gap * mi / mass))
	}
	return ResultBounce, nil
}

// escapeSpeed is the mutual escape speed of a touching pair.
func escapeSpeed(g, mass, dist float64) float64 {
	return math.Sqrt(2 * g * mass / dist)
}

// MergeOrBounce merges a pair iff the merger would survive: the relative
// speed must stay below the scaled mutual escape speed and the merger must
// spin slower than its critical breakup frequency. Otherwise the pair
// bounces.
type MergeOrBounce struct {
	Bounce        ElasticBounce
	G             float64
	MergingLimit  float64
	RotationLimit float64

	s *state
}

func (m *MergeOrBounce) Initialize(st *storage.Storage) error {
	if err := m.Bounce.Initialize(st); err != nil {
		return err
	}
	m.s = m.Bounce.s
	return nil
}

func (m *MergeOrBounce) Collide(i, j int, removed map[int]struct{}) (Result, error) {
	if m.canMerge(i, j) {
		return mergeParticles(m.s, i, j, removed), nil
	}
	return m.Bounce.Collide(i, j, removed)
}

func (m *MergeOrBounce) canMerge(i, j int) bool {
	s := m.s
	mass := s.m[i] + s.m[j]
	dist := s.h[i] + s.h[j]
	vrel := s.v[i].Sub(s.v[j]).Len()
	if vrel >= m.MergingLimit*escapeSpeed(m.G, mass, dist) {
		return false
	}
	if s.omega == nil || m.RotationLimit <= 0 {
		return true
	}
	radius := math.Cbrt(math.Pow(s.h[i], 3) + math.Pow(s.h[j], 3))
	mi, mj := s.m[i], s.m[j]
	com := s.r[i].Scale(mi / mass).Add(s.r[j].Scale(mj / mass))
	vcom := s.v[i].Scale(mi / mass).Add(s.v[j].Scale(mj / mass))
	spin := mergedSpin(s, i, j, com, vcom, mass, radius).Len()
	critical := math.Sqrt(m.G * mass / (radius * radius * radius))
	return spin < m.RotationLimit*critical
}
