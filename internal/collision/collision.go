// Package collision detects and resolves particle contacts in N-body
// phases. An overlap pass repairs interpenetrating pairs, then a collision
// pass dispatches actual contacts to the configured handler. Pair effects
// are committed before the next pair is inspected, in a deterministic
// order.
package collision

import (
	"fmt"
	"sort"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/storage"
)

// Result describes what a handler did with a pair.
type Result int

const (
	ResultNone Result = iota
	ResultBounce
	ResultMerge
)

// Record is one detected contact. Time is the collision time within the
// step, Overlap the penetration depth at detection.
type Record struct {
	I, J    int
	Time    float64
	Overlap float64
}

// Less orders records by (time, deepest overlap, indices) so that handler
// execution is deterministic.
func (r Record) Less(o Record) bool {
	if r.Time != o.Time {
		return r.Time < o.Time
	}
	if r.Overlap != o.Overlap {
		return r.Overlap > o.Overlap
	}
	if r.I != o.I {
		return r.I < o.I
	}
	return r.J < o.J
}

// Set accumulates contacts of one step and drains them in order.
type Set struct {
	records []Record
}

func (s *Set) Add(r Record) {
	if r.I > r.J {
		r.I, r.J = r.J, r.I
	}
	s.records = append(s.records, r)
}

func (s *Set) Empty() bool { return len(s.records) == 0 }
func (s *Set) Len() int    { return len(s.records) }

// Drain returns the sorted records and empties the set.
func (s *Set) Drain() []Record {
	sort.Slice(s.records, func(a, b int) bool { return s.records[a].Less(s.records[b]) })
	out := s.records
	s.records = nil
	return out
}

// state caches the storage views the handlers work on. Views must be
// re-taken after particles are removed.
type state struct {
	r, v  []geometry.Vec
	m, h  []float64
	omega []geometry.Vec // nil when the storage has no spin
}

func newState(st *storage.Storage) (*state, error) {
	r, err := st.Vectors(quantity.Position, quantity.Value)
	if err != nil {
		return nil, err
	}
	v, err := st.Vectors(quantity.Position, quantity.Dt)
	if err != nil {
		return nil, err
	}
	m, err := st.Scalars(quantity.Mass, quantity.Value)
	if err != nil {
		return nil, err
	}
	h, err := st.Scalars(quantity.SmoothingLength, quantity.Value)
	if err != nil {
		return nil, err
	}
	out := &state{r: r, v: v, m: m, h: h}
	if st.Has(quantity.AngularFrequency) {
		out.omega, err = st.Vectors(quantity.AngularFrequency, quantity.Value)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Handler resolves one colliding pair. Indices of removed particles are
// recorded in removed; duplicate removal requests are discarded by the
// caller.
type Handler interface {
	Initialize(st *storage.Storage) error
	Collide(i, j int, removed map[int]struct{}) (Result, error)
}

// OverlapHandler repairs one interpenetrating pair.
type OverlapHandler interface {
	Initialize(st *storage.Storage) error
	HandleOverlap(i, j int, removed map[int]struct{}) (Result, error)
}

// HandlerFromSettings constructs the collision handler selected by the run
// settings.
func HandlerFromSettings(run *settings.Settings[settings.RunID]) (Handler, error) {
	kind, err := settings.GetEnum[settings.CollisionHandler](run, settings.CollisionHandlerID)
	if err != nil {
		return nil, err
	}
	en := settings.MustGet[float64](run, settings.CollisionRestitutionNormal)
	et := settings.MustGet[float64](run, settings.CollisionRestitutionTangent)
	g := settings.MustGet[float64](run, settings.GravityConstantID)
	switch kind {
	case settings.CollisionNone:
		return NullHandler{}, nil
	case settings.CollisionPerfectMerging:
		return &PerfectMerging{}, nil
	case settings.CollisionElasticBounce:
		return &ElasticBounce{RestitutionNormal: en, RestitutionTangent: et}, nil
	case settings.CollisionMergeOrBounce:
		return &MergeOrBounce{
			Bounce:        ElasticBounce{RestitutionNormal: en, RestitutionTangent: et},
			G:             g,
			MergingLimit:  settings.MustGet[float64](run, settings.CollisionMergingLimit),
			RotationLimit: settings.MustGet[float64](run, settings.CollisionRotationMergingLimit),
		}, nil
	case settings.CollisionAggregates:
		return &AggregateHandler{
			Bounce: ElasticBounce{RestitutionNormal: en, RestitutionTangent: et},
		}, nil
	default:
		return nil, fmt.Errorf("collision: unknown handler %d", int(kind))
	}
}

// OverlapFromSettings constructs the overlap handler selected by the run
// settings. The collision handler is consulted by the merging variants.
func OverlapFromSettings(run *settings.Settings[settings.RunID], collider Handler) (OverlapHandler, error) {
	kind, err := settings.GetEnum[settings.Overlap](run, settings.CollisionOverlapID)
	if err != nil {
		return nil, err
	}
	g := settings.MustGet[float64](run, settings.GravityConstantID)
	limit := settings.MustGet[float64](run, settings.CollisionMergingLimit)
	switch kind {
	case settings.OverlapNone:
		return NullOverlap{}, nil
	case settings.OverlapForceMerge:
		return &ForceMerge{}, nil
	case settings.OverlapRepel:
		return &Repel{}, nil
	case settings.OverlapRepelOrMerge:
		return &RepelOrMerge{G: g, MergingLimit: limit}, nil
	case settings.OverlapInternalBounce:
		return &InternalBounce{Collider: collider}, nil
	case settings.OverlapPassOrMerge:
		return &PassOrMerge{G: g, MergingLimit: limit}, nil
	default:
		return nil, fmt.Errorf("collision: unknown overlap handler %d", int(kind))
	}
}
