package collision

import (
	"math"
	"sort"

	"github.com/regolith-sim/regolith/internal/finder"
	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// Engine runs the two-phase contact resolution of one timestep: collisions
// first, ordered by contact time, then the remaining overlaps, ordered by
// particle indices. Particles removed by merging handlers are deleted from
// the storage at the end of the pass.
type Engine struct {
	Handler        Handler
	Overlap        OverlapHandler
	AllowedOverlap float64

	find finder.Finder
}

// EngineFromSettings assembles the engine selected by the run settings.
func EngineFromSettings(run *settings.Settings[settings.RunID]) (*Engine, error) {
	handler, err := HandlerFromSettings(run)
	if err != nil {
		return nil, err
	}
	overlap, err := OverlapFromSettings(run, handler)
	if err != nil {
		return nil, err
	}
	f, err := finder.FromSettings(run)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Handler:        handler,
		Overlap:        overlap,
		AllowedOverlap: settings.MustGet[float64](run, settings.CollisionAllowedOverlap),
		find:           f,
	}, nil
}

// Resolve detects and handles all contacts of the step [0, dt].
func (e *Engine) Resolve(st *storage.Storage, dt float64, rs *stats.Stats) error {
	if err := e.Handler.Initialize(st); err != nil {
		return err
	}
	if err := e.Overlap.Initialize(st); err != nil {
		return err
	}
	s, err := newState(st)
	if err != nil {
		return err
	}
	if len(s.r) == 0 {
		return nil
	}

	if e.find == nil {
		e.find = &finder.HashGrid{}
	}
	e.find.Build(s.r)

	maxH := 0.0
	maxV := 0.0
	for i := range s.r {
		maxH = math.Max(maxH, s.h[i])
		maxV = math.Max(maxV, s.v[i].Len())
	}
	search := 2*maxH + 2*maxV*dt

	var collisions Set
	var overlaps []Record
	var scratch []finder.Neighbour
	for i := range s.r {
		scratch = e.find.Find(s.r[i], search, scratch[:0])
		for _, n := range scratch {
			j := n.Index
			if j <= i {
				continue
			}
			sum := s.h[i] + s.h[j]
			dist := math.Sqrt(n.DistSq)
			if pen := sum - dist; pen > e.AllowedOverlap*sum {
				overlaps = append(overlaps, Record{I: i, J: j, Overlap: pen})
				continue
			}
			if t, hit := contactTime(s, i, j, dt); hit {
				collisions.Add(Record{I: i, J: j, Time: t, Overlap: sum - dist})
			}
		}
	}

	removed := make(map[int]struct{})
	for _, rec := range collisions.Drain() {
		if skip(removed, rec) {
			continue
		}
		res, err := e.Handler.Collide(rec.I, rec.J, removed)
		if err != nil {
			return err
		}
		record(rs, res)
	}

	sort.Slice(overlaps, func(a, b int) bool {
		if overlaps[a].I != overlaps[b].I {
			return overlaps[a].I < overlaps[b].I
		}
		return overlaps[a].J < overlaps[b].J
	})
	for _, rec := range overlaps {
		if skip(removed, rec) {
			continue
		}
		if rs != nil {
			rs.Increment(stats.OverlapCount)
		}
		res, err := e.Overlap.HandleOverlap(rec.I, rec.J, removed)
		if err != nil {
			return err
		}
		record(rs, res)
	}

	if len(removed) > 0 {
		list := make([]int, 0, len(removed))
		for i := range removed {
			list = append(list, i)
		}
		st.Remove(list)
	}
	return nil
}

func skip(removed map[int]struct{}, rec Record) bool {
	if _, ok := removed[rec.I]; ok {
		return true
	}
	_, ok := removed[rec.J]
	return ok
}

func record(rs *stats.Stats, res Result) {
	if rs == nil {
		return
	}
	switch res {
	case ResultBounce:
		rs.Increment(stats.CollisionCount)
		rs.Increment(stats.BounceCount)
	case ResultMerge:
		rs.Increment(stats.CollisionCount)
		rs.Increment(stats.MergerCount)
	}
}

// contactTime solves |dr + dv t| = h_i + h_j for the earliest t in [0, dt].
func contactTime(s *state, i, j int, dt float64) (float64, bool) {
	dr := s.r[i].Sub(s.r[j])
	dv := s.v[i].Sub(s.v[j])
	sum := s.h[i] + s.h[j]

	a := dv.LenSq()
	if a == 0 {
		return 0, false
	}
	b := 2 * geometry.Dot(dr, dv)
	c := dr.LenSq() - sum*sum
	if c <= 0 {
		// already touching; collides now iff approaching
		return 0, b < 0
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / (2 * a)
	if t < 0 || t > dt {
		return 0, false
	}
	return t, true
}
