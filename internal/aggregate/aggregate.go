// Package aggregate groups particles into rigid clusters. Every particle
// belongs to exactly one aggregate; a lone particle forms an aggregate of
// size one. Aggregates only grow, by merging, and the surviving persistent
// ID is that of the larger aggregate (ties keep the lower ID).
package aggregate

import (
	"sync"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// Aggregate is an ordered set of particle indices moving as a rigid body.
// A drained aggregate stays in the holder's array, empty but valid, so that
// indices into the array remain stable.
type Aggregate struct {
	id        int32
	particles []int32
}

func (a *Aggregate) ID() int32          { return a.id }
func (a *Aggregate) Size() int          { return len(a.particles) }
func (a *Aggregate) Particles() []int32 { return a.particles }

// Holder maintains the particle-to-aggregate mapping of one storage. The
// holder weakly references the storage; the storage owns the holder through
// its user-data slot.
type Holder struct {
	mu         sync.Mutex
	storage    *storage.Storage
	aggregates []*Aggregate
	byParticle []int32 // particle -> index into aggregates
}

// NewSingletons creates one aggregate per particle.
func NewSingletons(st *storage.Storage) *Holder {
	n := st.ParticleCount()
	h := &Holder{
		storage:    st,
		aggregates: make([]*Aggregate, n),
		byParticle: make([]int32, n),
	}
	for i := 0; i < n; i++ {
		h.aggregates[i] = &Aggregate{id: int32(i), particles: []int32{int32(i)}}
		h.byParticle[i] = int32(i)
	}
	h.writeIDs()
	return h
}

// NewFromPartitions creates one aggregate per material partition, so that
// each initial body starts as a single rigid cluster.
func NewFromPartitions(st *storage.Storage) *Holder {
	n := st.ParticleCount()
	h := &Holder{storage: st, byParticle: make([]int32, n)}
	covered := 0
	for _, p := range st.Partitions() {
		agg := &Aggregate{id: int32(len(h.aggregates))}
		for i := p.From; i < p.To; i++ {
			agg.particles = append(agg.particles, int32(i))
			h.byParticle[i] = int32(len(h.aggregates))
		}
		h.aggregates = append(h.aggregates, agg)
		covered = p.To
	}
	// particles past the last partition become singletons
	for i := covered; i < n; i++ {
		h.byParticle[i] = int32(len(h.aggregates))
		h.aggregates = append(h.aggregates, &Aggregate{
			id:        int32(len(h.aggregates)),
			particles: []int32{int32(i)},
		})
	}
	h.writeIDs()
	return h
}

// NewFromIDs regroups particles by the persisted aggregate id quantity.
// Ids are compacted together with every other quantity when particles are
// removed, so the grouping survives storage mutations.
func NewFromIDs(st *storage.Storage) (*Holder, error) {
	ids, err := st.Indices(quantity.AggregateID)
	if err != nil {
		return nil, err
	}
	h := &Holder{storage: st, byParticle: make([]int32, len(ids))}
	slot := make(map[int32]int32, len(ids))
	for i, id := range ids {
		at, ok := slot[id]
		if !ok {
			at = int32(len(h.aggregates))
			slot[id] = at
			h.aggregates = append(h.aggregates, &Aggregate{id: id})
		}
		h.aggregates[at].particles = append(h.aggregates[at].particles, int32(i))
		h.byParticle[i] = at
	}
	return h, nil
}

// Count returns the number of non-empty aggregates.
func (h *Holder) Count() int {
	n := 0
	for _, a := range h.aggregates {
		if a.Size() > 0 {
			n++
		}
	}
	return n
}

// ParticleCount returns the number of particles the holder tracks.
func (h *Holder) ParticleCount() int { return len(h.byParticle) }

// AggregateOf returns the aggregate of particle i. Lock-free; safe for
// concurrent reads between merges.
func (h *Holder) AggregateOf(i int) *Aggregate {
	return h.aggregates[h.byParticle[i]]
}

// Merge moves the members of the smaller aggregate into the larger one.
// Merging an aggregate with itself is a no-op.
func (h *Holder) Merge(a, b *Aggregate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a == b {
		return
	}
	survivor, drained := a, b
	if drained.Size() > survivor.Size() ||
		(drained.Size() == survivor.Size() && drained.id < survivor.id) {
		survivor, drained = drained, survivor
	}
	target := h.indexOf(survivor)
	for _, p := range drained.particles {
		h.byParticle[p] = target
	}
	survivor.particles = append(survivor.particles, drained.particles...)
	drained.particles = drained.particles[:0]
	h.writeIDs()
}

func (h *Holder) indexOf(a *Aggregate) int32 {
	return h.byParticle[a.particles[0]]
}

// writeIDs mirrors the mapping into the aggregate id quantity when the
// storage carries one.
func (h *Holder) writeIDs() {
	ids, err := h.storage.Indices(quantity.AggregateID)
	if err != nil {
		return
	}
	for i := range ids {
		ids[i] = h.aggregates[h.byParticle[i]].id
	}
}

// Integrate advances every multi-particle aggregate as a rigid body over dt
// and overwrites the velocities and accelerations of its members with the
// rigid-body field. Single-particle aggregates are untouched.
func (h *Holder) Integrate(dt float64, st *stats.Stats) error {
	r, err := h.storage.Vectors(quantity.Position, quantity.Value)
	if err != nil {
		return err
	}
	v, err := h.storage.Vectors(quantity.Position, quantity.Dt)
	if err != nil {
		return err
	}
	dv, err := h.storage.Vectors(quantity.Position, quantity.D2t)
	if err != nil {
		return err
	}
	m, err := h.storage.Scalars(quantity.Mass, quantity.Value)
	if err != nil {
		return err
	}

	for _, agg := range h.aggregates {
		if agg.Size() < 2 {
			continue
		}
		h.integrateOne(agg, dt, r, v, dv, m)
	}
	if st != nil {
		st.Set(stats.AggregateCount, h.Count())
	}
	return nil
}

func (h *Holder) integrateOne(agg *Aggregate, dt float64,
	r, v, dv []geometry.Vec, m []float64) {

	mass := 0.0
	com := geometry.Vec{}
	vcom := geometry.Vec{}
	acom := geometry.Vec{}
	for _, i := range agg.particles {
		mass += m[i]
		com = com.Add(r[i].Scale(m[i]))
		vcom = vcom.Add(v[i].Scale(m[i]))
		acom = acom.Add(dv[i].Scale(m[i]))
	}
	com = com.Scale(1 / mass)
	vcom = vcom.Scale(1 / mass)
	acom = acom.Scale(1 / mass)

	// angular momentum, inertia and torque about the centre of mass
	L := geometry.Vec{}
	torque := geometry.Vec{}
	var inertia geometry.SymTensor
	for _, i := range agg.particles {
		d := r[i].Sub(com)
		L = L.Add(geometry.Cross(d, v[i].Sub(vcom)).Scale(m[i]))
		torque = torque.Add(geometry.Cross(d, dv[i].Sub(acom)).Scale(m[i]))
		d2 := d.LenSq()
		inertia.Diag = inertia.Diag.Add(geometry.V(m[i]*d2, m[i]*d2, m[i]*d2))
		inertia = inertia.Sub(geometry.SymmetricOuter(d, d).Scale(m[i]))
	}

	// principal axes; degenerate directions (collinear aggregates) carry
	// no angular momentum and are left spinless
	values, axes := inertia.Eigensystem()
	floor := 1e-12 * values.Abs().MaxElement()

	wl := toLocal(axes, L)
	tl := toLocal(axes, torque)
	var dwl geometry.Vec
	for c := 0; c < 3; c++ {
		if values[c] <= floor {
			wl[c] = 0
			continue
		}
		wl[c] /= values[c]
	}
	// Euler's equations in the principal frame
	iw := geometry.V(values[0]*wl[0], values[1]*wl[1], values[2]*wl[2])
	ww := geometry.Cross(wl, iw)
	for c := 0; c < 3; c++ {
		if values[c] > floor {
			dwl[c] = (tl[c] - ww[c]) / values[c]
		}
	}
	omega := fromLocal(axes, wl.Add(dwl.Scale(dt)))

	for _, i := range agg.particles {
		d := r[i].Sub(com)
		v[i] = vcom.Add(geometry.Cross(omega, d))
		dv[i] = acom.Add(geometry.Cross(omega, geometry.Cross(omega, d)))
	}
}

func toLocal(axes [3]geometry.Vec, v geometry.Vec) geometry.Vec {
	return geometry.V(geometry.Dot(axes[0], v), geometry.Dot(axes[1], v), geometry.Dot(axes[2], v))
}

func fromLocal(axes [3]geometry.Vec, v geometry.Vec) geometry.Vec {
	return axes[0].Scale(v[0]).Add(axes[1].Scale(v[1])).Add(axes[2].Scale(v[2]))
}
