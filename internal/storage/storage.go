// Package storage holds the particle state of a simulation: a set of
// quantities in structure-of-arrays layout, material partitions assigning
// contiguous index ranges to shared material parameters, and point-mass
// attractors that take part in gravity but not in the SPH field.
package storage

import (
	"errors"
	"fmt"
	"sort"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/quantity"
)

var (
	ErrMissingQuantity    = errors.New("storage: missing quantity")
	ErrIncompatibleMerge  = errors.New("storage: incompatible storages")
	ErrPartitionOverflow  = errors.New("storage: partition exceeds particle count")
	ErrQuantityTypeWanted = errors.New("storage: quantity has a different data type")
)

// Attractor is a point mass outside the particle field.
type Attractor struct {
	Position     geometry.Vec
	Velocity     geometry.Vec
	Acceleration geometry.Vec
	Mass         float64
	Radius       float64
}

// Partition maps the index range [From, To) onto one material.
type Partition struct {
	Material *Material
	From, To int
}

func (p Partition) Size() int { return p.To - p.From }

// Storage owns the particle buffers. All quantity arrays have the same
// length; partitions cover [0, N) disjointly and in order.
type Storage struct {
	quantities map[quantity.ID]*quantity.Quantity
	ids        []quantity.ID // ascending, for deterministic iteration
	partitions []Partition
	attractors []Attractor
	userData   any
}

func New() *Storage {
	return &Storage{quantities: make(map[quantity.ID]*quantity.Quantity)}
}

// Insert registers a quantity under the given id, replacing any previous one.
func (s *Storage) Insert(id quantity.ID, q *quantity.Quantity) {
	if _, ok := s.quantities[id]; !ok {
		n := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
		s.ids = append(s.ids, 0)
		copy(s.ids[n+1:], s.ids[n:])
		s.ids[n] = id
	}
	s.quantities[id] = q
}

// InsertScalar is shorthand for Insert with a freshly built scalar quantity.
func (s *Storage) InsertScalar(id quantity.ID, order quantity.Order, values []float64) {
	s.Insert(id, quantity.NewScalar(order, values))
}

func (s *Storage) InsertVector(id quantity.ID, order quantity.Order, values []geometry.Vec) {
	s.Insert(id, quantity.NewVector(order, values))
}

func (s *Storage) InsertTensor(id quantity.ID, order quantity.Order, values []geometry.SymTensor) {
	s.Insert(id, quantity.NewTensor(order, values))
}

func (s *Storage) InsertIndex(id quantity.ID, values []int32) {
	s.Insert(id, quantity.NewIndex(values))
}

func (s *Storage) Has(id quantity.ID) bool {
	_, ok := s.quantities[id]
	return ok
}

// Quantity returns the quantity registered under id.
func (s *Storage) Quantity(id quantity.ID) (*quantity.Quantity, error) {
	q, ok := s.quantities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingQuantity, id)
	}
	return q, nil
}

// Scalars returns the scalar buffer of id at derivative d.
func (s *Storage) Scalars(id quantity.ID, d quantity.Derivative) ([]float64, error) {
	q, err := s.Quantity(id)
	if err != nil {
		return nil, err
	}
	buf := q.Scalars(d)
	if buf == nil && q.Size() > 0 {
		return nil, fmt.Errorf("%w: %s", ErrQuantityTypeWanted, id)
	}
	return buf, nil
}

func (s *Storage) Vectors(id quantity.ID, d quantity.Derivative) ([]geometry.Vec, error) {
	q, err := s.Quantity(id)
	if err != nil {
		return nil, err
	}
	buf := q.Vectors(d)
	if buf == nil && q.Size() > 0 {
		return nil, fmt.Errorf("%w: %s", ErrQuantityTypeWanted, id)
	}
	return buf, nil
}

func (s *Storage) Tensors(id quantity.ID, d quantity.Derivative) ([]geometry.SymTensor, error) {
	q, err := s.Quantity(id)
	if err != nil {
		return nil, err
	}
	buf := q.Tensors(d)
	if buf == nil && q.Size() > 0 {
		return nil, fmt.Errorf("%w: %s", ErrQuantityTypeWanted, id)
	}
	return buf, nil
}

func (s *Storage) Indices(id quantity.ID) ([]int32, error) {
	q, err := s.Quantity(id)
	if err != nil {
		return nil, err
	}
	return q.Indices(), nil
}

// ParticleCount returns the common length of all quantity buffers.
func (s *Storage) ParticleCount() int {
	for _, q := range s.quantities {
		return q.Size()
	}
	return 0
}

// QuantityIDs returns the registered ids in ascending order.
func (s *Storage) QuantityIDs() []quantity.ID {
	return append([]quantity.ID(nil), s.ids...)
}

// Each calls fn for every quantity in ascending id order.
func (s *Storage) Each(fn func(quantity.ID, *quantity.Quantity)) {
	for _, id := range s.ids {
		fn(id, s.quantities[id])
	}
}

// AddPartition appends a material partition covering the next count
// particles after the last partition.
func (s *Storage) AddPartition(mat *Material, count int) error {
	from := 0
	if n := len(s.partitions); n > 0 {
		from = s.partitions[n-1].To
	}
	if from+count > s.ParticleCount() {
		return ErrPartitionOverflow
	}
	s.partitions = append(s.partitions, Partition{Material: mat, From: from, To: from + count})
	return nil
}

func (s *Storage) Partitions() []Partition { return s.partitions }

// MaterialOf returns the material of particle i, or nil when no partition
// covers it.
func (s *Storage) MaterialOf(i int) *Material {
	for _, p := range s.partitions {
		if i >= p.From && i < p.To {
			return p.Material
		}
	}
	return nil
}

func (s *Storage) AddAttractor(a Attractor) {
	s.attractors = append(s.attractors, a)
}

// Attractors returns the attractor slice for in-place mutation.
func (s *Storage) Attractors() []Attractor { return s.attractors }

// SetUserData attaches opaque auxiliary state whose lifetime is tied to
// the storage.
func (s *Storage) SetUserData(v any) { s.userData = v }

func (s *Storage) UserData() any { return s.userData }

// Merge concatenates other's particles onto s. Both storages must carry
// the same quantity set with matching types and orders.
func (s *Storage) Merge(other *Storage) error {
	if len(s.ids) != len(other.ids) {
		return ErrIncompatibleMerge
	}
	for _, id := range s.ids {
		oq, ok := other.quantities[id]
		if !ok || !s.quantities[id].Compatible(oq) {
			return fmt.Errorf("%w: quantity %s", ErrIncompatibleMerge, id)
		}
	}
	offset := s.ParticleCount()
	for _, id := range s.ids {
		s.quantities[id].Append(other.quantities[id])
	}
	for _, p := range other.partitions {
		s.partitions = append(s.partitions, Partition{
			Material: p.Material,
			From:     p.From + offset,
			To:       p.To + offset,
		})
	}
	s.attractors = append(s.attractors, other.attractors...)
	return nil
}

// Remove deletes the particles at the given indices, preserving survivor
// order and shrinking the partitions that contained them. Duplicate and
// out-of-range indices are ignored. Views taken before Remove are invalid.
func (s *Storage) Remove(indices []int) {
	n := s.ParticleCount()
	sorted := make([]int, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < n {
			sorted = append(sorted, i)
		}
	}
	sort.Ints(sorted)
	sorted = dedupe(sorted)
	if len(sorted) == 0 {
		return
	}
	for _, id := range s.ids {
		s.quantities[id].Remove(sorted)
	}
	s.shiftPartitions(sorted)
}

func (s *Storage) shiftPartitions(sorted []int) {
	out := s.partitions[:0]
	for _, p := range s.partitions {
		removedBefore := countBelow(sorted, p.From)
		removedInside := countBelow(sorted, p.To) - removedBefore
		p.From -= removedBefore
		p.To -= removedBefore + removedInside
		if p.Size() > 0 {
			out = append(out, p)
		}
	}
	s.partitions = out
}

// Clone deep-copies quantities, partitions and attractors. User data is
// shared, not copied.
func (s *Storage) Clone() *Storage {
	out := New()
	for _, id := range s.ids {
		out.Insert(id, s.quantities[id].Clone())
	}
	out.partitions = append([]Partition(nil), s.partitions...)
	out.attractors = append([]Attractor(nil), s.attractors...)
	out.userData = s.userData
	return out
}

func dedupe(sorted []int) []int {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func countBelow(sorted []int, limit int) int {
	return sort.SearchInts(sorted, limit)
}
