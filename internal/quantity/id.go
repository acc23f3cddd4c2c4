package quantity

import "fmt"

// ID identifies a physical quantity within a storage.
type ID int

const (
	Position ID = iota
	Mass
	Density
	Energy
	Pressure
	SoundSpeed
	SmoothingLength
	Damage
	DeviatoricStress
	YieldReduction
	VelocityDivergence
	AVAlpha
	AngularFrequency
	MomentOfInertia
	NeighbourCount
	MaterialID
	AggregateID
)

// Metadata carries the serialised name and element type of a quantity.
type Metadata struct {
	Name  string
	Type  DataType
	Label string // column header in text outputs
}

var metadata = map[ID]Metadata{
	Position:           {"position", Vector, "r"},
	Mass:               {"mass", Scalar, "m"},
	Density:            {"density", Scalar, "rho"},
	Energy:             {"energy", Scalar, "u"},
	Pressure:           {"pressure", Scalar, "p"},
	SoundSpeed:         {"sound_speed", Scalar, "cs"},
	SmoothingLength:    {"smoothing_length", Scalar, "h"},
	Damage:             {"damage", Scalar, "D"},
	DeviatoricStress:   {"deviatoric_stress", Tensor, "S"},
	YieldReduction:     {"yield_reduction", Scalar, "Y"},
	VelocityDivergence: {"velocity_divergence", Scalar, "divv"},
	AVAlpha:            {"av_alpha", Scalar, "alpha"},
	AngularFrequency:   {"angular_frequency", Vector, "omega"},
	MomentOfInertia:    {"moment_of_inertia", Tensor, "I"},
	NeighbourCount:     {"neighbour_count", Index, "neigh"},
	MaterialID:         {"material_id", Index, "matId"},
	AggregateID:        {"aggregate_id", Index, "aggId"},
}

// MetadataOf returns the metadata of a known quantity id.
func MetadataOf(id ID) Metadata {
	m, ok := metadata[id]
	if !ok {
		return Metadata{Name: fmt.Sprintf("quantity_%d", int(id)), Type: Scalar}
	}
	return m
}

func (id ID) String() string { return MetadataOf(id).Name }

// IDByName resolves a serialised quantity name back to its id.
func IDByName(name string) (ID, bool) {
	for id, m := range metadata {
		if m.Name == name {
			return id, true
		}
	}
	return 0, false
}
