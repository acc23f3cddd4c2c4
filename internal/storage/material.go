package storage

import (
	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/settings"
)

// Material bundles the per-body parameters shared by one partition together
// with the allowed range and minimal scale of each quantity, consumed by the
// derivative timestep criterion.
type Material struct {
	Params *settings.Settings[settings.BodyID]

	ranges   map[quantity.ID]geometry.Interval
	minimals map[quantity.ID]float64
}

func NewMaterial(params *settings.Settings[settings.BodyID]) *Material {
	return &Material{
		Params:   params,
		ranges:   make(map[quantity.ID]geometry.Interval),
		minimals: make(map[quantity.ID]float64),
	}
}

// SetRange records the allowed interval and the minimal scale of a quantity.
// The minimal scale floors the denominator of the derivative criterion so
// that zero crossings do not collapse the timestep.
func (m *Material) SetRange(id quantity.ID, r geometry.Interval, minimal float64) {
	m.ranges[id] = r
	m.minimals[id] = minimal
}

// Range returns the allowed interval of a quantity, unbounded when none was
// set.
func (m *Material) Range(id quantity.ID) geometry.Interval {
	if r, ok := m.ranges[id]; ok {
		return r
	}
	return geometry.Unbounded()
}

// Minimal returns the minimal scale of a quantity, zero when none was set.
func (m *Material) Minimal(id quantity.ID) float64 {
	return m.minimals[id]
}

// RangedIDs returns the ids with an explicit range, in unspecified order.
func (m *Material) RangedIDs() []quantity.ID {
	out := make([]quantity.ID, 0, len(m.ranges))
	for id := range m.ranges {
		out = append(out, id)
	}
	return out
}
