package timestep

import (
	"math"

	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// Criterion proposes an upper bound on the next timestep. An unconstrained
// criterion returns +Inf.
type Criterion interface {
	Compute(st *storage.Storage, rs *stats.Stats) float64
	Name() string
}

// Courant is the CFL condition dt <= C * h / cs.
type Courant struct {
	Number float64
}

func (c Courant) Name() string { return "courant" }

func (c Courant) Compute(st *storage.Storage, rs *stats.Stats) float64 {
	h, err := st.Scalars(quantity.SmoothingLength, quantity.Value)
	if err != nil {
		return math.Inf(1)
	}
	cs, err := st.Scalars(quantity.SoundSpeed, quantity.Value)
	if err != nil {
		return math.Inf(1)
	}
	dt := math.Inf(1)
	for i := range h {
		if cs[i] > 0 {
			dt = math.Min(dt, c.Number*h[i]/cs[i])
		}
	}
	return dt
}

// Acceleration bounds the step by dt <= factor * sqrt(h / |dv|).
type Acceleration struct {
	Factor float64
}

func (a Acceleration) Name() string { return "acceleration" }

func (a Acceleration) Compute(st *storage.Storage, rs *stats.Stats) float64 {
	h, err := st.Scalars(quantity.SmoothingLength, quantity.Value)
	if err != nil {
		return math.Inf(1)
	}
	dv, err := st.Vectors(quantity.Position, quantity.D2t)
	if err != nil {
		return math.Inf(1)
	}
	dt := math.Inf(1)
	for i := range h {
		if a2 := dv[i].Len(); a2 > 0 {
			dt = math.Min(dt, a.Factor*math.Sqrt(h[i]/a2))
		}
	}
	return dt
}

// Divergence bounds the step by dt <= factor / |div v|.
type Divergence struct {
	Factor float64
}

func (d Divergence) Name() string { return "divergence" }

func (d Divergence) Compute(st *storage.Storage, rs *stats.Stats) float64 {
	divv, err := st.Scalars(quantity.VelocityDivergence, quantity.Value)
	if err != nil {
		return math.Inf(1)
	}
	dt := math.Inf(1)
	for _, dv := range divv {
		if a := math.Abs(dv); a > 0 {
			dt = math.Min(dt, d.Factor/a)
		}
	}
	return dt
}

// Derivative bounds the step by the value-to-derivative ratio of every
// quantity with a registered material range. The minimal scale of the
// quantity floors the numerator so zero crossings do not collapse the step.
// Records the limiting particle and quantity in the statistics.
type Derivative struct {
	Factor float64
}

func (d Derivative) Name() string { return "derivative" }

func (d Derivative) Compute(st *storage.Storage, rs *stats.Stats) float64 {
	dt := math.Inf(1)
	limI := -1
	limQ := quantity.ID(-1)

	for _, part := range st.Partitions() {
		for _, id := range part.Material.RangedIDs() {
			q, err := st.Quantity(id)
			if err != nil || q.Order() == quantity.Zero {
				continue
			}
			minimal := part.Material.Minimal(id)
			v := q.Scalars(quantity.Value)
			if v == nil {
				continue
			}
			dv := q.Scalars(quantity.Dt)
			for i := part.From; i < part.To; i++ {
				der := math.Abs(dv[i])
				if der == 0 {
					continue
				}
				cand := d.Factor * (math.Abs(v[i]) + minimal) / der
				if cand < dt {
					dt = cand
					limI = i
					limQ = id
				}
			}
		}
	}
	if rs != nil && limI >= 0 {
		rs.Set(stats.LimitingParticle, limI)
		rs.Set(stats.LimitingQuantity, quantity.MetadataOf(limQ).Name)
	}
	return dt
}

// Multi combines the enabled criteria. The generalised p-mean degrades to
// the plain minimum for power = -Inf.
type Multi struct {
	Criteria []Criterion
	Power    float64
}

func (m Multi) Name() string { return "multi" }

func (m Multi) Compute(st *storage.Storage, rs *stats.Stats) float64 {
	if len(m.Criteria) == 0 {
		return math.Inf(1)
	}
	values := make([]float64, len(m.Criteria))
	minVal := math.Inf(1)
	minIdx := 0
	for i, c := range m.Criteria {
		values[i] = c.Compute(st, rs)
		if values[i] < minVal {
			minVal = values[i]
			minIdx = i
		}
	}
	if rs != nil && !math.IsInf(minVal, 1) {
		rs.Set(stats.LimitingCriterion, m.Criteria[minIdx].Name())
	}
	if math.IsInf(m.Power, -1) {
		return minVal
	}
	sum := 0.0
	n := 0
	for _, v := range values {
		if !math.IsInf(v, 1) {
			sum += math.Pow(v, m.Power)
			n++
		}
	}
	if n == 0 {
		return math.Inf(1)
	}
	return math.Pow(sum/float64(n), 1/m.Power)
}

// CriterionFromSettings assembles the criterion union enabled by the run
// settings.
func CriterionFromSettings(run *settings.Settings[settings.RunID]) (Criterion, error) {
	flags, err := settings.GetFlags(run, settings.TimesteppingCriterion)
	if err != nil {
		return nil, err
	}
	m := Multi{Power: settings.MustGet[float64](run, settings.TimesteppingMeanPower)}
	if flags.Has(settings.CriterionCourant) {
		m.Criteria = append(m.Criteria, Courant{
			Number: settings.MustGet[float64](run, settings.TimesteppingCourantNumber)})
	}
	if flags.Has(settings.CriterionDerivative) {
		m.Criteria = append(m.Criteria, Derivative{
			Factor: settings.MustGet[float64](run, settings.TimesteppingDerivativeFactor)})
	}
	if flags.Has(settings.CriterionAcceleration) {
		m.Criteria = append(m.Criteria, Acceleration{
			Factor: settings.MustGet[float64](run, settings.TimesteppingAccelerationFactor)})
	}
	if flags.Has(settings.CriterionDivergence) {
		m.Criteria = append(m.Criteria, Divergence{
			Factor: settings.MustGet[float64](run, settings.TimesteppingDivergenceFactor)})
	}
	return m, nil
}
