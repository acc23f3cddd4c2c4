package timestep

import (
	"fmt"
	"math"

	"github.com/regolith-sim/regolith/internal/geometry"
	"github.com/regolith-sim/regolith/internal/quantity"
	"github.com/regolith-sim/regolith/internal/settings"
	"github.com/regolith-sim/regolith/internal/solver"
	"github.com/regolith-sim/regolith/internal/stats"
	"github.com/regolith-sim/regolith/internal/storage"
)

// Integrator advances the state by one step of length dt, invoking the
// solver for derivative evaluations as its scheme requires.
type Integrator interface {
	Advance(st *storage.Storage, sol solver.Solver, rs *stats.Stats, dt float64) error
}

// IntegratorFromSettings constructs the scheme selected by the run settings.
func IntegratorFromSettings(run *settings.Settings[settings.RunID]) (Integrator, error) {
	kind, err := settings.GetEnum[settings.Timestepping](run, settings.TimesteppingIntegrator)
	if err != nil {
		return nil, err
	}
	switch kind {
	case settings.TimesteppingEuler:
		return Euler{}, nil
	case settings.TimesteppingLeapfrog:
		return Leapfrog{}, nil
	case settings.TimesteppingRungeKutta:
		return RungeKutta{}, nil
	case settings.TimesteppingPredictorCorrector:
		return PredictorCorrector{}, nil
	case settings.TimesteppingModifiedMidpoint:
		return ModifiedMidpoint{
			Count: settings.MustGet[int](run, settings.TimesteppingMidpointCount)}, nil
	case settings.TimesteppingBulirschStoer:
		return BulirschStoer{
			Accuracy: settings.MustGet[float64](run, settings.TimesteppingBSAccuracy)}, nil
	default:
		return nil, fmt.Errorf("timestep: unknown integrator %d", int(kind))
	}
}

// advanceFrom writes into dst the state of src advanced by dt using dst's
// current derivative slots as the derivative of the state: second-order
// quantities drift by the pre-step first derivative and then kick it,
// first-order quantities step their value. dst and src may alias.
func advanceFrom(dst, src *storage.Storage, dt float64) {
	dst.Each(func(id quantity.ID, q *quantity.Quantity) {
		sq, _ := src.Quantity(id)
		switch q.Order() {
		case quantity.Second:
			switch q.Type() {
			case quantity.Vector:
				v, dv, d2v := q.Vectors(quantity.Value), q.Vectors(quantity.Dt), q.Vectors(quantity.D2t)
				sv, sdv := sq.Vectors(quantity.Value), sq.Vectors(quantity.Dt)
				for i := range v {
					v[i] = sv[i].Add(dv[i].Scale(dt))
					dv[i] = sdv[i].Add(d2v[i].Scale(dt))
				}
			case quantity.Scalar:
				v, dv, d2v := q.Scalars(quantity.Value), q.Scalars(quantity.Dt), q.Scalars(quantity.D2t)
				sv, sdv := sq.Scalars(quantity.Value), sq.Scalars(quantity.Dt)
				for i := range v {
					v[i] = sv[i] + dv[i]*dt
					dv[i] = sdv[i] + d2v[i]*dt
				}
			}
		case quantity.First:
			switch q.Type() {
			case quantity.Scalar:
				v, dv := q.Scalars(quantity.Value), q.Scalars(quantity.Dt)
				sv := sq.Scalars(quantity.Value)
				for i := range v {
					v[i] = sv[i] + dv[i]*dt
				}
			case quantity.Vector:
				v, dv := q.Vectors(quantity.Value), q.Vectors(quantity.Dt)
				sv := sq.Vectors(quantity.Value)
				for i := range v {
					v[i] = sv[i].Add(dv[i].Scale(dt))
				}
			case quantity.Tensor:
				v, dv := q.Tensors(quantity.Value), q.Tensors(quantity.Dt)
				sv := sq.Tensors(quantity.Value)
				for i := range v {
					v[i] = sv[i].Add(dv[i].Scale(dt))
				}
			}
		}
	})
}

// zeroStateDerivatives clears the derivative slots of the evolved state, so
// weighted stage derivatives can be summed into them. For second-order
// quantities both the first derivative (driving the value) and the second
// (driving the first) are accumulator slots.
func zeroStateDerivatives(st *storage.Storage) {
	st.Each(func(_ quantity.ID, q *quantity.Quantity) {
		switch q.Order() {
		case quantity.Second:
			switch q.Type() {
			case quantity.Vector:
				clearVecs(q.Vectors(quantity.Dt))
				clearVecs(q.Vectors(quantity.D2t))
			case quantity.Scalar:
				clearFloats(q.Scalars(quantity.Dt))
				clearFloats(q.Scalars(quantity.D2t))
			}
		case quantity.First:
			switch q.Type() {
			case quantity.Scalar:
				clearFloats(q.Scalars(quantity.Dt))
			case quantity.Vector:
				clearVecs(q.Vectors(quantity.Dt))
			case quantity.Tensor:
				clearTensors(q.Tensors(quantity.Dt))
			}
		}
	})
}

// accumulateDerivatives adds w times the state derivatives of src into
// dst's derivative slots.
func accumulateDerivatives(dst, src *storage.Storage, w float64) {
	dst.Each(func(id quantity.ID, q *quantity.Quantity) {
		sq, _ := src.Quantity(id)
		switch q.Order() {
		case quantity.Second:
			switch q.Type() {
			case quantity.Vector:
				dv, s := q.Vectors(quantity.Dt), sq.Vectors(quantity.Dt)
				for i := range dv {
					dv[i] = dv[i].Add(s[i].Scale(w))
				}
				d, s2 := q.Vectors(quantity.D2t), sq.Vectors(quantity.D2t)
				for i := range d {
					d[i] = d[i].Add(s2[i].Scale(w))
				}
			case quantity.Scalar:
				dv, s := q.Scalars(quantity.Dt), sq.Scalars(quantity.Dt)
				for i := range dv {
					dv[i] += s[i] * w
				}
				d, s2 := q.Scalars(quantity.D2t), sq.Scalars(quantity.D2t)
				for i := range d {
					d[i] += s2[i] * w
				}
			}
		case quantity.First:
			switch q.Type() {
			case quantity.Scalar:
				d, s := q.Scalars(quantity.Dt), sq.Scalars(quantity.Dt)
				for i := range d {
					d[i] += s[i] * w
				}
			case quantity.Vector:
				d, s := q.Vectors(quantity.Dt), sq.Vectors(quantity.Dt)
				for i := range d {
					d[i] = d[i].Add(s[i].Scale(w))
				}
			case quantity.Tensor:
				d, s := q.Tensors(quantity.Dt), sq.Tensors(quantity.Dt)
				for i := range d {
					d[i] = d[i].Add(s[i].Scale(w))
				}
			}
		}
	})
}

// copyDerivatives overwrites dst's state derivatives with src's.
func copyDerivatives(dst, src *storage.Storage) {
	zeroStateDerivatives(dst)
	accumulateDerivatives(dst, src, 1)
}

// Euler is the explicit first-order scheme: one derivative evaluation, kick
// then drift.
type Euler struct{}

func (Euler) Advance(st *storage.Storage, sol solver.Solver, rs *stats.Stats, dt float64) error {
	if err := sol.Integrate(st, rs); err != nil {
		return err
	}
	advanceFrom(st, st, dt)
	return nil
}

// Leapfrog is the kick-drift-kick scheme, 2nd order for positions.
type Leapfrog struct{}

func (Leapfrog) Advance(st *storage.Storage, sol solver.Solver, rs *stats.Stats, dt float64) error {
	if err := sol.Integrate(st, rs); err != nil {
		return err
	}
	halfKick(st, dt/2)
	drift(st, dt)
	if err := sol.Integrate(st, rs); err != nil {
		return err
	}
	halfKick(st, dt/2)
	return nil
}

// halfKick advances the first derivatives of second-order quantities and
// the values of first-order quantities by dt.
func halfKick(st *storage.Storage, dt float64) {
	st.Each(func(_ quantity.ID, q *quantity.Quantity) {
		switch q.Order() {
		case quantity.Second:
			switch q.Type() {
			case quantity.Vector:
				dv, d2v := q.Vectors(quantity.Dt), q.Vectors(quantity.D2t)
				for i := range dv {
					dv[i] = dv[i].Add(d2v[i].Scale(dt))
				}
			case quantity.Scalar:
				dv, d2v := q.Scalars(quantity.Dt), q.Scalars(quantity.D2t)
				for i := range dv {
					dv[i] += d2v[i] * dt
				}
			}
		case quantity.First:
			switch q.Type() {
			case quantity.Scalar:
				v, dv := q.Scalars(quantity.Value), q.Scalars(quantity.Dt)
				for i := range v {
					v[i] += dv[i] * dt
				}
			case quantity.Vector:
				v, dv := q.Vectors(quantity.Value), q.Vectors(quantity.Dt)
				for i := range v {
					v[i] = v[i].Add(dv[i].Scale(dt))
				}
			case quantity.Tensor:
				v, dv := q.Tensors(quantity.Value), q.Tensors(quantity.Dt)
				for i := range v {
					v[i] = v[i].Add(dv[i].Scale(dt))
				}
			}
		}
	})
}

// drift advances the values of second-order quantities by their first
// derivatives.
func drift(st *storage.Storage, dt float64) {
	st.Each(func(_ quantity.ID, q *quantity.Quantity) {
		if q.Order() != quantity.Second {
			return
		}
		switch q.Type() {
		case quantity.Vector:
			v, dv := q.Vectors(quantity.Value), q.Vectors(quantity.Dt)
			for i := range v {
				v[i] = v[i].Add(dv[i].Scale(dt))
			}
		case quantity.Scalar:
			v, dv := q.Scalars(quantity.Value), q.Scalars(quantity.Dt)
			for i := range v {
				v[i] += dv[i] * dt
			}
		}
	})
}

// RungeKutta is the classical explicit 4th order scheme; four derivative
// evaluations per step.
type RungeKutta struct{}

func (RungeKutta) Advance(st *storage.Storage, sol solver.Solver, rs *stats.Stats, dt float64) error {
	base := st.Clone()
	acc := st.Clone()
	zeroStateDerivatives(acc)

	// k1 on the initial state
	if err := sol.Integrate(st, rs); err != nil {
		return err
	}
	accumulateDerivatives(acc, st, 1.0/6)

	// k2 at the midpoint
	advanceFrom(st, base, dt/2)
	if err := sol.Integrate(st, rs); err != nil {
		return err
	}
	accumulateDerivatives(acc, st, 2.0/6)

	// k3 at the midpoint of the k2 extrapolation
	advanceFrom(st, base, dt/2)
	if err := sol.Integrate(st, rs); err != nil {
		return err
	}
	accumulateDerivatives(acc, st, 2.0/6)

	// k4 at the full step
	advanceFrom(st, base, dt)
	if err := sol.Integrate(st, rs); err != nil {
		return err
	}
	accumulateDerivatives(acc, st, 1.0/6)

	copyDerivatives(st, acc)
	advanceFrom(st, base, dt)
	return nil
}

// PredictorCorrector extrapolates with the current derivatives, re-evaluates
// on the prediction and corrects by the averaged difference.
type PredictorCorrector struct{}

func (PredictorCorrector) Advance(st *storage.Storage, sol solver.Solver, rs *stats.Stats, dt float64) error {
	if err := sol.Integrate(st, rs); err != nil {
		return err
	}
	predicted := st.Clone()
	predict(st, dt)

	if err := sol.Integrate(st, rs); err != nil {
		return err
	}
	correct(st, predicted, dt/2)
	return nil
}

// predict extrapolates values and first derivatives with the current second
// derivatives, second order in dt for the values.
func predict(st *storage.Storage, dt float64) {
	st.Each(func(_ quantity.ID, q *quantity.Quantity) {
		switch q.Order() {
		case quantity.Second:
			switch q.Type() {
			case quantity.Vector:
				v, dv, d2v := q.Vectors(quantity.Value), q.Vectors(quantity.Dt), q.Vectors(quantity.D2t)
				for i := range v {
					v[i] = v[i].Add(dv[i].Scale(dt)).Add(d2v[i].Scale(0.5 * dt * dt))
					dv[i] = dv[i].Add(d2v[i].Scale(dt))
				}
			case quantity.Scalar:
				v, dv, d2v := q.Scalars(quantity.Value), q.Scalars(quantity.Dt), q.Scalars(quantity.D2t)
				for i := range v {
					v[i] += dv[i]*dt + 0.5*d2v[i]*dt*dt
					dv[i] += d2v[i] * dt
				}
			}
		case quantity.First:
			switch q.Type() {
			case quantity.Scalar:
				v, dv := q.Scalars(quantity.Value), q.Scalars(quantity.Dt)
				for i := range v {
					v[i] += dv[i] * dt
				}
			case quantity.Vector:
				v, dv := q.Vectors(quantity.Value), q.Vectors(quantity.Dt)
				for i := range v {
					v[i] = v[i].Add(dv[i].Scale(dt))
				}
			case quantity.Tensor:
				v, dv := q.Tensors(quantity.Value), q.Tensors(quantity.Dt)
				for i := range v {
					v[i] = v[i].Add(dv[i].Scale(dt))
				}
			}
		}
	})
}

// correct shifts first derivatives of second-order quantities and values of
// first-order quantities by w times the difference between the freshly
// evaluated derivatives and the ones used for the prediction.
func correct(st, predicted *storage.Storage, w float64) {
	st.Each(func(id quantity.ID, q *quantity.Quantity) {
		pq, _ := predicted.Quantity(id)
		switch q.Order() {
		case quantity.Second:
			switch q.Type() {
			case quantity.Vector:
				dv, d2v, p := q.Vectors(quantity.Dt), q.Vectors(quantity.D2t), pq.Vectors(quantity.D2t)
				for i := range dv {
					dv[i] = dv[i].Add(d2v[i].Sub(p[i]).Scale(w))
				}
			case quantity.Scalar:
				dv, d2v, p := q.Scalars(quantity.Dt), q.Scalars(quantity.D2t), pq.Scalars(quantity.D2t)
				for i := range dv {
					dv[i] += (d2v[i] - p[i]) * w
				}
			}
		case quantity.First:
			switch q.Type() {
			case quantity.Scalar:
				v, dv, p := q.Scalars(quantity.Value), q.Scalars(quantity.Dt), pq.Scalars(quantity.Dt)
				for i := range v {
					v[i] += (dv[i] - p[i]) * w
				}
			case quantity.Vector:
				v, dv, p := q.Vectors(quantity.Value), q.Vectors(quantity.Dt), pq.Vectors(quantity.Dt)
				for i := range v {
					v[i] = v[i].Add(dv[i].Sub(p[i]).Scale(w))
				}
			case quantity.Tensor:
				v, dv, p := q.Tensors(quantity.Value), q.Tensors(quantity.Dt), pq.Tensors(quantity.Dt)
				for i := range v {
					v[i] = v[i].Add(dv[i].Sub(p[i]).Scale(w))
				}
			}
		}
	})
}

// ModifiedMidpoint subdivides the step into Count substeps of the midpoint
// scheme and closes with the standard averaging formula.
type ModifiedMidpoint struct {
	Count int
}

func (m ModifiedMidpoint) Advance(st *storage.Storage, sol solver.Solver, rs *stats.Stats, dt float64) error {
	n := m.Count
	if n < 2 {
		n = 2
	}
	h := dt / float64(n)

	// z0 and z1
	prev := st.Clone()
	if err := sol.Integrate(st, rs); err != nil {
		return err
	}
	advanceFrom(st, st, h)

	for k := 1; k < n; k++ {
		if err := sol.Integrate(st, rs); err != nil {
			return err
		}
		cur := st.Clone()
		advanceFrom(st, prev, 2*h)
		prev = cur
	}

	// y = (z_n + z_{n-1} + h f(z_n)) / 2
	if err := sol.Integrate(st, rs); err != nil {
		return err
	}
	closeMidpoint(st, prev, h)
	return nil
}

// closeMidpoint replaces the state by the midpoint closure average of the
// last two substates.
func closeMidpoint(st, prev *storage.Storage, h float64) {
	st.Each(func(id quantity.ID, q *quantity.Quantity) {
		pq, _ := prev.Quantity(id)
		switch q.Order() {
		case quantity.Second:
			switch q.Type() {
			case quantity.Vector:
				v, dv, d2v := q.Vectors(quantity.Value), q.Vectors(quantity.Dt), q.Vectors(quantity.D2t)
				pv, pdv := pq.Vectors(quantity.Value), pq.Vectors(quantity.Dt)
				for i := range v {
					v[i] = v[i].Add(pv[i]).Add(dv[i].Scale(h)).Scale(0.5)
					dv[i] = dv[i].Add(pdv[i]).Add(d2v[i].Scale(h)).Scale(0.5)
				}
			case quantity.Scalar:
				v, dv, d2v := q.Scalars(quantity.Value), q.Scalars(quantity.Dt), q.Scalars(quantity.D2t)
				pv, pdv := pq.Scalars(quantity.Value), pq.Scalars(quantity.Dt)
				for i := range v {
					v[i] = 0.5 * (v[i] + pv[i] + dv[i]*h)
					dv[i] = 0.5 * (dv[i] + pdv[i] + d2v[i]*h)
				}
			}
		case quantity.First:
			switch q.Type() {
			case quantity.Scalar:
				v, dv := q.Scalars(quantity.Value), q.Scalars(quantity.Dt)
				pv := pq.Scalars(quantity.Value)
				for i := range v {
					v[i] = 0.5 * (v[i] + pv[i] + dv[i]*h)
				}
			case quantity.Vector:
				v, dv := q.Vectors(quantity.Value), q.Vectors(quantity.Dt)
				pv := pq.Vectors(quantity.Value)
				for i := range v {
					v[i] = v[i].Add(pv[i]).Add(dv[i].Scale(h)).Scale(0.5)
				}
			case quantity.Tensor:
				v, dv := q.Tensors(quantity.Value), q.Tensors(quantity.Dt)
				pv := pq.Tensors(quantity.Value)
				for i := range v {
					v[i] = v[i].Add(pv[i]).Add(dv[i].Scale(h)).Scale(0.5)
				}
			}
		}
	})
}

// BulirschStoer extrapolates the modified midpoint scheme to vanishing
// substep size with Richardson extrapolation, raising the order until the
// result converges to the requested accuracy. The substep sequence is
// 2, 4, 6, ...
type BulirschStoer struct {
	Accuracy float64
}

const bsMaxRows = 8

func (b BulirschStoer) Advance(st *storage.Storage, sol solver.Solver, rs *stats.Stats, dt float64) error {
	base := st.Clone()
	var prevRow []*storage.Storage
	var ns []float64

	for k := 0; k < bsMaxRows; k++ {
		ns = append(ns, float64(2*(k+1)))
		row := make([]*storage.Storage, k+1)

		work := base.Clone()
		if err := (ModifiedMidpoint{Count: 2 * (k + 1)}).Advance(work, sol, rs, dt); err != nil {
			return err
		}
		row[0] = work
		for j := 1; j <= k; j++ {
			// T[k][j] = T[k][j-1] + (T[k][j-1] - T[k-1][j-1]) / ((n_k/n_{k-j})^2 - 1)
			ratio := ns[k] / ns[k-j]
			c := 1 / (ratio*ratio - 1)
			next := row[j-1].Clone()
			extrapolate(next, prevRow[j-1], c)
			row[j] = next
		}
		if k > 0 && maxRelativeDifference(row[k], row[k-1]) < b.Accuracy {
			copyState(st, row[k])
			return nil
		}
		prevRow = row
	}
	copyState(st, prevRow[len(prevRow)-1])
	return nil
}

// extrapolate applies dst += (dst - prev) * c over values and first
// derivatives of the evolved quantities.
func extrapolate(dst, prev *storage.Storage, c float64) {
	dst.Each(func(id quantity.ID, q *quantity.Quantity) {
		pq, _ := prev.Quantity(id)
		if q.Order() == quantity.Zero {
			return
		}
		switch q.Type() {
		case quantity.Scalar:
			for d := quantity.Value; d < quantity.Derivative(int(q.Order())); d++ {
				v, p := q.Scalars(d), pq.Scalars(d)
				for i := range v {
					v[i] += (v[i] - p[i]) * c
				}
			}
		case quantity.Vector:
			for d := quantity.Value; d < quantity.Derivative(int(q.Order())); d++ {
				v, p := q.Vectors(d), pq.Vectors(d)
				for i := range v {
					v[i] = v[i].Add(v[i].Sub(p[i]).Scale(c))
				}
			}
		case quantity.Tensor:
			for d := quantity.Value; d < quantity.Derivative(int(q.Order())); d++ {
				v, p := q.Tensors(d), pq.Tensors(d)
				for i := range v {
					v[i] = v[i].Add(v[i].Sub(p[i]).Scale(c))
				}
			}
		}
	})
}

// maxRelativeDifference measures convergence between two extrapolation rows
// over the position quantity. Rows that cannot be compared count as not
// converged.
func maxRelativeDifference(a, b *storage.Storage) float64 {
	ra, err := a.Vectors(quantity.Position, quantity.Value)
	if err != nil {
		return math.Inf(1)
	}
	rb, err := b.Vectors(quantity.Position, quantity.Value)
	if err != nil || len(rb) != len(ra) {
		return math.Inf(1)
	}
	out := 0.0
	for i := range ra {
		out = math.Max(out, ra[i].Sub(rb[i]).Len()/(1+ra[i].Len()))
	}
	return out
}

// copyState writes the values and derivatives of src into dst, which must
// hold the same quantity set.
func copyState(dst, src *storage.Storage) {
	dst.Each(func(id quantity.ID, q *quantity.Quantity) {
		sq, _ := src.Quantity(id)
		for d := quantity.Value; d <= quantity.Derivative(int(q.Order())); d++ {
			switch q.Type() {
			case quantity.Scalar:
				copy(q.Scalars(d), sq.Scalars(d))
			case quantity.Vector:
				copy(q.Vectors(d), sq.Vectors(d))
			case quantity.Tensor:
				copy(q.Tensors(d), sq.Tensors(d))
			case quantity.Index:
				copy(q.Indices(), sq.Indices())
			}
		}
	})
}

func clearFloats(xs []float64) {
	for i := range xs {
		xs[i] = 0
	}
}

func clearVecs(vs []geometry.Vec) {
	for i := range vs {
		vs[i] = geometry.Vec{}
	}
}

func clearTensors(ts []geometry.SymTensor) {
	for i := range ts {
		ts[i] = geometry.SymTensor{}
	}
}
