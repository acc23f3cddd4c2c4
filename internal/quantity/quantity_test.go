package quantity

import (
	"testing"

	"github.com/regolith-sim/regolith/internal/geometry"
)

func TestDerivativeBuffers(t *testing.T) {
	q := NewScalar(Second, []float64{1, 2, 3})
	if q.Size() != 3 {
		t.Fatalf("size = %d", q.Size())
	}
	for _, d := range []Derivative{Value, Dt, D2t} {
		if got := len(q.Scalars(d)); got != 3 {
			t.Errorf("buffer %d has length %d", d, got)
		}
	}
	z := NewScalar(Zero, []float64{1})
	if z.Scalars(Dt) != nil {
		t.Error("zero-order quantity must not expose a derivative buffer")
	}
}

func TestTypeMismatchReturnsNil(t *testing.T) {
	q := NewVector(First, []geometry.Vec{{1, 0, 0}})
	if q.Scalars(Value) != nil {
		t.Error("vector quantity must not expose scalar buffers")
	}
	if q.Vectors(Value) == nil {
		t.Error("vector buffer missing")
	}
}

func TestAppend(t *testing.T) {
	a := NewScalar(First, []float64{1, 2})
	b := NewScalar(First, []float64{3})
	if !a.Compatible(b) {
		t.Fatal("compatible quantities reported incompatible")
	}
	a.Append(b)
	if a.Size() != 3 || len(a.Scalars(Dt)) != 3 {
		t.Errorf("append produced size %d, dt %d", a.Size(), len(a.Scalars(Dt)))
	}
	if a.Compatible(NewScalar(Zero, nil)) {
		t.Error("order mismatch must be incompatible")
	}
}

func TestRemovePreservesOrder(t *testing.T) {
	q := NewVector(Second, []geometry.Vec{
		{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}, {4, 0, 0},
	})
	q.Vectors(Dt)[1] = geometry.V(9, 9, 9)
	q.Remove([]int{1, 3})
	if q.Size() != 3 {
		t.Fatalf("size after remove = %d", q.Size())
	}
	want := []float64{0, 2, 4}
	for i, w := range want {
		if q.Vectors(Value)[i][0] != w {
			t.Errorf("survivor %d = %v", i, q.Vectors(Value)[i])
		}
	}
	if q.Vectors(Dt)[0] != (geometry.Vec{}) {
		t.Error("derivative of survivor 0 changed")
	}
}

func TestClone(t *testing.T) {
	q := NewTensor(First, []geometry.SymTensor{geometry.IdentityTensor()})
	c := q.Clone()
	c.Tensors(Value)[0] = geometry.NullTensor()
	if q.Tensors(Value)[0] == (geometry.NullTensor()) {
		t.Error("clone shares buffers with original")
	}
}

func TestMetadata(t *testing.T) {
	if MetadataOf(Position).Type != Vector || MetadataOf(Position).Name != "position" {
		t.Errorf("position metadata = %+v", MetadataOf(Position))
	}
	if MetadataOf(DeviatoricStress).Type != Tensor {
		t.Error("deviatoric stress should be tensor-valued")
	}
}
