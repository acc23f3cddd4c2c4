package geometry

import (
	"fmt"
	"math"
)

// SymTensor is a symmetric 3x3 tensor stored as the diagonal and the three
// off-diagonal components (xy, xz, yz).
type SymTensor struct {
	Diag Vec
	Off  Vec
}

// NullTensor returns the zero tensor.
func NullTensor() SymTensor { return SymTensor{} }

// IdentityTensor returns the unit tensor.
func IdentityTensor() SymTensor {
	return SymTensor{Diag: Vec{1, 1, 1}}
}

func (t SymTensor) Add(o SymTensor) SymTensor {
	return SymTensor{t.Diag.Add(o.Diag), t.Off.Add(o.Off)}
}

func (t SymTensor) Sub(o SymTensor) SymTensor {
	return SymTensor{t.Diag.Sub(o.Diag), t.Off.Sub(o.Off)}
}

func (t SymTensor) Scale(s float64) SymTensor {
	return SymTensor{t.Diag.Scale(s), t.Off.Scale(s)}
}

// At returns the component at row i, column j.
func (t SymTensor) At(i, j int) float64 {
	if i == j {
		return t.Diag[i]
	}
	k := i + j - 1 // (0,1)->0, (0,2)->1, (1,2)->2
	return t.Off[k]
}

// Apply computes t * v.
func (t SymTensor) Apply(v Vec) Vec {
	return Vec{
		t.Diag[0]*v[0] + t.Off[0]*v[1] + t.Off[1]*v[2],
		t.Off[0]*v[0] + t.Diag[1]*v[1] + t.Off[2]*v[2],
		t.Off[1]*v[0] + t.Off[2]*v[1] + t.Diag[2]*v[2],
	}
}

func (t SymTensor) Trace() float64 {
	return t.Diag[0] + t.Diag[1] + t.Diag[2]
}

func (t SymTensor) Determinant() float64 {
	return t.Diag[0]*t.Diag[1]*t.Diag[2] +
		2*t.Off[0]*t.Off[1]*t.Off[2] -
		t.Diag[0]*t.Off[2]*t.Off[2] -
		t.Diag[1]*t.Off[1]*t.Off[1] -
		t.Diag[2]*t.Off[0]*t.Off[0]
}

// Inverse returns the inverse tensor. The determinant must be nonzero.
func (t SymTensor) Inverse() SymTensor {
	det := t.Determinant()
	inv := SymTensor{
		Diag: Vec{
			t.Diag[1]*t.Diag[2] - t.Off[2]*t.Off[2],
			t.Diag[0]*t.Diag[2] - t.Off[1]*t.Off[1],
			t.Diag[0]*t.Diag[1] - t.Off[0]*t.Off[0],
		},
		Off: Vec{
			t.Off[1]*t.Off[2] - t.Off[0]*t.Diag[2],
			t.Off[0]*t.Off[2] - t.Off[1]*t.Diag[1],
			t.Off[0]*t.Off[1] - t.Diag[0]*t.Off[2],
		},
	}
	return inv.Scale(1 / det)
}

// SymmetricOuter computes the symmetrised outer product of two vectors,
// 0.5*(a b^T + b a^T).
func SymmetricOuter(a, b Vec) SymTensor {
	return SymTensor{
		Diag: Vec{a[0] * b[0], a[1] * b[1], a[2] * b[2]},
		Off: Vec{
			0.5 * (a[0]*b[1] + a[1]*b[0]),
			0.5 * (a[0]*b[2] + a[2]*b[0]),
			0.5 * (a[1]*b[2] + a[2]*b[1]),
		},
	}
}

func (t SymTensor) String() string {
	return fmt.Sprintf("%v %v %v %v %v %v",
		t.Diag[0], t.Diag[1], t.Diag[2], t.Off[0], t.Off[1], t.Off[2])
}

// TracelessTensor is a symmetric tensor with zero trace; the zz component is
// implied by the xx and yy components.
type TracelessTensor struct {
	XX, YY float64
	XY, XZ, YZ float64
}

// Traceless projects a symmetric tensor onto its traceless part.
func Traceless(t SymTensor) TracelessTensor {
	third := t.Trace() / 3
	return TracelessTensor{
		XX: t.Diag[0] - third,
		YY: t.Diag[1] - third,
		XY: t.Off[0],
		XZ: t.Off[1],
		YZ: t.Off[2],
	}
}

// Full expands the traceless tensor into an ordinary symmetric tensor.
func (t TracelessTensor) Full() SymTensor {
	return SymTensor{
		Diag: Vec{t.XX, t.YY, -t.XX - t.YY},
		Off:  Vec{t.XY, t.XZ, t.YZ},
	}
}

func (t TracelessTensor) Add(o TracelessTensor) TracelessTensor {
	return TracelessTensor{t.XX + o.XX, t.YY + o.YY, t.XY + o.XY, t.XZ + o.XZ, t.YZ + o.YZ}
}

func (t TracelessTensor) Scale(s float64) TracelessTensor {
	return TracelessTensor{t.XX * s, t.YY * s, t.XY * s, t.XZ * s, t.YZ * s}
}

func (t TracelessTensor) String() string {
	return fmt.Sprintf("%v %v %v %v %v", t.XX, t.YY, t.XY, t.XZ, t.YZ)
}

// Eigensystem diagonalises a symmetric tensor with the cyclic Jacobi method.
// It returns the eigenvalues and the matching orthonormal eigenvectors
// (the principal axes).
func (t SymTensor) Eigensystem() (values Vec, vectors [3]Vec) {
	a := [3][3]float64{
		{t.Diag[0], t.Off[0], t.Off[1]},
		{t.Off[0], t.Diag[1], t.Off[2]},
		{t.Off[1], t.Off[2], t.Diag[2]},
	}
	v := [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

	for sweep := 0; sweep < 50; sweep++ {
		off := a[0][1]*a[0][1] + a[0][2]*a[0][2] + a[1][2]*a[1][2]
		if off < 1e-24 {
			break
		}
		for p := 0; p < 2; p++ {
			for q := p + 1; q < 3; q++ {
				if math.Abs(a[p][q]) < 1e-30 {
					continue
				}
				theta := (a[q][q] - a[p][p]) / (2 * a[p][q])
				sign := 1.0
				if theta < 0 {
					sign = -1
				}
				tan := sign / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				c := 1 / math.Sqrt(tan*tan+1)
				s := tan * c

				for k := 0; k < 3; k++ {
					akp, akq := a[k][p], a[k][q]
					a[k][p] = c*akp - s*akq
					a[k][q] = s*akp + c*akq
				}
				for k := 0; k < 3; k++ {
					apk, aqk := a[p][k], a[q][k]
					a[p][k] = c*apk - s*aqk
					a[q][k] = s*apk + c*aqk
				}
				for k := 0; k < 3; k++ {
					vkp, vkq := v[k][p], v[k][q]
					v[k][p] = c*vkp - s*vkq
					v[k][q] = s*vkp + c*vkq
				}
			}
		}
	}

	values = Vec{a[0][0], a[1][1], a[2][2]}
	for i := 0; i < 3; i++ {
		vectors[i] = Vec{v[0][i], v[1][i], v[2][i]}
	}
	return values, vectors
}
