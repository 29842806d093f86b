package coord

import "math"

// singularEpsilon is the determinant magnitude below which a matrix is
// treated as non-invertible.
const singularEpsilon = 1e-12

// Matrix is a 2x2 matrix in row-major order:
//
//	| a  b |
//	| c  d |
type Matrix struct {
	A, B float64
	C, D float64
}

// IdentityMatrix returns the 2x2 identity.
func IdentityMatrix() Matrix {
	return Matrix{A: 1, D: 1}
}

// Diag returns a diagonal matrix.
func Diag(x, y float64) Matrix {
	return Matrix{A: x, D: y}
}

// FlipY mirrors the vertical axis.
func FlipY() Matrix {
	return Diag(1, -1)
}

// Mul returns m * o.
func (m Matrix) Mul(o Matrix) Matrix {
	return Matrix{
		A: m.A*o.A + m.B*o.C,
		B: m.A*o.B + m.B*o.D,
		C: m.C*o.A + m.D*o.C,
		D: m.C*o.B + m.D*o.D,
	}
}

// Apply returns m * p.
func (m Matrix) Apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.B*p.Y,
		Y: m.C*p.X + m.D*p.Y,
	}
}

// Det returns the determinant.
func (m Matrix) Det() float64 {
	return m.A*m.D - m.B*m.C
}

// Invertible reports whether the matrix has an inverse.
func (m Matrix) Invertible() bool {
	det := m.Det()
	return !math.IsNaN(det) && !math.IsInf(det, 0) && math.Abs(det) >= singularEpsilon
}

// Inverse returns m⁻¹, or ErrNonInvertible.
func (m Matrix) Inverse() (Matrix, error) {
	if !m.Invertible() {
		return Matrix{}, ErrNonInvertible
	}
	inv := 1.0 / m.Det()
	return Matrix{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
	}, nil
}

// IsIdentity returns true if the matrix is the identity matrix.
func (m Matrix) IsIdentity() bool {
	return m.A == 1 && m.B == 0 && m.C == 0 && m.D == 1
}
