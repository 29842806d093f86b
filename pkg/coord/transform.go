package coord

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats/scalar"
)

var (
	// ErrNonInvertible is returned when reverting through a singular matrix.
	ErrNonInvertible = errors.New("coord: transform is not invertible")

	// ErrInvalidRegion is returned for degenerate display geometry.
	ErrInvalidRegion = errors.New("coord: invalid region")
)

// Transform maps p to Matrix·p + Translate.
//
// The zero value maps every point to the origin; use Identity for a no-op.
type Transform struct {
	Matrix    Matrix
	Translate Point
}

// New returns a transform with the given matrix and translation.
func New(m Matrix, t Point) Transform {
	return Transform{Matrix: m, Translate: t}
}

// Identity returns a transform whose Convert and Revert return their input.
func Identity() Transform {
	return Transform{Matrix: IdentityMatrix()}
}

// NoOp is an alias of Identity for callers that want raw camera coordinates.
func NoOp() Transform {
	return Identity()
}

// Convert returns Matrix·p + Translate.
func (t Transform) Convert(p Point) Point {
	return t.Matrix.Apply(p).Add(t.Translate)
}

// Revert returns Matrix⁻¹·(p - Translate).
func (t Transform) Revert(p Point) (Point, error) {
	inv, err := t.Matrix.Inverse()
	if err != nil {
		return Point{}, err
	}
	return inv.Apply(p.Sub(t.Translate)), nil
}

// Invertible reports whether Revert is defined.
func (t Transform) Invertible() bool {
	return t.Matrix.Invertible()
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() (Transform, error) {
	inv, err := t.Matrix.Inverse()
	if err != nil {
		return Transform{}, err
	}
	return Transform{
		Matrix:    inv,
		Translate: inv.Apply(t.Translate).Scale(-1),
	}, nil
}

// Then returns the transform that applies t first and then o.
func (t Transform) Then(o Transform) Transform {
	return Transform{
		Matrix:    o.Matrix.Mul(t.Matrix),
		Translate: o.Convert(t.Translate),
	}
}

// ConvertRect converts the top-left and bottom-right corners independently.
// The result is not normalized: a y-flip yields Top > Bottom.
func (t Transform) ConvertRect(r Rect) Rect {
	tl := t.Convert(r.TopLeft())
	br := t.Convert(r.BottomRight())
	return Rect{Left: tl.X, Top: tl.Y, Right: br.X, Bottom: br.Y}
}

// RevertRect reverts the top-left and bottom-right corners independently.
func (t Transform) RevertRect(r Rect) (Rect, error) {
	tl, err := t.Revert(r.TopLeft())
	if err != nil {
		return Rect{}, err
	}
	br, err := t.Revert(r.BottomRight())
	if err != nil {
		return Rect{}, err
	}
	return Rect{Left: tl.X, Top: tl.Y, Right: br.X, Bottom: br.Y}, nil
}

// ApproxEqual compares every coefficient within an absolute tolerance.
func (t Transform) ApproxEqual(o Transform, tol float64) bool {
	a := [6]float64{t.Matrix.A, t.Matrix.B, t.Matrix.C, t.Matrix.D, t.Translate.X, t.Translate.Y}
	b := [6]float64{o.Matrix.A, o.Matrix.B, o.Matrix.C, o.Matrix.D, o.Translate.X, o.Translate.Y}
	for i := range a {
		if !scalar.EqualWithinAbs(a[i], b[i], tol) {
			return false
		}
	}
	return true
}

func (t Transform) String() string {
	return fmt.Sprintf("[%g %g; %g %g] + %s", t.Matrix.A, t.Matrix.B, t.Matrix.C, t.Matrix.D, t.Translate)
}
