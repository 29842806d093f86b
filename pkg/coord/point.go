// Package coord converts between the engine's camera coordinate space
// (millimeters, camera at the origin, +y up) and display coordinates
// (pixels, top-left origin, +y down) using 2D affine transforms.
//
// Camera coordinate
//
//	          +y
//	           ^
//	           |
//	       (camera) -------> +x
//	     (0, 0)
//
// Display coordinate (pixels)
//
//	(0, 0) ______________________  -> +x
//	       |      Display       |
//	       |____________________|
//	       v
//	      +y
package coord

import "fmt"

// Point is a 2D coordinate. Its unit (camera mm or display px) is carried by
// context, not by the type.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// Rect is an axis-aligned rectangle given by its left, top, right and bottom edges.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// R is shorthand for Rect{left, top, right, bottom}.
func R(left, top, right, bottom float64) Rect {
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

// Width returns Right - Left.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns Bottom - Top.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// TopLeft returns the (Left, Top) corner.
func (r Rect) TopLeft() Point { return Point{X: r.Left, Y: r.Top} }

// BottomRight returns the (Right, Bottom) corner.
func (r Rect) BottomRight() Point { return Point{X: r.Right, Y: r.Bottom} }

// Inset shrinks the rectangle by padding on every side.
func (r Rect) Inset(padding float64) Rect {
	return Rect{
		Left:   r.Left + padding,
		Top:    r.Top + padding,
		Right:  r.Right - padding,
		Bottom: r.Bottom - padding,
	}
}

// Array returns the rectangle as [left, top, right, bottom].
func (r Rect) Array() [4]float64 {
	return [4]float64{r.Left, r.Top, r.Right, r.Bottom}
}

// Scale returns p multiplied by s.
func (p Point) Scale(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}
