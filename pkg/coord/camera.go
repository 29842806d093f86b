package coord

import (
	"fmt"
	"math"
)

// CameraToDisplay builds a [camera mm] -> [display px] transform.
//
// displayTL is the position of the display's top-left corner relative to the
// camera in millimeters. If the camera sits at the top-center of the display
// this is (-displayMM.X/2, 0); DefaultCameraToDisplay covers that case.
// displayPixels and displayMM are the display size in pixels and millimeters.
//
// The transform scales mm to px and then mirrors the vertical axis, because
// +y points up in camera space and down in display space.
func CameraToDisplay(displayTL, displayPixels, displayMM Point) (Transform, error) {
	for _, v := range []float64{displayPixels.X, displayPixels.Y, displayMM.X, displayMM.Y} {
		if !(v > 0) || math.IsInf(v, 0) {
			return Transform{}, fmt.Errorf("%w: display size %s px, %s mm", ErrInvalidRegion, displayPixels, displayMM)
		}
	}

	mmToPixel := Diag(displayPixels.X/displayMM.X, displayPixels.Y/displayMM.Y)
	m := FlipY().Mul(mmToPixel)
	return Transform{
		Matrix:    m,
		Translate: m.Apply(displayTL.Scale(-1)),
	}, nil
}

// DefaultCameraToDisplay assumes the camera is located at the top-center of the display.
func DefaultCameraToDisplay(displayPixels, displayMM Point) (Transform, error) {
	return CameraToDisplay(Point{X: -displayMM.X / 2, Y: 0}, displayPixels, displayMM)
}
