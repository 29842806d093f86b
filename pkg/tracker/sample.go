package tracker

import (
	"github.com/teslashibe/go-eyedid/pkg/coord"
	"github.com/teslashibe/go-eyedid/pkg/engine"
)

// Sample is one processed frame. Gaze positions are in the converter's
// destination space, display pixels by default.
type Sample struct {
	Timestamp  uint64
	Gaze       Gaze
	Face       Face
	Blink      Blink
	UserStatus UserStatus
}

// Gaze is the gaze estimate of one frame. A component equal to
// engine.InvalidCoordinate was not computed by the engine.
type Gaze struct {
	X, Y                 float32
	FixationX, FixationY float32
	TrackingState        engine.TrackingState
	MovementState        engine.MovementState
}

// Valid reports whether the engine tracked gaze on this frame.
func (g Gaze) Valid() bool { return g.TrackingState == engine.TrackingSuccess }

// HasPosition reports whether both gaze components are available.
func (g Gaze) HasPosition() bool {
	return g.X != engine.InvalidCoordinate && g.Y != engine.InvalidCoordinate
}

// HasFixation reports whether both fixation components are available.
func (g Gaze) HasFixation() bool {
	return g.FixationX != engine.InvalidCoordinate && g.FixationY != engine.InvalidCoordinate
}

// Position returns the gaze point.
func (g Gaze) Position() coord.Point {
	return coord.Pt(float64(g.X), float64(g.Y))
}

// Fixation returns the fixation point.
func (g Gaze) Fixation() coord.Point {
	return coord.Pt(float64(g.FixationX), float64(g.FixationY))
}

// Face is the detected face pose. Box coordinates are passed through from
// the engine.
type Face struct {
	Score                    float32
	Left, Top, Right, Bottom float32
	Yaw, Pitch, Roll         float32
	Center                   [3]float32
}

// Blink is the per-eye blink state. Openness is in [0, 1].
type Blink struct {
	Blink, Left, Right          bool
	LeftOpenness, RightOpenness float32
}

// UserStatus carries drowsiness and attention.
type UserStatus struct {
	Drowsy              bool
	DrowsinessIntensity float32
	AttentionScore      float32
}

func newSample(timestamp uint64, d *engine.Data) Sample {
	return Sample{
		Timestamp: timestamp,
		Gaze: Gaze{
			X:             d.Gaze.X,
			Y:             d.Gaze.Y,
			FixationX:     d.Gaze.FixationX,
			FixationY:     d.Gaze.FixationY,
			TrackingState: d.Gaze.TrackingState,
			MovementState: d.Gaze.MovementState,
		},
		Face: Face{
			Score:  d.Face.Score,
			Left:   d.Face.Left,
			Top:    d.Face.Top,
			Right:  d.Face.Right,
			Bottom: d.Face.Bottom,
			Yaw:    d.Face.Yaw,
			Pitch:  d.Face.Pitch,
			Roll:   d.Face.Roll,
			Center: [3]float32{d.Face.CenterX, d.Face.CenterY, d.Face.CenterZ},
		},
		Blink: Blink{
			Blink:         d.Blink.IsBlink.Go(),
			Left:          d.Blink.IsBlinkLeft.Go(),
			Right:         d.Blink.IsBlinkRight.Go(),
			LeftOpenness:  d.Blink.LeftOpenness,
			RightOpenness: d.Blink.RightOpenness,
		},
		UserStatus: UserStatus{
			Drowsy:              d.UserStatus.IsDrowsy.Go(),
			DrowsinessIntensity: d.UserStatus.DrowsinessIntensity,
			AttentionScore:      d.UserStatus.AttentionScore,
		},
	}
}
