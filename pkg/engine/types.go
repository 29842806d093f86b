package engine

import "math"

// The types in this file mirror c_def.h field for field. They are passed to
// and from the engine by pointer, so field order and widths must not change.

// Boolean is the engine's 32-bit boolean.
type Boolean int32

const (
	False Boolean = 0
	True  Boolean = 1
)

// Bool converts a Go bool.
func Bool(v bool) Boolean {
	if v {
		return True
	}
	return False
}

// Go reports whether b is True.
func (b Boolean) Go() bool { return b == True }

// TrackingState is the per-frame gaze tracking outcome.
type TrackingState int32

const (
	TrackingSuccess TrackingState = iota
	TrackingFaceMissing
	TrackingGazeNotFound
)

func (s TrackingState) String() string {
	switch s {
	case TrackingSuccess:
		return "success"
	case TrackingFaceMissing:
		return "face_missing"
	case TrackingGazeNotFound:
		return "gaze_not_found"
	default:
		return "unknown"
	}
}

// MovementState classifies eye movement.
type MovementState int32

const (
	MovementFixation MovementState = 0
	MovementSaccade  MovementState = 2
	MovementUnknown  MovementState = 3
)

func (s MovementState) String() string {
	switch s {
	case MovementFixation:
		return "fixation"
	case MovementSaccade:
		return "saccade"
	default:
		return "unknown"
	}
}

// CalibrationPoints is the number of calibration targets.
type CalibrationPoints int32

const (
	CalibrationPointOne  CalibrationPoints = 1
	CalibrationPointFive CalibrationPoints = 5
)

// Valid reports whether the engine accepts this point count.
func (p CalibrationPoints) Valid() bool {
	return p == CalibrationPointOne || p == CalibrationPointFive
}

// CalibrationAccuracy selects the calibration criteria.
type CalibrationAccuracy int32

const (
	CalibrationAccuracyDefault CalibrationAccuracy = iota
	CalibrationAccuracyLow
	CalibrationAccuracyHigh
)

// ParseAccuracy maps "default", "low" and "high". Unknown strings map to default.
func ParseAccuracy(s string) CalibrationAccuracy {
	switch s {
	case "low":
		return CalibrationAccuracyLow
	case "high":
		return CalibrationAccuracyHigh
	default:
		return CalibrationAccuracyDefault
	}
}

func (a CalibrationAccuracy) String() string {
	switch a {
	case CalibrationAccuracyLow:
		return "low"
	case CalibrationAccuracyHigh:
		return "high"
	default:
		return "default"
	}
}

// InvalidCoordinate marks a gaze or fixation component the engine did not compute.
const InvalidCoordinate float32 = -1001

// Options configures a tracker at Init.
type Options struct {
	UseBlink       Boolean
	UseUserStatus  Boolean
	UseGazeFilter  Boolean
	StreamMode     Boolean
	CameraFOV      float32
	MaxConcurrency int32
}

// DefaultOptions returns the engine's documented defaults.
func DefaultOptions() Options {
	return Options{
		UseBlink:       False,
		UseUserStatus:  False,
		UseGazeFilter:  True,
		StreamMode:     True,
		CameraFOV:      float32(math.Pi) / 4,
		MaxConcurrency: 0,
	}
}

// GazeData is the raw gaze output for one frame.
type GazeData struct {
	X             float32
	Y             float32
	FixationX     float32
	FixationY     float32
	TrackingState TrackingState
	MovementState MovementState
}

// FaceData is the raw face output for one frame.
type FaceData struct {
	Score   float32
	Left    float32
	Top     float32
	Right   float32
	Bottom  float32
	Yaw     float32
	Pitch   float32
	Roll    float32
	CenterX float32
	CenterY float32
	CenterZ float32
}

// BlinkData is the raw blink output for one frame.
type BlinkData struct {
	IsBlink       Boolean
	IsBlinkLeft   Boolean
	IsBlinkRight  Boolean
	LeftOpenness  float32
	RightOpenness float32
}

// UserStatusData is the raw user status output for one frame.
type UserStatusData struct {
	IsDrowsy            Boolean
	DrowsinessIntensity float32
	AttentionScore      float32
}

// Data is the combined metrics payload of one processed frame.
type Data struct {
	Gaze       GazeData
	Face       FaceData
	Blink      BlinkData
	UserStatus UserStatusData
}
