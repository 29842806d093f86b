// Package calibration tracks the calibration lifecycle and guarantees that at
// most one session talks to the engine at a time.
//
//	Idle -> PendingStart -> Collecting <-> Collecting -> Finished | Canceled -> Idle
//
// A finished or canceled session is kept as the last result; the machine is
// immediately Idle again and accepts a new start.
package calibration

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-eyedid/pkg/coord"
	"github.com/teslashibe/go-eyedid/pkg/engine"
)

// State is the calibration lifecycle state.
type State int32

const (
	Idle State = iota
	PendingStart
	Collecting
	Finished
	Canceled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingStart:
		return "pending_start"
	case Collecting:
		return "collecting"
	case Finished:
		return "finished"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Active reports whether the state belongs to a running session.
func (s State) Active() bool {
	return s == PendingStart || s == Collecting
}

// Request describes a calibration to run. Region is in display pixels.
type Request struct {
	Points        engine.CalibrationPoints
	Accuracy      engine.CalibrationAccuracy
	Region        coord.Rect
	ReusePrevious bool
}

// Validate checks the point count and target region.
func (r Request) Validate() error {
	if !r.Points.Valid() {
		return fmt.Errorf("%w: got %d", ErrInvalidPoints, r.Points)
	}
	if r.Region.Empty() {
		return fmt.Errorf("%w: calibration region %v", coord.ErrInvalidRegion, r.Region)
	}
	return nil
}

// Session is a snapshot of one calibration run.
type Session struct {
	ID       string
	Request  Request
	State    State
	Progress float32
	// Point is the current target in display pixels.
	Point coord.Point
	// Data is the engine blob delivered on finish or cancel. It may be empty.
	Data      []float32
	StartedAt time.Time
	EndedAt   time.Time
}

func (s *Session) snapshot() Session {
	out := *s
	if s.Data != nil {
		out.Data = append([]float32{}, s.Data...)
	}
	return out
}
