package calibration

import "errors"

var (
	// ErrAlreadyInProgress is returned when a start is requested while a
	// session is active. The active session is left untouched.
	ErrAlreadyInProgress = errors.New("calibration: already in progress")

	// ErrCanceled is reported by Pending.Wait when a delayed start was
	// canceled before the engine was asked to start.
	ErrCanceled = errors.New("calibration: start canceled")

	// ErrInvalidPoints is returned for point counts the engine does not support.
	ErrInvalidPoints = errors.New("calibration: point count must be 1 or 5")
)
