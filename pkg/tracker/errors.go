package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by operations that need an initialized
	// engine handle, including every call after Deinitialize or Close.
	ErrNotInitialized = errors.New("tracker: not initialized")

	// ErrInvalidFPS is returned for a non-positive tracking rate.
	ErrInvalidFPS = errors.New("tracker: fps must be positive")

	// ErrFrameSize is returned when a frame buffer is too small for its
	// dimensions. Frames are packed 8-bit RGB.
	ErrFrameSize = errors.New("tracker: frame buffer smaller than width*height*3")
)

// AuthErrorOffset is added to the engine's authorization result to form
// AuthError.Code.
const AuthErrorOffset = 2

// AuthError reports a license the engine did not authorize.
type AuthError struct {
	// Code is the engine result plus AuthErrorOffset.
	Code int
	// EngineCode is the raw authorization result.
	EngineCode int
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("tracker: authorization failed (code %d)", e.Code)
}
