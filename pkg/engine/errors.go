package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedPlatform is returned by Load where dynamic loading is unavailable.
	ErrUnsupportedPlatform = errors.New("engine: dynamic loading not supported on this platform")

	// ErrLibraryLoad is returned when the shared library cannot be opened.
	ErrLibraryLoad = errors.New("engine: failed to load library")

	// ErrCreateFailed is returned when the engine returns a null tracker.
	ErrCreateFailed = errors.New("engine: tracker create returned null")
)

// SymbolError lists every entry point missing from a library.
type SymbolError struct {
	Path    string
	Missing []string
}

// Error implements the error interface.
func (e *SymbolError) Error() string {
	return fmt.Sprintf("engine: %s is missing %d symbol(s): %s",
		e.Path, len(e.Missing), strings.Join(e.Missing, ", "))
}
