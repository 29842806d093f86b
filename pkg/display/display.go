// Package display describes monitors and application windows. Enumerating
// real displays and querying window geometry is platform specific; this
// package defines the interfaces and config-backed implementations.
package display

import (
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-eyedid/pkg/coord"
)

var (
	// ErrNoDisplay is returned when a provider reports no displays.
	ErrNoDisplay = errors.New("display: no display found")

	// ErrUnknownWindow is returned for a window name the locator does not know.
	ErrUnknownWindow = errors.New("display: unknown window")
)

// Info describes one display.
type Info struct {
	Name     string
	ID       string
	WidthPx  int
	HeightPx int
	WidthMM  float64
	HeightMM float64
}

// Pixels returns the pixel size as a point.
func (i Info) Pixels() coord.Point {
	return coord.Pt(float64(i.WidthPx), float64(i.HeightPx))
}

// Millimeters returns the physical size as a point.
func (i Info) Millimeters() coord.Point {
	return coord.Pt(i.WidthMM, i.HeightMM)
}

// Bounds returns the full display rectangle in pixels.
func (i Info) Bounds() coord.Rect {
	return coord.R(0, 0, float64(i.WidthPx), float64(i.HeightPx))
}

// CameraToDisplay returns the transform for a camera centered on the top
// edge of this display.
func (i Info) CameraToDisplay() (coord.Transform, error) {
	t, err := coord.DefaultCameraToDisplay(i.Pixels(), i.Millimeters())
	if err != nil {
		return coord.Transform{}, fmt.Errorf("display %q: %w", i.Name, err)
	}
	return t, nil
}

// Provider enumerates displays.
type Provider interface {
	Displays() ([]Info, error)
}

// WindowLocator reports a window's rectangle in display pixels.
type WindowLocator interface {
	WindowRect(name string) (coord.Rect, error)
}

// Primary returns the first display of p.
func Primary(p Provider) (Info, error) {
	displays, err := p.Displays()
	if err != nil {
		return Info{}, err
	}
	if len(displays) == 0 {
		return Info{}, ErrNoDisplay
	}
	return displays[0], nil
}

// PaddedWindowRect returns the window rectangle shrunk by padding on every side.
func PaddedWindowRect(l WindowLocator, name string, padding float64) (coord.Rect, error) {
	r, err := l.WindowRect(name)
	if err != nil {
		return coord.Rect{}, err
	}
	padded := r.Inset(padding)
	if padded.Empty() {
		return coord.Rect{}, fmt.Errorf("%w: window %q too small for padding %.0f", coord.ErrInvalidRegion, name, padding)
	}
	return padded, nil
}

// Static is a Provider with a fixed display list.
type Static []Info

// Displays implements Provider.
func (s Static) Displays() ([]Info, error) {
	return append([]Info(nil), s...), nil
}

// StaticWindow is a WindowLocator with known window rectangles.
type StaticWindow struct {
	mu      sync.RWMutex
	windows map[string]coord.Rect
}

// NewStaticWindow creates an empty locator.
func NewStaticWindow() *StaticWindow {
	return &StaticWindow{windows: make(map[string]coord.Rect)}
}

// Set records or moves a window.
func (s *StaticWindow) Set(name string, r coord.Rect) {
	s.mu.Lock()
	s.windows[name] = r
	s.mu.Unlock()
}

// WindowRect implements WindowLocator.
func (s *StaticWindow) WindowRect(name string) (coord.Rect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.windows[name]
	if !ok {
		return coord.Rect{}, fmt.Errorf("%w: %q", ErrUnknownWindow, name)
	}
	return r, nil
}
