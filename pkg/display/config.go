package display

import "github.com/teslashibe/go-eyedid/pkg/coord"

// Config is the display section of the application config.
type Config struct {
	Name     string
	WidthPx  int
	HeightPx int
	WidthMM  float64
	HeightMM float64

	// Window geometry in display pixels. Zero size means full screen.
	Window       string
	WindowX      float64
	WindowY      float64
	WindowWidth  float64
	WindowHeight float64
}

// Info returns the display described by c.
func (c Config) Info() Info {
	return Info{
		Name:     c.Name,
		ID:       c.Name,
		WidthPx:  c.WidthPx,
		HeightPx: c.HeightPx,
		WidthMM:  c.WidthMM,
		HeightMM: c.HeightMM,
	}
}

// WindowRect returns the configured window, or the whole display when no
// size is set.
func (c Config) WindowRect() coord.Rect {
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return c.Info().Bounds()
	}
	return coord.R(c.WindowX, c.WindowY, c.WindowX+c.WindowWidth, c.WindowY+c.WindowHeight)
}

// FromConfig builds a provider and window locator from c.
func FromConfig(c Config) (Static, *StaticWindow) {
	w := NewStaticWindow()
	w.Set(c.Window, c.WindowRect())
	return Static{c.Info()}, w
}
