// Package camera captures frames for the gaze tracker. Settings can be
// changed at runtime through Manager, the same way the dashboard tunes them.
package camera

import "gocv.io/x/gocv"

// Config holds capture configuration.
type Config struct {
	DeviceID  int `json:"device_id"` // Video device index
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Requested capture FPS

	// Backend selects the capture API: "any", "v4l2", "avfoundation".
	Backend string `json:"backend"`

	// Mirror flips frames horizontally before they reach the tracker.
	// The engine expects the raw, unmirrored camera image.
	Mirror bool `json:"mirror"`
}

// Capture limits accepted by Validate.
const (
	MinWidth     = 160
	MinHeight    = 120
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns 640x480 at 30 FPS, the resolution the engine is
// tuned for.
func DefaultConfig() Config {
	return Config{
		DeviceID:  0,
		Width:     640,
		Height:    480,
		Framerate: 30,
		Backend:   "any",
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.DeviceID < 0 {
		errors = append(errors, "device_id must not be negative")
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if _, ok := backends[c.Backend]; c.Backend != "" && !ok {
		errors = append(errors, "backend must be any, v4l2, or avfoundation")
	}

	return errors
}

var backends = map[string]gocv.VideoCaptureAPI{
	"any":          gocv.VideoCaptureAny,
	"v4l2":         gocv.VideoCaptureV4L2,
	"avfoundation": gocv.VideoCaptureAVFoundation,
}

// Capabilities describes what the capture layer supports.
func Capabilities() map[string]interface{} {
	return map[string]interface{}{
		"min_width":     MinWidth,
		"min_height":    MinHeight,
		"max_width":     MaxWidth,
		"max_height":    MaxHeight,
		"max_framerate": MaxFramerate,
		"backends":      []string{"any", "v4l2", "avfoundation"},
		"presets":       PresetNames(),
	}
}
