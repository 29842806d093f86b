package manager

import "time"

// Config holds the sample application parameters.
type Config struct {
	// Window is the name of the application window gaze is reported in.
	Window string

	// Calibration
	Padding    float64       // Window inset for calibration targets, pixels
	StartDelay time.Duration // Settle time before the engine starts
	Reuse      bool          // Let the engine reuse the previous calibration

	// Smoothing
	FilterSize int // Moving average length in frames

	// Stream
	FaceDistanceCM int
	TrackingFPS    int

	// Stats
	StatsWindow    int           // Valid gaze points kept for jitter
	StatusInterval time.Duration // Status publish period, 0 disables
}

// DefaultConfig returns the parameters of the desktop sample.
func DefaultConfig() Config {
	return Config{
		Window:         "eyedid",
		Padding:        30,
		StartDelay:     3 * time.Second,
		FilterSize:     3, // Short filter keeps the cursor responsive
		FaceDistanceCM: 50,
		TrackingFPS:    30,
		StatsWindow:    90,
		StatusInterval: time.Second,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c Config) Validate() []string {
	var errs []string

	if c.Padding < 0 {
		errs = append(errs, "Padding must not be negative")
	}
	if c.StartDelay < 0 {
		errs = append(errs, "StartDelay must not be negative")
	}
	if c.FilterSize < 1 {
		errs = append(errs, "FilterSize must be at least 1")
	}
	if c.FaceDistanceCM < 10 || c.FaceDistanceCM > 200 {
		errs = append(errs, "FaceDistanceCM must be between 10 and 200")
	}
	if c.TrackingFPS < 1 || c.TrackingFPS > 120 {
		errs = append(errs, "TrackingFPS must be between 1 and 120")
	}
	if c.StatsWindow < 2 {
		errs = append(errs, "StatsWindow must be at least 2")
	}
	if c.StatusInterval < 0 {
		errs = append(errs, "StatusInterval must not be negative")
	}

	return errs
}
