// Package app wires the tracker, calibration manager, camera, dashboard and
// relay into one process.
package app

import (
	"github.com/teslashibe/go-eyedid/internal/config"
	"github.com/teslashibe/go-eyedid/pkg/camera"
	"github.com/teslashibe/go-eyedid/pkg/display"
	"github.com/teslashibe/go-eyedid/pkg/engine"
	"github.com/teslashibe/go-eyedid/pkg/manager"
)

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func validate(cfg config.Config) error {
	if cfg.Engine.LicenseKey == "" {
		return &ConfigError{Field: "engine.license_key", Message: "EYEDID_LICENSE_KEY environment variable or engine.license_key is required"}
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return &ConfigError{Field: "config", Message: "invalid configuration: " + errs[0]}
	}
	return nil
}

func engineOptions(c config.EngineConfig) engine.Options {
	opts := engine.DefaultOptions()
	opts.UseBlink = engine.Bool(c.UseBlink)
	opts.UseUserStatus = engine.Bool(c.UseUserStatus)
	opts.UseGazeFilter = engine.Bool(c.UseGazeFilter)
	opts.MaxConcurrency = int32(c.MaxConcurrency)
	if c.CameraFOV > 0 {
		opts.CameraFOV = float32(c.CameraFOV)
	}
	return opts
}

func managerConfig(cfg config.Config) manager.Config {
	m := manager.DefaultConfig()
	m.Window = cfg.Display.Window
	m.Padding = cfg.Calibration.Padding
	m.StartDelay = cfg.Calibration.StartDelay.Duration
	m.Reuse = cfg.Calibration.Reuse
	m.FaceDistanceCM = cfg.Engine.FaceDistanceCM
	m.TrackingFPS = cfg.Engine.FPS
	return m
}

func displayConfig(c config.DisplayConfig) display.Config {
	return display.Config{
		Name:         c.Name,
		WidthPx:      c.WidthPx,
		HeightPx:     c.HeightPx,
		WidthMM:      c.WidthMM,
		HeightMM:     c.HeightMM,
		Window:       c.Window,
		WindowX:      c.WindowX,
		WindowY:      c.WindowY,
		WindowWidth:  c.WindowWidth,
		WindowHeight: c.WindowHeight,
	}
}

func cameraConfig(c config.CameraConfig) camera.Config {
	return camera.Config{
		DeviceID:  c.DeviceID,
		Width:     c.Width,
		Height:    c.Height,
		Framerate: c.Framerate,
		Backend:   c.Backend,
		Mirror:    c.Mirror,
	}
}
