package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/teslashibe/go-eyedid/internal/log"
)

// Duration is a time.Duration that decodes from TOML strings like "3s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the file configuration for the eyedid commands.
type Config struct {
	Engine      EngineConfig      `toml:"engine"`
	Display     DisplayConfig     `toml:"display"`
	Calibration CalibrationConfig `toml:"calibration"`
	Camera      CameraConfig      `toml:"camera"`
	Dashboard   DashboardConfig   `toml:"dashboard"`
	Relay       RelayConfig       `toml:"relay"`
	Profiles    ProfilesConfig    `toml:"profiles"`
}

// EngineConfig configures the engine library and tracker options.
type EngineConfig struct {
	Library        string  `toml:"library"`
	LicenseKey     string  `toml:"license_key"`
	FPS            int     `toml:"fps"`              // Maximum tracking FPS
	FaceDistanceCM int     `toml:"face_distance_cm"` // Face to camera distance
	CameraFOV      float64 `toml:"camera_fov"`       // Horizontal FOV in radians, 0 keeps the engine default
	UseBlink       bool    `toml:"use_blink"`
	UseUserStatus  bool    `toml:"use_user_status"`
	UseGazeFilter  bool    `toml:"use_gaze_filter"`
	MaxConcurrency int     `toml:"max_concurrency"`
}

// DisplayConfig describes the display and the application window on it.
type DisplayConfig struct {
	Name     string  `toml:"name"`
	WidthPx  int     `toml:"width_px"`
	HeightPx int     `toml:"height_px"`
	WidthMM  float64 `toml:"width_mm"`
	HeightMM float64 `toml:"height_mm"`

	// Window geometry in display pixels. Zero size means full screen.
	Window       string  `toml:"window"`
	WindowX      float64 `toml:"window_x"`
	WindowY      float64 `toml:"window_y"`
	WindowWidth  float64 `toml:"window_width"`
	WindowHeight float64 `toml:"window_height"`
}

// CalibrationConfig configures the calibration flow.
type CalibrationConfig struct {
	Points     int      `toml:"points"`   // 1 or 5
	Accuracy   string   `toml:"accuracy"` // default, low, high
	StartDelay Duration `toml:"start_delay"`
	Padding    float64  `toml:"padding"` // Window padding in pixels
	Reuse      bool     `toml:"reuse_previous"`
}

// CameraConfig configures the capture device.
type CameraConfig struct {
	Enabled   bool   `toml:"enabled"`
	DeviceID  int    `toml:"device_id"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	Framerate int    `toml:"framerate"`
	Backend   string `toml:"backend"` // any, v4l2, avfoundation
	Mirror    bool   `toml:"mirror"`
}

// DashboardConfig configures the web dashboard.
type DashboardConfig struct {
	Enabled      bool   `toml:"enabled"`
	Port         string `toml:"port"`
	PreviewEvery int    `toml:"preview_every"` // Frames between camera previews, 0 disables
}

// RelayConfig configures the remote event relay. Empty URL disables it.
type RelayConfig struct {
	URL       string `toml:"url"`
	QueueSize int    `toml:"queue_size"`
}

// ProfilesConfig configures the calibration profile store.
type ProfilesConfig struct {
	Path        string `toml:"path"`
	ApplyLatest bool   `toml:"apply_latest"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Library:        DefaultLibraryPath,
			FPS:            30,
			FaceDistanceCM: 60,
			UseGazeFilter:  true,
		},
		Display: DisplayConfig{
			Name:     "primary",
			WidthPx:  1920,
			HeightPx: 1080,
			WidthMM:  527,
			HeightMM: 296,
			Window:   "eyedid",
		},
		Calibration: CalibrationConfig{
			Points:     5,
			Accuracy:   "default",
			StartDelay: Duration{3 * time.Second},
			Padding:    30,
		},
		Camera: CameraConfig{
			Enabled:   true,
			DeviceID:  0,
			Width:     640,
			Height:    480,
			Framerate: 30,
			Backend:   "any",
		},
		Dashboard: DashboardConfig{
			Enabled:      true,
			Port:         DefaultDashboardPort,
			PreviewEvery: 15,
		},
		Relay: RelayConfig{
			QueueSize: 256,
		},
		Profiles: ProfilesConfig{
			Path: "data/profiles.json",
		},
	}
}

// Load reads a TOML file on top of Default. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		log.Warn("unknown config keys ignored", "path", path, "keys", strings.Join(keys, ","))
	}
	return cfg, nil
}

// LoadOrDefault is Load but returns Default when the file does not exist.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides file values with environment variables that are set.
func (c *Config) ApplyEnv() {
	if key := LicenseKey(""); key != "" {
		c.Engine.LicenseKey = key
	}
	if p := os.Getenv("EYEDID_LIBRARY"); p != "" {
		c.Engine.Library = p
	}
	if p := os.Getenv("EYEDID_DASHBOARD_PORT"); p != "" {
		c.Dashboard.Port = p
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string

	if c.Engine.FPS < 1 || c.Engine.FPS > 120 {
		errs = append(errs, "engine.fps must be between 1 and 120")
	}
	if c.Engine.FaceDistanceCM < 10 || c.Engine.FaceDistanceCM > 200 {
		errs = append(errs, "engine.face_distance_cm must be between 10 and 200")
	}
	if c.Engine.CameraFOV < 0 || c.Engine.CameraFOV >= math.Pi {
		errs = append(errs, "engine.camera_fov must be 0 (default) or below pi radians")
	}

	if c.Display.WidthPx <= 0 || c.Display.HeightPx <= 0 {
		errs = append(errs, "display pixel size must be positive")
	}
	if c.Display.WidthMM <= 0 || c.Display.HeightMM <= 0 {
		errs = append(errs, "display physical size must be positive")
	}
	if c.Display.WindowWidth < 0 || c.Display.WindowHeight < 0 {
		errs = append(errs, "display window size must not be negative")
	}

	if c.Calibration.Points != 1 && c.Calibration.Points != 5 {
		errs = append(errs, "calibration.points must be 1 or 5")
	}
	validAccuracy := map[string]bool{"default": true, "low": true, "high": true}
	if !validAccuracy[c.Calibration.Accuracy] {
		errs = append(errs, "calibration.accuracy must be default, low, or high")
	}
	if c.Calibration.StartDelay.Duration < 0 {
		errs = append(errs, "calibration.start_delay must not be negative")
	}
	if c.Calibration.Padding < 0 {
		errs = append(errs, "calibration.padding must not be negative")
	}

	if c.Camera.Enabled {
		if c.Camera.Width < 160 || c.Camera.Height < 120 {
			errs = append(errs, "camera resolution must be at least 160x120")
		}
		if c.Camera.Framerate < 1 || c.Camera.Framerate > 120 {
			errs = append(errs, "camera.framerate must be between 1 and 120")
		}
	}

	if c.Dashboard.PreviewEvery < 0 {
		errs = append(errs, "dashboard.preview_every must not be negative")
	}

	if c.Relay.URL != "" && c.Relay.QueueSize < 1 {
		errs = append(errs, "relay.queue_size must be positive")
	}

	return errs
}
