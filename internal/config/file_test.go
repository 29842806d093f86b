package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eyedid.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("default config should be valid, got %v", errs)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeFile(t, `
[engine]
fps = 15

[calibration]
points = 1
start_delay = "500ms"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Engine.FPS != 15 {
		t.Errorf("FPS = %d, want 15", cfg.Engine.FPS)
	}
	if cfg.Calibration.Points != 1 {
		t.Errorf("Points = %d, want 1", cfg.Calibration.Points)
	}
	if cfg.Calibration.StartDelay.Duration != 500*time.Millisecond {
		t.Errorf("StartDelay = %v, want 500ms", cfg.Calibration.StartDelay.Duration)
	}
	// Untouched sections keep defaults
	if cfg.Display.WidthPx != 1920 {
		t.Errorf("WidthPx = %d, want default 1920", cfg.Display.WidthPx)
	}
	if cfg.Engine.FaceDistanceCM != 60 {
		t.Errorf("FaceDistanceCM = %d, want default 60", cfg.Engine.FaceDistanceCM)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := writeFile(t, `
[calibration]
start_delay = "soon"
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Engine.FPS != Default().Engine.FPS {
		t.Error("expected defaults for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fps zero", func(c *Config) { c.Engine.FPS = 0 }},
		{"bad points", func(c *Config) { c.Calibration.Points = 3 }},
		{"bad accuracy", func(c *Config) { c.Calibration.Accuracy = "extreme" }},
		{"zero mm", func(c *Config) { c.Display.WidthMM = 0 }},
		{"negative delay", func(c *Config) { c.Calibration.StartDelay.Duration = -time.Second }},
		{"relay queue", func(c *Config) { c.Relay.URL = "ws://x"; c.Relay.QueueSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if errs := cfg.Validate(); len(errs) == 0 {
				t.Error("expected validation errors")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("EYEDID_LICENSE_KEY", "dev_key")
	t.Setenv("EYEDID_LIBRARY", "/opt/eyedid/libeyedid_core.so")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Engine.LicenseKey != "dev_key" {
		t.Errorf("LicenseKey = %q", cfg.Engine.LicenseKey)
	}
	if cfg.Engine.Library != "/opt/eyedid/libeyedid_core.so" {
		t.Errorf("Library = %q", cfg.Engine.Library)
	}
}
