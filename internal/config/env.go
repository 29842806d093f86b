// Package config provides configuration helpers for go-eyedid commands.
package config

import (
	"fmt"
	"os"
)

// Default environment-backed values.
const (
	DefaultLibraryPath   = "libeyedid_core.so"
	DefaultConfigPath    = "eyedid.toml"
	DefaultDashboardPort = "8090"
	DefaultLogLevel      = "info"
)

// LicenseKey returns the license key from EYEDID_LICENSE_KEY.
// Falls back to the provided default if not set.
func LicenseKey(defaultKey string) string {
	if key := os.Getenv("EYEDID_LICENSE_KEY"); key != "" {
		return key
	}
	return defaultKey
}

// LicenseKeyRequired returns the license key from EYEDID_LICENSE_KEY.
// Exits if not set.
func LicenseKeyRequired() string {
	key := os.Getenv("EYEDID_LICENSE_KEY")
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: EYEDID_LICENSE_KEY environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: EYEDID_LICENSE_KEY=dev_xxxx go run ./cmd/eyedid")
		os.Exit(1)
	}
	return key
}

// LibraryPath returns the engine shared library path from EYEDID_LIBRARY or default.
func LibraryPath() string {
	if p := os.Getenv("EYEDID_LIBRARY"); p != "" {
		return p
	}
	return DefaultLibraryPath
}

// ConfigPath returns the TOML config path from EYEDID_CONFIG or default.
func ConfigPath() string {
	if p := os.Getenv("EYEDID_CONFIG"); p != "" {
		return p
	}
	return DefaultConfigPath
}

// DashboardPort returns the dashboard port from EYEDID_DASHBOARD_PORT or default.
func DashboardPort() string {
	if p := os.Getenv("EYEDID_DASHBOARD_PORT"); p != "" {
		return p
	}
	return DefaultDashboardPort
}

// LogLevel returns the log level from EYEDID_LOG_LEVEL or default.
func LogLevel() string {
	if l := os.Getenv("EYEDID_LOG_LEVEL"); l != "" {
		return l
	}
	return DefaultLogLevel
}
