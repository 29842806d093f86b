// eyedid runs the gaze tracker against the engine library with a camera,
// the web dashboard and an optional event relay.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-eyedid/internal/config"
	"github.com/teslashibe/go-eyedid/internal/log"
	"github.com/teslashibe/go-eyedid/pkg/app"
	"github.com/teslashibe/go-eyedid/pkg/engine"
)

func main() {
	cfg, calibrate := parseFlags()

	lib, err := engine.Load(cfg.Engine.Library)
	if err != nil {
		fatal("failed to load engine library", err)
	}
	defer lib.Close()

	a, err := app.New(cfg, app.Options{Engine: lib, Calibrate: calibrate})
	if err != nil {
		fatal("configuration error", err)
	}
	if err := a.Init(); err != nil {
		fatal("initialization failed", err)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
	}
}

// parseFlags loads the config file and applies flags and environment on top.
func parseFlags() (config.Config, bool) {
	configPath := flag.String("config", config.ConfigPath(), "TOML config file")
	level := flag.String("log-level", config.LogLevel(), "Log level: debug, info, warn, error")
	library := flag.String("library", "", "Engine shared library (overrides EYEDID_LIBRARY)")
	device := flag.Int("device", -1, "Camera device index")
	port := flag.String("port", "", "Dashboard port")
	noDashboard := flag.Bool("no-dashboard", false, "Disable the web dashboard")
	relayURL := flag.String("relay", "", "Relay events to this websocket URL")
	calibrate := flag.Bool("calibrate", false, "Calibrate over the window on start")
	flag.Parse()

	log.Init(*level)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fatal("failed to load config", err)
	}
	cfg.ApplyEnv()

	if *library != "" {
		cfg.Engine.Library = *library
	}
	if *device >= 0 {
		cfg.Camera.DeviceID = *device
	}
	if *port != "" {
		cfg.Dashboard.Port = *port
	}
	if *noDashboard {
		cfg.Dashboard.Enabled = false
	}
	if *relayURL != "" {
		cfg.Relay.URL = *relayURL
	}
	return cfg, *calibrate
}

func fatal(msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
