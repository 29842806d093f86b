package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-eyedid/internal/config"
	"github.com/teslashibe/go-eyedid/internal/log"
	"github.com/teslashibe/go-eyedid/pkg/camera"
	"github.com/teslashibe/go-eyedid/pkg/display"
	"github.com/teslashibe/go-eyedid/pkg/engine"
	"github.com/teslashibe/go-eyedid/pkg/manager"
	"github.com/teslashibe/go-eyedid/pkg/profile"
	"github.com/teslashibe/go-eyedid/pkg/protocol"
	"github.com/teslashibe/go-eyedid/pkg/relay"
	"github.com/teslashibe/go-eyedid/pkg/tracker"
	"github.com/teslashibe/go-eyedid/pkg/web"
)

// SourceOpener opens a frame source for a camera configuration.
type SourceOpener func(cfg camera.Config) (camera.Source, error)

// OpenCapture opens an OpenCV capture device.
func OpenCapture(cfg camera.Config) (camera.Source, error) {
	return camera.OpenCapture(cfg)
}

// Options carries the parts that differ between the real and simulated runs.
type Options struct {
	Engine engine.Engine

	// OpenSource opens the frame source. Nil uses OpenCapture.
	OpenSource SourceOpener

	// Handlers are forwarded to the manager.
	Handlers manager.Handlers

	// Calibrate starts a full-window calibration once the tracker runs.
	Calibrate bool
}

// App is the main application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config config.Config
	opts   Options
	logger *slog.Logger

	// Tracking
	tracker *tracker.Tracker
	manager *manager.Manager
	store   *profile.JSONStore
	display display.Info
	windows *display.StaticWindow

	// Camera
	cameraMgr   *camera.Manager
	cameraStats camera.Stats
	restart     chan struct{}

	// Outputs
	pubsMu    sync.RWMutex
	pubs      manager.Publishers
	webServer *web.Server
	relay     *relay.Client
}

// New creates an application with the given configuration.
func New(cfg config.Config, opts Options) (*App, error) {
	if opts.Engine == nil {
		return nil, &ConfigError{Field: "engine", Message: "an engine is required"}
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if opts.OpenSource == nil {
		opts.OpenSource = OpenCapture
	}
	return &App{
		config:  cfg,
		opts:    opts,
		logger:  log.Component("app"),
		restart: make(chan struct{}, 1),
	}, nil
}

// Manager returns the calibration manager. Valid after Init.
func (a *App) Manager() *manager.Manager {
	return a.manager
}

// Init initializes all components.
// Call this after New() and before Run().
func (a *App) Init() error {
	a.logger.Info("eyedid starting", "engine_version", a.opts.Engine.Version())

	if err := a.initProfiles(); err != nil {
		return fmt.Errorf("profiles: %w", err)
	}

	provider, windows := display.FromConfig(displayConfig(a.config.Display))
	info, err := display.Primary(provider)
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	a.display, a.windows = info, windows

	mopts := []manager.Option{
		manager.WithPublisher(manager.PublisherFunc(a.publish)),
		manager.WithHandlers(a.opts.Handlers),
	}
	if a.store != nil {
		mopts = append(mopts, manager.WithStore(a.store))
	}
	a.tracker = tracker.New(a.opts.Engine)
	a.manager = manager.New(managerConfig(a.config), a.tracker, windows, mopts...)

	if err := a.manager.Initialize(a.config.Engine.LicenseKey, engineOptions(a.config.Engine)); err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	if err := a.manager.SetDisplay(info); err != nil {
		return fmt.Errorf("converter: %w", err)
	}
	if err := a.manager.SetWholeScreenAttention(info); err != nil {
		return fmt.Errorf("attention region: %w", err)
	}

	if a.store != nil && a.config.Profiles.ApplyLatest {
		p, err := a.manager.ApplyLatest()
		switch {
		case errors.Is(err, profile.ErrNotFound):
			a.logger.Info("no stored calibration, calibrate from the dashboard")
		case err != nil:
			return fmt.Errorf("apply profile: %w", err)
		default:
			a.logger.Info("stored calibration applied", "profile", p.ID, "created", p.CreatedAt)
		}
	}

	a.cameraMgr = camera.NewManager(cameraConfig(a.config.Camera))
	a.cameraMgr.OnConfigChange = func(camera.Config) error {
		select {
		case a.restart <- struct{}{}:
		default:
		}
		return nil
	}

	if a.config.Dashboard.Enabled {
		a.webServer = web.NewServer(a.config.Dashboard.Port, a.manager)
		a.webServer.SetCamera(a.cameraMgr)
		a.addPublisher(a.webServer)
	}
	if url := a.config.Relay.URL; url != "" {
		rcfg := relay.DefaultConfig(url)
		rcfg.QueueSize = a.config.Relay.QueueSize
		client, err := relay.New(rcfg)
		if err != nil {
			return fmt.Errorf("relay: %w", err)
		}
		a.relay = client
		a.addPublisher(client)
	}
	return nil
}

func (a *App) initProfiles() error {
	path := a.config.Profiles.Path
	if path == "" {
		return nil
	}
	store, err := profile.NewJSONStore(path)
	if err != nil {
		return err
	}
	a.store = store
	a.logger.Info("calibration profiles loaded", "path", path, "count", store.Count())
	return nil
}

func (a *App) addPublisher(p manager.Publisher) {
	a.pubsMu.Lock()
	a.pubs = append(a.pubs, p)
	a.pubsMu.Unlock()
}

func (a *App) publish(msg *protocol.Message) {
	a.pubsMu.RLock()
	pubs := a.pubs
	a.pubsMu.RUnlock()
	pubs.Publish(msg)
}

// Run starts the background tasks and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.webServer != nil {
		a.webServer.StartAsync(ctx)
	}
	if a.relay != nil {
		if err := a.relay.Start(ctx); err != nil {
			return fmt.Errorf("relay: %w", err)
		}
	}
	go a.manager.Run(ctx)

	cameraErr := make(chan error, 1)
	if a.config.Camera.Enabled {
		go func() { cameraErr <- a.runCamera(ctx) }()
	}

	if a.opts.Calibrate {
		points := engine.CalibrationPoints(a.config.Calibration.Points)
		accuracy := engine.ParseAccuracy(a.config.Calibration.Accuracy)
		if _, err := a.manager.StartFullWindowCalibration(ctx, points, accuracy); err != nil {
			a.logger.Error("calibration not started", "error", err)
		}
	}

	a.logger.Info("tracking, press Ctrl+C to exit")
	select {
	case <-ctx.Done():
		return nil
	case err := <-cameraErr:
		return err
	}
}

// runCamera feeds frames to the manager and reopens the source whenever
// the camera configuration changes.
func (a *App) runCamera(ctx context.Context) error {
	for {
		cfg := a.cameraMgr.GetConfig()
		src, err := a.opts.OpenSource(cfg)
		if err != nil {
			return fmt.Errorf("camera: %w", err)
		}

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- camera.Run(runCtx, src, a.sink(), &a.cameraStats) }()

		select {
		case <-ctx.Done():
			cancel()
			src.Close()
			<-done
			return nil

		case <-a.restart:
			cancel()
			src.Close()
			<-done
			next := a.cameraMgr.GetConfig()
			a.logger.Info("camera config changed, reopening", "width", next.Width, "height", next.Height)

		case err := <-done:
			cancel()
			src.Close()
			if err == nil || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("camera: %w", err)
		}
	}
}

func (a *App) sink() camera.FrameSink {
	if a.webServer == nil || a.config.Dashboard.PreviewEvery == 0 {
		return a.manager
	}
	return &camera.Preview{
		Sink:    a.manager,
		Every:   a.config.Dashboard.PreviewEvery,
		Quality: 70,
		Send:    a.webServer.SendPreview,
		Active:  func() bool { return a.webServer.PreviewClients() > 0 },
	}
}

// Shutdown releases every component.
func (a *App) Shutdown() {
	a.logger.Info("shutting down",
		"frames_read", a.cameraStats.Read.Load(),
		"frames_accepted", a.cameraStats.Accepted.Load())

	if a.relay != nil {
		a.relay.Close()
	}
	if a.webServer != nil {
		a.webServer.Shutdown()
	}
	if a.manager != nil {
		if err := a.manager.Close(); err != nil {
			a.logger.Warn("tracker close failed", "error", err)
		}
	}
}

var _ camera.FrameSink = (*manager.Manager)(nil)
