// Package web provides the tracker dashboard: a JSON API for status,
// calibration and profiles, and websockets streaming live events.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-eyedid/internal/log"
	"github.com/teslashibe/go-eyedid/pkg/engine"
	"github.com/teslashibe/go-eyedid/pkg/hub"
	"github.com/teslashibe/go-eyedid/pkg/profile"
	"github.com/teslashibe/go-eyedid/pkg/protocol"
)

// maxEvents is the number of recent non-gaze events kept for /api/events.
const maxEvents = 200

// Controller is the tracker surface the dashboard drives.
type Controller interface {
	Status() protocol.StatusData
	CalibrationState() protocol.CalibrationStateData
	StartCalibration(points engine.CalibrationPoints, accuracy engine.CalibrationAccuracy) (string, error)
	StopCalibration() error
	Profiles() ([]*profile.Profile, error)
	ApplyProfile(id string) error
}

// CameraSettings exposes runtime camera configuration.
type CameraSettings interface {
	GetConfigJSON() map[string]interface{}
	UpdateConfig(params map[string]interface{}) error
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	port   string
	ctrl   Controller
	camera CameraSettings
	logger *slog.Logger

	// Recent events, oldest first
	events   []*protocol.Message
	eventsMu sync.RWMutex

	// Hubs for websocket broadcast
	eventHub  *hub.Hub
	cameraHub *hub.Hub

	cancel context.CancelFunc
}

// NewServer creates a new web dashboard server
func NewServer(port string, ctrl Controller) *Server {
	s := &Server{
		port:      port,
		ctrl:      ctrl,
		logger:    log.Component("web"),
		events:    make([]*protocol.Message, 0, maxEvents),
		eventHub:  hub.New("events"),
		cameraHub: hub.New("camera"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Eyedid Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/events", s.handleGetEvents)
	api.Get("/calibration", s.handleCalibration)
	api.Post("/calibration/start", s.handleStartCalibration)
	api.Post("/calibration/stop", s.handleStopCalibration)
	api.Get("/profiles", s.handleListProfiles)
	api.Post("/profiles/:id/apply", s.handleApplyProfile)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleUpdateCamera)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// SetCamera enables the camera settings endpoints.
func (s *Server) SetCamera(cs CameraSettings) {
	s.camera = cs
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs and serves on the configured port until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("web: listen: %w", err)
	}
	s.logger.Info("dashboard listening", "url", "http://localhost:"+s.port)
	return s.Serve(ctx, ln)
}

// Serve runs the hubs and serves on ln until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.eventHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	return s.app.Listener(ln)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// Publish records an event and broadcasts it to /ws/events clients.
// Gaze and drop messages are streamed but not kept in the event log.
func (s *Server) Publish(msg *protocol.Message) {
	if msg.Type != protocol.TypeGaze && msg.Type != protocol.TypeDrop {
		s.eventsMu.Lock()
		s.events = append(s.events, msg)
		if len(s.events) > maxEvents {
			s.events = s.events[1:]
		}
		s.eventsMu.Unlock()
	}
	s.eventHub.Publish(msg)
}

// SendPreview sends a JPEG camera preview to /ws/camera clients.
func (s *Server) SendPreview(jpegData []byte) {
	s.cameraHub.BroadcastBinary(jpegData)
}

// PreviewClients returns the number of /ws/camera clients.
func (s *Server) PreviewClients() int {
	return s.cameraHub.ClientCount()
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.app.Shutdown()
}
