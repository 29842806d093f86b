package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-eyedid/pkg/calibration"
	"github.com/teslashibe/go-eyedid/pkg/engine"
	"github.com/teslashibe/go-eyedid/pkg/hub"
	"github.com/teslashibe/go-eyedid/pkg/profile"
	"github.com/teslashibe/go-eyedid/pkg/protocol"
	"github.com/teslashibe/go-eyedid/pkg/tracker"
)

// StartCalibrationRequest is the request body for starting a calibration
type StartCalibrationRequest struct {
	Points   int    `json:"points"`
	Accuracy string `json:"accuracy"`
}

var validAccuracy = map[string]bool{"": true, "default": true, "low": true, "high": true}

// errorStatus maps controller errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, calibration.ErrAlreadyInProgress):
		return fiber.StatusConflict
	case errors.Is(err, calibration.ErrInvalidPoints):
		return fiber.StatusBadRequest
	case errors.Is(err, tracker.ErrNotInitialized):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, profile.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// handleStatus returns the tracker status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := s.ctrl.Status()
	return c.JSON(fiber.Map{
		"tracker": st,
		"clients": s.eventHub.ClientCount(),
	})
}

// handleGetEvents returns recent events
func (s *Server) handleGetEvents(c *fiber.Ctx) error {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return c.JSON(s.events)
}

// handleCalibration returns the current or last calibration session
func (s *Server) handleCalibration(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.CalibrationState())
}

// handleStartCalibration schedules a full-window calibration
func (s *Server) handleStartCalibration(c *fiber.Ctx) error {
	req := StartCalibrationRequest{Points: 5}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, err)
		}
	}
	if !validAccuracy[req.Accuracy] {
		return fail(c, fiber.StatusBadRequest, errors.New("accuracy must be default, low, or high"))
	}

	id, err := s.ctrl.StartCalibration(engine.CalibrationPoints(req.Points), engine.ParseAccuracy(req.Accuracy))
	if err != nil {
		return fail(c, errorStatus(err), err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"session": id,
	})
}

// handleStopCalibration cancels the running calibration
func (s *Server) handleStopCalibration(c *fiber.Ctx) error {
	if err := s.ctrl.StopCalibration(); err != nil {
		return fail(c, errorStatus(err), err)
	}
	return c.JSON(s.ctrl.CalibrationState())
}

// handleListProfiles returns stored calibration profiles without their blobs
func (s *Server) handleListProfiles(c *fiber.Ctx) error {
	profiles, err := s.ctrl.Profiles()
	if err != nil {
		return fail(c, errorStatus(err), err)
	}
	out := make([]fiber.Map, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, fiber.Map{
			"id":         p.ID,
			"name":       p.Name,
			"points":     p.Points,
			"accuracy":   p.Accuracy.String(),
			"values":     len(p.Data),
			"created_at": p.CreatedAt,
		})
	}
	return c.JSON(out)
}

// handleApplyProfile loads a stored calibration into the engine
func (s *Server) handleApplyProfile(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.ctrl.ApplyProfile(id); err != nil {
		return fail(c, errorStatus(err), err)
	}
	return c.JSON(fiber.Map{
		"applied": id,
	})
}

// handleGetCamera returns the camera configuration
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.camera == nil {
		return fail(c, fiber.StatusNotFound, errors.New("camera not configured"))
	}
	return c.JSON(s.camera.GetConfigJSON())
}

// handleUpdateCamera applies camera parameters or a preset
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	if s.camera == nil {
		return fail(c, fiber.StatusNotFound, errors.New("camera not configured"))
	}
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	if err := s.camera.UpdateConfig(params); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(s.camera.GetConfigJSON())
}

// handleEventsWS streams events, starting with the current calibration state
func (s *Server) handleEventsWS(c *websocket.Conn) {
	client, err := hub.NewClient(s.eventHub, c)
	if err != nil {
		c.Close()
		return
	}
	if msg, err := protocol.NewCalibrationStateMessage(s.ctrl.CalibrationState()); err == nil {
		client.Send(msg)
	}
	client.Run()
}

// handleCameraWS streams JPEG previews
func (s *Server) handleCameraWS(c *websocket.Conn) {
	client, err := hub.NewClient(s.cameraHub, c)
	if err != nil {
		c.Close()
		return
	}
	client.Run()
}
