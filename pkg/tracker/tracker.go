// Package tracker is the application-facing gaze tracker. It owns one engine
// handle, converts between display pixels and camera millimeters, and routes
// engine events to typed listeners.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-eyedid/internal/log"
	"github.com/teslashibe/go-eyedid/pkg/calibration"
	"github.com/teslashibe/go-eyedid/pkg/coord"
	"github.com/teslashibe/go-eyedid/pkg/engine"
)

// Option configures a Tracker.
type Option func(*Tracker)

// WithConverter sets the initial camera to display transform.
func WithConverter(t coord.Transform) Option {
	return func(tr *Tracker) { tr.router.SetConverter(t) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(tr *Tracker) { tr.logger = l }
}

// Tracker wraps an engine handle.
//
// Listener setters may be called at any time, but a delivery already in
// flight can still reach the previous listener. Deinitialize and Close must
// not be called from inside a listener.
type Tracker struct {
	eng     engine.Engine
	logger  *slog.Logger
	router  *Router
	machine *calibration.Machine
	limiter *frameLimiter

	mu             sync.RWMutex
	handle         engine.Handle
	initialized    bool
	faceDistanceMM int32
}

// New creates a tracker over eng. No engine handle exists until Initialize.
func New(eng engine.Engine, opts ...Option) *Tracker {
	t := &Tracker{
		eng:     eng,
		limiter: newFrameLimiter(0),
	}
	t.router = NewRouter(nil)
	for _, opt := range opts {
		opt(t)
	}
	var machineLogger *slog.Logger
	if t.logger == nil {
		t.logger = log.Component("tracker")
	} else {
		machineLogger = t.logger
	}
	t.machine = calibration.NewMachine(t, machineLogger)
	t.machine.SetAbortHandler(func(data []float32) {
		if l := t.router.calibrationListener(); l != nil {
			l.OnCalibrationCancel(data)
		}
	})
	t.router.observer = t.machine
	return t
}

// Version returns the engine version string.
func (t *Tracker) Version() string {
	return t.eng.Version()
}

// Initialize authorizes licenseKey and starts the engine. A handle is created
// only if none exists, so a failed attempt can be retried without leaking.
func (t *Tracker) Initialize(licenseKey string, opts engine.Options) error {
	t.mu.Lock()
	if t.handle == nil {
		h, err := t.eng.Create(licenseKey)
		if err != nil {
			t.mu.Unlock()
			return fmt.Errorf("tracker: create engine handle: %w", err)
		}
		t.handle = h
	}
	h := t.handle

	if code := h.AuthorizationResult(); code != 0 {
		t.mu.Unlock()
		t.logger.Error("engine authorization failed", "code", code+AuthErrorOffset)
		return &AuthError{Code: code + AuthErrorOffset, EngineCode: code}
	}

	h.Init(opts)
	t.initialized = true
	t.mu.Unlock()

	t.limiter.reset()
	h.SetCallbacks(t.router)

	t.logger.Info("tracker initialized",
		"version", t.eng.Version(),
		"blink", opts.UseBlink.Go(),
		"user_status", opts.UseUserStatus.Go(),
		"gaze_filter", opts.UseGazeFilter.Go())
	return nil
}

// Deinitialize detaches callbacks and then stops the engine. A calibration in
// progress is canceled locally with an empty blob. The handle is kept for a
// later Initialize.
func (t *Tracker) Deinitialize() error {
	t.mu.Lock()
	if !t.initialized || t.handle == nil {
		t.mu.Unlock()
		return ErrNotInitialized
	}
	h := t.handle
	t.initialized = false
	t.mu.Unlock()

	h.RemoveCallbacks()
	h.Deinit()
	// The engine can no longer report how a running calibration ended.
	t.machine.Reset()
	t.logger.Info("tracker deinitialized")
	return nil
}

// Close deinitializes if needed and deletes the engine handle.
func (t *Tracker) Close() error {
	t.mu.Lock()
	h := t.handle
	wasInit := t.initialized
	t.handle = nil
	t.initialized = false
	t.mu.Unlock()

	if h == nil {
		return nil
	}
	if wasInit {
		h.RemoveCallbacks()
		h.Deinit()
	}
	h.Delete()
	t.machine.Reset()
	return nil
}

// IsInitialized asks the engine whether the tracker is running.
func (t *Tracker) IsInitialized() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.initialized && t.handle != nil && t.handle.Initialized()
}

func (t *Tracker) current() (engine.Handle, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.initialized || t.handle == nil {
		return nil, ErrNotInitialized
	}
	return t.handle, nil
}

// AddFrame pushes one packed RGB frame. It reports false when the frame was
// throttled by the tracking rate or refused by the engine. The buffer is not
// retained after AddFrame returns.
func (t *Tracker) AddFrame(timestamp int64, buffer []byte, width, height int) (bool, error) {
	h, err := t.current()
	if err != nil {
		return false, err
	}
	if width <= 0 || height <= 0 || len(buffer) < width*height*3 {
		return false, fmt.Errorf("%w: %d bytes for %dx%d", ErrFrameSize, len(buffer), width, height)
	}
	if !t.limiter.allow(timestamp) {
		return false, nil
	}
	return h.AddFrame(timestamp, buffer, int32(width), int32(height)), nil
}

// SetTrackingFPS sets the engine rate and the frame limiter.
func (t *Tracker) SetTrackingFPS(fps int) error {
	if fps <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidFPS, fps)
	}
	h, err := t.current()
	if err != nil {
		return err
	}
	h.SetFPS(int32(fps))
	t.limiter.setFPS(fps)
	return nil
}

// TrackingFPS returns the rate set by SetTrackingFPS, or 0 if unset.
func (t *Tracker) TrackingFPS() int {
	return t.limiter.rate()
}

// SetFaceDistance sets the expected face to camera distance in centimeters.
func (t *Tracker) SetFaceDistance(cm int) error {
	h, err := t.current()
	if err != nil {
		return err
	}
	mm := int32(cm * 10)
	h.SetFaceDistance(mm)
	t.mu.Lock()
	t.faceDistanceMM = mm
	t.mu.Unlock()
	return nil
}

// FaceDistance returns the last distance set, in centimeters.
func (t *Tracker) FaceDistance() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int(t.faceDistanceMM / 10)
}

// SetCameraFOV sets the horizontal camera field of view in radians.
func (t *Tracker) SetCameraFOV(radians float32) error {
	h, err := t.current()
	if err != nil {
		return err
	}
	h.SetCameraFOV(radians)
	return nil
}

// CameraFOV returns the engine's field of view in radians.
func (t *Tracker) CameraFOV() (float32, error) {
	h, err := t.current()
	if err != nil {
		return 0, err
	}
	return h.CameraFOV(), nil
}

// toCamera reverts a display rectangle into camera millimeters.
func (t *Tracker) toCamera(r coord.Rect) (coord.Rect, error) {
	cam, err := t.router.Converter().RevertRect(r)
	if err != nil {
		return coord.Rect{}, fmt.Errorf("tracker: convert region %v: %w", r, err)
	}
	return cam, nil
}

// SetTargetBoundRegion limits gaze output to a display rectangle.
func (t *Tracker) SetTargetBoundRegion(r coord.Rect) error {
	h, err := t.current()
	if err != nil {
		return err
	}
	cam, err := t.toCamera(r)
	if err != nil {
		return err
	}
	h.SetTargetBoundRegion(float32(cam.Left), float32(cam.Top), float32(cam.Right), float32(cam.Bottom))
	return nil
}

// SetAttentionRegion sets the display rectangle used for the attention score.
func (t *Tracker) SetAttentionRegion(r coord.Rect) error {
	h, err := t.current()
	if err != nil {
		return err
	}
	cam, err := t.toCamera(r)
	if err != nil {
		return err
	}
	h.SetAttentionRegion(float32(cam.Left), float32(cam.Top), float32(cam.Right), float32(cam.Bottom))
	return nil
}

// AttentionRegion returns the attention region in display space. ok is false
// when none is set.
func (t *Tracker) AttentionRegion() (r coord.Rect, ok bool, err error) {
	h, err := t.current()
	if err != nil {
		return coord.Rect{}, false, err
	}
	roi, ok := h.AttentionRegion()
	if !ok {
		return coord.Rect{}, false, nil
	}
	cam := coord.R(float64(roi[0]), float64(roi[1]), float64(roi[2]), float64(roi[3]))
	return t.router.Converter().ConvertRect(cam), true, nil
}

// RemoveAttentionRegion clears the attention region.
func (t *Tracker) RemoveAttentionRegion() error {
	h, err := t.current()
	if err != nil {
		return err
	}
	h.RemoveAttentionRegion()
	return nil
}

// Converter returns the camera to display transform.
func (t *Tracker) Converter() coord.Transform {
	return t.router.Converter()
}

// SetConverter replaces the camera to display transform. Non-invertible
// transforms are rejected since every region setter reverts through it.
func (t *Tracker) SetConverter(tr coord.Transform) error {
	if !tr.Invertible() {
		return coord.ErrNonInvertible
	}
	t.router.SetConverter(tr)
	return nil
}

// SetTrackingListener replaces the tracking listener.
func (t *Tracker) SetTrackingListener(l TrackingListener) {
	t.router.SetTrackingListener(l)
}

// SetCalibrationListener replaces the calibration listener.
func (t *Tracker) SetCalibrationListener(l CalibrationListener) {
	t.router.SetCalibrationListener(l)
}

// RemoveTrackingListener discards further tracking events.
func (t *Tracker) RemoveTrackingListener() {
	t.router.SetTrackingListener(nil)
}

// RemoveCalibrationListener discards further calibration events.
func (t *Tracker) RemoveCalibrationListener() {
	t.router.SetCalibrationListener(nil)
}

// Calibration returns the calibration state machine.
func (t *Tracker) Calibration() *calibration.Machine {
	return t.machine
}

// StartCalibration starts a calibration now.
func (t *Tracker) StartCalibration(req calibration.Request) (calibration.Session, error) {
	if _, err := t.current(); err != nil {
		return calibration.Session{}, err
	}
	return t.machine.Start(req)
}

// StartCalibrationAfter reserves a calibration and starts the engine after delay.
func (t *Tracker) StartCalibrationAfter(ctx context.Context, delay time.Duration, req calibration.Request) (*calibration.Pending, error) {
	if _, err := t.current(); err != nil {
		return nil, err
	}
	return t.machine.StartAfter(ctx, delay, req)
}

// StopCalibration requests cancellation. Completion is reported through the
// calibration listener.
func (t *Tracker) StopCalibration() error {
	return t.machine.Stop()
}

// StartCollectSamples tells the engine the user is looking at the current target.
func (t *Tracker) StartCollectSamples() error {
	return t.machine.CollectSamples()
}

// SetCalibrationData loads a blob from an earlier calibration.
func (t *Tracker) SetCalibrationData(data []float32) error {
	h, err := t.current()
	if err != nil {
		return err
	}
	h.SetCalibrationData(data)
	return nil
}

// StartEngineCalibration implements calibration.Driver.
func (t *Tracker) StartEngineCalibration(req calibration.Request) error {
	h, err := t.current()
	if err != nil {
		return err
	}
	cam, err := t.toCamera(req.Region)
	if err != nil {
		return err
	}
	h.StartCalibration(req.Points, req.Accuracy,
		float32(cam.Left), float32(cam.Top), float32(cam.Right), float32(cam.Bottom),
		req.ReusePrevious)
	return nil
}

// StopEngineCalibration implements calibration.Driver.
func (t *Tracker) StopEngineCalibration() error {
	h, err := t.current()
	if err != nil {
		return err
	}
	h.StopCalibration()
	return nil
}

// CollectEngineSamples implements calibration.Driver.
func (t *Tracker) CollectEngineSamples() error {
	h, err := t.current()
	if err != nil {
		return err
	}
	h.StartCollectSamples()
	return nil
}

var _ calibration.Driver = (*Tracker)(nil)
