package engine

import (
	"context"
	"math"
	"sync"
	"time"
)

// Mock is an in-memory Engine for tests and the simulator. Events are
// delivered through the same callback bridge the real library uses.
type Mock struct {
	mu sync.Mutex

	// AuthCode is the authorization result every created handle reports.
	AuthCode int
	// CreateErr, when set, is returned by Create.
	CreateErr error

	handles []*MockHandle
}

// NewMock creates a mock engine that authorizes every license.
func NewMock() *Mock {
	return &Mock{}
}

// Version implements Engine.
func (m *Mock) Version() string { return "0.0.0-mock" }

// VersionInt implements Engine.
func (m *Mock) VersionInt() int32 { return 0 }

// Create implements Engine.
func (m *Mock) Create(licenseKey string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	h := &MockHandle{
		License:  licenseKey,
		authCode: m.AuthCode,
		fps:      30,
		fov:      DefaultOptions().CameraFOV,
	}
	m.handles = append(m.handles, h)
	return h, nil
}

// Handles returns every handle created so far.
func (m *Mock) Handles() []*MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockHandle(nil), m.handles...)
}

// Last returns the most recently created handle, or nil.
func (m *Mock) Last() *MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.handles) == 0 {
		return nil
	}
	return m.handles[len(m.handles)-1]
}

// MockFrame records one AddFrame call.
type MockFrame struct {
	Timestamp     int64
	Width, Height int32
	Size          int
}

// MockCalibration records one StartCalibration call.
type MockCalibration struct {
	Points                   CalibrationPoints
	Accuracy                 CalibrationAccuracy
	Left, Top, Right, Bottom float32
	UsePrevious              bool
}

// MockHandle is a Handle that records every call.
type MockHandle struct {
	License string

	mu           sync.Mutex
	authCode     int
	initialized  bool
	deleted      bool
	opts         Options
	fps          int32
	faceDistance int32
	fov          float32
	targetRegion [4]float32
	attention    *[4]float32
	rejectFrames bool

	frames          []MockFrame
	calibrations    []MockCalibration
	collectCalls    int
	stopCalls       int
	calibrationData []float32

	hooks MockHooks

	token         uintptr
	registrations int
}

func (h *MockHandle) Delete() {
	h.RemoveCallbacks()
	h.mu.Lock()
	h.deleted = true
	h.initialized = false
	h.mu.Unlock()
}

func (h *MockHandle) Init(opts Options) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opts = opts
	h.fov = opts.CameraFOV
	h.initialized = true
}

func (h *MockHandle) Deinit() {
	h.mu.Lock()
	h.initialized = false
	h.mu.Unlock()
}

func (h *MockHandle) Initialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initialized
}

func (h *MockHandle) AuthorizationResult() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.authCode
}

// SetAuthorizationResult changes the code reported on the next query.
func (h *MockHandle) SetAuthorizationResult(code int) {
	h.mu.Lock()
	h.authCode = code
	h.mu.Unlock()
}

func (h *MockHandle) SetFPS(fps int32) {
	h.mu.Lock()
	h.fps = fps
	h.mu.Unlock()
}

func (h *MockHandle) SetFaceDistance(mm int32) {
	h.mu.Lock()
	h.faceDistance = mm
	h.mu.Unlock()
}

func (h *MockHandle) SetCameraFOV(radians float32) {
	h.mu.Lock()
	h.fov = radians
	h.mu.Unlock()
}

func (h *MockHandle) CameraFOV() float32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fov
}

func (h *MockHandle) SetTargetBoundRegion(left, top, right, bottom float32) {
	h.mu.Lock()
	h.targetRegion = [4]float32{left, top, right, bottom}
	h.mu.Unlock()
}

func (h *MockHandle) AddFrame(timestamp int64, buffer []byte, width, height int32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rejectFrames || !h.initialized {
		return false
	}
	h.frames = append(h.frames, MockFrame{Timestamp: timestamp, Width: width, Height: height, Size: len(buffer)})
	return true
}

// RejectFrames makes AddFrame report false.
func (h *MockHandle) RejectFrames(reject bool) {
	h.mu.Lock()
	h.rejectFrames = reject
	h.mu.Unlock()
}

func (h *MockHandle) StartCalibration(points CalibrationPoints, accuracy CalibrationAccuracy,
	left, top, right, bottom float32, usePrevious bool) {
	c := MockCalibration{
		Points: points, Accuracy: accuracy,
		Left: left, Top: top, Right: right, Bottom: bottom,
		UsePrevious: usePrevious,
	}
	h.mu.Lock()
	h.calibrations = append(h.calibrations, c)
	hook := h.hooks.OnStartCalibration
	h.mu.Unlock()
	if hook != nil {
		hook(c)
	}
}

func (h *MockHandle) StartCollectSamples() {
	h.mu.Lock()
	h.collectCalls++
	hook := h.hooks.OnCollectSamples
	h.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (h *MockHandle) StopCalibration() {
	h.mu.Lock()
	h.stopCalls++
	hook := h.hooks.OnStopCalibration
	h.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// MockHooks script engine behaviour in response to calibration commands.
// Hooks run on the caller's goroutine after the call is recorded.
type MockHooks struct {
	OnStartCalibration func(MockCalibration)
	OnCollectSamples   func()
	OnStopCalibration  func()
}

// SetHooks installs calibration hooks.
func (h *MockHandle) SetHooks(hooks MockHooks) {
	h.mu.Lock()
	h.hooks = hooks
	h.mu.Unlock()
}

func (h *MockHandle) SetCalibrationData(data []float32) {
	h.mu.Lock()
	h.calibrationData = append([]float32(nil), data...)
	h.mu.Unlock()
}

func (h *MockHandle) SetCallbacks(cb Callbacks) {
	token := bridge.register(cb)
	h.mu.Lock()
	old := h.token
	h.token = token
	h.registrations++
	h.mu.Unlock()
	if old != 0 {
		bridge.unregister(old)
	}
}

func (h *MockHandle) RemoveCallbacks() {
	h.mu.Lock()
	old := h.token
	h.token = 0
	h.mu.Unlock()
	if old != 0 {
		bridge.unregister(old)
	}
}

func (h *MockHandle) SetAttentionRegion(left, top, right, bottom float32) {
	h.mu.Lock()
	h.attention = &[4]float32{left, top, right, bottom}
	h.mu.Unlock()
}

func (h *MockHandle) AttentionRegion() ([4]float32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.attention == nil {
		return [4]float32{}, false
	}
	return *h.attention, true
}

func (h *MockHandle) RemoveAttentionRegion() {
	h.mu.Lock()
	h.attention = nil
	h.mu.Unlock()
}

// Recorded state accessors.

func (h *MockHandle) Deleted() bool            { h.mu.Lock(); defer h.mu.Unlock(); return h.deleted }
func (h *MockHandle) Options() Options         { h.mu.Lock(); defer h.mu.Unlock(); return h.opts }
func (h *MockHandle) FPS() int32               { h.mu.Lock(); defer h.mu.Unlock(); return h.fps }
func (h *MockHandle) FaceDistance() int32      { h.mu.Lock(); defer h.mu.Unlock(); return h.faceDistance }
func (h *MockHandle) TargetRegion() [4]float32 { h.mu.Lock(); defer h.mu.Unlock(); return h.targetRegion }
func (h *MockHandle) CollectCalls() int        { h.mu.Lock(); defer h.mu.Unlock(); return h.collectCalls }
func (h *MockHandle) StopCalls() int           { h.mu.Lock(); defer h.mu.Unlock(); return h.stopCalls }
func (h *MockHandle) Registrations() int       { h.mu.Lock(); defer h.mu.Unlock(); return h.registrations }
func (h *MockHandle) Registered() bool         { h.mu.Lock(); defer h.mu.Unlock(); return h.token != 0 }

// Frames returns every accepted frame.
func (h *MockHandle) Frames() []MockFrame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]MockFrame(nil), h.frames...)
}

// Calibrations returns every StartCalibration call.
func (h *MockHandle) Calibrations() []MockCalibration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]MockCalibration(nil), h.calibrations...)
}

// CalibrationData returns the last blob passed to SetCalibrationData.
func (h *MockHandle) CalibrationData() []float32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]float32(nil), h.calibrationData...)
}

func (h *MockHandle) currentToken() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

// Event injection. These run on the caller's goroutine, the way the engine
// thread would invoke the registered trampolines.

// EmitMetrics delivers a metrics event.
func (h *MockHandle) EmitMetrics(timestamp uint64, data Data) {
	dispatchMetrics(h.currentToken(), timestamp, &data)
}

// EmitDrop delivers a drop event.
func (h *MockHandle) EmitDrop(timestamp uint64) {
	dispatchDrop(h.currentToken(), timestamp)
}

// EmitProgress delivers a calibration progress event.
func (h *MockHandle) EmitProgress(progress float32) {
	dispatchProgress(h.currentToken(), progress)
}

// EmitNextPoint delivers a calibration next-point event in camera coordinates.
func (h *MockHandle) EmitNextPoint(x, y float32) {
	dispatchNextPoint(h.currentToken(), x, y)
}

// EmitFinished delivers a calibration finished event.
func (h *MockHandle) EmitFinished(data []float32) {
	var p *float32
	if len(data) > 0 {
		p = &data[0]
	}
	dispatchFinished(h.currentToken(), p, uint32(len(data)))
}

// EmitCanceled delivers a calibration canceled event.
func (h *MockHandle) EmitCanceled(data []float32) {
	var p *float32
	if len(data) > 0 {
		p = &data[0]
	}
	dispatchCanceled(h.currentToken(), p, uint32(len(data)))
}

// GazeAt builds a successful metrics payload looking at (x, y) in camera mm.
func GazeAt(x, y float32) Data {
	return Data{
		Gaze: GazeData{
			X: x, Y: y, FixationX: x, FixationY: y,
			TrackingState: TrackingSuccess,
			MovementState: MovementFixation,
		},
		Face: FaceData{Score: 0.98, CenterZ: 600},
		Blink: BlinkData{
			LeftOpenness: 1, RightOpenness: 1,
		},
		UserStatus: UserStatusData{AttentionScore: 1},
	}
}

// Simulate emits a synthetic gaze path at the given interval until ctx is
// done. The path sweeps a region of width x height mm below the camera.
func (h *MockHandle) Simulate(ctx context.Context, interval time.Duration, width, height float32) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t := now.Sub(start).Seconds()
			x := float32(math.Sin(t*0.7)) * width / 2
			y := -height/2 + float32(math.Sin(t*1.1))*height/2

			data := GazeAt(x, y)
			// Roughly every fifth second the face is lost.
			if int(t)%5 == 4 {
				data.Gaze = GazeData{
					X: InvalidCoordinate, Y: InvalidCoordinate,
					FixationX: InvalidCoordinate, FixationY: InvalidCoordinate,
					TrackingState: TrackingFaceMissing,
					MovementState: MovementUnknown,
				}
			}
			h.EmitMetrics(uint64(now.UnixMilli()), data)
		}
	}
}
