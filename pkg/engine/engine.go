// Package engine is the boundary to the closed-source gaze tracking engine.
//
// Engine and Handle are the Go view of the engine's C function table. Library
// implements them over the real shared library; Mock implements them in
// memory for tests and the simulator.
package engine

// Callbacks receives engine events. The engine calls these from its own
// threads; implementations must not block for long.
type Callbacks interface {
	OnMetrics(timestamp uint64, data *Data)
	OnDrop(timestamp uint64)
	OnCalibrationProgress(progress float32)
	OnCalibrationNextPoint(x, y float32)
	OnCalibrationFinished(data []float32)
	OnCalibrationCanceled(data []float32)
}

// Engine creates tracker handles.
type Engine interface {
	Version() string
	VersionInt() int32
	Create(licenseKey string) (Handle, error)
}

// Handle is one engine tracker object. Coordinates are camera-space millimeters.
type Handle interface {
	Delete()
	Init(opts Options)
	Deinit()
	Initialized() bool
	AuthorizationResult() int

	SetFPS(fps int32)
	SetFaceDistance(mm int32)
	SetCameraFOV(radians float32)
	CameraFOV() float32
	SetTargetBoundRegion(left, top, right, bottom float32)

	// AddFrame reports whether the frame was accepted. The buffer is copied
	// before AddFrame returns.
	AddFrame(timestamp int64, buffer []byte, width, height int32) bool

	StartCalibration(points CalibrationPoints, accuracy CalibrationAccuracy,
		left, top, right, bottom float32, usePrevious bool)
	StartCollectSamples()
	StopCalibration()
	SetCalibrationData(data []float32)

	// SetCallbacks registers cb for every engine event, replacing any
	// previous registration.
	SetCallbacks(cb Callbacks)
	// RemoveCallbacks detaches the registration. No callback runs after it returns.
	RemoveCallbacks()

	SetAttentionRegion(left, top, right, bottom float32)
	AttentionRegion() ([4]float32, bool)
	RemoveAttentionRegion()
}
