//go:build darwin || linux

package engine

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/teslashibe/go-eyedid/internal/log"
)

// Library is the engine shared library with every entry point resolved.
type Library struct {
	path   string
	handle uintptr

	versionString  func() string
	versionInteger func() int32

	trackerCreate                  func(key string, keyLength uint32) uintptr
	trackerDelete                  func(obj uintptr)
	trackerInit                    func(obj uintptr, opts *Options)
	trackerDeInit                  func(obj uintptr)
	trackerSetCameraFOV            func(obj uintptr, fov float32)
	trackerGetCameraFOV            func(obj uintptr) float32
	trackerInitialized             func(obj uintptr) int32
	trackerSetFPS                  func(obj uintptr, fps int32)
	trackerSetFaceDistance         func(obj uintptr, mm int32)
	trackerAddFrame                func(obj uintptr, ts int64, buf *byte, width, height int32) int32
	trackerGetAuthorizationResult  func(obj uintptr) int32
	trackerSetTargetBoundRegion    func(obj uintptr, left, top, right, bottom float32)
	trackerStartCalibration        func(obj uintptr, points *CalibrationPoints, accuracy *CalibrationAccuracy, left, top, right, bottom float32, usePrevious Boolean)
	trackerStartCollectSamples     func(obj uintptr)
	trackerStopCalibration         func(obj uintptr)
	trackerSetCalibrationData      func(obj uintptr, data *float32, size uint32)
	trackerSetMetricsCallback      func(obj uintptr, onMetrics, onDrop uintptr)
	trackerSetCalibrationCallback  func(obj uintptr, onNextPoint, onProgress, onFinish, onCancel uintptr)
	trackerSetCallbackUserData     func(obj uintptr, userData uintptr)
	trackerRemoveCallbackInterface func(obj uintptr)
	trackerSetAttentionRegion      func(obj uintptr, left, top, right, bottom float32)
	trackerGetAttentionRegion      func(obj uintptr, dst *float32) int32
	trackerRemoveAttentionRegion   func(obj uintptr)
}

func (l *Library) symbols() []struct {
	name string
	fptr any
} {
	return []struct {
		name string
		fptr any
	}{
		{"EyedidVersionString", &l.versionString},
		{"EyedidVersionInteger", &l.versionInteger},
		{"EyedidTrackerCreate", &l.trackerCreate},
		{"EyedidTrackerDelete", &l.trackerDelete},
		{"EyedidTrackerInit", &l.trackerInit},
		{"EyedidTrackerDeInit", &l.trackerDeInit},
		{"EyedidTrackerSetCameraFOV", &l.trackerSetCameraFOV},
		{"EyedidTrackerGetCameraFOV", &l.trackerGetCameraFOV},
		{"EyedidTrackerInitialized", &l.trackerInitialized},
		{"EyedidTrackerSetFPS", &l.trackerSetFPS},
		{"EyedidTrackerSetFaceDistance", &l.trackerSetFaceDistance},
		{"EyedidTrackerAddFrame", &l.trackerAddFrame},
		{"EyedidTrackerGetAuthorizationResult", &l.trackerGetAuthorizationResult},
		{"EyedidTrackerSetTargetBoundRegion", &l.trackerSetTargetBoundRegion},
		{"EyedidTrackerStartCalibration", &l.trackerStartCalibration},
		{"EyedidTrackerStartCollectSamples", &l.trackerStartCollectSamples},
		{"EyedidTrackerStopCalibration", &l.trackerStopCalibration},
		{"EyedidTrackerSetCalibrationData", &l.trackerSetCalibrationData},
		{"EyedidTrackerSetMetricsCallback", &l.trackerSetMetricsCallback},
		{"EyedidTrackerSetCalibrationCallback", &l.trackerSetCalibrationCallback},
		{"EyedidTrackerSetCallbackUserData", &l.trackerSetCallbackUserData},
		{"EyedidTrackerRemoveCallbackInterface", &l.trackerRemoveCallbackInterface},
		{"EyedidTrackerSetAttentionRegion", &l.trackerSetAttentionRegion},
		{"EyedidTrackerGetAttentionRegion", &l.trackerGetAttentionRegion},
		{"EyedidTrackerRemoveAttentionRegion", &l.trackerRemoveAttentionRegion},
	}
}

// Load opens the engine library at path and resolves every entry point.
// Missing symbols are reported together in a *SymbolError.
func Load(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrLibraryLoad, path, err)
	}

	lib := &Library{path: path, handle: handle}
	var missing []string
	for _, s := range lib.symbols() {
		sym, err := purego.Dlsym(handle, s.name)
		if err != nil || sym == 0 {
			missing = append(missing, s.name)
			continue
		}
		purego.RegisterFunc(s.fptr, sym)
	}
	if len(missing) > 0 {
		purego.Dlclose(handle)
		return nil, &SymbolError{Path: path, Missing: missing}
	}

	log.Info("engine library loaded", "path", path, "version", lib.Version())
	return lib, nil
}

// Close unloads the library. Handles created from it must be deleted first.
func (l *Library) Close() error {
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	return err
}

// Version returns the engine version string.
func (l *Library) Version() string { return l.versionString() }

// VersionInt returns the engine version as a 9-digit integer (major, minor, patch).
func (l *Library) VersionInt() int32 { return l.versionInteger() }

// Create creates a tracker handle for the license key.
func (l *Library) Create(licenseKey string) (Handle, error) {
	obj := l.trackerCreate(licenseKey, uint32(len(licenseKey)))
	if obj == 0 {
		return nil, ErrCreateFailed
	}
	return &libHandle{lib: l, obj: obj}, nil
}

// Trampolines are created once per process; purego callbacks cannot be freed.
var trampolines struct {
	once                                           sync.Once
	metrics, drop, nextPoint, progress, fin, cancel uintptr
}

func loadTrampolines() {
	trampolines.once.Do(func() {
		trampolines.metrics = purego.NewCallback(func(userData uintptr, timestamp uint64, data unsafe.Pointer) {
			dispatchMetrics(userData, timestamp, (*Data)(data))
		})
		trampolines.drop = purego.NewCallback(func(userData uintptr, timestamp uint64) {
			dispatchDrop(userData, timestamp)
		})
		trampolines.nextPoint = purego.NewCallback(func(userData uintptr, x, y float32) {
			dispatchNextPoint(userData, x, y)
		})
		trampolines.progress = purego.NewCallback(func(userData uintptr, progress float32) {
			dispatchProgress(userData, progress)
		})
		trampolines.fin = purego.NewCallback(func(userData uintptr, data unsafe.Pointer, size uint32) {
			dispatchFinished(userData, (*float32)(data), size)
		})
		trampolines.cancel = purego.NewCallback(func(userData uintptr, data unsafe.Pointer, size uint32) {
			dispatchCanceled(userData, (*float32)(data), size)
		})
	})
}

type libHandle struct {
	lib *Library
	obj uintptr

	mu    sync.Mutex
	token uintptr
}

func (h *libHandle) Delete() {
	h.RemoveCallbacks()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.obj != 0 {
		h.lib.trackerDelete(h.obj)
		h.obj = 0
	}
}

func (h *libHandle) Init(opts Options) {
	h.lib.trackerInit(h.obj, &opts)
	runtime.KeepAlive(&opts)
}

func (h *libHandle) Deinit()           { h.lib.trackerDeInit(h.obj) }
func (h *libHandle) Initialized() bool { return Boolean(h.lib.trackerInitialized(h.obj)) == True }

func (h *libHandle) AuthorizationResult() int {
	return int(h.lib.trackerGetAuthorizationResult(h.obj))
}

func (h *libHandle) SetFPS(fps int32)             { h.lib.trackerSetFPS(h.obj, fps) }
func (h *libHandle) SetFaceDistance(mm int32)     { h.lib.trackerSetFaceDistance(h.obj, mm) }
func (h *libHandle) SetCameraFOV(radians float32) { h.lib.trackerSetCameraFOV(h.obj, radians) }
func (h *libHandle) CameraFOV() float32           { return h.lib.trackerGetCameraFOV(h.obj) }

func (h *libHandle) SetTargetBoundRegion(left, top, right, bottom float32) {
	h.lib.trackerSetTargetBoundRegion(h.obj, left, top, right, bottom)
}

func (h *libHandle) AddFrame(timestamp int64, buffer []byte, width, height int32) bool {
	if len(buffer) == 0 {
		return false
	}
	ok := h.lib.trackerAddFrame(h.obj, timestamp, &buffer[0], width, height)
	runtime.KeepAlive(buffer)
	return Boolean(ok) == True
}

func (h *libHandle) StartCalibration(points CalibrationPoints, accuracy CalibrationAccuracy,
	left, top, right, bottom float32, usePrevious bool) {
	// points and accuracy are C++ const references on the engine side.
	h.lib.trackerStartCalibration(h.obj, &points, &accuracy, left, top, right, bottom, Bool(usePrevious))
	runtime.KeepAlive(&points)
	runtime.KeepAlive(&accuracy)
}

func (h *libHandle) StartCollectSamples() { h.lib.trackerStartCollectSamples(h.obj) }
func (h *libHandle) StopCalibration()     { h.lib.trackerStopCalibration(h.obj) }

func (h *libHandle) SetCalibrationData(data []float32) {
	if len(data) == 0 {
		h.lib.trackerSetCalibrationData(h.obj, nil, 0)
		return
	}
	h.lib.trackerSetCalibrationData(h.obj, &data[0], uint32(len(data)))
	runtime.KeepAlive(data)
}

func (h *libHandle) SetCallbacks(cb Callbacks) {
	loadTrampolines()

	token := bridge.register(cb)

	h.mu.Lock()
	h.lib.trackerSetMetricsCallback(h.obj, trampolines.metrics, trampolines.drop)
	h.lib.trackerSetCalibrationCallback(h.obj,
		trampolines.nextPoint, trampolines.progress, trampolines.fin, trampolines.cancel)
	h.lib.trackerSetCallbackUserData(h.obj, token)
	old := h.token
	h.token = token
	h.mu.Unlock()

	// The engine now reports with the new token; retire the old one.
	if old != 0 {
		bridge.unregister(old)
	}
}

func (h *libHandle) RemoveCallbacks() {
	h.mu.Lock()
	old := h.token
	if old != 0 && h.obj != 0 {
		h.lib.trackerRemoveCallbackInterface(h.obj)
	}
	h.token = 0
	h.mu.Unlock()

	if old != 0 {
		bridge.unregister(old)
	}
}

func (h *libHandle) SetAttentionRegion(left, top, right, bottom float32) {
	h.lib.trackerSetAttentionRegion(h.obj, left, top, right, bottom)
}

func (h *libHandle) AttentionRegion() ([4]float32, bool) {
	var roi [4]float32
	ok := h.lib.trackerGetAttentionRegion(h.obj, &roi[0])
	return roi, ok != 0
}

func (h *libHandle) RemoveAttentionRegion() { h.lib.trackerRemoveAttentionRegion(h.obj) }
