package engine

import (
	"math"
	"testing"
	"unsafe"
)

func TestStructLayout(t *testing.T) {
	sizes := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"GazeData", unsafe.Sizeof(GazeData{}), 24},
		{"FaceData", unsafe.Sizeof(FaceData{}), 44},
		{"BlinkData", unsafe.Sizeof(BlinkData{}), 20},
		{"UserStatusData", unsafe.Sizeof(UserStatusData{}), 12},
		{"Data", unsafe.Sizeof(Data{}), 100},
		{"Options", unsafe.Sizeof(Options{}), 24},
		{"Boolean", unsafe.Sizeof(Boolean(0)), 4},
	}
	for _, s := range sizes {
		if s.got != s.want {
			t.Errorf("sizeof(%s) = %d, want %d", s.name, s.got, s.want)
		}
	}

	var d Data
	offsets := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"Data.Face", unsafe.Offsetof(d.Face), 24},
		{"Data.Blink", unsafe.Offsetof(d.Blink), 68},
		{"Data.UserStatus", unsafe.Offsetof(d.UserStatus), 88},
		{"GazeData.TrackingState", unsafe.Offsetof(d.Gaze.TrackingState), 16},
		{"FaceData.CenterZ", unsafe.Offsetof(d.Face.CenterZ), 40},
		{"BlinkData.LeftOpenness", unsafe.Offsetof(d.Blink.LeftOpenness), 12},
		{"UserStatusData.AttentionScore", unsafe.Offsetof(d.UserStatus.AttentionScore), 8},
	}
	for _, o := range offsets {
		if o.got != o.want {
			t.Errorf("offsetof(%s) = %d, want %d", o.name, o.got, o.want)
		}
	}

	var opts Options
	if off := unsafe.Offsetof(opts.CameraFOV); off != 16 {
		t.Errorf("offsetof(Options.CameraFOV) = %d, want 16", off)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.UseBlink.Go() || opts.UseUserStatus.Go() {
		t.Error("blink and user status should be off by default")
	}
	if !opts.UseGazeFilter.Go() || !opts.StreamMode.Go() {
		t.Error("gaze filter and stream mode should be on by default")
	}
	if math.Abs(float64(opts.CameraFOV)-math.Pi/4) > 1e-6 {
		t.Errorf("CameraFOV = %v, want pi/4", opts.CameraFOV)
	}
	if opts.MaxConcurrency != 0 {
		t.Errorf("MaxConcurrency = %d, want 0", opts.MaxConcurrency)
	}
}

func TestEnumStrings(t *testing.T) {
	if MovementSaccade != 2 || MovementUnknown != 3 {
		t.Error("movement state values must match the engine")
	}
	if TrackingGazeNotFound.String() != "gaze_not_found" {
		t.Errorf("got %q", TrackingGazeNotFound.String())
	}
	for _, s := range []string{"default", "low", "high"} {
		if got := ParseAccuracy(s).String(); got != s {
			t.Errorf("ParseAccuracy(%q).String() = %q", s, got)
		}
	}
	if ParseAccuracy("bogus") != CalibrationAccuracyDefault {
		t.Error("unknown accuracy should map to default")
	}
	if CalibrationPoints(3).Valid() {
		t.Error("3 points should be invalid")
	}
}
