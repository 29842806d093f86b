package tracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-eyedid/pkg/coord"
	"github.com/teslashibe/go-eyedid/pkg/engine"
)

type sampleRecorder struct {
	mu      sync.Mutex
	samples []Sample
	drops   []uint64
}

func (r *sampleRecorder) OnMetrics(_ uint64, s Sample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

func (r *sampleRecorder) OnDrop(ts uint64) {
	r.mu.Lock()
	r.drops = append(r.drops, ts)
	r.mu.Unlock()
}

func (r *sampleRecorder) last() Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples[len(r.samples)-1]
}

// eventLog records calibration events from both the observer and the
// listener so ordering can be checked.
type eventLog struct {
	mu     sync.Mutex
	events []string
	points []coord.Point
	blobs  [][]float32
}

func (e *eventLog) add(s string) {
	e.mu.Lock()
	e.events = append(e.events, s)
	e.mu.Unlock()
}

func (e *eventLog) OnNextPoint(p coord.Point) { e.add("observer:point") }
func (e *eventLog) OnProgress(float32)        { e.add("observer:progress") }
func (e *eventLog) OnFinish([]float32)        { e.add("observer:finish") }
func (e *eventLog) OnCancel([]float32)        { e.add("observer:cancel") }

func (e *eventLog) listener() CalibrationListener {
	return CalibrationFuncs{
		Progress: func(float32) { e.add("listener:progress") },
		NextPoint: func(x, y float32) {
			e.add("listener:point")
			e.mu.Lock()
			e.points = append(e.points, coord.Pt(float64(x), float64(y)))
			e.mu.Unlock()
		},
		Finish: func(d []float32) {
			e.add("listener:finish")
			e.mu.Lock()
			e.blobs = append(e.blobs, d)
			e.mu.Unlock()
		},
		Cancel: func(d []float32) {
			e.add("listener:cancel")
			e.mu.Lock()
			e.blobs = append(e.blobs, d)
			e.mu.Unlock()
		},
	}
}

func scaled() coord.Transform {
	return coord.New(coord.Diag(2, 2), coord.Pt(10, 10))
}

func TestRouterConvertsGazeAndFixation(t *testing.T) {
	r := NewRouter(nil)
	r.SetConverter(scaled())
	rec := &sampleRecorder{}
	r.SetTrackingListener(rec)

	d := engine.GazeAt(5, 7)
	d.Gaze.FixationX, d.Gaze.FixationY = 1, 2
	r.OnMetrics(42, &d)

	s := rec.last()
	assert.Equal(t, uint64(42), s.Timestamp)
	assert.Equal(t, float32(20), s.Gaze.X)
	assert.Equal(t, float32(24), s.Gaze.Y)
	assert.Equal(t, float32(12), s.Gaze.FixationX)
	assert.Equal(t, float32(14), s.Gaze.FixationY)
}

func TestRouterSentinelPassesThrough(t *testing.T) {
	r := NewRouter(nil)
	r.SetConverter(scaled())
	rec := &sampleRecorder{}
	r.SetTrackingListener(rec)

	// Gaze x is not computed; fixation is. Pairs are handled independently.
	d := engine.GazeAt(5, 7)
	d.Gaze.X = engine.InvalidCoordinate
	d.Gaze.FixationX, d.Gaze.FixationY = 1, 1
	r.OnMetrics(1, &d)

	s := rec.last()
	assert.Equal(t, engine.InvalidCoordinate, s.Gaze.X)
	assert.Equal(t, float32(7), s.Gaze.Y, "half-valid pair must not be converted")
	assert.False(t, s.Gaze.HasPosition())
	assert.Equal(t, float32(12), s.Gaze.FixationX)
	assert.Equal(t, float32(12), s.Gaze.FixationY)
}

func TestRouterDoesNotConvertFailedFrames(t *testing.T) {
	for _, state := range []engine.TrackingState{engine.TrackingFaceMissing, engine.TrackingGazeNotFound} {
		t.Run(state.String(), func(t *testing.T) {
			r := NewRouter(nil)
			r.SetConverter(scaled())
			rec := &sampleRecorder{}
			r.SetTrackingListener(rec)

			d := engine.GazeAt(5, 7)
			d.Gaze.TrackingState = state
			r.OnMetrics(1, &d)

			s := rec.last()
			assert.False(t, s.Gaze.Valid())
			assert.Equal(t, float32(5), s.Gaze.X)
			assert.Equal(t, float32(7), s.Gaze.Y)
		})
	}
}

func TestRouterSplitsPayload(t *testing.T) {
	r := NewRouter(nil)
	rec := &sampleRecorder{}
	r.SetTrackingListener(rec)

	d := engine.GazeAt(0, 0)
	d.Face.Yaw = 0.3
	d.Face.CenterZ = 550
	d.Blink.IsBlinkLeft = engine.True
	d.Blink.LeftOpenness = 0.1
	d.UserStatus.IsDrowsy = engine.True
	d.UserStatus.AttentionScore = 0.75
	r.OnMetrics(9, &d)

	s := rec.last()
	assert.Equal(t, float32(0.3), s.Face.Yaw)
	assert.Equal(t, float32(550), s.Face.Center[2])
	assert.True(t, s.Blink.Left)
	assert.False(t, s.Blink.Right)
	assert.Equal(t, float32(0.1), s.Blink.LeftOpenness)
	assert.True(t, s.UserStatus.Drowsy)
	assert.Equal(t, float32(0.75), s.UserStatus.AttentionScore)
}

func TestRouterWithoutListeners(t *testing.T) {
	r := NewRouter(nil)
	d := engine.GazeAt(1, 1)

	assert.NotPanics(t, func() {
		r.OnMetrics(1, &d)
		r.OnDrop(2)
		r.OnCalibrationProgress(0.5)
		r.OnCalibrationNextPoint(1, 1)
		r.OnCalibrationFinished([]float32{1})
		r.OnCalibrationCanceled(nil)
	})
}

func TestRouterCalibrationEvents(t *testing.T) {
	log := &eventLog{}
	r := NewRouter(log)
	r.SetConverter(scaled())
	r.SetCalibrationListener(log.listener())

	r.OnCalibrationProgress(0.4)
	r.OnCalibrationNextPoint(3, 4)
	blob := []float32{0.1, 0.2}
	r.OnCalibrationFinished(blob)
	r.OnCalibrationCanceled([]float32{})

	assert.Equal(t, []string{
		"observer:progress", "listener:progress",
		"observer:point", "listener:point",
		"observer:finish", "listener:finish",
		"observer:cancel", "listener:cancel",
	}, log.events)
	require.Len(t, log.points, 1)
	assert.Equal(t, coord.Pt(16, 18), log.points[0])
	assert.Equal(t, blob, log.blobs[0])
	assert.NotNil(t, log.blobs[1])
	assert.Empty(t, log.blobs[1])
}

func TestRouterReplaceListener(t *testing.T) {
	r := NewRouter(nil)
	first := &sampleRecorder{}
	second := &sampleRecorder{}

	r.SetTrackingListener(first)
	r.SetTrackingListener(second)
	r.OnDrop(5)

	assert.Empty(t, first.drops)
	assert.Equal(t, []uint64{5}, second.drops)

	r.SetTrackingListener(nil)
	r.OnDrop(6)
	assert.Equal(t, []uint64{5}, second.drops)
}
