package tracker

import (
	"sync/atomic"

	"github.com/teslashibe/go-eyedid/pkg/coord"
	"github.com/teslashibe/go-eyedid/pkg/engine"
)

// Router turns engine callbacks into typed samples in display space. It
// implements engine.Callbacks. With no listener set, events are discarded.
type Router struct {
	converter   atomic.Pointer[coord.Transform]
	tracking    atomic.Pointer[trackingSlot]
	calibration atomic.Pointer[calibrationSlot]
	observer    CalibrationObserver
}

type trackingSlot struct{ l TrackingListener }

type calibrationSlot struct{ l CalibrationListener }

// NewRouter creates a router with the identity converter. observer may be nil.
func NewRouter(observer CalibrationObserver) *Router {
	r := &Router{observer: observer}
	r.SetConverter(coord.Identity())
	return r
}

// Converter returns the camera to display transform.
func (r *Router) Converter() coord.Transform {
	return *r.converter.Load()
}

// SetConverter replaces the transform.
func (r *Router) SetConverter(t coord.Transform) {
	r.converter.Store(&t)
}

// SetTrackingListener replaces the tracking listener. Nil removes it.
// A delivery already in flight may still reach the previous listener.
func (r *Router) SetTrackingListener(l TrackingListener) {
	if l == nil {
		r.tracking.Store(nil)
		return
	}
	r.tracking.Store(&trackingSlot{l: l})
}

// SetCalibrationListener replaces the calibration listener. Nil removes it.
func (r *Router) SetCalibrationListener(l CalibrationListener) {
	if l == nil {
		r.calibration.Store(nil)
		return
	}
	r.calibration.Store(&calibrationSlot{l: l})
}

func (r *Router) trackingListener() TrackingListener {
	if s := r.tracking.Load(); s != nil {
		return s.l
	}
	return nil
}

func (r *Router) calibrationListener() CalibrationListener {
	if s := r.calibration.Load(); s != nil {
		return s.l
	}
	return nil
}

// OnMetrics converts the gaze and fixation pairs independently. A pair is
// converted only on a successful frame and when neither component is the
// invalid sentinel.
func (r *Router) OnMetrics(timestamp uint64, data *engine.Data) {
	l := r.trackingListener()
	if l == nil || data == nil {
		return
	}

	s := newSample(timestamp, data)
	if s.Gaze.Valid() {
		conv := r.Converter()
		if s.Gaze.HasPosition() {
			p := conv.Convert(s.Gaze.Position())
			s.Gaze.X, s.Gaze.Y = float32(p.X), float32(p.Y)
		}
		if s.Gaze.HasFixation() {
			p := conv.Convert(s.Gaze.Fixation())
			s.Gaze.FixationX, s.Gaze.FixationY = float32(p.X), float32(p.Y)
		}
	}
	l.OnMetrics(timestamp, s)
}

func (r *Router) OnDrop(timestamp uint64) {
	if l := r.trackingListener(); l != nil {
		l.OnDrop(timestamp)
	}
}

func (r *Router) OnCalibrationProgress(progress float32) {
	if r.observer != nil {
		r.observer.OnProgress(progress)
	}
	if l := r.calibrationListener(); l != nil {
		l.OnCalibrationProgress(progress)
	}
}

// OnCalibrationNextPoint converts the target unconditionally; calibration
// targets are never the sentinel.
func (r *Router) OnCalibrationNextPoint(x, y float32) {
	p := r.Converter().Convert(coord.Pt(float64(x), float64(y)))
	if r.observer != nil {
		r.observer.OnNextPoint(p)
	}
	if l := r.calibrationListener(); l != nil {
		l.OnCalibrationNextPoint(float32(p.X), float32(p.Y))
	}
}

func (r *Router) OnCalibrationFinished(data []float32) {
	if r.observer != nil {
		r.observer.OnFinish(data)
	}
	if l := r.calibrationListener(); l != nil {
		l.OnCalibrationFinish(data)
	}
}

func (r *Router) OnCalibrationCanceled(data []float32) {
	if r.observer != nil {
		r.observer.OnCancel(data)
	}
	if l := r.calibrationListener(); l != nil {
		l.OnCalibrationCancel(data)
	}
}

var _ engine.Callbacks = (*Router)(nil)
