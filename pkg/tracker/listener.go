package tracker

import "github.com/teslashibe/go-eyedid/pkg/coord"

// TrackingListener receives per-frame results. Calls arrive on engine
// threads in timestamp order.
type TrackingListener interface {
	OnMetrics(timestamp uint64, sample Sample)
	OnDrop(timestamp uint64)
}

// CalibrationListener receives calibration events. Points are in the
// converter's destination space. Blobs are engine-defined and may be empty.
type CalibrationListener interface {
	OnCalibrationProgress(progress float32)
	OnCalibrationNextPoint(x, y float32)
	OnCalibrationFinish(data []float32)
	OnCalibrationCancel(data []float32)
}

// CalibrationObserver is notified of calibration events before the
// CalibrationListener. calibration.Machine implements it.
type CalibrationObserver interface {
	OnNextPoint(p coord.Point)
	OnProgress(progress float32)
	OnFinish(data []float32)
	OnCancel(data []float32)
}

// TrackingFuncs adapts functions to TrackingListener. Nil fields are skipped.
type TrackingFuncs struct {
	Metrics func(timestamp uint64, sample Sample)
	Drop    func(timestamp uint64)
}

func (f TrackingFuncs) OnMetrics(timestamp uint64, sample Sample) {
	if f.Metrics != nil {
		f.Metrics(timestamp, sample)
	}
}

func (f TrackingFuncs) OnDrop(timestamp uint64) {
	if f.Drop != nil {
		f.Drop(timestamp)
	}
}

// CalibrationFuncs adapts functions to CalibrationListener. Nil fields are skipped.
type CalibrationFuncs struct {
	Progress  func(progress float32)
	NextPoint func(x, y float32)
	Finish    func(data []float32)
	Cancel    func(data []float32)
}

func (f CalibrationFuncs) OnCalibrationProgress(progress float32) {
	if f.Progress != nil {
		f.Progress(progress)
	}
}

func (f CalibrationFuncs) OnCalibrationNextPoint(x, y float32) {
	if f.NextPoint != nil {
		f.NextPoint(x, y)
	}
}

func (f CalibrationFuncs) OnCalibrationFinish(data []float32) {
	if f.Finish != nil {
		f.Finish(data)
	}
}

func (f CalibrationFuncs) OnCalibrationCancel(data []float32) {
	if f.Cancel != nil {
		f.Cancel(data)
	}
}
