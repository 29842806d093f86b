package calibration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-eyedid/pkg/coord"
	"github.com/teslashibe/go-eyedid/pkg/engine"
)

type fakeDriver struct {
	mu       sync.Mutex
	starts   []Request
	stops    int
	collects int
	startErr error
	started  chan Request
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{started: make(chan Request, 8)}
}

func (d *fakeDriver) StartEngineCalibration(req Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.starts = append(d.starts, req)
	d.started <- req
	return nil
}

func (d *fakeDriver) StopEngineCalibration() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return nil
}

func (d *fakeDriver) CollectEngineSamples() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.collects++
	return nil
}

func (d *fakeDriver) startCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.starts)
}

func fullScreen() Request {
	return Request{
		Points:   engine.CalibrationPointFive,
		Accuracy: engine.CalibrationAccuracyDefault,
		Region:   coord.R(0, 0, 1920, 1080),
	}
}

func TestStartTwiceReturnsAlreadyInProgress(t *testing.T) {
	d := newFakeDriver()
	m := NewMachine(d, nil)

	first, err := m.Start(fullScreen())
	require.NoError(t, err)

	second := Request{
		Points:        engine.CalibrationPointOne,
		Accuracy:      engine.CalibrationAccuracyHigh,
		Region:        coord.R(10, 10, 20, 20),
		ReusePrevious: true,
	}
	_, err = m.Start(second)
	assert.ErrorIs(t, err, ErrAlreadyInProgress)

	active, ok := m.Active()
	require.True(t, ok)
	assert.Equal(t, first.ID, active.ID)
	assert.Equal(t, fullScreen(), active.Request, "rejected start must not alter the session")
	assert.Equal(t, 1, d.startCount())
}

func TestConcurrentStartAdmitsOne(t *testing.T) {
	d := newFakeDriver()
	d.started = make(chan Request, 64)
	m := NewMachine(d, nil)

	var ok, busy atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Start(fullScreen())
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrAlreadyInProgress):
				busy.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(31), busy.Load())
	assert.Equal(t, 1, d.startCount())
}

func TestFinishStoresBlobAndReturnsToIdle(t *testing.T) {
	m := NewMachine(newFakeDriver(), nil)

	_, err := m.Start(fullScreen())
	require.NoError(t, err)
	assert.Equal(t, PendingStart, m.State())

	m.OnNextPoint(coord.Pt(100, 100))
	assert.Equal(t, Collecting, m.State())
	active, _ := m.Active()
	assert.Equal(t, coord.Pt(100, 100), active.Point)

	m.OnProgress(0.5)
	active, _ = m.Active()
	assert.Equal(t, float32(0.5), active.Progress)

	blob := []float32{0.1, 0.2, 0.3, 0.4}
	m.OnFinish(blob)

	assert.Equal(t, Idle, m.State())
	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, Finished, last.State)
	assert.Equal(t, blob, last.Data)
	assert.Equal(t, blob, m.Result())

	// Stored blob is a copy.
	blob[0] = 9
	assert.Equal(t, float32(0.1), m.Result()[0])

	// Finished session is immediately eligible for a new start.
	_, err = m.Start(fullScreen())
	assert.NoError(t, err)
}

func TestCancelEmptyAndPartialBlobsDiffer(t *testing.T) {
	tests := []struct {
		name string
		data []float32
		want []float32
	}{
		{"empty", []float32{}, []float32{}},
		{"nil", nil, []float32{}},
		{"partial", []float32{1.5, 2.5}, []float32{1.5, 2.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(newFakeDriver(), nil)
			_, err := m.Start(fullScreen())
			require.NoError(t, err)
			m.OnNextPoint(coord.Pt(1, 1))

			m.OnCancel(tt.data)

			assert.Equal(t, Idle, m.State())
			last, ok := m.Last()
			require.True(t, ok)
			assert.Equal(t, Canceled, last.State)
			require.NotNil(t, last.Data)
			assert.Equal(t, tt.want, last.Data)
		})
	}
}

func TestStartFailureRollsBack(t *testing.T) {
	d := newFakeDriver()
	d.startErr = errors.New("not initialized")
	m := NewMachine(d, nil)

	_, err := m.Start(fullScreen())
	require.Error(t, err)
	assert.Equal(t, Idle, m.State())
	_, ok := m.Active()
	assert.False(t, ok)

	d.mu.Lock()
	d.startErr = nil
	d.mu.Unlock()
	_, err = m.Start(fullScreen())
	assert.NoError(t, err)
}

func TestInvalidRequest(t *testing.T) {
	m := NewMachine(newFakeDriver(), nil)

	req := fullScreen()
	req.Points = 3
	_, err := m.Start(req)
	assert.ErrorIs(t, err, ErrInvalidPoints)

	req = fullScreen()
	req.Region = coord.R(100, 100, 100, 200)
	_, err = m.Start(req)
	assert.ErrorIs(t, err, coord.ErrInvalidRegion)

	assert.Equal(t, Idle, m.State())
}

func TestAlreadyInProgressIgnoresRequest(t *testing.T) {
	m := NewMachine(newFakeDriver(), nil)
	_, err := m.Start(fullScreen())
	require.NoError(t, err)

	req := fullScreen()
	req.Points = 3
	_, err = m.Start(req)
	assert.ErrorIs(t, err, ErrAlreadyInProgress)

	req = fullScreen()
	req.Region = coord.R(100, 100, 100, 200)
	_, err = m.StartAfter(context.Background(), time.Hour, req)
	assert.ErrorIs(t, err, ErrAlreadyInProgress)
}

func TestStartAfterIssuesEngineStart(t *testing.T) {
	d := newFakeDriver()
	m := NewMachine(d, nil)

	p, err := m.StartAfter(context.Background(), 10*time.Millisecond, fullScreen())
	require.NoError(t, err)
	assert.Equal(t, PendingStart, m.State())

	// A second request during the delay is rejected.
	_, err = m.StartAfter(context.Background(), 0, fullScreen())
	assert.ErrorIs(t, err, ErrAlreadyInProgress)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
	assert.Equal(t, 1, d.startCount())

	active, ok := m.Active()
	require.True(t, ok)
	assert.Equal(t, p.Session(), active.ID)
}

func TestStopDuringDelaySuppressesEngineStart(t *testing.T) {
	d := newFakeDriver()
	m := NewMachine(d, nil)

	var seen []Session
	var mu sync.Mutex
	m.Subscribe(func(s Session) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	p, err := m.StartAfter(context.Background(), time.Hour, fullScreen())
	require.NoError(t, err)

	require.NoError(t, m.Stop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx), ErrCanceled)
	assert.Equal(t, 0, d.startCount())
	assert.Equal(t, 0, d.stops, "engine was never started, nothing to stop")
	assert.Equal(t, Idle, m.State())

	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, Canceled, last.State)
	assert.Equal(t, []float32{}, last.Data)

	mu.Lock()
	require.Len(t, seen, 2)
	assert.Equal(t, PendingStart, seen[0].State)
	assert.Equal(t, Canceled, seen[1].State)
	mu.Unlock()

	// Machine accepts a new start.
	_, err = m.Start(fullScreen())
	assert.NoError(t, err)
}

func TestPendingCancelAndContext(t *testing.T) {
	t.Run("cancel", func(t *testing.T) {
		d := newFakeDriver()
		m := NewMachine(d, nil)
		p, err := m.StartAfter(context.Background(), time.Hour, fullScreen())
		require.NoError(t, err)

		p.Cancel()
		p.Cancel()
		<-p.Done()
		assert.ErrorIs(t, p.Err(), ErrCanceled)
		assert.Equal(t, Idle, m.State())
		assert.Equal(t, 0, d.startCount())
	})

	t.Run("context canceled during delay", func(t *testing.T) {
		d := newFakeDriver()
		m := NewMachine(d, nil)
		ctx, cancel := context.WithCancel(context.Background())
		p, err := m.StartAfter(ctx, time.Hour, fullScreen())
		require.NoError(t, err)

		cancel()
		select {
		case <-p.Done():
		case <-time.After(time.Second):
			t.Fatal("pending start not canceled")
		}
		assert.ErrorIs(t, p.Err(), context.Canceled)
		assert.Equal(t, Idle, m.State())
		assert.Equal(t, 0, d.startCount())
	})

	t.Run("context already done", func(t *testing.T) {
		m := NewMachine(newFakeDriver(), nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.StartAfter(ctx, time.Millisecond, fullScreen())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, Idle, m.State())
	})
}

func TestStopForwardsOnceStarted(t *testing.T) {
	d := newFakeDriver()
	m := NewMachine(d, nil)

	_, err := m.Start(fullScreen())
	require.NoError(t, err)
	m.OnNextPoint(coord.Pt(5, 5))

	require.NoError(t, m.Stop())
	assert.Equal(t, 1, d.stops)
	// Terminal state is reached only through the engine callback.
	assert.Equal(t, Collecting, m.State())

	m.OnCancel([]float32{0.7})
	assert.Equal(t, Idle, m.State())
}

func TestStopIdleIsNoop(t *testing.T) {
	d := newFakeDriver()
	m := NewMachine(d, nil)
	require.NoError(t, m.Stop())
	assert.Equal(t, 0, d.stops)
}

func TestCollectSamplesForwardedInAnyState(t *testing.T) {
	d := newFakeDriver()
	m := NewMachine(d, nil)

	require.NoError(t, m.CollectSamples())
	_, err := m.Start(fullScreen())
	require.NoError(t, err)
	m.OnNextPoint(coord.Pt(1, 2))
	require.NoError(t, m.CollectSamples())

	assert.Equal(t, 2, d.collects)
}

func TestNextPointWithoutSessionIgnored(t *testing.T) {
	m := NewMachine(newFakeDriver(), nil)
	m.OnNextPoint(coord.Pt(1, 1))
	assert.Equal(t, Idle, m.State())
}

func TestUnsubscribe(t *testing.T) {
	m := NewMachine(newFakeDriver(), nil)
	var calls atomic.Int32
	unsubscribe := m.Subscribe(func(Session) { calls.Add(1) })

	_, err := m.Start(fullScreen())
	require.NoError(t, err)
	unsubscribe()
	m.OnFinish([]float32{1})

	assert.Equal(t, int32(1), calls.Load())
}

// stopInStartDriver calls Stop on the machine from inside the engine start,
// the way a dashboard stop can land while the start call is in flight.
type stopInStartDriver struct {
	m *Machine

	mu    sync.Mutex
	calls []string
}

func (d *stopInStartDriver) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *stopInStartDriver) StartEngineCalibration(Request) error {
	if err := d.m.Stop(); err != nil {
		return err
	}
	d.record("start")
	return nil
}

func (d *stopInStartDriver) StopEngineCalibration() error {
	d.record("stop")
	return nil
}

func (d *stopInStartDriver) CollectEngineSamples() error { return nil }

func (d *stopInStartDriver) history() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func TestStopDuringEngineStartIsIssuedAfterStart(t *testing.T) {
	t.Run("immediate", func(t *testing.T) {
		d := &stopInStartDriver{}
		m := NewMachine(d, nil)
		d.m = m

		_, err := m.Start(fullScreen())
		require.NoError(t, err)
		assert.Equal(t, []string{"start", "stop"}, d.history())

		m.OnCancel([]float32{})
		assert.Equal(t, Idle, m.State())
	})

	t.Run("delayed", func(t *testing.T) {
		d := &stopInStartDriver{}
		m := NewMachine(d, nil)
		d.m = m

		p, err := m.StartAfter(context.Background(), time.Millisecond, fullScreen())
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, p.Wait(ctx))
		assert.Equal(t, []string{"start", "stop"}, d.history())

		m.OnCancel([]float32{0.5})
		assert.Equal(t, Idle, m.State())
		_, err = m.Start(fullScreen())
		assert.NoError(t, err)
	})
}

func TestStopAfterStartIsForwardedOnce(t *testing.T) {
	d := newFakeDriver()
	m := NewMachine(d, nil)
	_, err := m.Start(fullScreen())
	require.NoError(t, err)

	require.NoError(t, m.Stop())
	assert.Equal(t, 1, d.stops)
	assert.Equal(t, PendingStart, m.State())
}

func TestReset(t *testing.T) {
	t.Run("active session", func(t *testing.T) {
		d := newFakeDriver()
		m := NewMachine(d, nil)
		var aborted [][]float32
		m.SetAbortHandler(func(data []float32) { aborted = append(aborted, data) })

		_, err := m.Start(fullScreen())
		require.NoError(t, err)
		m.OnNextPoint(coord.Pt(1, 1))

		m.Reset()
		assert.Equal(t, Idle, m.State())
		last, ok := m.Last()
		require.True(t, ok)
		assert.Equal(t, Canceled, last.State)
		assert.Equal(t, []float32{}, last.Data)
		require.Len(t, aborted, 1)
		assert.Equal(t, 0, d.stops, "the engine is not asked to stop")

		_, err = m.Start(fullScreen())
		assert.NoError(t, err)
	})

	t.Run("pending start", func(t *testing.T) {
		d := newFakeDriver()
		m := NewMachine(d, nil)
		p, err := m.StartAfter(context.Background(), time.Hour, fullScreen())
		require.NoError(t, err)

		m.Reset()
		<-p.Done()
		assert.ErrorIs(t, p.Err(), ErrCanceled)
		assert.Equal(t, Idle, m.State())
		assert.Equal(t, 0, d.startCount())
	})

	t.Run("idle", func(t *testing.T) {
		m := NewMachine(newFakeDriver(), nil)
		var aborted int
		m.SetAbortHandler(func([]float32) { aborted++ })
		m.Reset()
		assert.Equal(t, 0, aborted)
		_, ok := m.Last()
		assert.False(t, ok)
	})
}
