package calibration

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-eyedid/internal/log"
	"github.com/teslashibe/go-eyedid/pkg/coord"
)

// Driver issues engine-level calibration commands.
type Driver interface {
	StartEngineCalibration(req Request) error
	StopEngineCalibration() error
	CollectEngineSamples() error
}

// Machine is the calibration state machine. Engine events arrive through
// OnNextPoint, OnProgress, OnFinish and OnCancel.
type Machine struct {
	driver Driver
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	active  *Session
	last    *Session
	pending *Pending

	// starting is set while the engine start call is in flight and started
	// once it returned. A Stop during the call is held in stopRequested and
	// forwarded after the start returns.
	starting      bool
	started       bool
	stopRequested bool

	// onAbort receives the empty blob of a session canceled locally, before
	// the engine started or by Reset.
	onAbort func(data []float32)

	observersMu sync.RWMutex
	observers   map[int]func(Session)
	nextObs     int
}

// NewMachine creates a machine in Idle. A nil logger uses the package default.
func NewMachine(driver Driver, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = log.Component("calibration")
	}
	return &Machine{
		driver:    driver,
		logger:    logger,
		observers: make(map[int]func(Session)),
	}
}

// SetAbortHandler sets fn to run when a delayed start is canceled locally,
// so listeners see the same cancel they would get from the engine.
// Set it before any session starts.
func (m *Machine) SetAbortHandler(fn func(data []float32)) {
	m.onAbort = fn
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active returns the running session, if any.
func (m *Machine) Active() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Session{}, false
	}
	return m.active.snapshot(), true
}

// Last returns the most recently finished or canceled session.
func (m *Machine) Last() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return Session{}, false
	}
	return m.last.snapshot(), true
}

// Result returns the blob of the last completed session, or nil if none.
func (m *Machine) Result() []float32 {
	s, ok := m.Last()
	if !ok {
		return nil
	}
	return s.Data
}

// Subscribe registers fn for every session change. The returned func removes it.
// Observers run on the goroutine that caused the change and must not block.
func (m *Machine) Subscribe(fn func(Session)) func() {
	m.observersMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.observersMu.Unlock()

	return func() {
		m.observersMu.Lock()
		delete(m.observers, id)
		m.observersMu.Unlock()
	}
}

func (m *Machine) notify(s Session) {
	m.observersMu.RLock()
	fns := make([]func(Session), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.observersMu.RUnlock()

	for _, fn := range fns {
		fn(s)
	}
}

// begin moves Idle to PendingStart. It is the only way into a session.
func (m *Machine) begin(req Request, immediate bool) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		return nil, ErrAlreadyInProgress
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m.state = PendingStart
	m.starting = immediate
	m.started = false
	m.stopRequested = false
	m.active = &Session{
		ID:        uuid.NewString(),
		Request:   req,
		State:     PendingStart,
		StartedAt: time.Now(),
	}
	return m.active, nil
}

// Start asks the engine to calibrate now. It fails with ErrAlreadyInProgress
// unless the machine is Idle.
func (m *Machine) Start(req Request) (Session, error) {
	s, err := m.begin(req, true)
	if err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	snap := s.snapshot()
	m.mu.Unlock()
	m.notify(snap)

	if err := m.startEngine(s); err != nil {
		return Session{}, err
	}
	return snap, nil
}

func (m *Machine) startEngine(s *Session) error {
	m.logger.Info("starting calibration",
		"session", s.ID,
		"points", int(s.Request.Points),
		"accuracy", s.Request.Accuracy.String(),
		"region", s.Request.Region)

	if err := m.driver.StartEngineCalibration(s.Request); err != nil {
		m.rollback(s)
		return err
	}

	m.mu.Lock()
	current := m.active == s
	stop := current && m.stopRequested
	if current {
		m.starting = false
		m.started = true
		m.stopRequested = false
	}
	m.mu.Unlock()

	if stop {
		m.logger.Info("stopping calibration requested during engine start", "session", s.ID)
		return m.driver.StopEngineCalibration()
	}
	return nil
}

// rollback returns to Idle after the engine refused to start.
func (m *Machine) rollback(s *Session) {
	m.mu.Lock()
	if m.active != s {
		m.mu.Unlock()
		return
	}
	m.active = nil
	m.state = Idle
	m.starting, m.started, m.stopRequested = false, false, false
	s.State = Idle
	s.EndedAt = time.Now()
	snap := s.snapshot()
	m.mu.Unlock()

	m.logger.Warn("calibration start failed, back to idle", "session", s.ID)
	m.notify(snap)
}

// StartAfter reserves the session now and issues the engine start after
// delay. The returned Pending reports when the engine start was issued.
// Stop, Pending.Cancel or ctx cancellation during the delay suppress the
// engine start and cancel the session locally with an empty blob.
func (m *Machine) StartAfter(ctx context.Context, delay time.Duration, req Request) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := m.begin(req, false)
	if err != nil {
		return nil, err
	}

	p := &Pending{m: m, session: s.ID, done: make(chan struct{})}
	m.mu.Lock()
	m.pending = p
	snap := s.snapshot()
	m.mu.Unlock()
	m.notify(snap)

	// Checked before arming the timer.
	if err := ctx.Err(); err != nil {
		m.abort(p, err)
		return p, nil
	}

	m.logger.Debug("calibration start scheduled", "session", s.ID, "delay", delay)
	go m.runPending(ctx, p, s, delay)
	return p, nil
}

func (m *Machine) runPending(ctx context.Context, p *Pending, s *Session, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		m.abort(p, ctx.Err())
		return
	case <-p.done:
		return
	}

	// Checked again right before the engine call. Stop takes the same lock,
	// so it either aborts here or is deferred until the start returns.
	m.mu.Lock()
	if m.pending != p || ctx.Err() != nil {
		m.mu.Unlock()
		m.abort(p, context.Cause(ctx))
		return
	}
	m.pending = nil
	m.starting = true
	m.mu.Unlock()

	p.finish(m.startEngine(s))
}

// abort cancels a pending session locally. Only the first abort for p has
// any effect.
func (m *Machine) abort(p *Pending, cause error) {
	if cause == nil {
		cause = ErrCanceled
	}

	m.mu.Lock()
	if m.pending != p {
		m.mu.Unlock()
		return
	}
	m.pending = nil
	s := m.active
	var snap Session
	if s != nil {
		s.State = Canceled
		s.Data = []float32{}
		s.EndedAt = time.Now()
		snap = s.snapshot()
		m.last = s
		m.active = nil
	}
	m.state = Idle
	m.starting, m.started, m.stopRequested = false, false, false
	m.mu.Unlock()

	m.logger.Info("pending calibration canceled before engine start", "session", p.session, "cause", cause)
	p.finish(cause)
	if s != nil {
		m.notify(snap)
		if m.onAbort != nil {
			m.onAbort([]float32{})
		}
	}
}

// Stop requests cancellation. During a delayed start the engine start is
// suppressed and the session is canceled locally. While the engine start
// call is in flight the stop is issued as soon as that call returns. Once the
// engine is calibrating, the stop is forwarded and the session ends when the
// engine reports cancel. Stop in Idle does nothing.
func (m *Machine) Stop() error {
	m.mu.Lock()
	state := m.state
	p := m.pending
	started := m.started
	if state != Idle && p == nil && m.starting {
		m.stopRequested = true
		m.mu.Unlock()
		m.logger.Info("stop requested while the engine start is in flight")
		return nil
	}
	m.mu.Unlock()

	switch {
	case state == Idle:
		return nil
	case p != nil:
		m.abort(p, ErrCanceled)
		return nil
	case started:
		m.logger.Info("stopping calibration")
		return m.driver.StopEngineCalibration()
	default:
		return nil
	}
}

// CollectSamples forwards to the engine in any state; the engine decides
// whether a target is active.
func (m *Machine) CollectSamples() error {
	if st := m.State(); st != Collecting {
		m.logger.Debug("collect samples outside collecting state", "state", st.String())
	}
	return m.driver.CollectEngineSamples()
}

// OnNextPoint records a new target in display pixels.
func (m *Machine) OnNextPoint(p coord.Point) {
	m.mu.Lock()
	s := m.active
	if s == nil || !m.state.Active() {
		m.mu.Unlock()
		m.logger.Debug("next point without active session", "x", p.X, "y", p.Y)
		return
	}
	m.state = Collecting
	s.State = Collecting
	s.Point = p
	snap := s.snapshot()
	m.mu.Unlock()
	m.notify(snap)
}

// OnProgress records per-point progress in [0, 1].
func (m *Machine) OnProgress(progress float32) {
	m.mu.Lock()
	s := m.active
	if s == nil {
		m.mu.Unlock()
		return
	}
	s.Progress = progress
	snap := s.snapshot()
	m.mu.Unlock()
	m.notify(snap)
}

// OnFinish stores the result and returns to Idle.
func (m *Machine) OnFinish(data []float32) {
	m.complete(Finished, data)
}

// OnCancel stores the possibly partial blob and returns to Idle. An empty
// blob is kept distinct from a missing one.
func (m *Machine) OnCancel(data []float32) {
	m.complete(Canceled, data)
}

func (m *Machine) complete(state State, data []float32) {
	m.end(state, data, false)
}

// Reset ends the active session locally with an empty blob, as the engine
// would on cancel. It is for when the engine can no longer report the
// outcome, such as after its callbacks were removed. The abort handler sees
// the cancel. Reset in Idle does nothing.
func (m *Machine) Reset() {
	m.mu.Lock()
	p := m.pending
	m.mu.Unlock()

	if p != nil {
		m.abort(p, ErrCanceled)
		return
	}
	if m.end(Canceled, []float32{}, true) && m.onAbort != nil {
		m.onAbort([]float32{})
	}
}

// end moves the session to a terminal state and back to Idle. With
// requireActive it does nothing unless a session is active.
func (m *Machine) end(state State, data []float32, requireActive bool) bool {
	blob := append([]float32{}, data...)

	m.mu.Lock()
	s := m.active
	if s == nil && requireActive {
		m.mu.Unlock()
		return false
	}
	if s == nil {
		// The engine ended a session this machine did not start.
		s = &Session{ID: uuid.NewString(), StartedAt: time.Now()}
	}
	p := m.pending
	m.pending = nil
	s.State = state
	s.Data = blob
	s.EndedAt = time.Now()
	if state == Finished {
		s.Progress = 1
	}
	m.last = s
	m.active = nil
	m.state = Idle
	m.starting, m.started, m.stopRequested = false, false, false
	snap := s.snapshot()
	m.mu.Unlock()

	if p != nil {
		p.finish(ErrCanceled)
	}
	m.logger.Info("calibration "+state.String(), "session", s.ID, "values", len(blob))
	m.notify(snap)
	return true
}
