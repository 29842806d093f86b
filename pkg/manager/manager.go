// Package manager drives a tracker the way the desktop sample does: it
// smooths gaze into application window pixels, runs full-window
// calibrations with a settle delay, keeps calibration profiles and
// publishes every event.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-eyedid/internal/log"
	"github.com/teslashibe/go-eyedid/pkg/calibration"
	"github.com/teslashibe/go-eyedid/pkg/coord"
	"github.com/teslashibe/go-eyedid/pkg/display"
	"github.com/teslashibe/go-eyedid/pkg/engine"
	"github.com/teslashibe/go-eyedid/pkg/profile"
	"github.com/teslashibe/go-eyedid/pkg/protocol"
	"github.com/teslashibe/go-eyedid/pkg/tracker"
)

// ErrNoStore is returned by profile operations when no store is configured.
var ErrNoStore = errors.New("manager: no profile store")

// Handlers are optional UI hooks. They run on engine callback goroutines
// and must not block.
type Handlers struct {
	// Gaze receives the smoothed point in window pixels. ok is false on
	// frames without a gaze estimate.
	Gaze                 func(x, y int, ok bool)
	CalibrationStart     func()
	CalibrationProgress  func(progress float32)
	CalibrationNextPoint func(x, y int)
	CalibrationFinish    func(data []float32)
	CalibrationCancel    func(data []float32)
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore saves finished calibrations to s.
func WithStore(s profile.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithPublisher sends events to p.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.pub = p
		}
	}
}

// WithHandlers installs UI hooks.
func WithHandlers(h Handlers) Option {
	return func(m *Manager) { m.handlers = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager is the tracking and calibration listener of a Tracker.
type Manager struct {
	config   Config
	tracker  *tracker.Tracker
	windows  display.WindowLocator
	store    profile.Store
	pub      Publisher
	handlers Handlers
	logger   *slog.Logger

	filterMu sync.Mutex
	filter   *gazeFilter
	stats    *gazeStats

	unsubscribe func()
}

// New registers a manager as both listeners of t. Gaze is reported
// relative to the window named by config.Window as located by windows.
func New(config Config, t *tracker.Tracker, windows display.WindowLocator, opts ...Option) *Manager {
	if windows == nil {
		windows = display.NewStaticWindow()
	}
	m := &Manager{
		config:  config,
		tracker: t,
		windows: windows,
		pub:     discard{},
		filter:  newGazeFilter(config.FilterSize),
		stats:   newGazeStats(config.StatsWindow),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.Component("manager")
	}

	t.SetTrackingListener(m)
	t.SetCalibrationListener(m)
	m.unsubscribe = t.Calibration().Subscribe(m.onSession)
	return m
}

// Tracker returns the managed tracker.
func (m *Manager) Tracker() *tracker.Tracker {
	return m.tracker
}

// Initialize authenticates the engine and applies the stream settings.
func (m *Manager) Initialize(licenseKey string, opts engine.Options) error {
	if err := m.tracker.Initialize(licenseKey, opts); err != nil {
		var authErr *tracker.AuthError
		if errors.As(err, &authErr) {
			m.logger.Error("failed to authenticate", "code", authErr.Code)
		}
		return err
	}
	if err := m.tracker.SetFaceDistance(m.config.FaceDistanceCM); err != nil {
		return err
	}
	if err := m.tracker.SetTrackingFPS(m.config.TrackingFPS); err != nil {
		return err
	}
	m.logger.Info("tracker ready",
		"version", m.tracker.Version(),
		"fps", m.config.TrackingFPS,
		"face_distance_cm", m.config.FaceDistanceCM)
	return nil
}

// Close detaches from the tracker and releases the engine handle.
func (m *Manager) Close() error {
	m.unsubscribe()
	m.tracker.RemoveTrackingListener()
	m.tracker.RemoveCalibrationListener()
	return m.tracker.Close()
}

// AddFrame implements camera.FrameSink.
func (m *Manager) AddFrame(timestamp int64, buffer []byte, width, height int) (bool, error) {
	return m.tracker.AddFrame(timestamp, buffer, width, height)
}

// SetDisplay installs the default converter for a camera centered above info.
func (m *Manager) SetDisplay(info display.Info) error {
	t, err := info.CameraToDisplay()
	if err != nil {
		return err
	}
	return m.tracker.SetConverter(t)
}

// SetWholeScreenAttention makes the whole display the attention region.
func (m *Manager) SetWholeScreenAttention(info display.Info) error {
	return m.tracker.SetAttentionRegion(info.Bounds())
}

func (m *Manager) windowOrigin() coord.Point {
	r, err := m.windows.WindowRect(m.config.Window)
	if err != nil {
		return coord.Point{}
	}
	return coord.Pt(r.Left, r.Top)
}

// =============================================================================
// Tracking listener
// =============================================================================

// OnMetrics implements tracker.TrackingListener.
func (m *Manager) OnMetrics(timestamp uint64, s tracker.Sample) {
	x, y, ok := m.smooth(s.Gaze)
	m.stats.addSample(x, y, ok)

	if h := m.handlers.Gaze; h != nil {
		h(x, y, ok)
	}
	msg, err := protocol.NewGazeMessage(gazeData(timestamp, s, x, y, ok))
	m.publish(msg, err)
}

// smooth returns the filtered gaze in window pixels. Any frame without a
// gaze estimate clears the history.
func (m *Manager) smooth(g tracker.Gaze) (int, int, bool) {
	m.filterMu.Lock()
	defer m.filterMu.Unlock()

	if !g.Valid() || !g.HasPosition() {
		m.filter.reset()
		return 0, 0, false
	}
	origin := m.windowOrigin()
	x := int(g.X - float32(origin.X))
	y := int(g.Y - float32(origin.Y))
	ax, ay := m.filter.add(x, y)
	return ax, ay, true
}

// OnDrop implements tracker.TrackingListener.
func (m *Manager) OnDrop(timestamp uint64) {
	m.stats.addDrop()
	m.logger.Debug("frame dropped", "engine_ts", timestamp)
	msg, err := protocol.NewDropMessage(timestamp)
	m.publish(msg, err)
}

func gazeData(timestamp uint64, s tracker.Sample, x, y int, ok bool) protocol.GazeData {
	g := s.Gaze
	d := protocol.GazeData{
		EngineTS:  timestamp,
		X:         g.X,
		Y:         g.Y,
		FixationX: g.FixationX,
		FixationY: g.FixationY,
		Tracking:  g.TrackingState.String(),
		Movement:  g.MovementState.String(),
		WindowX:   x,
		WindowY:   y,
		Valid:     ok,
		Blink: &protocol.BlinkData{
			Blink:         s.Blink.Blink,
			Left:          s.Blink.Left,
			Right:         s.Blink.Right,
			LeftOpenness:  s.Blink.LeftOpenness,
			RightOpenness: s.Blink.RightOpenness,
		},
		UserStatus: &protocol.UserStatusData{
			Drowsy:              s.UserStatus.Drowsy,
			DrowsinessIntensity: s.UserStatus.DrowsinessIntensity,
			AttentionScore:      s.UserStatus.AttentionScore,
		},
	}
	if f := s.Face; f.Score > 0 {
		d.Face = &protocol.FaceData{
			Score:  f.Score,
			Box:    [4]float32{f.Left, f.Top, f.Right, f.Bottom},
			Yaw:    f.Yaw,
			Pitch:  f.Pitch,
			Roll:   f.Roll,
			Center: f.Center,
		}
	}
	return d
}

// =============================================================================
// Calibration listener
// =============================================================================

// OnCalibrationProgress implements tracker.CalibrationListener.
func (m *Manager) OnCalibrationProgress(progress float32) {
	if h := m.handlers.CalibrationProgress; h != nil {
		h(progress)
	}
	msg, err := protocol.NewCalibrationProgressMessage(progress)
	m.publish(msg, err)
}

// OnCalibrationNextPoint implements tracker.CalibrationListener. The target
// is moved into window pixels and sample collection starts right away.
func (m *Manager) OnCalibrationNextPoint(x, y float32) {
	origin := m.windowOrigin()
	wx := int(x - float32(origin.X))
	wy := int(y - float32(origin.Y))

	if h := m.handlers.CalibrationNextPoint; h != nil {
		h(wx, wy)
	}
	msg, err := protocol.NewCalibrationPointMessage(wx, wy)
	m.publish(msg, err)

	if err := m.tracker.StartCollectSamples(); err != nil {
		m.logger.Warn("failed to start sample collection", "error", err)
	}
}

// OnCalibrationFinish implements tracker.CalibrationListener.
func (m *Manager) OnCalibrationFinish(data []float32) {
	s, _ := m.tracker.Calibration().Last()
	profileID := m.saveProfile(s, data)
	m.logger.Info("calibration finished", "session", s.ID, "values", len(data), "profile", profileID)

	if h := m.handlers.CalibrationFinish; h != nil {
		h(data)
	}
	msg, err := protocol.NewCalibrationFinishMessage(s.ID, data, profileID)
	m.publish(msg, err)
}

// OnCalibrationCancel implements tracker.CalibrationListener.
func (m *Manager) OnCalibrationCancel(data []float32) {
	s, _ := m.tracker.Calibration().Last()
	m.logger.Info("calibration canceled", "session", s.ID, "values", len(data))

	if h := m.handlers.CalibrationCancel; h != nil {
		h(data)
	}
	msg, err := protocol.NewCalibrationCancelMessage(s.ID, data)
	m.publish(msg, err)
}

func (m *Manager) saveProfile(s calibration.Session, data []float32) string {
	if m.store == nil || len(data) == 0 {
		return ""
	}
	p := &profile.Profile{
		Name:     fmt.Sprintf("%d-point %s", s.Request.Points, s.Request.Accuracy),
		Points:   s.Request.Points,
		Accuracy: s.Request.Accuracy,
		Data:     data,
	}
	if err := m.store.Save(p); err != nil {
		m.logger.Error("failed to save calibration profile", "error", err)
		return ""
	}
	return p.ID
}

func (m *Manager) onSession(s calibration.Session) {
	msg, err := protocol.NewCalibrationStateMessage(sessionData(s))
	m.publish(msg, err)
}

func sessionData(s calibration.Session) protocol.CalibrationStateData {
	return protocol.CalibrationStateData{
		Session:  s.ID,
		State:    s.State.String(),
		Points:   int(s.Request.Points),
		Accuracy: s.Request.Accuracy.String(),
		Region:   s.Request.Region.Array(),
		Progress: s.Progress,
	}
}

// =============================================================================
// Commands
// =============================================================================

// StartFullWindowCalibration calibrates over the padded application window
// once the settle delay has elapsed. Only one calibration may be in progress.
func (m *Manager) StartFullWindowCalibration(ctx context.Context, points engine.CalibrationPoints, accuracy engine.CalibrationAccuracy) (*calibration.Pending, error) {
	region, err := display.PaddedWindowRect(m.windows, m.config.Window, m.config.Padding)
	if err != nil {
		return nil, fmt.Errorf("manager: calibration region: %w", err)
	}
	req := calibration.Request{
		Points:        points,
		Accuracy:      accuracy,
		Region:        region,
		ReusePrevious: m.config.Reuse,
	}
	p, err := m.tracker.StartCalibrationAfter(ctx, m.config.StartDelay, req)
	if err != nil {
		return nil, err
	}
	m.logger.Info("calibration scheduled",
		"session", p.Session(),
		"points", int(points),
		"accuracy", accuracy.String(),
		"delay", m.config.StartDelay)

	if h := m.handlers.CalibrationStart; h != nil {
		h()
	}
	return p, nil
}

// StartCalibration schedules a full-window calibration that is not tied to a
// caller context and returns its session ID.
func (m *Manager) StartCalibration(points engine.CalibrationPoints, accuracy engine.CalibrationAccuracy) (string, error) {
	p, err := m.StartFullWindowCalibration(context.Background(), points, accuracy)
	if err != nil {
		return "", err
	}
	return p.Session(), nil
}

// StopCalibration cancels the running calibration.
func (m *Manager) StopCalibration() error {
	return m.tracker.StopCalibration()
}

// CalibrationState describes the running session, or the last one.
func (m *Manager) CalibrationState() protocol.CalibrationStateData {
	machine := m.tracker.Calibration()
	if s, ok := machine.Active(); ok {
		return sessionData(s)
	}
	if s, ok := machine.Last(); ok {
		d := sessionData(s)
		d.State = machine.State().String()
		return d
	}
	return protocol.CalibrationStateData{State: machine.State().String()}
}

// Profiles lists stored calibrations, newest first.
func (m *Manager) Profiles() ([]*profile.Profile, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	return m.store.List()
}

// ApplyProfile loads a stored calibration into the engine.
func (m *Manager) ApplyProfile(id string) error {
	if m.store == nil {
		return ErrNoStore
	}
	p, err := m.store.Get(id)
	if err != nil {
		return err
	}
	return m.apply(p)
}

// ApplyLatest loads the newest stored calibration.
func (m *Manager) ApplyLatest() (*profile.Profile, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	p, err := m.store.Latest()
	if err != nil {
		return nil, err
	}
	return p, m.apply(p)
}

func (m *Manager) apply(p *profile.Profile) error {
	if err := m.tracker.SetCalibrationData(p.Data); err != nil {
		return err
	}
	m.logger.Info("calibration profile applied", "profile", p.ID, "name", p.Name)
	return nil
}

// =============================================================================
// Status
// =============================================================================

// Stats returns the gaze stream counters.
func (m *Manager) Stats() StatsSnapshot {
	return m.stats.snapshot()
}

// Status summarizes the tracker for dashboards.
func (m *Manager) Status() protocol.StatusData {
	st := m.stats.snapshot()
	d := protocol.StatusData{
		Initialized:      m.tracker.IsInitialized(),
		Version:          m.tracker.Version(),
		FPS:              m.tracker.TrackingFPS(),
		FaceDistanceCM:   m.tracker.FaceDistance(),
		CalibrationState: m.tracker.Calibration().State().String(),
		Samples:          st.Samples,
		Drops:            st.Drops,
		ValidRatio:       st.ValidRatio,
		JitterX:          st.JitterX,
		JitterY:          st.JitterY,
	}
	if m.store != nil {
		d.Profiles = m.store.Count()
	}
	return d
}

// Run publishes status every StatusInterval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	if m.config.StatusInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(m.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			msg, err := protocol.NewStatusMessage(m.Status())
			m.publish(msg, err)
		}
	}
}

func (m *Manager) publish(msg *protocol.Message, err error) {
	if err != nil {
		m.logger.Error("failed to build message", "error", err)
		return
	}
	m.pub.Publish(msg)
}

var (
	_ tracker.TrackingListener    = (*Manager)(nil)
	_ tracker.CalibrationListener = (*Manager)(nil)
)
