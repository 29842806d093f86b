package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-eyedid/pkg/calibration"
	"github.com/teslashibe/go-eyedid/pkg/engine"
	"github.com/teslashibe/go-eyedid/pkg/profile"
	"github.com/teslashibe/go-eyedid/pkg/protocol"
	"github.com/teslashibe/go-eyedid/pkg/tracker"
)

type fakeController struct {
	startErr   error
	stopErr    error
	applyErr   error
	profiles   []*profile.Profile
	profileErr error

	points   engine.CalibrationPoints
	accuracy engine.CalibrationAccuracy
	stops    int
	applied  string
}

func (f *fakeController) Status() protocol.StatusData {
	return protocol.StatusData{Initialized: true, FPS: 30, CalibrationState: "idle"}
}

func (f *fakeController) CalibrationState() protocol.CalibrationStateData {
	return protocol.CalibrationStateData{State: "idle"}
}

func (f *fakeController) StartCalibration(points engine.CalibrationPoints, accuracy engine.CalibrationAccuracy) (string, error) {
	f.points, f.accuracy = points, accuracy
	if f.startErr != nil {
		return "", f.startErr
	}
	return "session-1", nil
}

func (f *fakeController) StopCalibration() error {
	f.stops++
	return f.stopErr
}

func (f *fakeController) Profiles() ([]*profile.Profile, error) {
	return f.profiles, f.profileErr
}

func (f *fakeController) ApplyProfile(id string) error {
	f.applied = id
	return f.applyErr
}

type fakeCamera struct {
	params map[string]interface{}
}

func (f *fakeCamera) GetConfigJSON() map[string]interface{} {
	return map[string]interface{}{"width": 640}
}

func (f *fakeCamera) UpdateConfig(params map[string]interface{}) error {
	if _, ok := params["preset"]; ok {
		return errors.New("unknown preset")
	}
	f.params = params
	return nil
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestStatus(t *testing.T) {
	s := NewServer("0", &fakeController{})
	code, body := do(t, s, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, code)
	tr, ok := body["tracker"].(map[string]interface{})
	require.True(t, ok, "body = %v", body)
	assert.Equal(t, true, tr["initialized"])
	assert.Equal(t, float64(30), tr["fps"])
}

func TestStartCalibration(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		points   engine.CalibrationPoints
		accuracy engine.CalibrationAccuracy
	}{
		{"defaults", "", nil, http.StatusAccepted, 5, engine.CalibrationAccuracyDefault},
		{"one point high", `{"points":1,"accuracy":"high"}`, nil, http.StatusAccepted, 1, engine.CalibrationAccuracyHigh},
		{"bad accuracy", `{"points":5,"accuracy":"extreme"}`, nil, http.StatusBadRequest, 0, 0},
		{"malformed", `{"points":`, nil, http.StatusBadRequest, 0, 0},
		{"in progress", `{"points":5}`, calibration.ErrAlreadyInProgress, http.StatusConflict, 5, 0},
		{"invalid points", `{"points":3}`, calibration.ErrInvalidPoints, http.StatusBadRequest, 3, 0},
		{"not initialized", `{}`, tracker.ErrNotInitialized, http.StatusServiceUnavailable, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{startErr: tt.err}
			s := NewServer("0", ctrl)

			code, body := do(t, s, http.MethodPost, "/api/calibration/start", tt.body)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.points, ctrl.points)
			assert.Equal(t, tt.accuracy, ctrl.accuracy)
			if code == http.StatusAccepted {
				assert.Equal(t, "session-1", body["session"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestStopCalibration(t *testing.T) {
	ctrl := &fakeController{}
	s := NewServer("0", ctrl)

	code, body := do(t, s, http.MethodPost, "/api/calibration/stop", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, 1, ctrl.stops)
}

func TestProfiles(t *testing.T) {
	ctrl := &fakeController{profiles: []*profile.Profile{
		{ID: "a", Name: "5-point high", Points: 5, Accuracy: engine.CalibrationAccuracyHigh, Data: []float32{1, 2}},
	}}
	s := NewServer("0", ctrl)

	req := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0]["id"])
	assert.Equal(t, "high", list[0]["accuracy"])
	assert.Equal(t, float64(2), list[0]["values"])
	assert.NotContains(t, list[0], "data", "blobs stay on the server")
}

func TestApplyProfile(t *testing.T) {
	ctrl := &fakeController{}
	s := NewServer("0", ctrl)

	code, body := do(t, s, http.MethodPost, "/api/profiles/abc/apply", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "abc", body["applied"])
	assert.Equal(t, "abc", ctrl.applied)

	ctrl.applyErr = profile.ErrNotFound
	code, _ = do(t, s, http.MethodPost, "/api/profiles/missing/apply", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCameraEndpoints(t *testing.T) {
	s := NewServer("0", &fakeController{})

	code, _ := do(t, s, http.MethodGet, "/api/camera", "")
	assert.Equal(t, http.StatusNotFound, code, "no camera configured")

	cam := &fakeCamera{}
	s.SetCamera(cam)

	code, body := do(t, s, http.MethodGet, "/api/camera", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(640), body["width"])

	code, _ = do(t, s, http.MethodPost, "/api/camera", `{"framerate":15}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(15), cam.params["framerate"])

	code, _ = do(t, s, http.MethodPost, "/api/camera", `{"preset":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestEventLogSkipsGaze(t *testing.T) {
	s := NewServer("0", &fakeController{})

	gaze, _ := protocol.NewGazeMessage(protocol.GazeData{X: 1})
	point, _ := protocol.NewCalibrationPointMessage(10, 20)
	s.Publish(gaze)
	s.Publish(point)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var events []protocol.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.Len(t, events, 1)
	assert.Equal(t, protocol.TypeCalibrationPoint, events[0].Type)
}

func TestEventLogIsBounded(t *testing.T) {
	s := NewServer("0", &fakeController{})
	for i := 0; i < maxEvents+10; i++ {
		msg, _ := protocol.NewCalibrationProgressMessage(float32(i) / 1000)
		s.Publish(msg)
	}
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	assert.Len(t, s.events, maxEvents)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := NewServer("0", &fakeController{})
	code, _ := do(t, s, http.MethodGet, "/ws/events", "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

func dialEvents(t *testing.T, addr string) *gws.Conn {
	t.Helper()
	conn, _, err := gws.DefaultDialer.Dial("ws://"+addr+"/ws/events", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *gws.Conn) *protocol.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.ParseMessage(data)
	require.NoError(t, err)
	return msg
}

func TestEventsSocketSendsStateToNewClientOnly(t *testing.T) {
	s := NewServer("0", &fakeController{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx, ln)
	defer s.Shutdown()

	addr := ln.Addr().String()
	first := dialEvents(t, addr)
	assert.Equal(t, protocol.TypeCalibrationState, readEvent(t, first).Type)

	second := dialEvents(t, addr)
	assert.Equal(t, protocol.TypeCalibrationState, readEvent(t, second).Type)

	point, err := protocol.NewCalibrationPointMessage(10, 20)
	require.NoError(t, err)
	s.Publish(point)

	assert.Equal(t, protocol.TypeCalibrationPoint, readEvent(t, first).Type,
		"the second client's state must not reach the first")
	assert.Equal(t, protocol.TypeCalibrationPoint, readEvent(t, second).Type)
}
