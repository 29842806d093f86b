// Package protocol defines the JSON messages the tracker publishes to
// dashboard clients and remote collectors.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Tracking
	TypeGaze MessageType = "gaze" // One processed frame
	TypeDrop MessageType = "drop" // Frame dropped by the engine

	// Calibration
	TypeCalibrationState    MessageType = "calibration_state"    // Session changed state
	TypeCalibrationPoint    MessageType = "calibration_point"    // New target to look at
	TypeCalibrationProgress MessageType = "calibration_progress" // Per-point progress
	TypeCalibrationFinish   MessageType = "calibration_finish"   // Calibration succeeded
	TypeCalibrationCancel   MessageType = "calibration_cancel"   // Calibration canceled

	// Service
	TypeStatus MessageType = "status" // Periodic tracker status
	TypePing   MessageType = "ping"   // Health check
	TypePong   MessageType = "pong"   // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Tracking
// =============================================================================

// GazeData is one processed frame in window pixels.
type GazeData struct {
	EngineTS uint64 `json:"engine_ts"`

	// Raw gaze in display pixels; -1001 marks a component the engine
	// did not compute.
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	FixationX float32 `json:"fixation_x"`
	FixationY float32 `json:"fixation_y"`
	Tracking  string  `json:"tracking"` // success, face_missing, gaze_not_found
	Movement  string  `json:"movement"` // fixation, saccade, unknown

	// Smoothed gaze relative to the application window.
	WindowX int  `json:"window_x"`
	WindowY int  `json:"window_y"`
	Valid   bool `json:"valid"`

	Face       *FaceData       `json:"face,omitempty"`
	Blink      *BlinkData      `json:"blink,omitempty"`
	UserStatus *UserStatusData `json:"user_status,omitempty"`
}

// FaceData is the face pose.
type FaceData struct {
	Score  float32    `json:"score"`
	Box    [4]float32 `json:"box"` // left, top, right, bottom
	Yaw    float32    `json:"yaw"`
	Pitch  float32    `json:"pitch"`
	Roll   float32    `json:"roll"`
	Center [3]float32 `json:"center"`
}

// BlinkData is the per-eye blink state.
type BlinkData struct {
	Blink         bool    `json:"blink"`
	Left          bool    `json:"left"`
	Right         bool    `json:"right"`
	LeftOpenness  float32 `json:"left_openness"`
	RightOpenness float32 `json:"right_openness"`
}

// UserStatusData carries attention and drowsiness.
type UserStatusData struct {
	Drowsy              bool    `json:"drowsy"`
	DrowsinessIntensity float32 `json:"drowsiness_intensity"`
	AttentionScore      float32 `json:"attention_score"`
}

// DropData reports a frame the engine dropped.
type DropData struct {
	EngineTS uint64 `json:"engine_ts"`
}

// =============================================================================
// Calibration
// =============================================================================

// CalibrationStateData describes a session change.
type CalibrationStateData struct {
	Session  string     `json:"session"`
	State    string     `json:"state"`
	Points   int        `json:"points"`
	Accuracy string     `json:"accuracy"`
	Region   [4]float64 `json:"region"` // display pixels
	Progress float32    `json:"progress"`
}

// CalibrationPointData is the next target in window pixels.
type CalibrationPointData struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// CalibrationProgressData is the progress of the current target.
type CalibrationProgressData struct {
	Progress float32 `json:"progress"`
}

// CalibrationResultData carries the engine blob of a finished or canceled
// calibration. The blob may be empty.
type CalibrationResultData struct {
	Session   string    `json:"session,omitempty"`
	Data      []float32 `json:"data"`
	ProfileID string    `json:"profile_id,omitempty"`
}

// =============================================================================
// Service
// =============================================================================

// StatusData is a periodic tracker summary.
type StatusData struct {
	Initialized      bool    `json:"initialized"`
	Version          string  `json:"version"`
	FPS              int     `json:"fps"`
	FaceDistanceCM   int     `json:"face_distance_cm"`
	CalibrationState string  `json:"calibration_state"`
	Samples          uint64  `json:"samples"`
	Drops            uint64  `json:"drops"`
	ValidRatio       float64 `json:"valid_ratio"`
	JitterX          float64 `json:"jitter_x"` // Std dev of recent valid gaze, pixels
	JitterY          float64 `json:"jitter_y"`
	Profiles         int     `json:"profiles"`
}

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
