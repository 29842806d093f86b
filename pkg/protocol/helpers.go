package protocol

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewGazeMessage creates a gaze message
func NewGazeMessage(data GazeData) (*Message, error) {
	return NewMessage(TypeGaze, data)
}

// NewDropMessage creates a drop message
func NewDropMessage(engineTS uint64) (*Message, error) {
	return NewMessage(TypeDrop, DropData{EngineTS: engineTS})
}

// NewCalibrationStateMessage creates a calibration state message
func NewCalibrationStateMessage(data CalibrationStateData) (*Message, error) {
	return NewMessage(TypeCalibrationState, data)
}

// NewCalibrationPointMessage creates a calibration target message
func NewCalibrationPointMessage(x, y int) (*Message, error) {
	return NewMessage(TypeCalibrationPoint, CalibrationPointData{X: x, Y: y})
}

// NewCalibrationProgressMessage creates a calibration progress message
func NewCalibrationProgressMessage(progress float32) (*Message, error) {
	return NewMessage(TypeCalibrationProgress, CalibrationProgressData{Progress: progress})
}

// NewCalibrationFinishMessage creates a calibration finish message
func NewCalibrationFinishMessage(session string, data []float32, profileID string) (*Message, error) {
	return NewMessage(TypeCalibrationFinish, CalibrationResultData{
		Session:   session,
		Data:      nonNil(data),
		ProfileID: profileID,
	})
}

// NewCalibrationCancelMessage creates a calibration cancel message
func NewCalibrationCancelMessage(session string, data []float32) (*Message, error) {
	return NewMessage(TypeCalibrationCancel, CalibrationResultData{
		Session: session,
		Data:    nonNil(data),
	})
}

// NewStatusMessage creates a status message
func NewStatusMessage(data StatusData) (*Message, error) {
	return NewMessage(TypeStatus, data)
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// An empty blob must stay distinguishable from a missing one on the wire.
func nonNil(data []float32) []float32 {
	if data == nil {
		return []float32{}
	}
	return data
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetGazeData extracts gaze data from a message
func (m *Message) GetGazeData() (*GazeData, error) {
	var data GazeData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCalibrationStateData extracts calibration state from a message
func (m *Message) GetCalibrationStateData() (*CalibrationStateData, error) {
	var data CalibrationStateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCalibrationPointData extracts a calibration target from a message
func (m *Message) GetCalibrationPointData() (*CalibrationPointData, error) {
	var data CalibrationPointData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCalibrationResultData extracts a finish or cancel payload from a message
func (m *Message) GetCalibrationResultData() (*CalibrationResultData, error) {
	var data CalibrationResultData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatusData extracts status from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
