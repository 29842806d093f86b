// Package hub fans gaze and calibration events out to websocket clients
// through a single channel-driven loop.
package hub

import (
	"encoding/json"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-eyedid/pkg/protocol"
)

// Message is one websocket frame queued for clients.
type Message struct {
	Binary bool // JPEG previews; protocol events are text
	Data   []byte
}

// Text wraps pre-encoded JSON.
func Text(data []byte) Message {
	return Message{Data: data}
}

// Binary wraps raw bytes such as a JPEG preview.
func Binary(data []byte) Message {
	return Message{Binary: true, Data: data}
}

// encode serializes a protocol event once for every recipient.
func encode(msg *protocol.Message) (Message, error) {
	data, err := msg.Bytes()
	if err != nil {
		return Message{}, err
	}
	return Text(data), nil
}

func encodeJSON(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Text(data), nil
}

func (m Message) frameType() int {
	if m.Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
