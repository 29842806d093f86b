package manager

import "github.com/teslashibe/go-eyedid/pkg/protocol"

// Publisher receives every event the manager produces. Publish is called
// from engine callbacks and must not block.
type Publisher interface {
	Publish(msg *protocol.Message)
}

// Publishers fans a message out to several publishers.
type Publishers []Publisher

// Publish implements Publisher.
func (ps Publishers) Publish(msg *protocol.Message) {
	for _, p := range ps {
		if p != nil {
			p.Publish(msg)
		}
	}
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(msg *protocol.Message)

// Publish implements Publisher.
func (f PublisherFunc) Publish(msg *protocol.Message) { f(msg) }

type discard struct{}

func (discard) Publish(*protocol.Message) {}
