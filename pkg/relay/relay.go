// Package relay forwards tracker events to a remote collector over a
// websocket. Publishing never blocks the caller; events are queued and
// dropped when the queue is full or the collector is unreachable.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-eyedid/internal/log"
	"github.com/teslashibe/go-eyedid/pkg/protocol"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("relay: closed")

// Config configures a relay client.
type Config struct {
	URL          string
	QueueSize    int
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
	WriteTimeout time.Duration
	Header       http.Header
}

// DefaultConfig returns a config for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:          url,
		QueueSize:    256,
		MinBackoff:   250 * time.Millisecond,
		MaxBackoff:   10 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c Config) Validate() []string {
	var errs []string
	if c.URL == "" {
		errs = append(errs, "URL is required")
	}
	if c.QueueSize < 1 {
		errs = append(errs, "QueueSize must be positive")
	}
	if c.MinBackoff <= 0 || c.MaxBackoff < c.MinBackoff {
		errs = append(errs, "backoff must satisfy 0 < MinBackoff <= MaxBackoff")
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, "WriteTimeout must be positive")
	}
	return errs
}

// Stats counts relay traffic.
type Stats struct {
	Sent       uint64
	Dropped    uint64
	Reconnects uint64
	Connected  bool
}

// Client is a reconnecting websocket publisher.
type Client struct {
	config Config
	logger *slog.Logger
	dialer *websocket.Dialer
	queue  chan []byte

	sent       atomic.Uint64
	dropped    atomic.Uint64
	reconnects atomic.Uint64
	connected  atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
	started bool
}

// New creates a client. Call Start to connect.
func New(config Config) (*Client, error) {
	if errs := config.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("relay: invalid config: %v", errs)
	}
	return &Client{
		config: config,
		logger: log.Component("relay").With("url", config.URL),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		queue: make(chan []byte, config.QueueSize),
		done:  make(chan struct{}),
	}, nil
}

// Start connects in the background and keeps reconnecting until ctx is
// done or Close is called.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	return nil
}

// Publish queues msg for the collector. It never blocks.
func (c *Client) Publish(msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		c.logger.Error("failed to encode message", "type", msg.Type, "error", err)
		return
	}
	select {
	case c.queue <- data:
	default:
		if c.dropped.Add(1)%100 == 1 {
			c.logger.Warn("relay queue full, dropping events", "dropped", c.dropped.Load())
		}
	}
}

// Stats returns traffic counters.
func (c *Client) Stats() Stats {
	return Stats{
		Sent:       c.sent.Load(),
		Dropped:    c.dropped.Load(),
		Reconnects: c.reconnects.Load(),
		Connected:  c.connected.Load(),
	}
}

// Close stops the client and waits for the connection to close.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	if started {
		<-c.done
	}
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	backoff := c.config.MinBackoff
	first := true
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.config.URL, c.config.Header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("relay connect failed", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.config.MaxBackoff)
			continue
		}

		if !first {
			c.reconnects.Add(1)
		}
		first = false
		backoff = c.config.MinBackoff
		c.connected.Store(true)
		c.logger.Info("relay connected")

		err = c.pump(ctx, conn)
		c.connected.Store(false)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("relay disconnected", "error", err)
	}
}

// pump writes queued events until the connection fails or ctx is done.
func (c *Client) pump(ctx context.Context, conn *websocket.Conn) error {
	// Reading is required to process control frames and notice a close.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()

		case err := <-readErr:
			return err

		case data := <-c.queue:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
			c.sent.Add(1)
		}
	}
}
