package camera

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-eyedid/internal/log"
)

// ErrClosed is returned by a Source after Close.
var ErrClosed = errors.New("camera: source closed")

// Frame is one packed 8-bit RGB image.
type Frame struct {
	Timestamp int64 // Milliseconds
	Data      []byte
	Width     int
	Height    int
}

// Source produces frames. Read may reuse the Data buffer of the previous
// frame, so sinks must copy what they keep.
type Source interface {
	Read() (Frame, error)
	Close() error
}

// FrameSink consumes frames. tracker.Tracker implements it.
type FrameSink interface {
	AddFrame(timestamp int64, buffer []byte, width, height int) (bool, error)
}

// Stats counts frames handled by Run.
type Stats struct {
	Read     atomic.Uint64
	Accepted atomic.Uint64
	Rejected atomic.Uint64
	Errors   atomic.Uint64
}

// Run reads from src and pushes every frame into sink until ctx is done or
// the source fails. Sink errors are counted and logged, not fatal.
func Run(ctx context.Context, src Source, sink FrameSink, stats *Stats) error {
	if stats == nil {
		stats = &Stats{}
	}
	logger := log.Component("camera")

	lastReport := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		f, err := src.Read()
		if err != nil {
			if errors.Is(err, ErrClosed) && ctx.Err() != nil {
				return nil
			}
			return err
		}
		stats.Read.Add(1)

		ok, err := sink.AddFrame(f.Timestamp, f.Data, f.Width, f.Height)
		switch {
		case err != nil:
			stats.Errors.Add(1)
			logger.Debug("frame not delivered", "error", err)
		case ok:
			stats.Accepted.Add(1)
		default:
			stats.Rejected.Add(1)
		}

		if time.Since(lastReport) >= 10*time.Second {
			logger.Debug("capture stats",
				"read", stats.Read.Load(),
				"accepted", stats.Accepted.Load(),
				"rejected", stats.Rejected.Load(),
				"errors", stats.Errors.Load())
			lastReport = time.Now()
		}
	}
}

// Synthetic is a Source producing solid gray frames at a fixed rate. The
// simulator and tests use it in place of a device.
type Synthetic struct {
	Width, Height int
	Interval      time.Duration
	// Clock returns the frame timestamp in milliseconds. Defaults to wall time.
	Clock func() int64

	buf    []byte
	closed atomic.Bool
}

// NewSynthetic creates a synthetic source at fps frames per second.
func NewSynthetic(width, height, fps int) *Synthetic {
	return &Synthetic{
		Width:    width,
		Height:   height,
		Interval: time.Second / time.Duration(fps),
	}
}

// Read implements Source.
func (s *Synthetic) Read() (Frame, error) {
	if s.closed.Load() {
		return Frame{}, ErrClosed
	}
	if s.Interval > 0 {
		time.Sleep(s.Interval)
	}
	if s.buf == nil {
		s.buf = make([]byte, s.Width*s.Height*3)
		for i := range s.buf {
			s.buf[i] = 0x80
		}
	}
	ts := time.Now().UnixMilli()
	if s.Clock != nil {
		ts = s.Clock()
	}
	return Frame{Timestamp: ts, Data: s.buf, Width: s.Width, Height: s.Height}, nil
}

// Close implements Source.
func (s *Synthetic) Close() error {
	s.closed.Store(true)
	return nil
}
