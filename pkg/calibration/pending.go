package calibration

import (
	"context"
	"sync"
)

// Pending is a delayed calibration start.
type Pending struct {
	m       *Machine
	session string

	once sync.Once
	done chan struct{}
	err  error
}

// Session returns the ID of the reserved session.
func (p *Pending) Session() string { return p.session }

// Done is closed once the engine start was issued or the start was canceled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the outcome after Done is closed: nil when the engine start was
// issued, ErrCanceled or a context error when canceled, or the engine error.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the start resolves or ctx ends. Canceling ctx here only
// stops waiting; use Cancel to cancel the start.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel suppresses the engine start if it has not been issued yet.
func (p *Pending) Cancel() {
	p.m.abort(p, ErrCanceled)
}

func (p *Pending) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}
