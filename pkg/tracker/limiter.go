package tracker

import "sync"

// frameLimiter paces frames by their millisecond timestamps so that at most
// fps frames fall in any 1000 ms window. Accepted frames are spread evenly
// rather than taken in a burst at the start of each second.
type frameLimiter struct {
	mu       sync.Mutex
	fps      int
	interval float64
	next     float64
	last     int64
	started  bool

	// Timestamps of the last fps accepted frames.
	ring []int64
	head int
}

func newFrameLimiter(fps int) *frameLimiter {
	l := &frameLimiter{}
	l.setFPS(fps)
	return l
}

// setFPS changes the rate. Zero or less disables limiting.
func (l *frameLimiter) setFPS(fps int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fps = fps
	if fps > 0 {
		l.interval = 1000 / float64(fps)
	}
	l.resetLocked()
}

func (l *frameLimiter) rate() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fps
}

func (l *frameLimiter) reset() {
	l.mu.Lock()
	l.resetLocked()
	l.mu.Unlock()
}

func (l *frameLimiter) resetLocked() {
	l.started = false
	l.ring = l.ring[:0]
	l.head = 0
}

func (l *frameLimiter) allow(ts int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fps <= 0 {
		return true
	}
	// A clock that goes backwards starts a new stream.
	if l.started && ts < l.last {
		l.resetLocked()
	}
	if !l.started {
		l.started = true
		l.next = float64(ts)
	}

	// Half an interval of slack absorbs millisecond truncation in
	// timestamps; the ring below still enforces the hard cap.
	if float64(ts) < l.next-l.interval/2 {
		return false
	}
	if len(l.ring) == l.fps && ts-l.ring[l.head] < 1000 {
		return false
	}

	if len(l.ring) < l.fps {
		l.ring = append(l.ring, ts)
	} else {
		l.ring[l.head] = ts
		l.head = (l.head + 1) % l.fps
	}
	l.last = ts

	l.next += l.interval
	// More than one interval behind: resync instead of bursting to catch up.
	if float64(ts) >= l.next {
		l.next = float64(ts) + l.interval
	}
	return true
}
