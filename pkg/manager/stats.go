package manager

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

// gazeStats counts frames and keeps recent valid points for jitter.
type gazeStats struct {
	mu      sync.Mutex
	xs, ys  []float64
	head    int
	full    bool
	samples uint64
	valid   uint64
	drops   uint64
}

// StatsSnapshot is a summary of the gaze stream.
type StatsSnapshot struct {
	Samples    uint64
	Valid      uint64
	Drops      uint64
	ValidRatio float64
	// Sample standard deviation of recent smoothed gaze, pixels.
	JitterX float64
	JitterY float64
}

func newGazeStats(window int) *gazeStats {
	if window < 2 {
		window = 2
	}
	return &gazeStats{
		xs: make([]float64, window),
		ys: make([]float64, window),
	}
}

func (s *gazeStats) addSample(x, y int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples++
	if !ok {
		return
	}
	s.valid++
	s.xs[s.head] = float64(x)
	s.ys[s.head] = float64(y)
	s.head++
	if s.head == len(s.xs) {
		s.head = 0
		s.full = true
	}
}

func (s *gazeStats) addDrop() {
	s.mu.Lock()
	s.drops++
	s.mu.Unlock()
}

func (s *gazeStats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := StatsSnapshot{Samples: s.samples, Valid: s.valid, Drops: s.drops}
	if s.samples > 0 {
		out.ValidRatio = float64(s.valid) / float64(s.samples)
	}
	n := s.head
	if s.full {
		n = len(s.xs)
	}
	if n >= 2 {
		out.JitterX = stat.StdDev(s.xs[:n], nil)
		out.JitterY = stat.StdDev(s.ys[:n], nil)
	}
	return out
}
