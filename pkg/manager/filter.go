package manager

// gazeFilter is a moving average over the last size integer points.
type gazeFilter struct {
	size   int
	points [][2]int
}

func newGazeFilter(size int) *gazeFilter {
	if size < 1 {
		size = 1
	}
	return &gazeFilter{size: size, points: make([][2]int, 0, size+1)}
}

func (f *gazeFilter) reset() {
	f.points = f.points[:0]
}

// add pushes a point and returns the truncated average of the history.
func (f *gazeFilter) add(x, y int) (int, int) {
	f.points = append(f.points, [2]int{x, y})
	if len(f.points) > f.size {
		copy(f.points, f.points[1:])
		f.points = f.points[:f.size]
	}

	var sx, sy int
	for _, p := range f.points {
		sx += p[0]
		sy += p[1]
	}
	n := len(f.points)
	return sx / n, sy / n
}
