package common

// RollingWindow is a fixed-capacity ring buffer with an incrementally
// maintained sum, giving an O(1) running mean over the last N values.
// The buffer is zero-initialized, so the mean ramps up naturally while
// the window fills.
type RollingWindow struct {
	values []float64
	pos    int
	sum    float64
}

// NewRollingWindow creates a rolling window of the given size
func NewRollingWindow(size int) *RollingWindow {
	if size < 1 {
		size = 1
	}
	return &RollingWindow{
		values: make([]float64, size),
	}
}

// Push evicts the oldest value and appends a new one, updating the sum in place
func (rw *RollingWindow) Push(value float64) {
	rw.sum -= rw.values[rw.pos]
	rw.values[rw.pos] = value
	rw.sum += value
	rw.pos = (rw.pos + 1) % len(rw.values)
}

// Mean returns the running mean over the full window length
func (rw *RollingWindow) Mean() float64 {
	return rw.sum / float64(len(rw.values))
}

// Sum returns the current running sum
func (rw *RollingWindow) Sum() float64 {
	return rw.sum
}

// Len returns the window capacity
func (rw *RollingWindow) Len() int {
	return len(rw.values)
}

// Reset zeroes the window without reallocating
func (rw *RollingWindow) Reset() {
	for i := range rw.values {
		rw.values[i] = 0.0
	}
	rw.pos = 0
	rw.sum = 0.0
}

// SeriesRing is a fixed-capacity circular time series. The write cursor
// wraps modulo capacity and slots are zero-initialized, so lagged reads
// before the ring fills see silence rather than garbage.
type SeriesRing struct {
	data  []float64
	pos   int
	count int
}

// NewSeriesRing creates a circular series with the given capacity
func NewSeriesRing(capacity int) *SeriesRing {
	if capacity < 1 {
		capacity = 1
	}
	return &SeriesRing{
		data: make([]float64, capacity),
	}
}

// Push appends a value at the write cursor
func (sr *SeriesRing) Push(value float64) {
	sr.data[sr.pos] = value
	sr.pos = (sr.pos + 1) % len(sr.data)
	if sr.count < len(sr.data) {
		sr.count++
	}
}

// At returns the value written `back` pushes ago. At(0) is the most
// recent value. Offsets beyond capacity wrap onto the ring.
func (sr *SeriesRing) At(back int) float64 {
	idx := (sr.pos - 1 - back) % len(sr.data)
	if idx < 0 {
		idx += len(sr.data)
	}
	return sr.data[idx]
}

// Cap returns the ring capacity
func (sr *SeriesRing) Cap() int {
	return len(sr.data)
}

// Count returns how many values have been written, saturating at capacity
func (sr *SeriesRing) Count() int {
	return sr.count
}

// MaxRecent returns the maximum over the last n values
func (sr *SeriesRing) MaxRecent(n int) float64 {
	if n > len(sr.data) {
		n = len(sr.data)
	}
	maxVal := 0.0
	for i := 0; i < n; i++ {
		if v := sr.At(i); v > maxVal {
			maxVal = v
		}
	}
	return maxVal
}

// Reset zeroes the series without reallocating
func (sr *SeriesRing) Reset() {
	for i := range sr.data {
		sr.data[i] = 0.0
	}
	sr.pos = 0
	sr.count = 0
}
