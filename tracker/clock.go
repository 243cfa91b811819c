package tracker

import "time"

// Clock supplies wall-clock time in milliseconds. The tracker never
// reads the system clock directly so tests can drive synthetic
// timelines deterministically.
type Clock interface {
	NowMs() float64
}

// WallClock is the production clock, measuring milliseconds since
// construction on the monotonic system timer
type WallClock struct {
	start time.Time
}

// NewWallClock creates a wall clock anchored at the current instant
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// NowMs returns elapsed milliseconds since the clock was created
func (wc *WallClock) NowMs() float64 {
	return float64(time.Since(wc.start).Microseconds()) / 1000.0
}
