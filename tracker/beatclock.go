package tracker

import (
	"math"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
)

// tapWindow is how many recent tap intervals are averaged into a tempo
const tapWindow = 4

// BeatClock is a phase-locked-loop style beat scheduler. Phase in [0,1)
// is recomputed from elapsed wall time before every decision; beats are
// either predicted at phase wrap or confirmed early/late by a strong
// onset inside a wrapped window around phase zero.
type BeatClock struct {
	cfg Config

	lastBeatMs float64
	intervalMs float64
	phase      float64

	beatCount   int
	downCounter int

	lastTapMs    float64
	tapIntervals []float64
}

// NewBeatClock creates a beat clock at the configured default tempo.
// A zero-value config falls back to the defaults.
func NewBeatClock(cfg Config) *BeatClock {
	if cfg.DefaultBPM <= 0 {
		cfg = DefaultConfig()
	}
	return &BeatClock{
		cfg:          cfg,
		intervalMs:   60000.0 / cfg.DefaultBPM,
		lastBeatMs:   -1,
		lastTapMs:    -1,
		tapIntervals: make([]float64, 0, tapWindow),
	}
}

// SetInterval updates the beat interval in milliseconds
func (bc *BeatClock) SetInterval(intervalMs float64) {
	if intervalMs > 0 {
		bc.intervalMs = intervalMs
	}
}

// Advance recomputes phase for the current instant and decides whether
// a beat occurred this frame. At most one beat is accepted per frame
// regardless of how many trigger conditions hold.
func (bc *BeatClock) Advance(nowMs, onset, kick float64) (beat, downbeat bool) {
	if bc.intervalMs <= 0 {
		return false, false
	}
	if bc.lastBeatMs < 0 {
		bc.lastBeatMs = nowMs
		bc.phase = 0.0
		return false, false
	}

	elapsed := nowMs - bc.lastBeatMs
	if elapsed < 0 {
		// A late confirmed beat can leave the corrected grid reference
		// ahead of the current instant; phase holds at the wrap until
		// the clock catches up.
		elapsed = 0
	}
	bc.phase = math.Mod(elapsed, bc.intervalMs) / bc.intervalMs

	predicted := elapsed >= bc.intervalMs

	// Onset-confirmed beats pull the grid toward strong hits near the
	// wrap point. The early-cycle half of the window only counts once a
	// full interval has elapsed, so a beat cannot re-fire off its own
	// tail.
	window := bc.cfg.BeatWindow
	strong := onset >= bc.cfg.TriggerFloor || kick >= bc.cfg.TriggerFloor
	confirmed := strong && (bc.phase >= 1.0-window || (bc.phase < window && elapsed >= bc.intervalMs))

	if !predicted && !confirmed {
		return false, false
	}

	bc.beatCount++
	bc.downCounter = (bc.downCounter + 1) % 4
	downbeat = bc.downCounter == 0

	// Phase error in beats, wrapped to [-0.5, 0.5)
	err := bc.phase
	if err >= 0.5 {
		err -= 1.0
	}

	if confirmed {
		// Leaky proportional correction: keep most of the predicted
		// grid, pull a fraction toward the detected onset
		bc.lastBeatMs = nowMs - (1.0-bc.cfg.CorrectionGain)*err*bc.intervalMs
	} else {
		// Purely predicted: stay on the grid to avoid drift
		bc.lastBeatMs = nowMs - err*bc.intervalMs
	}

	bc.phase = 0.0
	return true, downbeat
}

// Tap processes one manual tap at the given timestamp. Two or more taps
// at a plausible spacing (30-300 BPM) yield a tempo averaged over a
// small recent window. Returns the tapped BPM and whether this tap
// produced one.
func (bc *BeatClock) Tap(nowMs float64) (float64, bool) {
	defer func() { bc.lastTapMs = nowMs }()

	if bc.lastTapMs < 0 {
		return 0, false
	}

	interval := nowMs - bc.lastTapMs
	if interval < 200.0 || interval > 2000.0 {
		// Implausible spacing starts a fresh tap sequence
		bc.tapIntervals = bc.tapIntervals[:0]
		return 0, false
	}

	if len(bc.tapIntervals) >= tapWindow {
		bc.tapIntervals = append(bc.tapIntervals[:0], bc.tapIntervals[1:]...)
	}
	bc.tapIntervals = append(bc.tapIntervals, interval)

	bpm := 60000.0 / common.Mean(bc.tapIntervals)

	// Align the grid to the tap itself
	bc.lastBeatMs = nowMs
	bc.phase = 0.0

	return bpm, true
}

// Phase returns the current position within the beat cycle in [0, 1)
func (bc *BeatClock) Phase() float64 {
	return bc.phase
}

// BeatCount returns the monotonically increasing count of accepted beats
func (bc *BeatClock) BeatCount() int {
	return bc.beatCount
}

// Reset returns the clock to its initial state
func (bc *BeatClock) Reset() {
	bc.lastBeatMs = -1
	bc.intervalMs = 60000.0 / bc.cfg.DefaultBPM
	bc.phase = 0.0
	bc.beatCount = 0
	bc.downCounter = 0
	bc.lastTapMs = -1
	bc.tapIntervals = bc.tapIntervals[:0]
}
