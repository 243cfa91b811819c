// Package tracker implements a real-time beat and tempo tracker over a
// continuously updating log-frequency magnitude spectrum. One Process
// call per audio-visual frame produces a tempo estimate, a phase-aligned
// beat signal and a confidence score.
//
// The pipeline is strictly sequential and single-threaded: onset
// detection, onset history, a wall-clock-gated tempo estimator and a
// phase-locked beat clock all live on one instance with no internal
// concurrency. Callers own the instance and simply stop calling Process
// to stop it.
package tracker

import (
	"math"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
	"github.com/RyanBlaney/sonido-beat/algorithms/temporal"
	"github.com/RyanBlaney/sonido-beat/logging"
)

// FrameOutput is the per-frame result delivered to rendering consumers
type FrameOutput struct {
	BPM          int     `json:"bpm"`
	Confidence   float64 `json:"confidence"`
	Beat         bool    `json:"beat"`
	BeatPhase    float64 `json:"beat_phase"`
	BeatStrength float64 `json:"beat_strength"`
	Downbeat     bool    `json:"downbeat"`
	BeatCount    int     `json:"beat_count"`
}

// DebugState exposes internal telemetry for diagnostics overlays. The
// onset peak is refreshed periodically, not per frame, to bound cost.
type DebugState struct {
	BandEnergies []temporal.BandEnergy `json:"band_energies"`
	OnsetPeak    float64               `json:"onset_peak"`
	AvgFrameMs   float64               `json:"avg_frame_ms"`
	LockState    string                `json:"lock_state"`
}

// BeatTracker is the top-level detector. All mutable state is owned
// exclusively by the instance; no locking, no blocking, no error
// returns on the frame path.
type BeatTracker struct {
	cfg    Config
	clock  Clock
	logger logging.Logger

	onset   *temporal.OnsetDetector
	history *common.SeriesRing
	silence *temporal.SilenceTracker
	tempo   *TempoEstimator
	beat    *BeatClock

	lastFrameMs float64
	avgFrameMs  float64
	idle        bool

	debugPeak      float64
	debugRefreshMs float64
}

// NewBeatTracker creates a tracker with the given configuration. A nil
// clock selects the production wall clock; a zero-value config falls
// back to the defaults.
func NewBeatTracker(cfg Config, clock Clock) *BeatTracker {
	if cfg.DefaultBPM <= 0 {
		cfg = DefaultConfig()
	}
	if clock == nil {
		clock = NewWallClock()
	}

	logger := logging.WithFields(logging.Fields{"component": "beat_tracker"})

	return &BeatTracker{
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		onset:   temporal.NewOnsetDetector(cfg.Onset),
		history: common.NewSeriesRing(cfg.HistorySize),
		silence: temporal.NewSilenceTracker(cfg.SilenceEpsilon, cfg.SilenceHoldMs),
		tempo:   NewTempoEstimator(cfg, logger),
		beat:    NewBeatClock(cfg),
	}
}

// Process analyzes one spectrum snapshot (normalized 0..1 magnitudes)
// and returns the frame's tracking output. Intended to be called once
// per rendering frame from the host's frame loop.
func (bt *BeatTracker) Process(spectrum []float64) FrameOutput {
	now := bt.clock.NowMs()
	bt.trackFrameTime(now)

	frame := bt.onset.Process(spectrum)
	bt.history.Push(frame.RawFlux)

	if bt.silence.Observe(now, frame.TotalEnergy) {
		if !bt.idle {
			bt.idle = true
			bt.tempo.ResetIdle()
			bt.beat.SetInterval(bt.tempo.IntervalMs())
			bt.history.Reset()
			bt.logger.Debug("sustained silence, tempo state idled")
		}
	} else if bt.idle && frame.TotalEnergy >= bt.cfg.SilenceEpsilon {
		bt.idle = false
	}

	if !bt.idle {
		bt.tempo.Update(now, bt.history, bt.avgFrameMs)
	}
	bt.tempo.StepConfidence()
	bt.beat.SetInterval(bt.tempo.IntervalMs())

	beat, downbeat := bt.beat.Advance(now, frame.Strength, frame.KickOnset)

	if now-bt.debugRefreshMs >= bt.cfg.DebugRefreshMs {
		bt.debugRefreshMs = now
		bt.debugPeak = bt.history.MaxRecent(bt.cfg.CorrelationWindow / 2)
	}

	return FrameOutput{
		BPM:          int(math.Round(bt.tempo.BPM())),
		Confidence:   bt.tempo.Confidence(),
		Beat:         beat,
		BeatPhase:    bt.beat.Phase(),
		BeatStrength: common.Clamp(frame.KickOnset*4.0, 0.0, 1.0),
		Downbeat:     downbeat,
		BeatCount:    bt.beat.BeatCount(),
	}
}

// trackFrameTime maintains an exponential moving average of the
// inter-frame time so lag conversion stays correct under variable frame
// rates. Stalled frames are ignored rather than folded into the average.
func (bt *BeatTracker) trackFrameTime(nowMs float64) {
	if bt.lastFrameMs > 0 {
		dt := nowMs - bt.lastFrameMs
		if dt > 0 && dt < 250.0 {
			if bt.avgFrameMs <= 0 {
				bt.avgFrameMs = dt
			} else {
				bt.avgFrameMs += 0.1 * (dt - bt.avgFrameMs)
			}
		}
	}
	bt.lastFrameMs = nowMs
}

// TapTempo feeds one manual tap at the given timestamp (milliseconds on
// the tracker's clock), bypassing the autocorrelation path
func (bt *BeatTracker) TapTempo(timestampMs float64) {
	bpm, ok := bt.beat.Tap(timestampMs)
	if !ok {
		return
	}

	bt.tempo.SetManual(bpm, 0.6)
	bt.beat.SetInterval(bt.tempo.IntervalMs())
	bt.logger.Debug("tap tempo accepted", logging.Fields{"bpm": bt.tempo.BPM()})
}

// Reset returns all adaptive and history state to initial values
// without reallocating internal structures
func (bt *BeatTracker) Reset() {
	bt.onset.Reset()
	bt.history.Reset()
	bt.silence.Reset()
	bt.tempo.Reset()
	bt.beat.Reset()
	bt.lastFrameMs = 0.0
	bt.avgFrameMs = 0.0
	bt.idle = false
	bt.debugPeak = 0.0
	bt.debugRefreshMs = 0.0
}

// GetBPM returns the current tempo estimate
func (bt *BeatTracker) GetBPM() float64 {
	return bt.tempo.BPM()
}

// GetConfidence returns the smoothed tempo confidence in [0, 1]
func (bt *BeatTracker) GetConfidence() float64 {
	return bt.tempo.Confidence()
}

// GetBeatPhase returns the current position within the beat cycle
func (bt *BeatTracker) GetBeatPhase() float64 {
	return bt.beat.Phase()
}

// Debug returns internal telemetry for diagnostics
func (bt *BeatTracker) Debug() DebugState {
	return DebugState{
		BandEnergies: bt.onset.BandEnergies(),
		OnsetPeak:    bt.debugPeak,
		AvgFrameMs:   bt.avgFrameMs,
		LockState:    bt.tempo.State().String(),
	}
}
