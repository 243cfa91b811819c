package tracker

import (
	"math"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
	"github.com/RyanBlaney/sonido-beat/algorithms/stats"
	"github.com/RyanBlaney/sonido-beat/logging"
)

// LockState is the tempo-lock state machine
type LockState int

const (
	// LockUnlocked means no trusted tempo has been established
	LockUnlocked LockState = iota
	// LockProvisional means confidence is building but not yet earned
	LockProvisional
	// LockLocked means the tracker resists octave flips and small perturbations
	LockLocked
)

func (s LockState) String() string {
	switch s {
	case LockUnlocked:
		return "unlocked"
	case LockProvisional:
		return "provisional"
	case LockLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// TempoEstimator turns the onset history into a BPM estimate with a
// smoothed confidence score. The expensive autocorrelation scan is
// gated on wall-clock time, not frame rate.
type TempoEstimator struct {
	cfg    Config
	auto   *stats.Autocorrelator
	logger logging.Logger

	bpm        float64
	intervalMs float64
	history    []float64 // recent accepted estimates, median-filtered

	rawConfidence float64 // smoothing target
	confidence    float64 // displayed, asymmetric low-pass of the target

	state       LockState
	lockedBPM   float64
	stableCount int

	lastRunMs float64
}

// NewTempoEstimator creates a tempo estimator at the neutral default
// BPM. A zero-value config falls back to the defaults.
func NewTempoEstimator(cfg Config, logger logging.Logger) *TempoEstimator {
	if cfg.DefaultBPM <= 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "tempo_estimator"})
	}
	return &TempoEstimator{
		cfg:        cfg,
		auto:       stats.NewAutocorrelator(cfg.CorrelationWindow, cfg.CorrelationStride),
		logger:     logger,
		bpm:        cfg.DefaultBPM,
		intervalMs: 60000.0 / cfg.DefaultBPM,
		history:    make([]float64, 0, cfg.TempoHistorySize),
		lastRunMs:  -cfg.EstimateIntervalMs,
	}
}

// Update runs one estimation cycle if enough wall-clock time has passed
// since the last one. frameMs is the measured average inter-frame time;
// a zero or negative value skips the cycle entirely. Returns true when
// a cycle actually ran.
func (te *TempoEstimator) Update(nowMs float64, series *common.SeriesRing, frameMs float64) bool {
	if nowMs-te.lastRunMs < te.cfg.EstimateIntervalMs {
		return false
	}
	te.lastRunMs = nowMs

	if frameMs <= 0 || series == nil {
		return false
	}

	// Startup: with a nearly empty history there is nothing to
	// correlate, so just aim confidence at zero.
	if series.Count() < te.cfg.CorrelationWindow/4 {
		te.rawConfidence = 0.0
		return true
	}

	minLag := int(math.Round(60000.0 / (te.cfg.MaxBPM * frameMs)))
	maxLag := int(math.Round(60000.0 / (te.cfg.MinBPM * frameMs)))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag > series.Cap()-2 {
		maxLag = series.Cap() - 2
	}

	best := te.auto.BestLag(series, minLag, maxLag, func(lag int) float64 {
		bpm := 60000.0 / (float64(lag) * frameMs)
		if bpm >= te.cfg.CommonBPMLow && bpm <= te.cfg.CommonBPMHigh {
			return te.cfg.CommonBPMBoost
		}
		return 1.0
	})

	// No reliable periodicity this cycle: leave tempo state unchanged.
	if best.Lag == 0 || best.Correlation < te.cfg.CorrelationFloor {
		return true
	}

	estimate := 60000.0 / (float64(best.Lag) * frameMs)
	estimate = te.correctOctave(estimate)
	estimate = common.Clamp(estimate, te.cfg.MinBPM, te.cfg.MaxBPM)

	if len(te.history) >= te.cfg.TempoHistorySize {
		te.history = te.history[1:]
	}
	te.history = append(te.history, estimate)

	te.bpm = common.Median(te.history)
	te.intervalMs = 60000.0 / te.bpm

	te.updateConfidenceTarget(best.Correlation)
	te.updateLock(estimate)

	return true
}

// correctOctave folds an estimate that reads as ~2x or ~0.5x of the
// current tempo back toward the current octave. Autocorrelation is
// inherently octave-ambiguous; disambiguation has to come from recent
// history, not from reinitializing each cycle.
func (te *TempoEstimator) correctOctave(estimate float64) float64 {
	if te.bpm <= 0 {
		return estimate
	}

	tol := te.cfg.OctaveTolerance
	if math.Abs(estimate-2.0*te.bpm) <= tol*2.0*te.bpm {
		return estimate / 2.0
	}
	if math.Abs(estimate-0.5*te.bpm) <= tol*0.5*te.bpm {
		return estimate * 2.0
	}
	return estimate
}

// updateConfidenceTarget combines correlation strength, tempo stability
// and history depth into the raw confidence target
func (te *TempoEstimator) updateConfidenceTarget(correlation float64) {
	corrFactor := common.Clamp(correlation, 0.0, 1.0)

	median := common.Median(te.history)
	stability := 0.0
	if median > 0 && len(te.history) > 0 {
		weight := 0.0
		for _, b := range te.history {
			dev := math.Abs(b-median) / median
			if dev < 0.15 {
				weight += 1.0 - dev/0.15
			}
		}
		stability = weight / float64(len(te.history))
	}

	depth := common.Clamp(float64(len(te.history))/5.0, 0.0, 1.0)

	raw := 0.35*corrFactor + 0.40*stability + 0.25*depth

	bonus := 0.01 * float64(te.stableCount)
	if bonus > 0.15 {
		bonus = 0.15
	}

	te.rawConfidence = common.Clamp(raw+bonus, 0.0, 1.0)
}

// updateLock advances the unlocked -> provisional -> locked state
// machine using the freshly accepted estimate
func (te *TempoEstimator) updateLock(estimate float64) {
	switch te.state {
	case LockUnlocked:
		if te.confidence >= te.cfg.ProvisionalThreshold {
			te.state = LockProvisional
		}

	case LockProvisional:
		if te.confidence >= te.cfg.LockThreshold {
			te.state = LockLocked
			te.lockedBPM = te.bpm
			te.stableCount = 1
			te.logger.Debug("tempo locked", logging.Fields{
				"bpm":        te.bpm,
				"confidence": te.confidence,
			})
		} else if te.confidence < te.cfg.ProvisionalThreshold*0.8 {
			te.state = LockUnlocked
		}

	case LockLocked:
		if math.Abs(estimate-te.lockedBPM) <= te.cfg.StableTolerance*te.lockedBPM {
			te.stableCount++
		} else {
			// Deviations erode stability faster than agreement builds it
			te.stableCount -= 3
		}
		if te.stableCount <= 0 {
			te.state = LockUnlocked
			te.lockedBPM = 0.0
			te.stableCount = 0
			te.logger.Debug("tempo unlocked", logging.Fields{"bpm": te.bpm})
		}
	}
}

// StepConfidence moves the displayed confidence one frame toward the
// raw target. Rises use a fast time constant, falls a much slower one,
// slower again once the tempo is locked and stable.
func (te *TempoEstimator) StepConfidence() {
	target := te.rawConfidence

	var alpha float64
	if target > te.confidence {
		alpha = te.cfg.ConfidenceRise
	} else {
		alpha = te.cfg.ConfidenceFall
		if te.state == LockLocked && te.stableCount > 4 {
			alpha = te.cfg.ConfidenceFallLocked
		}
	}

	te.confidence += alpha * (target - te.confidence)
}

// SetManual applies an externally supplied tempo (tap path), bypassing
// the autocorrelation pipeline entirely
func (te *TempoEstimator) SetManual(bpm, confidence float64) {
	bpm = common.Clamp(bpm, te.cfg.MinBPM, te.cfg.MaxBPM)

	te.bpm = bpm
	te.intervalMs = 60000.0 / bpm
	te.history = te.history[:0]
	te.history = append(te.history, bpm)
	te.rawConfidence = confidence
	te.confidence = confidence
	te.state = LockProvisional
	te.lockedBPM = 0.0
	te.stableCount = 0
}

// ResetIdle returns tempo state to the neutral baseline after sustained
// silence. Band calibration is untouched by design; only tempo state
// resets.
func (te *TempoEstimator) ResetIdle() {
	te.bpm = te.cfg.DefaultBPM
	te.intervalMs = 60000.0 / te.cfg.DefaultBPM
	te.history = te.history[:0]
	te.rawConfidence = 0.0
	te.confidence = 0.0
	te.state = LockUnlocked
	te.lockedBPM = 0.0
	te.stableCount = 0
}

// Reset fully reinitializes the estimator, including its run gating
func (te *TempoEstimator) Reset() {
	te.ResetIdle()
	te.lastRunMs = -te.cfg.EstimateIntervalMs
}

// BPM returns the current median-filtered tempo estimate
func (te *TempoEstimator) BPM() float64 {
	return te.bpm
}

// IntervalMs returns the current beat interval in milliseconds
func (te *TempoEstimator) IntervalMs() float64 {
	return te.intervalMs
}

// Confidence returns the smoothed, displayed confidence in [0, 1]
func (te *TempoEstimator) Confidence() float64 {
	return te.confidence
}

// State returns the current lock state
func (te *TempoEstimator) State() LockState {
	return te.state
}
