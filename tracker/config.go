package tracker

import (
	"github.com/RyanBlaney/sonido-beat/algorithms/temporal"
)

// Config configures the beat tracker and its internal stages
type Config struct {
	Onset temporal.OnsetConfig `json:"onset"`

	// Tempo range and idle default
	MinBPM     float64 `json:"min_bpm"`
	MaxBPM     float64 `json:"max_bpm"`
	DefaultBPM float64 `json:"default_bpm"` // neutral baseline restored after silence

	// Musically common sub-range favored during lag selection
	CommonBPMLow   float64 `json:"common_bpm_low"`
	CommonBPMHigh  float64 `json:"common_bpm_high"`
	CommonBPMBoost float64 `json:"common_bpm_boost"`

	// Tempo estimator cadence and autocorrelation bounds
	EstimateIntervalMs float64 `json:"estimate_interval_ms"`
	HistorySize        int     `json:"history_size"`       // onset history ring capacity
	CorrelationWindow  int     `json:"correlation_window"` // recent samples scanned per lag
	CorrelationStride  int     `json:"correlation_stride"`
	CorrelationFloor   float64 `json:"correlation_floor"` // below this the cycle finds no reliable tempo
	TempoHistorySize   int     `json:"tempo_history_size"`
	OctaveTolerance    float64 `json:"octave_tolerance"` // relative tolerance for 2x/0.5x folding

	// Confidence model and tempo locking
	LockThreshold        float64 `json:"lock_threshold"`
	ProvisionalThreshold float64 `json:"provisional_threshold"`
	StableTolerance      float64 `json:"stable_tolerance"` // relative deviation from the locked BPM
	ConfidenceRise       float64 `json:"confidence_rise"`
	ConfidenceFall       float64 `json:"confidence_fall"`
	ConfidenceFallLocked float64 `json:"confidence_fall_locked"`

	// Beat clock
	BeatWindow     float64 `json:"beat_window"`     // wrapped phase window for onset-confirmed beats
	TriggerFloor   float64 `json:"trigger_floor"`   // onset strength floor for confirmed beats
	CorrectionGain float64 `json:"correction_gain"` // proportional phase correction

	// Silence handling
	SilenceEpsilon float64 `json:"silence_epsilon"`
	SilenceHoldMs  float64 `json:"silence_hold_ms"`

	// Debug telemetry refresh cadence
	DebugRefreshMs float64 `json:"debug_refresh_ms"`
}

// DefaultConfig returns the tuning for a ~60 Hz frame rate and a
// 512-bin 20 Hz - 20 kHz logarithmic spectrum
func DefaultConfig() Config {
	return Config{
		Onset: temporal.DefaultOnsetConfig(),

		MinBPM:     60.0,
		MaxBPM:     180.0,
		DefaultBPM: 120.0,

		CommonBPMLow:   85.0,
		CommonBPMHigh:  135.0,
		CommonBPMBoost: 1.2,

		EstimateIntervalMs: 750.0,
		HistorySize:        512,
		CorrelationWindow:  256,
		CorrelationStride:  2,
		CorrelationFloor:   0.05,
		TempoHistorySize:   8,
		OctaveTolerance:    0.1,

		LockThreshold:        0.7,
		ProvisionalThreshold: 0.45,
		StableTolerance:      0.05,
		ConfidenceRise:       0.25,
		ConfidenceFall:       0.06,
		ConfidenceFallLocked: 0.03,

		BeatWindow:     0.15,
		TriggerFloor:   0.15,
		CorrectionGain: 0.3,

		SilenceEpsilon: 0.001,
		SilenceHoldMs:  3000.0,

		DebugRefreshMs: 500.0,
	}
}
