package temporal

// SilenceTracker watches total band energy and reports when continuous
// sub-threshold input has lasted longer than the hold duration. Any
// energy at or above the threshold immediately clears the bookkeeping.
type SilenceTracker struct {
	epsilon     float64
	holdMs      float64
	silentSince float64 // ms timestamp of silence onset, <0 when not silent
}

// NewSilenceTracker creates a silence tracker with the given energy
// threshold and hold duration in milliseconds
func NewSilenceTracker(epsilon, holdMs float64) *SilenceTracker {
	return &SilenceTracker{
		epsilon:     epsilon,
		holdMs:      holdMs,
		silentSince: -1,
	}
}

// Observe feeds one frame's total energy at the given timestamp and
// returns true while silence has been continuous for at least the hold
// duration
func (st *SilenceTracker) Observe(nowMs, energy float64) bool {
	if energy >= st.epsilon {
		st.silentSince = -1
		return false
	}

	if st.silentSince < 0 {
		st.silentSince = nowMs
		return false
	}

	return nowMs-st.silentSince >= st.holdMs
}

// Silent reports whether the input is currently below the energy threshold
func (st *SilenceTracker) Silent() bool {
	return st.silentSince >= 0
}

// Reset clears the silence bookkeeping
func (st *SilenceTracker) Reset() {
	st.silentSince = -1
}
