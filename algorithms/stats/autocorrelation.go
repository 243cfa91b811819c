package stats

import (
	"math"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
)

// Autocorrelator computes normalized lag autocorrelation over a circular
// time series. The scan is restricted to a bounded recent window and a
// sampling stride, so per-call cost stays roughly constant no matter how
// deep the underlying history is.
//
// References:
// - Scheirer, E. (1998). "Tempo and beat analysis of acoustic musical signals"
// - Dixon, S. (2001). "Automatic Extraction of Tempo and Beat from Expressive Performances"
type Autocorrelator struct {
	window int
	stride int
}

// LagScore is a single lag candidate from a scan
type LagScore struct {
	Lag         int     `json:"lag"`
	Correlation float64 `json:"correlation"` // normalized, unweighted
	Weighted    float64 `json:"weighted"`    // correlation after preference weighting
}

// NewAutocorrelator creates an autocorrelator with the given window and stride
func NewAutocorrelator(window, stride int) *Autocorrelator {
	if window < 2 {
		window = 2
	}
	if stride < 1 {
		stride = 1
	}
	return &Autocorrelator{
		window: window,
		stride: stride,
	}
}

// CorrelateAt returns the normalized autocorrelation of the series
// against itself shifted by lag samples, in [0, 1]. Returns 0 when the
// windowed signal carries no energy.
func (ac *Autocorrelator) CorrelateAt(series *common.SeriesRing, lag int) float64 {
	if series == nil || lag < 1 {
		return 0.0
	}

	window := ac.window
	if window+lag > series.Cap() {
		window = series.Cap() - lag
	}
	if window < 2 {
		return 0.0
	}

	var prod, energy, lagged float64
	for i := 0; i < window; i += ac.stride {
		a := series.At(i)
		b := series.At(i + lag)
		prod += a * b
		energy += a * a
		lagged += b * b
	}

	if energy < 1e-12 || lagged < 1e-12 {
		return 0.0
	}

	corr := prod / math.Sqrt(energy*lagged)
	if corr < 0 {
		return 0.0
	}
	return corr
}

// BestLag scans [minLag, maxLag] and returns the lag whose weighted
// correlation is highest. The weight callback biases selection (pass nil
// for a flat scan); the returned Correlation stays unweighted so callers
// can apply an absolute floor to it.
func (ac *Autocorrelator) BestLag(series *common.SeriesRing, minLag, maxLag int, weight func(lag int) float64) LagScore {
	best := LagScore{}
	if series == nil || minLag < 1 || maxLag < minLag {
		return best
	}

	for lag := minLag; lag <= maxLag; lag++ {
		corr := ac.CorrelateAt(series, lag)

		w := 1.0
		if weight != nil {
			w = weight(lag)
		}
		weighted := corr * w

		if weighted > best.Weighted {
			best = LagScore{
				Lag:         lag,
				Correlation: corr,
				Weighted:    weighted,
			}
		}
	}

	return best
}
