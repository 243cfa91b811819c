package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-beat/algorithms/common"
)

// BandConfig describes one frequency band of the onset detector
type BandConfig struct {
	Name   string  `json:"name"`
	LowHz  float64 `json:"low_hz"`
	HighHz float64 `json:"high_hz"`
	Weight float64 `json:"weight"` // relative contribution to the combined onset signal
}

// frequencyBand carries the per-band adaptive calibration state. The
// three bands share identical processing logic and differ only by data.
type frequencyBand struct {
	name   string
	weight float64

	lowBin  int
	highBin int // inclusive

	threshold     float64
	baseThreshold float64
	prevEnergy    float64
	energyHistory *common.RollingWindow
}

// BinForFrequency maps a frequency in Hz onto the index of a
// logarithmically spaced spectrum of the given size:
//
//	index = floor(log(f/fMin) / log(fMax/fMin) * (N-1))
func BinForFrequency(freq, minHz, maxHz float64, size int) int {
	if size < 1 || minHz <= 0 || maxHz <= minHz {
		return 0
	}
	if freq < minHz {
		freq = minHz
	}
	if freq > maxHz {
		freq = maxHz
	}

	idx := int(math.Log(freq/minHz) / math.Log(maxHz/minHz) * float64(size-1))
	if idx < 0 {
		idx = 0
	}
	if idx > size-1 {
		idx = size - 1
	}
	return idx
}

// FrequencyForBin is the inverse mapping, used by spectrum producers to
// fold linearly spaced FFT bins onto the logarithmic grid
func FrequencyForBin(bin int, minHz, maxHz float64, size int) float64 {
	if size < 2 || minHz <= 0 || maxHz <= minHz {
		return minHz
	}
	if bin < 0 {
		bin = 0
	}
	if bin > size-1 {
		bin = size - 1
	}

	return minHz * math.Pow(maxHz/minHz, float64(bin)/float64(size-1))
}

// newFrequencyBand allocates a band with its calibration state
func newFrequencyBand(cfg BandConfig, minHz, maxHz float64, spectrumSize, meanWindow int, baseThreshold float64) *frequencyBand {
	low := BinForFrequency(cfg.LowHz, minHz, maxHz, spectrumSize)
	high := BinForFrequency(cfg.HighHz, minHz, maxHz, spectrumSize)
	if high < low {
		low, high = high, low
	}

	return &frequencyBand{
		name:          cfg.Name,
		weight:        cfg.Weight,
		lowBin:        low,
		highBin:       high,
		threshold:     baseThreshold,
		baseThreshold: baseThreshold,
		energyHistory: common.NewRollingWindow(meanWindow),
	}
}

// energy computes RMS magnitude over the band's bin range
func (fb *frequencyBand) energy(spectrum []float64) float64 {
	low := fb.lowBin
	high := fb.highBin
	if low >= len(spectrum) {
		return 0.0
	}
	if high >= len(spectrum) {
		high = len(spectrum) - 1
	}

	return common.RMS(spectrum[low : high+1])
}

// reset returns calibration state to initial values without reallocating
func (fb *frequencyBand) reset() {
	fb.threshold = fb.baseThreshold
	fb.prevEnergy = 0.0
	fb.energyHistory.Reset()
}
