package temporal

// OnsetConfig configures the streaming onset detector
type OnsetConfig struct {
	SpectrumSize int     `json:"spectrum_size"`
	MinFrequency float64 `json:"min_frequency"` // Hz, low edge of the log spectrum
	MaxFrequency float64 `json:"max_frequency"` // Hz, high edge of the log spectrum

	Bands []BandConfig `json:"bands"`

	MeanWindow      int     `json:"mean_window"`      // frames of band energy history for the running mean
	DeviationMargin float64 `json:"deviation_margin"` // energy must exceed mean*margin to count as deviation
	FluxWeight      float64 `json:"flux_weight"`
	DeviationWeight float64 `json:"deviation_weight"`

	BaseThreshold  float64 `json:"base_threshold"`  // adaptive threshold floor
	ThresholdAdapt float64 `json:"threshold_adapt"` // raise rate after a trigger
	ThresholdDecay float64 `json:"threshold_decay"` // geometric decay back toward the floor
}

// DefaultOnsetConfig returns the kick/snare/hihat tuning for a 512-bin
// 20 Hz - 20 kHz logarithmic spectrum
func DefaultOnsetConfig() OnsetConfig {
	return OnsetConfig{
		SpectrumSize: 512,
		MinFrequency: 20.0,
		MaxFrequency: 20000.0,
		Bands: []BandConfig{
			{Name: "kick", LowHz: 40, HighHz: 120, Weight: 1.5},
			{Name: "snare", LowHz: 200, HighHz: 1000, Weight: 1.0},
			{Name: "hihat", LowHz: 5000, HighHz: 12000, Weight: 0.7},
		},
		MeanWindow:      45,
		DeviationMargin: 1.3,
		FluxWeight:      0.7,
		DeviationWeight: 0.3,
		BaseThreshold:   0.02,
		ThresholdAdapt:  0.5,
		ThresholdDecay:  0.98,
	}
}

// OnsetFrame is the per-frame output of the onset detector
type OnsetFrame struct {
	Strength    float64 `json:"strength"`     // thresholded, weighted onset strength for beat triggering
	RawFlux     float64 `json:"raw_flux"`     // unthresholded weighted flux for periodicity analysis
	KickOnset   float64 `json:"kick_onset"`   // isolated kick-band onset for beat-strength display
	TotalEnergy float64 `json:"total_energy"` // summed band energy for silence detection
}

// BandEnergy is a named instantaneous band energy for debug telemetry
type BandEnergy struct {
	Name   string  `json:"name"`
	Energy float64 `json:"energy"`
}

// OnsetDetector computes per-band spectral flux and
// deviation-from-running-mean over a log-frequency magnitude snapshot.
// Each band keeps an adaptive threshold that rises on a trigger and
// decays geometrically back toward its floor, so a sustained energy step
// contributes one onset per rise, not one per frame.
type OnsetDetector struct {
	cfg      OnsetConfig
	bands    []*frequencyBand
	kickIdx  int
	energies []float64 // last-frame instantaneous band energies, for telemetry
}

// NewOnsetDetector creates an onset detector; bands are allocated once
// and mutated on every Process call
func NewOnsetDetector(cfg OnsetConfig) *OnsetDetector {
	if cfg.SpectrumSize < 1 {
		cfg.SpectrumSize = 512
	}
	if len(cfg.Bands) == 0 {
		cfg.Bands = DefaultOnsetConfig().Bands
	}
	if cfg.MeanWindow < 1 {
		cfg.MeanWindow = 45
	}

	od := &OnsetDetector{
		cfg:      cfg,
		bands:    make([]*frequencyBand, 0, len(cfg.Bands)),
		energies: make([]float64, len(cfg.Bands)),
	}
	for i, bc := range cfg.Bands {
		od.bands = append(od.bands, newFrequencyBand(bc, cfg.MinFrequency, cfg.MaxFrequency, cfg.SpectrumSize, cfg.MeanWindow, cfg.BaseThreshold))
		if bc.Name == "kick" {
			od.kickIdx = i
		}
	}
	return od
}

// Process analyzes one spectrum snapshot (normalized 0..1 magnitudes).
// The raw flux total is deliberately not gated by the adaptive
// threshold: periodicity analysis needs sub-threshold rhythmic energy
// that display triggering ignores.
func (od *OnsetDetector) Process(spectrum []float64) OnsetFrame {
	frame := OnsetFrame{}
	if len(spectrum) == 0 {
		return frame
	}

	for i, band := range od.bands {
		energy := band.energy(spectrum)
		od.energies[i] = energy

		mean := band.energyHistory.Mean()
		band.energyHistory.Push(energy)

		flux := energy - band.prevEnergy
		if flux < 0 {
			flux = 0
		}

		deviation := energy - mean*od.cfg.DeviationMargin
		if deviation < 0 {
			deviation = 0
		}

		rawOnset := od.cfg.FluxWeight*flux + od.cfg.DeviationWeight*deviation

		if rawOnset > band.threshold {
			frame.Strength += (rawOnset - band.threshold) * band.weight
			band.threshold += rawOnset * od.cfg.ThresholdAdapt
		} else {
			band.threshold = od.cfg.BaseThreshold + (band.threshold-od.cfg.BaseThreshold)*od.cfg.ThresholdDecay
		}
		if band.threshold < od.cfg.BaseThreshold {
			band.threshold = od.cfg.BaseThreshold
		}

		frame.RawFlux += flux * band.weight
		frame.TotalEnergy += energy

		if i == od.kickIdx {
			frame.KickOnset = rawOnset
		}

		band.prevEnergy = energy
	}

	return frame
}

// BandEnergies returns the instantaneous energies from the last frame
func (od *OnsetDetector) BandEnergies() []BandEnergy {
	out := make([]BandEnergy, len(od.bands))
	for i, band := range od.bands {
		out[i] = BandEnergy{Name: band.name, Energy: od.energies[i]}
	}
	return out
}

// Reset clears all adaptive band state without reallocating
func (od *OnsetDetector) Reset() {
	for i, band := range od.bands {
		band.reset()
		od.energies[i] = 0.0
	}
}
