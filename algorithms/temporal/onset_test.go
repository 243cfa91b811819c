package temporal

import (
	"math"
	"testing"
)

// bandSpectrum builds a spectrum with the given magnitude across one
// band's frequency range
func bandSpectrum(cfg OnsetConfig, lowHz, highHz, magnitude float64) []float64 {
	spectrum := make([]float64, cfg.SpectrumSize)
	low := BinForFrequency(lowHz, cfg.MinFrequency, cfg.MaxFrequency, cfg.SpectrumSize)
	high := BinForFrequency(highHz, cfg.MinFrequency, cfg.MaxFrequency, cfg.SpectrumSize)
	for i := low; i <= high; i++ {
		spectrum[i] = magnitude
	}
	return spectrum
}

func TestBinForFrequencyMapping(t *testing.T) {
	tests := []struct {
		freq float64
		want int
	}{
		{20, 0},      // low edge
		{20000, 511}, // high edge
		{10, 0},      // clamped below
		{30000, 511}, // clamped above
	}
	for _, tt := range tests {
		if got := BinForFrequency(tt.freq, 20, 20000, 512); got != tt.want {
			t.Errorf("BinForFrequency(%v) = %d, want %d", tt.freq, got, tt.want)
		}
	}

	// Mapping must be monotonic in frequency
	prev := -1
	for _, f := range []float64{20, 40, 120, 500, 2000, 8000, 20000} {
		idx := BinForFrequency(f, 20, 20000, 512)
		if idx < prev {
			t.Fatalf("mapping not monotonic at %v Hz: %d < %d", f, idx, prev)
		}
		prev = idx
	}
}

func TestFrequencyForBinRoundTrip(t *testing.T) {
	for _, bin := range []int{0, 51, 132, 289, 511} {
		freq := FrequencyForBin(bin, 20, 20000, 512)
		if got := BinForFrequency(freq, 20, 20000, 512); got < bin-1 || got > bin {
			t.Errorf("round trip bin %d -> %v Hz -> bin %d", bin, freq, got)
		}
	}
}

func TestOnsetDetectorRespondsToKick(t *testing.T) {
	cfg := DefaultOnsetConfig()
	od := NewOnsetDetector(cfg)

	quiet := make([]float64, cfg.SpectrumSize)
	for i := 0; i < 5; i++ {
		od.Process(quiet)
	}

	frame := od.Process(bandSpectrum(cfg, 40, 120, 0.8))

	if frame.Strength <= 0 {
		t.Errorf("kick hit produced no onset strength")
	}
	if frame.RawFlux <= 0 {
		t.Errorf("kick hit produced no raw flux")
	}
	if frame.KickOnset <= 0 {
		t.Errorf("kick hit produced no isolated kick onset")
	}
	if frame.TotalEnergy <= 0 {
		t.Errorf("kick hit produced no total energy")
	}
}

func TestThresholdNonRetrigger(t *testing.T) {
	cfg := DefaultOnsetConfig()
	od := NewOnsetDetector(cfg)

	quiet := make([]float64, cfg.SpectrumSize)
	for i := 0; i < 5; i++ {
		od.Process(quiet)
	}

	// A single sustained step must contribute one onset per rise, not
	// one per frame while the threshold decays
	step := bandSpectrum(cfg, 40, 120, 0.8)

	first := od.Process(step)
	if first.Strength <= 0 {
		t.Fatalf("step onset not detected")
	}

	for i := 0; i < 30; i++ {
		frame := od.Process(step)
		if frame.Strength > 0 {
			t.Fatalf("sustained step retriggered at frame %d (strength %v)", i+1, frame.Strength)
		}
	}
}

func TestRawFluxNotGatedByThreshold(t *testing.T) {
	cfg := DefaultOnsetConfig()
	od := NewOnsetDetector(cfg)

	// Drive the kick threshold up with a strong hit
	od.Process(bandSpectrum(cfg, 40, 120, 0.9))
	quiet := make([]float64, cfg.SpectrumSize)
	od.Process(quiet)

	// A soft hit below the raised threshold must still appear in the
	// periodicity signal
	frame := od.Process(bandSpectrum(cfg, 40, 120, 0.1))

	if frame.Strength > 0 {
		t.Errorf("sub-threshold hit leaked into onset strength: %v", frame.Strength)
	}
	if frame.RawFlux <= 0 {
		t.Errorf("sub-threshold hit missing from raw flux")
	}
}

func TestOnsetDetectorReset(t *testing.T) {
	cfg := DefaultOnsetConfig()
	od := NewOnsetDetector(cfg)

	step := bandSpectrum(cfg, 40, 120, 0.8)
	od.Process(step)
	od.Process(step)

	od.Reset()

	for _, be := range od.BandEnergies() {
		if be.Energy != 0 {
			t.Errorf("band %s energy not cleared by reset: %v", be.Name, be.Energy)
		}
	}

	// After reset the same step must trigger again exactly as at startup
	frame := od.Process(step)
	if frame.Strength <= 0 {
		t.Errorf("reset did not restore adaptive thresholds")
	}
}

func TestBandEnergiesTelemetry(t *testing.T) {
	cfg := DefaultOnsetConfig()
	od := NewOnsetDetector(cfg)

	od.Process(bandSpectrum(cfg, 40, 120, 0.5))

	energies := od.BandEnergies()
	if len(energies) != len(cfg.Bands) {
		t.Fatalf("got %d band energies, want %d", len(energies), len(cfg.Bands))
	}

	byName := map[string]float64{}
	for _, be := range energies {
		byName[be.Name] = be.Energy
	}

	if math.Abs(byName["kick"]-0.5) > 1e-9 {
		t.Errorf("kick energy = %v, want 0.5", byName["kick"])
	}
	if byName["snare"] != 0 || byName["hihat"] != 0 {
		t.Errorf("energy leaked into silent bands: %+v", byName)
	}
}
