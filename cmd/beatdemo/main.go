// beatdemo synthesizes a percussive test signal at a known tempo, runs
// it through the FFT -> log-frequency spectrum -> beat tracker pipeline
// and reports how the tempo estimate converges.
package main

import (
	"flag"
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/RyanBlaney/sonido-beat/algorithms/temporal"
	"github.com/RyanBlaney/sonido-beat/logging"
	"github.com/RyanBlaney/sonido-beat/tracker"
)

var (
	bpm        = flag.Float64("bpm", 128.0, "tempo of the synthesized pattern")
	seconds    = flag.Float64("seconds", 12.0, "length of the synthesized signal")
	sampleRate = flag.Int("rate", 44100, "sample rate in Hz")
	fftSize    = flag.Int("fft", 2048, "FFT size (one hop per frame)")
	verbose    = flag.Bool("v", false, "enable debug logging")
)

// stepClock drives the tracker on the synthetic timeline instead of
// real time, one hop per frame
type stepClock struct {
	ms   float64
	step float64
}

func (c *stepClock) NowMs() float64 { return c.ms }
func (c *stepClock) advance()       { c.ms += c.step }

func main() {
	flag.Parse()

	if *verbose {
		logging.GetGlobalLogger().SetLevel(logging.DebugLevel)
	}
	logger := logging.WithFields(logging.Fields{"component": "beatdemo"})

	signal := synthesize(*bpm, *seconds, *sampleRate)
	size := *fftSize

	cfg := tracker.DefaultConfig()
	clock := &stepClock{step: float64(size) / float64(*sampleRate) * 1000.0}
	bt := tracker.NewBeatTracker(cfg, clock)

	logger.Info("starting analysis", logging.Fields{
		"target_bpm": *bpm,
		"seconds":    *seconds,
		"frame_ms":   clock.step,
	})

	numHops := len(signal) / size
	beats := 0
	downbeats := 0
	nextReport := 1000.0

	for hop := 0; hop < numHops; hop++ {
		chunk := make([]float64, size)
		copy(chunk, signal[hop*size:(hop+1)*size])
		window.Apply(chunk, window.Hann)

		spectrum := logSpectrum(chunk, *sampleRate, cfg.Onset)

		clock.advance()
		out := bt.Process(spectrum)
		if out.Beat {
			beats++
		}
		if out.Downbeat {
			downbeats++
		}

		if clock.NowMs() >= nextReport {
			nextReport += 1000.0
			logger.Info("progress", logging.Fields{
				"t_ms":       int(clock.NowMs()),
				"bpm":        out.BPM,
				"confidence": out.Confidence,
				"beats":      out.BeatCount,
				"lock":       bt.Debug().LockState,
			})
		}
	}

	logger.Info("analysis finished", logging.Fields{
		"target_bpm":    *bpm,
		"estimated_bpm": bt.GetBPM(),
		"confidence":    bt.GetConfidence(),
		"beats":         beats,
		"downbeats":     downbeats,
	})
}

// synthesize renders a simple kick + hi-hat pattern at the given tempo
func synthesize(bpm, seconds float64, sampleRate int) []float64 {
	rng := rand.New(rand.NewSource(1))
	n := int(seconds * float64(sampleRate))
	signal := make([]float64, n)

	beatSamples := int(60.0 / bpm * float64(sampleRate))
	eighthSamples := beatSamples / 2

	for i := range signal {
		// Kick: decaying 60 Hz burst on every beat
		if beatPos := i % beatSamples; beatPos < beatSamples/4 {
			t := float64(beatPos) / float64(sampleRate)
			env := math.Exp(-t * 35.0)
			signal[i] += 0.9 * env * math.Sin(2.0*math.Pi*60.0*t)
		}

		// Hi-hat: short noise burst on every eighth note
		if hatPos := i % eighthSamples; hatPos < eighthSamples/8 {
			t := float64(hatPos) / float64(sampleRate)
			env := math.Exp(-t * 120.0)
			signal[i] += 0.15 * env * (rng.Float64()*2.0 - 1.0)
		}
	}

	return signal
}

// logSpectrum computes the magnitude spectrum of one windowed chunk and
// folds the linear FFT bins onto the log-frequency grid the tracker
// consumes. In a real host this is the job of the spectrum pipeline
// feeding the tracker.
func logSpectrum(chunk []float64, sampleRate int, cfg temporal.OnsetConfig) []float64 {
	spectrum := make([]float64, cfg.SpectrumSize)

	bins := fft.FFTReal(chunk)
	half := len(chunk) / 2
	binHz := float64(sampleRate) / float64(len(chunk))

	for k := 1; k <= half; k++ {
		freq := float64(k) * binHz
		if freq < cfg.MinFrequency || freq > cfg.MaxFrequency {
			continue
		}

		mag := cmplx.Abs(bins[k]) * 2.0 / float64(len(chunk))
		if mag > 1.0 {
			mag = 1.0
		}

		idx := temporal.BinForFrequency(freq, cfg.MinFrequency, cfg.MaxFrequency, cfg.SpectrumSize)
		if mag > spectrum[idx] {
			spectrum[idx] = mag
		}
	}

	return spectrum
}
