package tracker

import (
	"math"
	"testing"
)

func TestPredictedBeatAtPhaseWrap(t *testing.T) {
	bc := NewBeatClock(DefaultConfig()) // 120 BPM default, 500 ms interval

	if beat, _ := bc.Advance(0, 0, 0); beat {
		t.Fatalf("beat fired on clock initialization")
	}

	for _, now := range []float64{100, 200, 300, 400} {
		if beat, _ := bc.Advance(now, 0, 0); beat {
			t.Fatalf("beat fired mid-cycle at %v ms", now)
		}
	}

	beat, _ := bc.Advance(500, 0, 0)
	if !beat {
		t.Errorf("predicted beat did not fire at the interval")
	}
	if bc.Phase() != 0 {
		t.Errorf("phase after beat = %v, want 0", bc.Phase())
	}
	if bc.BeatCount() != 1 {
		t.Errorf("beat count = %d, want 1", bc.BeatCount())
	}
}

func TestPhaseMonotonicBetweenBeats(t *testing.T) {
	bc := NewBeatClock(DefaultConfig())
	bc.Advance(0, 0, 0)

	prev := -1.0
	for now := 20.0; now < 500.0; now += 20.0 {
		beat, _ := bc.Advance(now, 0, 0)
		if beat {
			t.Fatalf("unexpected beat at %v ms", now)
		}
		if bc.Phase() < prev {
			t.Fatalf("phase decreased between beats: %v -> %v at %v ms", prev, bc.Phase(), now)
		}
		prev = bc.Phase()
	}
}

func TestAtMostOneBeatPerFrame(t *testing.T) {
	bc := NewBeatClock(DefaultConfig())
	bc.Advance(0, 0, 0)

	// Predicted wrap and a strong onset coincide: still one beat
	beat, _ := bc.Advance(500, 1.0, 1.0)
	if !beat {
		t.Fatalf("beat did not fire")
	}
	if bc.BeatCount() != 1 {
		t.Errorf("beat count = %d, want 1", bc.BeatCount())
	}

	// The frame right after must not re-fire off the beat's own tail,
	// strong onset or not
	if beat, _ := bc.Advance(501, 1.0, 1.0); beat {
		t.Errorf("beat re-fired immediately after acceptance")
	}
}

func TestConfirmedEarlyBeatCorrection(t *testing.T) {
	cfg := DefaultConfig()
	bc := NewBeatClock(cfg)
	bc.Advance(0, 0, 0)
	bc.Advance(500, 0, 0) // grid beat at 500

	// Strong onset at phase 0.86, inside the late window, before the
	// predicted instant at 1000
	beat, _ := bc.Advance(930, 0.5, 0.5)
	if !beat {
		t.Fatalf("onset-confirmed early beat did not fire")
	}

	// Proportional correction: the grid reference lands between the
	// onset time (full snap) and the predicted grid point (no snap)
	err := 0.86 - 1.0
	want := 930.0 - (1.0-cfg.CorrectionGain)*err*500.0
	if math.Abs(bc.lastBeatMs-want) > 1e-6 {
		t.Errorf("corrected beat reference = %v, want %v", bc.lastBeatMs, want)
	}
	if bc.lastBeatMs <= 930.0 || bc.lastBeatMs >= 1000.0 {
		t.Errorf("correction %v not between onset (930) and grid (1000)", bc.lastBeatMs)
	}

	// The corrected reference sits ahead of the next frame; phase must
	// hold at the wrap rather than go negative
	bc.Advance(950, 0, 0)
	if bc.Phase() != 0 {
		t.Errorf("phase = %v while the grid reference is ahead, want 0", bc.Phase())
	}
}

func TestLateConfirmedBeatKeepsPhaseInRange(t *testing.T) {
	bc := NewBeatClock(DefaultConfig())
	bc.Advance(0, 0, 0)
	bc.Advance(500, 0, 0)

	// Confirmed beat deep inside the late window, far from the grid
	// point, pushes the corrected reference past the onset time
	if beat, _ := bc.Advance(930, 0.5, 0.5); !beat {
		t.Fatalf("onset-confirmed beat did not fire")
	}

	prev := 0.0
	for now := 950.0; now <= 1150.0; now += 20.0 {
		if beat, _ := bc.Advance(now, 0, 0); beat {
			t.Fatalf("unexpected beat at %v ms", now)
		}
		p := bc.Phase()
		if p < 0 || p >= 1 {
			t.Fatalf("phase %v out of [0,1) at %v ms", p, now)
		}
		if p < prev {
			t.Fatalf("phase decreased after correction: %v -> %v at %v ms", prev, p, now)
		}
		prev = p
	}
}

func TestZeroValueConfigFallsBackToDefaults(t *testing.T) {
	bc := NewBeatClock(Config{})
	if math.IsInf(bc.intervalMs, 0) || bc.intervalMs <= 0 {
		t.Fatalf("interval = %v with a zero-value config", bc.intervalMs)
	}

	bc.Advance(0, 0, 0)
	if beat, _ := bc.Advance(500, 0, 0); !beat {
		t.Errorf("default-tempo beat did not fire at 500 ms")
	}
}

func TestEarlyWindowNeedsElapsedInterval(t *testing.T) {
	bc := NewBeatClock(DefaultConfig())
	bc.Advance(0, 0, 0)
	bc.Advance(500, 0, 0)

	// Phase < window but the interval has not elapsed: refractory
	if beat, _ := bc.Advance(550, 1.0, 1.0); beat {
		t.Errorf("beat fired inside the refractory tail")
	}

	// Weak onsets never confirm, even inside the window
	if beat, _ := bc.Advance(940, 0.01, 0.01); beat {
		t.Errorf("beat fired without onset strength")
	}
}

func TestDownbeatEveryFourthBeat(t *testing.T) {
	bc := NewBeatClock(DefaultConfig())
	bc.Advance(0, 0, 0)

	var downbeats []int
	for i := 1; i <= 8; i++ {
		beat, downbeat := bc.Advance(float64(i)*500.0, 0, 0)
		if !beat {
			t.Fatalf("beat %d did not fire", i)
		}
		if downbeat {
			downbeats = append(downbeats, bc.BeatCount())
		}
	}

	if len(downbeats) != 2 || downbeats[0] != 4 || downbeats[1] != 8 {
		t.Errorf("downbeats at %v, want [4 8]", downbeats)
	}
}

func TestTapTempoDeterminism(t *testing.T) {
	bc := NewBeatClock(DefaultConfig())

	if _, ok := bc.Tap(1000); ok {
		t.Errorf("first tap produced a tempo")
	}

	bpm, ok := bc.Tap(1500)
	if !ok {
		t.Fatalf("second tap 500 ms later produced no tempo")
	}
	if math.Abs(bpm-120.0) > 1e-9 {
		t.Errorf("tapped BPM = %v, want 120", bpm)
	}
}

func TestTapTempoAveragesRecentTaps(t *testing.T) {
	bc := NewBeatClock(DefaultConfig())

	bc.Tap(0)
	bc.Tap(400)
	bpm, ok := bc.Tap(900)
	if !ok {
		t.Fatalf("tap sequence produced no tempo")
	}
	// Intervals 400 and 500 average to 450 ms
	if math.Abs(bpm-60000.0/450.0) > 1e-9 {
		t.Errorf("averaged BPM = %v, want %v", bpm, 60000.0/450.0)
	}
}

func TestTapTempoRejectsImplausibleSpacing(t *testing.T) {
	bc := NewBeatClock(DefaultConfig())

	bc.Tap(0)
	if _, ok := bc.Tap(5000); ok {
		t.Errorf("5 second gap produced a tempo")
	}
	if _, ok := bc.Tap(5100); ok {
		t.Errorf("100 ms gap produced a tempo")
	}

	// The rejected taps still anchor a fresh sequence
	bpm, ok := bc.Tap(5600)
	if !ok || math.Abs(bpm-120.0) > 1e-9 {
		t.Errorf("fresh sequence after rejects: bpm=%v ok=%v, want 120", bpm, ok)
	}
}

func TestBeatClockReset(t *testing.T) {
	bc := NewBeatClock(DefaultConfig())
	bc.Advance(0, 0, 0)
	bc.Advance(500, 0, 0)
	bc.Tap(1000)

	bc.Reset()

	if bc.BeatCount() != 0 || bc.Phase() != 0 {
		t.Errorf("reset left count=%d phase=%v", bc.BeatCount(), bc.Phase())
	}
	if beat, _ := bc.Advance(2000, 0, 0); beat {
		t.Errorf("first frame after reset fired a beat")
	}
}
