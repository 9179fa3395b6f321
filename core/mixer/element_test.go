package mixer

import (
	"math"
	"testing"
	"time"
)

func sinePCM(rate int, seconds float64, freq float64) []float64 {
	n := int(float64(rate) * seconds)
	pcm := make([]float64, n)
	for i := range pcm {
		pcm[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(rate))
	}
	return pcm
}

func TestClockElementAdvancesWhilePlaying(t *testing.T) {
	el := newClockElement(sinePCM(44100, 2, 440), 44100, 2)
	defer el.Close()

	if pos := el.Position(); pos != 0 {
		t.Fatalf("initial position = %v, want 0", pos)
	}

	el.Play()
	time.Sleep(100 * time.Millisecond)
	pos := el.Position()
	if pos <= 0 || pos > 1 {
		t.Fatalf("position after 100ms = %v, want within (0, 1]", pos)
	}

	el.Pause()
	paused := el.Position()
	time.Sleep(50 * time.Millisecond)
	if got := el.Position(); got != paused {
		t.Errorf("position moved while paused: %v -> %v", paused, got)
	}
}

func TestClockElementSeekAndStop(t *testing.T) {
	el := newClockElement(sinePCM(44100, 2, 440), 44100, 2)
	defer el.Close()

	el.Seek(1.5)
	if pos := el.Position(); math.Abs(pos-1.5) > 0.01 {
		t.Errorf("position after seek = %v, want 1.5", pos)
	}

	// Seeking past the end clamps to duration.
	el.Seek(10)
	if pos := el.Position(); pos > 2 {
		t.Errorf("position after overshoot seek = %v, want <= 2", pos)
	}

	el.Play()
	el.Stop()
	if pos := el.Position(); pos != 0 {
		t.Errorf("position after stop = %v, want 0", pos)
	}
}

func TestClockElementGainAndPanClamped(t *testing.T) {
	el := newClockElement(sinePCM(8000, 1, 100), 8000, 1)
	defer el.Close()

	el.SetGain(2.5)
	if g := el.Gain(); g != 1 {
		t.Errorf("gain = %v, want 1", g)
	}
	el.SetPan(-7)
	if p := el.Pan(); p != -1 {
		t.Errorf("pan = %v, want -1", p)
	}
}

func TestClockElementWindowReadsAtPlayhead(t *testing.T) {
	pcm := sinePCM(44100, 1, 440)
	el := newClockElement(pcm, 44100, 1)
	defer el.Close()

	dst := make([]float64, 512)
	n := el.Window(dst)
	if n == 0 {
		t.Fatal("window at start returned no samples")
	}
	var energy float64
	for _, s := range dst[:n] {
		energy += s * s
	}
	if energy == 0 {
		t.Error("window over a sine wave has zero energy")
	}
}

func TestClockElementCloseIsIdempotent(t *testing.T) {
	el := newClockElement(sinePCM(8000, 1, 100), 8000, 1)
	if err := el.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := el.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
