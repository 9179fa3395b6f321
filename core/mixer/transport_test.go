package mixer

import (
	"context"
	"testing"
	"time"
)

func testTransport(reg *Registry) *Transport {
	return NewTransport(reg, 50*time.Millisecond, 10*time.Millisecond)
}

func TestPlayAllGatedOnLoading(t *testing.T) {
	loader := newFakeLoader()
	loader.block = make(chan struct{})

	reg := NewRegistry(loader)
	reg.LoadFromStems(context.Background(), testStemOrder, fourStems())
	tr := testTransport(reg)
	defer tr.Close()

	if err := tr.PlayAll(); err != ErrNotLoaded {
		t.Fatalf("PlayAll during load = %v, want ErrNotLoaded", err)
	}

	close(loader.block)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reg.WaitLoaded(ctx); err != nil {
		t.Fatalf("WaitLoaded: %v", err)
	}

	if err := tr.PlayAll(); err != nil {
		t.Fatalf("PlayAll after load = %v, want nil", err)
	}
	if !tr.Playing() {
		t.Error("transport should report playing")
	}
}

func TestSilentTracksPlayToo(t *testing.T) {
	reg, loader := loadedRegistry(t, fourStems())
	tr := testTransport(reg)
	defer tr.Close()

	// Mute one and solo another so two tracks end up at zero gain.
	reg.SetMuted("drums", true)
	reg.SetSolo("vocals", true)

	if err := tr.PlayAll(); err != nil {
		t.Fatalf("PlayAll: %v", err)
	}

	for _, id := range testStemOrder {
		el := loader.element("http://x/" + id + ".wav")
		if !el.isPlaying() {
			t.Errorf("track %s not playing; silent tracks must run to stay aligned", id)
		}
	}
}

func TestPauseAndStopApplyToEveryTrack(t *testing.T) {
	reg, loader := loadedRegistry(t, fourStems())
	tr := testTransport(reg)
	defer tr.Close()

	if err := tr.PlayAll(); err != nil {
		t.Fatalf("PlayAll: %v", err)
	}
	tr.PauseAll()
	for _, id := range testStemOrder {
		if loader.element("http://x/" + id + ".wav").isPlaying() {
			t.Errorf("track %s still playing after PauseAll", id)
		}
	}
	if tr.Playing() {
		t.Error("transport should not report playing after pause")
	}

	tr.StopAll()
	for _, id := range testStemOrder {
		el := loader.element("http://x/" + id + ".wav")
		el.mu.Lock()
		stopped := el.stopped
		el.mu.Unlock()
		if !stopped {
			t.Errorf("track %s not stopped after StopAll", id)
		}
	}
}

func TestSeekAllIsUniform(t *testing.T) {
	reg, loader := loadedRegistry(t, fourStems())
	tr := testTransport(reg)
	defer tr.Close()

	tr.SeekAll(42.5)
	for _, id := range testStemOrder {
		el := loader.element("http://x/" + id + ".wav")
		if pos, ok := el.lastSeek(); !ok || pos != 42.5 {
			t.Errorf("track %s seek = %v (%v), want 42.5", id, pos, ok)
		}
	}

	tr.SeekAll(-3)
	for _, id := range testStemOrder {
		el := loader.element("http://x/" + id + ".wav")
		if pos, _ := el.lastSeek(); pos != 0 {
			t.Errorf("track %s negative seek clamped to %v, want 0", id, pos)
		}
	}
}

func TestDriftCorrectionReseeksStragglers(t *testing.T) {
	reg, loader := loadedRegistry(t, fourStems())
	tr := testTransport(reg)
	defer tr.Close()

	if err := tr.PlayAll(); err != nil {
		t.Fatalf("PlayAll: %v", err)
	}

	// vocals is the reference (first in registration order). Push drums
	// far off and bass just inside the tolerance.
	ref := loader.element("http://x/vocals.wav")
	ref.mu.Lock()
	ref.pos = 10.0
	ref.mu.Unlock()

	drums := loader.element("http://x/drums.wav")
	drums.mu.Lock()
	drums.pos = 10.3
	drums.mu.Unlock()

	bass := loader.element("http://x/bass.wav")
	bass.mu.Lock()
	bass.pos = 10.02
	bass.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if pos, ok := drums.lastSeek(); ok && pos == 10.0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("drifted track was never re-seeked to the reference")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := bass.lastSeek(); ok {
		t.Error("track within tolerance must not be re-seeked")
	}
}

func TestDriftCorrectionStopsOnPause(t *testing.T) {
	reg, loader := loadedRegistry(t, fourStems())
	tr := testTransport(reg)
	defer tr.Close()

	if err := tr.PlayAll(); err != nil {
		t.Fatalf("PlayAll: %v", err)
	}
	tr.PauseAll()
	time.Sleep(30 * time.Millisecond)

	drums := loader.element("http://x/drums.wav")
	drums.mu.Lock()
	drums.pos = 99
	before := len(drums.seeks)
	drums.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	drums.mu.Lock()
	after := len(drums.seeks)
	drums.mu.Unlock()
	if after != before {
		t.Error("drift correction kept running after pause")
	}
}

func TestDurationIsLongestTrack(t *testing.T) {
	reg, loader := loadedRegistry(t, fourStems())
	tr := testTransport(reg)
	defer tr.Close()

	el := loader.element("http://x/other.wav")
	el.mu.Lock()
	el.dur = 250
	el.mu.Unlock()

	if d := tr.Duration(); d != 250 {
		t.Errorf("Duration = %v, want 250", d)
	}
}
