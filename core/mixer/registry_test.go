package mixer

import (
	"context"
	"math"
	"testing"
	"time"
)

var testStemOrder = []string{"vocals", "drums", "bass", "other"}

func loadedRegistry(t *testing.T, stems map[string]string) (*Registry, *fakeLoader) {
	t.Helper()
	loader := newFakeLoader()
	reg := NewRegistry(loader)
	reg.LoadFromStems(context.Background(), testStemOrder, stems)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reg.WaitLoaded(ctx); err != nil {
		t.Fatalf("WaitLoaded: %v", err)
	}
	return reg, loader
}

func fourStems() map[string]string {
	return map[string]string{
		"vocals": "http://x/vocals.wav",
		"drums":  "http://x/drums.wav",
		"bass":   "http://x/bass.wav",
		"other":  "http://x/other.wav",
	}
}

func gainOf(t *testing.T, reg *Registry, id string) float64 {
	t.Helper()
	tr := reg.Track(id)
	if tr == nil {
		t.Fatalf("track %s missing", id)
	}
	return tr.EffectiveGain()
}

func TestDefaultGainIsVolume(t *testing.T) {
	reg, _ := loadedRegistry(t, fourStems())

	for _, id := range testStemOrder {
		if g := gainOf(t, reg, id); math.Abs(g-defaultVolume) > 1e-9 {
			t.Errorf("track %s gain = %v, want %v", id, g, defaultVolume)
		}
	}
}

func TestMuteSilencesOnlyThatTrack(t *testing.T) {
	reg, _ := loadedRegistry(t, fourStems())

	reg.SetMuted("drums", true)

	if g := gainOf(t, reg, "drums"); g != 0 {
		t.Errorf("muted track gain = %v, want 0", g)
	}
	if g := gainOf(t, reg, "vocals"); g != defaultVolume {
		t.Errorf("unmuted track gain = %v, want %v", g, defaultVolume)
	}

	reg.SetMuted("drums", false)
	if g := gainOf(t, reg, "drums"); g != defaultVolume {
		t.Errorf("unmuted gain = %v, want %v", g, defaultVolume)
	}
}

func TestSoloSilencesEveryoneElse(t *testing.T) {
	reg, _ := loadedRegistry(t, fourStems())

	reg.SetSolo("vocals", true)

	if g := gainOf(t, reg, "vocals"); g != defaultVolume {
		t.Errorf("soloed track gain = %v, want %v", g, defaultVolume)
	}
	for _, id := range []string{"drums", "bass", "other"} {
		if g := gainOf(t, reg, id); g != 0 {
			t.Errorf("non-solo track %s gain = %v, want 0", id, g)
		}
	}

	// Additive solo: a second solo track also plays.
	reg.SetSolo("bass", true)
	if g := gainOf(t, reg, "bass"); g != defaultVolume {
		t.Errorf("second solo gain = %v, want %v", g, defaultVolume)
	}
	if g := gainOf(t, reg, "drums"); g != 0 {
		t.Errorf("drums gain = %v, want 0", g)
	}

	// Dropping the last solo restores everyone.
	reg.SetSolo("vocals", false)
	reg.SetSolo("bass", false)
	for _, id := range testStemOrder {
		if g := gainOf(t, reg, id); g != defaultVolume {
			t.Errorf("track %s gain after unsolo = %v, want %v", id, g, defaultVolume)
		}
	}
}

func TestMuteWinsOverSolo(t *testing.T) {
	reg, _ := loadedRegistry(t, fourStems())

	reg.SetSolo("vocals", true)
	reg.SetMuted("vocals", true)

	if g := gainOf(t, reg, "vocals"); g != 0 {
		t.Errorf("muted+soloed track gain = %v, want 0", g)
	}
}

func TestVolumeChangeRespectsSolo(t *testing.T) {
	reg, _ := loadedRegistry(t, fourStems())

	reg.SetSolo("vocals", true)
	reg.SetVolume("drums", 0.5)

	// Drums stay silent while vocals is soloed, but the volume sticks.
	if g := gainOf(t, reg, "drums"); g != 0 {
		t.Errorf("drums gain during solo = %v, want 0", g)
	}
	reg.SetSolo("vocals", false)
	if g := gainOf(t, reg, "drums"); g != 0.5 {
		t.Errorf("drums gain after unsolo = %v, want 0.5", g)
	}
}

func TestVolumeAndPanAreClamped(t *testing.T) {
	reg, _ := loadedRegistry(t, fourStems())

	reg.SetVolume("vocals", 1.7)
	if v := reg.Track("vocals").Volume(); v != 1 {
		t.Errorf("volume = %v, want 1", v)
	}
	reg.SetVolume("vocals", -0.3)
	if v := reg.Track("vocals").Volume(); v != 0 {
		t.Errorf("volume = %v, want 0", v)
	}

	reg.SetPan("vocals", -2)
	if p := reg.Track("vocals").Pan(); p != -1 {
		t.Errorf("pan = %v, want -1", p)
	}
}

func TestFailedStemIsContained(t *testing.T) {
	loader := newFakeLoader()
	loader.fail["http://x/drums.wav"] = true

	reg := NewRegistry(loader)
	reg.LoadFromStems(context.Background(), testStemOrder, fourStems())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reg.WaitLoaded(ctx); err != nil {
		t.Fatalf("WaitLoaded: %v", err)
	}

	if !reg.AllLoaded() {
		t.Fatal("AllLoaded should be true once every load settled")
	}
	if st := reg.Track("drums").State(); st != TrackFailed {
		t.Errorf("drums state = %v, want failed", st)
	}
	if err := reg.Track("drums").LoadError(); err == nil {
		t.Error("failed track should carry its load error")
	}
	for _, id := range []string{"vocals", "bass", "other"} {
		if st := reg.Track(id).State(); st != TrackReady {
			t.Errorf("track %s state = %v, want ready", id, st)
		}
	}
}

func TestTracksKeepRegistrationOrder(t *testing.T) {
	reg, _ := loadedRegistry(t, fourStems())

	got := reg.Tracks()
	if len(got) != len(testStemOrder) {
		t.Fatalf("got %d tracks, want %d", len(got), len(testStemOrder))
	}
	for i, tr := range got {
		if tr.ID != testStemOrder[i] {
			t.Errorf("track[%d] = %s, want %s", i, tr.ID, testStemOrder[i])
		}
	}
}

func TestUnknownStemNamesStillGetTracks(t *testing.T) {
	stems := map[string]string{
		"vocals": "http://x/vocals.wav",
		"piano":  "http://x/piano.wav",
		"guitar": "http://x/guitar.wav",
	}
	reg, _ := loadedRegistry(t, stems)

	got := reg.Tracks()
	if len(got) != len(stems) {
		t.Fatalf("got %d tracks for %d stem entries", len(got), len(stems))
	}
	// Known names keep their place; unknown ones follow in sorted order.
	wantOrder := []string{"vocals", "guitar", "piano"}
	for i, tr := range got {
		if tr.ID != wantOrder[i] {
			t.Errorf("track[%d] = %s, want %s", i, tr.ID, wantOrder[i])
		}
	}
	for name := range stems {
		tr := reg.Track(name)
		if tr == nil {
			t.Fatalf("stem %s produced no track", name)
		}
		if st := tr.State(); st != TrackReady {
			t.Errorf("track %s state = %v, want ready", name, st)
		}
		if g := tr.EffectiveGain(); g != defaultVolume {
			t.Errorf("track %s gain = %v, want %v", name, g, defaultVolume)
		}
	}
}

func TestAllUnknownStemsStillPlayable(t *testing.T) {
	stems := map[string]string{
		"piano":  "http://x/piano.wav",
		"guitar": "http://x/guitar.wav",
	}
	reg, loader := loadedRegistry(t, stems)
	tr := NewTransport(reg, 50*time.Millisecond, 10*time.Millisecond)
	defer tr.Close()

	if err := tr.PlayAll(); err != nil {
		t.Fatalf("PlayAll: %v", err)
	}
	for name := range stems {
		if !loader.element(stems[name]).isPlaying() {
			t.Errorf("track %s not playing", name)
		}
	}
}

func TestDisposeAllIsIdempotent(t *testing.T) {
	reg, loader := loadedRegistry(t, fourStems())

	reg.DisposeAll()
	reg.DisposeAll()

	for _, id := range testStemOrder {
		el := loader.element("http://x/" + id + ".wav")
		el.mu.Lock()
		closed := el.closed
		el.mu.Unlock()
		if !closed {
			t.Errorf("element for %s not closed after DisposeAll", id)
		}
	}
}

func TestDisposeDuringLoadClosesLateElement(t *testing.T) {
	loader := newFakeLoader()
	loader.block = make(chan struct{})

	reg := NewRegistry(loader)
	stems := map[string]string{"vocals": "http://x/vocals.wav"}
	reg.LoadFromStems(context.Background(), testStemOrder, stems)

	reg.DisposeAll()
	close(loader.block)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reg.WaitLoaded(ctx); err != nil {
		t.Fatalf("WaitLoaded: %v", err)
	}

	el := loader.element("http://x/vocals.wav")
	el.mu.Lock()
	closed := el.closed
	el.mu.Unlock()
	if !closed {
		t.Error("element finishing after dispose must be closed, not leaked")
	}
}
