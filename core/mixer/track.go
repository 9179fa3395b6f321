package mixer

import (
	"sync"
)

// TrackState is the load state of one stem track.
type TrackState int

const (
	TrackLoading TrackState = iota
	TrackReady
	TrackFailed
)

func (s TrackState) String() string {
	switch s {
	case TrackLoading:
		return "loading"
	case TrackReady:
		return "ready"
	case TrackFailed:
		return "failed"
	}
	return "unknown"
}

// Track wraps one decoded stem with its user-facing mix state. Volume, pan,
// mute and solo are plain state here; resolving them into an effective gain
// is the registry's job, because solo semantics span the whole registry.
type Track struct {
	ID        string
	SourceURL string

	mu       sync.Mutex
	state    TrackState
	loadErr  error
	element  Element
	volume   float64
	pan      float64
	muted    bool
	solo     bool
	disposed bool
}

const defaultVolume = 0.8

func newTrack(id, sourceURL string) *Track {
	return &Track{
		ID:        id,
		SourceURL: sourceURL,
		state:     TrackLoading,
		volume:    defaultVolume,
	}
}

// attach is called by the registry when loading settles.
func (t *Track) attach(el Element, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		if el != nil {
			el.Close()
		}
		return
	}
	if err != nil {
		t.state = TrackFailed
		t.loadErr = err
		return
	}
	t.state = TrackReady
	t.element = el
	el.SetPan(t.pan)
	DefaultSession().register(el)
}

// State reports the track's load state.
func (t *Track) State() TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LoadError returns the failure that put the track into TrackFailed.
func (t *Track) LoadError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadErr
}

// Volume returns the user-set volume, which is independent of mute/solo.
func (t *Track) Volume() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}

// Pan returns the stereo pan in [-1, 1].
func (t *Track) Pan() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pan
}

// Muted reports the mute flag.
func (t *Track) Muted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

// Solo reports the solo flag.
func (t *Track) Solo() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.solo
}

func (t *Track) setVolume(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume = clamp(v, 0, 1)
}

func (t *Track) setPan(p float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pan = clamp(p, -1, 1)
	if t.element != nil {
		t.element.SetPan(t.pan)
	}
}

func (t *Track) setMuted(m bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.muted = m
}

func (t *Track) setSolo(s bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.solo = s
}

// applyGain pushes the registry-resolved effective gain onto the element.
// Applied even while paused so an unpause is never momentarily loud.
func (t *Track) applyGain(effective float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.element != nil {
		t.element.SetGain(effective)
	}
}

// EffectiveGain reads the gain currently applied to the element.
func (t *Track) EffectiveGain() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.element == nil {
		return 0
	}
	return t.element.Gain()
}

func (t *Track) play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.element != nil {
		t.element.Play()
	}
}

func (t *Track) pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.element != nil {
		t.element.Pause()
	}
}

func (t *Track) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.element != nil {
		t.element.Stop()
	}
}

func (t *Track) seek(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.element != nil {
		t.element.Seek(seconds)
	}
}

// Position reports the element playhead, 0 for unloaded tracks.
func (t *Track) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.element == nil {
		return 0
	}
	return t.element.Position()
}

// Duration reports the element duration, 0 for unloaded tracks.
func (t *Track) Duration() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.element == nil {
		return 0
	}
	return t.element.Duration()
}

// window exposes the element's PCM window for analysis taps.
func (t *Track) window(dst []float64) int {
	t.mu.Lock()
	el := t.element
	t.mu.Unlock()
	if el == nil {
		return 0
	}
	return el.Window(dst)
}

// Dispose stops playback and releases the decoded audio. Idempotent.
func (t *Track) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return
	}
	t.disposed = true
	if t.element != nil {
		t.element.Stop()
		DefaultSession().deregister(t.element)
		t.element.Close()
		t.element = nil
	}
}
