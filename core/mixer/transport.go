package mixer

import (
	"context"
	"errors"
	"sync"
	"time"

	"stemset/logger"
)

// ErrNotLoaded is returned by PlayAll while any track is still loading.
var ErrNotLoaded = errors.New("tracks still loading")

// Transport drives all tracks of a registry in lockstep. Play is gated on
// the registry having settled; pause, stop and seek always apply to every
// track, audible or not, so positions never diverge across mute/solo
// changes.
type Transport struct {
	registry *Registry

	driftTolerance time.Duration
	checkInterval  time.Duration

	mu      sync.Mutex
	playing bool
	cancel  context.CancelFunc
}

// NewTransport wires a transport over reg with the given drift budget.
func NewTransport(reg *Registry, driftTolerance, checkInterval time.Duration) *Transport {
	return &Transport{
		registry:       reg,
		driftTolerance: driftTolerance,
		checkInterval:  checkInterval,
	}
}

// PlayAll starts every ready track. Silent tracks play too, at zero gain,
// so that unmuting later does not need a catch-up seek. Returns ErrNotLoaded
// while any track is still loading.
func (tr *Transport) PlayAll() error {
	if !tr.registry.AllLoaded() {
		return ErrNotLoaded
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.playing {
		return nil
	}

	for _, t := range tr.registry.Tracks() {
		if t.State() == TrackReady {
			t.play()
		}
	}
	tr.playing = true

	ctx, cancel := context.WithCancel(context.Background())
	tr.cancel = cancel
	go tr.correctDrift(ctx)
	return nil
}

// PauseAll pauses every track in registration order.
func (tr *Transport) PauseAll() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.stopDriftLocked()
	for _, t := range tr.registry.Tracks() {
		t.pause()
	}
	tr.playing = false
}

// StopAll stops every track and rewinds to zero.
func (tr *Transport) StopAll() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.stopDriftLocked()
	for _, t := range tr.registry.Tracks() {
		t.stop()
	}
	tr.playing = false
}

// SeekAll moves every track to the same position, preserving play state.
func (tr *Transport) SeekAll(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, t := range tr.registry.Tracks() {
		t.seek(seconds)
	}
}

// Playing reports whether the transport is running.
func (tr *Transport) Playing() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.playing
}

// CurrentTime reports the playhead of the clock-reference track, which is
// the first ready track in registration order.
func (tr *Transport) CurrentTime() float64 {
	if ref := tr.reference(); ref != nil {
		return ref.Position()
	}
	return 0
}

// Duration reports the longest track duration, which is the session length.
func (tr *Transport) Duration() float64 {
	var max float64
	for _, t := range tr.registry.Tracks() {
		if d := t.Duration(); d > max {
			max = d
		}
	}
	return max
}

// Close halts drift correction without touching track state. The registry's
// DisposeAll handles the tracks themselves.
func (tr *Transport) Close() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.stopDriftLocked()
	tr.playing = false
}

func (tr *Transport) stopDriftLocked() {
	if tr.cancel != nil {
		tr.cancel()
		tr.cancel = nil
	}
}

// reference picks the track every other track is aligned against.
func (tr *Transport) reference() *Track {
	for _, t := range tr.registry.Tracks() {
		if t.State() == TrackReady {
			return t
		}
	}
	return nil
}

// correctDrift periodically re-seeks any track whose playhead has wandered
// past the tolerance from the reference track. Decoder positions drift
// slowly apart over long sessions; snapping stragglers back keeps stems
// phase-coherent without audible glitches at the chosen tolerance.
func (tr *Transport) correctDrift(ctx context.Context) {
	ticker := time.NewTicker(tr.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ref := tr.reference()
		if ref == nil {
			continue
		}
		want := ref.Position()

		for _, t := range tr.registry.Tracks() {
			if t == ref || t.State() != TrackReady {
				continue
			}
			drift := t.Position() - want
			if drift < 0 {
				drift = -drift
			}
			if time.Duration(drift*float64(time.Second)) > tr.driftTolerance {
				logger.Debug("correcting track drift",
					logger.String("track", t.ID),
					logger.Float64("drift", drift))
				t.seek(want)
			}
		}
	}
}
