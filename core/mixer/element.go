package mixer

import (
	"math"
	"sync"
	"time"
)

// Element is one exclusively owned decoded-audio handle. Exactly one Track
// owns each Element; Elements are never shared. Playback position advances
// on a wall clock while playing, mirroring how a platform media element
// behaves, and the decoded PCM backs the analysis taps.
type Element interface {
	Play()
	Pause()
	// Seek moves the playhead. Positions are clamped to [0, Duration].
	Seek(seconds float64)
	// Stop pauses and resets the playhead to zero.
	Stop()
	Position() float64
	Duration() float64
	SetGain(g float64)
	Gain() float64
	SetPan(p float64)
	Pan() float64
	// Window copies up to len(dst) mono samples starting at the current
	// playhead into dst and reports how many were written. Used by analysis
	// taps only; it never affects audible output.
	Window(dst []float64) int
	// Close releases the decoded audio. Idempotent.
	Close() error
}

// clockElement implements Element over decoded mono PCM with a wall-clock
// driven playhead.
type clockElement struct {
	mu         sync.Mutex
	pcm        []float64
	sampleRate int
	duration   float64

	playing   bool
	offset    float64 // playhead when paused, or at startedAt when playing
	startedAt time.Time

	gain   float64
	pan    float64
	closed bool
}

func newClockElement(pcm []float64, sampleRate int, duration float64) *clockElement {
	return &clockElement{
		pcm:        pcm,
		sampleRate: sampleRate,
		duration:   duration,
		gain:       1,
	}
}

func (e *clockElement) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.playing {
		return
	}
	if e.offset >= e.duration {
		e.offset = 0
	}
	e.playing = true
	e.startedAt = time.Now()
}

func (e *clockElement) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.playing {
		return
	}
	e.offset = e.positionLocked()
	e.playing = false
}

func (e *clockElement) Seek(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	if seconds > e.duration {
		seconds = e.duration
	}
	e.offset = seconds
	e.startedAt = time.Now()
}

func (e *clockElement) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
	e.offset = 0
}

func (e *clockElement) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

// positionLocked clamps at the end of the media and latches the element
// into a stopped state once playback runs off the end.
func (e *clockElement) positionLocked() float64 {
	if !e.playing {
		return e.offset
	}
	pos := e.offset + time.Since(e.startedAt).Seconds()
	if pos >= e.duration {
		e.playing = false
		e.offset = e.duration
		return e.duration
	}
	return pos
}

func (e *clockElement) Duration() float64 {
	return e.duration
}

func (e *clockElement) SetGain(g float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gain = clamp(g, 0, 1)
}

func (e *clockElement) Gain() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gain
}

func (e *clockElement) SetPan(p float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pan = clamp(p, -1, 1)
}

func (e *clockElement) Pan() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pan
}

func (e *clockElement) Window(dst []float64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || len(e.pcm) == 0 || e.sampleRate == 0 {
		return 0
	}
	start := int(e.positionLocked() * float64(e.sampleRate))
	if start >= len(e.pcm) {
		return 0
	}
	n := copy(dst, e.pcm[start:])
	return n
}

func (e *clockElement) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.playing = false
	e.offset = 0
	e.pcm = nil
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
