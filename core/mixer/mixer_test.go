package mixer

import (
	"context"
	"errors"
	"sync"
)

// fakeElement records transport calls so tests can assert on them without
// decoding real audio.
type fakeElement struct {
	mu      sync.Mutex
	playing bool
	stopped bool
	closed  bool
	pos     float64
	dur     float64
	gain    float64
	pan     float64
	seeks   []float64
}

func (f *fakeElement) Play() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = true
}

func (f *fakeElement) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
}

func (f *fakeElement) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	f.stopped = true
	f.pos = 0
}

func (f *fakeElement) Seek(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = seconds
	f.seeks = append(f.seeks, seconds)
}

func (f *fakeElement) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *fakeElement) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dur
}

func (f *fakeElement) SetGain(g float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gain = g
}

func (f *fakeElement) Gain() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gain
}

func (f *fakeElement) SetPan(p float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pan = p
}

func (f *fakeElement) Pan() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pan
}

func (f *fakeElement) Window(dst []float64) int { return 0 }

func (f *fakeElement) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeElement) isPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeElement) lastSeek() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seeks) == 0 {
		return 0, false
	}
	return f.seeks[len(f.seeks)-1], true
}

// fakeLoader hands out canned elements per URL. URLs in fail come back as
// load errors; block, when set, delays every load until it is closed.
type fakeLoader struct {
	mu       sync.Mutex
	elements map[string]*fakeElement
	fail     map[string]bool
	block    chan struct{}
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		elements: make(map[string]*fakeElement),
		fail:     make(map[string]bool),
	}
}

func (l *fakeLoader) Load(ctx context.Context, sourceURL string) (Element, error) {
	if l.block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.block:
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail[sourceURL] {
		return nil, errors.New("boom")
	}
	el, ok := l.elements[sourceURL]
	if !ok {
		el = &fakeElement{dur: 100}
		l.elements[sourceURL] = el
	}
	return el, nil
}

func (l *fakeLoader) element(sourceURL string) *fakeElement {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.elements[sourceURL]
}
