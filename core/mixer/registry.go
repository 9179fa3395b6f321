package mixer

import (
	"context"
	"sort"
	"sync"

	"stemset/logger"
)

// Registry owns the set of tracks for one mixer session and resolves the
// mute/solo policy into per-track effective gains. All mutations trigger a
// single recompute pass over every track, so solo state stays consistent
// across the whole set.
type Registry struct {
	loader Loader

	mu       sync.Mutex
	order    []string
	tracks   map[string]*Track
	disposed bool

	loadWG sync.WaitGroup
}

// NewRegistry builds an empty registry loading stems through loader.
func NewRegistry(loader Loader) *Registry {
	return &Registry{
		loader: loader,
		tracks: make(map[string]*Track),
	}
}

// LoadFromStems registers one track per stem map entry and starts loading
// all of them concurrently. A stem that fails to load is marked failed and
// contained to its own track. Registration order follows the order slice;
// stem names absent from it still get tracks, appended in sorted order, so
// a backend emitting names we have never seen loses nothing.
func (r *Registry) LoadFromStems(ctx context.Context, order []string, stems map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}

	known := make(map[string]bool, len(order))
	names := make([]string, 0, len(stems))
	for _, name := range order {
		if _, ok := stems[name]; !ok {
			continue
		}
		known[name] = true
		names = append(names, name)
	}
	extra := make([]string, 0, len(stems))
	for name := range stems {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	for _, name := range names {
		if _, exists := r.tracks[name]; exists {
			continue
		}
		t := newTrack(name, stems[name])
		r.tracks[name] = t
		r.order = append(r.order, name)

		r.loadWG.Add(1)
		go func(t *Track) {
			defer r.loadWG.Done()
			el, err := r.loader.Load(ctx, t.SourceURL)
			if err != nil {
				logger.Warn("stem load failed",
					logger.String("track", t.ID),
					logger.String("url", t.SourceURL),
					logger.ErrorField(err))
			}
			t.attach(el, err)
			if err == nil {
				r.applyGains()
			}
		}(t)
	}
}

// WaitLoaded blocks until every started load has settled or the context is
// cancelled.
func (r *Registry) WaitLoaded(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.loadWG.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// AllLoaded reports whether no track is still loading. Failed tracks count
// as settled: one bad stem must not block playback of its siblings forever.
func (r *Registry) AllLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tracks {
		if t.State() == TrackLoading {
			return false
		}
	}
	return true
}

// Track returns the named track, or nil.
func (r *Registry) Track(id string) *Track {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracks[id]
}

// Tracks returns all tracks in registration order.
func (r *Registry) Tracks() []*Track {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Track, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tracks[id])
	}
	return out
}

// SetVolume sets the user volume on one track and recomputes all gains.
func (r *Registry) SetVolume(id string, v float64) {
	if t := r.Track(id); t != nil {
		t.setVolume(v)
		r.applyGains()
	}
}

// SetPan sets the stereo pan on one track. Pan does not interact with the
// gain policy, so no recompute is needed.
func (r *Registry) SetPan(id string, p float64) {
	if t := r.Track(id); t != nil {
		t.setPan(p)
	}
}

// SetMuted flips the mute flag on one track and recomputes all gains.
func (r *Registry) SetMuted(id string, m bool) {
	if t := r.Track(id); t != nil {
		t.setMuted(m)
		r.applyGains()
	}
}

// SetSolo flips the solo flag on one track and recomputes all gains. Solo
// is additive: any number of tracks may be soloed at once.
func (r *Registry) SetSolo(id string, s bool) {
	if t := r.Track(id); t != nil {
		t.setSolo(s)
		r.applyGains()
	}
}

// applyGains resolves mute/solo into effective gains in one pass:
// muted wins over everything, then an active solo set silences every
// non-soloed track, otherwise the plain volume applies.
func (r *Registry) applyGains() {
	r.mu.Lock()
	tracks := make([]*Track, 0, len(r.order))
	for _, id := range r.order {
		tracks = append(tracks, r.tracks[id])
	}
	r.mu.Unlock()

	anySolo := false
	for _, t := range tracks {
		if t.Solo() {
			anySolo = true
			break
		}
	}

	for _, t := range tracks {
		var g float64
		switch {
		case t.Muted():
			g = 0
		case anySolo && !t.Solo():
			g = 0
		default:
			g = t.Volume()
		}
		t.applyGain(g)
	}
}

// DisposeAll stops and releases every track. Idempotent; the registry
// accepts no new loads afterwards.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	tracks := make([]*Track, 0, len(r.order))
	for _, id := range r.order {
		tracks = append(tracks, r.tracks[id])
	}
	r.mu.Unlock()

	for _, t := range tracks {
		t.Dispose()
	}
}
