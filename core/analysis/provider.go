package analysis

import (
	"context"
	"time"
)

// Chord is one detected chord with its position in the song.
type Chord struct {
	Name  string  `json:"name"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is the outcome of a chord/key analysis run.
type Result struct {
	Chords []Chord `json:"chords"`
	Key    string  `json:"key"`
	BPM    float64 `json:"bpm"`
}

// Provider analyzes a song's audio for chords, key and tempo. Analyze
// blocks until the result is ready or ctx is cancelled.
type Provider interface {
	Analyze(ctx context.Context, audioURL string) (*Result, error)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
