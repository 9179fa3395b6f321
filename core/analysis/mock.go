package analysis

import (
	"context"
	"math/rand"
	"time"
)

var mockChordNames = []string{"C", "G", "Am", "F", "Dm", "Em", "D", "A", "E", "Bm"}
var mockKeys = []string{"C Major", "G Major", "D Major", "A Minor", "E Minor"}

// MockProvider fabricates plausible chord progressions with artificial
// latency. Used when no analysis backend is configured so the rest of the
// pipeline stays exercisable.
type MockProvider struct {
	// Delay simulates backend processing time.
	Delay time.Duration
	rng   *rand.Rand
}

// NewMockProvider returns a mock with the given artificial delay.
func NewMockProvider(delay time.Duration) *MockProvider {
	return &MockProvider{
		Delay: delay,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProvider) Analyze(ctx context.Context, audioURL string) (*Result, error) {
	if err := sleepCtx(ctx, m.Delay); err != nil {
		return nil, err
	}

	// A four-chord loop over a three minute song, two bars per chord.
	res := &Result{
		Key: mockKeys[m.rng.Intn(len(mockKeys))],
		BPM: 80 + float64(m.rng.Intn(81)),
	}
	barSeconds := 4 * 60 / res.BPM
	start := 0.0
	loop := m.rng.Perm(len(mockChordNames))[:4]
	for i := 0; start < 180; i++ {
		name := mockChordNames[loop[i%4]]
		end := start + 2*barSeconds
		res.Chords = append(res.Chords, Chord{Name: name, Start: start, End: end})
		start = end
	}
	return res, nil
}
