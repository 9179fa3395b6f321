package mixer

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const (
	analysisWindow = 2048
	// LevelBands is the number of magnitude bands per level frame.
	LevelBands = 32
)

// LevelFrame is one analyzer snapshot for a track: band magnitudes in
// [0, 1] plus an overall RMS level.
type LevelFrame struct {
	TrackID string              `json:"trackId"`
	Bands   [LevelBands]float64 `json:"bands"`
	RMS     float64             `json:"rms"`
}

// Analyzer computes level frames over the PCM window around each track's
// playhead. One analyzer serves a whole registry; windows are sampled on
// demand so idle sessions cost nothing.
type Analyzer struct {
	registry *Registry
	window   []float64
	hann     []float64
}

// NewAnalyzer builds an analyzer over reg.
func NewAnalyzer(reg *Registry) *Analyzer {
	hann := make([]float64, analysisWindow)
	for i := range hann {
		hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(analysisWindow-1)))
	}
	return &Analyzer{
		registry: reg,
		window:   make([]float64, analysisWindow),
		hann:     hann,
	}
}

// Frames samples every ready track once and returns one frame per track.
// Tracks with no signal in the window come back with zero bands.
func (a *Analyzer) Frames() []LevelFrame {
	tracks := a.registry.Tracks()
	frames := make([]LevelFrame, 0, len(tracks))
	for _, t := range tracks {
		if t.State() != TrackReady {
			continue
		}
		frames = append(frames, a.frameFor(t))
	}
	return frames
}

func (a *Analyzer) frameFor(t *Track) LevelFrame {
	frame := LevelFrame{TrackID: t.ID}

	for i := range a.window {
		a.window[i] = 0
	}
	n := t.window(a.window)
	if n == 0 {
		return frame
	}

	var sumSq float64
	for i := 0; i < n; i++ {
		sumSq += a.window[i] * a.window[i]
		a.window[i] *= a.hann[i]
	}
	frame.RMS = math.Sqrt(sumSq / float64(n))

	spectrum := fft.FFTReal(a.window)

	// Only the first half of the spectrum is unique for real input.
	half := len(spectrum) / 2
	perBand := half / LevelBands
	if perBand == 0 {
		perBand = 1
	}
	for b := 0; b < LevelBands; b++ {
		var sum float64
		count := 0
		for i := b * perBand; i < (b+1)*perBand && i < half; i++ {
			sum += cmplx.Abs(spectrum[i])
			count++
		}
		if count == 0 {
			continue
		}
		// Normalize by window size and clamp into [0, 1].
		frame.Bands[b] = clamp(sum/float64(count)/float64(analysisWindow/4), 0, 1)
	}
	return frame
}
