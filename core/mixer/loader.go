package mixer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
)

// ErrLoadFailed wraps every failure to fetch or decode a stem URL. One bad
// stem is contained to its track; it never blocks siblings from loading.
var ErrLoadFailed = errors.New("failed to load stem audio")

// Loader turns a stem URL into a playable Element.
type Loader interface {
	Load(ctx context.Context, sourceURL string) (Element, error)
}

// HTTPLoader fetches stem audio over HTTP and decodes MP3 or WAV payloads
// into clock-driven Elements.
type HTTPLoader struct {
	Client *http.Client
}

// NewHTTPLoader returns a loader with a sane fetch timeout.
func NewHTTPLoader() *HTTPLoader {
	return &HTTPLoader{Client: &http.Client{Timeout: 2 * time.Minute}}
}

func (l *HTTPLoader) Load(ctx context.Context, sourceURL string) (Element, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch returned %d", ErrLoadFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	pcm, rate, err := decode(sourceURL, resp.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	duration := float64(len(pcm)) / float64(rate)
	return newClockElement(pcm, rate, duration), nil
}

// decode picks a decoder from the content type or URL extension and
// downmixes to mono float64 samples.
func decode(sourceURL, contentType string, data []byte) ([]float64, int, error) {
	switch {
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"), hasExt(sourceURL, ".mp3"):
		return decodeMP3(data)
	case strings.Contains(contentType, "wav"), hasExt(sourceURL, ".wav"):
		return decodeWAV(data)
	default:
		// Separation backends emit WAV stems by default; try that first.
		if pcm, rate, err := decodeWAV(data); err == nil {
			return pcm, rate, nil
		}
		return decodeMP3(data)
	}
}

func decodeMP3(data []byte) ([]float64, int, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decode: %w", err)
	}

	// go-mp3 always yields 16-bit little-endian stereo.
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decode: %w", err)
	}

	frames := len(raw) / 4
	pcm := make([]float64, frames)
	for i := 0; i < frames; i++ {
		l := int16(uint16(raw[i*4]) | uint16(raw[i*4+1])<<8)
		r := int16(uint16(raw[i*4+2]) | uint16(raw[i*4+3])<<8)
		pcm[i] = (float64(l) + float64(r)) / 2 / 32768
	}
	return pcm, dec.SampleRate(), nil
}

func decodeWAV(data []byte) ([]float64, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("wav decode: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 || buf.Format.SampleRate == 0 {
		return nil, 0, fmt.Errorf("wav decode: missing format header")
	}
	if dec.BitDepth == 0 {
		return nil, 0, fmt.Errorf("wav decode: missing bit depth")
	}

	channels := buf.Format.NumChannels
	scale := float64(int(1) << (uint(dec.BitDepth) - 1))
	frames := len(buf.Data) / channels
	pcm := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		pcm[i] = sum / float64(channels) / scale
	}
	return pcm, buf.Format.SampleRate, nil
}

func hasExt(sourceURL, ext string) bool {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(sourceURL), ext)
	}
	return strings.EqualFold(path.Ext(u.Path), ext)
}
