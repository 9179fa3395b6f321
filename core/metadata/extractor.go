package metadata

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"stemset/logger"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/tcolgate/mp3"
)

// Info is what we manage to learn about an uploaded audio file before the
// separation backend ever sees it. Missing fields keep their zero value.
type Info struct {
	Title    string
	Artist   string
	Album    string
	Genre    string
	Duration float64 // seconds; 0 when the probe failed
}

// Extract reads tags and probes duration from an in-memory audio payload.
// It never fails outright: when tags are unreadable the title falls back to
// the file name, and a failed duration probe leaves Duration at 0.
func Extract(fileName string, data []byte) Info {
	info := Info{
		Title: strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)),
	}

	if m, err := tag.ReadFrom(bytes.NewReader(data)); err == nil {
		if m.Title() != "" {
			info.Title = m.Title()
		}
		info.Artist = m.Artist()
		info.Album = m.Album()
		info.Genre = m.Genre()
	} else {
		logger.Debug("no readable tags, using filename",
			logger.String("file", fileName),
			logger.ErrorField(err))
	}

	if d, err := probeDuration(fileName, data); err == nil {
		info.Duration = d
	} else {
		logger.Warn("failed to probe duration",
			logger.String("file", fileName),
			logger.ErrorField(err))
	}

	return info
}

func probeDuration(fileName string, data []byte) (float64, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".mp3":
		return durationMP3(data)
	case ".wav":
		return durationWAV(data)
	default:
		// Try MP3 framing first, then WAV headers.
		if d, err := durationMP3(data); err == nil {
			return d, nil
		}
		return durationWAV(data)
	}
}

// durationMP3 sums frame durations; cheap enough to run on every ingest.
func durationMP3(data []byte) (float64, error) {
	dec := mp3.NewDecoder(bytes.NewReader(data))
	var frame mp3.Frame
	var skipped int
	var total float64

	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if err == io.EOF {
				return total, nil
			}
			if total > 0 {
				// Truncated tail after valid frames still yields a usable figure.
				return total, nil
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}
}

// durationWAV reads the RIFF header only.
func durationWAV(data []byte) (float64, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	d, err := dec.Duration()
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}
