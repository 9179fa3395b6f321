package mixer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

// wavBytes builds a minimal mono PCM WAV payload with 16-bit samples and
// the given declared bit depth, so malformed headers can be fabricated too.
func wavBytes(rate int, bits uint16, samples []int16) []byte {
	var buf bytes.Buffer
	dataLen := len(samples) * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(rate*int(bits)/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bits/8))
	binary.Write(&buf, binary.LittleEndian, bits)
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

func sineSamples(rate int, seconds, freq float64) []int16 {
	n := int(float64(rate) * seconds)
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(20000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestHTTPLoaderDecodesWAV(t *testing.T) {
	rate := 8000
	payload := wavBytes(rate, 16, sineSamples(rate, 2, 440))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(payload)
	}))
	defer ts.Close()

	el, err := NewHTTPLoader().Load(context.Background(), ts.URL+"/stems/vocals.wav")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer el.Close()

	if d := el.Duration(); math.Abs(d-2) > 0.01 {
		t.Errorf("duration = %v, want 2s", d)
	}

	dst := make([]float64, 256)
	n := el.Window(dst)
	if n == 0 {
		t.Fatal("decoded element has no samples")
	}
	var energy float64
	for _, s := range dst[:n] {
		energy += s * s
	}
	if energy == 0 {
		t.Error("decoded sine has zero energy")
	}
}

func TestHTTPLoaderWrapsFetchFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	_, err := NewHTTPLoader().Load(context.Background(), ts.URL+"/missing.wav")
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("err = %v, want ErrLoadFailed", err)
	}
}

func TestDecodeWAVRejectsZeroBitDepth(t *testing.T) {
	rate := 8000
	payload := wavBytes(rate, 0, sineSamples(rate, 1, 440))

	pcm, _, err := decodeWAV(payload)
	if err == nil {
		t.Fatal("zero bit depth must be a decode error, not silent Inf samples")
	}
	if pcm != nil {
		t.Errorf("got %d samples from a malformed header", len(pcm))
	}
}

func TestHTTPLoaderWrapsDecodeFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("definitely not audio"))
	}))
	defer ts.Close()

	_, err := NewHTTPLoader().Load(context.Background(), ts.URL+"/broken.wav")
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("err = %v, want ErrLoadFailed", err)
	}
}
