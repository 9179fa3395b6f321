package model

import "testing"

func TestFormatDuration(t *testing.T) {
	cases := map[float64]string{
		0:     "0:00",
		59.4:  "0:59",
		60:    "1:00",
		185.7: "3:06",
		-5:    "0:00",
	}
	for secs, want := range cases {
		if got := FormatDuration(secs); got != want {
			t.Errorf("FormatDuration(%v) = %s, want %s", secs, got, want)
		}
	}
}

func TestHasStems(t *testing.T) {
	s := &Song{}
	if s.HasStems() {
		t.Error("empty song reports stems")
	}
	s.Stems = StemMap{"vocals": "http://x/v.wav"}
	if !s.HasStems() {
		t.Error("song with stems reports none")
	}
}

func TestStemMapScanRoundTrip(t *testing.T) {
	m := StemMap{"vocals": "http://x/v.wav", "drums": "http://x/d.wav"}
	val, err := m.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var out StemMap
	if err := out.Scan(val); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out) != 2 || out["vocals"] != m["vocals"] {
		t.Errorf("round trip = %v, want %v", out, m)
	}

	var empty StemMap
	if err := empty.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if empty != nil {
		t.Errorf("Scan(nil) = %v, want nil", empty)
	}
}
