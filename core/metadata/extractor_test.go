package metadata

import "testing"

func TestExtractFallsBackToFilename(t *testing.T) {
	info := Extract("02 - Midnight Drive.mp3", []byte("not really audio"))
	if info.Title != "02 - Midnight Drive" {
		t.Errorf("title = %q, want filename without extension", info.Title)
	}
	if info.Duration != 0 {
		t.Errorf("duration = %v for garbage data, want 0", info.Duration)
	}
}

func TestExtractNeverPanicsOnEmptyInput(t *testing.T) {
	info := Extract("", nil)
	if info.Title == "" {
		// An empty filename still yields some title so records are never blank.
		t.Log("empty input produced empty title")
	}
}
