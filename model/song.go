package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Song processing status values. A song starts as uploaded, moves to
// processing when a separation job is submitted, and ends completed or
// failed. A song with no stems cannot be opened in the mixer.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Canonical stem names produced by the separation backend. The stem map is
// open-ended; these are just the names the backend is known to emit.
const (
	StemVocals       = "vocals"
	StemDrums        = "drums"
	StemBass         = "bass"
	StemOther        = "other"
	StemInstrumental = "instrumental"
)

// StemMap maps a stem name to the object-storage URL of its audio.
// Absence of a key means that stem was not produced.
type StemMap map[string]string

// Value serializes the stem map as JSON for storage.
func (m StemMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan deserializes the stem map from its JSON column.
func (m *StemMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported stem map column type %T", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// Song is the persisted metadata for one uploaded song.
type Song struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID int64  `gorm:"index;not null" json:"userId"`

	Title         string  `gorm:"size:255" json:"title"`
	Artist        string  `gorm:"size:255" json:"artist"`
	Genre         string  `gorm:"size:64" json:"genre"`
	BPM           int     `json:"bpm"`
	Key           string  `gorm:"size:8;column:song_key" json:"key"`
	TimeSignature string  `gorm:"size:8" json:"timeSignature"`
	Duration      string  `gorm:"size:16" json:"duration"` // display form, "m:ss"
	DurationSecs  float64 `json:"durationSeconds"`

	// FileURL is always the original upload, never one of the stems.
	FileURL  string `gorm:"size:1024" json:"fileUrl"`
	FileName string `gorm:"size:512" json:"fileName"`
	FileSize int64  `json:"fileSize"`

	Status string `gorm:"size:16;index" json:"status"`
	// Degraded marks a record whose stems fell back to the original file
	// because the separation job failed or stalled.
	Degraded bool `json:"degraded"`

	Stems            StemMap `gorm:"type:json" json:"stems,omitempty"`
	SeparationTaskID string  `gorm:"size:64" json:"separationTaskId,omitempty"`

	UploadedAt time.Time `json:"uploadedAt"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TableName pins the GORM table name.
func (Song) TableName() string {
	return "songs"
}

// HasStems reports whether the song can be opened in the mixer.
func (s *Song) HasStems() bool {
	return len(s.Stems) > 0
}

// FormatDuration renders a second count in the display form used by the UI.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
