package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Generation job status
type GenerationStatus string

const (
	StatusQueued      GenerationStatus = "queued"
	StatusDownloading GenerationStatus = "downloading"
	StatusGenerating  GenerationStatus = "generating"
	StatusFinished    GenerationStatus = "finished"
	StatusError       GenerationStatus = "error"
)

var ValidStatuses = []GenerationStatus{
	StatusQueued, StatusDownloading, StatusGenerating, StatusFinished, StatusError,
}

// Terminal reports whether the status ends the job's lifecycle.
func (s GenerationStatus) Terminal() bool {
	return s == StatusFinished || s == StatusError
}

// Valid reports whether the status is part of the known set.
func (s GenerationStatus) Valid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Timestamp wraps time.Time with tolerant parsing. The remote service
// serializes datetimes with Python's str(), which is not RFC 3339.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// StatusUpdate is one immutable snapshot pushed by the remote job runner.
// Each received update fully replaces the previous one; nothing is merged.
type StatusUpdate struct {
	JobID          string           `json:"job_id"`
	Status         GenerationStatus `json:"status"`
	Progress       *int             `json:"progress,omitempty"`
	CurrentTask    string           `json:"current_task,omitempty"`
	FinishedVideos []string         `json:"finished_videos"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	CreatedAt      Timestamp        `json:"created_at"`
	UpdatedAt      Timestamp        `json:"updated_at"`
}

// ParseStatusUpdate decodes and sanity-checks one push-stream payload.
func ParseStatusUpdate(data []byte) (StatusUpdate, error) {
	var update StatusUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return StatusUpdate{}, fmt.Errorf("malformed status payload: %w", err)
	}
	if update.JobID == "" {
		return StatusUpdate{}, fmt.Errorf("status payload missing job_id")
	}
	if !update.Status.Valid() {
		return StatusUpdate{}, fmt.Errorf("unknown job status %q", update.Status)
	}
	return update, nil
}
