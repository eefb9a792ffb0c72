package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampUnmarshal(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{`"2026-08-25T10:30:00Z"`, time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC), false},
		// Python str(datetime) output
		{`"2026-08-25 10:30:00.123456"`, time.Date(2026, 8, 25, 10, 30, 0, 123456000, time.UTC), false},
		{`"2026-08-25T10:30:00.123456"`, time.Date(2026, 8, 25, 10, 30, 0, 123456000, time.UTC), false},
		{`"2026-08-25 10:30:00"`, time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC), false},
		{`""`, time.Time{}, false},
		{`"yesterday"`, time.Time{}, true},
	}

	for _, tc := range cases {
		var ts Timestamp
		err := json.Unmarshal([]byte(tc.in), &ts)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Unmarshal(%s): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unmarshal(%s): unexpected error: %v", tc.in, err)
			continue
		}
		if !ts.Equal(tc.want) {
			t.Errorf("Unmarshal(%s) = %v, want %v", tc.in, ts.Time, tc.want)
		}
	}
}

func TestParseStatusUpdate(t *testing.T) {
	data := []byte(`{
		"job_id": "j1",
		"status": "generating",
		"progress": 40,
		"current_task": "rendering highlight 2/3",
		"finished_videos": [],
		"created_at": "2026-08-25 10:30:00.123456",
		"updated_at": "2026-08-25 10:31:00.654321"
	}`)

	update, err := ParseStatusUpdate(data)
	if err != nil {
		t.Fatalf("ParseStatusUpdate: %v", err)
	}
	if update.JobID != "j1" {
		t.Errorf("JobID = %q, want j1", update.JobID)
	}
	if update.Status != StatusGenerating {
		t.Errorf("Status = %q, want generating", update.Status)
	}
	if update.Progress == nil || *update.Progress != 40 {
		t.Errorf("Progress = %v, want 40", update.Progress)
	}
	if update.CurrentTask != "rendering highlight 2/3" {
		t.Errorf("CurrentTask = %q", update.CurrentTask)
	}
}

func TestParseStatusUpdate_NullFields(t *testing.T) {
	data := []byte(`{
		"job_id": "j1",
		"status": "queued",
		"progress": null,
		"current_task": null,
		"finished_videos": [],
		"error_message": null
	}`)

	update, err := ParseStatusUpdate(data)
	if err != nil {
		t.Fatalf("ParseStatusUpdate: %v", err)
	}
	if update.Progress != nil {
		t.Errorf("Progress = %v, want nil", *update.Progress)
	}
	if update.CurrentTask != "" || update.ErrorMessage != "" {
		t.Errorf("expected empty task/error, got %q / %q", update.CurrentTask, update.ErrorMessage)
	}
}

func TestParseStatusUpdate_Rejects(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"missing job_id", `{"status": "queued"}`},
		{"unknown status", `{"job_id": "j1", "status": "exploded"}`},
	}

	for _, tc := range cases {
		if _, err := ParseStatusUpdate([]byte(tc.data)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestGenerationStatusTerminal(t *testing.T) {
	terminal := map[GenerationStatus]bool{
		StatusQueued:      false,
		StatusDownloading: false,
		StatusGenerating:  false,
		StatusFinished:    true,
		StatusError:       true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
