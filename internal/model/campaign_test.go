package model

import (
	"testing"
	"time"
)

func TestParseTimecode(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:00:00,000", 0, false},
		{"00:01:30,500", 90*time.Second + 500*time.Millisecond, false},
		{"01:02:03,004", time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond, false},
		{"10:00:00,999", 10*time.Hour + 999*time.Millisecond, false},
		{"00:60:00,000", 0, true},
		{"00:00:60,000", 0, true},
		{"00:00:00,1000", 0, true},
		{"not-a-timecode", 0, true},
		{"", 0, true},
		{"00:00:00.000", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseTimecode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimecode(%q): expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimecode(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTimecode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFormatTimecode_RoundTrip(t *testing.T) {
	for _, tc := range []string{"00:00:00,000", "00:01:30,500", "01:02:03,004"} {
		d, err := ParseTimecode(tc)
		if err != nil {
			t.Fatalf("ParseTimecode(%q): %v", tc, err)
		}
		if got := FormatTimecode(d); got != tc {
			t.Errorf("FormatTimecode(%v) = %q, want %q", d, got, tc)
		}
	}
}

func TestHighlightSegmentLength(t *testing.T) {
	seg := HighlightSegment{ID: "h1", StartTime: "00:01:00,000", EndTime: "00:01:45,500"}
	got, err := seg.Length()
	if err != nil {
		t.Fatalf("Length: %v", err)
	}
	if want := 45*time.Second + 500*time.Millisecond; got != want {
		t.Errorf("Length = %v, want %v", got, want)
	}

	backwards := HighlightSegment{ID: "h2", StartTime: "00:02:00,000", EndTime: "00:01:00,000"}
	if _, err := backwards.Length(); err == nil {
		t.Error("expected error for segment ending before it starts")
	}
}

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"http://youtube.com/watch?v=abc123&t=42", "abc123", false},
		{"https://youtu.be/dQw4w9WgXcQ", "", true},
		{"https://www.youtube.com/watch", "", true},
		{"ftp://example.com/watch?v=abc", "", true},
		{"not a url at all ://", "", true},
	}

	for _, tc := range cases {
		got, err := ExtractVideoID(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ExtractVideoID(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ExtractVideoID(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHighlightIDFromArtifact(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"out_h1.mp4", "h1"},
		{"output/out_h1.mp4", "h1"},
		{"output\\out_h2.mp4", "h2"},
		{"out_.mp4", ""},
		{"clip_h1.mp4", ""},
		{"out_h1.mov", ""},
		{"", ""},
	}

	for _, tc := range cases {
		if got := HighlightIDFromArtifact(tc.in); got != tc.want {
			t.Errorf("HighlightIDFromArtifact(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCampaignStateClone(t *testing.T) {
	update := StatusUpdate{JobID: "j1", Status: StatusGenerating}
	state := NewCampaignState()
	state.Candidates = []HighlightSegment{{ID: "h1"}}
	state.Artifacts = []string{"out_h1.mp4"}
	state.DMStatus = map[string]string{"alice": "sent"}
	state.LastUpdate = &update

	clone := state.Clone()
	clone.Candidates[0].ID = "mutated"
	clone.Artifacts[0] = "mutated"
	clone.DMStatus["alice"] = "failed"
	clone.LastUpdate.JobID = "mutated"

	if state.Candidates[0].ID != "h1" {
		t.Error("clone shares Candidates with original")
	}
	if state.Artifacts[0] != "out_h1.mp4" {
		t.Error("clone shares Artifacts with original")
	}
	if state.DMStatus["alice"] != "sent" {
		t.Error("clone shares DMStatus with original")
	}
	if state.LastUpdate.JobID != "j1" {
		t.Error("clone shares LastUpdate with original")
	}
}
