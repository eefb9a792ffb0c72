package model

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage identifies one step of the campaign pipeline
type Stage string

const (
	StageURLSubmit        Stage = "url-submit"
	StageHighlightsSelect Stage = "highlights-select"
	StageJobStatus        Stage = "job-status"
	StageUploadReels      Stage = "upload-reels"
	StageDMFollowers      Stage = "dm-followers"
	StageComplete         Stage = "complete"
)

var StageOrder = []Stage{
	StageURLSubmit, StageHighlightsSelect, StageJobStatus,
	StageUploadReels, StageDMFollowers, StageComplete,
}

// HighlightSegment is one highlight candidate extracted from the source
// video. Field names match the remote API wire format; start/end use the
// SRT-style HH:MM:SS,mmm timecode format.
type HighlightSegment struct {
	ID        string `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Title     string `json:"title"`
}

// Length returns the segment duration, or an error if either timecode is
// malformed.
func (h HighlightSegment) Length() (time.Duration, error) {
	start, err := ParseTimecode(h.StartTime)
	if err != nil {
		return 0, err
	}
	end, err := ParseTimecode(h.EndTime)
	if err != nil {
		return 0, err
	}
	if end < start {
		return 0, fmt.Errorf("segment %s ends before it starts", h.ID)
	}
	return end - start, nil
}

// CampaignState is the single mutable aggregate owned by the orchestrator.
// All mutation happens through whole-stage transition functions; everything
// handed out is a clone.
type CampaignState struct {
	ID         string             `json:"id"`
	Stage      Stage              `json:"stage"`
	SourceURL  string             `json:"sourceUrl,omitempty"`
	VideoID    string             `json:"videoId,omitempty"`
	Candidates []HighlightSegment `json:"candidates"`
	Chosen     []HighlightSegment `json:"chosen"`
	JobID      string             `json:"jobId,omitempty"`
	LastUpdate *StatusUpdate      `json:"lastUpdate,omitempty"`
	JobError   string             `json:"jobError,omitempty"`
	StreamDown bool               `json:"streamDown,omitempty"`
	Artifacts  []string           `json:"artifacts"`
	ReelLinks  []string           `json:"reelLinks"`
	Followers  []string           `json:"followers,omitempty"`
	DMStatus   map[string]string  `json:"dmStatus,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// NewCampaignState creates a fresh campaign at the first stage.
func NewCampaignState() CampaignState {
	return CampaignState{
		ID:        uuid.New().String(),
		Stage:     StageURLSubmit,
		CreatedAt: time.Now(),
	}
}

// Clone returns a deep copy safe to hand outside the orchestrator's lock.
func (s CampaignState) Clone() CampaignState {
	out := s
	out.Candidates = append([]HighlightSegment(nil), s.Candidates...)
	out.Chosen = append([]HighlightSegment(nil), s.Chosen...)
	out.Artifacts = append([]string(nil), s.Artifacts...)
	out.ReelLinks = append([]string(nil), s.ReelLinks...)
	out.Followers = append([]string(nil), s.Followers...)
	if s.DMStatus != nil {
		out.DMStatus = make(map[string]string, len(s.DMStatus))
		for k, v := range s.DMStatus {
			out.DMStatus[k] = v
		}
	}
	if s.LastUpdate != nil {
		u := *s.LastUpdate
		out.LastUpdate = &u
	}
	return out
}

// ExtractVideoID pulls the YouTube video ID out of a watch URL. The remote
// service only accepts URLs carrying a "v" query parameter, so anything
// else is rejected here before a network round trip.
func ExtractVideoID(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid video URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid video URL scheme %q", parsed.Scheme)
	}
	id := parsed.Query().Get("v")
	if id == "" {
		return "", fmt.Errorf("no video ID found in URL: %s", rawURL)
	}
	return id, nil
}

// ParseTimecode parses an SRT-style HH:MM:SS,mmm timecode.
func ParseTimecode(tc string) (time.Duration, error) {
	var h, m, s, ms int
	if _, err := fmt.Sscanf(tc, "%d:%d:%d,%d", &h, &m, &s, &ms); err != nil {
		return 0, fmt.Errorf("invalid timecode %q: %w", tc, err)
	}
	if m > 59 || s > 59 || ms > 999 || h < 0 || m < 0 || s < 0 || ms < 0 {
		return 0, fmt.Errorf("invalid timecode %q", tc)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// FormatTimecode renders a duration as HH:MM:SS,mmm.
func FormatTimecode(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	ms := int(d % time.Second / time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// HighlightIDFromArtifact derives the originating highlight ID from the
// generator's artifact naming convention (out_<highlightID>.mp4). Returns
// an empty string when the name does not follow the convention. This is the
// only place that convention is known; if the remote contract ever returns
// an explicit pairing, delete this.
func HighlightIDFromArtifact(artifactPath string) string {
	base := path.Base(strings.ReplaceAll(artifactPath, "\\", "/"))
	if !strings.HasPrefix(base, "out_") || !strings.HasSuffix(base, ".mp4") {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(base, "out_"), ".mp4")
	if id == "" {
		return ""
	}
	return id
}
