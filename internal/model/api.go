package model

// Request bodies accepted by the gateway. Validation tags are enforced by
// the handlers before the orchestrator is invoked.

// SubmitURLRequest starts the campaign from a source video URL.
type SubmitURLRequest struct {
	VideoURL         string `json:"video_url" validate:"required,url"`
	SubtitleLanguage string `json:"subtitle_language" validate:"omitempty,min=2,max=8"`
	NoAutoSubs       bool   `json:"no_auto_subs"`
}

// SelectHighlightsRequest commits the chosen highlights and requests
// generation.
type SelectHighlightsRequest struct {
	HighlightIDs []string `json:"highlight_ids" validate:"required,min=1,dive,required"`
}
