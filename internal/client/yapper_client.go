package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/yapper/campaign/internal/config"
	"github.com/yapper/campaign/internal/model"
)

// API defines the remote operations the campaign workflow depends on.
type API interface {
	ExtractHighlights(ctx context.Context, req *HighlightsRequest) (*HighlightsResponse, error)
	GenerateVideos(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	UploadReels(ctx context.Context, req *UploadReelsRequest) (*UploadReelsResponse, error)
	GetFollowers(ctx context.Context) (*FollowersResponse, error)
	DMFollowers(ctx context.Context, req *DMFollowersRequest) (*DMFollowersResponse, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// APIError is the single failure shape for every non-success remote
// response: the numeric status code plus the response body text, or the
// status line text when the body is empty.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yapper api error (status %d): %s", e.StatusCode, e.Message)
}

// HighlightsRequest asks the extraction service for highlight candidates.
type HighlightsRequest struct {
	VideoURL         string `json:"video_url"`
	SubtitleLanguage string `json:"subtitle_language"`
	NoAutoSubs       bool   `json:"no_auto_subs"`
}

// HighlightsResponse carries the extracted highlight candidates.
type HighlightsResponse struct {
	VideoID    string                   `json:"video_id"`
	Highlights []model.HighlightSegment `json:"highlights"`
	TotalCount int                      `json:"total_count"`
}

// GenerateRequest starts a video generation job for the chosen highlights.
type GenerateRequest struct {
	VideoURL   string                   `json:"video_url"`
	Highlights []model.HighlightSegment `json:"highlights"`
}

// GenerateResponse acknowledges a queued generation job.
type GenerateResponse struct {
	JobID   string                 `json:"job_id"`
	Status  model.GenerationStatus `json:"status"`
	Message string                 `json:"message"`
}

// ReelUpload names one produced artifact and its title.
type ReelUpload struct {
	FilePath string `json:"file_path"`
	Title    string `json:"title"`
}

type UploadReelsRequest struct {
	ReelsToUpload []ReelUpload `json:"reels_to_upload"`
}

type UploadReelsResponse struct {
	ReelLinks []string `json:"reel_links"`
}

type FollowersResponse struct {
	Followers []string `json:"followers"`
}

type DMFollowersRequest struct {
	ReelLinks []string `json:"reel_links"`
	Followers []string `json:"followers"`
}

// DMFollowersResponse maps each follower to "sent" or "failed".
type DMFollowersResponse struct {
	DMStatus map[string]string `json:"dm_status"`
}

// QueueInfo summarizes the remote generation queue.
type QueueInfo struct {
	QueuedJobs    int `json:"queued_jobs"`
	ActiveJobs    int `json:"active_jobs"`
	MaxConcurrent int `json:"max_concurrent"`
}

type JobsResponse struct {
	Jobs      []model.StatusUpdate `json:"jobs"`
	QueueInfo QueueInfo            `json:"queue_info"`
}

type QueueStatusResponse struct {
	QueueLength    int `json:"queue_length"`
	ActiveCount    int `json:"active_count"`
	MaxConcurrent  int `json:"max_concurrent"`
	AvailableSlots int `json:"available_slots"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Client talks to the Yapper video-processing API. Each call is a single
// attempt; retry policy belongs to the callers.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
}

// New creates a Yapper API client.
func New(cfg *config.APIConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		// The stream client carries no overall timeout: an SSE connection
		// is expected to stay open for the whole job.
		streamClient: &http.Client{},
		baseURL:      cfg.BaseURL,
	}
}

// Health checks that the remote API answers.
func (c *Client) Health(ctx context.Context) (*MessageResponse, error) {
	var result MessageResponse
	if err := c.get(ctx, "/", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExtractHighlights requests highlight extraction for a source video.
func (c *Client) ExtractHighlights(ctx context.Context, req *HighlightsRequest) (*HighlightsResponse, error) {
	var result HighlightsResponse
	if err := c.post(ctx, "/highlights", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GenerateVideos starts an asynchronous generation job.
func (c *Client) GenerateVideos(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	var result GenerateResponse
	if err := c.post(ctx, "/generate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// JobStatus fetches a single status snapshot without the push stream.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*model.StatusUpdate, error) {
	endpoint := fmt.Sprintf("/generate/%s/status", url.PathEscape(jobID))
	var result model.StatusUpdate
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListJobs returns every known generation job plus queue occupancy.
func (c *Client) ListJobs(ctx context.Context) (*JobsResponse, error) {
	var result JobsResponse
	if err := c.get(ctx, "/jobs", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// QueueStatus returns the remote queue occupancy detail.
func (c *Client) QueueStatus(ctx context.Context) (*QueueStatusResponse, error) {
	var result QueueStatusResponse
	if err := c.get(ctx, "/queue/status", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteJob removes an abandoned generation job on the server.
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	endpoint := fmt.Sprintf("/jobs/%s", url.PathEscape(jobID))
	return c.delete(ctx, endpoint, nil)
}

// UploadReels publishes produced artifacts as shorts.
func (c *Client) UploadReels(ctx context.Context, req *UploadReelsRequest) (*UploadReelsResponse, error) {
	var result UploadReelsResponse
	if err := c.post(ctx, "/mcp-agent/upload-reels", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetFollowers fetches the follower list for the distribution stage.
func (c *Client) GetFollowers(ctx context.Context) (*FollowersResponse, error) {
	var result FollowersResponse
	if err := c.get(ctx, "/mcp-agent/followers", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DMFollowers sends the published links to followers via DM.
func (c *Client) DMFollowers(ctx context.Context, req *DMFollowersRequest) (*DMFollowersResponse, error) {
	var result DMFollowersResponse
	if err := c.post(ctx, "/mcp-agent/dm-followers", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FileURL builds the streaming URL for a produced artifact.
func (c *Client) FileURL(artifactPath string) string {
	return c.baseURL + "/files/" + url.PathEscape(artifactPath)
}

// DownloadURL builds the attachment-download URL for a produced artifact.
func (c *Client) DownloadURL(artifactPath string) string {
	return c.baseURL + "/download/" + url.PathEscape(artifactPath)
}

// post sends a POST request with JSON body
func (c *Client) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *Client) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// delete sends a DELETE request and parses JSON response when asked to
func (c *Client) delete(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and normalizes every non-success
// response into an *APIError.
func (c *Client) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Printf("[Yapper API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Yapper API] ✗ %s %s request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Yapper API] ✗ %s %s failed to read response: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Yapper API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, respBody)
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Printf("[Yapper API] ✗ unmarshal error for %s %s: %v (body: %s)", req.Method, req.URL.String(), err, string(respBody))
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

func newAPIError(statusCode int, body []byte) *APIError {
	message := string(bytes.TrimSpace(body))
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &APIError{StatusCode: statusCode, Message: message}
}
