package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yapper/campaign/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := New(&config.APIConfig{BaseURL: server.URL, Timeout: 5})
	return c, server
}

func TestExtractHighlights_Success(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/highlights" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"video_id": "abc123",
			"highlights": [
				{"id": "h1", "start_time": "00:01:00,000", "end_time": "00:01:30,000", "title": "Hook"},
				{"id": "h2", "start_time": "00:05:00,000", "end_time": "00:05:45,000", "title": "Punchline"}
			],
			"total_count": 2
		}`))
	}))

	resp, err := c.ExtractHighlights(context.Background(), &HighlightsRequest{
		VideoURL:         "https://www.youtube.com/watch?v=abc123",
		SubtitleLanguage: "en",
	})
	if err != nil {
		t.Fatalf("ExtractHighlights: %v", err)
	}
	if resp.VideoID != "abc123" {
		t.Errorf("VideoID = %q, want abc123", resp.VideoID)
	}
	if len(resp.Highlights) != 2 || resp.Highlights[0].Title != "Hook" {
		t.Errorf("unexpected highlights: %+v", resp.Highlights)
	}
}

func TestAPIError_BodyText(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("subtitle language not supported"))
	}))

	_, err := c.ExtractHighlights(context.Background(), &HighlightsRequest{VideoURL: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, want 422", apiErr.StatusCode)
	}
	if apiErr.Message != "subtitle language not supported" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestAPIError_EmptyBodyFallsBackToStatusText(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	err := c.DeleteJob(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Message != http.StatusText(http.StatusNotFound) {
		t.Errorf("Message = %q, want %q", apiErr.Message, http.StatusText(http.StatusNotFound))
	}
}

func TestOpenStatusStream_Framing(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate/j1/stream" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("missing Accept header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		// Comment, one single-line event, one multi-line event
		w.Write([]byte(": keep-alive\n\n"))
		w.Write([]byte("data: {\"job_id\":\"j1\"}\n\n"))
		w.Write([]byte("data: {\"job_id\":\n"))
		w.Write([]byte("data: \"j1\"}\n\n"))
	}))

	s, err := c.OpenStatusStream(context.Background(), "j1")
	if err != nil {
		t.Fatalf("OpenStatusStream: %v", err)
	}
	defer s.Close()

	first, err := s.Recv()
	if err != nil {
		t.Fatalf("Recv 1: %v", err)
	}
	if string(first) != `{"job_id":"j1"}` {
		t.Errorf("event 1 = %q", first)
	}

	second, err := s.Recv()
	if err != nil {
		t.Fatalf("Recv 2: %v", err)
	}
	if string(second) != "{\"job_id\":\n\"j1\"}" {
		t.Errorf("event 2 = %q", second)
	}

	if _, err := s.Recv(); err == nil {
		t.Error("expected error after server closed the stream")
	}
}

func TestOpenStatusStream_NonOK(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("job not found"))
	}))

	_, err := c.OpenStatusStream(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
}

func TestFileAndDownloadURLs(t *testing.T) {
	c := New(&config.APIConfig{BaseURL: "http://api.local", Timeout: 5})
	if got := c.FileURL("out_h1.mp4"); got != "http://api.local/files/out_h1.mp4" {
		t.Errorf("FileURL = %q", got)
	}
	if got := c.DownloadURL("out_h1.mp4"); got != "http://api.local/download/out_h1.mp4" {
		t.Errorf("DownloadURL = %q", got)
	}
}
