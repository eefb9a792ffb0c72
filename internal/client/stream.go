package client

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// EventStream is one live push-event connection. Recv blocks until the next
// event's data payload arrives; Close unblocks a pending Recv. The stream
// performs no retry of its own.
type EventStream interface {
	Recv() ([]byte, error)
	Close() error
}

// OpenStatusStream opens the server-sent-events connection for one job. A
// non-success response is normalized into an *APIError, same as any other
// call; a returned stream means the server acknowledged the subscription.
func (c *Client) OpenStatusStream(ctx context.Context, jobID string) (EventStream, error) {
	endpoint := fmt.Sprintf("%s/generate/%s/stream", c.baseURL, url.PathEscape(jobID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open status stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, newAPIError(resp.StatusCode, body)
	}

	return &sseStream{
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// sseStream reads text/event-stream framing: "data:" lines accumulate until
// a blank line terminates the event. Comment lines and non-data fields are
// skipped.
type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

func (s *sseStream) Recv() ([]byte, error) {
	var data bytes.Buffer
	haveData := false

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			// A partial event at EOF is dropped; the supervisor treats the
			// close as a connection failure either way.
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if haveData {
				return data.Bytes(), nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			payload := strings.TrimPrefix(line, "data:")
			payload = strings.TrimPrefix(payload, " ")
			if haveData {
				data.WriteByte('\n')
			}
			data.WriteString(payload)
			haveData = true
		default:
			// event/id/retry fields are not used by the job stream
		}
	}
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
