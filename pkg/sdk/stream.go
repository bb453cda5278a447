package sdk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const doneSentinel = "[DONE]"

// QueryStream opens a streaming generation request. The caller must Close the
// returned stream.
func (c *Client) QueryStream(ctx context.Context, req QueryRequest) (*Stream, error) {
	return c.stream(ctx, "/api/v1/query", req)
}

// SummarizeStream opens a streaming summary request.
func (c *Client) SummarizeStream(ctx context.Context, req QueryRequest) (*Stream, error) {
	return c.stream(ctx, "/api/v1/summarize", req)
}

func (c *Client) stream(ctx context.Context, path string, req QueryRequest) (*Stream, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path+"?stream=true", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}

	return &Stream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

// Stream reads server-sent generation events.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

// Recv returns the next event. io.EOF marks the end of a completed stream;
// any other error means the stream was cut off before the [DONE] sentinel.
func (s *Stream) Recv() (Event, error) {
	if s.done {
		return Event{}, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == doneSentinel {
			s.done = true
			return Event{}, io.EOF
		}

		var event Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return Event{}, fmt.Errorf("decode event: %w", err)
		}
		return event, nil
	}

	if err := s.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("read stream: %w", err)
	}
	return Event{}, fmt.Errorf("stream ended without %s sentinel", doneSentinel)
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.body.Close()
}
