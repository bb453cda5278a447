// Package sdk is a typed Go client for the newsrag HTTP API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a newsrag server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout. Streaming requests should use a
// generous value; the connection stays open for the whole generation.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 180 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("newsrag: %s (%s, http %d)", e.Message, e.Code, e.Status)
}

// Query runs a blocking question-answering request.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*GenerateResult, error) {
	return c.generate(ctx, "/api/v1/query", req)
}

// Summarize runs a blocking summary request.
func (c *Client) Summarize(ctx context.Context, req QueryRequest) (*GenerateResult, error) {
	return c.generate(ctx, "/api/v1/summarize", req)
}

// Timeline runs a blocking timeline request.
func (c *Client) Timeline(ctx context.Context, req QueryRequest) (*GenerateResult, error) {
	return c.generate(ctx, "/api/v1/timeline", req)
}

// Report runs a blocking report request.
func (c *Client) Report(ctx context.Context, req QueryRequest) (*GenerateResult, error) {
	return c.generate(ctx, "/api/v1/report", req)
}

func (c *Client) generate(ctx context.Context, path string, req QueryRequest) (*GenerateResult, error) {
	var result GenerateResult
	if err := c.doJSON(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpsertDocument ingests or replaces a document and returns the number of
// chunks indexed.
func (c *Client) UpsertDocument(ctx context.Context, id string, doc Document) (int, error) {
	var resp struct {
		Chunks int `json:"chunks"`
	}
	path := "/api/v1/documents/" + id
	if err := c.doJSON(ctx, http.MethodPut, path, doc, &resp); err != nil {
		return 0, err
	}
	return resp.Chunks, nil
}

// DeleteDocument removes a document and all its chunks.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/documents/"+id, nil, nil)
}

// Health reports server health.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && json.Unmarshal(data, apiErr) == nil && apiErr.Message != "" {
		return apiErr
	}
	apiErr.Code = "unknown"
	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
