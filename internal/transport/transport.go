// Package transport is the generic request/response primitive used to reach
// the session API.
//
// It knows nothing about sessions: callers pass a method, a path suffix
// relative to the session-collection root and an optional JSON body, and get
// back the status code, the raw body and an ok flag. Interpreting specific
// status codes is left to the caller.
package transport

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

// Response is the outcome of one round trip.
type Response struct {
	StatusCode int
	Body       []byte
	// OK is true iff StatusCode is in the 2xx range.
	OK bool
}

// Caller performs one request against the session collection.
type Caller interface {
	Call(ctx context.Context, method, path string, body any) (*Response, error)
}

// HTTPCaller is the Caller backed by net/http.
type HTTPCaller struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPCaller creates a caller rooted at baseURL, e.g.
// "http://localhost:7071/api/sessions".
func NewHTTPCaller(baseURL string, timeout time.Duration) *HTTPCaller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCaller{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the collection root with a trailing slash.
func (c *HTTPCaller) BaseURL() string {
	return c.baseURL
}

// Call sends the request. A nil body sends no payload. Transport-level
// failures are returned as errors; HTTP error statuses are not.
func (c *HTTPCaller) Call(ctx context.Context, method, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
	}, nil
}
