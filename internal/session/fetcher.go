package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nellyag1/wavescape-portal222/internal/transport"
)

// Logs holds the two log files a stage's batch task publishes.
type Logs struct {
	StdOut string `json:"std_out"`
	StdErr string `json:"std_err"`
}

// Fetcher reads sessions through the transport. It never retries: callers
// decide whether a failure is surfaced or tried again later.
type Fetcher struct {
	Caller transport.Caller
}

// NewFetcher creates a fetcher over the given caller.
func NewFetcher(c transport.Caller) *Fetcher {
	return &Fetcher{Caller: c}
}

// Fetch retrieves the full session record for id in one round trip.
func (f *Fetcher) Fetch(ctx context.Context, id string) (*Session, error) {
	resp, err := f.get(ctx, "retrieve session data", url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	s, err := Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("retrieve session data: %w", err)
	}
	return s, nil
}

// List retrieves every session the backend knows about, including defunct
// ones; filtering is left to the caller.
func (f *Fetcher) List(ctx context.Context) ([]*Session, error) {
	resp, err := f.get(ctx, "retrieve sessions", "")
	if err != nil {
		return nil, err
	}
	sessions, err := DecodeList(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("retrieve sessions: %w", err)
	}
	return sessions, nil
}

// Logs retrieves the stdout and stderr of a stage's most recent task.
func (f *Fetcher) Logs(ctx context.Context, id string, stage Stage) (*Logs, error) {
	op := fmt.Sprintf("retrieve %s log data", stage.Title())
	resp, err := f.get(ctx, op, url.PathEscape(id)+"/"+stage.Path())
	if err != nil {
		return nil, err
	}
	var logs Logs
	if err := json.Unmarshal(resp.Body, &logs); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrParse, err)
	}
	return &logs, nil
}

func (f *Fetcher) get(ctx context.Context, op, path string) (*transport.Response, error) {
	resp, err := f.Caller.Call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
	}
	if !resp.OK {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return resp, nil
}
