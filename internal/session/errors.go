package session

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by every component that talks to the backend.
var (
	// ErrTransport covers failed requests and non-success statuses.
	ErrTransport = errors.New("transport error")
	// ErrNotReady is the retryable warm-up precondition (410 Gone during
	// warm-up). Only the warm-up orchestrator produces it, and only once
	// its attempt budget is spent.
	ErrNotReady = errors.New("not ready")
	// ErrParse marks a malformed response body. It is a local defect and
	// is never retried.
	ErrParse = errors.New("malformed response")
)

// StatusError is returned when the backend answers with a non-success
// status code.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrTransport
}

// IsGone reports whether err carries a 410 Gone status. Outside warm-up the
// backend uses it for "no such session".
func IsGone(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusGone
}
