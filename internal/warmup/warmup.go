// Package warmup starts the nearmap stage of a freshly created session.
//
// A new session's compute resources take a while to come up, and until they
// do the backend answers the nearmap request with 410 Gone. The orchestrator
// keeps retrying at a fixed interval until the request is accepted, a
// non-retryable error comes back, or the budget runs out.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nellyag1/wavescape-portal222/internal/session"
	"github.com/nellyag1/wavescape-portal222/internal/transport"
)

const (
	DefaultBudget   = 30 * time.Second
	DefaultInterval = 3 * time.Second
)

// Config bounds the warm-up loop.
type Config struct {
	Budget   time.Duration
	Interval time.Duration
}

// DefaultConfig returns a 30 second budget polled every 3 seconds.
func DefaultConfig() Config {
	return Config{Budget: DefaultBudget, Interval: DefaultInterval}
}

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// MaxAttempts is the number of requests the budget allows, never less than
// one.
func (c Config) MaxAttempts() int {
	c = c.withDefaults()
	n := int(c.Budget / c.Interval)
	if n < 1 {
		n = 1
	}
	return n
}

// Payload is the body of the nearmap start request.
type Payload struct {
	// AOI is the base64-encoded area-of-interest file.
	AOI string `json:"aoi"`
}

// Result describes a successful warm-up.
type Result struct {
	Attempts int
}

// Orchestrator runs the warm-up loop for one session at a time.
type Orchestrator struct {
	Caller transport.Caller
	Clock  clockwork.Clock
	Config Config
	// OnAttempt, if set, is called after every not-ready answer with the
	// attempt number and how many attempts are left.
	OnAttempt func(attempt, remaining int)
}

// New creates an orchestrator on the real clock.
func New(c transport.Caller, cfg Config) *Orchestrator {
	return &Orchestrator{Caller: c, Clock: clockwork.NewRealClock(), Config: cfg}
}

// Run starts the nearmap stage of id, retrying while the backend reports the
// session as not ready. An exhausted budget returns an error wrapping
// session.ErrNotReady. Any other non-success status aborts at once. Cancelling
// ctx stops further attempts.
func (o *Orchestrator) Run(ctx context.Context, id string, payload Payload) (Result, error) {
	cfg := o.Config.withDefaults()
	clock := o.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	maxAttempts := cfg.MaxAttempts()
	path := url.PathEscape(id) + "/nearmap"

	for attempt := 1; ; attempt++ {
		resp, err := o.Caller.Call(ctx, http.MethodPost, path, payload)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{Attempts: attempt}, ctxErr
			}
			return Result{Attempts: attempt}, fmt.Errorf("initiate Nearmap processing: %w: %w", session.ErrTransport, err)
		}
		if resp.OK {
			return Result{Attempts: attempt}, nil
		}
		if resp.StatusCode != http.StatusGone {
			return Result{Attempts: attempt}, &session.StatusError{
				Op:         "initiate Nearmap processing",
				StatusCode: resp.StatusCode,
				Body:       string(resp.Body),
			}
		}

		remaining := maxAttempts - attempt
		if o.OnAttempt != nil {
			o.OnAttempt(attempt, remaining)
		}
		if remaining <= 0 {
			return Result{Attempts: attempt}, &ExhaustedError{Attempts: attempt, Budget: cfg.Budget}
		}

		select {
		case <-ctx.Done():
			return Result{Attempts: attempt}, ctx.Err()
		case <-clock.After(cfg.Interval):
		}
	}
}

// ExhaustedError reports that the session never became ready within the
// budget.
type ExhaustedError struct {
	Attempts int
	Budget   time.Duration
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("session not ready after %d attempts (%s)", e.Attempts, e.Budget)
}

func (e *ExhaustedError) Unwrap() error {
	return session.ErrNotReady
}

// IsExhausted reports whether err is an exhausted warm-up budget.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
