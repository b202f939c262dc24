// Package workflow runs the multi-step session creation sequence: name
// checks, registration, warm-up, and the optional sites import and
// configuration that follow it.
package workflow

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/nellyag1/wavescape-portal222/internal/dispatch"
	"github.com/nellyag1/wavescape-portal222/internal/exitcode"
	"github.com/nellyag1/wavescape-portal222/internal/logging"
	"github.com/nellyag1/wavescape-portal222/internal/notification"
	"github.com/nellyag1/wavescape-portal222/internal/session"
	"github.com/nellyag1/wavescape-portal222/internal/warmup"
)

// ActionCheckStatus names the existence probe in notifications.
const ActionCheckStatus = "check session status"

// ActionStartNearmap names the warm-up in notifications.
const ActionStartNearmap = "initiate Nearmap processing"

// NameTakenError reports that the name belongs to a session that is past
// its warm-up.
type NameTakenError struct {
	ID string
}

func (e *NameTakenError) Error() string {
	return "Session name must be unique. Please enter another name."
}

func (e *NameTakenError) Unwrap() error {
	return exitcode.ErrNameConflict
}

// ErrInProgress is returned when the same session is already being created.
var ErrInProgress = errors.New("creation of this session is already in progress")

// SessionFetcher reads a single session.
type SessionFetcher interface {
	Fetch(ctx context.Context, id string) (*session.Session, error)
}

// Request describes a session to create.
type Request struct {
	ID      string
	OwnerID string
	// AOI is the raw area-of-interest (geopackage) file.
	AOI []byte
	// Sites, when set, is imported once warm-up has started.
	Sites *dispatch.SitesPayload
	// Configuration, when set, is posted after the sites import.
	Configuration *dispatch.Configuration
}

// Result summarizes a completed creation.
type Result struct {
	Created        bool
	WarmupAttempts int
	SitesImported  bool
	Configured     bool
}

// Creator runs the creation sequence. It is safe for concurrent use; two
// creations of the same identifier never overlap.
type Creator struct {
	Fetcher    SessionFetcher
	Dispatcher *dispatch.Dispatcher
	Warmup     *warmup.Orchestrator
	Notifier   notification.Notifier

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewCreator wires a creator. A nil notifier falls back to the console logger.
func NewCreator(f SessionFetcher, d *dispatch.Dispatcher, w *warmup.Orchestrator, n notification.Notifier) *Creator {
	if n == nil {
		n = notification.LogNotifier{}
	}
	return &Creator{Fetcher: f, Dispatcher: d, Warmup: w, Notifier: n}
}

// Run executes the creation sequence and stops at the first failing step.
func (c *Creator) Run(ctx context.Context, req Request) (Result, error) {
	var res Result

	if err := c.acquire(req.ID); err != nil {
		return res, err
	}
	defer c.release(req.ID)

	// Step 1: Name
	if err := c.phaseValidateName(req); err != nil {
		return res, err
	}

	// Step 2: Existence probe and registration
	created, err := c.phaseRegister(ctx, req)
	if err != nil {
		return res, err
	}
	res.Created = created

	// Step 3: Warm-up
	attempts, err := c.phaseWarmup(ctx, req)
	res.WarmupAttempts = attempts
	if err != nil {
		return res, err
	}

	// Step 4: Sites
	if req.Sites != nil {
		logging.Phase("Importing sites")
		if err := c.Dispatcher.ImportSites(ctx, req.ID, *req.Sites); err != nil {
			return res, err
		}
		res.SitesImported = true
	}

	// Step 5: Configuration
	if req.Configuration != nil {
		logging.Phase("Configuring session")
		if err := c.Dispatcher.Configure(ctx, req.ID, *req.Configuration); err != nil {
			return res, err
		}
		res.Configured = true
	}

	return res, nil
}

func (c *Creator) acquire(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight == nil {
		c.inFlight = make(map[string]struct{})
	}
	if _, busy := c.inFlight[id]; busy {
		return fmt.Errorf("%s: %w", id, ErrInProgress)
	}
	c.inFlight[id] = struct{}{}
	return nil
}

func (c *Creator) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
}

func (c *Creator) phaseValidateName(req Request) error {
	logging.Phase(fmt.Sprintf("Creating session %q", req.ID))
	if err := session.ValidateName(req.ID); err != nil {
		return fmt.Errorf("%w: %w", exitcode.ErrNameConflict, err)
	}
	if len(req.AOI) == 0 {
		return errors.New("an area-of-interest file is required")
	}
	return nil
}

// phaseRegister creates the session unless an idle one with the same name is
// already waiting for its warm-up.
func (c *Creator) phaseRegister(ctx context.Context, req Request) (bool, error) {
	existing, err := c.Fetcher.Fetch(ctx, req.ID)
	switch {
	case err == nil && existing.States.Has(session.StateIdle):
		logging.Info(fmt.Sprintf("Session %q already exists and is idle, resuming warm-up", req.ID))
		return false, nil
	case err == nil:
		return false, &NameTakenError{ID: req.ID}
	case !session.IsGone(err):
		c.Notifier.Notify(notification.EventFailed, req.ID, ActionCheckStatus)
		return false, err
	}

	if err := c.Dispatcher.Create(ctx, req.ID, req.OwnerID); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Creator) phaseWarmup(ctx context.Context, req Request) (int, error) {
	logging.Phase("Starting Nearmap processing")

	res, err := c.Warmup.Run(ctx, req.ID, warmup.Payload{
		AOI: base64.StdEncoding.EncodeToString(req.AOI),
	})
	switch {
	case err == nil:
		c.Notifier.Notify(notification.EventSucceeded, req.ID, ActionStartNearmap)
		return res.Attempts, nil
	case ctx.Err() != nil:
		return res.Attempts, fmt.Errorf("%w: %w", exitcode.ErrInterrupted, err)
	case warmup.IsExhausted(err):
		c.Notifier.Notify(notification.EventNotReady, req.ID, ActionStartNearmap)
	default:
		c.Notifier.Notify(notification.EventFailed, req.ID, ActionStartNearmap)
	}
	return res.Attempts, err
}
