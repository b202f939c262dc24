// Package dispatch issues the mutating session commands.
//
// Each action is a single request. The dispatcher does not re-check whether
// an action is currently allowed (callers gate on capability.Vector.Allows
// and the backend has the final word) and never updates local state
// optimistically: on success it asks for a fresh snapshot instead.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nellyag1/wavescape-portal222/internal/logging"
	"github.com/nellyag1/wavescape-portal222/internal/notification"
	"github.com/nellyag1/wavescape-portal222/internal/session"
	"github.com/nellyag1/wavescape-portal222/internal/transport"
)

// Action names as they appear in notifications.
const (
	ActionCreate      = "create the Session"
	ActionImportSites = "save sites data"
	ActionUpdateSites = "save iteration changes"
	ActionConfigure   = "configure the session"
	ActionValidate    = "validate the session"
	ActionRun         = "start WaveScape"
	ActionStop        = "stop activities in progress"
)

// Refresher re-fetches a session after a successful mutation.
type Refresher interface {
	Refresh(ctx context.Context, id string) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, id string) error

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context, id string) error {
	return f(ctx, id)
}

// Dispatcher sends session commands to the backend.
type Dispatcher struct {
	Caller    transport.Caller
	Notifier  notification.Notifier
	Refresher Refresher
}

// New creates a dispatcher. A nil notifier falls back to the console logger;
// a nil refresher skips the post-action refresh.
func New(c transport.Caller, n notification.Notifier, r Refresher) *Dispatcher {
	if n == nil {
		n = notification.LogNotifier{}
	}
	return &Dispatcher{Caller: c, Notifier: n, Refresher: r}
}

// CreateRequest is the body of a session creation.
type CreateRequest struct {
	UserID string `json:"userId"`
}

// Create registers a new session owned by ownerID.
func (d *Dispatcher) Create(ctx context.Context, id, ownerID string) error {
	return d.do(ctx, id, ActionCreate, http.MethodPut, "", CreateRequest{UserID: ownerID})
}

// Configure posts the analysis parameters.
func (d *Dispatcher) Configure(ctx context.Context, id string, cfg Configuration) error {
	return d.do(ctx, id, ActionConfigure, http.MethodPost, "configure", cfg)
}

// ImportSites uploads the sites CSV and its GeoJSON conversion.
func (d *Dispatcher) ImportSites(ctx context.Context, id string, p SitesPayload) error {
	return d.do(ctx, id, ActionImportSites, http.MethodPut, "sites", p)
}

// UpdateSites saves edits to the sites table ahead of an iteration.
func (d *Dispatcher) UpdateSites(ctx context.Context, id string, u SitesUpdate) error {
	return d.do(ctx, id, ActionUpdateSites, http.MethodPatch, "sites", u)
}

// Validate starts the validation stage.
func (d *Dispatcher) Validate(ctx context.Context, id string) error {
	return d.do(ctx, id, ActionValidate, http.MethodPost, session.StageValidation.Path(), nil)
}

// Run starts the initial WaveScape run.
func (d *Dispatcher) Run(ctx context.Context, id string) error {
	req := RunRequest{IterationName: InitialIteration, Stages: DefaultStages()}
	return d.do(ctx, id, ActionRun, http.MethodPost, session.StageWaveScape.Path(), req)
}

// Iterate starts a named WaveScape iteration. The name follows the same
// rules as session names and is checked before anything is sent.
func (d *Dispatcher) Iterate(ctx context.Context, id, name string) error {
	if err := session.ValidateName(name); err != nil {
		return fmt.Errorf("iteration name: %w", err)
	}
	req := RunRequest{IterationName: name, Stages: IterationStages()}
	return d.do(ctx, id, ActionRun, http.MethodPost, session.StageWaveScape.Path(), req)
}

// Stop terminates every running stage of the session.
func (d *Dispatcher) Stop(ctx context.Context, id string) error {
	return d.do(ctx, id, ActionStop, http.MethodPost, "stop", nil)
}

func (d *Dispatcher) do(ctx context.Context, id, action, method, suffix string, body any) error {
	path := url.PathEscape(id)
	if suffix != "" {
		path += "/" + suffix
	}

	logging.Debug(fmt.Sprintf("%s %s", method, path))
	resp, err := d.Caller.Call(ctx, method, path, body)
	if err != nil {
		d.notify(notification.EventFailed, id, action)
		return fmt.Errorf("%s: %w: %w", action, session.ErrTransport, err)
	}
	if !resp.OK {
		d.notify(notification.EventFailed, id, action)
		return &session.StatusError{Op: action, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	d.notify(notification.EventSucceeded, id, action)
	if d.Refresher != nil {
		if err := d.Refresher.Refresh(ctx, id); err != nil {
			// the refresh path reports its own failures
			logging.Debug(fmt.Sprintf("refresh after %q: %v", action, err))
		}
	}
	return nil
}

func (d *Dispatcher) notify(event, id, action string) {
	if d.Notifier != nil {
		d.Notifier.Notify(event, id, action)
	}
}
