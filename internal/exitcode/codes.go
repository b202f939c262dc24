// Package exitcode defines named exit codes for the wavescape CLI.
//
// Each code maps a specific termination condition to a numeric value
// recognized by shell scripts and CI pipelines.
package exitcode

import (
	"context"
	"errors"

	"github.com/nellyag1/wavescape-portal222/internal/session"
)

// Exit code constants.
const (
	Success      = 0   // Command completed
	Error        = 1   // Invalid args, transport failure, backend rejection
	NotReady     = 2   // Session never became ready during warm-up
	NameConflict = 3   // Session name invalid or already taken
	Unavailable  = 4   // Action not currently allowed for the session
	Interrupted  = 130 // SIGINT/SIGTERM received
)

// Name returns the human-readable name for the given exit code.
// Unknown codes return "unknown".
func Name(code int) string {
	switch code {
	case Success:
		return "Success"
	case Error:
		return "Error"
	case NotReady:
		return "NotReady"
	case NameConflict:
		return "NameConflict"
	case Unavailable:
		return "Unavailable"
	case Interrupted:
		return "Interrupted"
	default:
		return "unknown"
	}
}

// ErrUnavailable marks an action refused because the session's current
// state does not allow it.
var ErrUnavailable = errors.New("action not currently available")

// ErrNameConflict marks an invalid or already used session name.
var ErrNameConflict = errors.New("session name unavailable")

// ErrInterrupted marks a command stopped by the operator.
var ErrInterrupted = errors.New("interrupted")

// FromError maps an error returned by a command to its exit code.
func FromError(err error) int {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		return Interrupted
	case errors.Is(err, session.ErrNotReady):
		return NotReady
	case errors.Is(err, ErrNameConflict):
		return NameConflict
	case errors.Is(err, ErrUnavailable):
		return Unavailable
	default:
		return Error
	}
}
