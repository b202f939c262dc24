package notification

import (
	"context"
	"os/exec"
	"time"

	"github.com/nellyag1/wavescape-portal222/internal/logging"
)

// Notifier surfaces the outcome of an action to the operator.
type Notifier interface {
	Notify(event, sessionID, action string)
}

// LogNotifier renders notifications through the console logger.
type LogNotifier struct{}

// Notify prints the success or failure message for action.
func (LogNotifier) Notify(event, sessionID, action string) {
	switch event {
	case EventSucceeded:
		logging.Success(SuccessText(action))
	case EventFailed, EventNotReady:
		logging.Error(FailureText(action))
	default:
		logging.Warn(FormatEvent(event, sessionID, action))
	}
}

// CommandNotifier forwards notifications to an external command, passing the
// formatted message as its only argument.
// Failures are ignored; the caller waits at most Timeout.
// No-op when Command is empty.
type CommandNotifier struct {
	Command string
	Timeout time.Duration
}

// Notify runs the command with the formatted event.
func (n CommandNotifier) Notify(event, sessionID, action string) {
	SendNotification(n.Command, n.Timeout, FormatEvent(event, sessionID, action))
}

// SendNotification runs command with message as its argument, waiting at
// most timeout (10 seconds when zero). Errors are ignored.
func SendNotification(command string, timeout time.Duration, message string) {
	if command == "" {
		return
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, message)

	// Fire and forget - ignore errors
	_ = cmd.Run()
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

// Notify delivers to each non-nil notifier.
func (m Multi) Notify(event, sessionID, action string) {
	for _, n := range m {
		if n != nil {
			n.Notify(event, sessionID, action)
		}
	}
}
