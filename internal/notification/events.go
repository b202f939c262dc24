package notification

import "fmt"

// Event types raised by the action dispatcher and the creation workflow.
const (
	EventSucceeded   = "succeeded"
	EventFailed      = "failed"
	EventNotReady    = "not_ready"
	EventInterrupted = "interrupted"
)

// Success messages keyed by action name.
var successMessages = map[string]string{
	"create the Session":          "Session successfully created.",
	"initiate Nearmap processing": "Geopackage successfully uploaded.",
	"save sites data":             "Sites successfully uploaded.",
	"save iteration changes":      "Iteration changes saved successfully.",
	"configure the session":       "Session successfully configured.",
	"validate the session":        "Validation successfully started.",
	"start WaveScape":             "WaveScape successfully started.",
	"stop activities in progress": "Session successfully stopped.",
}

// FailureText is the generic failure message naming the attempted action.
func FailureText(action string) string {
	return fmt.Sprintf("Failed to %s, please wait a few minutes and try again. If the problem persists, please contact WaveScape support.", action)
}

// SuccessText is the confirmation shown once an action was accepted.
func SuccessText(action string) string {
	if msg, ok := successMessages[action]; ok {
		return msg
	}
	return fmt.Sprintf("Successfully completed: %s.", action)
}

// FormatEvent creates a notification message for the given event.
func FormatEvent(event string, sessionID string, action string) string {
	switch event {
	case EventSucceeded:
		return fmt.Sprintf("✅ [%s] %s", sessionID, SuccessText(action))
	case EventFailed:
		return fmt.Sprintf("❌ [%s] %s", sessionID, FailureText(action))
	case EventNotReady:
		return fmt.Sprintf("⏳ [%s] session did not become ready in time to %s", sessionID, action)
	case EventInterrupted:
		return fmt.Sprintf("⏸️ [%s] interrupted while trying to %s", sessionID, action)
	default:
		return fmt.Sprintf("ℹ️ [%s] event: %s (%s)", sessionID, event, action)
	}
}
