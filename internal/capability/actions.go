package capability

// Action names a command an operator can issue. All but ActionViewSites
// mutate the session.
type Action string

const (
	ActionConfigure   Action = "configure"
	ActionImportSites Action = "import-sites"
	ActionUpdateSites Action = "update-sites"
	ActionValidate    Action = "validate"
	ActionRun         Action = "run"
	ActionIterate     Action = "iterate"
	ActionStop        Action = "stop"
	ActionViewSites   Action = "sites"
)

// Allows reports whether the vector currently enables the action. The
// backend remains the final arbiter and may still reject the request.
func (v Vector) Allows(a Action) bool {
	switch a {
	case ActionConfigure, ActionImportSites:
		return true
	case ActionUpdateSites, ActionViewSites:
		return v.SitesLinkVisible
	case ActionValidate:
		return v.ValidationEnabled
	case ActionRun:
		return v.WaveScapeEnabled && !v.IterationRequired
	case ActionIterate:
		return v.WaveScapeEnabled && v.IterationRequired
	case ActionStop:
		return v.StopEnabled
	default:
		return false
	}
}

// Reason explains why an action is currently unavailable. It returns an
// empty string when the action is allowed.
func (v Vector) Reason(a Action) string {
	if v.Allows(a) {
		return ""
	}
	switch a {
	case ActionUpdateSites:
		return "sites can be edited after the session has been validated or WaveScape has run"
	case ActionViewSites:
		return "the sites table exists once the session has been validated or WaveScape has run"
	case ActionValidate, ActionRun, ActionIterate:
		switch {
		case !v.StopEnabled:
			return "the session is stopped"
		case a == ActionRun && v.IterationRequired:
			return "WaveScape has already completed; start a named iteration instead"
		case a == ActionIterate && !v.IterationRequired && v.WaveScapeEnabled:
			return "WaveScape has not completed yet; start the initial run instead"
		default:
			return "the session is not ready to run or the stage is already running"
		}
	case ActionStop:
		return "the session is already stopped"
	default:
		return "unknown action"
	}
}
