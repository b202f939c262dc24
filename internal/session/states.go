package session

import (
	"encoding/json"
	"sort"
	"strings"
)

// State tokens reported by the backend. The set only says which milestones
// have been reached; token order carries no meaning.
const (
	StateIdle                   = "IDLE"
	StateNearmapRunning         = "NEARMAP_RUNNING"
	StateNearmapCompleted       = "NEARMAP_COMPLETED"
	StateConfigurationCompleted = "CONFIGURATION_COMPLETED"
	StateReadyToRun             = "READY_TO_RUN"
	StateValidationRunning      = "VALIDATION_RUNNING"
	StateValidationCompleted    = "VALIDATION_COMPLETED"
	StateWaveScapeRunning       = "WAVESCAPE_RUNNING"
	StateWaveScapeCompleted     = "WAVESCAPE_COMPLETED"
	StateStopped                = "STOPPED"
)

// Stage names a pipeline phase that runs as a backend batch task.
type Stage string

const (
	StageNearmap    Stage = "nearmap"
	StageValidation Stage = "validation"
	StageWaveScape  Stage = "wavescape"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageNearmap, StageValidation, StageWaveScape}

// ParseStage converts a user-supplied stage name into a Stage.
func ParseStage(s string) (Stage, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearmap":
		return StageNearmap, true
	case "validation", "validate":
		return StageValidation, true
	case "wavescape":
		return StageWaveScape, true
	default:
		return "", false
	}
}

// Title returns the display name of the stage.
func (s Stage) Title() string {
	switch s {
	case StageNearmap:
		return "Nearmap"
	case StageValidation:
		return "Validation"
	case StageWaveScape:
		return "WaveScape"
	default:
		return string(s)
	}
}

// Path returns the URL segment the backend uses for the stage. Validation is
// started and its logs read under "validate".
func (s Stage) Path() string {
	if s == StageValidation {
		return "validate"
	}
	return string(s)
}

// RunningToken returns the "<STAGE>_RUNNING" state token.
func (s Stage) RunningToken() string {
	return strings.ToUpper(string(s)) + "_RUNNING"
}

// CompletedToken returns the "<STAGE>_COMPLETED" state token.
func (s Stage) CompletedToken() string {
	return strings.ToUpper(string(s)) + "_COMPLETED"
}

// StateSet is an unordered set of state tokens.
type StateSet map[string]struct{}

// NewStateSet builds a set from the given tokens.
func NewStateSet(tokens ...string) StateSet {
	s := make(StateSet, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether token is present. A nil set has no tokens.
func (s StateSet) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// Sorted returns the tokens in lexical order.
func (s StateSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold exactly the given tokens.
func (s StateSet) Equal(tokens ...string) bool {
	other := NewStateSet(tokens...)
	if len(other) != len(s) {
		return false
	}
	for t := range other {
		if !s.Has(t) {
			return false
		}
	}
	return true
}

// UnmarshalJSON reads the backend's JSON array of tokens.
func (s *StateSet) UnmarshalJSON(data []byte) error {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}
	*s = NewStateSet(tokens...)
	return nil
}

// MarshalJSON writes the set as a sorted JSON array.
func (s StateSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// FormatStates renders tokens for people: "READY_TO_RUN" becomes
// "Ready to run". Tokens are sorted so output is stable between refreshes.
func FormatStates(s StateSet) string {
	tokens := s.Sorted()
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		words := strings.ReplaceAll(strings.ToLower(t), "_", " ")
		if words == "" {
			continue
		}
		parts = append(parts, strings.ToUpper(words[:1])+words[1:])
	}
	return strings.Join(parts, ", ")
}
