// Package session models a remote WaveScape analysis session and reads it
// from the backend.
//
// A Session is a read-only snapshot: every fetch replaces the previous one
// wholesale and the client never edits States itself. The backend is the
// only writer of ground truth.
package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Outcome is the result recorded by the batch service for a finished task.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeUnknown Outcome = "unknown"
)

// ExecutionResult is the decoded execution_info of a finished sub-task.
type ExecutionResult struct {
	Outcome        Outcome
	FailureMessage string
}

// SubTask is the backend record of one stage's batch task.
type SubTask struct {
	TaskID         string
	OrchestratorID string
	// Result is nil until the task has finished.
	Result *ExecutionResult
}

// Started reports whether the backend ever created a task for the stage.
func (t *SubTask) Started() bool {
	return t != nil && strings.TrimSpace(t.TaskID) != ""
}

// StorageLinks are Storage Explorer links for the session's resources. The
// table link only resolves once a sites table exists server side.
type StorageLinks struct {
	BlobContainer       string `json:"blob_container"`
	Table               string `json:"table"`
	DirectLinkContainer string `json:"direct_link_container"`
	DirectLinkTable     string `json:"direct_link_table"`
}

// Session is one snapshot of a backend session.
type Session struct {
	Name           string
	Version        int
	IterationNames []string
	CreatedBy      string
	Created        string
	Updated        string
	States         StateSet
	Storage        *StorageLinks
	Configuration  string
	Nearmap        *SubTask
	Validation     *SubTask
	WaveScape      *SubTask
}

// SubTasks returns the sub-task records keyed by stage.
func (s *Session) SubTasks() map[Stage]*SubTask {
	return map[Stage]*SubTask{
		StageNearmap:    s.Nearmap,
		StageValidation: s.Validation,
		StageWaveScape:  s.WaveScape,
	}
}

// CurrentIteration returns the most recent iteration name, if any.
func (s *Session) CurrentIteration() string {
	if len(s.IterationNames) == 0 {
		return ""
	}
	return s.IterationNames[len(s.IterationNames)-1]
}

// IsDefunct reports whether the session is a creation that never got past
// warm-up: its only state is IDLE, NEARMAP_RUNNING or NEARMAP_COMPLETED.
// Such sessions are unusable and are hidden from listings.
func IsDefunct(s *Session) bool {
	if len(s.States) != 1 {
		return false
	}
	return s.States.Has(StateIdle) || s.States.Has(StateNearmapRunning) || s.States.Has(StateNearmapCompleted)
}

// wire types mirror the backend JSON.

type wireSubTask struct {
	TaskID         string `json:"task_id"`
	OrchestratorID string `json:"orchestrator_id"`
	ExecutionInfo  string `json:"execution_info"`
}

type wireSession struct {
	Name           string        `json:"name"`
	Version        int           `json:"version"`
	IterationNames []string      `json:"iteration_names"`
	CreatedBy      string        `json:"created_by"`
	Created        string        `json:"created"`
	Updated        string        `json:"updated"`
	States         StateSet      `json:"states"`
	Storage        *StorageLinks `json:"storage"`
	Configuration  string        `json:"configuration"`
	Nearmap        *wireSubTask  `json:"nearmap"`
	Validation     *wireSubTask  `json:"validation"`
	WaveScape      *wireSubTask  `json:"wavescape"`
}

type wireExecutionInfo struct {
	Result *struct {
		Value string `json:"_value_"`
	} `json:"result"`
	FailureInfo *struct {
		Message string `json:"message"`
	} `json:"failure_info"`
}

// Decode parses one session record. Errors wrap ErrParse.
func Decode(data []byte) (*Session, error) {
	var w wireSession
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: session body: %w", ErrParse, err)
	}
	return fromWire(&w)
}

// DecodeList parses the array returned by the collection endpoint.
func DecodeList(data []byte) ([]*Session, error) {
	var ws []wireSession
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("%w: session list body: %w", ErrParse, err)
	}
	out := make([]*Session, 0, len(ws))
	for i := range ws {
		s, err := fromWire(&ws[i])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func fromWire(w *wireSession) (*Session, error) {
	s := &Session{
		Name:           w.Name,
		Version:        w.Version,
		IterationNames: w.IterationNames,
		CreatedBy:      w.CreatedBy,
		Created:        w.Created,
		Updated:        w.Updated,
		States:         w.States,
		Storage:        w.Storage,
		Configuration:  w.Configuration,
	}
	if s.States == nil {
		s.States = StateSet{}
	}

	var err error
	if s.Nearmap, err = subTaskFromWire(StageNearmap, w.Nearmap); err != nil {
		return nil, err
	}
	if s.Validation, err = subTaskFromWire(StageValidation, w.Validation); err != nil {
		return nil, err
	}
	if s.WaveScape, err = subTaskFromWire(StageWaveScape, w.WaveScape); err != nil {
		return nil, err
	}
	return s, nil
}

func subTaskFromWire(stage Stage, w *wireSubTask) (*SubTask, error) {
	if w == nil {
		return nil, nil
	}
	t := &SubTask{TaskID: w.TaskID, OrchestratorID: w.OrchestratorID}
	r, err := ParseExecutionInfo(w.ExecutionInfo)
	if err != nil {
		return nil, fmt.Errorf("%s execution info: %w", stage, err)
	}
	t.Result = r
	return t, nil
}

// ParseExecutionInfo decodes the JSON document the backend stores for a
// finished task. An empty string means the task has not finished and
// yields a nil result.
func ParseExecutionInfo(raw string) (*ExecutionResult, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var w wireExecutionInfo
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	r := &ExecutionResult{Outcome: OutcomeUnknown}
	if w.Result != nil {
		switch w.Result.Value {
		case string(OutcomeSuccess):
			r.Outcome = OutcomeSuccess
		case string(OutcomeFailure):
			r.Outcome = OutcomeFailure
		}
	}
	if w.FailureInfo != nil {
		r.FailureMessage = w.FailureInfo.Message
	}
	return r, nil
}
