// Package capability derives what an operator may do with a session from
// the backend's state tokens.
//
// Classify is the single place where membership tests on the state set are
// made. It is pure and total: the same snapshot always yields the same
// Vector, and unknown or missing tokens simply count as "not yet true".
package capability

import (
	"strings"
	"unicode/utf8"

	"github.com/nellyag1/wavescape-portal222/internal/session"
)

// Status is the display status of one stage.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusStopped    Status = "stopped"
)

// Detail messages shown next to a stage status.
const (
	DetailSucceeded     = "The task ran successfully"
	DetailFailed        = "The task encountered a failure"
	DetailUnknownResult = "The task completed with an unknown result"
	DetailStopped       = "Session stopped"
)

// StageView is the classified status of one stage.
type StageView struct {
	Status Status
	Detail string
	// LogsAvailable reports whether the stage's task logs are worth
	// requesting.
	LogsAvailable bool
}

// Vector is the UI-facing capability summary of a session snapshot.
// It is derived on every fetch and never persisted.
type Vector struct {
	Configured        bool
	ValidationEnabled bool
	WaveScapeEnabled  bool
	StopEnabled       bool
	SitesLinkVisible  bool
	// IterationRequired is set once WaveScape has completed: the next start
	// must be a named iteration rather than the initial run.
	IterationRequired bool
	ConfigureLabel    string
	Stages            map[session.Stage]StageView
}

// Classify computes the capability vector. The rules are evaluated
// independently of one another.
func Classify(states session.StateSet, subTasks map[session.Stage]*session.SubTask) Vector {
	stopped := states.Has(session.StateStopped)
	ready := states.Has(session.StateReadyToRun)

	v := Vector{
		Configured:        states.Has(session.StateConfigurationCompleted),
		ValidationEnabled: ready && !running(states, session.StageValidation) && !stopped,
		WaveScapeEnabled:  ready && !running(states, session.StageWaveScape) && !stopped,
		StopEnabled:       !stopped,
		SitesLinkVisible:  completed(states, session.StageValidation) || completed(states, session.StageWaveScape),
		IterationRequired: completed(states, session.StageWaveScape),
		Stages:            make(map[session.Stage]StageView, len(session.Stages)),
	}

	v.ConfigureLabel = "Configure"
	if v.Configured {
		v.ConfigureLabel = "Reconfigure"
	}

	for _, stage := range session.Stages {
		v.Stages[stage] = classifyStage(states, stage, subTasks[stage])
	}
	return v
}

// ClassifySession is Classify applied to a fetched snapshot.
func ClassifySession(s *session.Session) Vector {
	return Classify(s.States, s.SubTasks())
}

func running(states session.StateSet, stage session.Stage) bool {
	return states.Has(stage.RunningToken())
}

func completed(states session.StateSet, stage session.Stage) bool {
	return states.Has(stage.CompletedToken())
}

func classifyStage(states session.StateSet, stage session.Stage, task *session.SubTask) StageView {
	isRunning := running(states, stage)

	var result *session.ExecutionResult
	if task != nil {
		result = task.Result
	}

	view := StageView{
		LogsAvailable: logsAvailable(states, stage, result, isRunning),
	}

	switch {
	case states.Has(session.StateStopped) && stage != session.StageNearmap:
		view.Status = StatusStopped
		view.Detail = DetailStopped
	case isRunning:
		view.Status = StatusRunning
		view.Detail = "Logs will be available once " + stage.Title() + " is completed"
	case result == nil:
		view.Status = StatusNotStarted
	case result.Outcome == session.OutcomeSuccess:
		view.Status = StatusCompleted
		view.Detail = DetailSucceeded
	default:
		view.Status = StatusFailed
		view.Detail = failureDetail(result)
	}
	return view
}

func logsAvailable(states session.StateSet, stage session.Stage, result *session.ExecutionResult, isRunning bool) bool {
	finished := result != nil && !isRunning
	if stage == session.StageNearmap {
		return states.Has(session.StateReadyToRun) || finished
	}
	return completed(states, stage) || finished
}

// failureDetail keeps the first character of the batch service's message
// and lower-cases the rest ("Task Was Ended" becomes "Task was ended").
func failureDetail(r *session.ExecutionResult) string {
	if r.Outcome != session.OutcomeFailure {
		return DetailUnknownResult
	}
	msg := r.FailureMessage
	if msg == "" {
		return DetailFailed
	}
	_, size := utf8.DecodeRuneInString(msg)
	return msg[:size] + strings.ToLower(msg[size:])
}
