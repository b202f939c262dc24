// Package mockapi is an in-memory stand-in for the WaveScape session API.
//
// It keeps sessions in a map, answers the same routes with the same status
// codes as the real backend, and lets tests or a local operator drive the
// batch stages forward with Advance. Nothing runs on its own: a started stage
// stays RUNNING until Advance is called for its session.
package mockapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nellyag1/wavescape-portal222/internal/session"
)

// BasePath is the collection root the router serves.
const BasePath = "/api/sessions"

// StoppedMessage is the failure recorded for a task ended by a stop request.
const StoppedMessage = "Task Was Ended by User Request"

type taskRecord struct {
	TaskID         string `json:"task_id"`
	OrchestratorID string `json:"orchestrator_id"`
	ExecutionInfo  string `json:"execution_info"`
	stdout         string
	stderr         string
}

type record struct {
	Name           string                `json:"name"`
	Version        int                   `json:"version"`
	IterationNames []string              `json:"iteration_names"`
	CreatedBy      string                `json:"created_by"`
	Created        string                `json:"created"`
	Updated        string                `json:"updated"`
	States         session.StateSet      `json:"states"`
	Storage        *session.StorageLinks `json:"storage"`
	Configuration  string                `json:"configuration"`
	Nearmap        *taskRecord           `json:"nearmap"`
	Validation     *taskRecord           `json:"validation"`
	WaveScape      *taskRecord           `json:"wavescape"`

	pendingWarmup int
	hasAOI        bool
	rawSites      []byte
	processed     json.RawMessage
	// table is nil until the first validation or WaveScape start.
	table    []session.SiteRow
	failNext map[session.Stage]bool
}

func (r *record) task(stage session.Stage) **taskRecord {
	switch stage {
	case session.StageNearmap:
		return &r.Nearmap
	case session.StageValidation:
		return &r.Validation
	default:
		return &r.WaveScape
	}
}

func (r *record) add(tokens ...string) {
	for _, t := range tokens {
		r.States[t] = struct{}{}
	}
}

func (r *record) remove(tokens ...string) {
	for _, t := range tokens {
		delete(r.States, t)
	}
}

// Server holds the mock sessions. The zero value is not usable; call New.
type Server struct {
	// WarmupDelay is how many Nearmap start requests answer 410 after a
	// session is created, imitating a backend that is still provisioning.
	WarmupDelay int

	mu       sync.Mutex
	sessions map[string]*record
	now      func() time.Time
}

// New returns an empty server.
func New() *Server {
	return &Server{
		sessions: make(map[string]*record),
		now:      time.Now,
	}
}

// Handler returns the HTTP router for the session API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recovery)

	r.Route(BasePath, func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Put("/{id}", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Delete("/{id}", s.handleDelete)
		r.Post("/{id}/nearmap", s.handleStartNearmap)
		r.Get("/{id}/nearmap", s.handleLogs(session.StageNearmap))
		r.Post("/{id}/configure", s.handleConfigure)
		r.Put("/{id}/sites", s.handleImportSites)
		r.Get("/{id}/sites", s.handleGetSites)
		r.Patch("/{id}/sites", s.handleUpdateSites)
		r.Post("/{id}/validate", s.handleValidate)
		r.Get("/{id}/validate", s.handleLogs(session.StageValidation))
		r.Post("/{id}/wavescape", s.handleWaveScape)
		r.Get("/{id}/wavescape", s.handleLogs(session.StageWaveScape))
		r.Post("/{id}/stop", s.handleStop)
	})
	return r
}

// Seed stores a session as if it had been created and moved to the given
// states. It replaces any existing session with the same name.
func (s *Server) Seed(id string, states ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.newRecord(id, "seed@wavescape.local")
	rec.States = session.NewStateSet(states...)
	s.sessions[id] = rec
}

// FailNext makes the next completion of stage for the session a failure.
func (s *Server) FailNext(id string, stage session.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sessions[id]; ok {
		rec.failNext[stage] = true
	}
}

// States returns the session's current states, or false if it is unknown.
func (s *Server) States(id string) (session.StateSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	out := make(session.StateSet, len(rec.States))
	for t := range rec.States {
		out[t] = struct{}{}
	}
	return out, true
}

// Advance finishes every running stage of the session, recording success
// unless FailNext was called for it. It returns the stages it finished.
func (s *Server) Advance(id string) ([]session.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown session %q", id)
	}

	var done []session.Stage
	for _, stage := range session.Stages {
		if !rec.States.Has(stage.RunningToken()) {
			continue
		}
		outcome, message := session.OutcomeSuccess, ""
		if rec.failNext[stage] {
			outcome, message = session.OutcomeFailure, stage.Title()+" task failed"
			delete(rec.failNext, stage)
		}
		s.finish(rec, stage, outcome, message)
		done = append(done, stage)
	}
	return done, nil
}

// AdvanceAll calls Advance for every session and returns how many stages
// it finished.
func (s *Server) AdvanceAll() int {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	n := 0
	for _, id := range ids {
		done, err := s.Advance(id)
		if err == nil {
			n += len(done)
		}
	}
	return n
}

func (s *Server) finish(rec *record, stage session.Stage, outcome session.Outcome, message string) {
	rec.remove(stage.RunningToken())
	rec.add(stage.CompletedToken())
	if t := *rec.task(stage); t != nil {
		t.ExecutionInfo = executionInfo(outcome, message)
		t.stdout = fmt.Sprintf("%s task %s finished: %s\n", stage.Title(), t.TaskID, outcome)
		if message != "" {
			t.stderr = message + "\n"
		}
	}
	rec.Updated = s.stamp()
}

func executionInfo(outcome session.Outcome, message string) string {
	doc := map[string]any{
		"result":       map[string]string{"_value_": string(outcome)},
		"failure_info": map[string]string{"message": message},
	}
	data, _ := json.Marshal(doc)
	return string(data)
}

func (s *Server) newRecord(id, owner string) *record {
	now := s.stamp()
	return &record{
		Name:           id,
		Version:        1,
		IterationNames: []string{"Initial"},
		CreatedBy:      owner,
		Created:        now,
		Updated:        now,
		States:         session.NewStateSet(session.StateIdle),
		Storage: &session.StorageLinks{
			BlobContainer:       "storageexplorer://blob/" + id,
			Table:               "storageexplorer://table/" + id,
			DirectLinkContainer: "https://mock.blob.local/" + id,
			DirectLinkTable:     "https://mock.table.local/" + id,
		},
		pendingWarmup: s.WarmupDelay,
		failNext:      make(map[session.Stage]bool),
	}
}

func (s *Server) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func newTask() *taskRecord {
	return &taskRecord{TaskID: uuid.NewString(), OrchestratorID: uuid.NewString()}
}

// lookup resolves the {id} parameter. It writes 410 and returns nil when the
// session does not exist. The caller must hold s.mu.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *record {
	id := sessionID(r)
	rec, ok := s.sessions[id]
	if !ok {
		writeText(w, http.StatusGone, fmt.Sprintf("session %q does not exist", id))
		return nil
	}
	return rec
}

func (s *Server) sortedRecords() []*record {
	out := make([]*record, 0, len(s.sessions))
	for _, rec := range s.sessions {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sessionID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
