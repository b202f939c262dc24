package mockapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nellyag1/wavescape-portal222/internal/session"
)

const (
	aoiBlobPath      = "nearmap/aoi.gpkg"
	rawSitesBlobPath = "setup/raw_sites.csv"
	sitesBlobPath    = "setup/sites.geojson"

	msgInvalidBody        = "body does not contain valid JSON data; please refer to API documentation"
	msgNotConfigured      = "the session has not yet been configured"
	msgNoSites            = "sites have not been uploaded to Azure Blob container"
	msgNoSitesTable       = "sites table for this session does not exist; run validation or WaveScape first"
	msgNoEntityCollection = `body missing both lists of entities, "updated" and "new"; please refer to API documentation`
)

func missingParam(name string) string {
	return fmt.Sprintf("body does not contain %q; please refer to API documentation", name)
}

func invalidBase64(name string) string {
	return fmt.Sprintf("%q is not a valid Base64 encoded string; please refer to API documentation", name)
}

func blobExists(path string) string {
	return fmt.Sprintf("Azure blob %q already exists for this session", path)
}

func alreadyRunning(stage session.Stage, rec *record) string {
	id := ""
	if t := *rec.task(stage); t != nil {
		id = t.TaskID
	}
	return fmt.Sprintf("Attempt to start %s when already running for session %q, task id = %s",
		strings.ToUpper(string(stage)), rec.Name, id)
}

func initiated(stage session.Stage, rec *record) string {
	return fmt.Sprintf("%s kicked-off for session %q, task id = %s",
		strings.ToUpper(string(stage)), rec.Name, (*rec.task(stage)).TaskID)
}

// decodeBody reads a JSON object body. It writes 400 and returns false on
// malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sortedRecords())
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.UserID) == "" {
		writeJSON(w, http.StatusBadRequest, missingParam("userId"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := sessionID(r)
	if _, exists := s.sessions[id]; exists {
		writeJSON(w, http.StatusBadRequest, fmt.Sprintf("Azure blob container %q already exists", id))
		return
	}
	s.sessions[id] = s.newRecord(id, body.UserID)
	writeJSON(w, http.StatusCreated, map[string]string{"url": BasePath + "/" + id})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.lookup(w, r); rec != nil {
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.lookup(w, r); rec != nil {
		delete(s.sessions, rec.Name)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleStartNearmap(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	if rec.pendingWarmup > 0 {
		rec.pendingWarmup--
		writeText(w, http.StatusGone, fmt.Sprintf("session %q is still being provisioned", rec.Name))
		return
	}

	var body struct {
		AOI string `json:"aoi"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.AOI) == "" {
		writeJSON(w, http.StatusBadRequest, missingParam("aoi"))
		return
	}
	if _, err := base64.StdEncoding.DecodeString(body.AOI); err != nil {
		writeJSON(w, http.StatusBadRequest, invalidBase64("aoi"))
		return
	}
	if rec.hasAOI {
		writeJSON(w, http.StatusBadRequest, blobExists(aoiBlobPath))
		return
	}
	if rec.States.Has(session.StateNearmapRunning) {
		writeText(w, http.StatusBadRequest, alreadyRunning(session.StageNearmap, rec))
		return
	}

	rec.hasAOI = true
	rec.Nearmap = newTask()
	rec.remove(session.StateIdle)
	rec.add(session.StateNearmapRunning)
	rec.Updated = s.stamp()
	writeText(w, http.StatusAccepted, initiated(session.StageNearmap, rec))
}

func (s *Server) handleLogs(stage session.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		rec := s.lookup(w, r)
		if rec == nil {
			return
		}
		logs := map[string]string{"std_out": "", "std_err": ""}
		if t := *rec.task(stage); t != nil {
			logs["std_out"], logs["std_err"] = t.stdout, t.stderr
		}
		writeJSON(w, http.StatusOK, logs)
	}
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if !decodeBody(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	rec.Configuration = string(body)
	rec.add(session.StateConfigurationCompleted)
	rec.remove(session.StateValidationCompleted, session.StateWaveScapeCompleted)
	if rec.States.Equal(session.StateNearmapCompleted, session.StateConfigurationCompleted) {
		rec.States = session.NewStateSet(session.StateReadyToRun)
	}
	rec.Updated = s.stamp()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportSites(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Raw       string          `json:"raw"`
		Processed json.RawMessage `json:"processed"`
		Overwrite bool            `json:"overwrite"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Raw) == "" {
		writeJSON(w, http.StatusBadRequest, missingParam("raw"))
		return
	}
	raw, err := base64.StdEncoding.DecodeString(body.Raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, invalidBase64("raw"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	if !body.Overwrite {
		if rec.rawSites != nil {
			writeJSON(w, http.StatusBadRequest, blobExists(rawSitesBlobPath))
			return
		}
		if rec.processed != nil {
			writeJSON(w, http.StatusBadRequest, blobExists(sitesBlobPath))
			return
		}
	}
	rec.rawSites = raw
	rec.processed = body.Processed
	rec.Updated = s.stamp()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSites(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	if rec.table == nil {
		writeJSON(w, http.StatusBadRequest, msgNoSitesTable)
		return
	}
	writeJSON(w, http.StatusOK, rec.table)
}

func (s *Server) handleUpdateSites(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rows *struct {
			Updated []session.SiteRow `json:"updated"`
			New     []session.SiteRow `json:"new"`
		} `json:"rows"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Rows == nil {
		writeJSON(w, http.StatusBadRequest, missingParam("rows"))
		return
	}
	if len(body.Rows.Updated) == 0 && len(body.Rows.New) == 0 {
		writeJSON(w, http.StatusBadRequest, msgNoEntityCollection)
		return
	}
	for _, row := range body.Rows.Updated {
		if msg := checkRow(row, "updated", true); msg != "" {
			writeJSON(w, http.StatusBadRequest, msg)
			return
		}
	}
	for _, row := range body.Rows.New {
		if msg := checkRow(row, "new", false); msg != "" {
			writeJSON(w, http.StatusBadRequest, msg)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	if rec.table == nil {
		writeJSON(w, http.StatusBadRequest, msgNoSitesTable)
		return
	}
	rec.table = upsert(rec.table, body.Rows.Updated)
	rec.table = upsert(rec.table, body.Rows.New)
	rec.Updated = s.stamp()
	w.WriteHeader(http.StatusNoContent)
}

func checkRow(row session.SiteRow, kind string, keyed bool) string {
	switch {
	case keyed && row.Key() == "":
		return fmt.Sprintf("an %s entity is missing the required \"RowKey\" property; please refer to API documentation", kind)
	case !keyed && row.Key() != "":
		return fmt.Sprintf("a %s entity cannot specify the \"RowKey\" property; please refer to API documentation", kind)
	}
	if _, ok := row["enabled"]; !ok || row["enabled"] == nil {
		return fmt.Sprintf("an %s entity is missing the required \"enabled\" property; please refer to API documentation", kind)
	}
	return ""
}

// prepareRun checks the shared preconditions of validation and WaveScape
// and builds the sites table on first use. It writes the error response and
// returns false when the stage cannot start.
func (s *Server) prepareRun(w http.ResponseWriter, rec *record, stage session.Stage) bool {
	if strings.TrimSpace(rec.Configuration) == "" {
		writeJSON(w, http.StatusBadRequest, msgNotConfigured)
		return false
	}
	if rec.processed == nil {
		writeJSON(w, http.StatusBadRequest, msgNoSites)
		return false
	}
	if rec.States.Has(stage.RunningToken()) {
		writeText(w, http.StatusBadRequest, alreadyRunning(stage, rec))
		return false
	}
	if rec.table == nil {
		rows, err := extractSites(rec.processed)
		if err != nil {
			writeText(w, http.StatusInternalServerError, err.Error())
			return false
		}
		rec.table = upsert([]session.SiteRow{}, rows)
	}
	return true
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil || !s.prepareRun(w, rec, session.StageValidation) {
		return
	}
	rec.Validation = newTask()
	rec.remove(session.StateStopped, session.StateValidationCompleted)
	rec.add(session.StateValidationRunning)
	rec.Updated = s.stamp()
	writeText(w, http.StatusAccepted, initiated(session.StageValidation, rec))
}

func (s *Server) handleWaveScape(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IterationName string          `json:"iteration_name"`
		Stages        json.RawMessage `json:"stages"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.IterationName) == "" {
		writeJSON(w, http.StatusBadRequest, missingParam("iteration_name"))
		return
	}
	if len(body.Stages) == 0 || string(body.Stages) == "null" {
		writeJSON(w, http.StatusBadRequest, missingParam("stages"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	if n := len(rec.IterationNames); n == 0 || rec.IterationNames[n-1] != body.IterationName {
		rec.IterationNames = append(rec.IterationNames, body.IterationName)
	}
	if !s.prepareRun(w, rec, session.StageWaveScape) {
		return
	}
	rec.WaveScape = newTask()
	rec.remove(session.StateStopped, session.StateWaveScapeCompleted)
	rec.add(session.StateReadyToRun, session.StateWaveScapeRunning)
	rec.Updated = s.stamp()
	writeText(w, http.StatusAccepted, initiated(session.StageWaveScape, rec))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	for _, stage := range session.Stages {
		if t := *rec.task(stage); t != nil && rec.States.Has(stage.RunningToken()) {
			t.ExecutionInfo = executionInfo(session.OutcomeFailure, StoppedMessage)
			t.stderr = StoppedMessage + "\n"
		}
	}
	rec.States = session.NewStateSet(session.StateStopped)
	rec.Updated = s.stamp()
	w.WriteHeader(http.StatusNoContent)
}
