package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nellyag1/wavescape-portal222/internal/exitcode"
	"github.com/nellyag1/wavescape-portal222/internal/logging"
	"github.com/nellyag1/wavescape-portal222/internal/mockapi"
	"github.com/nellyag1/wavescape-portal222/internal/session"
)

const sitesGeoJSON = `{"geoJSON":{"type":"FeatureCollection","features":[
  {"id":"1","geometry":{"type":"Point","coordinates":[-122.3,47.6]},
   "properties":{"height_m":10,"azimuth":[0,180],"ant_bw":[65,65],"downtilt_deg":[2,2],"peak_tx_dbm":[30,30]}}]}}`

// lockedBuffer is shared by the command output and the logger, which write
// from different goroutines during watch.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type cliHarness struct {
	api *mockapi.Server
	url string
	dir string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	api := mockapi.New()
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return &cliHarness{api: api, url: ts.URL + mockapi.BasePath, dir: t.TempDir()}
}

// run executes one command line against the mock API with no config files.
func (h *cliHarness) run(t *testing.T, stdin string, args ...string) (int, string) {
	t.Helper()
	out := &lockedBuffer{}
	logging.SetOutput(out, out)
	t.Cleanup(func() { logging.SetOutput(nil, nil) })

	a := newApp(strings.NewReader(stdin), out)
	a.globalPath, a.projectPath = "", ""
	code := execute(context.Background(), a, append([]string{"--api-url", h.url}, args...))
	return code, out.String()
}

func (h *cliHarness) file(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (h *cliHarness) states(t *testing.T, id string) session.StateSet {
	t.Helper()
	states, ok := h.api.States(id)
	require.True(t, ok, "session %s exists", id)
	return states
}

func TestRun_ListHidesDefunctSessions(t *testing.T) {
	h := newCLIHarness(t)
	h.api.Seed("harbor", session.StateReadyToRun)
	h.api.Seed("abandoned", session.StateIdle)

	code, out := h.run(t, "", "list")
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "harbor")
	assert.NotContains(t, out, "abandoned")

	code, out = h.run(t, "", "list", "--all")
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "abandoned")
}

func TestRun_ListFilter(t *testing.T) {
	h := newCLIHarness(t)
	h.api.Seed("harbor", session.StateReadyToRun)
	h.api.Seed("delta", session.StateReadyToRun)

	code, out := h.run(t, "", "list", "--filter", "HAR")
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "harbor")
	assert.NotContains(t, out, "delta")

	code, out = h.run(t, "", "list", "--filter", "SEED@WAVESCAPE")
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "harbor")
	assert.Contains(t, out, "delta")

	code, out = h.run(t, "", "list", "--filter", "nothing-matches")
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "No sessions.")
}

func TestRun_SitesNeedsARun(t *testing.T) {
	h := newCLIHarness(t)
	h.api.Seed("harbor", session.StateReadyToRun)

	code, out := h.run(t, "", "sites", "harbor")
	assert.Equal(t, exitcode.Unavailable, code)
	assert.Contains(t, out, "validated or WaveScape has run")
}

func TestRun_Show(t *testing.T) {
	h := newCLIHarness(t)
	h.api.Seed("harbor", session.StateConfigurationCompleted, session.StateReadyToRun)

	code, out := h.run(t, "", "show", "harbor")
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "harbor")
	assert.Contains(t, out, "Reconfigure")

	code, out = h.run(t, "", "show", "missing")
	assert.Equal(t, exitcode.Error, code)
	assert.Contains(t, out, "does not exist")
}

func TestRun_InvalidConfig(t *testing.T) {
	h := newCLIHarness(t)
	code, out := h.run(t, "", "list", "--api-url", "ftp://example.com")
	assert.Equal(t, exitcode.Error, code)
	assert.Contains(t, out, "http")
}

func TestRun_Create(t *testing.T) {
	h := newCLIHarness(t)
	h.api.WarmupDelay = 1
	aoi := h.file(t, "aoi.gpkg", "geopackage")

	code, out := h.run(t, "", "create", "harbor", "--aoi", aoi,
		"--owner", "op@example.com", "--warmup-budget", "5s", "--warmup-interval", "10ms")
	require.Equal(t, exitcode.Success, code, out)
	assert.Contains(t, out, "Session harbor created")
	assert.Contains(t, out, "2 attempt(s)")
	assert.True(t, h.states(t, "harbor").Equal(session.StateNearmapRunning))
}

func TestRun_CreateWithSitesAndConfiguration(t *testing.T) {
	h := newCLIHarness(t)
	aoi := h.file(t, "aoi.gpkg", "geopackage")
	csv := h.file(t, "sites.csv", "id,lat,lon\n1,47.6,-122.3\n")
	geo := h.file(t, "sites.geojson", sitesGeoJSON)
	conf := h.file(t, "config.yaml", "data:\n  radius_m: 250\n")

	code, out := h.run(t, "", "create", "harbor", "--aoi", aoi, "--owner", "op@example.com",
		"--sites-csv", csv, "--sites-geojson", geo, "--configuration", conf)
	require.Equal(t, exitcode.Success, code, out)
	assert.True(t, h.states(t, "harbor").Has(session.StateConfigurationCompleted))
}

func TestRun_CreateArguments(t *testing.T) {
	h := newCLIHarness(t)
	aoi := h.file(t, "aoi.gpkg", "geopackage")

	code, out := h.run(t, "", "create", "harbor", "--aoi", aoi)
	assert.Equal(t, exitcode.Error, code)
	assert.Contains(t, out, "--owner")

	code, _ = h.run(t, "", "create", "harbor", "--aoi", aoi, "--owner", "op", "--sites-csv", aoi)
	assert.Equal(t, exitcode.Error, code)

	h.api.Seed("taken", session.StateReadyToRun)
	code, _ = h.run(t, "", "create", "taken", "--aoi", aoi, "--owner", "op")
	assert.Equal(t, exitcode.NameConflict, code)
}

func TestRun_CreateNotReady(t *testing.T) {
	h := newCLIHarness(t)
	h.api.WarmupDelay = 100
	aoi := h.file(t, "aoi.gpkg", "geopackage")

	code, _ := h.run(t, "", "create", "harbor", "--aoi", aoi, "--owner", "op",
		"--warmup-budget", "30ms", "--warmup-interval", "10ms")
	assert.Equal(t, exitcode.NotReady, code)
	assert.True(t, h.states(t, "harbor").Equal(session.StateIdle))
}

func TestRun_ActionsAreGated(t *testing.T) {
	h := newCLIHarness(t)
	h.api.Seed("harbor", session.StateIdle)

	for _, args := range [][]string{
		{"validate", "harbor"},
		{"run", "harbor"},
		{"iterate", "harbor", "--name", "second"},
		{"logs", "harbor", "nearmap"},
	} {
		code, out := h.run(t, "", args...)
		assert.Equal(t, exitcode.Unavailable, code, "%v: %s", args, out)
	}
	assert.True(t, h.states(t, "harbor").Equal(session.StateIdle))
}

func TestRun_ConfigureImportValidate(t *testing.T) {
	h := newCLIHarness(t)
	h.api.Seed("harbor", session.StateNearmapCompleted)

	code, out := h.run(t, "", "configure", "harbor", "--min-rssi", "-80", "--prop-model", "3GPP")
	require.Equal(t, exitcode.Success, code, out)
	assert.True(t, h.states(t, "harbor").Equal(session.StateReadyToRun))

	code, out = h.run(t, "", "validate", "harbor")
	assert.Equal(t, exitcode.Error, code, "backend rejects validation without sites")
	assert.Contains(t, out, "sites")

	csv := h.file(t, "sites.csv", "id,lat,lon\n1,47.6,-122.3\n")
	geo := h.file(t, "sites.geojson", sitesGeoJSON)
	code, out = h.run(t, "", "import-sites", "harbor", "--csv", csv, "--geojson", geo)
	require.Equal(t, exitcode.Success, code, out)

	code, out = h.run(t, "", "validate", "harbor")
	require.Equal(t, exitcode.Success, code, out)
	assert.True(t, h.states(t, "harbor").Has(session.StateValidationRunning))

	_, err := h.api.Advance("harbor")
	require.NoError(t, err)

	code, out = h.run(t, "", "sites", "harbor")
	require.Equal(t, exitcode.Success, code, out)
	assert.Contains(t, out, "ROW KEY")

	code, out = h.run(t, "", "logs", "harbor", "validation")
	require.Equal(t, exitcode.Success, code, out)
	assert.Contains(t, out, "Validation logs")
}

func TestRun_ReconfigureKeepsGeometry(t *testing.T) {
	h := newCLIHarness(t)
	h.api.Seed("harbor", session.StateConfigurationCompleted, session.StateReadyToRun)

	code, out := h.run(t, "", "configure", "harbor", "--prediction-height", "3")
	assert.Equal(t, exitcode.Error, code)
	assert.Contains(t, out, "cannot be changed")

	code, out = h.run(t, "", "configure", "harbor", "--file", h.file(t, "c.yaml", "data: {}\n"))
	assert.Equal(t, exitcode.Error, code)
	assert.Contains(t, out, "cannot be changed")

	code, out = h.run(t, "", "configure", "harbor", "--min-link-clearance", "0.9")
	assert.Equal(t, exitcode.Success, code, out)
}

func TestRun_UpdateSites(t *testing.T) {
	h := newCLIHarness(t)
	h.api.Seed("harbor", session.StateReadyToRun)
	rows := h.file(t, "rows.yaml", "- enabled: true\n  src_indx: 9\n")

	code, _ := h.run(t, "", "update-sites", "harbor", "--rows", rows)
	assert.Equal(t, exitcode.Unavailable, code, "sites are editable after validation")
}

func TestRun_StopAsksForConfirmation(t *testing.T) {
	h := newCLIHarness(t)
	h.api.Seed("harbor", session.StateReadyToRun, session.StateValidationRunning)

	code, out := h.run(t, "n\n", "stop", "harbor")
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "[y/N]")
	assert.True(t, h.states(t, "harbor").Has(session.StateValidationRunning))

	code, out = h.run(t, "y\n", "stop", "harbor")
	require.Equal(t, exitcode.Success, code, out)
	assert.True(t, h.states(t, "harbor").Equal(session.StateStopped))

	code, _ = h.run(t, "", "stop", "harbor", "--yes")
	assert.Equal(t, exitcode.Unavailable, code, "already stopped")
}

func TestRun_Watch(t *testing.T) {
	h := newCLIHarness(t)
	h.api.Seed("harbor", session.StateReadyToRun)
	h.api.Seed("delta", session.StateReadyToRun)

	code, out := h.run(t, "\n", "watch", "harbor", "delta", "--for", "200ms", "--refresh-interval", "1h")
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "Watching 2 session(s)")
	assert.Contains(t, out, "harbor")
	assert.Contains(t, out, "delta")
}

func TestRun_WatchReportsFetchErrors(t *testing.T) {
	h := newCLIHarness(t)

	code, out := h.run(t, "", "watch", "missing", "--for", "100ms")
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "refresh missing")
}

func TestRun_WatchReturnsWhileInputStaysOpen(t *testing.T) {
	h := newCLIHarness(t)
	h.api.Seed("harbor", session.StateReadyToRun)

	// the reader goroutine stays blocked until the input is closed
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	out := &lockedBuffer{}
	logging.SetOutput(out, out)
	t.Cleanup(func() { logging.SetOutput(nil, nil) })
	a := newApp(pr, out)
	a.globalPath, a.projectPath = "", ""

	done := make(chan int, 1)
	go func() {
		done <- execute(context.Background(), a, []string{"--api-url", h.url, "watch", "harbor", "--for", "50ms"})
	}()
	select {
	case code := <-done:
		assert.Equal(t, exitcode.Success, code)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return while its input was still open")
	}
}

func TestServeMock(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	a := newApp(strings.NewReader(""), &lockedBuffer{})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.serveMock(ctx, ln, mockServerFlags{advanceEvery: 10 * time.Millisecond})
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + mockapi.BasePath + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("mock server did not shut down")
	}
}
