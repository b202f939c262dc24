package dispatch

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nellyag1/wavescape-portal222/internal/session"
)

func TestDefaultStages(t *testing.T) {
	data, err := json.Marshal(DefaultStages())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"calc_los": true, "create_graph": true, "cov_geom": true, "cov_pl": true,
		"cov_Rx_dBm": true, "site_selection": false, "cov_area": false,
		"plot_results": false, "plot_los": false, "las_to_potree": false,
		"create_netcdf": true, "bldg_boundary": true
	}`, string(data))
}

func TestIterationStages(t *testing.T) {
	want := DefaultStages()
	want.CalcLOS = false
	want.CovGeom = false
	if diff := cmp.Diff(want, IterationStages()); diff != "" {
		t.Errorf("IterationStages() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultConfiguration_Wire(t *testing.T) {
	data, err := json.Marshal(DefaultConfiguration())
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, float64(26910), doc["data"]["epsg"])
	assert.Equal(t, 28e9, doc["data"]["freq_Hz"])
	assert.Equal(t, "Friis", doc["data"]["prop_model"])
	assert.Equal(t, 0.995, doc["data"]["los_perc_clear"])
	assert.Equal(t, "given", doc["site_spec"]["beam_width_deg"])
	assert.Equal(t, -79.2, doc["site_spec"]["rx_cutoff_dBm"])
	assert.Equal(t, map[string]any{"1": 30.5, "2": 25.0}, doc["site_spec"]["pivot_tx_dBm"])
	assert.Equal(t, []any{[]any{}}, doc["site_spec"]["initial_sites"])
	assert.Equal(t, "Pivot_Medium", doc["site_spec"]["pivot_ant_pattern"])
	assert.NoError(t, DefaultConfiguration().Validate())
}

func TestLoadConfiguration(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml overrides only what it names", func(t *testing.T) {
		path := filepath.Join(dir, "config.yaml")
		content := "data:\n  radius_m: 450\n  prop_model: 3GPP\nsite_spec:\n  hop_m:\n    \"2\": 175\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := LoadConfiguration(path)
		require.NoError(t, err)
		assert.Equal(t, 450.0, cfg.Data.RadiusM)
		assert.Equal(t, PropModel3GPP, cfg.Data.PropModel)
		assert.Equal(t, 2.0, cfg.Data.UEHeightM)
		assert.Equal(t, map[string]float64{"1": 350, "2": 175}, cfg.SiteSpec.HopM)
	})

	t.Run("json is accepted", func(t *testing.T) {
		path := filepath.Join(dir, "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"site_spec": {"rx_cutoff_dBm": -85.5}}`), 0644))

		cfg, err := LoadConfiguration(path)
		require.NoError(t, err)
		assert.Equal(t, -85.5, cfg.SiteSpec.RxCutoffDBm)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("data:\n  prop_model: Hata\n"), 0644))

		_, err := LoadConfiguration(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "propagation model")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfiguration(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestParseConfiguration(t *testing.T) {
	cfg, err := ParseConfiguration("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfiguration(), cfg)

	cfg, err = ParseConfiguration(`{"data": {"los_perc_clear": 0.9}}`)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Data.LOSPercClear)
	assert.Equal(t, 300.0, cfg.Data.RadiusM)

	_, err = ParseConfiguration("{oops")
	assert.True(t, errors.Is(err, session.ErrParse))
}

func TestConfiguration_Apply(t *testing.T) {
	height := 3.5
	clearance := 0.9
	model := PropModel3GPP
	bad := "Okumura"

	t.Run("first configuration may set everything", func(t *testing.T) {
		cfg := DefaultConfiguration()
		require.NoError(t, cfg.Apply(Overrides{PredictionHeightM: &height, MinLinkClearance: &clearance}, false))
		assert.Equal(t, 3.5, cfg.Data.UEHeightM)
		assert.Equal(t, 0.9, cfg.Data.LOSPercClear)
	})

	t.Run("reconfiguration keeps geometry fixed", func(t *testing.T) {
		cfg := DefaultConfiguration()
		err := cfg.Apply(Overrides{PredictionHeightM: &height}, true)
		assert.True(t, errors.Is(err, ErrNotReconfigurable))

		require.NoError(t, cfg.Apply(Overrides{PropModel: &model}, true))
		assert.Equal(t, PropModel3GPP, cfg.Data.PropModel)
	})

	t.Run("unknown propagation model", func(t *testing.T) {
		cfg := DefaultConfiguration()
		assert.Error(t, cfg.Apply(Overrides{PropModel: &bad}, false))
	})
}

func TestNewSitesPayload(t *testing.T) {
	p, err := NewSitesPayload([]byte("id\n1\n"), []byte(`{"type":"FeatureCollection"}`), true)
	require.NoError(t, err)
	assert.Equal(t, "aWQKMQo=", p.Raw)
	assert.True(t, p.Overwrite)

	_, err = NewSitesPayload(nil, []byte(`{}`), false)
	assert.Error(t, err)
	_, err = NewSitesPayload([]byte("id\n"), []byte(`not json`), false)
	assert.Error(t, err)
}

func TestNewSitesUpdate(t *testing.T) {
	u, err := NewSitesUpdate([]session.SiteRow{
		{"RowKey": "abc", "enabled": true, "azimuth": 90.0},
		{"src_indx": "7", "enabled": false},
		{"RowKey": "  ", "enabled": true},
	})
	require.NoError(t, err)
	assert.Len(t, u.Rows.Updated, 1)
	assert.Len(t, u.Rows.New, 2)

	_, err = NewSitesUpdate([]session.SiteRow{{"RowKey": "abc"}})
	assert.ErrorContains(t, err, "enabled")

	_, err = NewSitesUpdate(nil)
	assert.ErrorContains(t, err, "no site rows")
}

func TestLoadSiteRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.yaml")
	content := "- RowKey: abc\n  enabled: false\n- src_indx: \"4\"\n  azimuth: 120\n  enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rows, err := LoadSiteRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "abc", rows[0].Key())
	enabled, ok := rows[1].Enabled()
	assert.True(t, ok)
	assert.True(t, enabled)
}
