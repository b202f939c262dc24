package dispatch

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nellyag1/wavescape-portal222/internal/session"
)

// InitialIteration is the iteration name of the first WaveScape run.
const InitialIteration = "Initial"

// Stages selects which WaveScape pipeline steps a run executes.
type Stages struct {
	CalcLOS       bool `json:"calc_los" yaml:"calc_los"`
	CreateGraph   bool `json:"create_graph" yaml:"create_graph"`
	CovGeom       bool `json:"cov_geom" yaml:"cov_geom"`
	CovPL         bool `json:"cov_pl" yaml:"cov_pl"`
	CovRxDBm      bool `json:"cov_Rx_dBm" yaml:"cov_Rx_dBm"`
	SiteSelection bool `json:"site_selection" yaml:"site_selection"`
	CovArea       bool `json:"cov_area" yaml:"cov_area"`
	PlotResults   bool `json:"plot_results" yaml:"plot_results"`
	PlotLOS       bool `json:"plot_los" yaml:"plot_los"`
	LasToPotree   bool `json:"las_to_potree" yaml:"las_to_potree"`
	CreateNetCDF  bool `json:"create_netcdf" yaml:"create_netcdf"`
	BldgBoundary  bool `json:"bldg_boundary" yaml:"bldg_boundary"`
}

// DefaultStages returns the step selection of an initial run.
func DefaultStages() Stages {
	return Stages{
		CalcLOS:      true,
		CreateGraph:  true,
		CovGeom:      true,
		CovPL:        true,
		CovRxDBm:     true,
		CreateNetCDF: true,
		BldgBoundary: true,
	}
}

// IterationStages returns the step selection of a named iteration. Line of
// sight and coverage geometry are reused from the initial run.
func IterationStages() Stages {
	s := DefaultStages()
	s.CalcLOS = false
	s.CovGeom = false
	return s
}

// RunRequest is the body of a WaveScape start.
type RunRequest struct {
	IterationName string `json:"iteration_name"`
	Stages        Stages `json:"stages"`
}

// DataConfig is the "data" section of a session configuration.
type DataConfig struct {
	EPSG           int     `json:"epsg" yaml:"epsg"`
	Scale          int     `json:"scale" yaml:"scale"`
	FreqHz         float64 `json:"freq_Hz" yaml:"freq_Hz"`
	UEHeightM      float64 `json:"ue_height_m" yaml:"ue_height_m"`
	RadiusM        float64 `json:"radius_m" yaml:"radius_m"`
	StartFile      int     `json:"start_file" yaml:"start_file"`
	EndFile        int     `json:"end_file" yaml:"end_file"`
	RunMissingSite bool    `json:"run_missing_site" yaml:"run_missing_site"`
	ReturnFresnel  bool    `json:"return_fresnel" yaml:"return_fresnel"`
	LOSPercClear   float64 `json:"los_perc_clear" yaml:"los_perc_clear"`
	PropModel      string  `json:"prop_model" yaml:"prop_model"`
}

// SiteSpec is the "site_spec" section of a session configuration.
type SiteSpec struct {
	PivotSites         bool               `json:"pivot_sites" yaml:"pivot_sites"`
	NumSites           int                `json:"num_sites" yaml:"num_sites"`
	BeamWidthDeg       string             `json:"beam_width_deg" yaml:"beam_width_deg"`
	SectorCount        int                `json:"sector_count" yaml:"sector_count"`
	GNBTxDBm           float64            `json:"gnb_tx_dBm" yaml:"gnb_tx_dBm"`
	Greenfield         bool               `json:"greenfield" yaml:"greenfield"`
	GNBAntennaBW       []float64          `json:"gNB_Antenna_BW" yaml:"gNB_Antenna_BW"`
	GNBAzimuth         []float64          `json:"gNB_Azimuth" yaml:"gNB_Azimuth"`
	RxCutoffDBm        float64            `json:"rx_cutoff_dBm" yaml:"rx_cutoff_dBm"`
	PivotTxDBm         map[string]float64 `json:"pivot_tx_dBm" yaml:"pivot_tx_dBm"`
	HopM               map[string]float64 `json:"hop_m" yaml:"hop_m"`
	AngleSweep         map[string]float64 `json:"angle_sweep" yaml:"angle_sweep"`
	PivotStepSize      int                `json:"pivot_step_size" yaml:"pivot_step_size"`
	PivotBeamWidthDeg  []float64          `json:"pivot_beam_width_deg" yaml:"pivot_beam_width_deg"`
	GNBAntPattern      string             `json:"gNB_ant_pattern" yaml:"gNB_ant_pattern"`
	PivotAntPattern    string             `json:"pivot_ant_pattern" yaml:"pivot_ant_pattern"`
	PivotDowntiltDeg   float64            `json:"pivot_downtilt_deg" yaml:"pivot_downtilt_deg"`
	InitialSites       [][]float64        `json:"initial_sites" yaml:"initial_sites"`
	EchoCost           float64            `json:"echo_cost" yaml:"echo_cost"`
	OneSectorCost      float64            `json:"one_sector_cost" yaml:"one_sector_cost"`
	TwoSectorCost      float64            `json:"two_sector_cost" yaml:"two_sector_cost"`
	GNBCost            float64            `json:"gNB_cost" yaml:"gNB_cost"`
}

// Configuration is the document posted to <id>/configure.
type Configuration struct {
	Data     DataConfig `json:"data" yaml:"data"`
	SiteSpec SiteSpec   `json:"site_spec" yaml:"site_spec"`
}

// DefaultConfiguration returns the built-in analysis parameters.
func DefaultConfiguration() Configuration {
	return Configuration{
		Data: DataConfig{
			EPSG:         26910,
			Scale:        5,
			FreqHz:       28e9,
			UEHeightM:    2,
			RadiusM:      300,
			StartFile:    0,
			EndFile:      99,
			LOSPercClear: 0.995,
			PropModel:    PropModelFriis,
		},
		SiteSpec: SiteSpec{
			PivotSites:        true,
			NumSites:          2,
			BeamWidthDeg:      "given",
			SectorCount:       2,
			GNBTxDBm:          56.0,
			Greenfield:        true,
			GNBAntennaBW:      []float64{120, 120, 120},
			GNBAzimuth:        []float64{0, 120, 240},
			RxCutoffDBm:       -79.2,
			PivotTxDBm:        map[string]float64{"1": 30.5, "2": 25.0},
			HopM:              map[string]float64{"1": 350, "2": 150},
			AngleSweep:        map[string]float64{"e5s": 75, "noe5s": 45},
			PivotStepSize:     5,
			PivotBeamWidthDeg: []float64{75.0, 75.0},
			GNBAntPattern:     "gNB_120",
			PivotAntPattern:   "Pivot_Medium",
			PivotDowntiltDeg:  0.0,
			InitialSites:      [][]float64{{}},
			EchoCost:          200,
			OneSectorCost:     6000,
			TwoSectorCost:     7000,
			GNBCost:           75000,
		},
	}
}

// Propagation models accepted by the backend.
const (
	PropModel3GPP  = "3GPP"
	PropModelFriis = "Friis"
)

// LoadConfiguration reads a YAML or JSON configuration file on top of the
// defaults. Keys absent from the file keep their default value.
func LoadConfiguration(path string) (Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, fmt.Errorf("read configuration: %w", err)
	}
	cfg := DefaultConfiguration()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Configuration{}, fmt.Errorf("parse configuration %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, fmt.Errorf("configuration %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfiguration decodes the configuration a session reports, which the
// backend returns as a JSON string. An empty string yields the defaults.
func ParseConfiguration(raw string) (Configuration, error) {
	cfg := DefaultConfiguration()
	if strings.TrimSpace(raw) == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return Configuration{}, fmt.Errorf("session configuration: %w: %w", session.ErrParse, err)
	}
	return cfg, nil
}

// Validate checks the operator-editable parameters.
func (c Configuration) Validate() error {
	var errs []error
	if c.Data.UEHeightM <= 0 {
		errs = append(errs, errors.New("prediction height must be positive"))
	}
	if c.Data.RadiusM <= 0 {
		errs = append(errs, errors.New("analysis radius must be positive"))
	}
	if c.Data.LOSPercClear <= 0 || c.Data.LOSPercClear > 1 {
		errs = append(errs, errors.New("minimum link clearance must be in (0, 1]"))
	}
	if c.Data.PropModel != PropModel3GPP && c.Data.PropModel != PropModelFriis {
		errs = append(errs, fmt.Errorf("propagation model must be %q or %q, got %q", PropModel3GPP, PropModelFriis, c.Data.PropModel))
	}
	return errors.Join(errs...)
}

// Overrides holds the parameters an operator may set from the command line.
// Nil fields are left unchanged.
type Overrides struct {
	PredictionHeightM *float64
	AnalysisRadiusM   *float64
	MinLinkClearance  *float64
	PropModel         *string
	MinRSSIDBm        *float64
}

// ErrNotReconfigurable is returned when a reconfiguration touches a
// parameter that is fixed once the session has been configured.
var ErrNotReconfigurable = errors.New("parameter cannot be changed after the session has been configured")

// Apply sets the overridden parameters. When reconfigure is true only the
// clearance, propagation model and RSSI cut-off may change.
func (c *Configuration) Apply(o Overrides, reconfigure bool) error {
	if reconfigure {
		if o.PredictionHeightM != nil {
			return fmt.Errorf("prediction height: %w", ErrNotReconfigurable)
		}
		if o.AnalysisRadiusM != nil {
			return fmt.Errorf("analysis radius: %w", ErrNotReconfigurable)
		}
	}
	if o.PredictionHeightM != nil {
		c.Data.UEHeightM = *o.PredictionHeightM
	}
	if o.AnalysisRadiusM != nil {
		c.Data.RadiusM = *o.AnalysisRadiusM
	}
	if o.MinLinkClearance != nil {
		c.Data.LOSPercClear = *o.MinLinkClearance
	}
	if o.PropModel != nil {
		c.Data.PropModel = *o.PropModel
	}
	if o.MinRSSIDBm != nil {
		c.SiteSpec.RxCutoffDBm = *o.MinRSSIDBm
	}
	return c.Validate()
}

// SitesPayload is the body of a sites import.
type SitesPayload struct {
	// Raw is the base64-encoded CSV the operator uploaded.
	Raw string `json:"raw"`
	// Processed is the GeoJSON derived from the CSV.
	Processed json.RawMessage `json:"processed"`
	// Overwrite replaces sites that were already imported.
	Overwrite bool `json:"overwrite,omitempty"`
}

// NewSitesPayload encodes a CSV file and its GeoJSON conversion.
func NewSitesPayload(csv, geoJSON []byte, overwrite bool) (SitesPayload, error) {
	if len(csv) == 0 {
		return SitesPayload{}, errors.New("sites CSV is empty")
	}
	if !json.Valid(geoJSON) {
		return SitesPayload{}, errors.New("sites GeoJSON is not valid JSON")
	}
	return SitesPayload{
		Raw:       base64.StdEncoding.EncodeToString(csv),
		Processed: json.RawMessage(geoJSON),
		Overwrite: overwrite,
	}, nil
}

// SitesUpdate is the body of a sites table edit.
type SitesUpdate struct {
	Rows SiteRows `json:"rows"`
}

// SiteRows splits edited rows into existing and new entries.
type SiteRows struct {
	Updated []session.SiteRow `json:"updated"`
	New     []session.SiteRow `json:"new"`
}

// NewSitesUpdate sorts rows by whether they already carry a table key. Every
// row must state whether it is enabled.
func NewSitesUpdate(rows []session.SiteRow) (SitesUpdate, error) {
	u := SitesUpdate{Rows: SiteRows{Updated: []session.SiteRow{}, New: []session.SiteRow{}}}
	for i, row := range rows {
		if _, ok := row.Enabled(); !ok {
			return SitesUpdate{}, fmt.Errorf("row %d: missing boolean \"enabled\"", i+1)
		}
		if row.Key() != "" {
			u.Rows.Updated = append(u.Rows.Updated, row)
		} else {
			u.Rows.New = append(u.Rows.New, row)
		}
	}
	if len(u.Rows.Updated) == 0 && len(u.Rows.New) == 0 {
		return SitesUpdate{}, errors.New("no site rows to save")
	}
	return u, nil
}

// LoadSiteRows reads a YAML or JSON list of site rows.
func LoadSiteRows(path string) ([]session.SiteRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site rows: %w", err)
	}
	var rows []session.SiteRow
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse site rows %s: %w", path, err)
	}
	return rows, nil
}
