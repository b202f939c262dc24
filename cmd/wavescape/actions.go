package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nellyag1/wavescape-portal222/internal/capability"
	"github.com/nellyag1/wavescape-portal222/internal/dispatch"
	"github.com/nellyag1/wavescape-portal222/internal/logging"
)

// configureFlags collects the parameter overrides of the configure command.
type configureFlags struct {
	file             string
	predictionHeight float64
	analysisRadius   float64
	minLinkClearance float64
	propModel        string
	minRSSI          float64
}

func (f *configureFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.file, "file", "", "YAML or JSON configuration file (first configuration only)")
	fs.Float64Var(&f.predictionHeight, "prediction-height", 0, "Prediction height in meters")
	fs.Float64Var(&f.analysisRadius, "analysis-radius", 0, "Analysis radius in meters")
	fs.Float64Var(&f.minLinkClearance, "min-link-clearance", 0, "Minimum line-of-sight clearance, in (0, 1]")
	fs.StringVar(&f.propModel, "prop-model", "", "Propagation model (3GPP or Friis)")
	fs.Float64Var(&f.minRSSI, "min-rssi", 0, "Minimum RSSI in dBm")
}

// overrides returns only the parameters set on the command line.
func (f *configureFlags) overrides(fs *pflag.FlagSet) dispatch.Overrides {
	var o dispatch.Overrides
	if fs.Changed("prediction-height") {
		o.PredictionHeightM = &f.predictionHeight
	}
	if fs.Changed("analysis-radius") {
		o.AnalysisRadiusM = &f.analysisRadius
	}
	if fs.Changed("min-link-clearance") {
		o.MinLinkClearance = &f.minLinkClearance
	}
	if fs.Changed("prop-model") {
		o.PropModel = &f.propModel
	}
	if fs.Changed("min-rssi") {
		o.MinRSSIDBm = &f.minRSSI
	}
	return o
}

func newConfigureCmd(a *app) *cobra.Command {
	var f configureFlags
	cmd := &cobra.Command{
		Use:   "configure <id>",
		Short: "Configure or reconfigure a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			s, v, err := a.gate(cmd.Context(), id, capability.ActionConfigure)
			if err != nil {
				return err
			}

			var cfg dispatch.Configuration
			switch {
			case v.Configured && f.file != "":
				return fmt.Errorf("--file: %w; use the parameter flags to reconfigure", dispatch.ErrNotReconfigurable)
			case v.Configured:
				if cfg, err = dispatch.ParseConfiguration(s.Configuration); err != nil {
					return err
				}
			case f.file != "":
				if cfg, err = dispatch.LoadConfiguration(f.file); err != nil {
					return err
				}
			default:
				cfg = dispatch.DefaultConfiguration()
			}

			if err := cfg.Apply(f.overrides(cmd.Flags()), v.Configured); err != nil {
				return err
			}
			logging.Phase(fmt.Sprintf("%s %s", v.ConfigureLabel, id))
			return a.dispatcher().Configure(cmd.Context(), id, cfg)
		},
	}
	f.bind(cmd.Flags())
	return cmd
}

func newImportSitesCmd(a *app) *cobra.Command {
	var csvPath, geoJSONPath string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "import-sites <id>",
		Short: "Upload the sites CSV and its GeoJSON conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, _, err := a.gate(cmd.Context(), id, capability.ActionImportSites); err != nil {
				return err
			}
			p, err := loadSitesPayload(csvPath, geoJSONPath, overwrite)
			if err != nil {
				return err
			}
			return a.dispatcher().ImportSites(cmd.Context(), id, p)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Raw sites CSV file")
	cmd.Flags().StringVar(&geoJSONPath, "geojson", "", "Sites GeoJSON converted from the CSV")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace sites that were already imported")
	_ = cmd.MarkFlagRequired("csv")
	_ = cmd.MarkFlagRequired("geojson")
	return cmd
}

func newUpdateSitesCmd(a *app) *cobra.Command {
	var rowsPath string
	cmd := &cobra.Command{
		Use:   "update-sites <id>",
		Short: "Save edited or added rows of the sites table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, _, err := a.gate(cmd.Context(), id, capability.ActionUpdateSites); err != nil {
				return err
			}
			rows, err := dispatch.LoadSiteRows(rowsPath)
			if err != nil {
				return err
			}
			u, err := dispatch.NewSitesUpdate(rows)
			if err != nil {
				return err
			}
			logging.Info(fmt.Sprintf("Saving %d updated and %d new site row(s)", len(u.Rows.Updated), len(u.Rows.New)))
			return a.dispatcher().UpdateSites(cmd.Context(), id, u)
		},
	}
	cmd.Flags().StringVar(&rowsPath, "rows", "", "YAML or JSON list of site rows")
	_ = cmd.MarkFlagRequired("rows")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <id>",
		Short: "Start the validation stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, _, err := a.gate(cmd.Context(), id, capability.ActionValidate); err != nil {
				return err
			}
			return a.dispatcher().Validate(cmd.Context(), id)
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Start the initial WaveScape run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, _, err := a.gate(cmd.Context(), id, capability.ActionRun); err != nil {
				return err
			}
			return a.dispatcher().Run(cmd.Context(), id)
		},
	}
}

func newIterateCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "iterate <id>",
		Short: "Start a named WaveScape iteration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, _, err := a.gate(cmd.Context(), id, capability.ActionIterate); err != nil {
				return err
			}
			return a.dispatcher().Iterate(cmd.Context(), id, name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Iteration name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newStopCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop every stage in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, _, err := a.gate(cmd.Context(), id, capability.ActionStop); err != nil {
				return err
			}
			if !yes && !a.confirm(fmt.Sprintf("Stop all activities of %s?", id)) {
				logging.Info("Stop cancelled")
				return nil
			}
			return a.dispatcher().Stop(cmd.Context(), id)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
