package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nellyag1/wavescape-portal222/internal/capability"
	"github.com/nellyag1/wavescape-portal222/internal/dispatch"
	"github.com/nellyag1/wavescape-portal222/internal/display"
	"github.com/nellyag1/wavescape-portal222/internal/exitcode"
	"github.com/nellyag1/wavescape-portal222/internal/logging"
	sighandler "github.com/nellyag1/wavescape-portal222/internal/signal"
	"github.com/nellyag1/wavescape-portal222/internal/session"
	"github.com/nellyag1/wavescape-portal222/internal/workflow"
)

func newListCmd(a *app) *cobra.Command {
	var all bool
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := a.fetcher.List(cmd.Context())
			if err != nil {
				return err
			}
			visible := sessions[:0]
			for _, s := range sessions {
				if (all || !session.IsDefunct(s)) && matchesFilter(s, filter) {
					visible = append(visible, s)
				}
			}
			display.PrintSessionList(a.out, visible)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include creations that never got past warm-up")
	cmd.Flags().StringVar(&filter, "filter", "", "Only sessions whose name or creator contains this text (case-insensitive)")
	return cmd
}

// matchesFilter reports whether the session name or creator contains filter,
// ignoring case. An empty filter matches everything.
func matchesFilter(s *session.Session, filter string) bool {
	if filter == "" {
		return true
	}
	filter = strings.ToLower(filter)
	return strings.Contains(strings.ToLower(s.Name), filter) ||
		strings.Contains(strings.ToLower(s.CreatedBy), filter)
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.refresh(cmd.Context(), args[0])
		},
	}
}

func newLogsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logs <id> <nearmap|validation|wavescape>",
		Short: "Print a stage's task output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			stage, ok := session.ParseStage(args[1])
			if !ok {
				return fmt.Errorf("unknown stage %q: expected nearmap, validation or wavescape", args[1])
			}

			s, err := a.fetcher.Fetch(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !capability.ClassifySession(s).Stages[stage].LogsAvailable {
				return fmt.Errorf("%s logs for %s: %w: the stage has not finished", stage.Title(), id, exitcode.ErrUnavailable)
			}

			logs, err := a.fetcher.Logs(cmd.Context(), id, stage)
			if err != nil {
				return err
			}
			display.PrintLogs(a.out, stage, logs)
			return nil
		},
	}
}

func newSitesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sites <id>",
		Short: "Print the sites table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, _, err := a.gate(cmd.Context(), id, capability.ActionViewSites); err != nil {
				return err
			}
			rows, err := a.fetcher.Sites(cmd.Context(), id)
			if err != nil {
				return err
			}
			display.PrintSites(a.out, rows)
			return nil
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var aoiPath, sitesCSV, sitesGeoJSON, configPath string
	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a session and start Nearmap processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.OwnerID == "" {
				return fmt.Errorf("--owner is required (or OWNER_ID in a config file)")
			}
			req := workflow.Request{ID: args[0], OwnerID: a.cfg.OwnerID}

			var err error
			if req.AOI, err = os.ReadFile(aoiPath); err != nil {
				return fmt.Errorf("--aoi: %w", err)
			}
			if (sitesCSV == "") != (sitesGeoJSON == "") {
				return fmt.Errorf("--sites-csv and --sites-geojson must be given together")
			}
			if sitesCSV != "" {
				p, err := loadSitesPayload(sitesCSV, sitesGeoJSON, false)
				if err != nil {
					return err
				}
				req.Sites = &p
			}
			if configPath != "" {
				c, err := dispatch.LoadConfiguration(configPath)
				if err != nil {
					return err
				}
				req.Configuration = &c
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			release := sighandler.SetupSignalHandler(ctx, cancel, func() {
				logging.Warn("Interrupted, abandoning the warm-up...")
			})
			defer release()

			start := a.clock.Now()
			creator := workflow.NewCreator(a.fetcher, dispatch.New(a.caller, a.notifier, nil), a.warmup(), a.notifier)
			res, err := creator.Run(ctx, req)
			switch {
			case err == nil:
				display.PrintCreatedBanner(a.out, req.ID, res.WarmupAttempts, a.clock.Since(start))
				return nil
			case exitcode.FromError(err) == exitcode.Interrupted:
				display.PrintInterruptedBanner(a.out, "Creation stopped; run create again to resume the warm-up")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&aoiPath, "aoi", "", "Area-of-interest geopackage file")
	cmd.Flags().StringVar(&sitesCSV, "sites-csv", "", "Raw sites CSV file")
	cmd.Flags().StringVar(&sitesGeoJSON, "sites-geojson", "", "Sites GeoJSON converted from the CSV")
	cmd.Flags().StringVar(&configPath, "configuration", "", "YAML or JSON configuration file")
	_ = cmd.MarkFlagRequired("aoi")
	return cmd
}

func loadSitesPayload(csvPath, geoJSONPath string, overwrite bool) (dispatch.SitesPayload, error) {
	csv, err := os.ReadFile(csvPath)
	if err != nil {
		return dispatch.SitesPayload{}, fmt.Errorf("sites CSV: %w", err)
	}
	geoJSON, err := os.ReadFile(geoJSONPath)
	if err != nil {
		return dispatch.SitesPayload{}, fmt.Errorf("sites GeoJSON: %w", err)
	}
	return dispatch.NewSitesPayload(csv, geoJSON, overwrite)
}
