// Package display renders sessions and command outcomes for the wavescape CLI.
//
// Every function writes to the given writer with color-coded headers and
// separators. Colors are dropped automatically when the writer is not a
// terminal.
package display

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/nellyag1/wavescape-portal222/internal/capability"
	"github.com/nellyag1/wavescape-portal222/internal/logging"
	"github.com/nellyag1/wavescape-portal222/internal/session"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor    = color.New(color.FgYellow, color.Bold).SprintFunc()
	dimColor     = color.New(color.Faint).SprintFunc()
)

const rule = "═══════════════════════════════════════════════════"

// actionOrder is the order actions are listed in.
var actionOrder = []capability.Action{
	capability.ActionConfigure,
	capability.ActionImportSites,
	capability.ActionUpdateSites,
	capability.ActionValidate,
	capability.ActionRun,
	capability.ActionIterate,
	capability.ActionStop,
}

func statusText(s capability.Status) string {
	switch s {
	case capability.StatusCompleted:
		return successColor(string(s))
	case capability.StatusFailed:
		return errorColor(string(s))
	case capability.StatusRunning, capability.StatusStopped:
		return warnColor(string(s))
	default:
		return dimColor(string(s))
	}
}

// PrintSession displays one session snapshot with its stage table and the
// actions its capability vector allows.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  harbor
//	═══════════════════════════════════════════════════
//	  Created by: op@example.com (2026-10-15T09:00:00Z)
//	  Updated:    2026-10-15T09:05:00Z
//	  Iteration:  Initial
//	  States:     Configuration completed, Ready to run
//	  Stages:
//	    Nearmap     completed    The task ran successfully
//	    Validation  not-started
//	    WaveScape   not-started
//	  Actions:    Reconfigure, import-sites, validate, run, stop
//	═══════════════════════════════════════════════════
func PrintSession(w io.Writer, s *session.Session, v capability.Vector) {
	sep := headerColor(rule)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, headerColor("  "+s.Name))
	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "  Created by: %s (%s)\n", s.CreatedBy, s.Created)
	fmt.Fprintf(w, "  Updated:    %s\n", s.Updated)
	fmt.Fprintf(w, "  Iteration:  %s\n", s.CurrentIteration())
	fmt.Fprintf(w, "  States:     %s\n", session.FormatStates(s.States))

	fmt.Fprintln(w, "  Stages:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, stage := range session.Stages {
		view := v.Stages[stage]
		line := fmt.Sprintf("    %s\t%s\t%s", stage.Title(), statusText(view.Status), view.Detail)
		if view.LogsAvailable {
			line += dimColor(" (logs available)")
		}
		fmt.Fprintln(tw, strings.TrimRight(line, "\t"))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "  Actions:    %s\n", strings.Join(allowedActions(v), ", "))
	if s.Storage != nil && s.Storage.DirectLinkContainer != "" {
		fmt.Fprintf(w, "  Storage:    %s\n", s.Storage.DirectLinkContainer)
	}
	fmt.Fprintln(w, sep)
}

func allowedActions(v capability.Vector) []string {
	var out []string
	for _, a := range actionOrder {
		if !v.Allows(a) {
			continue
		}
		if a == capability.ActionConfigure && v.ConfigureLabel != "" {
			out = append(out, v.ConfigureLabel)
			continue
		}
		out = append(out, string(a))
	}
	if len(out) == 0 {
		return []string{"none"}
	}
	return out
}

// PrintSessionList displays one row per session, newest update first.
func PrintSessionList(w io.Writer, sessions []*session.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, dimColor("No sessions."))
		return
	}
	sorted := append([]*session.Session(nil), sessions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Updated > sorted[j].Updated })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tITERATION\tSTATES\tUPDATED")
	for _, s := range sorted {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.CurrentIteration(), session.FormatStates(s.States), s.Updated)
	}
	_ = tw.Flush()
}

// PrintSites displays the sites table of a session.
func PrintSites(w io.Writer, rows []session.SiteRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, dimColor("No sites."))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW KEY\tSITE\tAZIMUTH\tTX (dBm)\tENABLED")
	for _, r := range rows {
		enabled, _ := r.Enabled()
		fmt.Fprintf(tw, "%s\t%v\t%v\t%v\t%t\n", r.Key(), r["src_indx"], r["azimuth"], r["peak_tx_dbm"], enabled)
	}
	_ = tw.Flush()
}

// PrintLogs displays a stage's task output.
func PrintLogs(w io.Writer, stage session.Stage, logs *session.Logs) {
	sep := headerColor(rule)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, headerColor("  "+stage.Title()+" logs"))
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, strings.TrimRight(logs.StdOut, "\n"))
	if strings.TrimSpace(logs.StdErr) != "" {
		fmt.Fprintln(w, errorColor("  stderr:"))
		fmt.Fprintln(w, strings.TrimRight(logs.StdErr, "\n"))
	}
	fmt.Fprintln(w, sep)
}

// PrintCreatedBanner displays the outcome of a successful creation.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  ✓ Session harbor created
//	  Warm-up:  3 attempt(s)
//	  Duration: 7s
//	═══════════════════════════════════════════════════
func PrintCreatedBanner(w io.Writer, id string, attempts int, elapsed time.Duration) {
	sep := successColor(rule)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, successColor("  ✓ Session "+id+" created"))
	fmt.Fprintf(w, "  Warm-up:  %d attempt(s)\n", attempts)
	fmt.Fprintf(w, "  Duration: %s\n", logging.FormatDuration(elapsed))
	fmt.Fprintln(w, sep)
}

// PrintInterruptedBanner displays when a command is interrupted.
func PrintInterruptedBanner(w io.Writer, what string) {
	sep := warnColor(rule)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, warnColor("  ⚠ Interrupted"))
	fmt.Fprintf(w, "  %s\n", what)
	fmt.Fprintln(w, sep)
}
