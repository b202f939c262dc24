package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/nellyag1/wavescape-portal222/internal/capability"
	"github.com/nellyag1/wavescape-portal222/internal/cli"
	"github.com/nellyag1/wavescape-portal222/internal/config"
	"github.com/nellyag1/wavescape-portal222/internal/dispatch"
	"github.com/nellyag1/wavescape-portal222/internal/display"
	"github.com/nellyag1/wavescape-portal222/internal/exitcode"
	"github.com/nellyag1/wavescape-portal222/internal/logging"
	"github.com/nellyag1/wavescape-portal222/internal/notification"
	"github.com/nellyag1/wavescape-portal222/internal/session"
	"github.com/nellyag1/wavescape-portal222/internal/transport"
	"github.com/nellyag1/wavescape-portal222/internal/warmup"
)

// app carries the merged configuration and the backend clients shared by all
// subcommands.
type app struct {
	cfg   *config.Config
	in    *bufio.Reader
	out   io.Writer
	clock clockwork.Clock

	// globalPath and projectPath locate the config files; tests point them
	// at temporary files.
	globalPath  string
	projectPath string

	outMu    sync.Mutex
	caller   transport.Caller
	fetcher  *session.Fetcher
	notifier notification.Notifier
}

func newApp(in io.Reader, out io.Writer) *app {
	return &app{
		cfg:         config.NewDefaultConfig(),
		in:          bufio.NewReader(in),
		out:         out,
		clock:       clockwork.NewRealClock(),
		globalPath:  config.GlobalPath(),
		projectPath: config.ProjectPath,
	}
}

// setup merges the config sources and builds the backend clients. It runs
// before every subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	if err := cli.ValidateFlags(a.cfg); err != nil {
		return err
	}

	merged, err := config.LoadWithPrecedence(a.globalPath, a.projectPath, a.cfg.ConfigFile, cli.BuildOverrides(cmd, a.cfg))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	merged.ConfigFile = a.cfg.ConfigFile
	if err := cli.ValidateConfig(merged); err != nil {
		return err
	}
	*a.cfg = *merged

	logging.SetVerbose(a.cfg.Verbose)
	logging.Debug(fmt.Sprintf("Using session API at %s", a.cfg.APIURL))

	a.caller = transport.NewHTTPCaller(a.cfg.APIURL, a.cfg.HTTPTimeout)
	a.fetcher = session.NewFetcher(a.caller)
	a.notifier = notification.Multi{
		notification.LogNotifier{},
		notification.CommandNotifier{Command: a.cfg.NotifyCommand},
	}
	return nil
}

func (a *app) dispatcher() *dispatch.Dispatcher {
	return dispatch.New(a.caller, a.notifier, dispatch.RefresherFunc(a.refresh))
}

func (a *app) warmup() *warmup.Orchestrator {
	w := warmup.New(a.caller, warmup.Config{Budget: a.cfg.WarmupBudget, Interval: a.cfg.WarmupInterval})
	w.Clock = a.clock
	w.OnAttempt = func(attempt, remaining int) {
		if remaining > 0 {
			logging.Info(fmt.Sprintf("Session not ready yet (attempt %d), retrying in %s, %d attempt(s) left",
				attempt, a.cfg.WarmupInterval, remaining))
		}
	}
	return w
}

// refresh re-fetches a session after a successful action and shows it.
func (a *app) refresh(ctx context.Context, id string) error {
	s, err := a.fetcher.Fetch(ctx, id)
	if err != nil {
		return err
	}
	a.show(s, capability.ClassifySession(s))
	return nil
}

func (a *app) show(s *session.Session, v capability.Vector) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	display.PrintSession(a.out, s, v)
}

// gate fetches the session and refuses the action when its current
// capability vector does not allow it.
func (a *app) gate(ctx context.Context, id string, action capability.Action) (*session.Session, capability.Vector, error) {
	s, err := a.fetcher.Fetch(ctx, id)
	if err != nil {
		return nil, capability.Vector{}, err
	}
	v := capability.ClassifySession(s)
	if !v.Allows(action) {
		return s, v, fmt.Errorf("%s %s: %w: %s", action, id, exitcode.ErrUnavailable, v.Reason(action))
	}
	return s, v, nil
}

// confirm asks a yes/no question on the app's input. Anything but y or yes
// is a no.
func (a *app) confirm(question string) bool {
	a.outMu.Lock()
	fmt.Fprintf(a.out, "%s [y/N] ", question)
	a.outMu.Unlock()

	line, _ := a.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
