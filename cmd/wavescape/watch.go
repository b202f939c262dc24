package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nellyag1/wavescape-portal222/internal/capability"
	"github.com/nellyag1/wavescape-portal222/internal/exitcode"
	"github.com/nellyag1/wavescape-portal222/internal/logging"
	"github.com/nellyag1/wavescape-portal222/internal/schedule"
	"github.com/nellyag1/wavescape-portal222/internal/session"
	sighandler "github.com/nellyag1/wavescape-portal222/internal/signal"
)

func newWatchCmd(a *app) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch <id>...",
		Short: "Refresh sessions periodically until interrupted",
		Long: "watch prints each session on every refresh interval. Press Enter to refresh " +
			"all of them immediately; Ctrl-C stops watching.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd.Context(), args, duration)
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "Stop watching after this long (0 watches until interrupted)")
	return cmd
}

func (a *app) watch(ctx context.Context, ids []string, duration time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var interrupted atomic.Bool
	release := sighandler.SetupSignalHandler(ctx, cancel, func() {
		interrupted.Store(true)
		logging.Warn("Interrupted, stopping refresh timers...")
	})
	defer release()

	schedulers := make([]*schedule.Scheduler, 0, len(ids))
	for _, id := range ids {
		s := a.newScheduler(id)
		s.Start(ctx)
		defer s.Stop()
		schedulers = append(schedulers, s)
	}
	logging.Info(fmt.Sprintf("Watching %d session(s) every %s, press Enter to refresh now",
		len(ids), logging.FormatDuration(a.cfg.RefreshInterval)))

	var deadline <-chan time.Time
	if duration > 0 {
		deadline = a.clock.After(duration)
	}

	requests := a.refreshRequests(ctx)
	for {
		select {
		case <-ctx.Done():
			if interrupted.Load() {
				return exitcode.ErrInterrupted
			}
			return nil
		case <-deadline:
			return nil
		case _, ok := <-requests:
			if !ok {
				requests = nil
				continue
			}
			// failures already went to each scheduler's OnError
			var g errgroup.Group
			for _, s := range schedulers {
				g.Go(func() error { return s.RefreshNow(ctx) })
			}
			_ = g.Wait()
		}
	}
}

// newScheduler builds the refresh timer of one session. Stage status changes
// between two snapshots are logged.
func (a *app) newScheduler(id string) *schedule.Scheduler {
	var prev map[session.Stage]capability.StageView
	return &schedule.Scheduler{
		Fetch: func(ctx context.Context) (*session.Session, error) {
			return a.fetcher.Fetch(ctx, id)
		},
		Publish: func(snap schedule.Snapshot) {
			for _, stage := range session.Stages {
				before, had := prev[stage]
				after := snap.Vector.Stages[stage]
				if had && before.Status != after.Status {
					logging.Info(fmt.Sprintf("%s: %s %s -> %s", id, stage.Title(), before.Status, after.Status))
				}
			}
			prev = snap.Vector.Stages
			a.show(snap.Session, snap.Vector)
		},
		OnError: func(err error) {
			logging.Error(fmt.Sprintf("refresh %s: %v", id, err))
		},
		Interval: a.cfg.RefreshInterval,
		Clock:    a.clock,
	}
}

// refreshRequests turns every line read from the app's input into a refresh
// request. The channel is closed at end of input.
//
// A read in progress cannot be cancelled: when watch returns, the goroutine
// stays blocked in ReadString until the next line or end of input, and only
// then notices ctx and exits. The process exits right after watch, so this
// only matters to callers that keep running with a live input.
func (a *app) refreshRequests(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		for {
			if _, err := a.in.ReadString('\n'); err != nil {
				return
			}
			select {
			case ch <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
