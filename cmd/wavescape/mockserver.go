package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nellyag1/wavescape-portal222/internal/logging"
	"github.com/nellyag1/wavescape-portal222/internal/mockapi"
	sighandler "github.com/nellyag1/wavescape-portal222/internal/signal"
)

type mockServerFlags struct {
	addr         string
	warmupDelay  int
	advanceEvery time.Duration
}

func newMockServerCmd(a *app) *cobra.Command {
	f := mockServerFlags{addr: "127.0.0.1:7071"}
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-memory session API for local testing",
		Long: "mock-server answers the session API routes from memory. Started stages " +
			"finish on every --advance-every tick; with 0 they stay running.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			release := sighandler.SetupSignalHandler(ctx, cancel, func() {
				logging.Warn("Interrupted, shutting down the mock server...")
			})
			defer release()

			ln, err := net.Listen("tcp", f.addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", f.addr, err)
			}
			return a.serveMock(ctx, ln, f)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", f.addr, "Listen address")
	cmd.Flags().IntVar(&f.warmupDelay, "warmup-delay", 0, "Nearmap start requests answered with 410 after each creation")
	cmd.Flags().DurationVar(&f.advanceEvery, "advance-every", 5*time.Second, "Finish running stages this often (0 disables)")
	return cmd
}

// serveMock runs the mock API on ln until ctx is done.
func (a *app) serveMock(ctx context.Context, ln net.Listener, f mockServerFlags) error {
	api := mockapi.New()
	api.WarmupDelay = f.warmupDelay
	srv := &http.Server{Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second}

	logging.Success(fmt.Sprintf("Mock session API listening on http://%s%s", ln.Addr(), mockapi.BasePath))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if f.advanceEvery > 0 {
		g.Go(func() error {
			ticker := a.clock.NewTicker(f.advanceEvery)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.Chan():
					if n := api.AdvanceAll(); n > 0 {
						logging.Info(fmt.Sprintf("Finished %d running stage(s)", n))
					}
				}
			}
		})
	}
	return g.Wait()
}
