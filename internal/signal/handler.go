// Package signal provides signal handling for graceful shutdown of the wavescape CLI.
//
// The SetupSignalHandler function registers handlers for SIGINT and SIGTERM,
// allowing the application to respond to interruptions by calling cleanup callbacks
// and canceling the provided context.
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SetupSignalHandler registers SIGINT and SIGTERM handlers.
// When a signal is received, it calls the onInterrupt callback (if non-nil),
// then cancels the context.
//
// The returned release function unregisters the handler and waits for its
// goroutine to exit; call it once the guarded work is over. The goroutine
// also exits when ctx is canceled.
//
// Example usage:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	release := signal.SetupSignalHandler(ctx, cancel, func() {
//	    logging.Warn("Interrupted, stopping refresh timers...")
//	})
//	defer release()
func SetupSignalHandler(ctx context.Context, cancel context.CancelFunc, onInterrupt func()) (release func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			if onInterrupt != nil {
				onInterrupt()
			}
			cancel()
		case <-ctx.Done():
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(quit) })
		<-done
	}
}
