// Package schedule keeps a local view of a session fresh by polling the
// backend on a fixed interval.
package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nellyag1/wavescape-portal222/internal/capability"
	"github.com/nellyag1/wavescape-portal222/internal/session"
)

// DefaultInterval is the polling cadence of the session detail view.
const DefaultInterval = 30 * time.Second

// ErrStopped is returned by RefreshNow once Stop has been called. Nothing is
// fetched or published.
var ErrStopped = errors.New("scheduler stopped")

// FetchFunc retrieves the current session record.
type FetchFunc func(ctx context.Context) (*session.Session, error)

// Snapshot is one published Fetch→Classify result.
type Snapshot struct {
	Seq       uint64
	Session   *session.Session
	Vector    capability.Vector
	FetchedAt time.Time
}

// Scheduler owns the recurring refresh timer for one session view.
//
// Timer ticks and RefreshNow calls share one publish step. Every fetch is
// tagged with a sequence number when it starts, and a response older than the
// last published one is dropped. Once Stop returns, Publish and OnError are
// never called again. Callbacks must not call Stop or RefreshNow themselves.
type Scheduler struct {
	Fetch    FetchFunc
	Publish  func(Snapshot)
	OnError  func(err error)
	Interval time.Duration
	Clock    clockwork.Clock

	mu        sync.Mutex
	running   bool
	stopped   bool
	cancel    context.CancelFunc
	done      chan struct{}
	nextSeq   uint64
	published uint64
	latest    *Snapshot

	// deliverMu serializes callbacks so Stop can wait out one in progress.
	deliverMu sync.Mutex
}

func (s *Scheduler) clock() clockwork.Clock {
	if s.Clock == nil {
		return clockwork.NewRealClock()
	}
	return s.Clock
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval <= 0 {
		return DefaultInterval
	}
	return s.Interval
}

// Start performs an initial refresh and then one per interval until Stop is
// called or ctx is done. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	// The ticker exists before Start returns so a tick cannot be missed.
	ticker := s.clock().NewTicker(s.interval())
	done := make(chan struct{})

	s.running = true
	s.stopped = false
	s.cancel = cancel
	s.done = done

	go s.loop(ctx, ticker, done)
}

func (s *Scheduler) loop(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.cycle(ctx)
		}
	}
}

// Stop cancels the timer and waits for the polling goroutine to exit. It is
// safe to call more than once and on a scheduler that was never started.
func (s *Scheduler) Stop() {
	// holding deliverMu waits out a callback already in progress
	s.deliverMu.Lock()
	s.mu.Lock()
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.running = false
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	s.deliverMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Running reports whether the timer is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RefreshNow runs one Fetch→Classify→publish cycle on the caller's
// goroutine. The timer cadence is not affected. It returns ErrStopped after
// Stop, including for a fetch that Stop overtook. A response dropped for being
// older than the published one is not an error.
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	if s.isStopped() {
		return ErrStopped
	}
	return s.cycle(ctx)
}

func (s *Scheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Latest returns the most recently published snapshot.
func (s *Scheduler) Latest() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Snapshot{}, false
	}
	return *s.latest, true
}

func (s *Scheduler) cycle(ctx context.Context) error {
	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	s.mu.Unlock()

	sess, err := s.Fetch(ctx)
	if err != nil {
		// a fetch cut short by Stop is not a failure worth reporting
		if ctx.Err() == nil {
			s.deliverError(err)
		}
		return err
	}

	return s.deliver(Snapshot{
		Seq:       seq,
		Session:   sess,
		Vector:    capability.ClassifySession(sess),
		FetchedAt: s.clock().Now(),
	})
}

func (s *Scheduler) deliver(snap Snapshot) error {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if snap.Seq <= s.published {
		s.mu.Unlock()
		return nil
	}
	s.published = snap.Seq
	s.latest = &snap
	s.mu.Unlock()

	if s.Publish != nil {
		s.Publish(snap)
	}
	return nil
}

func (s *Scheduler) deliverError(err error) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()

	if !stopped && s.OnError != nil {
		s.OnError(err)
	}
}
