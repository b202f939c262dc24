package warmup

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nellyag1/wavescape-portal222/internal/session"
	"github.com/nellyag1/wavescape-portal222/internal/transport"
)

// scriptedCaller answers with statuses from a script, repeating the last one
// once the script runs out.
type scriptedCaller struct {
	mu       sync.Mutex
	statuses []int
	calls    int
	paths    []string
	bodies   []any
}

func (c *scriptedCaller) Call(_ context.Context, _ string, path string, body any) (*transport.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	if idx >= len(c.statuses) {
		idx = len(c.statuses) - 1
	}
	c.calls++
	c.paths = append(c.paths, path)
	c.bodies = append(c.bodies, body)
	code := c.statuses[idx]
	return &transport.Response{StatusCode: code, OK: code >= 200 && code < 300}, nil
}

func (c *scriptedCaller) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// runWithFakeClock runs the orchestrator while a helper goroutine keeps
// advancing the fake clock past every wait.
func runWithFakeClock(t *testing.T, o *Orchestrator, ctx context.Context) (Result, error) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	o.Clock = fc

	done := make(chan struct{})
	var (
		res Result
		err error
	)
	go func() {
		defer close(done)
		res, err = o.Run(ctx, "harbor", Payload{AOI: "YWJj"})
	}()

	for {
		select {
		case <-done:
			return res, err
		case <-time.After(time.Millisecond):
			fc.Advance(o.Config.withDefaults().Interval)
		}
	}
}

func TestConfig_MaxAttempts(t *testing.T) {
	assert.Equal(t, 10, DefaultConfig().MaxAttempts())
	assert.Equal(t, 10, Config{}.MaxAttempts())
	assert.Equal(t, 5, Config{Budget: 10 * time.Second, Interval: 2 * time.Second}.MaxAttempts())
	assert.Equal(t, 1, Config{Budget: time.Second, Interval: 3 * time.Second}.MaxAttempts())
}

func TestRun_ExhaustsBudget(t *testing.T) {
	c := &scriptedCaller{statuses: []int{http.StatusGone}}
	var reported []int
	o := &Orchestrator{
		Caller: c,
		Config: DefaultConfig(),
		OnAttempt: func(attempt, remaining int) {
			reported = append(reported, remaining)
		},
	}

	res, err := runWithFakeClock(t, o, context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrNotReady))
	assert.True(t, IsExhausted(err))
	assert.Contains(t, err.Error(), "10 attempts")
	assert.Equal(t, 10, res.Attempts)
	assert.Equal(t, 10, c.count(), "no eleventh attempt")
	assert.Equal(t, []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, reported)
}

func TestRun_SucceedsAfterNotReady(t *testing.T) {
	c := &scriptedCaller{statuses: []int{http.StatusGone, http.StatusGone, http.StatusAccepted}}
	o := &Orchestrator{Caller: c, Config: DefaultConfig()}

	res, err := runWithFakeClock(t, o, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, c.count())
	assert.Equal(t, "harbor/nearmap", c.paths[0])
	assert.Equal(t, Payload{AOI: "YWJj"}, c.bodies[0])
}

func TestRun_FirstAttemptSucceeds(t *testing.T) {
	c := &scriptedCaller{statuses: []int{http.StatusAccepted}}
	o := &Orchestrator{Caller: c, Clock: clockwork.NewFakeClock()}

	res, err := o.Run(context.Background(), "harbor", Payload{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
}

func TestRun_OtherFailureAbortsImmediately(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusInternalServerError, http.StatusNotFound} {
		c := &scriptedCaller{statuses: []int{code, http.StatusAccepted}}
		o := &Orchestrator{Caller: c, Clock: clockwork.NewFakeClock()}

		res, err := o.Run(context.Background(), "harbor", Payload{})
		require.Error(t, err, code)
		assert.True(t, errors.Is(err, session.ErrTransport), code)
		assert.False(t, errors.Is(err, session.ErrNotReady), code)
		assert.Equal(t, 1, res.Attempts, code)
		assert.Equal(t, 1, c.count(), code)
	}
}

type failingCaller struct{ calls atomic.Int32 }

func (f *failingCaller) Call(context.Context, string, string, any) (*transport.Response, error) {
	f.calls.Add(1)
	return nil, errors.New("connection refused")
}

func TestRun_NetworkFailureAborts(t *testing.T) {
	c := &failingCaller{}
	o := &Orchestrator{Caller: c, Clock: clockwork.NewFakeClock()}

	_, err := o.Run(context.Background(), "harbor", Payload{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrTransport))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, int32(1), c.calls.Load())
}

func TestRun_CancelStopsFutureAttempts(t *testing.T) {
	c := &scriptedCaller{statuses: []int{http.StatusGone}}
	fc := clockwork.NewFakeClock()
	o := &Orchestrator{Caller: c, Clock: fc, Config: DefaultConfig()}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx, "harbor", Payload{})
		errCh <- err
	}()

	// wait until the loop is parked on the interval
	fc.BlockUntil(1)
	cancel()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	fc.Advance(time.Minute)
	assert.Equal(t, 1, c.count())
}
