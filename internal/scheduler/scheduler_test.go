package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []waiter
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.waiters = append(c.waiters, waiter{deadline: c.now.Add(d), ch: ch})
	return ch
}

// Advance moves the clock forward and fires every waiter that is due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)

	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if !c.now.Before(w.deadline) {
			w.ch <- c.now
			continue
		}
		pending = append(pending, w)
	}
	c.waiters = pending
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// blockUntil waits for n goroutines to be parked on After.
func (c *fakeClock) blockUntil(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.pending() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d waiters", n)
		}
		time.Sleep(time.Millisecond)
	}
}

func testOptions(clock Clock) Options {
	return Options{
		Name:         "paramedicos",
		Schedule:     "0 1 * * *",
		Timezone:     "UTC",
		PollInterval: 30 * time.Second,
		SkipInterval: 61 * time.Second,
		RunTimeout:   time.Minute,
		Clock:        clock,
	}
}

func TestNew_Validation(t *testing.T) {
	logger := zap.NewNop().Sugar()
	job := func(context.Context) error { return nil }

	opts := testOptions(nil)
	opts.Schedule = "not a cron"
	_, err := New(opts, job, logger)
	assert.ErrorContains(t, err, "failed to parse schedule")

	opts = testOptions(nil)
	opts.Timezone = "Mars/Olympus"
	_, err = New(opts, job, logger)
	assert.ErrorContains(t, err, "invalid timezone")

	opts = testOptions(nil)
	opts.SkipInterval = 30 * time.Second
	_, err = New(opts, job, logger)
	assert.Error(t, err)

	opts = testOptions(nil)
	opts.PollInterval = 0
	_, err = New(opts, job, logger)
	assert.Error(t, err)

	s, err := New(testOptions(nil), job, logger)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())
}

func TestScheduler_TriggersOncePerMinute(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 17, 0, 59, 0, 0, time.UTC))

	var count atomic.Int32
	ran := make(chan struct{}, 4)
	job := func(context.Context) error {
		count.Add(1)
		ran <- struct{}{}
		return nil
	}

	s, err := New(testOptions(clock), job, zap.NewNop().Sugar())
	require.NoError(t, err)
	s.Start(context.Background())
	defer s.Stop()

	clock.blockUntil(t, 1)
	assert.True(t, time.Date(2026, 10, 17, 1, 0, 0, 0, time.UTC).Equal(s.Info().NextRun), "got %s", s.Info().NextRun)
	assert.Equal(t, StateWaiting, s.State())

	clock.Advance(30 * time.Second)
	clock.blockUntil(t, 1)
	assert.Equal(t, int32(0), count.Load())

	// 01:00:00, inside the trigger minute
	clock.Advance(30 * time.Second)
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run at trigger time")
	}

	// Skip interval is pending; the rest of the minute must not re-trigger
	clock.blockUntil(t, 1)
	clock.Advance(30 * time.Second)
	clock.blockUntil(t, 1)
	assert.Equal(t, int32(1), count.Load())

	clock.Advance(31 * time.Second)
	clock.blockUntil(t, 1)
	assert.Equal(t, int32(1), count.Load())
	assert.True(t, time.Date(2026, 10, 18, 1, 0, 0, 0, time.UTC).Equal(s.Info().NextRun), "got %s", s.Info().NextRun)
	assert.True(t, time.Date(2026, 10, 17, 1, 0, 0, 0, time.UTC).Equal(s.Info().LastRun), "got %s", s.Info().LastRun)
}

func TestScheduler_FailedRunKeepsLoopAlive(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 17, 0, 59, 45, 0, time.UTC))

	ran := make(chan struct{}, 1)
	job := func(context.Context) error {
		ran <- struct{}{}
		return errors.New("browser crashed")
	}

	s, err := New(testOptions(clock), job, zap.NewNop().Sugar())
	require.NoError(t, err)
	s.Start(context.Background())
	defer s.Stop()

	clock.blockUntil(t, 1)
	clock.Advance(30 * time.Second)
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	clock.blockUntil(t, 1)
	clock.Advance(61 * time.Second)
	clock.blockUntil(t, 1)
	assert.Equal(t, StateWaiting, s.State())
	assert.True(t, time.Date(2026, 10, 18, 1, 0, 0, 0, time.UTC).Equal(s.Info().NextRun), "got %s", s.Info().NextRun)
}

func TestScheduler_MissedMinuteIsSkipped(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 17, 0, 59, 50, 0, time.UTC))

	var count atomic.Int32
	job := func(context.Context) error {
		count.Add(1)
		return nil
	}

	opts := testOptions(clock)
	opts.PollInterval = 70 * time.Second
	s, err := New(opts, job, zap.NewNop().Sugar())
	require.NoError(t, err)
	s.Start(context.Background())
	defer s.Stop()

	clock.blockUntil(t, 1)
	// Jumps to 01:01:00, past the whole trigger minute
	clock.Advance(70 * time.Second)
	clock.blockUntil(t, 1)

	assert.Equal(t, int32(0), count.Load())
	assert.True(t, time.Date(2026, 10, 18, 1, 0, 0, 0, time.UTC).Equal(s.Info().NextRun), "got %s", s.Info().NextRun)
}

func TestScheduler_StopReturnsToIdle(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
	s, err := New(testOptions(clock), func(context.Context) error { return nil }, zap.NewNop().Sugar())
	require.NoError(t, err)

	s.Start(context.Background())
	clock.blockUntil(t, 1)
	s.Stop()
	assert.Equal(t, StateIdle, s.State())

	// Second stop is a no-op
	s.Stop()
}

func TestRunNow_RecoversPanic(t *testing.T) {
	s, err := New(testOptions(nil), func(context.Context) error {
		panic("nil selector")
	}, zap.NewNop().Sugar())
	require.NoError(t, err)

	err = s.RunNow(context.Background())
	assert.ErrorContains(t, err, "panicked")
	assert.Equal(t, StateIdle, s.State())
}

func TestRunNow_AppliesTimeout(t *testing.T) {
	opts := testOptions(nil)
	opts.RunTimeout = 20 * time.Millisecond
	s, err := New(opts, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, zap.NewNop().Sugar())
	require.NoError(t, err)

	err = s.RunNow(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
