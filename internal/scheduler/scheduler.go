package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job represents a scheduled task
type Job func(ctx context.Context) error

// State is where the scheduler loop currently is
type State string

const (
	StateIdle      State = "idle"
	StateWaiting   State = "waiting"
	StateTriggered State = "triggered"
	StateRunning   State = "running"
)

// Clock is the time source of the scheduler. Tests swap in a fake to
// advance time without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Options configures a Scheduler
type Options struct {
	Name string
	// Schedule is a standard 5-field cron expression
	Schedule string
	Timezone string
	// PollInterval is how often the clock is checked while waiting
	PollInterval time.Duration
	// SkipInterval is the pause after a run; it must span the trigger minute
	SkipInterval time.Duration
	// RunTimeout bounds one run. Zero means no bound.
	RunTimeout time.Duration
	Clock      Clock
}

// Scheduler triggers one job per matching minute of a cron schedule. The job
// runs on the scheduler's own goroutine, so runs never overlap.
type Scheduler struct {
	name     string
	expr     string
	schedule cron.Schedule
	loc      *time.Location
	poll     time.Duration
	skip     time.Duration
	timeout  time.Duration
	clock    Clock
	job      Job
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	state   State
	lastRun time.Time
	nextRun time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a scheduler for job
func New(opts Options, job Job, logger *zap.SugaredLogger) (*Scheduler, error) {
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", opts.Timezone, err)
	}

	schedule, err := cron.ParseStandard(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule %q: %w", opts.Schedule, err)
	}

	if opts.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	if opts.SkipInterval < time.Minute {
		return nil, errors.New("skip interval must be at least one minute")
	}

	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}

	name := opts.Name
	if name == "" {
		name = "job"
	}

	return &Scheduler{
		name:     name,
		expr:     opts.Schedule,
		schedule: schedule,
		loc:      loc,
		poll:     opts.PollInterval,
		skip:     opts.SkipInterval,
		timeout:  opts.RunTimeout,
		clock:    clock,
		job:      job,
		logger:   logger.Named("scheduler"),
		state:    StateIdle,
	}, nil
}

// Start begins the polling loop in the background. It is a no-op if the
// scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Infof("Starting scheduler for %s (schedule: %s, timezone: %s)", s.name, s.expr, s.loc)
	go s.loop(ctx, s.done)
}

// Stop halts the loop and waits for it to exit. An in-flight run sees its
// context cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	s.logger.Info("Stopping scheduler")
	cancel()
	<-done
}

// RunNow immediately executes the job with the same timeout and error
// containment as a scheduled run.
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.logger.Infof("Running job now: %s", s.name)
	return s.run(ctx)
}

// State returns the current loop state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// JobInfo contains information about the scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
	State   State
}

// Info returns the job's schedule status.
func (s *Scheduler) Info() JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return JobInfo{
		Name:    s.name,
		NextRun: s.nextRun,
		LastRun: s.lastRun,
		State:   s.state,
	}
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Scheduler) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// loop polls the clock and fires the job while the clock is inside the
// trigger minute. After a run it waits the skip interval, which moves the
// clock past that minute, before polling again.
func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.setState(StateIdle)

	next := s.schedule.Next(s.now())
	s.setNext(next)
	s.setState(StateWaiting)
	s.logger.Infof("Next %s run at %s", s.name, next.Format(time.RFC3339))

	for {
		now := s.now()
		if !now.Before(next) {
			if now.Before(next.Add(time.Minute)) {
				s.setState(StateTriggered)
				s.logger.Infof("Trigger time reached for %s", s.name)
				if err := s.run(ctx); err != nil {
					s.logger.Errorf("Job %s failed: %v", s.name, err)
				}
				s.setState(StateWaiting)

				if !s.wait(ctx, s.skip) {
					return
				}
			} else {
				s.logger.Warnf("Missed %s run at %s", s.name, next.Format(time.RFC3339))
			}

			next = s.schedule.Next(s.now())
			s.setNext(next)
			s.logger.Infof("Next %s run at %s", s.name, next.Format(time.RFC3339))
			continue
		}

		if !s.wait(ctx, s.poll) {
			return
		}
	}
}

// wait sleeps d on the clock. Returns false when ctx is done.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	}
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}

// run executes the job once with the run timeout. Panics are converted to
// errors so a bad run never takes the process down.
func (s *Scheduler) run(ctx context.Context) (err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	prev := s.state
	s.state = StateRunning
	s.lastRun = s.clock.Now()
	s.mu.Unlock()
	defer s.setState(prev)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", s.name, r)
		}
	}()

	start := time.Now()
	s.logger.Infof("Starting job: %s", s.name)
	if err := s.job(ctx); err != nil {
		return err
	}
	s.logger.Infof("Job %s completed in %v", s.name, time.Since(start).Round(time.Millisecond))
	return nil
}
