package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Service is a named, long-running unit the Supervisor drives (spec §4.E).
type Service interface {
	Name() string
	Interval() time.Duration
	Update(ctx context.Context) error
	// Cleanup releases resources. Invoked exactly once, last, regardless of
	// whether the service stopped gracefully or failed out.
	Cleanup(ctx context.Context) error
}

type controlKind int

const (
	ctrlStop controlKind = iota
	ctrlPause
	ctrlResume
)

// Supervisor manages one Service's state machine, tick loop and failure
// counting (spec §4.E). Services run under the SYSTEM principal; Supervisor
// itself does not enforce that — the caller wires SYSTEM into whatever
// context Update receives.
type Supervisor struct {
	svc         Service
	maxFailures int
	retryDelay  time.Duration
	metrics     *Metrics
	logger      *slog.Logger

	mu       sync.Mutex
	state    State
	failures int

	cleanupOnce sync.Once
	control     chan controlKind
	stopped     chan struct{}
}

// NewSupervisor constructs a Supervisor for svc. maxFailures <= 0 defaults
// to 5; retryDelay <= 0 defaults to 1s.
func NewSupervisor(svc Service, maxFailures int, retryDelay time.Duration, metrics *Metrics, logger *slog.Logger) *Supervisor {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		svc:         svc,
		maxFailures: maxFailures,
		retryDelay:  retryDelay,
		metrics:     metrics,
		logger:      logger,
		state:       Stopped,
		control:     make(chan controlKind, 4),
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !legal(s.state, to) {
		return fmt.Errorf("service: illegal transition %s -> %s for %s", s.state, to, s.svc.Name())
	}
	s.state = to
	s.metrics.SetState(s.svc.Name(), to)
	return nil
}

// Start transitions Stopped -> Running and spawns the tick loop. ctx bounds
// the service's entire lifetime; canceling it stops the service and runs
// cleanup.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.setState(Running); err != nil {
		return err
	}
	s.stopped = make(chan struct{})
	s.cleanupOnce = sync.Once{}
	go s.run(ctx)
	return nil
}

// Pause transitions Running -> Paused: the tick loop keeps running but
// skips update() calls.
func (s *Supervisor) Pause() error {
	if err := s.setState(Paused); err != nil {
		return err
	}
	s.control <- ctrlPause
	return nil
}

// Resume transitions Paused -> Running.
func (s *Supervisor) Resume() error {
	if err := s.setState(Running); err != nil {
		return err
	}
	s.control <- ctrlResume
	return nil
}

// Stop requests a graceful Running/Paused -> Stopped transition and blocks
// until the tick loop has exited and cleanup() has run.
func (s *Supervisor) Stop(ctx context.Context) error {
	if s.State() == Stopped {
		return nil
	}
	select {
	case s.control <- ctrlStop:
	default:
	}
	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.stopped)
	ticker := time.NewTicker(s.svc.Interval())
	defer ticker.Stop()

	paused := false
	for {
		select {
		case <-ctx.Done():
			s.transitionStopped(ctx)
			return
		case ctrl := <-s.control:
			switch ctrl {
			case ctrlStop:
				s.transitionStopped(ctx)
				return
			case ctrlPause:
				paused = true
			case ctrlResume:
				paused = false
			}
		case <-ticker.C:
			if paused {
				continue
			}
			if s.tick(ctx) {
				s.transitionFailed(ctx)
				return
			}
		}
	}
}

// tick runs one update() call, returning true if the failure count just
// reached maxFailures and the supervisor must transition to Failed.
func (s *Supervisor) tick(ctx context.Context) bool {
	tracker := s.metrics.Track(s.svc.Name())
	err := tracker.End(s.svc.Update(ctx))
	if err == nil {
		s.mu.Lock()
		s.failures = 0
		s.mu.Unlock()
		return false
	}

	s.mu.Lock()
	s.failures++
	failures := s.failures
	s.mu.Unlock()

	s.logger.Error("service: update failed", "service", s.svc.Name(), "failures", failures, "error", err)

	if failures >= s.maxFailures {
		return true
	}
	time.Sleep(s.retryDelay)
	return false
}

func (s *Supervisor) transitionStopped(ctx context.Context) {
	s.runCleanup(ctx)
	_ = s.setState(Stopped)
}

func (s *Supervisor) transitionFailed(ctx context.Context) {
	_ = s.setState(Failed)
	s.runCleanup(ctx)
	_ = s.setState(Stopped)
}

// Cleanup runs the service's Cleanup() if it has not already run for this
// lifecycle. Safe to call after Stop as a belt-and-braces teardown step.
func (s *Supervisor) Cleanup(ctx context.Context) {
	s.runCleanup(ctx)
}

func (s *Supervisor) runCleanup(ctx context.Context) {
	s.cleanupOnce.Do(func() {
		if err := s.svc.Cleanup(ctx); err != nil {
			s.logger.Error("service: cleanup failed", "service", s.svc.Name(), "error", err)
		}
	})
}
