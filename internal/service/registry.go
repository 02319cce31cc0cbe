package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Registry holds every supervised Service by name and fans lifecycle
// operations out across the fleet (spec §4.E "Registry").
type Registry struct {
	mu          sync.RWMutex
	supervisors map[string]*Supervisor
	metrics     *Metrics
	logger      *slog.Logger
	maxFailures int
	retryDelay  time.Duration
}

// NewRegistry constructs an empty Registry. Every service it supervises
// shares maxFailures/retryDelay unless registered with its own values via
// RegisterWithLimits.
func NewRegistry(maxFailures int, retryDelay time.Duration, metrics *Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		supervisors: make(map[string]*Supervisor),
		metrics:     metrics,
		logger:      logger,
		maxFailures: maxFailures,
		retryDelay:  retryDelay,
	}
}

// Register adds svc to the registry under its own Name(), using the
// registry's default failure/backoff limits.
func (r *Registry) Register(svc Service) {
	r.RegisterWithLimits(svc, r.maxFailures, r.retryDelay)
}

// RegisterWithLimits adds svc with its own maxFailures/retryDelay.
func (r *Registry) RegisterWithLimits(svc Service, maxFailures int, retryDelay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supervisors[svc.Name()] = NewSupervisor(svc, maxFailures, retryDelay, r.metrics, r.logger)
}

// Get returns the named service's Supervisor.
func (r *Registry) Get(name string) (*Supervisor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sup, ok := r.supervisors[name]
	return sup, ok
}

func (r *Registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.supervisors))
	for name := range r.supervisors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartAll starts every registered service.
func (r *Registry) StartAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range r.names() {
		sup, _ := r.Get(name)
		g.Go(func() error {
			if err := sup.Start(gctx); err != nil {
				return fmt.Errorf("service: start %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// StopAll stops every registered service, waiting for each to finish its
// cleanup.
func (r *Registry) StopAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range r.names() {
		sup, _ := r.Get(name)
		g.Go(func() error {
			return sup.Stop(gctx)
		})
	}
	return g.Wait()
}

// PauseAll pauses every currently running service.
func (r *Registry) PauseAll() error {
	for _, name := range r.names() {
		sup, _ := r.Get(name)
		if sup.State() == Running {
			if err := sup.Pause(); err != nil {
				return err
			}
		}
	}
	return nil
}

// CleanupAll runs Cleanup on every registered service, regardless of its
// current state; idempotent alongside StopAll's own per-service cleanup.
func (r *Registry) CleanupAll(ctx context.Context) {
	for _, name := range r.names() {
		sup, _ := r.Get(name)
		sup.Cleanup(ctx)
	}
}

// States snapshots every service's current state, keyed by name.
func (r *Registry) States() map[string]State {
	out := make(map[string]State)
	for _, name := range r.names() {
		sup, _ := r.Get(name)
		out[name] = sup.State()
	}
	return out
}
