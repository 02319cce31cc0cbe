package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/coreframe/coreframe/internal/shared"
)

// Item is one seed entry: a named unit of reference data that may declare
// dependencies on other items by name, resolved in foreign-key order before
// insertion (spec §4.F).
type Item struct {
	Name      string
	DependsOn []string
	Apply     func(ctx context.Context) (created bool, err error)
}

// Registrar collects Items during application assembly.
type Registrar struct {
	items []Item
}

// NewRegistrar constructs an empty Registrar.
func NewRegistrar() *Registrar { return &Registrar{} }

// Register appends item.
func (r *Registrar) Register(item Item) { r.items = append(r.items, item) }

func (r *Registrar) order() ([]Item, error) {
	byName := make(map[string]Item, len(r.items))
	for _, it := range r.items {
		byName[it.Name] = it
	}
	indegree := make(map[string]int, len(r.items))
	edges := make(map[string][]string)
	for _, it := range r.items {
		if _, ok := indegree[it.Name]; !ok {
			indegree[it.Name] = 0
		}
		for _, dep := range it.DependsOn {
			edges[dep] = append(edges[dep], it.Name)
			indegree[it.Name]++
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []Item
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, byName[name])
		next := append([]string(nil), edges[name]...)
		sort.Strings(next)
		for _, dependent := range next {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(r.items) {
		return nil, errors.New("seed: dependency cycle among seed items")
	}
	return order, nil
}

// Seeder runs every registered Item, in dependency order, guarded by a
// startup lock so a multi-instance rollout seeds exactly once.
type Seeder struct {
	registrar *Registrar
	locker    *shared.Lock
	logger    *slog.Logger
}

// NewSeeder constructs a Seeder. lock may be nil for single-instance
// deployments and tests.
func NewSeeder(registrar *Registrar, lock *shared.Lock, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{registrar: registrar, locker: lock, logger: logger}
}

// Result reports how many items were newly created versus already present.
type Result struct {
	Created []string
	Skipped []string
}

// Run applies every registered Item in topological order.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	if s.locker != nil {
		if err := s.locker.Acquire(ctx); err != nil {
			if errors.Is(err, shared.ErrLockHeld) {
				s.logger.Info("seed: startup lock held by another instance, skipping")
				return Result{}, nil
			}
			return Result{}, err
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.locker.Release(releaseCtx); err != nil {
				s.logger.Warn("seed: release startup lock", "error", err)
			}
		}()
	}

	items, err := s.registrar.order()
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, item := range items {
		created, err := item.Apply(ctx)
		if err != nil {
			return res, fmt.Errorf("seed: apply %s: %w", item.Name, err)
		}
		if created {
			res.Created = append(res.Created, item.Name)
		} else {
			res.Skipped = append(res.Skipped, item.Name)
		}
	}
	s.logger.Info("seed: run complete", "created", len(res.Created), "skipped", len(res.Skipped))
	return res, nil
}
