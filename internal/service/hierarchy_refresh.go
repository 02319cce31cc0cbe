package service

import (
	"context"
	"time"

	"github.com/coreframe/coreframe/internal/identity"
)

// HierarchyRefresh is a demonstration Service: it periodically reloads the
// identity.Hierarchy snapshot, providing a supervised backstop alongside
// the Redis pub/sub invalidation identity.Hierarchy.WatchInvalidations
// already does, for deployments that run without a shared Redis instance.
type HierarchyRefresh struct {
	hierarchy *identity.Hierarchy
	interval  time.Duration
}

// NewHierarchyRefresh constructs a HierarchyRefresh ticking every interval.
func NewHierarchyRefresh(hierarchy *identity.Hierarchy, interval time.Duration) *HierarchyRefresh {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HierarchyRefresh{hierarchy: hierarchy, interval: interval}
}

// Name implements Service.
func (h *HierarchyRefresh) Name() string { return "hierarchy-refresh" }

// Interval implements Service.
func (h *HierarchyRefresh) Interval() time.Duration { return h.interval }

// Update implements Service.
func (h *HierarchyRefresh) Update(ctx context.Context) error {
	return h.hierarchy.Reload(ctx)
}

// Cleanup implements Service. Reloading the hierarchy leaves no per-run
// resource to release.
func (h *HierarchyRefresh) Cleanup(context.Context) error { return nil }
