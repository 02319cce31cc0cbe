package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// InvalidationChannel is the Redis pub/sub channel used to tell every
// process instance that the role/team forest changed and its cached
// snapshot must be reloaded (spec §5 "invalidated atomically on structural
// changes; readers observe a consistent snapshot").
const InvalidationChannel = "coreframe:identity:hierarchy:invalidate"

// Snapshot is an immutable view of the team and role forests.
type Snapshot struct {
	Teams        map[UUID]Team
	Roles        map[UUID]Role
	MaxTeamDepth int
}

// Store loads the current team and role forests, typically from the
// relational session.
type Store interface {
	LoadTeams(ctx context.Context) ([]Team, error)
	LoadRoles(ctx context.Context) ([]Role, error)
}

// Hierarchy is the process-wide, append-mostly cache of team and role
// forests. Reads never block on writers: the current Snapshot is swapped
// atomically (spec §5, §9 "role/team caches expose atomic read snapshots").
type Hierarchy struct {
	store   Store
	redis   *redis.Client
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]
	maxDep  int
}

// NewHierarchy constructs a Hierarchy. redisClient may be nil, in which case
// invalidation is local-process only (fine for tests and single-instance
// deployments).
func NewHierarchy(store Store, redisClient *redis.Client, maxTeamDepth int, logger *slog.Logger) *Hierarchy {
	if maxTeamDepth <= 0 {
		maxTeamDepth = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hierarchy{store: store, redis: redisClient, logger: logger, maxDep: maxTeamDepth}
}

// Reload rebuilds the snapshot from the store and swaps it in atomically.
func (h *Hierarchy) Reload(ctx context.Context) error {
	teams, err := h.store.LoadTeams(ctx)
	if err != nil {
		return err
	}
	roles, err := h.store.LoadRoles(ctx)
	if err != nil {
		return err
	}
	snap := &Snapshot{
		Teams:        make(map[UUID]Team, len(teams)),
		Roles:        make(map[UUID]Role, len(roles)),
		MaxTeamDepth: h.maxDep,
	}
	for _, t := range teams {
		snap.Teams[t.ID] = t
	}
	for _, r := range roles {
		snap.Roles[r.ID] = r
	}
	h.current.Store(snap)
	return nil
}

// snapshot returns the current snapshot, or an empty one (without
// reloading) if none has been loaded yet, so callers never see a nil pointer.
func (h *Hierarchy) snapshot() *Snapshot {
	snap := h.current.Load()
	if snap == nil {
		snap = &Snapshot{Teams: map[UUID]Team{}, Roles: map[UUID]Role{}, MaxTeamDepth: h.maxDep}
	}
	return snap
}

// TeamAncestors returns id and every ancestor of id up to MaxTeamDepth,
// inclusive, stopping early (without error) if a cycle is somehow present.
func (h *Hierarchy) TeamAncestors(id UUID) []UUID {
	snap := h.snapshot()
	seen := map[UUID]struct{}{}
	var chain []UUID
	cur := id
	for depth := 0; depth <= snap.MaxTeamDepth; depth++ {
		if _, ok := seen[cur]; ok {
			break
		}
		seen[cur] = struct{}{}
		chain = append(chain, cur)
		team, ok := snap.Teams[cur]
		if !ok || team.ParentTeamID == nil {
			break
		}
		cur = *team.ParentTeamID
	}
	return chain
}

// TeamContains reports whether target is id or one of id's ancestors within
// the configured depth bound.
func (h *Hierarchy) TeamContains(id, target UUID) bool {
	for _, ancestor := range h.TeamAncestors(id) {
		if ancestor == target {
			return true
		}
	}
	return false
}

// RoleDominates reports whether role a dominates role b: a == b, or a is an
// ancestor of b in the role forest (spec glossary "Dominates").
func (h *Hierarchy) RoleDominates(a, b UUID) bool {
	if a == b {
		return true
	}
	snap := h.snapshot()
	seen := map[UUID]struct{}{}
	cur := b
	for {
		if _, ok := seen[cur]; ok {
			return false
		}
		seen[cur] = struct{}{}
		role, ok := snap.Roles[cur]
		if !ok || role.ParentRoleID == nil {
			return false
		}
		cur = *role.ParentRoleID
		if cur == a {
			return true
		}
	}
}

// RoleName returns the role's declared name, if known.
func (h *Hierarchy) RoleName(id UUID) (string, bool) {
	snap := h.snapshot()
	r, ok := snap.Roles[id]
	return r.Name, ok
}

// RoleByName finds a role by its declared name (e.g. "user", "admin").
func (h *Hierarchy) RoleByName(name string) (Role, bool) {
	snap := h.snapshot()
	for _, r := range snap.Roles {
		if r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

// Invalidate reloads this process's snapshot and, if a Redis client is
// configured, publishes an invalidation so peer processes reload too.
func (h *Hierarchy) Invalidate(ctx context.Context) error {
	if err := h.Reload(ctx); err != nil {
		return err
	}
	if h.redis == nil {
		return nil
	}
	payload, _ := json.Marshal(struct{}{})
	return h.redis.Publish(ctx, InvalidationChannel, payload).Err()
}

// WatchInvalidations subscribes to the invalidation channel and reloads the
// snapshot whenever a peer publishes a change. It runs until ctx is done.
func (h *Hierarchy) WatchInvalidations(ctx context.Context) {
	if h.redis == nil {
		return
	}
	sub := h.redis.Subscribe(ctx, InvalidationChannel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := h.Reload(ctx); err != nil {
				h.logger.Error("identity: reload after invalidation", slog.Any("error", err))
			}
		}
	}
}
