package permission

import "context"

// RecordLookup resolves a (kind, id) pair to its permission-relevant shape.
// The engine's session abstraction (internal/entity) implements this against
// the relational store; ok is false only when the row is entirely absent
// (soft-deleted rows are still returned, with DeletedAt set, so Check can
// apply invariant 1 itself).
type RecordLookup interface {
	Lookup(ctx context.Context, kind string, id UUID) (Record, bool, error)
}

// GrantStore lists the still-possibly-active grants targeting (kind, id),
// sorted soonest-expiring-first so Check can apply the tie-break rule of
// spec §4.B ("grants expiring earlier are evaluated first so that the
// strongest still-valid grant applies").
type GrantStore interface {
	GrantsFor(ctx context.Context, kind string, id UUID) ([]Grant, error)
}

// KindRegistry answers whether a kind is system-protected.
type KindRegistry interface {
	Policy(kind string) (KindPolicy, bool)
}

// StaticKindRegistry is a simple map-backed KindRegistry, sufficient for a
// process that registers its entity kinds once at startup.
type StaticKindRegistry struct {
	policies map[string]KindPolicy
}

// NewStaticKindRegistry constructs an empty registry.
func NewStaticKindRegistry() *StaticKindRegistry {
	return &StaticKindRegistry{policies: make(map[string]KindPolicy)}
}

// Register declares the policy for kind.
func (r *StaticKindRegistry) Register(kind string, policy KindPolicy) {
	r.policies[kind] = policy
}

// Policy implements KindRegistry.
func (r *StaticKindRegistry) Policy(kind string) (KindPolicy, bool) {
	p, ok := r.policies[kind]
	return p, ok
}
