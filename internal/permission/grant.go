package permission

import (
	"time"

	"github.com/coreframe/coreframe/internal/identity"
)

// UUID aliases identity.UUID so callers don't need to import both packages
// just to build a Grant.
type UUID = identity.UUID

// SubjectKind discriminates the three grant subject shapes of spec §3.
type SubjectKind int

const (
	SubjectUser SubjectKind = iota
	SubjectTeam
	SubjectRole
)

// Subject is the target of a Grant: a user, a team, or any role dominating
// the principal's role.
type Subject struct {
	Kind SubjectKind
	ID   UUID
}

// Grant is a `{resource_kind, resource_id, subject, can_*, expires_at?}`
// permission grant (spec §3).
type Grant struct {
	ResourceKind string
	ResourceID   UUID
	Subject      Subject
	CanView      bool
	CanExecute   bool
	CanCopy      bool
	CanEdit      bool
	CanDelete    bool
	CanShare     bool
	ExpiresAt    *time.Time
}

// Allows reports whether the grant's boolean for level is set.
func (g Grant) Allows(level AccessLevel) bool {
	switch level {
	case View:
		return g.CanView
	case Execute:
		return g.CanExecute
	case Copy:
		return g.CanCopy
	case Edit:
		return g.CanEdit
	case Delete:
		return g.CanDelete
	case Share:
		return g.CanShare
	default:
		return false
	}
}

// Active reports whether the grant has not expired (spec §3 invariant 3).
func (g Grant) Active(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// Reference names a permission_reference: the attribute name and the
// (kind, id) of the entity it points to.
type Reference struct {
	Kind string
	ID   UUID
}

// Record is the minimal shape the engine needs to reason about any managed
// entity, independent of its concrete Go struct (spec §3 "Entity (generic)").
type Record struct {
	ID              UUID
	Kind            string
	CreatedBy       UUID
	UserID          *UUID
	TeamID          *UUID
	DeletedAt       *time.Time
	References      map[string]Reference
	CreateReference string
}

// KindPolicy declares kind-level (not per-record) traits the engine needs.
type KindPolicy struct {
	// System marks the kind as only mutable by ROOT/SYSTEM (spec §3 invariant 2).
	System bool
	// UserScoped marks that records of this kind are expected to carry a
	// direct owner (Record.UserID); set through entity.Description.Policy.
	UserScoped bool
	// TeamScoped marks that records of this kind are expected to carry a
	// team owner (Record.TeamID); set through entity.Description.Policy.
	TeamScoped bool
}

// Draft describes a not-yet-persisted record for the creation check of
// spec §4.B "Creation check".
type Draft struct {
	UserID          *UUID
	TeamID          *UUID
	References      map[string]Reference
	CreateReference string
}
