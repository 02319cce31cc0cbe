// Package entity implements the generic CRUD pipeline of spec §4.C: shared
// validation, before/after hook dispatch, audit stamping, soft delete,
// batch error aggregation, search transformers, field projection and
// relation inclusion.
package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreframe/coreframe/internal/permission"
)

// UUID aliases uuid.UUID so callers of this package don't need a separate import.
type UUID = uuid.UUID

// Base carries the audit and ownership fields every managed entity has
// (spec §3 "Entity (generic)"). Concrete record types embed Base and
// implement Model with a pointer receiver, e.g.:
//
//	type Project struct {
//	    entity.Base
//	    Name string
//	}
//	func (p *Project) Base_() *entity.Base { return &p.Base }
type Base struct {
	ID        uuid.UUID
	CreatedAt time.Time
	CreatedBy uuid.UUID
	UpdatedAt *time.Time
	UpdatedBy *uuid.UUID
	DeletedAt *time.Time
	DeletedBy *uuid.UUID
	UserID    *uuid.UUID
	TeamID    *uuid.UUID

	// References holds this record's populated permission_references by
	// declared name (spec §3, §4.B rule j).
	References map[string]permission.Reference
}

// Model is implemented by every managed record type via a pointer receiver
// so the generic pipeline can read and stamp the common fields without
// reflection.
type Model interface {
	Base_() *Base
}

// ToPermissionRecord projects a Base plus its kind into the shape the
// permission engine reasons about.
func ToPermissionRecord(kind string, b *Base, createRef string) permission.Record {
	return permission.Record{
		ID:              b.ID,
		Kind:            kind,
		CreatedBy:       b.CreatedBy,
		UserID:          b.UserID,
		TeamID:          b.TeamID,
		DeletedAt:       b.DeletedAt,
		References:      b.References,
		CreateReference: createRef,
	}
}
