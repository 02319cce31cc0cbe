package entity

import (
	"context"
	"fmt"

	"github.com/coreframe/coreframe/internal/shared"
)

// auditRecorder is the subset of *shared.AuditLogger the audit hook needs,
// so tests can substitute a fake without a database.
type auditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// RegisterAuditHook attaches non-critical AfterCreate/AfterUpdate/AfterDelete
// hooks that write to recorder, for every kind named in kinds, so every
// mutation of those kinds leaves a trail through one shared hook, instead
// of each vertical calling an audit logger ad hoc
// (spec §4.C hook table; grounded on internal/shared/audit.go's own doc
// comment describing this wiring). The registry is keyed by kind, so unlike
// a per-manager hook this one is registered explicitly for every kind it
// should observe rather than implicitly for all of them.
func RegisterAuditHook(hooks *HookRegistry, recorder auditRecorder, kinds []string) {
	record := func(action string) Hook {
		return func(ctx context.Context, ev Event) error {
			m, ok := ev.Record.(Model)
			if !ok {
				return nil
			}
			return recorder.Record(ctx, shared.AuditLog{
				ActorID:  ev.ActorID,
				Action:   action,
				Entity:   ev.Kind,
				EntityID: fmt.Sprint(m.Base_().ID),
			})
		}
	}
	for _, kind := range kinds {
		hooks.Register(kind, AfterCreate, "audit.create", false, record("create"))
		hooks.Register(kind, AfterUpdate, "audit.update", false, record("update"))
		hooks.Register(kind, AfterDelete, "audit.delete", false, record("delete"))
	}
}
