package entity

import (
	"context"
	"log/slog"
)

// Phase names the pipeline stage a hook fires around (spec §4.C "lifecycle hooks").
type Phase int

const (
	BeforeCreate Phase = iota
	AfterCreate
	BeforeUpdate
	AfterUpdate
	BeforeDelete
	AfterDelete
)

// Event carries the data a hook needs. For BeforeCreate, Record is the
// built, not-yet-persisted record, which the hook may mutate; Previous is nil
// except for BeforeUpdate/AfterUpdate.
// Patch is the mutable draft patch for BeforeUpdate only (spec §4.C "before
// receives a mutable draft and may mutate it") — since it is the same map
// Manager.Update goes on to apply, a hook mutating it changes what gets
// persisted.
type Event struct {
	Kind     string
	ActorID  UUID
	Record   any
	Previous any
	Patch    map[string]any
}

// Hook is invoked at a Phase. A non-critical hook's error is logged and
// swallowed; a critical hook's error aborts the operation (and, for after*
// phases, unwinds the enclosing transaction the caller opened).
type Hook func(ctx context.Context, ev Event) error

type registeredHook struct {
	name     string
	fn       Hook
	critical bool
}

// hookKey is the registry's actual index: spec §4.C keys the hook table by
// (manager_kind, op, phase); Phase already folds op and before/after
// together (BeforeCreate, AfterCreate, ...), so kind is the other half.
type hookKey struct {
	kind  string
	phase Phase
}

// HookRegistry holds the ordered hook chain per (kind, phase). Extensions
// append to it during Loader.Load (spec §4.D); once the extension loader has
// finished, the registry is sealed and further Register calls panic,
// matching the "append-only after load" invariant of spec §4.D.
type HookRegistry struct {
	logger *slog.Logger
	hooks  map[hookKey][]registeredHook
	sealed bool
}

// NewHookRegistry constructs an empty, unsealed registry.
func NewHookRegistry(logger *slog.Logger) *HookRegistry {
	return &HookRegistry{logger: logger, hooks: make(map[hookKey][]registeredHook)}
}

// Register appends fn to (kind, phase)'s chain, in call order. Registration
// is idempotent by (kind, phase, name) (spec §4.C "Registration is
// idempotent by (extension id, op, phase, function id)"): re-registering the
// same name for the same kind and phase is a no-op, so re-running an
// extension initializer never double-registers its hooks. Panics if the
// registry has been sealed via Seal.
func (r *HookRegistry) Register(kind string, phase Phase, name string, critical bool, fn Hook) {
	if r.sealed {
		panic("entity: HookRegistry.Register called after Seal")
	}
	key := hookKey{kind: kind, phase: phase}
	for _, h := range r.hooks[key] {
		if h.name == name {
			return
		}
	}
	r.hooks[key] = append(r.hooks[key], registeredHook{name: name, fn: fn, critical: critical})
}

// Seal prevents further Register calls. Called once extension loading (spec
// §4.D) has finished registering every hook it provides.
func (r *HookRegistry) Seal() { r.sealed = true }

// run executes ev.Kind's phase hook chain in order. It returns the first
// critical hook's error; non-critical hook errors are logged and execution
// continues.
func (r *HookRegistry) run(ctx context.Context, phase Phase, ev Event) error {
	for _, h := range r.hooks[hookKey{kind: ev.Kind, phase: phase}] {
		if err := h.fn(ctx, ev); err != nil {
			if h.critical {
				return err
			}
			r.logger.Warn("non-critical hook failed",
				"hook", h.name, "phase", int(phase), "kind", ev.Kind, "error", err)
		}
	}
	return nil
}
