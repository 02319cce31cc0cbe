package entity

import (
	"context"

	"github.com/coreframe/coreframe/internal/permission"
)

// LookupFunc adapts a single kind's storage to permission.RecordLookup's
// per-kind lookup.
type LookupFunc func(ctx context.Context, id UUID) (permission.Record, bool, error)

// RecordLookup returns a LookupFunc backed by m's Store, used to register
// this kind with a shared Registry so a single permission.Engine can
// resolve references and hierarchy checks across every managed kind (spec
// §4.B rule j crosses kind boundaries via Reference.Kind).
func (m *Manager[T, PT]) RecordLookup() LookupFunc {
	return func(ctx context.Context, id UUID) (rec permission.Record, found bool, err error) {
		sess, ctx, owned, serr := m.session(ctx)
		if serr != nil {
			return permission.Record{}, false, serr
		}
		defer finish(ctx, sess, owned, &err)

		pt, ok, ferr := m.store.FindByID(ctx, sess, id, true)
		if ferr != nil {
			err = ferr
			return permission.Record{}, false, err
		}
		if !ok {
			return permission.Record{}, false, nil
		}
		return ToPermissionRecord(m.desc.Kind, pt.Base_(), m.desc.CreateReference), true, nil
	}
}

// RawLookupFunc resolves an id to a kind's full record, for relation
// hydration (spec §4.C "relation inclusion") — unlike LookupFunc, which
// projects down to the permission-facing Record used by the engine.
type RawLookupFunc func(ctx context.Context, id UUID) (any, bool, error)

// RawLookup returns a RawLookupFunc backed by m's Store, used to hydrate
// this kind when another kind's record declares a relation into it.
func (m *Manager[T, PT]) RawLookup() RawLookupFunc {
	return func(ctx context.Context, id UUID) (rec any, found bool, err error) {
		sess, ctx, owned, serr := m.session(ctx)
		if serr != nil {
			return nil, false, serr
		}
		defer finish(ctx, sess, owned, &err)

		pt, ok, ferr := m.store.FindByID(ctx, sess, id, true)
		if ferr != nil {
			err = ferr
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		return pt, true, nil
	}
}

// Registry aggregates per-kind LookupFuncs into a single permission.RecordLookup.
type Registry struct {
	lookups    map[string]LookupFunc
	rawLookups map[string]RawLookupFunc
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{lookups: make(map[string]LookupFunc), rawLookups: make(map[string]RawLookupFunc)}
}

// Register wires kind's lookup into the registry. Typically called once per
// Manager during application assembly.
func (r *Registry) Register(kind string, fn LookupFunc) {
	r.lookups[kind] = fn
}

// RegisterRaw wires kind's full-record lookup into the registry, so any
// manager's declared relations into kind can be hydrated.
func (r *Registry) RegisterRaw(kind string, fn RawLookupFunc) {
	r.rawLookups[kind] = fn
}

// Lookup implements permission.RecordLookup by dispatching to the
// registered kind's LookupFunc.
func (r *Registry) Lookup(ctx context.Context, kind string, id UUID) (permission.Record, bool, error) {
	fn, ok := r.lookups[kind]
	if !ok {
		return permission.Record{}, false, nil
	}
	return fn(ctx, id)
}

// LookupRaw dispatches to kind's registered RawLookupFunc. An unregistered
// kind (a relation declared against a kind with no manager wired in this
// process) is reported as not found rather than an error.
func (r *Registry) LookupRaw(ctx context.Context, kind string, id UUID) (any, bool, error) {
	fn, ok := r.rawLookups[kind]
	if !ok {
		return nil, false, nil
	}
	return fn(ctx, id)
}
