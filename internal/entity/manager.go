package entity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coreframe/coreframe/internal/identity"
	"github.com/coreframe/coreframe/internal/permission"
)

const maxBatchConcurrency = 8

// Manager is the generic CRUD pipeline of spec §4.C: every operation opens
// or joins a Session, consults the permission.Engine, runs the declared
// lifecycle hooks, and delegates persistence to a Store.
type Manager[T any, PT interface {
	*T
	Model
}] struct {
	desc       Description
	store      Store[T, PT]
	sessions   Beginner
	engine     *permission.Engine
	registry   *Registry
	hooks      *HookRegistry
	validator  *Validator
	transforms *SearchTransformerRegistry
}

// NewManager wires a Manager for kind desc.Kind. registry resolves the
// records a declared relation points at, for List/Get inclusion; transforms
// may be nil for a manager that declares no search transformers.
func NewManager[T any, PT interface {
	*T
	Model
}](desc Description, store Store[T, PT], sessions Beginner, engine *permission.Engine, registry *Registry, hooks *HookRegistry, validator *Validator, transforms *SearchTransformerRegistry) *Manager[T, PT] {
	return &Manager[T, PT]{
		desc:       desc,
		store:      store,
		sessions:   sessions,
		engine:     engine,
		registry:   registry,
		hooks:      hooks,
		validator:  validator,
		transforms: transforms,
	}
}

// Description returns the kind's declared shape.
func (m *Manager[T, PT]) Description() Description { return m.desc }

// session joins ctx's Session if the caller already owns one, otherwise
// opens and attaches a new one (spec §4.C "join-or-own transactional
// boundary"). Only the call that opened it commits or rolls it back.
func (m *Manager[T, PT]) session(ctx context.Context) (Session, context.Context, bool, error) {
	if sess, ok := SessionFromContext(ctx); ok {
		return sess, ctx, false, nil
	}
	sess, err := m.sessions.Begin(ctx)
	if err != nil {
		return nil, ctx, false, Internal("entity.session", err)
	}
	return sess, WithSession(ctx, sess), true, nil
}

func finish(ctx context.Context, sess Session, owned bool, errp *error) {
	if !owned {
		return
	}
	if *errp != nil {
		_ = sess.Rollback(ctx)
		return
	}
	if cerr := sess.Commit(ctx); cerr != nil {
		*errp = Internal("entity.commit", cerr)
	}
}

func wrapStoreErr(op string, err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return Internal(op, err)
}

// Create validates draft against the permission engine's creation check
// (spec §4.B "creation check"), stamps audit fields, runs before/after
// hooks, and persists the record built by build.
func (m *Manager[T, PT]) Create(ctx context.Context, principal identity.Principal, draft permission.Draft, build func(PT)) (pt PT, err error) {
	const op = "entity.Create"

	sess, ctx, owned, err := m.session(ctx)
	if err != nil {
		return nil, err
	}
	defer finish(ctx, sess, owned, &err)

	decision, derr := m.engine.CanCreate(ctx, principal, m.desc.Kind, draft)
	if derr != nil {
		err = Internal(op, derr)
		return nil, err
	}
	if !decision.Granted {
		err = PermissionDenied(op, "not allowed to create "+m.desc.Kind)
		return nil, err
	}

	var zero T
	pt = PT(&zero)
	base := pt.Base_()
	base.ID = uuid.New()
	base.CreatedAt = time.Now().UTC()
	base.CreatedBy = principal.ID()
	base.UserID = draft.UserID
	base.TeamID = draft.TeamID
	if len(draft.References) > 0 {
		base.References = make(map[string]permission.Reference, len(draft.References))
		for name, ref := range draft.References {
			base.References[name] = ref
		}
	}
	if build != nil {
		build(pt)
	}

	if verr := m.validator.Struct(op, pt); verr != nil {
		err = verr
		return nil, err
	}

	if herr := m.hooks.run(ctx, BeforeCreate, Event{Kind: m.desc.Kind, ActorID: principal.ID(), Record: pt}); herr != nil {
		err = Internal(op, herr)
		return nil, err
	}

	if ierr := m.store.Insert(ctx, sess, pt); ierr != nil {
		err = wrapStoreErr(op, ierr)
		return nil, err
	}

	if herr := m.hooks.run(ctx, AfterCreate, Event{Kind: m.desc.Kind, ActorID: principal.ID(), Record: pt}); herr != nil {
		err = Internal(op, herr)
		return nil, err
	}

	return pt, nil
}

// Seed inserts a record with a caller-chosen deterministic id if, and only
// if, no record with that id already exists (spec §4.F "inserted if their
// declared id is absent (idempotent)"). Unlike Create, Seed bypasses the
// permission engine entirely — it is a trusted startup-only operation run
// under the SYSTEM principal — but still runs the before/after create hooks
// so extensions observe seeded records like any other.
func (m *Manager[T, PT]) Seed(ctx context.Context, actor UUID, id UUID, build func(PT)) (pt PT, created bool, err error) {
	const op = "entity.Seed"

	sess, ctx, owned, err := m.session(ctx)
	if err != nil {
		return nil, false, err
	}
	defer finish(ctx, sess, owned, &err)

	existing, found, ferr := m.store.FindByID(ctx, sess, id, true)
	if ferr != nil {
		err = wrapStoreErr(op, ferr)
		return nil, false, err
	}
	if found {
		return existing, false, nil
	}

	var zero T
	pt = PT(&zero)
	base := pt.Base_()
	base.ID = id
	base.CreatedAt = time.Now().UTC()
	base.CreatedBy = actor
	if build != nil {
		build(pt)
	}

	if herr := m.hooks.run(ctx, BeforeCreate, Event{Kind: m.desc.Kind, ActorID: actor, Record: pt}); herr != nil {
		err = Internal(op, herr)
		return nil, false, err
	}
	if ierr := m.store.Insert(ctx, sess, pt); ierr != nil {
		err = wrapStoreErr(op, ierr)
		return nil, false, err
	}
	if herr := m.hooks.run(ctx, AfterCreate, Event{Kind: m.desc.Kind, ActorID: actor, Record: pt}); herr != nil {
		err = Internal(op, herr)
		return nil, false, err
	}

	return pt, true, nil
}

// Get fetches id, applying spec §4.B rule (b) (soft-deleted invisible
// except to ROOT) and the View-level Check. opts optionally requests field
// projection and relation inclusion (spec §4.C operation table "get | id,
// include?, fields?"); an unknown field or relation name is rejected with a
// ValidationError before any I/O runs.
func (m *Manager[T, PT]) Get(ctx context.Context, principal identity.Principal, id UUID, opts ...GetOptions) (pt PT, included map[string]any, err error) {
	const op = "entity.Get"

	var opt GetOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	if verr := m.desc.ValidateFields(op, opt.Fields); verr != nil {
		return nil, nil, verr
	}
	if verr := m.desc.ValidateIncludes(op, opt.Include); verr != nil {
		return nil, nil, verr
	}

	sess, ctx, owned, err := m.session(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer finish(ctx, sess, owned, &err)

	includeDeleted := m.engine.SystemIDs.IsRoot(principal.ID())
	rec, found, ferr := m.store.FindByID(ctx, sess, id, includeDeleted)
	if ferr != nil {
		err = wrapStoreErr(op, ferr)
		return nil, nil, err
	}
	if !found {
		err = NotFound(op, m.desc.Kind+" not found")
		return nil, nil, err
	}

	decision, derr := m.engine.Check(ctx, principal, m.desc.Kind, id, permission.View)
	if derr != nil {
		err = Internal(op, derr)
		return nil, nil, err
	}
	if !decision.Granted {
		err = denialErr(op, m.desc.Kind, decision)
		return nil, nil, err
	}

	if len(opt.Include) > 0 {
		included, err = m.hydrate(ctx, rec, opt.Include)
		if err != nil {
			return nil, nil, err
		}
	}

	return rec, included, nil
}

func denialErr(op, kind string, decision permission.Decision) error {
	if decision.Reason == permission.ReasonNotFound {
		return NotFound(op, kind+" not found")
	}
	return PermissionDenied(op, "not allowed to access "+kind)
}

// List runs q against the kind's declared fields and the caller's
// permission.Predicate (spec §4.B operation "filter"). Query.Params is
// expanded through the manager's search transformers before the permission
// filter is consulted; an unsorted Query defaults to created_at desc with
// an id tie-break (spec §4.C "list" operation row).
func (m *Manager[T, PT]) List(ctx context.Context, principal identity.Principal, q Query) (res Result[PT], err error) {
	const op = "entity.List"

	if verr := m.desc.validateQuery(op, q); verr != nil {
		return Result[PT]{}, verr
	}

	q, terr := m.transforms.apply(op, q)
	if terr != nil {
		return Result[PT]{}, terr
	}
	q.Page = q.Page.normalize()
	if q.Sort == nil {
		q.Sort = &Sort{Field: "CreatedAt", Direction: Desc}
	}

	sess, ctx, owned, err := m.session(ctx)
	if err != nil {
		return Result[PT]{}, err
	}
	defer finish(ctx, sess, owned, &err)

	restriction, ferr := m.engine.Filter(ctx, principal, m.desc.Kind, permission.View)
	if ferr != nil {
		err = Internal(op, ferr)
		return Result[PT]{}, err
	}
	if q.IncludeDeleted && !restriction.AllowAll {
		q.IncludeDeleted = false
	}

	items, total, ferr2 := m.store.FindMany(ctx, sess, restriction, q)
	if ferr2 != nil {
		err = wrapStoreErr(op, ferr2)
		return Result[PT]{}, err
	}

	var included map[UUID]map[string]any
	if len(q.Include) > 0 {
		included = make(map[UUID]map[string]any, len(items))
		for _, item := range items {
			hydrated, herr := m.hydrate(ctx, item, q.Include)
			if herr != nil {
				err = herr
				return Result[PT]{}, err
			}
			if len(hydrated) > 0 {
				included[item.Base_().ID] = hydrated
			}
		}
	}

	return Result[PT]{Items: items, Pagination: newPagination(q.Page, total), Included: included}, nil
}

// Update applies patch to id after an Edit-level Check, stamping the actor
// and timestamp into the patch so the Store persists them alongside the
// caller's fields.
func (m *Manager[T, PT]) Update(ctx context.Context, principal identity.Principal, id UUID, patch map[string]any) (pt PT, err error) {
	const op = "entity.Update"

	sess, ctx, owned, err := m.session(ctx)
	if err != nil {
		return nil, err
	}
	defer finish(ctx, sess, owned, &err)

	decision, derr := m.engine.Check(ctx, principal, m.desc.Kind, id, permission.Edit)
	if derr != nil {
		err = Internal(op, derr)
		return nil, err
	}
	if !decision.Granted {
		err = denialErr(op, m.desc.Kind, decision)
		return nil, err
	}

	previous, found, ferr := m.store.FindByID(ctx, sess, id, false)
	if ferr != nil {
		err = wrapStoreErr(op, ferr)
		return nil, err
	}
	if !found {
		err = NotFound(op, m.desc.Kind+" not found")
		return nil, err
	}

	if herr := m.hooks.run(ctx, BeforeUpdate, Event{Kind: m.desc.Kind, ActorID: principal.ID(), Record: previous, Previous: previous, Patch: patch}); herr != nil {
		err = Internal(op, herr)
		return nil, err
	}

	actor := principal.ID()
	stamped := make(map[string]any, len(patch)+2)
	for k, v := range patch {
		stamped[k] = v
	}
	stamped["updated_at"] = time.Now().UTC()
	stamped["updated_by"] = actor

	updated, uerr := m.store.Update(ctx, sess, id, stamped)
	if uerr != nil {
		err = wrapStoreErr(op, uerr)
		return nil, err
	}

	if verr := m.validator.Struct(op, updated); verr != nil {
		err = verr
		return nil, err
	}

	if herr := m.hooks.run(ctx, AfterUpdate, Event{Kind: m.desc.Kind, ActorID: principal.ID(), Record: updated, Previous: previous}); herr != nil {
		err = Internal(op, herr)
		return nil, err
	}

	return updated, nil
}

// Delete soft-deletes id after a Delete-level Check.
func (m *Manager[T, PT]) Delete(ctx context.Context, principal identity.Principal, id UUID) (err error) {
	const op = "entity.Delete"

	sess, ctx, owned, err := m.session(ctx)
	if err != nil {
		return err
	}
	defer finish(ctx, sess, owned, &err)

	decision, derr := m.engine.Check(ctx, principal, m.desc.Kind, id, permission.Delete)
	if derr != nil {
		return Internal(op, derr)
	}
	if !decision.Granted {
		return denialErr(op, m.desc.Kind, decision)
	}

	rec, found, ferr := m.store.FindByID(ctx, sess, id, false)
	if ferr != nil {
		return wrapStoreErr(op, ferr)
	}
	if !found {
		return NotFound(op, m.desc.Kind+" not found")
	}

	if herr := m.hooks.run(ctx, BeforeDelete, Event{Kind: m.desc.Kind, ActorID: principal.ID(), Record: rec}); herr != nil {
		return Internal(op, herr)
	}

	if serr := m.store.SoftDelete(ctx, sess, id, principal.ID()); serr != nil {
		return wrapStoreErr(op, serr)
	}

	if herr := m.hooks.run(ctx, AfterDelete, Event{Kind: m.desc.Kind, ActorID: principal.ID(), Record: rec}); herr != nil {
		return Internal(op, herr)
	}

	return nil
}

// BatchResult reports the per-item outcome of a batch operation (spec §4.C
// "batch error aggregation"): each item runs in its own transaction, so one
// item's failure never rolls back another's success.
type BatchResult struct {
	Succeeded []UUID
	Failed    map[UUID]error
}

// BatchUpdate runs Update for every id in patches, each in its own Session,
// bounded to maxBatchConcurrency concurrent operations via errgroup.
func (m *Manager[T, PT]) BatchUpdate(ctx context.Context, principal identity.Principal, patches map[UUID]map[string]any) BatchResult {
	res := BatchResult{Failed: make(map[UUID]error)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatchConcurrency)
	for id, patch := range patches {
		id, patch := id, patch
		g.Go(func() error {
			_, err := m.Update(gctx, principal, id, patch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[id] = err
			} else {
				res.Succeeded = append(res.Succeeded, id)
			}
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// BatchDelete runs Delete for every id, each in its own Session, bounded to
// maxBatchConcurrency concurrent operations.
func (m *Manager[T, PT]) BatchDelete(ctx context.Context, principal identity.Principal, ids []UUID) BatchResult {
	res := BatchResult{Failed: make(map[UUID]error)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatchConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := m.Delete(gctx, principal, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[id] = err
			} else {
				res.Succeeded = append(res.Succeeded, id)
			}
			return nil
		})
	}
	_ = g.Wait()
	return res
}
