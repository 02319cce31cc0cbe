package entity_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/coreframe/coreframe/internal/entity"
	"github.com/coreframe/coreframe/internal/identity"
	"github.com/coreframe/coreframe/internal/permission"
)

type widget struct {
	entity.Base
	Name string `validate:"required"`
}

func (w *widget) Base_() *entity.Base { return &w.Base }

// noopQuerier stubs Session's Querier methods; MemoryStore never calls them,
// so tests never touch a real database.
type noopQuerier struct{}

func (noopQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (noopQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (noopQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (noopQuerier) Commit(ctx context.Context) error                             { return nil }
func (noopQuerier) Rollback(ctx context.Context) error                           { return nil }

type fakeBeginner struct{}

func (fakeBeginner) Begin(ctx context.Context) (entity.Session, error) {
	return noopQuerier{}, nil
}

func newTestSetup(t *testing.T) (*entity.Manager[widget, *widget], identity.SystemIDs, identity.UUID, identity.UUID, identity.UUID) {
	t.Helper()

	rootID, systemID, templateID := uuid.New(), uuid.New(), uuid.New()
	sysIDs := identity.SystemIDs{Root: rootID, System: systemID, Template: templateID}

	adminRole := identity.Role{ID: uuid.New(), Name: "admin"}
	userRole := identity.Role{ID: uuid.New(), Name: "user", ParentRoleID: &adminRole.ID}
	team := identity.Team{ID: uuid.New()}

	store := fakeHierarchyStore{
		teams: []identity.Team{team},
		roles: []identity.Role{adminRole, userRole},
	}
	hierarchy := identity.NewHierarchy(store, nil, 5, slog.Default())
	require.NoError(t, hierarchy.Reload(context.Background()))

	kinds := permission.NewStaticKindRegistry()
	kinds.Register("widget", permission.KindPolicy{UserScoped: true, TeamScoped: true})

	registry := entity.NewRegistry()
	grants := fakeGrantStore{}
	engine := permission.NewEngine(sysIDs, hierarchy, registry, grants, kinds)

	desc := entity.Description{
		Kind:   "widget",
		Policy: permission.KindPolicy{UserScoped: true, TeamScoped: true},
		Fields: []entity.FieldSpec{
			{Name: "Name", Sortable: true, Filterable: true},
		},
	}
	store2 := entity.NewMemoryStore[widget, *widget]()
	hooks := entity.NewHookRegistry(slog.Default())
	hooks.Seal()
	mgr := entity.NewManager[widget, *widget](desc, store2, fakeBeginner{}, engine, registry, hooks, entity.NewValidator(), nil)
	registry.Register("widget", mgr.RecordLookup())

	return mgr, sysIDs, team.ID, userRole.ID, adminRole.ID
}

type fakeHierarchyStore struct {
	teams []identity.Team
	roles []identity.Role
}

func (s fakeHierarchyStore) LoadTeams(ctx context.Context) ([]identity.Team, error) { return s.teams, nil }
func (s fakeHierarchyStore) LoadRoles(ctx context.Context) ([]identity.Role, error) { return s.roles, nil }

type fakeGrantStore struct{}

func (fakeGrantStore) GrantsFor(ctx context.Context, kind string, id identity.UUID) ([]permission.Grant, error) {
	return nil, nil
}

func principalOwning(userID identity.UUID) identity.Principal {
	return identity.SimplePrincipal{PrincipalID: userID}
}

func TestManagerCreateAndGetOwnRecord(t *testing.T) {
	mgr, _, _, _, _ := newTestSetup(t)
	owner := uuid.New()
	principal := principalOwning(owner)

	rec, err := mgr.Create(context.Background(), principal, permission.Draft{UserID: &owner}, func(w *widget) {
		w.Name = "gizmo"
	})
	require.NoError(t, err)
	require.Equal(t, "gizmo", rec.Name)

	got, _, err := mgr.Get(context.Background(), principal, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
}

func TestManagerGetDeniesStranger(t *testing.T) {
	mgr, _, _, _, _ := newTestSetup(t)
	owner := uuid.New()
	stranger := principalOwning(uuid.New())

	rec, err := mgr.Create(context.Background(), principalOwning(owner), permission.Draft{UserID: &owner}, func(w *widget) {
		w.Name = "gizmo"
	})
	require.NoError(t, err)

	_, _, err = mgr.Get(context.Background(), stranger, rec.ID)
	require.Error(t, err)
	require.Equal(t, entity.KindPermissionDenied, entity.KindOf(err))
}

func TestManagerSoftDeleteInvisibleExceptRoot(t *testing.T) {
	mgr, sysIDs, _, _, _ := newTestSetup(t)
	owner := uuid.New()
	principal := principalOwning(owner)

	rec, err := mgr.Create(context.Background(), principal, permission.Draft{UserID: &owner}, func(w *widget) {
		w.Name = "gizmo"
	})
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(context.Background(), principal, rec.ID))

	_, _, err = mgr.Get(context.Background(), principal, rec.ID)
	require.Error(t, err)
	require.Equal(t, entity.KindNotFound, entity.KindOf(err))

	root := identity.SimplePrincipal{PrincipalID: sysIDs.Root}
	got, _, err := mgr.Get(context.Background(), root, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
}

func TestManagerTeamMembershipGrantsAccess(t *testing.T) {
	mgr, _, teamID, userRoleID, adminRoleID := newTestSetup(t)
	creator := identity.SimplePrincipal{
		PrincipalID: uuid.New(),
		Memberships: []identity.TeamMembership{{TeamID: teamID, RoleID: adminRoleID, Enabled: true}},
	}
	member := identity.SimplePrincipal{
		PrincipalID: uuid.New(),
		Memberships: []identity.TeamMembership{{TeamID: teamID, RoleID: userRoleID, Enabled: true}},
	}

	rec, err := mgr.Create(context.Background(), creator, permission.Draft{TeamID: &teamID}, func(w *widget) {
		w.Name = "shared"
	})
	require.NoError(t, err)

	got, _, err := mgr.Get(context.Background(), member, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
}

func TestManagerExpiredMembershipDeniesAccess(t *testing.T) {
	mgr, _, teamID, userRoleID, adminRoleID := newTestSetup(t)
	creator := identity.SimplePrincipal{
		PrincipalID: uuid.New(),
		Memberships: []identity.TeamMembership{{TeamID: teamID, RoleID: adminRoleID, Enabled: true}},
	}
	past := time.Now().Add(-time.Hour)
	member := identity.SimplePrincipal{
		PrincipalID: uuid.New(),
		Memberships: []identity.TeamMembership{{TeamID: teamID, RoleID: userRoleID, Enabled: true, ExpiresAt: &past}},
	}

	rec, err := mgr.Create(context.Background(), creator, permission.Draft{TeamID: &teamID}, func(w *widget) {
		w.Name = "shared"
	})
	require.NoError(t, err)

	_, _, err = mgr.Get(context.Background(), member, rec.ID)
	require.Error(t, err)
	require.Equal(t, entity.KindPermissionDenied, entity.KindOf(err))
}

func TestManagerBatchUpdatePartialSuccess(t *testing.T) {
	mgr, _, _, _, _ := newTestSetup(t)
	owner := uuid.New()
	principal := principalOwning(owner)

	ok, err := mgr.Create(context.Background(), principal, permission.Draft{UserID: &owner}, func(w *widget) { w.Name = "a" })
	require.NoError(t, err)

	res := mgr.BatchUpdate(context.Background(), principal, map[identity.UUID]map[string]any{
		ok.ID:      {"Name": "b"},
		uuid.New(): {"Name": "c"},
	})
	require.Len(t, res.Succeeded, 1)
	require.Len(t, res.Failed, 1)
}

func TestManagerSeedIsIdempotent(t *testing.T) {
	mgr, sysIDs, _, _, _ := newTestSetup(t)
	id := uuid.New()

	rec, created, err := mgr.Seed(context.Background(), sysIDs.System, id, func(w *widget) {
		w.Name = "first"
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "first", rec.Name)

	again, created, err := mgr.Seed(context.Background(), sysIDs.System, id, func(w *widget) {
		w.Name = "second"
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "first", again.Name)

	root := identity.SimplePrincipal{PrincipalID: sysIDs.Root}
	got, _, err := mgr.Get(context.Background(), root, id)
	require.NoError(t, err)
	require.Equal(t, "first", got.Name)
}

func TestManagerValidationRejectsEmptyName(t *testing.T) {
	mgr, _, _, _, _ := newTestSetup(t)
	owner := uuid.New()

	_, err := mgr.Create(context.Background(), principalOwning(owner), permission.Draft{UserID: &owner}, func(w *widget) {})
	require.Error(t, err)
	require.Equal(t, entity.KindValidation, entity.KindOf(err))
}
