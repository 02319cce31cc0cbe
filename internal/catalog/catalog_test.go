package catalog_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/coreframe/coreframe/internal/catalog"
	"github.com/coreframe/coreframe/internal/entity"
	"github.com/coreframe/coreframe/internal/identity"
	"github.com/coreframe/coreframe/internal/permission"
)

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

func (fakeBeginner) Begin(ctx context.Context) (entity.Session, error) { return noopQuerier{}, nil }

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

func newCatalog(t *testing.T) (*catalog.Catalog, identity.SystemIDs, identity.UUID, identity.UUID) {
	t.Helper()

	sysIDs := identity.SystemIDs{Root: uuid.New(), System: uuid.New(), Template: uuid.New()}
	adminRole := identity.Role{ID: uuid.New(), Name: "admin"}
	team := identity.Team{ID: uuid.New()}

	hierarchy := identity.NewHierarchy(fakeHierarchyStore{
		teams: []identity.Team{team},
		roles: []identity.Role{adminRole},
	}, nil, 5, slog.Default())
	require.NoError(t, hierarchy.Reload(context.Background()))

	kinds := permission.NewStaticKindRegistry()
	registry := entity.NewRegistry()
	engine := permission.NewEngine(sysIDs, hierarchy, registry, fakeGrantStore{}, kinds)
	hooks := entity.NewHookRegistry(slog.Default())
	hooks.Seal()

	stores := catalog.Stores{
		Providers:     entity.NewMemoryStore[catalog.Provider, *catalog.Provider](),
		Projects:      entity.NewMemoryStore[catalog.Project, *catalog.Project](),
		Conversations: entity.NewMemoryStore[catalog.Conversation, *catalog.Conversation](),
	}

	c := catalog.New(stores, fakeBeginner{}, engine, registry, kinds, hooks, entity.NewValidator())
	return c, sysIDs, team.ID, adminRole.ID
}

// TestConversationInheritsPublicViewThroughProviderChain exercises a
// reference chain of depth two (conversation -> project -> provider) and
// confirms that because the Provider ancestor was created by SYSTEM (a
// globally viewable record under rule (e)), View access flows all the way
// down to the Conversation through rule (j)'s ANY-grant walk, even for a
// principal who never touched the Project or the Conversation directly.
func TestConversationInheritsPublicViewThroughProviderChain(t *testing.T) {
	c, sysIDs, teamID, adminRoleID := newCatalog(t)
	ctx := context.Background()
	system := identity.SimplePrincipal{PrincipalID: sysIDs.System}

	provider, err := c.Providers.Create(ctx, system, permission.Draft{}, func(p *catalog.Provider) {
		p.Name = "openai"
		p.APIBaseURL = "https://api.openai.com"
	})
	require.NoError(t, err)

	owner := uuid.New()
	ownerPrincipal := identity.SimplePrincipal{
		PrincipalID: owner,
		Memberships: []identity.TeamMembership{{TeamID: teamID, RoleID: adminRoleID, Enabled: true}},
	}
	project, err := c.Projects.Create(ctx, ownerPrincipal, permission.Draft{
		UserID:     &owner,
		References: map[string]permission.Reference{"provider": catalog.ProviderReference(provider.ID)},
	}, func(p *catalog.Project) {
		p.Name = "research"
		p.ProviderID = provider.ID
	})
	require.NoError(t, err)

	conversation, err := c.Conversations.Create(ctx, ownerPrincipal, permission.Draft{
		TeamID:          &teamID,
		References:      map[string]permission.Reference{"project": catalog.ProjectReference(project.ID)},
		CreateReference: "project",
	}, func(conv *catalog.Conversation) {
		conv.Title = "kickoff"
		conv.ProjectID = project.ID
	})
	require.NoError(t, err)

	passerby := identity.SimplePrincipal{PrincipalID: uuid.New()}
	got, _, err := c.Conversations.Get(ctx, passerby, conversation.ID)
	require.NoError(t, err)
	require.Equal(t, conversation.ID, got.ID)
}

// TestConversationDeniesStrangerWithoutPublicAncestor confirms the ANY-grant
// walk still denies access when no ancestor in the reference chain is
// publicly viewable: a Conversation referencing a Project with no Provider
// reference at all is invisible to anyone outside its team.
func TestConversationDeniesStrangerWithoutPublicAncestor(t *testing.T) {
	c, _, teamID, adminRoleID := newCatalog(t)
	ctx := context.Background()

	owner := uuid.New()
	ownerPrincipal := identity.SimplePrincipal{
		PrincipalID: owner,
		Memberships: []identity.TeamMembership{{TeamID: teamID, RoleID: adminRoleID, Enabled: true}},
	}
	project, err := c.Projects.Create(ctx, ownerPrincipal, permission.Draft{UserID: &owner}, func(p *catalog.Project) {
		p.Name = "private-research"
	})
	require.NoError(t, err)

	conversation, err := c.Conversations.Create(ctx, ownerPrincipal, permission.Draft{
		TeamID:          &teamID,
		References:      map[string]permission.Reference{"project": catalog.ProjectReference(project.ID)},
		CreateReference: "project",
	}, func(conv *catalog.Conversation) {
		conv.Title = "confidential"
		conv.ProjectID = project.ID
	})
	require.NoError(t, err)

	stranger := identity.SimplePrincipal{PrincipalID: uuid.New()}
	_, _, err = c.Conversations.Get(ctx, stranger, conversation.ID)
	require.Error(t, err)
	require.Equal(t, entity.KindPermissionDenied, entity.KindOf(err))

	got, _, err := c.Conversations.Get(ctx, ownerPrincipal, conversation.ID)
	require.NoError(t, err)
	require.Equal(t, conversation.ID, got.ID)
}

// TestProviderIsSystemProtected confirms an ordinary principal cannot
// create a Provider (spec §3 invariant 2).
func TestProviderIsSystemProtected(t *testing.T) {
	c, _, _, _ := newCatalog(t)
	ctx := context.Background()
	user := identity.SimplePrincipal{PrincipalID: uuid.New()}

	_, err := c.Providers.Create(ctx, user, permission.Draft{}, func(p *catalog.Provider) {
		p.Name = "shadow"
	})
	require.Error(t, err)
	require.Equal(t, entity.KindPermissionDenied, entity.KindOf(err))
}
