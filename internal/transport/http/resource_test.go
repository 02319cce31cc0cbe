package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/coreframe/coreframe/internal/entity"
	"github.com/coreframe/coreframe/internal/identity"
	"github.com/coreframe/coreframe/internal/permission"
	"github.com/coreframe/coreframe/internal/shared"
	transporthttp "github.com/coreframe/coreframe/internal/transport/http"
)

type widget struct {
	entity.Base
	Name string `json:"Name"`
}

func (w *widget) Base_() *entity.Base { return &w.Base }

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

type fakeGrantStore struct{}

func (fakeGrantStore) GrantsFor(ctx context.Context, kind string, id identity.UUID) ([]permission.Grant, error) {
	return nil, nil
}

type fakeHierarchyStore struct{}

func (fakeHierarchyStore) LoadTeams(ctx context.Context) ([]identity.Team, error) { return nil, nil }
func (fakeHierarchyStore) LoadRoles(ctx context.Context) ([]identity.Role, error) { return nil, nil }

func newWidgetManager(t *testing.T) *entity.Manager[widget, *widget] {
	t.Helper()

	sysIDs := identity.SystemIDs{Root: uuid.New(), System: uuid.New(), Template: uuid.New()}
	hierarchy := identity.NewHierarchy(fakeHierarchyStore{}, nil, 5, slog.Default())
	require.NoError(t, hierarchy.Reload(context.Background()))

	kinds := permission.NewStaticKindRegistry()
	kinds.Register("widget", permission.KindPolicy{UserScoped: true})
	registry := entity.NewRegistry()
	engine := permission.NewEngine(sysIDs, hierarchy, registry, fakeGrantStore{}, kinds)

	desc := entity.Description{
		Kind:   "widget",
		Policy: permission.KindPolicy{UserScoped: true},
		Fields: []entity.FieldSpec{{Name: "Name", Sortable: true, Filterable: true}},
	}
	hooks := entity.NewHookRegistry(slog.Default())
	hooks.Seal()
	mgr := entity.NewManager[widget, *widget](desc, entity.NewMemoryStore[widget, *widget](), fakeBeginner{}, engine, registry, hooks, entity.NewValidator(), nil)
	registry.Register("widget", mgr.RecordLookup())
	return mgr
}

func TestResourceCreateAndGet(t *testing.T) {
	mgr := newWidgetManager(t)
	r := chi.NewRouter()
	r.Route("/widgets", transporthttp.NewResource("widget", "widgets", mgr).Mount)

	owner := uuid.New()
	principal := identity.SimplePrincipal{PrincipalID: owner}

	body := map[string]any{
		"widget": map[string]any{
			"user_id": owner,
			"Name":    "gizmo",
		},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/widgets/", bytes.NewReader(payload))
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, 201, rec.Code)

	var created widget
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "gizmo", created.Name)

	getReq := httptest.NewRequest("GET", "/widgets/"+created.ID.String(), nil)
	getReq = getReq.WithContext(shared.ContextWithPrincipal(getReq.Context(), principal))
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, getReq)
	require.Equal(t, 200, getRec.Code)
}

func TestResourceCreateBatch(t *testing.T) {
	mgr := newWidgetManager(t)
	r := chi.NewRouter()
	r.Route("/widgets", transporthttp.NewResource("widget", "widgets", mgr).Mount)

	owner := uuid.New()
	principal := identity.SimplePrincipal{PrincipalID: owner}

	body := map[string]any{
		"widgets": []map[string]any{
			{"user_id": owner, "Name": "sprocket"},
			{"user_id": owner, "Name": "cog"},
		},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/widgets/", bytes.NewReader(payload))
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, 201, rec.Code)

	var result struct {
		Created []widget          `json:"created"`
		Failed  map[string]string `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Created, 2)
	require.Empty(t, result.Failed)
}

func TestResourceGetDeniedRendersAsNotFound(t *testing.T) {
	mgr := newWidgetManager(t)
	r := chi.NewRouter()
	r.Route("/widgets", transporthttp.NewResource("widget", "widgets", mgr).Mount)

	owner := uuid.New()
	rec, err := mgr.Create(context.Background(), identity.SimplePrincipal{PrincipalID: owner}, permission.Draft{UserID: &owner}, func(w *widget) {
		w.Name = "gizmo"
	})
	require.NoError(t, err)

	stranger := identity.SimplePrincipal{PrincipalID: uuid.New()}
	getReq := httptest.NewRequest("GET", "/widgets/"+rec.ID.String(), nil)
	getReq = getReq.WithContext(shared.ContextWithPrincipal(getReq.Context(), stranger))
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, getReq)
	require.Equal(t, 404, getRec.Code)
}
