// Package http translates the transport-neutral payload shapes of spec §6
// onto the generic entity.Manager contract, and maps the six-way error
// taxonomy to RFC7807 problem+json responses.
package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coreframe/coreframe/internal/entity"
	"github.com/coreframe/coreframe/internal/permission"
	"github.com/coreframe/coreframe/internal/platform/httpx"
	"github.com/coreframe/coreframe/internal/shared"
)

// Resource mounts the standard CRUD + batch + search routes for one
// entity.Manager[T, PT] under a chi.Router (spec §6 "payload shapes").
type Resource[T any, PT interface {
	*T
	entity.Model
}] struct {
	name    string
	plural  string
	manager *entity.Manager[T, PT]
}

// NewResource builds a Resource named name (singular) / plural for URL and
// payload-envelope purposes (spec §6 "Single: { entity_name: {...} }").
func NewResource[T any, PT interface {
	*T
	entity.Model
}](name, plural string, manager *entity.Manager[T, PT]) *Resource[T, PT] {
	return &Resource[T, PT]{name: name, plural: plural, manager: manager}
}

// Mount attaches the resource's routes to r.
func (res *Resource[T, PT]) Mount(r chi.Router) {
	r.Post("/", res.create)
	r.Get("/", res.list)
	r.Get("/{id}", res.get)
	r.Patch("/{id}", res.update)
	r.Delete("/{id}", res.delete)
	r.Patch("/", res.batchUpdate)
	r.Delete("/", res.batchDelete)
	r.Post("/search", res.search)
}

func idParam(r *http.Request) (entity.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// create handles `POST /` with body `{ entity_name: {...fields...} }`.
func (res *Resource[T, PT]) create(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}

	var envelope map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &envelope); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	// Batch create: `{ entity_name_plural: [ {...}, ... ] }` (spec §6).
	if plural, ok := envelope[res.plural]; ok {
		res.createBatch(w, r, plural)
		return
	}

	raw, ok := envelope[res.name]
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "missing \""+res.name+"\" key")
		return
	}

	var draft createEnvelope
	if err := json.Unmarshal(raw, &draft); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid \""+res.name+"\" payload")
		return
	}
	var shapeCheck T
	if err := json.Unmarshal(raw, PT(&shapeCheck)); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid \""+res.name+"\" fields")
		return
	}

	rec, err := res.manager.Create(r.Context(), principal, draft.toDraft(), func(target PT) {
		// Base_ fields are already stamped by Manager.Create; unmarshaling
		// directly onto target only fills the kind-specific fields present
		// in raw, leaving the stamped audit/ownership fields untouched. The
		// shape was already validated above so this cannot fail here.
		_ = json.Unmarshal(raw, target)
	})
	if err != nil {
		httpx.RespondEntityError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

// createBatch handles the `{ entity_name_plural: [ {...}, ... ] }` shape of
// `POST /` (spec §6 "Batch create"). Each item is created independently;
// one item's failure does not abort the rest.
func (res *Resource[T, PT]) createBatch(w http.ResponseWriter, r *http.Request, raw json.RawMessage) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid \""+res.plural+"\" payload")
		return
	}

	created := make([]PT, 0, len(items))
	failed := make(map[string]string)
	for i, item := range items {
		var draft createEnvelope
		if err := json.Unmarshal(item, &draft); err != nil {
			failed[strconv.Itoa(i)] = err.Error()
			continue
		}
		var shapeCheck T
		if err := json.Unmarshal(item, PT(&shapeCheck)); err != nil {
			failed[strconv.Itoa(i)] = err.Error()
			continue
		}
		rec, err := res.manager.Create(r.Context(), principal, draft.toDraft(), func(target PT) {
			_ = json.Unmarshal(item, target)
		})
		if err != nil {
			failed[strconv.Itoa(i)] = err.Error()
			continue
		}
		created = append(created, rec)
	}

	status := http.StatusCreated
	if len(created) == 0 && len(failed) > 0 {
		status = http.StatusUnprocessableEntity
	}
	httpx.JSON(w, status, batchCreateResponse[PT]{Created: created, Failed: failed})
}

type batchCreateResponse[PT any] struct {
	Created []PT              `json:"created"`
	Failed  map[string]string `json:"failed"`
}

// createEnvelope carries the ownership/reference fields the payload may
// declare alongside the record's own fields (spec §4.B "creation check").
type createEnvelope struct {
	UserID          *entity.UUID                 `json:"user_id,omitempty"`
	TeamID          *entity.UUID                 `json:"team_id,omitempty"`
	References      map[string]referenceEnvelope `json:"references,omitempty"`
	CreateReference string                       `json:"create_reference,omitempty"`
}

type referenceEnvelope struct {
	Kind string      `json:"kind"`
	ID   entity.UUID `json:"id"`
}

func (e createEnvelope) toDraft() permission.Draft {
	draft := permission.Draft{UserID: e.UserID, TeamID: e.TeamID, CreateReference: e.CreateReference}
	if len(e.References) > 0 {
		draft.References = make(map[string]permission.Reference, len(e.References))
		for name, ref := range e.References {
			draft.References[name] = permission.Reference{Kind: ref.Kind, ID: ref.ID}
		}
	}
	return draft
}

func (res *Resource[T, PT]) get(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var opt entity.GetOptions
	if inc := r.URL.Query().Get("include"); inc != "" {
		opt.Include = strings.Split(inc, ",")
	}
	if fields := r.URL.Query().Get("fields"); fields != "" {
		opt.Fields = strings.Split(fields, ",")
	}

	rec, included, err := res.manager.Get(r.Context(), principal, id, opt)
	if err != nil {
		httpx.RespondEntityError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res.getResponse(rec, opt.Fields, included))
}

// getResponse shapes rec down to opt.Fields when a field whitelist was
// requested, and merges any hydrated relations alongside it (spec §4.C
// "field projection" and "relation inclusion").
func (res *Resource[T, PT]) getResponse(rec PT, fields []string, included map[string]any) any {
	if len(fields) == 0 && len(included) == 0 {
		return rec
	}
	var out map[string]any
	if len(fields) > 0 {
		out = entity.Project[T, PT](rec, fields)
	} else {
		raw, _ := json.Marshal(rec)
		_ = json.Unmarshal(raw, &out)
	}
	for name, val := range included {
		out[name] = val
	}
	return out
}

func (res *Resource[T, PT]) list(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}
	q := parseListQuery(r)
	result, err := res.manager.List(r.Context(), principal, q)
	if err != nil {
		httpx.RespondEntityError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// search handles `POST /search` with body `{ entity_name: { field:
// search_clause, ... } }` (spec §6 "Search").
func (res *Resource[T, PT]) search(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}
	var body map[string]map[string]map[string]any
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	q := parseListQuery(r)
	q.Clauses = parseSearchQuery(res.name, body)

	result, err := res.manager.List(r.Context(), principal, q)
	if err != nil {
		httpx.RespondEntityError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (res *Resource[T, PT]) update(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var envelope map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &envelope); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	raw, ok := envelope[res.name]
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "missing \""+res.name+"\" key")
		return
	}
	var patch map[string]any
	if err := json.Unmarshal(raw, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid \""+res.name+"\" payload")
		return
	}
	rec, err := res.manager.Update(r.Context(), principal, id, patch)
	if err != nil {
		httpx.RespondEntityError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (res *Resource[T, PT]) delete(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}
	id, ok := idParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := res.manager.Delete(r.Context(), principal, id); err != nil {
		httpx.RespondEntityError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// batchUpdate handles `PATCH /` with body `{ entity_name: {...partial...},
// target_ids: [id, ...] }` (spec §6 "Batch update").
func (res *Resource[T, PT]) batchUpdate(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}
	var body struct {
		Patch     json.RawMessage `json:"-"`
		TargetIDs []entity.UUID   `json:"target_ids"`
	}
	var envelope map[string]json.RawMessage
	if err := httpx.DecodeJSON(r, &envelope); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if raw, ok := envelope["target_ids"]; ok {
		if err := json.Unmarshal(raw, &body.TargetIDs); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid target_ids")
			return
		}
	}
	raw, ok := envelope[res.name]
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "missing \""+res.name+"\" key")
		return
	}
	var patch map[string]any
	if err := json.Unmarshal(raw, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid \""+res.name+"\" payload")
		return
	}

	patches := make(map[entity.UUID]map[string]any, len(body.TargetIDs))
	for _, id := range body.TargetIDs {
		patches[id] = patch
	}
	result := res.manager.BatchUpdate(r.Context(), principal, patches)
	httpx.JSON(w, http.StatusOK, batchResultDTO(result))
}

// batchDelete handles `DELETE /?target_ids=a,b,c` (spec §6 "Batch delete").
func (res *Resource[T, PT]) batchDelete(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal on request")
		return
	}
	raw := r.URL.Query().Get("target_ids")
	if raw == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "missing target_ids")
		return
	}
	var ids []entity.UUID
	for _, part := range strings.Split(raw, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid target_ids")
			return
		}
		ids = append(ids, id)
	}
	result := res.manager.BatchDelete(r.Context(), principal, ids)
	httpx.JSON(w, http.StatusOK, batchResultDTO(result))
}

type batchResultResponse struct {
	Succeeded []entity.UUID     `json:"succeeded"`
	Failed    map[string]string `json:"failed"`
}

func batchResultDTO(res entity.BatchResult) batchResultResponse {
	failed := make(map[string]string, len(res.Failed))
	for id, err := range res.Failed {
		failed[id.String()] = err.Error()
	}
	return batchResultResponse{Succeeded: res.Succeeded, Failed: failed}
}
