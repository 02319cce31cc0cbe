package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/coreframe/coreframe/internal/entity"
)

// parseListQuery reads the flat query-string form of spec §6's list
// parameters: `sort`, `dir`, `page`, `per_page`, `include`, and
// `include_deleted`. Structured per-field search clause shapes are decoded
// separately by parseSearchQuery, since they carry a nested operator/value
// pair rather than a single string value.
func parseListQuery(r *http.Request) entity.Query {
	values := r.URL.Query()

	q := entity.Query{
		Page: entity.Page{
			Number:  intOr(values.Get("page"), 1),
			PerPage: intOr(values.Get("per_page"), 25),
		},
		IncludeDeleted: values.Get("include_deleted") == "true",
	}
	if inc := values.Get("include"); inc != "" {
		q.Include = strings.Split(inc, ",")
	}
	if fields := values.Get("fields"); fields != "" {
		q.Fields = strings.Split(fields, ",")
	}
	if field := values.Get("sort"); field != "" {
		dir := entity.Asc
		if values.Get("dir") == "desc" {
			dir = entity.Desc
		}
		q.Sort = &entity.Sort{Field: field, Direction: dir}
	}
	return q
}

// parseSearchQuery decodes the `{ entity_name: { field: {op: value}, ... }
// }` structured search-clause envelope of spec §6 into entity.Clause values.
func parseSearchQuery(entityName string, body map[string]map[string]map[string]any) []entity.Clause {
	fields, ok := body[entityName]
	if !ok {
		return nil
	}
	var clauses []entity.Clause
	for field, ops := range fields {
		for op, value := range ops {
			clauses = append(clauses, entity.Clause{Field: field, Op: searchOp(op), Value: value})
		}
	}
	return clauses
}

// searchOp maps spec §6's per-field search-clause operator names onto the
// pipeline's canonical entity.Op set.
func searchOp(name string) entity.Op {
	switch name {
	case "inc":
		return entity.OpLike
	case "sw":
		return entity.OpStartsWith
	case "ew":
		return entity.OpEndsWith
	case "eq", "is_true", "on":
		return entity.OpEq
	case "neq":
		return entity.OpNeq
	case "lt", "before":
		return entity.OpLt
	case "gt", "after":
		return entity.OpGt
	case "lteq":
		return entity.OpLte
	case "gteq":
		return entity.OpGte
	default:
		return entity.OpEq
	}
}

func intOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
