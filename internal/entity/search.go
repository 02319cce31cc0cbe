package entity

import (
	"github.com/coreframe/coreframe/internal/permission"
	"github.com/coreframe/coreframe/internal/shared"
)

// Op is a search-clause comparison operator (spec §4.C "search" / §6 payload shapes).
type Op string

const (
	OpEq         Op = "eq"
	OpNeq        Op = "neq"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpLike       Op = "like"
	OpStartsWith Op = "starts_with"
	OpEndsWith   Op = "ends_with"
	OpIn         Op = "in"
)

// Clause is one leaf of a search filter tree: `{field, op, value}`.
type Clause struct {
	Field string
	Op    Op
	Value any
}

// SortDirection orders a Sort clause.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// Sort orders results by a declared-sortable field.
type Sort struct {
	Field     string
	Direction SortDirection
}

// Page bounds a List/Search result set.
type Page struct {
	Number  int
	PerPage int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.PerPage < 1 || p.PerPage > 200 {
		p.PerPage = 25
	}
	return p
}

// Query bundles the parameters a List/Search operation accepts. Params
// carries high-level search-transformer parameters (e.g. `overdue: true`),
// distinct from Clauses, which name a declared field directly (spec §4.C
// "search transformers").
type Query struct {
	Clauses        []Clause
	Params         map[string]any
	Sort           *Sort
	Page           Page
	Include        []string
	Fields         []string
	IncludeDeleted bool
}

// validateQuery checks every clause and sort field against d's declared,
// filterable/sortable fields (spec §4.C "search-clause validation"). Params
// is exempt: those names are resolved against the manager's
// SearchTransformerRegistry, not d's declared fields.
func (d Description) validateQuery(op string, q Query) error {
	for _, c := range q.Clauses {
		field, ok := d.Field(c.Field)
		if !ok || !field.Filterable {
			return &ValidationErrors{Op: op, Fields: map[string]string{c.Field: "not a filterable field"}}
		}
	}
	if q.Sort != nil {
		field, ok := d.Field(q.Sort.Field)
		if !ok || !field.Sortable {
			return &ValidationErrors{Op: op, Fields: map[string]string{q.Sort.Field: "not a sortable field"}}
		}
	}
	if err := d.ValidateIncludes(op, q.Include); err != nil {
		return err
	}
	if err := d.ValidateFields(op, q.Fields); err != nil {
		return err
	}
	return nil
}

// Result is a page of records plus the pagination summary of
// internal/shared. Included holds the hydrated relations requested via
// Query.Include, keyed by record id then relation name (spec §4.C "relation
// inclusion"); nil when Include was empty.
type Result[T any] struct {
	Items      []T
	Pagination shared.Pagination
	Included   map[UUID]map[string]any `json:"included,omitempty"`
}

// Restriction is the SQL-facing counterpart of a permission.Predicate a
// Store must apply in its WHERE clause construction.
type Restriction = permission.Predicate

func newPagination(p Page, total int) shared.Pagination {
	return shared.NewPagination(p.Number, p.PerPage, total)
}
