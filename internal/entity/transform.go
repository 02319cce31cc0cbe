package entity

// Transform maps a high-level search parameter's value onto the filter
// clauses it expands to (spec §4.C "search transformers"), e.g. `overdue`
// -> `{scheduled=true, completed=false, due_date<=now}`.
type Transform func(value any) []Clause

// SearchTransformerRegistry holds a manager's named transformers. It is
// populated during manager construction (spec §4.C "per-manager instance;
// populated during manager construction") and applied to a Query's Params
// before the permission filter runs.
type SearchTransformerRegistry struct {
	transforms map[string]Transform
}

// NewSearchTransformerRegistry constructs an empty registry.
func NewSearchTransformerRegistry() *SearchTransformerRegistry {
	return &SearchTransformerRegistry{transforms: make(map[string]Transform)}
}

// Register attaches fn under name, so a caller-supplied Query.Params[name]
// expands into fn's clauses instead of needing to be a raw declared field.
func (r *SearchTransformerRegistry) Register(name string, fn Transform) {
	r.transforms[name] = fn
}

// apply expands q.Params through the registered transformers, appending
// their clauses to q.Clauses ahead of the permission filter (spec §4.C
// "Transformers are applied before the permission filter"). An unregistered
// parameter name is a ValidationError, same as an unknown field name.
func (r *SearchTransformerRegistry) apply(op string, q Query) (Query, error) {
	if len(q.Params) == 0 {
		return q, nil
	}
	if r == nil {
		bad := make(map[string]string, len(q.Params))
		for name := range q.Params {
			bad[name] = "no search transformer registered"
		}
		return q, &ValidationErrors{Op: op, Fields: bad}
	}
	for name, value := range q.Params {
		fn, ok := r.transforms[name]
		if !ok {
			return q, &ValidationErrors{Op: op, Fields: map[string]string{name: "no search transformer registered"}}
		}
		q.Clauses = append(q.Clauses, fn(value)...)
	}
	return q, nil
}
