package entity

import "github.com/coreframe/coreframe/internal/permission"

// FieldSpec declares one attribute of a managed kind for projection and
// search-clause validation (spec §4.C "field projection").
type FieldSpec struct {
	Name       string
	Sortable   bool
	Filterable bool
}

// RelationSpec declares a to-one relation this kind exposes for `include`
// expansion (spec §4.C "relation inclusion").
type RelationSpec struct {
	Name string
	Kind string
}

// Description declares a managed kind's shape to the generic pipeline: its
// permission traits, its fields, and its relations (spec §3 "Entity (generic)").
type Description struct {
	Kind            string
	Policy          permission.KindPolicy
	CreateReference string
	Fields          []FieldSpec
	Relations       []RelationSpec
}

// Field looks up a declared field by name.
func (d Description) Field(name string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Relation looks up a declared relation by name.
func (d Description) Relation(name string) (RelationSpec, bool) {
	for _, r := range d.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return RelationSpec{}, false
}

// ValidateFields rejects any name in fields that isn't a declared field of
// d, before any I/O runs (spec §4.C "field projection ... unknown
// fields/relations are rejected with ValidationError before I/O").
func (d Description) ValidateFields(op string, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	var bad map[string]string
	for _, name := range fields {
		if _, ok := d.Field(name); !ok {
			if bad == nil {
				bad = make(map[string]string)
			}
			bad[name] = "not a declared field"
		}
	}
	if bad != nil {
		return &ValidationErrors{Op: op, Fields: bad}
	}
	return nil
}

// ValidateIncludes rejects any name in includes that isn't a declared
// relation of d, before any I/O runs.
func (d Description) ValidateIncludes(op string, includes []string) error {
	if len(includes) == 0 {
		return nil
	}
	var bad map[string]string
	for _, name := range includes {
		if _, ok := d.Relation(name); !ok {
			if bad == nil {
				bad = make(map[string]string)
			}
			bad[name] = "not a declared relation"
		}
	}
	if bad != nil {
		return &ValidationErrors{Op: op, Fields: bad}
	}
	return nil
}
