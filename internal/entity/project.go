package entity

import (
	"context"
	"reflect"
)

// GetOptions carries Get's optional field-projection and relation-inclusion
// parameters (spec §4.C operation table "get | id, include?, fields?").
type GetOptions struct {
	Include []string
	Fields  []string
}

// Project reduces rec down to exactly the fields named by fields, keyed by
// field name (spec §4.C "field projection"). Callers validate fields
// against Description.ValidateFields before calling Project; an unknown
// name is silently skipped here rather than rejected, since that rejection
// has already happened before I/O.
func Project[T any, PT interface {
	*T
	Model
}](rec PT, fields []string) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	v := reflect.ValueOf(rec).Elem()
	out := make(map[string]any, len(fields))
	for _, name := range fields {
		if fv := findField(v, name); fv.IsValid() && fv.CanInterface() {
			out[name] = fv.Interface()
		}
	}
	return out
}

// hydrate resolves each name in includes against rec's populated
// References, fetching the full related record through the shared registry
// (spec §4.C "relation inclusion"). A relation with no populated reference,
// or whose kind has no manager registered in this process, is omitted
// rather than treated as an error.
func (m *Manager[T, PT]) hydrate(ctx context.Context, rec PT, includes []string) (map[string]any, error) {
	if len(includes) == 0 || m.registry == nil {
		return nil, nil
	}
	base := rec.Base_()
	out := make(map[string]any, len(includes))
	for _, name := range includes {
		relSpec, ok := m.desc.Relation(name)
		if !ok {
			continue
		}
		ref, ok := base.References[name]
		if !ok {
			continue
		}
		val, found, err := m.registry.LookupRaw(ctx, relSpec.Kind, ref.ID)
		if err != nil {
			return nil, Internal("entity.hydrate", err)
		}
		if found {
			out[name] = val
		}
	}
	return out, nil
}
