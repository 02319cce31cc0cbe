package entity

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store[T, PT], used by manager tests and by
// cmd/server's demonstration catalog, which run without a database. Field
// lookups for search clauses and sorts use reflection over T's exported fields, matched case-insensitively against
// the declared field name.
type MemoryStore[T any, PT interface {
	*T
	Model
}] struct {
	mu      sync.Mutex
	records map[UUID]*T
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore[T any, PT interface {
	*T
	Model
}]() *MemoryStore[T, PT] {
	return &MemoryStore[T, PT]{records: make(map[UUID]*T)}
}

func (s *MemoryStore[T, PT]) Insert(_ context.Context, _ Session, rec PT) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := rec.Base_().ID
	if _, exists := s.records[id]; exists {
		return Conflict("memstore.Insert", "duplicate id")
	}
	cp := *(*T)(rec)
	s.records[id] = &cp
	return nil
}

func (s *MemoryStore[T, PT]) FindByID(_ context.Context, _ Session, id UUID, includeDeleted bool) (PT, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	if PT(rec).Base_().DeletedAt != nil && !includeDeleted {
		return nil, false, nil
	}
	cp := *rec
	return PT(&cp), true, nil
}

func (s *MemoryStore[T, PT]) Update(_ context.Context, _ Session, id UUID, patch map[string]any) (PT, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, NotFound("memstore.Update", "record not found")
	}
	applyPatch(rec, patch)
	cp := *rec
	return PT(&cp), nil
}

func (s *MemoryStore[T, PT]) SoftDelete(_ context.Context, _ Session, id UUID, deletedBy UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return NotFound("memstore.SoftDelete", "record not found")
	}
	now := time.Now().UTC()
	base := PT(rec).Base_()
	base.DeletedAt = &now
	base.DeletedBy = &deletedBy
	return nil
}

func (s *MemoryStore[T, PT]) FindMany(_ context.Context, _ Session, restriction Restriction, q Query) ([]PT, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]PT, 0, len(s.records))
	for _, rec := range s.records {
		pt := PT(rec)
		base := pt.Base_()
		if base.DeletedAt != nil && !q.IncludeDeleted {
			continue
		}
		if !restrictionAllows(restriction, base) {
			continue
		}
		if !clausesMatch(rec, q.Clauses) {
			continue
		}
		cp := *rec
		matched = append(matched, PT(&cp))
	}

	// Tie-break by id first (spec §4.C "list" default: "created_at default
	// desc, tie-break by id"): sort.SliceStable preserves this ordering
	// among records that compare equal on the primary field sorted next.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Base_().ID.String() < matched[j].Base_().ID.String()
	})
	if q.Sort != nil {
		field := strings.ToLower(q.Sort.Field)
		sort.SliceStable(matched, func(i, j int) bool {
			if q.Sort.Direction == Desc {
				return reflectLess(matched[j], matched[i], field)
			}
			return reflectLess(matched[i], matched[j], field)
		})
	}

	total := len(matched)
	start := (q.Page.Number - 1) * q.Page.PerPage
	if start > total {
		start = total
	}
	end := start + q.Page.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func restrictionAllows(r Restriction, base *Base) bool {
	if r.AllowAll {
		return true
	}
	for _, excluded := range r.ExcludeCreatedBy {
		if base.CreatedBy == excluded {
			return false
		}
	}
	for _, sysOwner := range r.SystemOwnerViewOnly {
		if base.CreatedBy == sysOwner {
			return true
		}
	}
	if base.UserID != nil && *base.UserID == r.Principal {
		return true
	}
	if base.TeamID != nil {
		for _, t := range r.TeamIDs {
			if t == *base.TeamID {
				return true
			}
		}
	}
	for _, id := range r.GrantedResourceIDs {
		if id == base.ID {
			return true
		}
	}
	return false
}

func clausesMatch[T any](rec *T, clauses []Clause) bool {
	v := reflect.ValueOf(rec).Elem()
	for _, c := range clauses {
		fv := findField(v, c.Field)
		if !fv.IsValid() || !compareValue(fv, c.Op, c.Value) {
			return false
		}
	}
	return true
}

// findField resolves name against v's fields, matched case-insensitively,
// recursing into embedded (anonymous) fields such as entity.Base so
// promoted names like "CreatedAt" or "ID" resolve the same as a kind's own
// declared fields.
func findField(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if strings.EqualFold(f.Name, name) {
			return v.Field(i)
		}
		if f.Anonymous {
			if nested := findField(v.Field(i), name); nested.IsValid() {
				return nested
			}
		}
	}
	return reflect.Value{}
}

func reflectLess(a, b any, field string) bool {
	va := findField(reflect.ValueOf(a).Elem(), field)
	vb := findField(reflect.ValueOf(b).Elem(), field)
	if !va.IsValid() || !vb.IsValid() {
		return false
	}
	switch va.Kind() {
	case reflect.String:
		return va.String() < vb.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return va.Int() < vb.Int()
	case reflect.Float32, reflect.Float64:
		return va.Float() < vb.Float()
	case reflect.Struct:
		ta, aok := va.Interface().(time.Time)
		tb, bok := vb.Interface().(time.Time)
		return aok && bok && ta.Before(tb)
	default:
		return false
	}
}

func compareValue(fv reflect.Value, op Op, want any) bool {
	switch op {
	case OpEq:
		return valueEqual(fv, want)
	case OpNeq:
		return !valueEqual(fv, want)
	case OpLike:
		if fv.Kind() != reflect.String {
			return false
		}
		s, ok := want.(string)
		return ok && strings.Contains(strings.ToLower(fv.String()), strings.ToLower(s))
	case OpStartsWith:
		if fv.Kind() != reflect.String {
			return false
		}
		s, ok := want.(string)
		return ok && strings.HasPrefix(strings.ToLower(fv.String()), strings.ToLower(s))
	case OpEndsWith:
		if fv.Kind() != reflect.String {
			return false
		}
		s, ok := want.(string)
		return ok && strings.HasSuffix(strings.ToLower(fv.String()), strings.ToLower(s))
	case OpIn:
		vals, ok := want.([]any)
		if !ok {
			return false
		}
		for _, v := range vals {
			if valueEqual(fv, v) {
				return true
			}
		}
		return false
	case OpGt, OpGte, OpLt, OpLte:
		return compareOrdered(fv, op, want)
	default:
		return false
	}
}

func valueEqual(fv reflect.Value, want any) bool {
	if !fv.CanInterface() {
		return false
	}
	return fv.Interface() == want
}

func compareOrdered(fv reflect.Value, op Op, want any) bool {
	var cmp int
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w, ok := toInt64(want)
		if !ok {
			return false
		}
		cmp = compareInt64(fv.Int(), w)
	case reflect.Float32, reflect.Float64:
		w, ok := toFloat64(want)
		if !ok {
			return false
		}
		cmp = compareFloat64(fv.Float(), w)
	case reflect.String:
		w, ok := want.(string)
		if !ok {
			return false
		}
		cmp = strings.Compare(fv.String(), w)
	default:
		return false
	}
	switch op {
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	default:
		return false
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func applyPatch(rec any, patch map[string]any) {
	v := reflect.ValueOf(rec).Elem()
	for key, val := range patch {
		fv := findField(v, strings.ReplaceAll(key, "_", ""))
		if !fv.IsValid() || !fv.CanSet() {
			continue
		}
		wv := reflect.ValueOf(val)
		switch {
		case wv.Type().AssignableTo(fv.Type()):
			fv.Set(wv)
		case fv.Kind() == reflect.Ptr && wv.Type().AssignableTo(fv.Type().Elem()):
			ptr := reflect.New(fv.Type().Elem())
			ptr.Elem().Set(wv)
			fv.Set(ptr)
		case wv.Type().ConvertibleTo(fv.Type()):
			fv.Set(wv.Convert(fv.Type()))
		}
	}
}
