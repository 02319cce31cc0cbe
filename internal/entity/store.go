package entity

import "context"

// Store is the persistence port a Manager drives. T is the record struct;
// PT is its pointer type, constrained to implement Model, using the
// standard two-parameter generic pattern for pointer-receiver methods
// (spec §4.C keeps persistence pluggable so the same pipeline can back a
// pgx-backed kind or, in tests, an in-memory one).
type Store[T any, PT interface {
	*T
	Model
}] interface {
	Insert(ctx context.Context, sess Session, rec PT) error
	FindByID(ctx context.Context, sess Session, id UUID, includeDeleted bool) (PT, bool, error)
	FindMany(ctx context.Context, sess Session, restriction Restriction, q Query) ([]PT, int, error)
	Update(ctx context.Context, sess Session, id UUID, patch map[string]any) (PT, error)
	SoftDelete(ctx context.Context, sess Session, id UUID, deletedBy UUID) error
}
