package permission

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgGrantStore is the production GrantStore, backed by a `grants` table
// keyed by (resource_kind, resource_id), grounded on
// internal/masterdata/products' plain-SQL repository style.
type PgGrantStore struct {
	pool *pgxpool.Pool
}

// NewPgGrantStore wraps pool.
func NewPgGrantStore(pool *pgxpool.Pool) *PgGrantStore {
	return &PgGrantStore{pool: pool}
}

// GrantsFor implements GrantStore, ordering soonest-expiring-first per
// spec §4.B's tie-break rule.
func (s *PgGrantStore) GrantsFor(ctx context.Context, kind string, id UUID) ([]Grant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT subject_kind, subject_id, can_view, can_execute, can_copy,
		       can_edit, can_delete, can_share, expires_at
		FROM grants
		WHERE resource_kind = $1 AND resource_id = $2
		ORDER BY expires_at ASC NULLS LAST`, kind, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		var subjectKind int
		if err := rows.Scan(&subjectKind, &g.Subject.ID, &g.CanView, &g.CanExecute,
			&g.CanCopy, &g.CanEdit, &g.CanDelete, &g.CanShare, &g.ExpiresAt); err != nil {
			return nil, err
		}
		g.ResourceKind = kind
		g.ResourceID = id
		g.Subject.Kind = SubjectKind(subjectKind)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
