package identity

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the production Hierarchy Store, backed by `teams` and `roles`
// tables carrying a nullable self-referencing parent column, grounded on
// internal/masterdata/products' plain-SQL repository style.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore wraps pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// LoadTeams implements Store.
func (s *PgStore) LoadTeams(ctx context.Context) ([]Team, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, parent_team_id FROM teams`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.ParentTeamID); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// LoadRoles implements Store.
func (s *PgStore) LoadRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, parent_role_id FROM roles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.ParentRoleID); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}
