package entity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx's query surface shared by *pgxpool.Pool and
// pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Session is a unit of work a Manager operation runs inside. Whether a
// given call owns (and must Commit/Rollback) the Session it runs against is
// a property of that call, not of the Session value itself — see
// Manager.session (spec §4.C "transactional boundary": join-or-own).
type Session interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner opens Sessions. *SessionSource is the production implementation;
// tests substitute a fake that hands out no-op Sessions over a Store that
// ignores its Session argument (e.g. MemoryStore).
type Beginner interface {
	Begin(ctx context.Context) (Session, error)
}

type pgxSession struct {
	Querier
	tx pgx.Tx
}

func (s *pgxSession) Commit(ctx context.Context) error   { return s.tx.Commit(ctx) }
func (s *pgxSession) Rollback(ctx context.Context) error { return s.tx.Rollback(ctx) }

// SessionSource opens Sessions against a connection pool.
type SessionSource struct {
	pool *pgxpool.Pool
}

// NewSessionSource wraps pool.
func NewSessionSource(pool *pgxpool.Pool) *SessionSource {
	return &SessionSource{pool: pool}
}

// Begin opens a new Session with repeatable-read isolation (spec §4.C
// "transactional boundary").
func (s *SessionSource) Begin(ctx context.Context) (Session, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, err
	}
	return &pgxSession{Querier: tx, tx: tx}, nil
}

// sessionContextKey and WithSession/SessionFromContext let handlers thread a
// caller-owned Session through to nested Manager calls without every layer
// taking an explicit parameter, mirroring internal/shared's context helpers.
type sessionContextKey struct{}

// WithSession attaches sess to ctx.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts a Session previously attached with WithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(Session)
	return sess, ok
}
