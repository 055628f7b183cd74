package postgres

import (
	"context"
	"database/sql"

	"docsign/internal/repository"
)

// AdvisoryLocker takes session-level Postgres advisory locks. Each held lock
// pins one pooled connection until it is released.
type AdvisoryLocker struct {
	db *sql.DB
}

func NewAdvisoryLocker(db *sql.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

var _ repository.Locker = (*AdvisoryLocker)(nil)

func (l *AdvisoryLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, key).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, false, err
	}
	if !ok {
		_ = conn.Close()
		return nil, false, nil
	}

	return func() {
		// The request context may already be canceled; the lock must still go.
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, key)
		_ = conn.Close()
	}, true, nil
}
