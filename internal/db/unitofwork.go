package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)

// UnitOfWork runs fn inside one transaction. fn may be called more than
// once when the dialect reports a retryable conflict, so it must not have
// side effects outside tx.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

const (
	defaultTxAttempts = 3
	txRetryBackoff    = 25 * time.Millisecond
)

// SQLUnitOfWork retries transactions that lost a write conflict: SQLITE_BUSY
// when another process (a second CLI invocation, or watch) holds the write
// lock, and serialization failures on Postgres.
type SQLUnitOfWork struct {
	conn     *sql.DB
	dialect  Dialect
	attempts int
}

func NewUnitOfWork(conn *sql.DB, d Dialect) *SQLUnitOfWork {
	return &SQLUnitOfWork{conn: conn, dialect: d, attempts: defaultTxAttempts}
}

func (u *SQLUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	var err error
	for attempt := 1; attempt <= u.attempts; attempt++ {
		err = u.runOnce(ctx, fn)
		if err == nil || !u.dialect.IsConflict(err) || attempt == u.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * txRetryBackoff):
		}
	}
	return err
}

func (u *SQLUnitOfWork) runOnce(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := u.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// IsConflict reports whether err is a transient lock or serialization
// conflict worth retrying.
func (d Dialect) IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if d == Postgres {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return pqErr.Code == "40001" || pqErr.Code == "40P01"
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
