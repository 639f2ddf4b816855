package testutil

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/alexanderramin/chapterwise/internal/db"
)

// ExecFault wraps a unit of work and fails the Nth write statement of each
// transaction with Err. Reads pass through. Use it to check that a
// multi-entry progress write is all-or-nothing.
type ExecFault struct {
	Inner  db.UnitOfWork
	FailOn int32
	Err    error
}

// NewExecFault fails the n-th ExecContext of every transaction on conn.
func NewExecFault(conn *sql.DB, n int32, err error) *ExecFault {
	return &ExecFault{Inner: db.NewUnitOfWork(conn, db.SQLite), FailOn: n, Err: err}
}

func (f *ExecFault) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	return f.Inner.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, &faultyTx{DBTX: tx, fault: f})
	})
}

type faultyTx struct {
	db.DBTX
	fault *ExecFault
	execs atomic.Int32
}

func (t *faultyTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if t.execs.Add(1) == t.fault.FailOn {
		return nil, t.fault.Err
	}
	return t.DBTX.ExecContext(ctx, query, args...)
}
