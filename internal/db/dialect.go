package db

import "github.com/jmoiron/sqlx"

// Dialect selects SQL placeholder syntax. Queries are written with '?' and
// rebound per dialect.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Rebind rewrites '?' placeholders into the dialect's bindvar form.
func (d Dialect) Rebind(query string) string {
	if d == Postgres {
		return sqlx.Rebind(sqlx.DOLLAR, query)
	}
	return query
}

// NotifySupported reports whether the dialect has a native change feed.
func (d Dialect) NotifySupported() bool {
	return d == Postgres
}
