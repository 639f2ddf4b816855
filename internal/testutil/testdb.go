package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/alexanderramin/chapterwise/internal/db"
)

// NewTestDB opens a migrated SQLite file in a per-test directory. A file
// rather than :memory: keeps WAL mode and a real connection pool in play.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenDB(filepath.Join(t.TempDir(), "chapterwise.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
