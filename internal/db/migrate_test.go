package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	// Re-running migrations must succeed.
	require.NoError(t, Migrate(db, SQLite))
	require.NoError(t, Migrate(db, SQLite))
}

func TestMigrate_CreatesAllTables(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"user_progress", "user_settings"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_CreatesIndexes(t *testing.T) {
	db := openTestDB(t)

	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name=?`, "idx_user_progress_user").Scan(&name)
	require.NoError(t, err)
}

func TestMigrate_ProgressPrimaryKeyIsUserAndEntry(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec(`INSERT INTO user_progress (user_id, entry_key, value_json, updated_at) VALUES ('u1', 's_bio_1_a', '5', 'now')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO user_progress (user_id, entry_key, value_json, updated_at) VALUES ('u2', 's_bio_1_a', '5', 'now')`)
	require.NoError(t, err, "same entry key for another user is allowed")
	_, err = db.Exec(`INSERT INTO user_progress (user_id, entry_key, value_json, updated_at) VALUES ('u1', 's_bio_1_a', '3', 'now')`)
	assert.Error(t, err, "duplicate (user, entry) must be rejected")
}

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT value_json FROM user_progress WHERE user_id = ? AND entry_key = ?`
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, `SELECT value_json FROM user_progress WHERE user_id = $1 AND entry_key = $2`, Postgres.Rebind(q))
	assert.True(t, Postgres.NotifySupported())
	assert.False(t, SQLite.NotifySupported())
}
