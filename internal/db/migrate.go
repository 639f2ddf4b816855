package db

import (
	"database/sql"
	"fmt"
)

// Migrate runs all schema migrations. Statements are idempotent and valid in
// both SQLite and Postgres.
func Migrate(db *sql.DB, d Dialect) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if d == Postgres {
		for i, stmt := range postgresMigrations {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("postgres migration %d: %w", i, err)
			}
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS user_progress (
		user_id    TEXT NOT NULL,
		entry_key  TEXT NOT NULL,
		value_json TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, entry_key)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_user_progress_user ON user_progress(user_id)`,

	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id    TEXT PRIMARY KEY,
		doc_json   TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}

// postgresMigrations install the change-feed trigger used by LISTEN/NOTIFY
// subscribers. The payload is the user id.
var postgresMigrations = []string{
	`CREATE OR REPLACE FUNCTION chapterwise_notify_change() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('chapterwise_changes', COALESCE(NEW.user_id, OLD.user_id));
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS user_progress_notify ON user_progress`,
	`CREATE TRIGGER user_progress_notify AFTER INSERT OR UPDATE OR DELETE ON user_progress
		FOR EACH ROW EXECUTE FUNCTION chapterwise_notify_change()`,

	`DROP TRIGGER IF EXISTS user_settings_notify ON user_settings`,
	`CREATE TRIGGER user_settings_notify AFTER INSERT OR UPDATE OR DELETE ON user_settings
		FOR EACH ROW EXECUTE FUNCTION chapterwise_notify_change()`,
}

// NotifyChannel is the Postgres channel carrying change notifications.
const NotifyChannel = "chapterwise_changes"
