package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/chapterwise/internal/db"
	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/store"
)

// SQLSettingsRepo implements SettingsRepo over SQLite or Postgres.
type SQLSettingsRepo struct {
	db      db.DBTX
	dialect db.Dialect
}

// NewSQLSettingsRepo creates a new SQLSettingsRepo.
func NewSQLSettingsRepo(conn db.DBTX, d db.Dialect) *SQLSettingsRepo {
	return &SQLSettingsRepo{db: conn, dialect: d}
}

func (r *SQLSettingsRepo) Get(ctx context.Context, userID string) (domain.Settings, error) {
	query := r.dialect.Rebind(`SELECT doc_json FROM user_settings WHERE user_id = ?`)
	var raw string
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Settings{}, fmt.Errorf("settings for %s: %w", userID, ErrNotFound)
		}
		return domain.Settings{}, fmt.Errorf("scanning settings: %w", err)
	}
	return store.DecodeSettings(raw)
}

func (r *SQLSettingsRepo) Upsert(ctx context.Context, userID string, s domain.Settings) error {
	raw, err := store.EncodeSettings(s)
	if err != nil {
		return err
	}
	query := r.dialect.Rebind(`INSERT INTO user_settings (user_id, doc_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			doc_json = excluded.doc_json,
			updated_at = excluded.updated_at`)
	if _, err := r.db.ExecContext(ctx, query, userID, raw, nowUTC()); err != nil {
		return fmt.Errorf("upserting settings: %w", err)
	}
	return nil
}

func (r *SQLSettingsRepo) Delete(ctx context.Context, userID string) error {
	query := r.dialect.Rebind(`DELETE FROM user_settings WHERE user_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("deleting settings: %w", err)
	}
	return nil
}
