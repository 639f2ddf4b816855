package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/chapterwise/internal/db"
	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/store"
)

// SQLProgressRepo implements ProgressRepo over SQLite or Postgres.
type SQLProgressRepo struct {
	db      db.DBTX
	dialect db.Dialect
}

// NewSQLProgressRepo creates a new SQLProgressRepo.
func NewSQLProgressRepo(conn db.DBTX, d db.Dialect) *SQLProgressRepo {
	return &SQLProgressRepo{db: conn, dialect: d}
}

func (r *SQLProgressRepo) ListRows(ctx context.Context, userID string) ([]ProgressRow, error) {
	query := r.dialect.Rebind(`SELECT entry_key, value_json, updated_at
		FROM user_progress WHERE user_id = ? ORDER BY entry_key`)
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying progress: %w", err)
	}
	defer rows.Close()

	var out []ProgressRow
	for rows.Next() {
		var row ProgressRow
		var updatedAt string
		if err := rows.Scan(&row.EntryKey, &row.ValueJSON, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning progress row: %w", err)
		}
		row.UpdatedAt = parseTimestamp(updatedAt)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating progress rows: %w", err)
	}
	return out, nil
}

func (r *SQLProgressRepo) ListByUser(ctx context.Context, userID string) (domain.UserData, error) {
	rows, err := r.ListRows(ctx, userID)
	if err != nil {
		return nil, err
	}
	data := make(domain.UserData, len(rows))
	for _, row := range rows {
		data[row.EntryKey] = store.DecodeValue(row.ValueJSON)
	}
	return data, nil
}

func (r *SQLProgressRepo) Upsert(ctx context.Context, userID, key string, value any) error {
	raw, err := store.EncodeValue(value)
	if err != nil {
		return err
	}
	query := r.dialect.Rebind(`INSERT INTO user_progress (user_id, entry_key, value_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, entry_key) DO UPDATE SET
			value_json = excluded.value_json,
			updated_at = excluded.updated_at`)
	if _, err := r.db.ExecContext(ctx, query, userID, key, raw, nowUTC()); err != nil {
		return fmt.Errorf("upserting progress %s: %w", key, err)
	}
	return nil
}

func (r *SQLProgressRepo) Delete(ctx context.Context, userID, key string) error {
	query := r.dialect.Rebind(`DELETE FROM user_progress WHERE user_id = ? AND entry_key = ?`)
	if _, err := r.db.ExecContext(ctx, query, userID, key); err != nil {
		return fmt.Errorf("deleting progress %s: %w", key, err)
	}
	return nil
}

func (r *SQLProgressRepo) Apply(ctx context.Context, userID string, patch domain.UserData) error {
	for _, key := range sortedKeys(patch) {
		v := patch[key]
		if v == nil {
			if err := r.Delete(ctx, userID, key); err != nil {
				return err
			}
			continue
		}
		if err := r.Upsert(ctx, userID, key, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLProgressRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	query := r.dialect.Rebind(`SELECT COUNT(*) FROM user_progress WHERE user_id = ?`)
	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting progress: %w", err)
	}
	return n, nil
}
