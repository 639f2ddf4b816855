package repository

import (
	"context"
	"time"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

// ProgressRow is one stored progress entry with its raw JSON value.
type ProgressRow struct {
	EntryKey  string
	ValueJSON string
	UpdatedAt time.Time
}

type ProgressRepo interface {
	// ListByUser returns the user's progress document. An unknown user yields
	// an empty, non-nil document.
	ListByUser(ctx context.Context, userID string) (domain.UserData, error)
	ListRows(ctx context.Context, userID string) ([]ProgressRow, error)
	Upsert(ctx context.Context, userID, key string, value any) error
	Delete(ctx context.Context, userID, key string) error
	// Apply merges patch into the stored document; nil values delete keys.
	Apply(ctx context.Context, userID string, patch domain.UserData) error
	CountByUser(ctx context.Context, userID string) (int, error)
}

type SettingsRepo interface {
	Get(ctx context.Context, userID string) (domain.Settings, error)
	Upsert(ctx context.Context, userID string, s domain.Settings) error
	Delete(ctx context.Context, userID string) error
}
