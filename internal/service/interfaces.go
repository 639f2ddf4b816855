package service

import (
	"context"

	"github.com/alexanderramin/chapterwise/internal/app"
	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/export"
	"github.com/alexanderramin/chapterwise/internal/preset"
)

// TrackerService is the use-case surface over one user's session. Subject
// and weight arguments accept "" to mean the global configuration where
// noted.
type TrackerService interface {
	app.StatusUseCase
	app.MarkUseCase
	app.ImportUseCase

	AddSubject(ctx context.Context, s domain.Subject) error
	RemoveSubject(ctx context.Context, subjectID string) error
	AddChapter(ctx context.Context, subjectID string, c domain.Chapter) error
	RemoveChapter(ctx context.Context, subjectID string, chapterID domain.ChapterID) error
	// AddItem adds to the global list when subjectID is "".
	AddItem(ctx context.Context, subjectID string, item domain.TrackableItem) error
	RemoveItem(ctx context.Context, subjectID, itemKey string) error
	// SetWeights replaces the global weights when subjectID is "".
	SetWeights(ctx context.Context, subjectID string, w domain.WeightMap) error
	SetAcademicLevel(ctx context.Context, level domain.AcademicLevel) error
	AddProgressBar(ctx context.Context, bar domain.ProgressBar) (domain.ProgressBar, error)
	ApplyPreset(ctx context.Context, presetID string) (*preset.Preset, error)
	Presets(ctx context.Context) ([]*preset.Preset, error)
	Report(ctx context.Context) (export.Report, error)
}
