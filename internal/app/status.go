package app

import (
	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/progress"
	"github.com/alexanderramin/chapterwise/internal/syncer"
)

type StatusRequest struct {
	// SubjectScope limits the subjects returned; empty means all.
	SubjectScope    []string
	IncludeChapters bool
}

func NewStatusRequest() StatusRequest {
	return StatusRequest{IncludeChapters: true}
}

type SyncView struct {
	Phase           syncer.Phase
	PendingWrites   bool
	UnsyncedData    bool
	UnsyncedConfig  bool
	SuppressedTotal int
	LastError       string
}

type StatusResponse struct {
	Level     domain.AcademicLevel
	Composite progress.Composite
	Bars      []progress.BarValue
	Subjects  []SubjectView
	Sync      SyncView
}

type MarkRequest struct {
	SubjectID string
	ChapterID domain.ChapterID
	ItemKey   string
	Status    domain.StatusCode
}

// Key returns the entry key the request addresses.
func (r MarkRequest) Key() domain.EntryKey {
	return domain.NewEntryKey(r.SubjectID, r.ChapterID, r.ItemKey)
}

type ImportResult struct {
	Statuses        int
	Timestamps      int
	Notes           int
	SettingsApplied bool
}
