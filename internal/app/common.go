package app

import (
	"time"

	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/progress"
)

// ItemCell is one (chapter, item) status with its last edit.
type ItemCell struct {
	Key        domain.EntryKey
	Status     domain.StatusCode
	Note       string
	ModifiedAt *time.Time
}

type ChapterView struct {
	ID       domain.ChapterID
	Name     string
	Paper    int
	Progress float64
	Cells    []ItemCell
}

type SubjectView struct {
	ID       string
	Name     string
	Icon     string
	Color    string
	Items    []domain.TrackableItem
	Progress progress.Result
	Bar      progress.Result
	Chapters []ChapterView
}
