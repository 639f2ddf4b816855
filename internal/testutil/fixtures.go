package testutil

import (
	"fmt"
	"strconv"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

// Subject options
type SubjectOption func(*domain.Subject)

// WithChapters appends n chapters on the given paper. Chapter ids continue
// from the subject's current chapter count, starting at 1.
func WithChapters(paper, n int) SubjectOption {
	return func(s *domain.Subject) {
		start := len(s.Chapters) + 1
		for i := 0; i < n; i++ {
			id := strconv.Itoa(start + i)
			s.Chapters = append(s.Chapters, domain.Chapter{
				ID:    domain.ChapterID(id),
				Name:  fmt.Sprintf("Chapter %s", id),
				Paper: paper,
			})
		}
	}
}

func WithSubjectName(name string) SubjectOption {
	return func(s *domain.Subject) {
		s.Name = name
	}
}

func NewTestSubject(key string, opts ...SubjectOption) domain.Subject {
	s := domain.Subject{Key: key, Name: key}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Settings options
type SettingsOption func(*domain.Settings)

func WithSubject(s domain.Subject) SettingsOption {
	return func(st *domain.Settings) {
		if st.Syllabus == nil {
			st.Syllabus = domain.Syllabus{}
		}
		st.Syllabus[s.Key] = s
	}
}

// WithItems sets the global trackable items; names default to the keys.
func WithItems(keys ...string) SettingsOption {
	return func(st *domain.Settings) {
		st.TrackableItems = Items(keys...)
	}
}

func WithSubjectItems(subjectID string, keys ...string) SettingsOption {
	return func(st *domain.Settings) {
		if st.SubjectConfigs == nil {
			st.SubjectConfigs = map[string][]domain.TrackableItem{}
		}
		st.SubjectConfigs[subjectID] = Items(keys...)
	}
}

func WithWeights(w domain.WeightMap) SettingsOption {
	return func(st *domain.Settings) {
		st.Weights = w
	}
}

func WithSubjectWeights(subjectID string, w domain.WeightMap) SettingsOption {
	return func(st *domain.Settings) {
		if st.SubjectWeights == nil {
			st.SubjectWeights = map[string]domain.WeightMap{}
		}
		st.SubjectWeights[subjectID] = w
	}
}

func WithLevel(l domain.AcademicLevel) SettingsOption {
	return func(st *domain.Settings) {
		st.AcademicLevel = l
	}
}

func NewTestSettings(opts ...SettingsOption) domain.Settings {
	st := domain.Settings{AcademicLevel: domain.LevelHSC}
	for _, opt := range opts {
		opt(&st)
	}
	return st
}

// Items builds trackable items whose names mirror their keys.
func Items(keys ...string) []domain.TrackableItem {
	out := make([]domain.TrackableItem, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.TrackableItem{Key: k, Name: k, Color: "blue"})
	}
	return out
}

// Entry is shorthand for the status key of (subject, chapter, item).
func Entry(subjectID, chapterID, item string) string {
	return domain.NewEntryKey(subjectID, domain.ChapterID(chapterID), item).String()
}
