package preset

import (
	"maps"

	"github.com/google/uuid"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

func toSubject(s SubjectConfig) domain.Subject {
	subj := domain.Subject{
		Key:      s.Key,
		Name:     s.Name,
		Icon:     s.Icon,
		Color:    s.Color,
		Chapters: make([]domain.Chapter, 0, len(s.Chapters)),
	}
	for _, c := range s.Chapters {
		paper := c.Paper
		if paper == 0 {
			paper = 1
		}
		subj.Chapters = append(subj.Chapters, domain.Chapter{ID: domain.ChapterID(c.ID), Name: c.Name, Paper: paper})
	}
	return subj
}

func toBar(b BarConfig, id string) domain.ProgressBar {
	bar := domain.ProgressBar{
		ID:    id,
		Name:  b.Name,
		Items: append([]string(nil), b.Items...),
		Color: b.Color,
	}
	if len(b.Weights) > 0 {
		bar.Weights = domain.WeightMap(maps.Clone(b.Weights))
	}
	return bar
}

// Apply seeds settings from p and returns the result; settings is not
// modified. The syllabus, items, weights, bars and academic level are
// replaced. Per-subject weight and progress overrides are dropped since they
// refer to the previous syllabus. Display preferences and custom names are
// kept. Progress entries are never touched.
func Apply(settings domain.Settings, p *Preset) domain.Settings {
	out := settings.Clone()

	out.AcademicLevel = p.AcademicLevel()
	out.TrackableItems = make([]domain.TrackableItem, 0, len(p.Items))
	byKey := make(map[string]domain.TrackableItem, len(p.Items))
	for _, it := range p.Items {
		item := domain.TrackableItem{Key: it.Key, Name: it.Name, Color: it.Color}
		out.TrackableItems = append(out.TrackableItems, item)
		byKey[it.Key] = item
	}

	out.Weights = nil
	if len(p.Weights) > 0 {
		out.Weights = domain.WeightMap(maps.Clone(p.Weights))
	}

	out.Syllabus = make(domain.Syllabus, len(p.Subjects))
	out.SubjectConfigs = nil
	for _, s := range p.Subjects {
		out.Syllabus[s.Key] = toSubject(s)
		if len(s.Items) == 0 {
			continue
		}
		if out.SubjectConfigs == nil {
			out.SubjectConfigs = map[string][]domain.TrackableItem{}
		}
		for _, k := range s.Items {
			out.SubjectConfigs[s.Key] = append(out.SubjectConfigs[s.Key], byKey[k])
		}
	}

	out.SubjectWeights = nil
	out.SubjectProgressItems = nil
	out.SubjectProgressWeights = nil

	out.ProgressBars = nil
	for _, b := range p.Bars {
		out.ProgressBars = append(out.ProgressBars, toBar(b, uuid.NewString()))
	}
	return out
}
