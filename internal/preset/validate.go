package preset

import (
	"fmt"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

// ValidatePreset checks a Preset for structural errors and returns all of
// them (empty if valid).
func ValidatePreset(p *Preset) []error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, fmt.Errorf("preset id is required"))
	}
	if p.Name == "" {
		errs = append(errs, fmt.Errorf("preset name is required"))
	}
	if len(p.Items) == 0 {
		errs = append(errs, fmt.Errorf("at least one item is required"))
	}
	if len(p.Subjects) == 0 {
		errs = append(errs, fmt.Errorf("at least one subject is required"))
	}

	itemKeys := map[string]bool{}
	for i, it := range p.Items {
		item := domain.TrackableItem{Key: it.Key, Name: it.Name, Color: it.Color}
		if err := item.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("items[%d]: %w", i, err))
		}
		if itemKeys[it.Key] {
			errs = append(errs, fmt.Errorf("items[%d]: duplicate key %q", i, it.Key))
		}
		itemKeys[it.Key] = true
	}

	if len(p.Weights) > 0 {
		for k := range p.Weights {
			if !itemKeys[k] {
				errs = append(errs, fmt.Errorf("weights: unknown item %q", k))
			}
		}
		if err := domain.ValidateWeightEdit(p.Weights); err != nil {
			errs = append(errs, fmt.Errorf("weights: %w", err))
		}
	}

	level := p.AcademicLevel()
	subjectKeys := map[string]bool{}
	for i, s := range p.Subjects {
		if subjectKeys[s.Key] {
			errs = append(errs, fmt.Errorf("subjects[%d]: duplicate key %q", i, s.Key))
		}
		subjectKeys[s.Key] = true
		if err := toSubject(s).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("subjects[%d]: %w", i, err))
		}
		for _, k := range s.Items {
			if !itemKeys[k] {
				errs = append(errs, fmt.Errorf("subjects[%d]: unknown item %q", i, k))
			}
		}
		chapterIDs := map[string]bool{}
		for j, c := range s.Chapters {
			if chapterIDs[c.ID] {
				errs = append(errs, fmt.Errorf("subjects[%d].chapters[%d]: duplicate id %q", i, j, c.ID))
			}
			chapterIDs[c.ID] = true
			if c.Paper == 2 && !level.HasPaperTwo() {
				errs = append(errs, fmt.Errorf("subjects[%d].chapters[%d]: paper 2 is not available at %s level", i, j, level))
			}
		}
	}

	for i, b := range p.Bars {
		for _, k := range b.Items {
			if !itemKeys[k] {
				errs = append(errs, fmt.Errorf("bars[%d]: unknown item %q", i, k))
			}
		}
		if err := toBar(b, "").Validate(); err != nil {
			errs = append(errs, fmt.Errorf("bars[%d]: %w", i, err))
		}
	}

	return errs
}
