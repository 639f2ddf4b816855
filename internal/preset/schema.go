package preset

import "github.com/alexanderramin/chapterwise/internal/domain"

// Preset is a YAML syllabus seed: subjects with chapters, trackable items,
// weights and optional named bars.
type Preset struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Level       string             `yaml:"level"`
	Items       []ItemConfig       `yaml:"items"`
	Weights     map[string]float64 `yaml:"weights,omitempty"`
	Subjects    []SubjectConfig    `yaml:"subjects"`
	Bars        []BarConfig        `yaml:"bars,omitempty"`
}

type ItemConfig struct {
	Key   string `yaml:"key"`
	Name  string `yaml:"name"`
	Color string `yaml:"color,omitempty"`
}

type SubjectConfig struct {
	Key      string          `yaml:"key"`
	Name     string          `yaml:"name"`
	Icon     string          `yaml:"icon,omitempty"`
	Color    string          `yaml:"color,omitempty"`
	Items    []string        `yaml:"items,omitempty"` // per-subject override, by item key
	Chapters []ChapterConfig `yaml:"chapters"`
}

type ChapterConfig struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Paper int    `yaml:"paper,omitempty"` // defaults to 1
}

type BarConfig struct {
	Name    string             `yaml:"name"`
	Items   []string           `yaml:"items"`
	Weights map[string]float64 `yaml:"weights,omitempty"`
	Color   string             `yaml:"color,omitempty"`
}

// AcademicLevel returns the preset's level; anything but SSC is HSC.
func (p *Preset) AcademicLevel() domain.AcademicLevel {
	if domain.AcademicLevel(p.Level) == domain.LevelSSC {
		return domain.LevelSSC
	}
	return domain.LevelHSC
}
