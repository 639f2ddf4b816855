package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
)

type AcademicLevel string

const (
	LevelHSC AcademicLevel = "HSC"
	LevelSSC AcademicLevel = "SSC"
)

// HasPaperTwo reports whether the level uses a two-paper structure. An unset
// level behaves like HSC.
func (l AcademicLevel) HasPaperTwo() bool {
	return l != LevelSSC
}

// ChapterID is a chapter identifier. Stored documents carry either JSON
// numbers or strings; both decode to the same textual id.
type ChapterID string

func (c *ChapterID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = ChapterID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("chapter id: %w", err)
	}
	*c = ChapterID(n.String())
	return nil
}

// MarshalJSON writes integral ids back as numbers so documents written by
// other clients keep their shape.
func (c ChapterID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(c), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(c) {
		return []byte(string(c)), nil
	}
	return json.Marshal(string(c))
}

// TrackableItem is a named, colored progress column.
type TrackableItem struct {
	Key   string `json:"key" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Color string `json:"color,omitempty"`
}

type Chapter struct {
	ID    ChapterID `json:"id" validate:"required,excludesall=_"`
	Name  string    `json:"name" validate:"required"`
	Paper int       `json:"paper" validate:"oneof=1 2"`
}

type Subject struct {
	Key      string    `json:"key" validate:"required,excludesall=_"`
	Name     string    `json:"name" validate:"required"`
	Icon     string    `json:"icon,omitempty"`
	Color    string    `json:"color,omitempty"`
	Chapters []Chapter `json:"chapters" validate:"dive"`
}

// Syllabus maps subject keys to subjects.
type Syllabus map[string]Subject

// SortedKeys returns the subject keys in ascending order.
func (s Syllabus) SortedKeys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WeightMap holds relative item weights. A nil map means "not supplied".
type WeightMap map[string]float64

// Sum adds all weights.
func (w WeightMap) Sum() float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

// ProgressBar is a named weighted bar preset.
type ProgressBar struct {
	ID      string    `json:"id"`
	Name    string    `json:"name" validate:"required"`
	Items   []string  `json:"items" validate:"required,min=1"`
	Weights WeightMap `json:"weights,omitempty"`
	Color   string    `json:"color,omitempty"`
}

// Settings is the per-user configuration document.
type Settings struct {
	Syllabus               Syllabus                   `json:"syllabus,omitempty"`
	TrackableItems         []TrackableItem            `json:"trackableItems,omitempty"`
	SubjectConfigs         map[string][]TrackableItem `json:"subjectConfigs,omitempty"`
	Weights                WeightMap                  `json:"weights"`
	SubjectWeights         map[string]WeightMap       `json:"subjectWeights,omitempty"`
	SubjectProgressItems   map[string][]string        `json:"subjectProgressItems,omitempty"`
	SubjectProgressWeights map[string]WeightMap       `json:"subjectProgressWeights,omitempty"`
	ProgressBars           []ProgressBar              `json:"progressBars,omitempty"`
	CustomNames            map[string]string          `json:"customNames,omitempty"`
	SyllabusOpenState      map[string]bool            `json:"syllabusOpenState,omitempty"`
	AcademicLevel          AcademicLevel              `json:"academicLevel,omitempty"`
	CountdownTarget        string                     `json:"countdownTarget,omitempty"`
	CountdownLabel         string                     `json:"countdownLabel,omitempty"`
	Theme                  string                     `json:"theme,omitempty"`
	GlowColor              string                     `json:"glowColor,omitempty"`
}

// ItemsFor returns the effective item list of a subject: its override when
// present and non-empty, otherwise the global list.
func (s *Settings) ItemsFor(subjectID string) []TrackableItem {
	if items := s.SubjectConfigs[subjectID]; len(items) > 0 {
		return items
	}
	return s.TrackableItems
}

// WeightsFor returns the effective weight map of a subject, falling back to
// the global map. The result may be nil.
func (s *Settings) WeightsFor(subjectID string) WeightMap {
	if w := s.SubjectWeights[subjectID]; len(w) > 0 {
		return w
	}
	return s.Weights
}

// ItemKeys returns the keys of items in order.
func ItemKeys(items []TrackableItem) []string {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.Key)
	}
	return keys
}

// FindItem looks up an item by key.
func FindItem(items []TrackableItem, key string) (TrackableItem, bool) {
	for _, it := range items {
		if it.Key == key {
			return it, true
		}
	}
	return TrackableItem{}, false
}

// DisplayName resolves a subject or item name through customNames.
func (s *Settings) DisplayName(key, fallback string) string {
	for _, name := range []string{s.CustomNames[key], fallback} {
		if name != "" {
			return name
		}
	}
	return key
}

// Clone returns a deep copy that shares no mutable state with s.
func (s Settings) Clone() Settings {
	out := s
	if s.Syllabus != nil {
		out.Syllabus = make(Syllabus, len(s.Syllabus))
		for k, subj := range s.Syllabus {
			subj.Chapters = slices.Clone(subj.Chapters)
			out.Syllabus[k] = subj
		}
	}
	out.TrackableItems = slices.Clone(s.TrackableItems)
	if s.SubjectConfigs != nil {
		out.SubjectConfigs = make(map[string][]TrackableItem, len(s.SubjectConfigs))
		for k, v := range s.SubjectConfigs {
			out.SubjectConfigs[k] = slices.Clone(v)
		}
	}
	out.Weights = maps.Clone(s.Weights)
	out.SubjectWeights = cloneWeightMaps(s.SubjectWeights)
	if s.SubjectProgressItems != nil {
		out.SubjectProgressItems = make(map[string][]string, len(s.SubjectProgressItems))
		for k, v := range s.SubjectProgressItems {
			out.SubjectProgressItems[k] = slices.Clone(v)
		}
	}
	out.SubjectProgressWeights = cloneWeightMaps(s.SubjectProgressWeights)
	if s.ProgressBars != nil {
		out.ProgressBars = make([]ProgressBar, len(s.ProgressBars))
		for i, b := range s.ProgressBars {
			b.Items = slices.Clone(b.Items)
			b.Weights = maps.Clone(b.Weights)
			out.ProgressBars[i] = b
		}
	}
	out.CustomNames = maps.Clone(s.CustomNames)
	out.SyllabusOpenState = maps.Clone(s.SyllabusOpenState)
	return out
}

func cloneWeightMaps(in map[string]WeightMap) map[string]WeightMap {
	if in == nil {
		return nil
	}
	out := make(map[string]WeightMap, len(in))
	for k, v := range in {
		out[k] = maps.Clone(v)
	}
	return out
}
