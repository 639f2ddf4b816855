package importer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

// ValidateBackup checks a raw backup document before anything is applied.
// Returns a slice of all validation errors found.
func ValidateBackup(raw []byte) []error {
	if !gjson.ValidBytes(raw) {
		return []error{fmt.Errorf("backup is not valid JSON")}
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return []error{fmt.Errorf("backup must be a JSON object")}
	}

	var errs []error
	data := root.Get("data")
	settings := root.Get("settings")
	if !data.Exists() && !settings.Exists() {
		errs = append(errs, fmt.Errorf("backup has neither data nor settings"))
	}
	if data.Exists() {
		errs = append(errs, validateData(data)...)
	}
	if settings.Exists() {
		errs = append(errs, validateSettings(settings)...)
	}
	return errs
}

func validateData(data gjson.Result) []error {
	if !data.IsObject() {
		return []error{fmt.Errorf("data: must be an object")}
	}
	var errs []error
	data.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		switch {
		case strings.HasPrefix(k, domain.StatusPrefix):
			errs = append(errs, validateStatus(k, value)...)
		case strings.HasPrefix(k, domain.TimestampPrefix):
			if _, _, err := domain.ParseCompanionKey(k); err != nil {
				errs = append(errs, fmt.Errorf("data.%s: %w", k, err))
			} else if value.Type != gjson.String {
				errs = append(errs, fmt.Errorf("data.%s: timestamp must be a string", k))
			} else if _, err := time.Parse(time.RFC3339Nano, value.String()); err != nil {
				errs = append(errs, fmt.Errorf("data.%s: invalid timestamp %q", k, value.String()))
			}
		case strings.HasPrefix(k, domain.NotePrefix):
			if _, _, err := domain.ParseCompanionKey(k); err != nil {
				errs = append(errs, fmt.Errorf("data.%s: %w", k, err))
			} else if value.Type != gjson.String {
				errs = append(errs, fmt.Errorf("data.%s: note must be a string", k))
			}
		default:
			errs = append(errs, fmt.Errorf("data.%s: unrecognised key", k))
		}
		return true
	})
	return errs
}

func validateStatus(k string, value gjson.Result) []error {
	if _, err := domain.ParseEntryKey(k); err != nil {
		return []error{fmt.Errorf("data.%s: %w", k, err)}
	}
	if value.Type != gjson.Number {
		return []error{fmt.Errorf("data.%s: status must be a number", k)}
	}
	v := value.Float()
	if v != math.Trunc(v) || v < float64(domain.StatusNone) || v > float64(domain.StatusSkipped) {
		return []error{fmt.Errorf("data.%s: status %v out of range 0..%d", k, value.Raw, domain.StatusSkipped)}
	}
	return nil
}

func validateSettings(settings gjson.Result) []error {
	if !settings.IsObject() {
		return []error{fmt.Errorf("settings: must be an object")}
	}
	var s domain.Settings
	if err := json.Unmarshal([]byte(settings.Raw), &s); err != nil {
		return []error{fmt.Errorf("settings: %w", err)}
	}

	var errs []error
	level := s.AcademicLevel
	if level != "" && level != domain.LevelHSC && level != domain.LevelSSC {
		errs = append(errs, fmt.Errorf("settings.academicLevel: invalid value %q", level))
	}
	for _, key := range s.Syllabus.SortedKeys() {
		subj := s.Syllabus[key]
		if subj.Key != "" && subj.Key != key {
			errs = append(errs, fmt.Errorf("settings.syllabus.%s: key mismatch %q", key, subj.Key))
		}
		if subj.Key == "" {
			subj.Key = key
		}
		if err := subj.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("settings.syllabus.%s: %w", key, err))
		}
	}
	for i, it := range s.TrackableItems {
		if err := it.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("settings.trackableItems[%d]: %w", i, err))
		}
	}
	for i, b := range s.ProgressBars {
		if err := b.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("settings.progressBars[%d]: %w", i, err))
		}
	}
	return errs
}
