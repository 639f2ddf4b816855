package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

// ErrInvalidBackup wraps every validation failure returned by Parse.
var ErrInvalidBackup = errors.New("invalid backup")

// Parse validates raw and converts it. On validation failure nothing is
// returned but the full error list, joined under ErrInvalidBackup.
func Parse(raw []byte) (*Backup, error) {
	if errs := ValidateBackup(raw); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBackup, errors.Join(errs...))
	}
	return Convert(raw)
}

// Convert transforms a validated backup into domain values.
// Call ValidateBackup first; Convert assumes the document is valid.
func Convert(raw []byte) (*Backup, error) {
	root := gjson.ParseBytes(raw)
	b := &Backup{Data: domain.UserData{}}

	root.Get("data").ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		switch {
		case strings.HasPrefix(k, domain.StatusPrefix):
			b.Data[k] = int(value.Int())
			b.Stats.Statuses++
		case strings.HasPrefix(k, domain.TimestampPrefix):
			b.Data[k] = value.String()
			b.Stats.Timestamps++
		case strings.HasPrefix(k, domain.NotePrefix):
			b.Data[k] = value.String()
			b.Stats.Notes++
		}
		return true
	})

	if settings := root.Get("settings"); settings.Exists() {
		var s domain.Settings
		if err := json.Unmarshal([]byte(settings.Raw), &s); err != nil {
			return nil, fmt.Errorf("decoding settings: %w", err)
		}
		for key, subj := range s.Syllabus {
			if subj.Key == "" {
				subj.Key = key
				s.Syllabus[key] = subj
			}
		}
		b.Settings = &s
	}
	return b, nil
}
