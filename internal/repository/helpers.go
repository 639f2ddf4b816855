package repository

import (
	"maps"
	"slices"
	"time"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

// timestampLayout is the stored updated_at format. Millisecond precision keeps
// rows sortable as text in SQLite.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// parseTimestamp parses a stored updated_at value. Returns the zero time if
// the value is empty or fails to parse.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}

// nowUTC returns the current UTC time in the stored timestamp layout.
func nowUTC() string {
	return time.Now().UTC().Format(timestampLayout)
}

// sortedKeys gives writes a stable order so row locks are taken consistently.
func sortedKeys(d domain.UserData) []string {
	return slices.Sorted(maps.Keys(d))
}
