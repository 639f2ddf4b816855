package domain

import (
	"maps"
	"strings"
	"time"
)

// TimestampLayout matches the ISO-8601 form written by browser clients
// (millisecond precision, UTC, Z suffix).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// UserData is the flat progress document: status, timestamp and note keys
// mapped to their stored values. Status values are read through ParseStatus,
// so malformed entries degrade to zero instead of failing.
type UserData map[string]any

// Status returns the status code recorded for k.
func (d UserData) Status(k EntryKey) StatusCode {
	return ParseStatus(d[k.String()])
}

// Note returns the annotation recorded for k, if any.
func (d UserData) Note(k EntryKey) string {
	s, _ := d[k.NoteKey()].(string)
	return s
}

// Timestamp returns the last-modified time of k. ok is false when absent or
// unparseable.
func (d UserData) Timestamp(k EntryKey) (time.Time, bool) {
	s, _ := d[k.TimestampKey()].(string)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetStatus records a status and stamps its companion timestamp.
func (d UserData) SetStatus(k EntryKey, code StatusCode, at time.Time) {
	d[k.String()] = int(code)
	d[k.TimestampKey()] = FormatTimestamp(at)
}

// SetNote records an annotation. An empty note is stored as an empty string
// so that merging writers clear the previous text.
func (d UserData) SetNote(k EntryKey, note string, at time.Time) {
	d[k.NoteKey()] = note
	d[k.TimestampKey()] = FormatTimestamp(at)
}

// Clone returns a copy of the document. Values are scalars so a shallow map
// copy is sufficient.
func (d UserData) Clone() UserData {
	if d == nil {
		return UserData{}
	}
	return maps.Clone(d)
}

// StatusKeys returns the number of status entries in the document.
func (d UserData) StatusKeys() int {
	n := 0
	for k := range d {
		if strings.HasPrefix(k, StatusPrefix) {
			n++
		}
	}
	return n
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
