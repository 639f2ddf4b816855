package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Key prefixes of the flat progress document. The format is shared with any
// external audit/history reader and must not change.
const (
	StatusPrefix    = "s_"
	TimestampPrefix = "timestamp_"
	NotePrefix      = "note_"
)

var ErrMalformedKey = errors.New("malformed progress key")

// EntryKey identifies one (subject, chapter, item) triple.
type EntryKey struct {
	SubjectID string
	ChapterID string
	ItemKey   string
}

// NewEntryKey builds a key from a subject id, a chapter and an item key.
func NewEntryKey(subjectID string, chapterID ChapterID, itemKey string) EntryKey {
	return EntryKey{SubjectID: subjectID, ChapterID: string(chapterID), ItemKey: itemKey}
}

func (k EntryKey) suffix() string {
	return k.SubjectID + "_" + k.ChapterID + "_" + k.ItemKey
}

// String returns the status key, s_{subject}_{chapter}_{item}.
func (k EntryKey) String() string { return StatusPrefix + k.suffix() }

// TimestampKey returns the companion last-modified key.
func (k EntryKey) TimestampKey() string { return TimestampPrefix + k.suffix() }

// NoteKey returns the companion annotation key.
func (k EntryKey) NoteKey() string { return NotePrefix + k.suffix() }

// ParseEntryKey parses a status key. The item key keeps any underscores
// after the chapter segment.
func ParseEntryKey(raw string) (EntryKey, error) {
	rest, ok := strings.CutPrefix(raw, StatusPrefix)
	if !ok {
		return EntryKey{}, fmt.Errorf("%w: %q lacks %q prefix", ErrMalformedKey, raw, StatusPrefix)
	}
	return parseSuffix(raw, rest)
}

// ParseCompanionKey parses a timestamp_ or note_ key and returns the prefix
// it carried alongside the entry key.
func ParseCompanionKey(raw string) (string, EntryKey, error) {
	for _, prefix := range []string{TimestampPrefix, NotePrefix} {
		if rest, ok := strings.CutPrefix(raw, prefix); ok {
			k, err := parseSuffix(raw, rest)
			return prefix, k, err
		}
	}
	return "", EntryKey{}, fmt.Errorf("%w: %q is not a companion key", ErrMalformedKey, raw)
}

func parseSuffix(raw, rest string) (EntryKey, error) {
	parts := strings.SplitN(rest, "_", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return EntryKey{}, fmt.Errorf("%w: %q", ErrMalformedKey, raw)
	}
	return EntryKey{SubjectID: parts[0], ChapterID: parts[1], ItemKey: parts[2]}, nil
}
