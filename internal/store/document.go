package store

import (
	"encoding/json"
	"fmt"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

// MergeProgress applies patch to dst in place. A nil value removes the key.
func MergeProgress(dst, patch domain.UserData) {
	for k, v := range patch {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}

// EncodeValue renders a single progress value as JSON.
func EncodeValue(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding progress value: %w", err)
	}
	return string(b), nil
}

// DecodeValue parses a JSON progress value. Malformed input is returned as
// the raw string so that it reads as an unparseable status rather than
// failing the whole document.
func DecodeValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// EncodeSettings renders a settings document.
func EncodeSettings(s domain.Settings) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encoding settings: %w", err)
	}
	return string(b), nil
}

// DecodeSettings parses a settings document.
func DecodeSettings(raw string) (domain.Settings, error) {
	var s domain.Settings
	if raw == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return domain.Settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}
