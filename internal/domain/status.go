package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// StatusCode is the granular completion state of one (chapter, item) pair.
// Codes 0-4 are partial steps of 20%, 5 is done and 6 is skipped.
type StatusCode int

const (
	StatusNone    StatusCode = 0
	Status20      StatusCode = 1
	Status40      StatusCode = 2
	Status60      StatusCode = 3
	Status80      StatusCode = 4
	StatusDone    StatusCode = 5
	StatusSkipped StatusCode = 6
)

// statusPercents is indexed by status code.
var statusPercents = [...]float64{0, 20, 40, 60, 80, 100, 0}

// ParseStatus coerces an arbitrary stored value into a status code.
// Numbers, numeric strings and booleans are accepted; fractional values are
// floored. Anything non-finite, malformed or outside 0..6 becomes StatusNone.
// Booleans and numeric strings coerce on purpose, matching documents written
// by browser clients: true reads as 1 and "3" as 3.
func ParseStatus(v any) StatusCode {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return StatusNone
	}
	n := math.Floor(f)
	if n < 0 || n > float64(StatusSkipped) {
		return StatusNone
	}
	return StatusCode(n)
}

// Valid reports whether c is one of the seven defined codes.
func (c StatusCode) Valid() bool {
	return c >= StatusNone && c <= StatusSkipped
}

// Percent returns the completion percentage for c. Skipped counts as 0%.
func (c StatusCode) Percent() float64 {
	if !c.Valid() {
		return 0
	}
	return statusPercents[c]
}

// IsDone reports whether c is the terminal-success code.
func (c StatusCode) IsDone() bool { return c == StatusDone }

// IsSkipped reports whether c is the terminal-exclude code.
func (c StatusCode) IsSkipped() bool { return c == StatusSkipped }

// Next returns the code that follows c in the click cycle 0..6, wrapping to 0.
func (c StatusCode) Next() StatusCode {
	if !c.Valid() || c == StatusSkipped {
		return StatusNone
	}
	return c + 1
}

// Label is the short display form used by the CLI.
func (c StatusCode) Label() string {
	switch c {
	case StatusDone:
		return "done"
	case StatusSkipped:
		return "skip"
	default:
		return strconv.Itoa(int(c.Percent())) + "%"
	}
}

// StatusToPercent maps any stored status value to its percentage.
func StatusToPercent(v any) float64 {
	return ParseStatus(v).Percent()
}

// PercentToStatus maps a percentage back to the nearest 20% step. The result
// is always in 0..5; skipped cannot be recovered from a percentage.
func PercentToStatus(pct float64) StatusCode {
	if math.IsNaN(pct) || pct <= 0 {
		return StatusNone
	}
	if pct >= 100 {
		return StatusDone
	}
	return StatusCode(math.Round(pct / 20))
}

// ParseStatusArg parses a CLI status argument: a code 0-6, a percentage such
// as "60%", or the words "done" and "skip".
func ParseStatusArg(s string) (StatusCode, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "done":
		return StatusDone, true
	case "skip", "skipped":
		return StatusSkipped, true
	}
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		f, err := strconv.ParseFloat(pct, 64)
		if err != nil || f < 0 || f > 100 {
			return StatusNone, false
		}
		return PercentToStatus(f), true
	}
	n, err := strconv.Atoi(s)
	if err != nil || !StatusCode(n).Valid() {
		return StatusNone, false
	}
	return StatusCode(n), true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case StatusCode:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
