package progress

import (
	"slices"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

// SubjectBar computes a subject's headline bar. subjectProgressItems and
// subjectProgressWeights narrow the bar when set; otherwise the subject's
// effective items and weights apply.
func SubjectBar(subjectID string, data domain.UserData, settings domain.Settings) Result {
	items := settings.ItemsFor(subjectID)
	keys := settings.SubjectProgressItems[subjectID]
	if len(keys) == 0 {
		keys = domain.ItemKeys(items)
	}
	weights := settings.SubjectProgressWeights[subjectID]
	if len(weights) == 0 {
		weights = settings.WeightsFor(subjectID)
	}
	return Calculate(subjectID, keys, data, weights, items, settings.Syllabus)
}

// BarValue is the score of one named progress bar.
type BarValue struct {
	Bar      domain.ProgressBar
	Value    float64
	Subjects int
}

// Bar computes a named bar as the mean over subjects that configure at least
// one of its items. A bar without weights weighs its items equally.
func Bar(bar domain.ProgressBar, data domain.UserData, settings domain.Settings) BarValue {
	weights := bar.Weights
	if len(weights) == 0 {
		weights = nil
	}
	out := BarValue{Bar: bar}
	var sum float64
	for _, id := range settings.Syllabus.SortedKeys() {
		items := settings.ItemsFor(id)
		var keys []string
		for _, it := range items {
			if slices.Contains(bar.Items, it.Key) {
				keys = append(keys, it.Key)
			}
		}
		if len(keys) == 0 {
			continue
		}
		sum += Calculate(id, keys, data, weights, items, settings.Syllabus).Overall
		out.Subjects++
	}
	if out.Subjects > 0 {
		out.Value = clamp(sum / float64(out.Subjects))
	}
	return out
}

// Bars computes every configured bar in order.
func Bars(data domain.UserData, settings domain.Settings) []BarValue {
	out := make([]BarValue, 0, len(settings.ProgressBars))
	for _, b := range settings.ProgressBars {
		out = append(out, Bar(b, data, settings))
	}
	return out
}
