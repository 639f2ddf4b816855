package progress

import (
	"github.com/alexanderramin/chapterwise/internal/domain"
)

// BreakdownEntry is one item's cross-subject average.
type BreakdownEntry struct {
	Name   string  `json:"name"`
	Val    float64 `json:"val"`
	Weight float64 `json:"weight"`
	Color  string  `json:"color"`
}

// Composite summarizes progress across every subject.
type Composite struct {
	Composite   float64                   `json:"composite"`
	Breakdown   map[string]BreakdownEntry `json:"breakdown"`
	TotalWeight float64                   `json:"totalWeight"`
}

// GlobalComposite computes the top-level score as the unweighted mean of
// every subject's overall progress. Every subject counts equally no matter
// how many chapters or items it has.
//
// The breakdown covers each item key configured anywhere (global list first,
// then per-subject overrides). An item's value is averaged only over the
// subjects that configure it, and it carries its global weight.
func GlobalComposite(data domain.UserData, settings domain.Settings) Composite {
	out := Composite{Breakdown: map[string]BreakdownEntry{}}
	if len(settings.Syllabus) == 0 {
		return out
	}

	subjects := settings.Syllabus.SortedKeys()
	var sum float64
	for _, id := range subjects {
		items := settings.ItemsFor(id)
		sum += Calculate(id, domain.ItemKeys(items), data, settings.WeightsFor(id), items, settings.Syllabus).Overall
	}
	out.Composite = clamp(sum / float64(len(subjects)))

	for _, meta := range AllItems(settings) {
		var total float64
		var n int
		for _, id := range subjects {
			v, ok := SubjectItem(id, meta.Key, data, settings)
			if !ok {
				continue
			}
			total += v
			n++
		}
		entry := BreakdownEntry{Name: meta.Name, Color: meta.Color, Weight: settings.Weights[meta.Key]}
		if n > 0 {
			entry.Val = clamp(total / float64(n))
		}
		if entry.Weight > 0 {
			out.TotalWeight += entry.Weight
		}
		out.Breakdown[meta.Key] = entry
	}
	return out
}

// SubjectItem returns one item's unweighted average across a subject's
// chapters. ok is false when the subject does not configure the item.
func SubjectItem(subjectID, itemKey string, data domain.UserData, settings domain.Settings) (float64, bool) {
	items := settings.ItemsFor(subjectID)
	if _, ok := domain.FindItem(items, itemKey); !ok {
		return 0, false
	}
	return Calculate(subjectID, []string{itemKey}, data, nil, items, settings.Syllabus).Overall, true
}

// AllItems lists every item configured anywhere in settings, global list
// first, then subject overrides in subject key order.
func AllItems(settings domain.Settings) []domain.TrackableItem {
	return itemUnion(settings, settings.Syllabus.SortedKeys())
}

// itemUnion returns every distinct item, keeping the first metadata seen.
// The global list is visited before subject overrides.
func itemUnion(settings domain.Settings, subjects []string) []domain.TrackableItem {
	seen := map[string]bool{}
	var out []domain.TrackableItem
	add := func(items []domain.TrackableItem) {
		for _, it := range items {
			if it.Key == "" || seen[it.Key] {
				continue
			}
			seen[it.Key] = true
			out = append(out, it)
		}
	}
	add(settings.TrackableItems)
	for _, id := range subjects {
		add(settings.SubjectConfigs[id])
	}
	return out
}
