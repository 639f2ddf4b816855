package progress

import (
	"math"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

// Result is the weighted completion of one subject.
type Result struct {
	Overall float64 `json:"overall"`
	P1      float64 `json:"p1"`
	P2      float64 `json:"p2"`
}

// Calculate computes per-paper and overall completion of a subject.
//
// Each item's paper score is the mean of its entry percents across the
// paper's chapters. Paper scores are combined with the item weights: a nil
// weight map weighs every item equally, otherwise missing and negative
// weights count as zero. Overall blends the two papers by chapter count and
// equals P1 exactly when paper 2 has no chapters.
//
// itemKeys are deduplicated and, when items is non-empty, restricted to keys
// present in items. Chapters whose paper is neither 1 nor 2 are ignored.
// The result is always within [0,100].
func Calculate(subjectID string, itemKeys []string, data domain.UserData, weights domain.WeightMap, items []domain.TrackableItem, syllabus domain.Syllabus) Result {
	subj, ok := syllabus[subjectID]
	if !ok {
		return Result{}
	}
	keys := effectiveKeys(itemKeys, items)
	if len(keys) == 0 {
		return Result{}
	}

	var paper1, paper2 []domain.Chapter
	for _, ch := range subj.Chapters {
		switch ch.Paper {
		case 1:
			paper1 = append(paper1, ch)
		case 2:
			paper2 = append(paper2, ch)
		}
	}

	r := Result{
		P1: paperScore(subjectID, paper1, keys, data, weights),
		P2: paperScore(subjectID, paper2, keys, data, weights),
	}
	n1, n2 := float64(len(paper1)), float64(len(paper2))
	switch {
	case n2 == 0:
		r.Overall = r.P1
	case n1 == 0:
		r.Overall = r.P2
	default:
		r.Overall = clamp((r.P1*n1 + r.P2*n2) / (n1 + n2))
	}
	return r
}

// Chapter computes the weighted completion of a single chapter row.
func Chapter(subjectID string, chapterID domain.ChapterID, itemKeys []string, data domain.UserData, weights domain.WeightMap, items []domain.TrackableItem) float64 {
	keys := effectiveKeys(itemKeys, items)
	var num, den float64
	for _, key := range keys {
		w := itemWeight(weights, key)
		if w <= 0 {
			continue
		}
		pct := data.Status(domain.NewEntryKey(subjectID, chapterID, key)).Percent()
		num += pct * w
		den += w
	}
	if den == 0 {
		return 0
	}
	return clamp(num / den)
}

func paperScore(subjectID string, chapters []domain.Chapter, keys []string, data domain.UserData, weights domain.WeightMap) float64 {
	if len(chapters) == 0 {
		return 0
	}
	var num, den float64
	for _, key := range keys {
		w := itemWeight(weights, key)
		if w <= 0 {
			continue
		}
		var sum float64
		for _, ch := range chapters {
			sum += data.Status(domain.NewEntryKey(subjectID, ch.ID, key)).Percent()
		}
		num += sum / float64(len(chapters)) * w
		den += w
	}
	if den == 0 {
		return 0
	}
	return clamp(num / den)
}

func itemWeight(weights domain.WeightMap, key string) float64 {
	if weights == nil {
		return 1
	}
	w := weights[key]
	if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return 0
	}
	return w
}

func effectiveKeys(itemKeys []string, items []domain.TrackableItem) []string {
	var allowed map[string]bool
	if len(items) > 0 {
		allowed = make(map[string]bool, len(items))
		for _, it := range items {
			allowed[it.Key] = true
		}
	}
	seen := make(map[string]bool, len(itemKeys))
	out := make([]string, 0, len(itemKeys))
	for _, k := range itemKeys {
		if k == "" || seen[k] {
			continue
		}
		if allowed != nil && !allowed[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
