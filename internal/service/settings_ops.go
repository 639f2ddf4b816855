package service

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/alexanderramin/chapterwise/internal/domain"
)

// The helpers below edit a settings document in place. They run inside
// Session.UpdateSettings on a clone, so a returned error discards the edit.

func addSubject(st *domain.Settings, subj domain.Subject) error {
	if err := subj.Validate(); err != nil {
		return err
	}
	if _, ok := st.Syllabus[subj.Key]; ok {
		return fmt.Errorf("subject %q: %w", subj.Key, ErrDuplicate)
	}
	if subj.Chapters == nil {
		subj.Chapters = []domain.Chapter{}
	}
	for _, c := range subj.Chapters {
		if err := checkPaper(st, c); err != nil {
			return err
		}
	}
	if st.Syllabus == nil {
		st.Syllabus = domain.Syllabus{}
	}
	st.Syllabus[subj.Key] = subj
	return nil
}

// removeSubject drops a subject and every per-subject override. Progress
// entries for it are left in place.
func removeSubject(st *domain.Settings, subjectID string) error {
	if _, ok := st.Syllabus[subjectID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSubject, subjectID)
	}
	delete(st.Syllabus, subjectID)
	delete(st.SubjectConfigs, subjectID)
	delete(st.SubjectWeights, subjectID)
	delete(st.SubjectProgressItems, subjectID)
	delete(st.SubjectProgressWeights, subjectID)
	delete(st.SyllabusOpenState, subjectID)
	return nil
}

func checkPaper(st *domain.Settings, c domain.Chapter) error {
	if c.Paper == 2 && !st.AcademicLevel.HasPaperTwo() {
		return fmt.Errorf("chapter %q: paper 2 at %s: %w", c.ID, st.AcademicLevel, ErrPaperUnavailable)
	}
	return nil
}

func addChapter(st *domain.Settings, subjectID string, c domain.Chapter) error {
	subj, ok := st.Syllabus[subjectID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSubject, subjectID)
	}
	if c.Paper == 0 {
		c.Paper = 1
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := checkPaper(st, c); err != nil {
		return err
	}
	if slices.ContainsFunc(subj.Chapters, func(x domain.Chapter) bool { return x.ID == c.ID }) {
		return fmt.Errorf("chapter %q in %q: %w", c.ID, subjectID, ErrDuplicate)
	}
	subj.Chapters = append(slices.Clone(subj.Chapters), c)
	st.Syllabus[subjectID] = subj
	return nil
}

func removeChapter(st *domain.Settings, subjectID string, chapterID domain.ChapterID) error {
	subj, ok := st.Syllabus[subjectID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSubject, subjectID)
	}
	idx := slices.IndexFunc(subj.Chapters, func(x domain.Chapter) bool { return x.ID == chapterID })
	if idx < 0 {
		return fmt.Errorf("%w: %q in %q", ErrUnknownChapter, chapterID, subjectID)
	}
	subj.Chapters = slices.Delete(slices.Clone(subj.Chapters), idx, idx+1)
	st.Syllabus[subjectID] = subj
	return nil
}

// addItem appends to the global list, or to a subject override. A subject
// without an override starts from a copy of the global list.
func addItem(st *domain.Settings, subjectID string, item domain.TrackableItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if subjectID == "" {
		if _, ok := domain.FindItem(st.TrackableItems, item.Key); ok {
			return fmt.Errorf("item %q: %w", item.Key, ErrDuplicate)
		}
		st.TrackableItems = append(st.TrackableItems, item)
		return nil
	}
	if _, ok := st.Syllabus[subjectID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSubject, subjectID)
	}
	items := slices.Clone(st.ItemsFor(subjectID))
	if _, ok := domain.FindItem(items, item.Key); ok {
		return fmt.Errorf("item %q in %q: %w", item.Key, subjectID, ErrDuplicate)
	}
	if st.SubjectConfigs == nil {
		st.SubjectConfigs = map[string][]domain.TrackableItem{}
	}
	st.SubjectConfigs[subjectID] = append(items, item)
	return nil
}

// removeItem drops an item and its weight. Removing the last item of a
// subject override reverts the subject to the global list.
func removeItem(st *domain.Settings, subjectID, key string) error {
	if subjectID == "" {
		idx := slices.IndexFunc(st.TrackableItems, func(x domain.TrackableItem) bool { return x.Key == key })
		if idx < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownItem, key)
		}
		st.TrackableItems = slices.Delete(slices.Clone(st.TrackableItems), idx, idx+1)
		delete(st.Weights, key)
		return nil
	}
	if _, ok := st.Syllabus[subjectID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSubject, subjectID)
	}
	items := st.ItemsFor(subjectID)
	idx := slices.IndexFunc(items, func(x domain.TrackableItem) bool { return x.Key == key })
	if idx < 0 {
		return fmt.Errorf("%w: %q in %q", ErrUnknownItem, key, subjectID)
	}
	if st.SubjectConfigs == nil {
		st.SubjectConfigs = map[string][]domain.TrackableItem{}
	}
	st.SubjectConfigs[subjectID] = slices.Delete(slices.Clone(items), idx, idx+1)
	if len(st.SubjectConfigs[subjectID]) == 0 {
		delete(st.SubjectConfigs, subjectID)
	}
	delete(st.SubjectWeights[subjectID], key)
	return nil
}

func setWeights(st *domain.Settings, subjectID string, w domain.WeightMap) error {
	if err := domain.ValidateWeightEdit(w); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWeights, err)
	}
	items := st.TrackableItems
	if subjectID != "" {
		if _, ok := st.Syllabus[subjectID]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSubject, subjectID)
		}
		items = st.ItemsFor(subjectID)
	}
	for k := range w {
		if _, ok := domain.FindItem(items, k); !ok {
			return fmt.Errorf("%w: %w: %q", ErrInvalidWeights, ErrUnknownItem, k)
		}
	}
	if subjectID == "" {
		st.Weights = maps.Clone(w)
		return nil
	}
	if st.SubjectWeights == nil {
		st.SubjectWeights = map[string]domain.WeightMap{}
	}
	st.SubjectWeights[subjectID] = maps.Clone(w)
	return nil
}

// addProgressBar assigns an id when missing.
func addProgressBar(st *domain.Settings, bar domain.ProgressBar) (domain.ProgressBar, error) {
	if err := bar.Validate(); err != nil {
		return bar, err
	}
	for _, k := range bar.Items {
		if !slices.ContainsFunc(allItemKeys(st), func(x string) bool { return x == k }) {
			return bar, fmt.Errorf("%w: %q", ErrUnknownItem, k)
		}
	}
	if len(bar.Weights) > 0 {
		if err := domain.ValidateWeightEdit(bar.Weights); err != nil {
			return bar, fmt.Errorf("%w: %w", ErrInvalidWeights, err)
		}
	}
	if bar.ID == "" {
		bar.ID = uuid.NewString()
	}
	st.ProgressBars = append(st.ProgressBars, bar)
	return bar, nil
}

func allItemKeys(st *domain.Settings) []string {
	keys := domain.ItemKeys(st.TrackableItems)
	for _, items := range st.SubjectConfigs {
		keys = append(keys, domain.ItemKeys(items)...)
	}
	return keys
}
