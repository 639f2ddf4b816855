package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/alexanderramin/chapterwise/internal/app"
	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/export"
	"github.com/alexanderramin/chapterwise/internal/importer"
	"github.com/alexanderramin/chapterwise/internal/preset"
	"github.com/alexanderramin/chapterwise/internal/progress"
	"github.com/alexanderramin/chapterwise/internal/syncer"
)

type trackerService struct {
	session  *syncer.Session
	presets  *preset.Catalog
	observer UseCaseObserver
	now      func() time.Time
}

// NewTrackerService wires the use cases to a logged-in session. presets may
// be nil, in which case the preset use cases return ErrNoPresets.
func NewTrackerService(session *syncer.Session, presets *preset.Catalog, observers ...UseCaseObserver) TrackerService {
	return &trackerService{
		session:  session,
		presets:  presets,
		observer: useCaseObserverOrNoop(observers),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *trackerService) observe(ctx context.Context, name string, startedAt time.Time, err error, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["user_id"] = s.session.UserID()
	s.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      name,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
	})
}

func (s *trackerService) Status(ctx context.Context, req app.StatusRequest) (resp *app.StatusResponse, err error) {
	startedAt := time.Now()
	defer func() {
		fields := map[string]any{"include_chapters": req.IncludeChapters}
		if resp != nil {
			fields["subjects"] = len(resp.Subjects)
			fields["phase"] = string(resp.Sync.Phase)
		}
		s.observe(ctx, "status", startedAt, err, fields)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, settings := s.session.View()
	resp = &app.StatusResponse{
		Level:     settings.AcademicLevel,
		Composite: progress.GlobalComposite(data, settings),
		Bars:      progress.Bars(data, settings),
		Sync:      s.syncView(),
	}
	for _, id := range settings.Syllabus.SortedKeys() {
		if len(req.SubjectScope) > 0 && !slices.Contains(req.SubjectScope, id) {
			continue
		}
		resp.Subjects = append(resp.Subjects, buildSubjectView(id, data, settings, req.IncludeChapters))
	}
	return resp, nil
}

func (s *trackerService) syncView() app.SyncView {
	v := app.SyncView{
		Phase:           s.session.Phase(),
		PendingWrites:   s.session.HasPendingWrites(),
		UnsyncedData:    s.session.Unsynced(syncer.DocProgress),
		UnsyncedConfig:  s.session.Unsynced(syncer.DocSettings),
		SuppressedTotal: s.session.Suppressed(),
	}
	if err := s.session.LastError(); err != nil {
		v.LastError = err.Error()
	}
	return v
}

func buildSubjectView(id string, data domain.UserData, settings domain.Settings, withChapters bool) app.SubjectView {
	subj := settings.Syllabus[id]
	items := settings.ItemsFor(id)
	keys := domain.ItemKeys(items)
	weights := settings.WeightsFor(id)
	view := app.SubjectView{
		ID:       id,
		Name:     settings.DisplayName(id, subj.Name),
		Icon:     subj.Icon,
		Color:    subj.Color,
		Items:    items,
		Progress: progress.Calculate(id, keys, data, weights, items, settings.Syllabus),
		Bar:      progress.SubjectBar(id, data, settings),
	}
	if !withChapters {
		return view
	}
	for _, ch := range subj.Chapters {
		cv := app.ChapterView{
			ID:       ch.ID,
			Name:     ch.Name,
			Paper:    ch.Paper,
			Progress: progress.Chapter(id, ch.ID, keys, data, weights, items),
		}
		for _, it := range items {
			k := domain.NewEntryKey(id, ch.ID, it.Key)
			cell := app.ItemCell{Key: k, Status: data.Status(k), Note: data.Note(k)}
			if t, ok := data.Timestamp(k); ok {
				cell.ModifiedAt = &t
			}
			cv.Cells = append(cv.Cells, cell)
		}
		view.Chapters = append(view.Chapters, cv)
	}
	return view
}

// checkEntry verifies the key addresses a configured (subject, chapter,
// item) triple.
func checkEntry(settings domain.Settings, k domain.EntryKey) error {
	subj, ok := settings.Syllabus[k.SubjectID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSubject, k.SubjectID)
	}
	if !slices.ContainsFunc(subj.Chapters, func(c domain.Chapter) bool { return string(c.ID) == k.ChapterID }) {
		return fmt.Errorf("%w: %q in %q", ErrUnknownChapter, k.ChapterID, k.SubjectID)
	}
	if _, ok := domain.FindItem(settings.ItemsFor(k.SubjectID), k.ItemKey); !ok {
		return fmt.Errorf("%w: %q in %q", ErrUnknownItem, k.ItemKey, k.SubjectID)
	}
	return nil
}

func (s *trackerService) Mark(ctx context.Context, req app.MarkRequest) (err error) {
	startedAt := time.Now()
	key := req.Key()
	defer func() {
		s.observe(ctx, "mark", startedAt, err, map[string]any{"key": key.String(), "status": int(req.Status)})
	}()

	if err := checkEntry(s.session.Settings(), key); err != nil {
		return err
	}
	return s.session.SetStatus(key, req.Status)
}

func (s *trackerService) Cycle(ctx context.Context, key domain.EntryKey) (next domain.StatusCode, err error) {
	startedAt := time.Now()
	defer func() {
		s.observe(ctx, "cycle", startedAt, err, map[string]any{"key": key.String(), "status": int(next)})
	}()

	if err := checkEntry(s.session.Settings(), key); err != nil {
		return domain.StatusNone, err
	}
	return s.session.CycleStatus(key)
}

func (s *trackerService) Note(ctx context.Context, key domain.EntryKey, note string) (err error) {
	startedAt := time.Now()
	defer func() {
		s.observe(ctx, "note", startedAt, err, map[string]any{"key": key.String(), "cleared": note == ""})
	}()

	if err := checkEntry(s.session.Settings(), key); err != nil {
		return err
	}
	return s.session.SetNote(key, note)
}

func (s *trackerService) Import(ctx context.Context, raw []byte) (result *app.ImportResult, err error) {
	startedAt := time.Now()
	defer func() {
		fields := map[string]any{"bytes": len(raw)}
		if result != nil {
			fields["statuses"] = result.Statuses
			fields["settings_applied"] = result.SettingsApplied
		}
		s.observe(ctx, "import", startedAt, err, fields)
	}()

	backup, err := importer.Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := s.session.ImportData(backup.Data, backup.Settings); err != nil {
		return nil, fmt.Errorf("merging backup: %w", err)
	}
	return &app.ImportResult{
		Statuses:        backup.Stats.Statuses,
		Timestamps:      backup.Stats.Timestamps,
		Notes:           backup.Stats.Notes,
		SettingsApplied: backup.Settings != nil,
	}, nil
}

// editSettings runs an observed settings mutation.
func (s *trackerService) editSettings(ctx context.Context, name string, fields map[string]any, fn func(*domain.Settings) error) (err error) {
	startedAt := time.Now()
	defer func() { s.observe(ctx, name, startedAt, err, fields) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	return s.session.UpdateSettings(fn)
}

func (s *trackerService) AddSubject(ctx context.Context, subj domain.Subject) error {
	return s.editSettings(ctx, "add_subject", map[string]any{"subject": subj.Key}, func(st *domain.Settings) error {
		return addSubject(st, subj)
	})
}

func (s *trackerService) RemoveSubject(ctx context.Context, subjectID string) error {
	return s.editSettings(ctx, "remove_subject", map[string]any{"subject": subjectID}, func(st *domain.Settings) error {
		return removeSubject(st, subjectID)
	})
}

func (s *trackerService) AddChapter(ctx context.Context, subjectID string, c domain.Chapter) error {
	fields := map[string]any{"subject": subjectID, "chapter": string(c.ID)}
	return s.editSettings(ctx, "add_chapter", fields, func(st *domain.Settings) error {
		return addChapter(st, subjectID, c)
	})
}

func (s *trackerService) RemoveChapter(ctx context.Context, subjectID string, chapterID domain.ChapterID) error {
	fields := map[string]any{"subject": subjectID, "chapter": string(chapterID)}
	return s.editSettings(ctx, "remove_chapter", fields, func(st *domain.Settings) error {
		return removeChapter(st, subjectID, chapterID)
	})
}

func (s *trackerService) AddItem(ctx context.Context, subjectID string, item domain.TrackableItem) error {
	fields := map[string]any{"subject": subjectID, "item": item.Key}
	return s.editSettings(ctx, "add_item", fields, func(st *domain.Settings) error {
		return addItem(st, subjectID, item)
	})
}

func (s *trackerService) RemoveItem(ctx context.Context, subjectID, itemKey string) error {
	fields := map[string]any{"subject": subjectID, "item": itemKey}
	return s.editSettings(ctx, "remove_item", fields, func(st *domain.Settings) error {
		return removeItem(st, subjectID, itemKey)
	})
}

func (s *trackerService) SetWeights(ctx context.Context, subjectID string, w domain.WeightMap) error {
	fields := map[string]any{"subject": subjectID, "items": len(w)}
	return s.editSettings(ctx, "set_weights", fields, func(st *domain.Settings) error {
		return setWeights(st, subjectID, w)
	})
}

// SetAcademicLevel refuses to drop to a single-paper level while any
// chapter is still on paper 2.
func (s *trackerService) SetAcademicLevel(ctx context.Context, level domain.AcademicLevel) error {
	return s.editSettings(ctx, "set_level", map[string]any{"level": string(level)}, func(st *domain.Settings) error {
		switch level {
		case domain.LevelHSC, domain.LevelSSC:
		default:
			return fmt.Errorf("unknown academic level %q", level)
		}
		if !level.HasPaperTwo() {
			for _, id := range st.Syllabus.SortedKeys() {
				for _, c := range st.Syllabus[id].Chapters {
					if c.Paper == 2 {
						return fmt.Errorf("%s chapter %q is on paper 2: %w", id, c.ID, ErrPaperUnavailable)
					}
				}
			}
		}
		st.AcademicLevel = level
		return nil
	})
}

func (s *trackerService) AddProgressBar(ctx context.Context, bar domain.ProgressBar) (added domain.ProgressBar, err error) {
	err = s.editSettings(ctx, "add_progress_bar", map[string]any{"bar": bar.Name}, func(st *domain.Settings) error {
		var err error
		added, err = addProgressBar(st, bar)
		return err
	})
	return added, err
}

func (s *trackerService) ApplyPreset(ctx context.Context, presetID string) (p *preset.Preset, err error) {
	startedAt := time.Now()
	defer func() { s.observe(ctx, "apply_preset", startedAt, err, map[string]any{"preset": presetID}) }()

	if s.presets == nil {
		return nil, ErrNoPresets
	}
	p, err = s.presets.Get(ctx, presetID)
	if err != nil {
		return nil, err
	}
	err = s.session.UpdateSettings(func(st *domain.Settings) error {
		*st = preset.Apply(*st, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *trackerService) Presets(ctx context.Context) ([]*preset.Preset, error) {
	if s.presets == nil {
		return nil, ErrNoPresets
	}
	return s.presets.List(ctx)
}

func (s *trackerService) Report(ctx context.Context) (r export.Report, err error) {
	startedAt := time.Now()
	defer func() { s.observe(ctx, "report", startedAt, err, map[string]any{"subjects": len(r.Subjects)}) }()

	if s.session.Phase() == syncer.PhaseIdle {
		return export.Report{}, syncer.ErrNotActive
	}
	if err := ctx.Err(); err != nil {
		return export.Report{}, err
	}
	data, settings := s.session.View()
	return export.BuildReport(data, settings, s.now()), nil
}

// IsValidation reports whether err is a caller mistake rather than a sync or
// storage failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrUnknownSubject, ErrUnknownChapter, ErrUnknownItem, ErrDuplicate,
		ErrInvalidWeights, ErrPaperUnavailable, importer.ErrInvalidBackup,
		preset.ErrUnknownPreset, syncer.ErrInvalidStatus,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
