package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alexanderramin/chapterwise/internal/app"
	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/importer"
	"github.com/alexanderramin/chapterwise/internal/preset"
	"github.com/alexanderramin/chapterwise/internal/store"
	"github.com/alexanderramin/chapterwise/internal/syncer"
	"github.com/alexanderramin/chapterwise/internal/testutil"
)

const testUser = "student-1"

type fixture struct {
	backend *testutil.FakeBackend
	clock   *testutil.FakeClock
	session *syncer.Session
	svc     TrackerService
}

func biologySettings() domain.Settings {
	return testutil.NewTestSettings(
		testutil.WithSubject(testutil.NewTestSubject("bio",
			testutil.WithSubjectName("Biology"),
			testutil.WithChapters(1, 2),
			testutil.WithChapters(2, 1),
		)),
		testutil.WithItems("lecture", "notes"),
	)
}

func newFixture(t *testing.T, settings domain.Settings, observers ...UseCaseObserver) *fixture {
	t.Helper()
	backend := testutil.NewFakeBackend()
	backend.Seed(testUser, store.Snapshot{Data: domain.UserData{}, Settings: settings})
	clk := testutil.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	session := syncer.NewSession(testUser, backend, syncer.WithClock(clk))
	require.NoError(t, session.Login(context.Background()))
	t.Cleanup(func() { _ = session.Logout(context.Background()) })

	return &fixture{
		backend: backend,
		clock:   clk,
		session: session,
		svc:     NewTrackerService(session, preset.NewCatalog("", 0, clk), observers...),
	}
}

func TestMark_RecordsStatusAndWrites(t *testing.T) {
	f := newFixture(t, biologySettings())
	ctx := context.Background()

	req := app.MarkRequest{SubjectID: "bio", ChapterID: "1", ItemKey: "lecture", Status: domain.StatusDone}
	require.NoError(t, f.svc.Mark(ctx, req))
	assert.Equal(t, domain.StatusDone, f.session.Data().Status(req.Key()))

	f.clock.Advance(syncer.DefaultWriteDelay)
	require.Equal(t, 1, f.backend.ProgressWriteCount())
	assert.Equal(t, domain.StatusDone, f.backend.Doc(testUser).Data.Status(req.Key()))
}

func TestMark_RejectsUnknownTargets(t *testing.T) {
	f := newFixture(t, biologySettings())
	ctx := context.Background()

	tests := []struct {
		name string
		req  app.MarkRequest
		want error
	}{
		{"subject", app.MarkRequest{SubjectID: "chem", ChapterID: "1", ItemKey: "lecture"}, ErrUnknownSubject},
		{"chapter", app.MarkRequest{SubjectID: "bio", ChapterID: "9", ItemKey: "lecture"}, ErrUnknownChapter},
		{"item", app.MarkRequest{SubjectID: "bio", ChapterID: "1", ItemKey: "lab"}, ErrUnknownItem},
		{"status", app.MarkRequest{SubjectID: "bio", ChapterID: "1", ItemKey: "lecture", Status: 9}, syncer.ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Mark(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
		})
	}
	assert.Empty(t, f.session.Data())
}

func TestCycle_AdvancesAndWraps(t *testing.T) {
	f := newFixture(t, biologySettings())
	ctx := context.Background()
	k := domain.NewEntryKey("bio", "2", "notes")

	var seen []domain.StatusCode
	for i := 0; i < 7; i++ {
		code, err := f.svc.Cycle(ctx, k)
		require.NoError(t, err)
		seen = append(seen, code)
	}
	assert.Equal(t, domain.StatusCode(1), seen[0])
	assert.Equal(t, domain.StatusNone, seen[6])
}

func TestNote_SetAndClear(t *testing.T) {
	f := newFixture(t, biologySettings())
	ctx := context.Background()
	k := domain.NewEntryKey("bio", "1", "lecture")

	require.NoError(t, f.svc.Note(ctx, k, "revise diagrams"))
	assert.Equal(t, "revise diagrams", f.session.Data().Note(k))

	require.NoError(t, f.svc.Note(ctx, k, ""))
	assert.Equal(t, "", f.session.Data().Note(k))
}

func TestStatus_BuildsSubjectViews(t *testing.T) {
	f := newFixture(t, biologySettings())
	ctx := context.Background()
	require.NoError(t, f.svc.Mark(ctx, app.MarkRequest{SubjectID: "bio", ChapterID: "1", ItemKey: "lecture", Status: domain.StatusDone}))
	require.NoError(t, f.svc.Mark(ctx, app.MarkRequest{SubjectID: "bio", ChapterID: "3", ItemKey: "notes", Status: domain.StatusDone}))

	resp, err := f.svc.Status(ctx, app.NewStatusRequest())
	require.NoError(t, err)
	require.Len(t, resp.Subjects, 1)
	bio := resp.Subjects[0]
	assert.Equal(t, "Biology", bio.Name)
	assert.InDelta(t, 25.0, bio.Progress.P1, 0.001)
	assert.InDelta(t, 50.0, bio.Progress.P2, 0.001)
	require.Len(t, bio.Chapters, 3)
	assert.InDelta(t, 50.0, bio.Chapters[0].Progress, 0.001)
	require.Len(t, bio.Chapters[0].Cells, 2)
	require.NotNil(t, bio.Chapters[0].Cells[0].ModifiedAt)
	assert.Equal(t, f.clock.Now(), *bio.Chapters[0].Cells[0].ModifiedAt)
	assert.Nil(t, bio.Chapters[0].Cells[1].ModifiedAt)

	assert.Equal(t, syncer.PhaseSynced, resp.Sync.Phase)
	assert.True(t, resp.Sync.PendingWrites)
}

func TestStatus_ScopeAndChapterToggle(t *testing.T) {
	settings := biologySettings()
	settings.Syllabus["phy"] = testutil.NewTestSubject("phy", testutil.WithChapters(1, 1))
	f := newFixture(t, settings)

	req := app.StatusRequest{SubjectScope: []string{"phy"}}
	resp, err := f.svc.Status(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Subjects, 1)
	assert.Equal(t, "phy", resp.Subjects[0].ID)
	assert.Empty(t, resp.Subjects[0].Chapters)
}

func TestStatus_ReportsDisconnect(t *testing.T) {
	f := newFixture(t, biologySettings())
	f.backend.Drop(testUser, errors.New("socket closed"))

	resp, err := f.svc.Status(context.Background(), app.NewStatusRequest())
	require.NoError(t, err)
	assert.Equal(t, syncer.PhaseDisconnected, resp.Sync.Phase)
	assert.Contains(t, resp.Sync.LastError, "socket closed")
}

func TestImport_MergesBackup(t *testing.T) {
	f := newFixture(t, biologySettings())
	raw := []byte(`{
		"data": {
			"s_bio_1_lecture": 5,
			"timestamp_bio_1_lecture": "2026-04-30T08:00:00.000Z",
			"note_bio_1_lecture": "done twice"
		},
		"settings": {"academicLevel": "HSC", "theme": "dark"}
	}`)

	res, err := f.svc.Import(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, &app.ImportResult{Statuses: 1, Timestamps: 1, Notes: 1, SettingsApplied: true}, res)

	k := domain.NewEntryKey("bio", "1", "lecture")
	assert.Equal(t, domain.StatusDone, f.session.Data().Status(k))
	assert.Equal(t, "dark", f.session.Settings().Theme)
}

func TestImport_InvalidBackupChangesNothing(t *testing.T) {
	f := newFixture(t, biologySettings())

	_, err := f.svc.Import(context.Background(), []byte(`{"data": {"s_bio_1_lecture": 42}}`))
	assert.ErrorIs(t, err, importer.ErrInvalidBackup)
	assert.Empty(t, f.session.Data())
}

func TestSettingsEdits_RoundTrip(t *testing.T) {
	f := newFixture(t, biologySettings())
	ctx := context.Background()

	require.NoError(t, f.svc.AddSubject(ctx, domain.Subject{Key: "chem", Name: "Chemistry"}))
	require.NoError(t, f.svc.AddChapter(ctx, "chem", domain.Chapter{ID: "1", Name: "Atoms"}))
	require.NoError(t, f.svc.AddItem(ctx, "chem", domain.TrackableItem{Key: "lab", Name: "Lab"}))
	require.NoError(t, f.svc.SetWeights(ctx, "chem", domain.WeightMap{"lecture": 50, "notes": 20, "lab": 30}))

	st := f.session.Settings()
	require.Contains(t, st.Syllabus, "chem")
	assert.Equal(t, 1, st.Syllabus["chem"].Chapters[0].Paper)
	assert.Equal(t, []string{"lecture", "notes", "lab"}, domain.ItemKeys(st.ItemsFor("chem")))
	assert.Equal(t, []string{"lecture", "notes"}, domain.ItemKeys(st.ItemsFor("bio")))
	assert.Equal(t, 30.0, st.WeightsFor("chem")["lab"])

	require.NoError(t, f.svc.RemoveItem(ctx, "chem", "lab"))
	require.NoError(t, f.svc.RemoveChapter(ctx, "chem", "1"))
	require.NoError(t, f.svc.RemoveSubject(ctx, "chem"))
	st = f.session.Settings()
	assert.NotContains(t, st.Syllabus, "chem")
	assert.NotContains(t, st.SubjectConfigs, "chem")
	assert.NotContains(t, st.SubjectWeights, "chem")

	f.clock.Advance(syncer.DefaultWriteDelay)
	assert.Equal(t, 1, f.backend.SettingsWriteCount())
}

func TestSettingsEdits_Errors(t *testing.T) {
	f := newFixture(t, biologySettings())
	ctx := context.Background()
	before := f.session.Settings()

	assert.ErrorIs(t, f.svc.AddSubject(ctx, domain.Subject{Key: "bio", Name: "Again"}), ErrDuplicate)
	assert.Error(t, f.svc.AddSubject(ctx, domain.Subject{Key: "a_b", Name: "Bad key"}))
	assert.ErrorIs(t, f.svc.AddChapter(ctx, "bio", domain.Chapter{ID: "1", Name: "Dup"}), ErrDuplicate)
	assert.ErrorIs(t, f.svc.AddChapter(ctx, "nope", domain.Chapter{ID: "1", Name: "X"}), ErrUnknownSubject)
	assert.ErrorIs(t, f.svc.RemoveChapter(ctx, "bio", "7"), ErrUnknownChapter)
	assert.ErrorIs(t, f.svc.AddItem(ctx, "", domain.TrackableItem{Key: "notes", Name: "Notes"}), ErrDuplicate)
	assert.ErrorIs(t, f.svc.RemoveItem(ctx, "", "lab"), ErrUnknownItem)
	assert.ErrorIs(t, f.svc.SetWeights(ctx, "", domain.WeightMap{"lecture": 60, "notes": 30}), ErrInvalidWeights)
	assert.ErrorIs(t, f.svc.SetWeights(ctx, "", domain.WeightMap{"lecture": 60, "lab": 40}), ErrUnknownItem)

	assert.Equal(t, before, f.session.Settings())
}

func TestSetAcademicLevel_GuardsPaperTwo(t *testing.T) {
	f := newFixture(t, biologySettings())
	ctx := context.Background()

	err := f.svc.SetAcademicLevel(ctx, domain.LevelSSC)
	assert.ErrorIs(t, err, ErrPaperUnavailable)

	require.NoError(t, f.svc.RemoveChapter(ctx, "bio", "3"))
	require.NoError(t, f.svc.SetAcademicLevel(ctx, domain.LevelSSC))
	assert.Equal(t, domain.LevelSSC, f.session.Settings().AcademicLevel)

	err = f.svc.AddChapter(ctx, "bio", domain.Chapter{ID: "4", Name: "Genetics", Paper: 2})
	assert.ErrorIs(t, err, ErrPaperUnavailable)
	assert.Error(t, f.svc.SetAcademicLevel(ctx, "A-level"))
}

func TestAddProgressBar_AssignsID(t *testing.T) {
	f := newFixture(t, biologySettings())
	ctx := context.Background()

	bar, err := f.svc.AddProgressBar(ctx, domain.ProgressBar{Name: "Reading", Items: []string{"lecture", "notes"}})
	require.NoError(t, err)
	assert.NotEmpty(t, bar.ID)
	assert.Equal(t, []domain.ProgressBar{bar}, f.session.Settings().ProgressBars)

	_, err = f.svc.AddProgressBar(ctx, domain.ProgressBar{Name: "Lab", Items: []string{"lab"}})
	assert.ErrorIs(t, err, ErrUnknownItem)
}

func TestApplyPreset_SeedsSyllabus(t *testing.T) {
	f := newFixture(t, domain.Settings{Theme: "dark"})
	ctx := context.Background()

	list, err := f.svc.Presets(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, list)

	p, err := f.svc.ApplyPreset(ctx, "hsc-science")
	require.NoError(t, err)
	st := f.session.Settings()
	assert.Equal(t, p.AcademicLevel(), st.AcademicLevel)
	assert.Len(t, st.Syllabus, len(p.Subjects))
	assert.Equal(t, "dark", st.Theme)

	_, err = f.svc.ApplyPreset(ctx, "does-not-exist")
	assert.ErrorIs(t, err, preset.ErrUnknownPreset)
}

func TestApplyPreset_WithoutCatalog(t *testing.T) {
	f := newFixture(t, biologySettings())
	svc := NewTrackerService(f.session, nil)

	_, err := svc.ApplyPreset(context.Background(), "hsc-science")
	assert.ErrorIs(t, err, ErrNoPresets)
	_, err = svc.Presets(context.Background())
	assert.ErrorIs(t, err, ErrNoPresets)
}

func TestReport_UsesSessionView(t *testing.T) {
	f := newFixture(t, biologySettings())
	ctx := context.Background()
	require.NoError(t, f.svc.Mark(ctx, app.MarkRequest{SubjectID: "bio", ChapterID: "1", ItemKey: "lecture", Status: domain.StatusDone}))

	r, err := f.svc.Report(ctx)
	require.NoError(t, err)
	require.Len(t, r.Subjects, 1)
	assert.Equal(t, "Biology", r.Subjects[0].Name)
	assert.Greater(t, r.Subjects[0].Progress.Overall, 0.0)

	require.NoError(t, f.session.Logout(ctx))
	_, err = f.svc.Report(ctx)
	assert.ErrorIs(t, err, syncer.ErrNotActive)
}

func TestMutations_RefusedWhenLoggedOut(t *testing.T) {
	f := newFixture(t, biologySettings())
	ctx := context.Background()
	require.NoError(t, f.session.Logout(ctx))

	err := f.svc.AddSubject(ctx, domain.Subject{Key: "chem", Name: "Chemistry"})
	assert.ErrorIs(t, err, syncer.ErrNotActive)
}

func TestObserver_LogsUseCases(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	f := newFixture(t, biologySettings(), NewLogUseCaseObserver(zap.New(core)))
	ctx := context.Background()

	require.NoError(t, f.svc.Mark(ctx, app.MarkRequest{SubjectID: "bio", ChapterID: "1", ItemKey: "lecture", Status: 2}))
	assert.Error(t, f.svc.Mark(ctx, app.MarkRequest{SubjectID: "zzz", ChapterID: "1", ItemKey: "lecture"}))

	entries := logs.FilterMessage("service_use_case").AllUntimed()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	assert.Equal(t, "mark", first["use_case"])
	assert.Equal(t, true, first["success"])
	assert.Equal(t, testUser, first["user_id"])
	assert.Equal(t, "s_bio_1_lecture", first["key"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}
