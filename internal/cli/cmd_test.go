package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alexanderramin/chapterwise/internal/cli/formatter"
	"github.com/alexanderramin/chapterwise/internal/config"
	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/preset"
	"github.com/alexanderramin/chapterwise/internal/service"
	"github.com/alexanderramin/chapterwise/internal/store"
	"github.com/alexanderramin/chapterwise/internal/syncer"
	"github.com/alexanderramin/chapterwise/internal/testutil"
)

const cliUser = "student-1"

func TestMain(m *testing.M) {
	formatter.DisableColor()
	os.Exit(m.Run())
}

// syncBuffer is safe for the concurrent writes the watch command makes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type cliFixture struct {
	backend *testutil.FakeBackend
	clock   *testutil.FakeClock
	out     *syncBuffer
	opens   int
}

func newCLIFixture(t *testing.T, settings domain.Settings) *cliFixture {
	t.Helper()
	backend := testutil.NewFakeBackend()
	backend.Seed(cliUser, store.Snapshot{Data: domain.UserData{}, Settings: settings})
	return &cliFixture{
		backend: backend,
		clock:   testutil.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
		out:     &syncBuffer{},
	}
}

func (f *cliFixture) open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	f.opens++
	relay := &EventRelay{}
	metrics := syncer.NewMetrics()
	session := syncer.NewSession(cfg.UserID, f.backend,
		syncer.WithClock(f.clock),
		syncer.WithLogger(logger),
		syncer.WithMetrics(metrics),
		syncer.WithEventHandler(relay.Handle),
	)
	if err := session.Login(ctx); err != nil {
		return nil, err
	}
	tracker := service.NewTrackerService(session, preset.NewCatalog("", 0, f.clock))
	rt := NewRuntime(session, tracker, metrics)
	rt.Events = relay
	return rt, nil
}

func (f *cliFixture) app() *App {
	return &App{
		Config:     &config.Config{UserID: cliUser, Backend: config.BackendFile, Sync: config.SyncConfig{WriteDelay: syncer.DefaultWriteDelay}},
		Logger:     zap.NewNop(),
		Open:       f.open,
		Out:        f.out,
		Now:        f.clock.Now,
		IsTerminal: func() bool { return false },
	}
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	f.out.Reset()
	err := Execute(context.Background(), f.app(), args)
	return f.out.String(), err
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

func statusOf(f *cliFixture, subject, chapter, item string) domain.StatusCode {
	return f.backend.Doc(cliUser).Data.Status(domain.NewEntryKey(subject, domain.ChapterID(chapter), item))
}

func TestMarkCmd_PersistsOnExit(t *testing.T) {
	f := newCLIFixture(t, biologySettings())

	out, err := f.run(t, "mark", "bio", "1", "lecture", "done")
	require.NoError(t, err)
	assert.Contains(t, out, "bio ch.1 lecture")
	assert.Equal(t, domain.StatusDone, statusOf(f, "bio", "1", "lecture"))

	_, err = f.run(t, "mark", "bio", "2", "notes", "60%")
	require.NoError(t, err)
	assert.Equal(t, domain.Status60, statusOf(f, "bio", "2", "notes"))
}

func TestMarkCmd_Errors(t *testing.T) {
	f := newCLIFixture(t, biologySettings())

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad status", []string{"mark", "bio", "1", "lecture", "almost"}, "invalid status"},
		{"unknown subject", []string{"mark", "chem", "1", "lecture", "done"}, "unknown subject"},
		{"unknown chapter", []string{"mark", "bio", "9", "lecture", "done"}, "unknown chapter"},
		{"untracked item", []string{"mark", "bio", "1", "video", "done"}, "item not tracked"},
		{"missing args", []string{"mark", "bio", "1"}, "accepts 4 arg(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.run(t, tt.args...)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 0, f.backend.ProgressWriteCount())
}

func TestCycleCmd_Advances(t *testing.T) {
	f := newCLIFixture(t, biologySettings())

	out, err := f.run(t, "cycle", "bio", "1", "lecture")
	require.NoError(t, err)
	assert.Contains(t, out, "20%")
	assert.Equal(t, domain.Status20, statusOf(f, "bio", "1", "lecture"))
}

func TestNoteCmd_SetAndClear(t *testing.T) {
	f := newCLIFixture(t, biologySettings())
	k := domain.NewEntryKey("bio", "1", "notes")

	_, err := f.run(t, "note", "bio", "1", "notes", "redo", "diagrams")
	require.NoError(t, err)
	assert.Equal(t, "redo diagrams", f.backend.Doc(cliUser).Data.Note(k))

	out, err := f.run(t, "status", "bio")
	require.NoError(t, err)
	assert.Contains(t, out, "NOTES")
	assert.Contains(t, out, "redo diagrams")

	_, err = f.run(t, "note", "bio", "1", "notes")
	assert.ErrorContains(t, err, "note text is required")

	_, err = f.run(t, "note", "bio", "1", "notes", "--clear")
	require.NoError(t, err)
	assert.Empty(t, f.backend.Doc(cliUser).Data.Note(k))
}

func TestStatusCmd_Views(t *testing.T) {
	f := newCLIFixture(t, biologySettings())
	_, err := f.run(t, "mark", "bio", "1", "lecture", "done")
	require.NoError(t, err)

	out, err := f.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "PROGRESS · HSC")
	assert.Contains(t, out, "Biology")
	assert.Contains(t, out, "synced")

	out, err = f.run(t, "status", "bio")
	require.NoError(t, err)
	assert.Contains(t, out, "Chapter 3")
	assert.Contains(t, out, "done")

	out, err = f.run(t, "status", "--brief")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))

	_, err = f.run(t, "status", "chem")
	assert.ErrorContains(t, err, `unknown subject "chem"`)
}

func TestSyllabusCmds(t *testing.T) {
	f := newCLIFixture(t, biologySettings())

	_, err := f.run(t, "subject", "add", "chem", "Chemistry", "--chapters", "3", "--paper2", "2")
	require.NoError(t, err)
	chem := f.backend.Doc(cliUser).Settings.Syllabus["chem"]
	require.Len(t, chem.Chapters, 5)
	assert.Equal(t, 2, chem.Chapters[4].Paper)

	_, err = f.run(t, "chapter", "add", "chem", "6", "Organic", "basics", "--paper", "2")
	require.NoError(t, err)
	_, err = f.run(t, "chapter", "rm", "chem", "1")
	require.NoError(t, err)
	chem = f.backend.Doc(cliUser).Settings.Syllabus["chem"]
	require.Len(t, chem.Chapters, 5)
	assert.Equal(t, "Organic basics", chem.Chapters[4].Name)

	out, err := f.run(t, "subject", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Chemistry")
	assert.Contains(t, out, "lecture, notes")

	_, err = f.run(t, "item", "add", "mcq", "MCQ", "practice", "--subject", "chem")
	require.NoError(t, err)
	settings := f.backend.Doc(cliUser).Settings
	assert.Equal(t, []string{"lecture", "notes", "mcq"}, domain.ItemKeys(settings.ItemsFor("chem")))
	assert.Equal(t, []string{"lecture", "notes"}, domain.ItemKeys(settings.ItemsFor("bio")))

	_, err = f.run(t, "weights", "lecture=60", "notes=40")
	require.NoError(t, err)
	assert.Equal(t, domain.WeightMap{"lecture": 60, "notes": 40}, f.backend.Doc(cliUser).Settings.Weights)

	_, err = f.run(t, "weights", "lecture=60,notes=30")
	assert.ErrorContains(t, err, "invalid weights")

	_, err = f.run(t, "subject", "rm", "chem")
	require.NoError(t, err)
	assert.NotContains(t, f.backend.Doc(cliUser).Settings.Syllabus, "chem")
}

func TestLevelCmd(t *testing.T) {
	f := newCLIFixture(t, biologySettings())

	_, err := f.run(t, "level", "ssc")
	assert.ErrorContains(t, err, "paper")

	_, err = f.run(t, "chapter", "rm", "bio", "3")
	require.NoError(t, err)
	_, err = f.run(t, "level", "ssc")
	require.NoError(t, err)
	assert.Equal(t, domain.LevelSSC, f.backend.Doc(cliUser).Settings.AcademicLevel)

	_, err = f.run(t, "level", "a-level")
	assert.Error(t, err)
}

func TestBarCmd(t *testing.T) {
	f := newCLIFixture(t, biologySettings())

	out, err := f.run(t, "bar", "add", "Revision", "--items", "lecture,notes", "--weights", "lecture=70,notes=30")
	require.NoError(t, err)
	assert.Contains(t, out, "Added bar Revision")

	bars := f.backend.Doc(cliUser).Settings.ProgressBars
	require.Len(t, bars, 1)
	assert.NotEmpty(t, bars[0].ID)
	assert.Equal(t, []string{"lecture", "notes"}, bars[0].Items)

	_, err = f.run(t, "bar", "add", "Broken", "--items", "video")
	assert.Error(t, err)
}

func TestPresetCmds(t *testing.T) {
	f := newCLIFixture(t, domain.Settings{})

	out, err := f.run(t, "presets")
	require.NoError(t, err)
	assert.Contains(t, out, "hsc-science")
	assert.Contains(t, out, "ssc-general")

	_, err = f.run(t, "init")
	assert.ErrorContains(t, err, "--preset is required")

	out, err = f.run(t, "init", "--preset", "hsc-science")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied preset")
	assert.NotEmpty(t, f.backend.Doc(cliUser).Settings.Syllabus)

	_, err = f.run(t, "init", "--preset", "nope")
	assert.ErrorIs(t, err, preset.ErrUnknownPreset)
}

func TestImportExportCmds(t *testing.T) {
	f := newCLIFixture(t, biologySettings())
	dir := t.TempDir()
	backup := filepath.Join(dir, "backup.json")
	require.NoError(t, os.WriteFile(backup, []byte(`{
  "data": {
    "s_bio_1_lecture": 5,
    "timestamp_bio_1_lecture": "2026-03-01T10:04:05.123Z",
    "note_bio_1_lecture": "redo diagrams"
  }
}`), 0o644))

	out, err := f.run(t, "import", backup)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 statuses, 1 timestamps, 1 notes; settings kept")
	assert.Equal(t, domain.StatusDone, statusOf(f, "bio", "1", "lecture"))

	_, err = f.run(t, "import", filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "reading backup file")

	csvPath := filepath.Join(dir, "reports", "progress.csv")
	out, err = f.run(t, "export", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 subjects")
	raw, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Biology")

	_, err = f.run(t, "export", filepath.Join(dir, "progress.txt"))
	assert.ErrorContains(t, err, "unknown export format")

	pdfPath := filepath.Join(dir, "progress.out")
	_, err = f.run(t, "export", pdfPath, "--format", "pdf")
	require.NoError(t, err)
	raw, err = os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestWatchCmd_PrintsRemoteUpdates(t *testing.T) {
	f := newCLIFixture(t, biologySettings())
	ctx, cancel := context.WithCancel(context.Background())
	a := f.app()

	done := make(chan error, 1)
	go func() { done <- Execute(ctx, a, []string{"watch", "--resync-interval", "1h"}) }()

	require.Eventually(t, func() bool { return strings.Contains(f.out.String(), "watching") }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return f.backend.Subscribers(cliUser) == 1 }, 2*time.Second, 10*time.Millisecond)

	data := domain.UserData{}
	data.SetStatus(domain.NewEntryKey("bio", "1", "lecture"), domain.StatusDone, f.clock.Now())
	f.backend.Emit(cliUser, store.Snapshot{Data: data, Settings: biologySettings()})

	require.Eventually(t, func() bool { return strings.Contains(f.out.String(), "remote update applied") }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Equal(t, 0, f.backend.Subscribers(cliUser))
}

func TestExecute_OpenFailure(t *testing.T) {
	a := &App{
		Config: &config.Config{UserID: cliUser},
		Out:    &bytes.Buffer{},
		Open: func(context.Context, *config.Config, *zap.Logger) (*Runtime, error) {
			return nil, assert.AnError
		},
	}
	err := Execute(context.Background(), a, []string{"status"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRootCmd_FlagOverrides(t *testing.T) {
	f := newCLIFixture(t, biologySettings())
	f.backend.Seed("other", store.Snapshot{Data: domain.UserData{}, Settings: biologySettings()})
	a := f.app()

	require.NoError(t, Execute(context.Background(), a, []string{"--user", "other", "mark", "bio", "1", "notes", "skip"}))
	assert.Equal(t, "other", a.Config.UserID)
	assert.Equal(t, domain.StatusSkipped,
		f.backend.Doc("other").Data.Status(domain.NewEntryKey("bio", "1", "notes")))
	assert.Equal(t, domain.StatusNone, statusOf(f, "bio", "1", "notes"))
}

func TestParseWeights(t *testing.T) {
	w, err := parseWeights([]string{"lecture=50", "notes=25,mcq=25"})
	require.NoError(t, err)
	assert.Equal(t, domain.WeightMap{"lecture": 50, "notes": 25, "mcq": 25}, w)

	_, err = parseWeights([]string{"lecture"})
	assert.ErrorContains(t, err, "want item=value")

	_, err = parseWeights([]string{"lecture=lots"})
	assert.ErrorContains(t, err, "invalid weight")
}

func TestNumberedChapters(t *testing.T) {
	got := numberedChapters(2, 1)
	require.Len(t, got, 3)
	assert.Equal(t, domain.ChapterID("3"), got[2].ID)
	assert.Equal(t, 1, got[1].Paper)
	assert.Equal(t, 2, got[2].Paper)
	assert.Empty(t, numberedChapters(0, 0))
}
