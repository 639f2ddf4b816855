package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/chapterwise/internal/testutil"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type persistRecorder struct {
	mu    sync.Mutex
	calls []string
	keys  []string
	err   error
}

func (r *persistRecorder) persist(_ context.Context, key, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, payload)
	r.keys = append(r.keys, key)
	return r.err
}

func (r *persistRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestDebouncer_CoalescesToLatestPayload(t *testing.T) {
	clk := testutil.NewFakeClock(t0)
	rec := &persistRecorder{}
	d := NewDebouncer[string](clk, 300*time.Millisecond, rec.persist, nil)

	d.Schedule("u1", "payloadA")
	clk.Advance(20 * time.Millisecond)
	d.Schedule("u1", "payloadB")
	clk.Advance(30 * time.Millisecond)
	d.Schedule("u1", "payloadC")

	clk.Advance(299 * time.Millisecond)
	assert.Empty(t, rec.snapshot(), "quiet period restarts on every schedule")

	clk.Advance(time.Millisecond)
	assert.Equal(t, []string{"payloadC"}, rec.snapshot())

	clk.Advance(time.Second)
	assert.Equal(t, []string{"payloadC"}, rec.snapshot())
	assert.False(t, d.Pending("u1"))
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	clk := testutil.NewFakeClock(t0)
	rec := &persistRecorder{}
	d := NewDebouncer[string](clk, 300*time.Millisecond, rec.persist, nil)

	d.Schedule("u1", "one")
	clk.Advance(200 * time.Millisecond)
	d.Schedule("u2", "two")
	clk.Advance(100 * time.Millisecond)

	assert.Equal(t, []string{"one"}, rec.snapshot())
	assert.True(t, d.Pending("u2"))

	clk.Advance(200 * time.Millisecond)
	assert.Equal(t, []string{"one", "two"}, rec.snapshot())
	assert.Equal(t, []string{"u1", "u2"}, rec.keys)
}

func TestDebouncer_FlushRunsImmediatelyOnce(t *testing.T) {
	clk := testutil.NewFakeClock(t0)
	rec := &persistRecorder{}
	d := NewDebouncer[string](clk, 300*time.Millisecond, rec.persist, nil)

	d.Schedule("u1", "latest")
	require.NoError(t, d.Flush(context.Background(), "u1"))
	assert.Equal(t, []string{"latest"}, rec.snapshot())

	clk.Advance(time.Second)
	assert.Equal(t, []string{"latest"}, rec.snapshot(), "stopped timer must not fire again")

	require.NoError(t, d.Flush(context.Background(), "u1"), "flushing with nothing pending is a no-op")
	assert.Len(t, rec.snapshot(), 1)
}

func TestDebouncer_CancelDropsPayload(t *testing.T) {
	clk := testutil.NewFakeClock(t0)
	rec := &persistRecorder{}
	d := NewDebouncer[string](clk, 300*time.Millisecond, rec.persist, nil)

	d.Schedule("u1", "dropped")
	assert.True(t, d.Cancel("u1"))
	assert.False(t, d.Cancel("u1"))

	clk.Advance(time.Second)
	assert.Empty(t, rec.snapshot())
	assert.Zero(t, d.Len())
}

func TestDebouncer_ReportsResults(t *testing.T) {
	clk := testutil.NewFakeClock(t0)
	boom := errors.New("backend down")
	rec := &persistRecorder{err: boom}

	var gotKey string
	var gotErr error
	d := NewDebouncer[string](clk, 100*time.Millisecond, rec.persist, func(key string, err error) {
		gotKey, gotErr = key, err
	})

	d.Schedule("u9", "x")
	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, "u9", gotKey)
	assert.ErrorIs(t, gotErr, boom)
}

func TestDebouncer_FlushAllJoinsErrors(t *testing.T) {
	clk := testutil.NewFakeClock(t0)
	boom := errors.New("backend down")
	rec := &persistRecorder{err: boom}
	d := NewDebouncer[string](clk, time.Minute, rec.persist, nil)

	d.Schedule("a", "1")
	d.Schedule("b", "2")
	err := d.FlushAll(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.ElementsMatch(t, []string{"1", "2"}, rec.snapshot())
	assert.Zero(t, d.Len())
}

func TestDebouncer_RealClock(t *testing.T) {
	rec := &persistRecorder{}
	d := NewDebouncer[string](nil, 10*time.Millisecond, rec.persist, nil)
	d.Schedule("u1", "a")
	d.Schedule("u1", "b")

	assert.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"b"}, rec.snapshot())
}

// gatedStore blocks the persist of one payload until release is closed.
type gatedStore struct {
	gate    string
	started chan struct{}
	release chan struct{}

	mu     sync.Mutex
	stored string
	writes []string
}

func newGatedStore(gate string) *gatedStore {
	return &gatedStore{gate: gate, started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedStore) persist(_ context.Context, _ string, payload string) error {
	if payload == g.gate {
		g.started <- struct{}{}
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stored = payload
	g.writes = append(g.writes, payload)
	return nil
}

func (g *gatedStore) state() (string, []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stored, append([]string(nil), g.writes...)
}

func waitStarted(t *testing.T, g *gatedStore) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(time.Second):
		t.Fatal("timer-driven write never started")
	}
}

func TestDebouncer_FlushWaitsForInFlightWrite(t *testing.T) {
	g := newGatedStore("A")
	d := NewDebouncer[string](nil, 10*time.Millisecond, g.persist, nil)

	d.Schedule("u1", "A")
	waitStarted(t, g)

	flushed := make(chan error, 1)
	go func() { flushed <- d.Flush(context.Background(), "u1") }()

	select {
	case <-flushed:
		t.Fatal("Flush returned while the write was still in flight")
	case <-time.After(30 * time.Millisecond):
	}

	close(g.release)
	require.NoError(t, <-flushed)
	stored, writes := g.state()
	assert.Equal(t, "A", stored)
	assert.Equal(t, []string{"A"}, writes)
}

func TestDebouncer_NewerPayloadLandsAfterInFlightWrite(t *testing.T) {
	g := newGatedStore("A")
	d := NewDebouncer[string](nil, 10*time.Millisecond, g.persist, nil)

	d.Schedule("u1", "A")
	waitStarted(t, g)
	d.Schedule("u1", "B")

	flushed := make(chan error, 1)
	go func() { flushed <- d.Flush(context.Background(), "u1") }()

	time.Sleep(30 * time.Millisecond)
	stored, _ := g.state()
	assert.Empty(t, stored, "B must wait for A")

	close(g.release)
	require.NoError(t, <-flushed)
	stored, writes := g.state()
	assert.Equal(t, "B", stored)
	assert.Equal(t, []string{"A", "B"}, writes)
	assert.False(t, d.Pending("u1"))
	assert.Zero(t, d.Len())
}

func TestDebouncer_FlushHonoursContextWhileWaiting(t *testing.T) {
	g := newGatedStore("A")
	d := NewDebouncer[string](nil, 10*time.Millisecond, g.persist, nil)
	defer close(g.release)

	d.Schedule("u1", "A")
	waitStarted(t, g)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Flush(ctx, "u1"), context.DeadlineExceeded)
}
