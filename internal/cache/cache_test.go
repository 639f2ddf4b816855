package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/store"
	"github.com/alexanderramin/chapterwise/internal/syncer"
	"github.com/alexanderramin/chapterwise/internal/testutil"
)

var _ syncer.LocalCache = (*FileCache)(nil)

func TestFileCache_MissIsNil(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)

	snap, err := c.Load("u1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestFileCache_SaveLoadClear(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)
	key := testutil.Entry("bio", "1", "lecture")
	want := store.Snapshot{
		Data:     domain.UserData{key: float64(2)},
		Settings: testutil.NewTestSettings(testutil.WithItems("lecture")),
	}

	require.NoError(t, c.Save("u1", want))
	got, err := c.Load("u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	require.NoError(t, c.Clear("u1"))
	require.NoError(t, c.Clear("u1"))
	got, err = c.Load("u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileCache_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u1.snapshot.json"), []byte("nope"), 0o644))

	_, err = c.Load("u1")
	assert.Error(t, err)
}

func TestFileCache_RejectsPathUserIDs(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, c.Save("../x", store.Snapshot{}))
	_, err = c.Load("a/b")
	assert.Error(t, err)
}

func TestTTL_CachesUntilExpiry(t *testing.T) {
	clk := testutil.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	calls := 0
	c := NewTTL(time.Minute, func(context.Context) (int, error) {
		calls++
		return calls * 10, nil
	}, clk)
	ctx := context.Background()

	v, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	clk.Advance(59 * time.Second)
	v, _ = c.Get(ctx)
	assert.Equal(t, 10, v)
	assert.Equal(t, 1, calls)

	clk.Advance(time.Second)
	v, _ = c.Get(ctx)
	assert.Equal(t, 20, v)
	assert.Equal(t, 2, calls)
}

func TestTTL_Invalidate(t *testing.T) {
	calls := 0
	c := NewTTL(time.Hour, func(context.Context) (string, error) {
		calls++
		return "v", nil
	}, nil)
	ctx := context.Background()

	_, _ = c.Get(ctx)
	c.Invalidate()
	_, _ = c.Get(ctx)
	assert.Equal(t, 2, calls)
}

func TestTTL_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("catalog unavailable")
	fail := true
	c := NewTTL(time.Hour, func(context.Context) ([]string, error) {
		if fail {
			return nil, boom
		}
		return []string{"hsc-science"}, nil
	}, nil)
	ctx := context.Background()

	_, err := c.Get(ctx)
	require.ErrorIs(t, err, boom)

	fail = false
	v, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hsc-science"}, v)
}
