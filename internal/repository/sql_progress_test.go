package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alexanderramin/chapterwise/internal/db"
	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressRepo_UpsertAndList(t *testing.T) {
	conn := testutil.NewTestDB(t)
	repo := NewSQLProgressRepo(conn, db.SQLite)
	ctx := context.Background()

	ek := domain.NewEntryKey("bio", "1", "lecture")
	key := ek.String()
	require.NoError(t, repo.Upsert(ctx, "u1", key, 3))
	require.NoError(t, repo.Upsert(ctx, "u1", ek.NoteKey(), "re-read diagrams"))

	data, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, data, 2)
	assert.Equal(t, domain.StatusCode(3), data.Status(ek))
	assert.Equal(t, "re-read diagrams", data[ek.NoteKey()])
}

func TestProgressRepo_UpsertOverwrites(t *testing.T) {
	conn := testutil.NewTestDB(t)
	repo := NewSQLProgressRepo(conn, db.SQLite)
	ctx := context.Background()

	key := testutil.Entry("bio", "1", "lecture")
	require.NoError(t, repo.Upsert(ctx, "u1", key, 1))
	require.NoError(t, repo.Upsert(ctx, "u1", key, 5))

	n, err := repo.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, float64(5), data[key])
}

func TestProgressRepo_UnknownUserIsEmpty(t *testing.T) {
	conn := testutil.NewTestDB(t)
	repo := NewSQLProgressRepo(conn, db.SQLite)

	data, err := repo.ListByUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, data)
	assert.Empty(t, data)
}

func TestProgressRepo_UsersAreIsolated(t *testing.T) {
	conn := testutil.NewTestDB(t)
	repo := NewSQLProgressRepo(conn, db.SQLite)
	ctx := context.Background()

	key := testutil.Entry("phy", "2", "ps")
	require.NoError(t, repo.Upsert(ctx, "u1", key, 2))
	require.NoError(t, repo.Upsert(ctx, "u2", key, 4))

	d1, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	d2, err := repo.ListByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, float64(2), d1[key])
	assert.Equal(t, float64(4), d2[key])
}

func TestProgressRepo_ApplyDeletesNilValues(t *testing.T) {
	conn := testutil.NewTestDB(t)
	repo := NewSQLProgressRepo(conn, db.SQLite)
	ctx := context.Background()

	a := testutil.Entry("bio", "1", "lecture")
	b := testutil.Entry("bio", "2", "lecture")
	require.NoError(t, repo.Apply(ctx, "u1", domain.UserData{a: 1, b: 2}))
	require.NoError(t, repo.Apply(ctx, "u1", domain.UserData{a: nil, b: 6}))

	data, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserData{b: float64(6)}, data)
}

func TestProgressRepo_ListRowsCarriesTimestamps(t *testing.T) {
	conn := testutil.NewTestDB(t)
	repo := NewSQLProgressRepo(conn, db.SQLite)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "u1", testutil.Entry("bio", "1", "ps"), 4))

	rows, err := repo.ListRows(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "4", rows[0].ValueJSON)
	assert.False(t, rows[0].UpdatedAt.IsZero())
}

func TestProgressRepo_MalformedStoredValueReadsAsRawString(t *testing.T) {
	conn := testutil.NewTestDB(t)
	repo := NewSQLProgressRepo(conn, db.SQLite)
	ctx := context.Background()

	ek := domain.NewEntryKey("bio", "1", "ps")
	key := ek.String()
	_, err := conn.ExecContext(ctx,
		`INSERT INTO user_progress (user_id, entry_key, value_json, updated_at) VALUES (?, ?, ?, ?)`,
		"u1", key, "{not json", nowUTC())
	require.NoError(t, err)

	data, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "{not json", data[key])
	assert.Equal(t, domain.StatusNone, data.Status(ek))
}

func TestProgressRepo_ApplyRollsBackInsideTx(t *testing.T) {
	conn := testutil.NewTestDB(t)
	ctx := context.Background()
	boom := errors.New("disk full")
	uow := testutil.NewExecFault(conn, 2, boom)

	err := uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return NewSQLProgressRepo(tx, db.SQLite).Apply(ctx, "u1", domain.UserData{
			testutil.Entry("bio", "1", "lecture"): 1,
			testutil.Entry("bio", "2", "lecture"): 2,
		})
	})
	require.ErrorIs(t, err, boom)

	n, err := NewSQLProgressRepo(conn, db.SQLite).CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func newProgressMock(t *testing.T, d db.Dialect) (*SQLProgressRepo, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewSQLProgressRepo(conn, d), mock
}

func TestProgressRepo_PostgresPlaceholders(t *testing.T) {
	repo, mock := newProgressMock(t, db.Postgres)

	mock.ExpectExec(`INSERT INTO user_progress .* VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs("u1", "s_bio_1_lecture", "3", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM user_progress WHERE user_id = \$1 AND entry_key = \$2`).
		WithArgs("u1", "s_bio_1_ps").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, "u1", "s_bio_1_lecture", 3))
	require.NoError(t, repo.Delete(ctx, "u1", "s_bio_1_ps"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepo_QueryFailureIsWrapped(t *testing.T) {
	repo, mock := newProgressMock(t, db.SQLite)
	boom := errors.New("connection reset")

	mock.ExpectQuery(`SELECT entry_key, value_json, updated_at`).WillReturnError(boom)

	_, err := repo.ListByUser(context.Background(), "u1")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "querying progress")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepo_ScanFailureIsWrapped(t *testing.T) {
	repo, mock := newProgressMock(t, db.SQLite)

	rows := sqlmock.NewRows([]string{"entry_key", "value_json"}).AddRow("s_bio_1_ps", "1")
	mock.ExpectQuery(`SELECT entry_key, value_json, updated_at`).WillReturnRows(rows)

	_, err := repo.ListRows(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning progress row")
}
