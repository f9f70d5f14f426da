package accesslog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/locklog/internal/database"
)

var logColumns = []string{
	"id", "project_id", "card_id", "score", "score_type", "note",
	"success", "new_card", "source", "created_at", "updated_at",
}

func newRepoWithMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewRepository(database.NewBunDB(sqlDB), time.Second), mock
}

func TestInsert(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO "access_logs"`).
		WillReturnRows(sqlmock.NewRows(logColumns).
			AddRow(id.String(), "P-1", "A", 80.0, "exam", "", true, false, "L-1", now, now))

	got, err := repo.Insert(context.Background(), RecordInput{Key: "L-1", ProjectID: "P-1", CardID: "A", Score: 80, ScoreType: "exam", Success: true})
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "L-1", got.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateScore_TouchesOnlyScoreFields(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE "access_logs" AS "al" SET score = 90, score_type = 'exam', note = 'ok' WHERE \(id = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "access_logs"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.UpdateScore(context.Background(), uuid.New(), 90, "exam", "ok")
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.UpdateScore(context.Background(), uuid.New(), 90, "exam", "ok")
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT .* FROM "access_logs" AS "al" WHERE \(id = `).
		WillReturnRows(sqlmock.NewRows(logColumns))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_Ordering(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT .* FROM "access_logs" AS "al" ORDER BY created_at DESC, id DESC`).
		WillReturnRows(sqlmock.NewRows(logColumns))

	logs, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestListScored_Filters(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM "access_logs" AS "al" WHERE \(success = TRUE\) AND \(score > 0\) ORDER BY created_at DESC, id DESC`).
		WillReturnRows(sqlmock.NewRows(logColumns).
			AddRow(uuid.NewString(), "", "A", 80.0, "", "", true, false, "L-1", now, now))

	logs, err := repo.ListScored(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 80.0, logs[0].Score)
}

func TestList_Timeout(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	repo := NewRepository(database.NewBunDB(sqlDB), 10*time.Millisecond)

	mock.ExpectQuery(`SELECT`).WillReturnRows(sqlmock.NewRows(logColumns))

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err = repo.List(ctx)
	assert.ErrorIs(t, err, database.ErrTimeout)
}

func TestList_CanceledWithinDeadline(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT`).WillReturnError(&pq.Error{Code: "57014"})

	_, err := repo.List(context.Background())
	assert.NotErrorIs(t, err, database.ErrTimeout)
	assert.ErrorContains(t, err, "failed to list access logs")
}
