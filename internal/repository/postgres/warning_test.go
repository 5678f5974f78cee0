package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/custos/internal/models"
)

func TestWarningAddReturnsNewTotal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewWarningRepository(db)
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO warnings`)).
		WithArgs(testTarget, testChat, "spam", testProposer, issued).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM warnings`)).
		WithArgs(testTarget, testChat).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectCommit()

	w := &models.Warning{UserID: testTarget, ChatID: testChat, Reason: "spam", IssuedBy: testProposer, IssuedAt: issued}
	count, err := repo.Add(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, int64(7), w.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWarningList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewWarningRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM warnings`)).
		WithArgs(testTarget, testChat).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "chat_id", "reason", "issued_by", "issued_at"}).
			AddRow(1, testTarget, testChat, "flood", testProposer, now).
			AddRow(2, testTarget, testChat, "spam", testProposer, now))

	warnings, err := repo.List(context.Background(), testTarget, testChat)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Equal(t, "spam", warnings[1].Reason)
}

func TestWarningAddDoesNotRetryFailedCommit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewWarningRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO warnings`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM warnings`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectCommit().
		WillReturnError(&pq.Error{Code: "08006", Message: "connection failure"})

	_, err = repo.Add(context.Background(), &models.Warning{UserID: testTarget, ChatID: testChat, Reason: "spam", IssuedBy: testProposer})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "the warning insert must run once")
}

func TestWarningAddRetriesTransientInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewWarningRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO warnings`)).
		WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO warnings`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM warnings`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	count, err := repo.Add(context.Background(), &models.Warning{UserID: testTarget, ChatID: testChat, Reason: "spam", IssuedBy: testProposer})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
