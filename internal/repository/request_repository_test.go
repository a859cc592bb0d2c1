package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-clearance-api/internal/models"
)

var requestRowColumns = []string{"id", "request_code", "student_id", "student_email", "program", "submission_date", "status",
	"library_status", "library_note", "bursar_status", "bursar_note", "academic_status", "academic_note",
	"verifier_notes", "processor_notes", "created_by", "created_at", "updated_at"}

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func pendingRequestRow(id string, ts time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(requestRowColumns).
		AddRow(id, "REQ-20240105-0a1b2c3d", "S-100", "s100@school.test", "Science", ts, "NEW",
			"PENDING", "", "PENDING", "", "PENDING", "", "", "", nil, ts, ts)
}

func TestRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.Request{
		RequestCode:    "REQ-20240105-0a1b2c3d",
		StudentID:      "S-100",
		StudentEmail:   "s100@school.test",
		Status:         models.StatusNew,
		LibraryStatus:  models.LibraryPending,
		BursarStatus:   models.BursarPending,
		AcademicStatus: models.AcademicPending,
	}
	require.NoError(t, repo.Create(context.Background(), req))
	require.NotEmpty(t, req.ID)
	require.False(t, req.CreatedAt.IsZero())
	require.Equal(t, req.CreatedAt, req.UpdatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, request_code")).
		WithArgs(req.ID).
		WillReturnRows(pendingRequestRow(req.ID, time.Now()))

	found, err := repo.GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, models.LibraryPending, found.LibraryStatus)
	require.Nil(t, found.CreatedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, request_code").WithArgs("missing").WillReturnError(sql.ErrNoRows)
	_, err := NewRequestRepository(db).GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, request_code")).
		WithArgs("NEW", "IN_REVIEW", "S-100").
		WillReturnRows(pendingRequestRow("req-1", now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM document_requests WHERE")).
		WithArgs("NEW", "IN_REVIEW", "S-100").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := NewRequestRepository(db).List(context.Background(), models.RequestFilter{
		Status:    []models.OverallStatus{models.StatusNew, models.StatusInReview},
		StudentID: "S-100",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryMutateCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, request_code, .* FROM document_requests WHERE id = \\$1 FOR UPDATE").
		WithArgs("req-1").
		WillReturnRows(pendingRequestRow("req-1", now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_requests SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	before, after, err := NewRequestRepository(db).Mutate(context.Background(), "req-1", func(current models.Request) (*models.Request, error) {
		current.LibraryStatus = models.LibraryClear
		return &current, nil
	})
	require.NoError(t, err)
	require.Equal(t, models.LibraryPending, before.LibraryStatus)
	require.Equal(t, models.LibraryClear, after.LibraryStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryMutateRollsBackOnRejection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("req-1").
		WillReturnRows(pendingRequestRow("req-1", time.Now()))
	mock.ExpectRollback()

	rejection := errors.New("rejected")
	_, _, err := NewRequestRepository(db).Mutate(context.Background(), "req-1", func(models.Request) (*models.Request, error) {
		return nil, rejection
	})
	require.ErrorIs(t, err, rejection)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryMutateMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	called := false
	_, _, err := NewRequestRepository(db).Mutate(context.Background(), "nope", func(current models.Request) (*models.Request, error) {
		called = true
		return &current, nil
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}
