package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-clearance-api/internal/models"
)

var slaRowColumns = []string{"id", "request_id", "department", "target_hours", "started_at", "completed_at", "actual_hours",
	"status", "warning_sent", "breached", "created_at", "updated_at"}

func TestSLAMetricRepositoryFindOpen(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	start := time.Now().Add(-time.Hour)
	mock.ExpectQuery("SELECT id, request_id, department, .* WHERE request_id = \\$1 AND department = \\$2 AND completed_at IS NULL").
		WithArgs("req-1", models.DepartmentLibrary).
		WillReturnRows(sqlmock.NewRows(slaRowColumns).
			AddRow("sla-1", "req-1", "LIBRARY", 48.0, start, nil, nil, "PENDING", false, false, start, start))

	metric, err := NewSLAMetricRepository(db).FindOpen(context.Background(), "req-1", models.DepartmentLibrary)
	require.NoError(t, err)
	require.Equal(t, "sla-1", metric.ID)
	require.Nil(t, metric.CompletedAt)
	require.Equal(t, models.SLAStatusPending, metric.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSLAMetricRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sla_metrics")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	metric := &models.SLAMetric{RequestID: "req-1", Department: models.DepartmentBursar, TargetHours: 48, StartedAt: start}
	require.NoError(t, NewSLAMetricRepository(db).Create(context.Background(), metric))
	require.NotEmpty(t, metric.ID)
	require.Equal(t, models.SLAStatusPending, metric.Status)
	require.Equal(t, start, metric.CreatedAt)
}

func TestSLAMetricRepositoryConditionalUpdates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSLAMetricRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'WARNING'")).
		WithArgs("sla-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkWarning(context.Background(), "sla-1", now))

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'WARNING'")).
		WithArgs("sla-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.MarkWarning(context.Background(), "sla-1", now), sql.ErrNoRows)

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'BREACHED'")).
		WithArgs("sla-2", now, 50.5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkBreached(context.Background(), "sla-2", now, 50.5))

	mock.ExpectExec("UPDATE sla_metrics\\s+SET status = \\$2, completed_at").
		WithArgs("sla-3", models.SLAStatusMet, now, 2.0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Close(context.Background(), "sla-3", models.SLAStatusMet, now, 2.0), sql.ErrNoRows)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSLAMetricRepositoryListOpen(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	start := time.Now().Add(-40 * time.Hour)
	mock.ExpectQuery("completed_at IS NULL AND status IN").
		WillReturnRows(sqlmock.NewRows(slaRowColumns).
			AddRow("sla-1", "req-1", "LIBRARY", 48.0, start, nil, nil, "PENDING", false, false, start, start).
			AddRow("sla-2", "req-2", "ACADEMIC", 48.0, start, nil, nil, "WARNING", true, false, start, start))

	metrics, err := NewSLAMetricRepository(db).ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	require.True(t, metrics[1].WarningSent)
}
