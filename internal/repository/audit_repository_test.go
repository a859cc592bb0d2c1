package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-clearance-api/internal/models"
)

func TestAuditRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{Action: models.AuditActionLogin}
	require.NoError(t, NewAuditRepository(db).Create(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.JSONEq(t, `{}`, string(entry.Changes))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListPageBounds(t *testing.T) {
	cases := []struct {
		name  string
		limit int
		want  string
	}{
		{"export cap passes through", models.MaxAuditPageSize, "LIMIT 5000 OFFSET 10000"},
		{"default when unset", 0, "LIMIT 100 OFFSET 10000"},
		{"clamped above cap", 20000, "LIMIT 5000 OFFSET 10000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, cleanup := newRepoMock(t)
			defer cleanup()

			mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC " + tc.want)).
				WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "request_id", "action", "changes", "ip_address", "user_agent", "created_at"}))
			mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs")).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

			_, _, err := NewAuditRepository(db).List(context.Background(), models.AuditFilter{Limit: tc.limit, Offset: 10000})
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAuditRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	requestID := "req-1"
	rows := sqlmock.NewRows([]string{"id", "user_id", "request_id", "action", "changes", "ip_address", "user_agent", "created_at"}).
		AddRow("log-1", nil, requestID, "REQUEST_UPDATED", []byte(`{"library_status":{"old":"PENDING","new":"Clear"}}`), "", "", from)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, request_id, action, changes")).
		WithArgs(requestID, "REQUEST_UPDATED", from).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs WHERE")).
		WithArgs(requestID, "REQUEST_UPDATED", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	entries, total, err := NewAuditRepository(db).List(context.Background(), models.AuditFilter{
		RequestID: requestID,
		Action:    models.AuditActionRequestUpdated,
		From:      &from,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, entries, 1)
	require.Nil(t, entries[0].UserID)
	require.Equal(t, requestID, *entries[0].RequestID)
	require.NoError(t, mock.ExpectationsWereMet())
}
