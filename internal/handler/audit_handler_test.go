package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-clearance-api/internal/models"
)

type auditQueryStub struct {
	filter models.AuditFilter
}

func (s *auditQueryStub) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	s.filter = filter
	requestID := "req-1"
	return []models.AuditLog{{
		ID:        "log-1",
		RequestID: &requestID,
		Action:    models.AuditActionRequestUpdated,
		Changes:   json.RawMessage(`{"bursar_status":{"old":"PENDING","new":"Paid"}}`),
		CreatedAt: time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC),
	}}, 11, nil
}

func TestAuditHandlerListBuildsFilter(t *testing.T) {
	svc := &auditQueryStub{}
	h := NewAuditHandler(svc)
	c, w := newJSONContext(http.MethodGet,
		"/audit-logs?requestId=req-1&action=REQUEST_UPDATED&from=2024-01-01T00:00:00Z&page=2&pageSize=10", "", nil)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", svc.filter.RequestID)
	assert.Equal(t, models.AuditActionRequestUpdated, svc.filter.Action)
	require.NotNil(t, svc.filter.From)
	assert.True(t, svc.filter.From.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, svc.filter.To)
	assert.Equal(t, 10, svc.filter.Limit)
	assert.Equal(t, 10, svc.filter.Offset)
	assert.Contains(t, w.Body.String(), `"total_count":11`)
}

func TestAuditHandlerRejectsBadTimestamp(t *testing.T) {
	svc := &auditQueryStub{}
	h := NewAuditHandler(svc)
	c, w := newJSONContext(http.MethodGet, "/audit-logs?to=yesterday", "", nil)

	h.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.filter.Limit)
}

func TestAuditHandlerExportCSV(t *testing.T) {
	svc := &auditQueryStub{}
	h := NewAuditHandler(svc)
	c, w := newJSONContext(http.MethodGet, "/audit-logs/export?requestId=req-1", "", nil)

	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, 5000, svc.filter.Limit)
	assert.Contains(t, w.Body.String(), "2024-01-08T09:00:00Z,REQUEST_UPDATED,req-1,,bursar_status,PENDING,Paid,")
}
