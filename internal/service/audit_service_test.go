package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-clearance-api/internal/models"
	appErrors "github.com/noah-isme/sma-clearance-api/pkg/errors"
)

type auditRepoStub struct {
	entries   []*models.AuditLog
	createErr error
	filter    models.AuditFilter
}

func (s *auditRepoStub) Create(ctx context.Context, entry *models.AuditLog) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *auditRepoStub) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	s.filter = filter
	out := make([]models.AuditLog, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func decodeChanges(t *testing.T, entry *models.AuditLog) map[string]models.FieldChange {
	t.Helper()
	var changes map[string]models.FieldChange
	require.NoError(t, json.Unmarshal(entry.Changes, &changes))
	return changes
}

func TestDiffStatesOnlyChangedKeys(t *testing.T) {
	old := map[string]interface{}{"library_status": "PENDING", "bursar_status": "PENDING"}
	next := map[string]interface{}{"library_status": "Clear", "bursar_status": "PENDING", "academic_note": "x"}

	changes := DiffStates(old, next)
	require.Len(t, changes, 2)
	assert.Equal(t, models.FieldChange{Old: "PENDING", New: "Clear"}, changes["library_status"])
	assert.Equal(t, models.FieldChange{Old: nil, New: "x"}, changes["academic_note"])
}

func TestAuditServiceRecordCreationUsesEmptyOldState(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo, nil)
	req := &models.Request{ID: "req-1", Status: models.StatusNew, LibraryStatus: models.LibraryPending}
	actor := "user-1"

	svc.Record(context.Background(), models.AuditActionRequestCreated, map[string]interface{}{}, models.AuditFields(req), &actor, &req.ID)

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, models.AuditActionRequestCreated, entry.Action)
	assert.Equal(t, "req-1", *entry.RequestID)
	assert.Equal(t, "system", entry.IPAddress)
	changes := decodeChanges(t, entry)
	assert.Len(t, changes, len(models.AuditedFields))
	assert.Nil(t, changes["status"].Old)
	assert.Equal(t, "NEW", changes["status"].New)
}

func TestAuditServiceRecordWritesEntryForEmptyDiff(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo, nil)
	state := map[string]interface{}{"status": "NEW"}

	svc.Record(context.Background(), models.AuditActionRequestUpdated, state, state, nil, nil)

	require.Len(t, repo.entries, 1)
	assert.Nil(t, repo.entries[0].UserID)
	assert.Empty(t, decodeChanges(t, repo.entries[0]))
}

func TestAuditServiceCopiesRequestOrigin(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo, nil)
	ctx := WithRequestOrigin(context.Background(), "10.0.0.9", "curl/8")

	svc.RecordEvent(ctx, models.AuditActionLogin, nil, nil, map[string]interface{}{"method": "password"})

	require.Len(t, repo.entries, 1)
	assert.Equal(t, "10.0.0.9", repo.entries[0].IPAddress)
	assert.Equal(t, "curl/8", repo.entries[0].UserAgent)
	assert.JSONEq(t, `{"method":"password"}`, string(repo.entries[0].Changes))
}

func TestAuditServiceSwallowsStorageFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo := &auditRepoStub{createErr: errors.New("db down")}
	svc := NewAuditService(repo, zap.New(core))
	requestID := "req-9"

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), models.AuditActionRequestUpdated, nil, map[string]interface{}{"status": "PENDING"}, nil, &requestID)
	})
	entries := logs.FilterMessage("failed to persist audit log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-9", entries[0].ContextMap()["request_id"])
}

func TestAuditServiceListRejectsInvertedRange(t *testing.T) {
	svc := NewAuditService(&auditRepoStub{}, nil)
	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	_, _, err := svc.List(context.Background(), models.AuditFilter{From: &from, To: &to})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
