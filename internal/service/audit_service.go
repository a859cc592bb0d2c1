package service

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-clearance-api/internal/models"
	appErrors "github.com/noah-isme/sma-clearance-api/pkg/errors"
	"github.com/noah-isme/sma-clearance-api/pkg/logger"
)

type auditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

type originKey struct{}

type requestOrigin struct {
	ip        string
	userAgent string
}

// WithRequestOrigin attaches caller network details that audit entries copy.
func WithRequestOrigin(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, originKey{}, requestOrigin{ip: ip, userAgent: userAgent})
}

func originFrom(ctx context.Context) requestOrigin {
	if origin, ok := ctx.Value(originKey{}).(requestOrigin); ok {
		return origin
	}
	return requestOrigin{ip: "system", userAgent: "workflow-service"}
}

// AuditService appends field-level audit entries. Storage failures are logged and never returned.
type AuditService struct {
	repo   auditStore
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditService constructs the audit diff logger.
func NewAuditService(repo auditStore, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// DiffStates returns {old,new} pairs for every key of newState whose value differs from oldState.
// A key missing from oldState counts as changed.
func DiffStates(oldState, newState map[string]interface{}) map[string]models.FieldChange {
	changes := make(map[string]models.FieldChange)
	for key, newValue := range newState {
		oldValue, ok := oldState[key]
		if ok && reflect.DeepEqual(oldValue, newValue) {
			continue
		}
		changes[key] = models.FieldChange{Old: oldValue, New: newValue}
	}
	return changes
}

// Record writes exactly one entry for the transition from oldState to newState, even when nothing changed.
func (s *AuditService) Record(ctx context.Context, action string, oldState, newState map[string]interface{}, actorID, requestID *string) {
	s.write(ctx, action, DiffStates(oldState, newState), actorID, requestID)
}

// RecordEvent writes an entry with a descriptive payload for actions that carry no field diff.
func (s *AuditService) RecordEvent(ctx context.Context, action string, actorID, requestID *string, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	s.write(ctx, action, payload, actorID, requestID)
}

func (s *AuditService) write(ctx context.Context, action string, payload interface{}, actorID, requestID *string) {
	if s == nil || s.repo == nil {
		return
	}
	log := logger.FromContext(ctx, s.logger)
	body, err := json.Marshal(payload)
	if err != nil {
		log.Warn("failed to encode audit payload", zap.String("action", action), zap.Error(err))
		return
	}
	origin := originFrom(ctx)
	entry := &models.AuditLog{
		UserID:    actorID,
		RequestID: requestID,
		Action:    action,
		Changes:   body,
		IPAddress: origin.ip,
		UserAgent: origin.userAgent,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		fields := []zap.Field{zap.String("action", action), zap.Error(err)}
		if requestID != nil {
			fields = append(fields, zap.String("request_id", *requestID))
		}
		log.Warn("failed to persist audit log", fields...)
	}
}

// List returns audit entries for the query surface.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return entries, total, nil
}
