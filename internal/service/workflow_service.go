package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-clearance-api/internal/dto"
	"github.com/noah-isme/sma-clearance-api/internal/models"
	"github.com/noah-isme/sma-clearance-api/internal/repository"
	appErrors "github.com/noah-isme/sma-clearance-api/pkg/errors"
	"github.com/noah-isme/sma-clearance-api/pkg/logger"
)

// Effect names used in logs and metrics.
const (
	EffectAudit  = "audit"
	EffectSLA    = "sla"
	EffectNotify = "notify"
)

type requestStore interface {
	Create(ctx context.Context, req *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error)
	Mutate(ctx context.Context, id string, fn repository.RequestMutator) (*models.Request, *models.Request, error)
}

type auditRecorder interface {
	Record(ctx context.Context, action string, oldState, newState map[string]interface{}, actorID, requestID *string)
}

type slaSyncer interface {
	Sync(ctx context.Context, old, new *models.Request) error
}

type intentEvaluator interface {
	Evaluate(old, new *models.Request) []models.NotificationIntent
}

// WorkflowServiceOption configures the coordinator.
type WorkflowServiceOption func(*WorkflowService)

// WithWorkflowClock overrides the time source.
func WithWorkflowClock(now func() time.Time) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWorkflowCache enables read-through caching of request lookups.
func WithWorkflowCache(cache *CacheService, ttl time.Duration) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithWorkflowMetrics attaches mutation and effect counters.
func WithWorkflowMetrics(metrics *MetricsService) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.metrics = metrics
	}
}

// WithWorkflowValidator overrides the payload validator.
func WithWorkflowValidator(v *validator.Validate) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if v != nil {
			s.validator = v
		}
	}
}

// WorkflowService applies role-scoped mutations to requests and fans out audit, SLA and notification effects.
type WorkflowService struct {
	repo      requestStore
	audit     auditRecorder
	sla       slaSyncer
	rules     intentEvaluator
	deliverer Deliverer
	cache     *CacheService
	cacheTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewWorkflowService constructs the coordinator.
func NewWorkflowService(repo requestStore, audit auditRecorder, sla slaSyncer, rules intentEvaluator, deliverer Deliverer, logger *zap.Logger, opts ...WorkflowServiceOption) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &WorkflowService{
		repo:      repo,
		audit:     audit,
		sla:       sla,
		rules:     rules,
		deliverer: deliverer,
		validator: validator.New(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create opens a request with every track PENDING and runs the creation effects.
func (s *WorkflowService) Create(ctx context.Context, input dto.CreateRequestInput, actor models.Actor) (*models.Request, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	now := s.now()
	submitted := now.Truncate(24 * time.Hour)
	if input.SubmissionDate != "" {
		parsed, err := time.Parse(models.SubmissionDateLayout, input.SubmissionDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "submissionDate must be YYYY-MM-DD")
		}
		submitted = parsed
	}

	code, err := s.nextRequestCode(ctx, now)
	if err != nil {
		return nil, err
	}
	req := &models.Request{
		RequestCode:    code,
		StudentID:      strings.TrimSpace(input.StudentID),
		StudentEmail:   strings.TrimSpace(input.StudentEmail),
		Program:        strings.TrimSpace(input.Program),
		SubmissionDate: submitted,
		Status:         models.StatusNew,
		LibraryStatus:  models.LibraryPending,
		BursarStatus:   models.BursarPending,
		AcademicStatus: models.AcademicPending,
		CreatedBy:      actorRef(actor),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	s.metrics.RecordMutation("created")
	s.cacheRequest(ctx, req)
	s.runEffects(ctx, models.AuditActionRequestCreated, actor, nil, req)
	return req, nil
}

const requestCodeAttempts = 3

func (s *WorkflowService) nextRequestCode(ctx context.Context, now time.Time) (string, error) {
	for i := 0; i < requestCodeAttempts; i++ {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		code := fmt.Sprintf("REQ-%s-%s", now.Format("20060102"), suffix)
		taken, err := s.repo.ExistsByCode(ctx, code)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate request code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique request code")
}

// Apply validates and persists a set of field changes for actor, then runs audit, SLA and notification
// effects in that order. Effect failures are logged and never change the result.
func (s *WorkflowService) Apply(ctx context.Context, requestID string, actor models.Actor, changes map[models.Field]string) (*models.Request, error) {
	if err := checkPermissions(actor, changes); err != nil {
		s.recordRejection(err)
		return nil, err
	}

	old, updated, err := s.repo.Mutate(ctx, requestID, func(current models.Request) (*models.Request, error) {
		return s.transition(current, actor, changes)
	})
	if err != nil {
		var appErr *appErrors.Error
		switch {
		case errors.Is(err, sql.ErrNoRows):
			err = appErrors.Clone(appErrors.ErrNotFound, "request not found")
		case errors.As(err, &appErr):
		default:
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
		}
		s.recordRejection(err)
		return nil, err
	}

	s.metrics.RecordMutation("accepted")
	s.invalidate(ctx, requestID)
	s.runEffects(ctx, models.AuditActionRequestUpdated, actor, old, updated)
	return updated, nil
}

func checkPermissions(actor models.Actor, changes map[models.Field]string) error {
	if len(changes) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "at least one change is required")
	}
	for _, field := range sortedFields(changes) {
		if !field.Known() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown field %q", field))
		}
		if !models.CanSet(actor.Role, field) {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not set %s", actor.Role, field))
		}
	}
	return nil
}

// identityRules mirrors the dto.CreateRequestInput tags so overrides obey the same constraints.
var identityRules = map[models.Field]string{
	models.FieldStudentID:    "required,max=64",
	models.FieldStudentEmail: "required,email",
	models.FieldProgram:      "required,max=128",
}

// transition computes the next state from the locked snapshot. Every check reads the same snapshot.
func (s *WorkflowService) transition(current models.Request, actor models.Actor, changes map[models.Field]string) (*models.Request, error) {
	if current.Status.Terminal() && !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrConflictingTransition, fmt.Sprintf("request is %s", current.Status))
	}

	next := current
	for _, field := range models.AuditedFields {
		value, ok := changes[field]
		if !ok {
			continue
		}
		if err := next.Set(field, value); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
	}

	for _, field := range sortedFields(changes) {
		tag, ok := identityRules[field]
		if !ok {
			continue
		}
		if err := s.validator.Var(next.Value(field), tag); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
				fmt.Sprintf("invalid %s", field))
		}
	}

	for _, dept := range models.Departments {
		statusField := models.StatusField(dept)
		if _, ok := changes[statusField]; !ok {
			continue
		}
		value := next.TrackStatus(dept)
		if !models.IsBlocking(dept, value) {
			continue
		}
		noteField := models.NoteField(dept)
		if strings.TrimSpace(changes[noteField]) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is required when %s is %s", noteField, statusField, value))
		}
	}

	if next.Status == models.StatusApproved {
		if blocked := next.BlockingTracks(); len(blocked) > 0 {
			return nil, appErrors.Clone(appErrors.ErrConflictingTransition,
				fmt.Sprintf("cannot approve while %s blocking", joinDepartments(blocked)))
		}
	}

	next.UpdatedAt = s.now()
	if next.UpdatedAt.Before(current.UpdatedAt) {
		next.UpdatedAt = current.UpdatedAt
	}
	return &next, nil
}

// runEffects fires audit, SLA and notification effects for a committed transition.
// The effects outlive the caller's cancellation.
func (s *WorkflowService) runEffects(ctx context.Context, action string, actor models.Actor, old, new *models.Request) {
	ctx = context.WithoutCancel(ctx)
	requestID := new.ID

	s.runEffect(ctx, EffectAudit, requestID, func() error {
		s.audit.Record(ctx, action, models.AuditFields(old), models.AuditFields(new), actorRef(actor), &requestID)
		return nil
	})
	s.runEffect(ctx, EffectSLA, requestID, func() error {
		return s.sla.Sync(ctx, old, new)
	})
	s.runEffect(ctx, EffectNotify, requestID, func() error {
		intents := s.rules.Evaluate(old, new)
		for _, intent := range intents {
			s.metrics.RecordIntent(intent.Kind)
		}
		if len(intents) == 0 || s.deliverer == nil {
			return nil
		}
		failures := s.deliverer.Deliver(ctx, intents)
		if len(failures) == 0 {
			return nil
		}
		errs := make([]error, 0, len(failures))
		for _, f := range failures {
			errs = append(errs, fmt.Errorf("%s to %s: %w", f.Intent.Kind, f.Intent.To, f.Err))
		}
		return errors.Join(errs...)
	})
}

func (s *WorkflowService) runEffect(ctx context.Context, effect, requestID string, fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			s.effectFailed(ctx, effect, requestID, fmt.Errorf("panic: %v", p))
		}
	}()
	if err := fn(); err != nil {
		s.effectFailed(ctx, effect, requestID, err)
	}
}

func (s *WorkflowService) effectFailed(ctx context.Context, effect, requestID string, err error) {
	s.metrics.RecordEffectFailure(effect)
	logger.FromContext(ctx, s.logger).Warn("workflow effect failed",
		zap.String("request_id", requestID),
		zap.String("effect", effect),
		zap.Error(err))
}

// Get returns a request, served from cache when enabled.
func (s *WorkflowService) Get(ctx context.Context, id string) (*models.Request, error) {
	var cached models.Request
	if hit, _ := s.cache.Get(ctx, requestCacheKey(id), &cached); hit {
		return &cached, nil
	}
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	s.cacheRequest(ctx, req)
	return req, nil
}

// List returns requests matching the query with pagination metadata.
func (s *WorkflowService) List(ctx context.Context, query dto.RequestQuery) ([]models.Request, *models.Pagination, error) {
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	filter := models.RequestFilter{
		StudentID: strings.TrimSpace(query.StudentID),
		Program:   strings.TrimSpace(query.Program),
		Limit:     size,
		Offset:    (page - 1) * size,
	}
	for _, raw := range query.Status {
		status := models.OverallStatus(strings.ToUpper(strings.TrimSpace(raw)))
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
		}
		filter.Status = append(filter.Status, status)
	}
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *WorkflowService) cacheRequest(ctx context.Context, req *models.Request) {
	_ = s.cache.Set(ctx, requestCacheKey(req.ID), req, s.cacheTTL)
}

func (s *WorkflowService) invalidate(ctx context.Context, id string) {
	_ = s.cache.Invalidate(ctx, requestCacheKey(id))
}

func (s *WorkflowService) recordRejection(err error) {
	if appErr := appErrors.FromError(err); appErr != nil {
		s.metrics.RecordMutation(strings.ToLower(appErr.Code))
	}
}

func requestCacheKey(id string) string {
	return "request:" + id
}

func actorRef(actor models.Actor) *string {
	if actor.UserID == "" {
		return nil
	}
	id := actor.UserID
	return &id
}

func sortedFields(changes map[models.Field]string) []models.Field {
	fields := make([]models.Field, 0, len(changes))
	for f := range changes {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

func joinDepartments(depts []models.Department) string {
	names := make([]string, len(depts))
	for i, d := range depts {
		names[i] = strings.ToLower(string(d))
	}
	return strings.Join(names, ", ")
}
