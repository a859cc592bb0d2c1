package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-clearance-api/internal/models"
	"github.com/noah-isme/sma-clearance-api/pkg/config"
	appErrors "github.com/noah-isme/sma-clearance-api/pkg/errors"
	"github.com/noah-isme/sma-clearance-api/pkg/logger"
)

type slaStore interface {
	FindOpen(ctx context.Context, requestID string, dept models.Department) (*models.SLAMetric, error)
	Create(ctx context.Context, metric *models.SLAMetric) error
	Close(ctx context.Context, id string, status models.SLAStatus, completedAt time.Time, actualHours float64) error
	MarkWarning(ctx context.Context, id string, now time.Time) error
	MarkBreached(ctx context.Context, id string, now time.Time, elapsedHours float64) error
	ListOpen(ctx context.Context) ([]models.SLAMetric, error)
	ListByRequest(ctx context.Context, requestID string) ([]models.SLAMetric, error)
}

// SLAPolicy holds timer targets and the warning threshold.
type SLAPolicy struct {
	DefaultTargetHours float64
	WarningRatio       float64
	TargetHours        map[models.Department]float64
}

// SLAPolicyFromConfig converts loaded configuration into a policy, applying defaults for unset values.
func SLAPolicyFromConfig(cfg config.SLAConfig) SLAPolicy {
	policy := SLAPolicy{
		DefaultTargetHours: cfg.DefaultTargetHours,
		WarningRatio:       cfg.WarningRatio,
		TargetHours:        make(map[models.Department]float64, 3),
	}
	for dept, hours := range map[models.Department]float64{
		models.DepartmentLibrary:  cfg.LibraryTargetHours,
		models.DepartmentBursar:   cfg.BursarTargetHours,
		models.DepartmentAcademic: cfg.AcademicTargetHours,
	} {
		if hours > 0 {
			policy.TargetHours[dept] = hours
		}
	}
	return policy.normalized()
}

func (p SLAPolicy) normalized() SLAPolicy {
	if p.DefaultTargetHours <= 0 {
		p.DefaultTargetHours = models.DefaultSLATargetHours
	}
	if p.WarningRatio <= 0 || p.WarningRatio >= 1 {
		p.WarningRatio = 0.75
	}
	return p
}

// Target returns the target hours for a department.
func (p SLAPolicy) Target(dept models.Department) float64 {
	if hours, ok := p.TargetHours[dept]; ok && hours > 0 {
		return hours
	}
	return p.DefaultTargetHours
}

// SLATrackerOption configures the tracker.
type SLATrackerOption func(*SLATracker)

// WithSLAClock overrides the time source.
func WithSLAClock(now func() time.Time) SLATrackerOption {
	return func(t *SLATracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithSLAMetrics attaches Prometheus counters for sweep transitions.
func WithSLAMetrics(metrics *MetricsService) SLATrackerOption {
	return func(t *SLATracker) {
		t.metrics = metrics
	}
}

// SLATracker opens, closes and sweeps per-department timers.
type SLATracker struct {
	repo    slaStore
	policy  SLAPolicy
	logger  *zap.Logger
	metrics *MetricsService
	now     func() time.Time
}

// NewSLATracker constructs the tracker.
func NewSLATracker(repo slaStore, policy SLAPolicy, logger *zap.Logger, opts ...SLATrackerOption) *SLATracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &SLATracker{
		repo:   repo,
		policy: policy.normalized(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Open returns the open metric for the pair, creating one started now when none exists.
// A non-positive targetHours uses the configured target for the department.
func (t *SLATracker) Open(ctx context.Context, requestID string, dept models.Department, targetHours float64) (*models.SLAMetric, error) {
	existing, err := t.repo.FindOpen(ctx, requestID, dept)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find open %s metric: %w", dept, err)
	}
	if targetHours <= 0 {
		targetHours = t.policy.Target(dept)
	}
	now := t.now()
	metric := &models.SLAMetric{
		RequestID:   requestID,
		Department:  dept,
		TargetHours: targetHours,
		StartedAt:   now,
		Status:      models.SLAStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.repo.Create(ctx, metric); err != nil {
		return nil, fmt.Errorf("open %s metric: %w", dept, err)
	}
	return metric, nil
}

// Close completes the open metric for the pair. It returns nil without error when no metric is open.
func (t *SLATracker) Close(ctx context.Context, requestID string, dept models.Department, completedAt time.Time) (*models.SLAMetric, error) {
	metric, err := t.repo.FindOpen(ctx, requestID, dept)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find open %s metric: %w", dept, err)
	}
	actual := models.HoursBetween(metric.StartedAt, completedAt)
	status := models.SLAStatusMet
	if actual > metric.TargetHours {
		status = models.SLAStatusBreached
	}
	if err := t.repo.Close(ctx, metric.ID, status, completedAt, actual); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("close %s metric: %w", dept, err)
	}
	metric.Status = status
	metric.CompletedAt = &completedAt
	metric.ActualHours = &actual
	metric.Breached = metric.Breached || status == models.SLAStatusBreached
	metric.UpdatedAt = completedAt
	return metric, nil
}

// Sweep flags warnings and breaches on open metrics and returns how many were mutated.
func (t *SLATracker) Sweep(ctx context.Context, now time.Time) (int, error) {
	result, err := t.RunSweep(ctx, now)
	return result.Updated, err
}

// RunSweep is the scheduler entry point. A failure on one metric is logged and the sweep continues.
func (t *SLATracker) RunSweep(ctx context.Context, now time.Time) (models.SweepResult, error) {
	var result models.SweepResult
	metrics, err := t.repo.ListOpen(ctx)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list open sla metrics")
	}
	log := logger.FromContext(ctx, t.logger)
	for i := range metrics {
		metric := metrics[i]
		result.Checked++
		transition, err := t.sweepOne(ctx, metric, now)
		if err != nil {
			log.Warn("sla sweep item failed",
				zap.String("metric_id", metric.ID),
				zap.String("request_id", metric.RequestID),
				zap.String("department", string(metric.Department)),
				zap.Error(err))
			continue
		}
		if transition != "" {
			result.Updated++
			t.metrics.RecordSLATransition(transition)
		}
	}
	log.Info("sla sweep finished", zap.Int("checked", result.Checked), zap.Int("updated", result.Updated))
	return result, nil
}

func (t *SLATracker) sweepOne(ctx context.Context, metric models.SLAMetric, now time.Time) (models.SLAStatus, error) {
	if metric.CompletedAt != nil {
		return "", nil
	}
	elapsed := models.HoursBetween(metric.StartedAt, now)
	target := metric.TargetHours

	var (
		transition models.SLAStatus
		err        error
	)
	switch {
	case elapsed > target && !metric.Breached:
		transition = models.SLAStatusBreached
		err = t.repo.MarkBreached(ctx, metric.ID, now, elapsed)
	case metric.Status == models.SLAStatusPending && !metric.WarningSent &&
		elapsed >= t.policy.WarningRatio*target && elapsed < target:
		transition = models.SLAStatusWarning
		err = t.repo.MarkWarning(ctx, metric.ID, now)
	default:
		return "", nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		// Closed or flagged concurrently.
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return transition, nil
}

// Sync reconciles timers with the transition from old to new. A nil old means creation.
// A timer is open exactly while its track is actionable, awaiting resolution and the request is
// not terminal; every other state closes it.
func (t *SLATracker) Sync(ctx context.Context, old, new *models.Request) error {
	if new == nil {
		return nil
	}
	var errs []error
	for _, dept := range models.Departments {
		wantOpen := timerWanted(new, dept)
		if old != nil && timerWanted(old, dept) == wantOpen && old.TrackStatus(dept) == new.TrackStatus(dept) {
			continue
		}
		switch {
		case wantOpen:
			if _, err := t.Open(ctx, new.ID, dept, 0); err != nil {
				errs = append(errs, err)
			}
		case old != nil:
			if _, err := t.Close(ctx, new.ID, dept, t.now()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ListMetrics returns every timer for a request.
func (t *SLATracker) ListMetrics(ctx context.Context, requestID string) ([]models.SLAMetric, error) {
	metrics, err := t.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sla metrics")
	}
	return metrics, nil
}

// trackActionable reports whether a department is expected to act on the request.
// Academic review starts only after Library and Bursar have both moved off PENDING.
func trackActionable(r *models.Request, dept models.Department) bool {
	if dept != models.DepartmentAcademic {
		return true
	}
	return r.TrackStatus(models.DepartmentLibrary) != models.TrackPending &&
		r.TrackStatus(models.DepartmentBursar) != models.TrackPending
}

func timerWanted(r *models.Request, dept models.Department) bool {
	return !r.Status.Terminal() && trackActionable(r, dept) && awaitingResolution(dept, r.TrackStatus(dept))
}

func awaitingResolution(dept models.Department, status string) bool {
	return status == models.TrackPending || models.IsBlocking(dept, status)
}
