package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-clearance-api/internal/models"
)

const slaColumns = `id, request_id, department, target_hours, started_at, completed_at, actual_hours,
       status, warning_sent, breached, created_at, updated_at`

// SLAMetricRepository persists department timers. Transitions are single conditional statements
// so a sweep and a close never interleave on the same row.
type SLAMetricRepository struct {
	db *sqlx.DB
}

// NewSLAMetricRepository constructs the repository.
func NewSLAMetricRepository(db *sqlx.DB) *SLAMetricRepository {
	return &SLAMetricRepository{db: db}
}

// FindOpen returns the uncompleted metric for a (request, department) pair.
func (r *SLAMetricRepository) FindOpen(ctx context.Context, requestID string, dept models.Department) (*models.SLAMetric, error) {
	query := `SELECT ` + slaColumns + ` FROM sla_metrics
	WHERE request_id = $1 AND department = $2 AND completed_at IS NULL
	ORDER BY started_at DESC LIMIT 1`
	var metric models.SLAMetric
	if err := r.db.GetContext(ctx, &metric, query, requestID, dept); err != nil {
		return nil, err
	}
	return &metric, nil
}

// Create inserts a metric. The partial unique index on open metrics rejects a concurrent duplicate.
func (r *SLAMetricRepository) Create(ctx context.Context, metric *models.SLAMetric) error {
	if metric.ID == "" {
		metric.ID = uuid.NewString()
	}
	if metric.Status == "" {
		metric.Status = models.SLAStatusPending
	}
	if metric.CreatedAt.IsZero() {
		metric.CreatedAt = metric.StartedAt
	}
	if metric.UpdatedAt.IsZero() {
		metric.UpdatedAt = metric.CreatedAt
	}
	const query = `INSERT INTO sla_metrics
	(id, request_id, department, target_hours, started_at, completed_at, actual_hours, status, warning_sent, breached, created_at, updated_at)
	VALUES (:id, :request_id, :department, :target_hours, :started_at, :completed_at, :actual_hours, :status, :warning_sent, :breached, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, metric); err != nil {
		return fmt.Errorf("create sla metric: %w", err)
	}
	return nil
}

// Close stamps completion on an open metric. It returns sql.ErrNoRows when the metric was already completed.
func (r *SLAMetricRepository) Close(ctx context.Context, id string, status models.SLAStatus, completedAt time.Time, actualHours float64) error {
	const query = `UPDATE sla_metrics
	SET status = $2, completed_at = $3, actual_hours = $4, breached = (breached OR $2 = 'BREACHED'), updated_at = $3
	WHERE id = $1 AND completed_at IS NULL`
	return r.execConditional(ctx, "close sla metric", query, id, status, completedAt, actualHours)
}

// MarkWarning flags a pending metric as approaching breach. sql.ErrNoRows means another writer got there first.
func (r *SLAMetricRepository) MarkWarning(ctx context.Context, id string, now time.Time) error {
	const query = `UPDATE sla_metrics
	SET status = 'WARNING', warning_sent = TRUE, updated_at = $2
	WHERE id = $1 AND completed_at IS NULL AND status = 'PENDING' AND warning_sent = FALSE`
	return r.execConditional(ctx, "mark sla warning", query, id, now)
}

// MarkBreached flags an open metric as breached and records elapsed hours.
func (r *SLAMetricRepository) MarkBreached(ctx context.Context, id string, now time.Time, elapsedHours float64) error {
	const query = `UPDATE sla_metrics
	SET status = 'BREACHED', breached = TRUE, actual_hours = $3, updated_at = $2
	WHERE id = $1 AND completed_at IS NULL AND status IN ('PENDING', 'WARNING') AND breached = FALSE`
	return r.execConditional(ctx, "mark sla breached", query, id, now, elapsedHours)
}

// ListOpen returns uncompleted metrics still eligible for a sweep transition.
func (r *SLAMetricRepository) ListOpen(ctx context.Context) ([]models.SLAMetric, error) {
	query := `SELECT ` + slaColumns + ` FROM sla_metrics
	WHERE completed_at IS NULL AND status IN ('PENDING', 'WARNING') AND breached = FALSE
	ORDER BY started_at`
	var metrics []models.SLAMetric
	if err := r.db.SelectContext(ctx, &metrics, query); err != nil {
		return nil, fmt.Errorf("list open sla metrics: %w", err)
	}
	return metrics, nil
}

// ListByRequest returns every metric recorded for a request.
func (r *SLAMetricRepository) ListByRequest(ctx context.Context, requestID string) ([]models.SLAMetric, error) {
	query := `SELECT ` + slaColumns + ` FROM sla_metrics WHERE request_id = $1 ORDER BY started_at`
	var metrics []models.SLAMetric
	if err := r.db.SelectContext(ctx, &metrics, query, requestID); err != nil {
		return nil, fmt.Errorf("list sla metrics: %w", err)
	}
	return metrics, nil
}

func (r *SLAMetricRepository) execConditional(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
