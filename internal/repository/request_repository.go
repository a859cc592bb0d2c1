package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-clearance-api/internal/models"
	"github.com/noah-isme/sma-clearance-api/pkg/database"
)

const requestColumns = `id, request_code, student_id, student_email, program, submission_date, status,
       library_status, library_note, bursar_status, bursar_note, academic_status, academic_note,
       verifier_notes, processor_notes, created_by, created_at, updated_at`

// RequestMutator computes the next state of a locked request. Returning an error aborts the transaction.
type RequestMutator func(current models.Request) (*models.Request, error)

// RequestRepository persists document requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, req *models.Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	const query = `INSERT INTO document_requests
	(id, request_code, student_id, student_email, program, submission_date, status,
	 library_status, library_note, bursar_status, bursar_note, academic_status, academic_note,
	 verifier_notes, processor_notes, created_by, created_at, updated_at)
	VALUES (:id, :request_code, :student_id, :student_email, :program, :submission_date, :status,
	 :library_status, :library_note, :bursar_status, :bursar_note, :academic_status, :academic_note,
	 :verifier_notes, :processor_notes, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM document_requests WHERE id = $1`
	var req models.Request
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ExistsByCode reports whether a request code is already taken.
func (r *RequestRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM document_requests WHERE request_code = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("check request code: %w", err)
	}
	return exists, nil
}

// List returns requests matching the filter, newest first, together with the total count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Program != "" {
		args = append(args, filter.Program)
		conditions = append(conditions, fmt.Sprintf("program = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT %s FROM document_requests%s ORDER BY created_at DESC LIMIT %d OFFSET %d", requestColumns, where, limit, offset)
	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM document_requests"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	return requests, total, nil
}

// Mutate loads the request under a row lock, applies fn and persists the result in one transaction.
// It returns the snapshot fn saw and the persisted state. sql.ErrNoRows is returned when id is unknown.
func (r *RequestRepository) Mutate(ctx context.Context, id string, fn RequestMutator) (*models.Request, *models.Request, error) {
	var before, after *models.Request
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current models.Request
		query := `SELECT ` + requestColumns + ` FROM document_requests WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &current, query, id); err != nil {
			return err
		}
		snapshot := current
		next, err := fn(current)
		if err != nil {
			return err
		}
		const update = `UPDATE document_requests SET
		student_id = :student_id, student_email = :student_email, program = :program,
		submission_date = :submission_date, status = :status,
		library_status = :library_status, library_note = :library_note,
		bursar_status = :bursar_status, bursar_note = :bursar_note,
		academic_status = :academic_status, academic_note = :academic_note,
		verifier_notes = :verifier_notes, processor_notes = :processor_notes, updated_at = :updated_at
		WHERE id = :id`
		result, err := tx.NamedExecContext(ctx, update, next)
		if err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check request update rows: %w", err)
		}
		if rows == 0 {
			return sql.ErrNoRows
		}
		before, after = &snapshot, next
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}
