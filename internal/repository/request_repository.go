package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/helpdesk-api/internal/models"
)

const requestColumns = `id, category, description, priority, status, student_id, student_name, attachment_url, admin_notes, resolved_at, created_by, deleted_by, deleted_at, created_at, updated_at`

// RequestRepository provides persistence for service requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new service request.
func (r *RequestRepository) Create(ctx context.Context, req *models.ServiceRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	query := `INSERT INTO service_requests (id, category, description, priority, status, student_id, student_name, attachment_url, admin_notes, created_by, created_at, updated_at)
VALUES (:id, :category, :description, :priority, :status, :student_id, :student_name, :attachment_url, :admin_notes, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create service request: %w", err)
	}
	return nil
}

// GetByID returns a request by identifier. Soft-deleted rows are treated as
// absent; use GetByIDForAudit for the audit view.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.ServiceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE id = $1 AND deleted_at IS NULL`, requestColumns)
	var req models.ServiceRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByIDForAudit returns the row regardless of soft-deletion state.
func (r *RequestRepository) GetByIDForAudit(ctx context.Context, id string) (*models.ServiceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE id = $1`, requestColumns)
	var req models.ServiceRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns matching requests plus the total count. Soft-deleted rows are
// always excluded.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.ServiceRequest, int, error) {
	where, args := buildRequestWhere(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		requestColumns, where, size, offset)
	var requests []models.ServiceRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list service requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM service_requests WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count service requests: %w", err)
	}
	return requests, total, nil
}

// Count returns the number of matching, non-deleted requests.
func (r *RequestRepository) Count(ctx context.Context, filter models.RequestFilter) (int, error) {
	where, args := buildRequestWhere(filter)
	query := fmt.Sprintf("SELECT COUNT(*) FROM service_requests WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count service requests: %w", err)
	}
	return total, nil
}

// UpdateFields applies a partial update and returns the updated row. When the
// patch touches status, the write carries a status guard so a request that
// reached the terminal state concurrently cannot be mutated; the caller
// distinguishes sql.ErrNoRows via a follow-up read.
func (r *RequestRepository) UpdateFields(ctx context.Context, id string, patch models.RequestPatch) (*models.ServiceRequest, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}

	addSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Category != nil {
		addSet("category", *patch.Category)
	}
	if patch.Description != nil {
		addSet("description", *patch.Description)
	}
	if patch.Priority != nil {
		addSet("priority", string(*patch.Priority))
	}
	if patch.Status != nil {
		addSet("status", string(*patch.Status))
	}
	if patch.StudentName != nil {
		addSet("student_name", *patch.StudentName)
	}
	if patch.AttachmentURL != nil {
		addSet("attachment_url", *patch.AttachmentURL)
	}
	if patch.AdminNotes != nil {
		addSet("admin_notes", *patch.AdminNotes)
	}

	args = append(args, id)
	where := fmt.Sprintf("id = $%d AND deleted_at IS NULL", len(args))
	if patch.Status != nil {
		// A resolved request never accepts a status field, not even one
		// restating "resolved".
		where += " AND status <> 'resolved'"
	}

	query := fmt.Sprintf(`UPDATE service_requests SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), where, requestColumns)
	var req models.ServiceRequest
	if err := r.db.GetContext(ctx, &req, query, args...); err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateStatus transitions the lifecycle state with a conditional write: the
// update applies only if the stored status is still non-terminal, closing the
// race between two concurrent transitions. Returns sql.ErrNoRows when the
// guard (or existence/deletion check) fails.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, status models.RequestStatus, notes string) (*models.ServiceRequest, error) {
	query := fmt.Sprintf(`UPDATE service_requests
SET status = $1,
    admin_notes = CASE
        WHEN $2 = '' THEN admin_notes
        WHEN admin_notes = '' THEN $2
        ELSE admin_notes || E'\n' || $2
    END,
    resolved_at = CASE WHEN $1 = 'resolved' THEN NOW() ELSE resolved_at END,
    updated_at = NOW()
WHERE id = $3 AND deleted_at IS NULL AND status <> 'resolved'
RETURNING %s`, requestColumns)
	var req models.ServiceRequest
	if err := r.db.GetContext(ctx, &req, query, string(status), notes, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// SoftDelete marks the row deleted and returns its final snapshot. Returns
// sql.ErrNoRows when the row is absent or already deleted.
func (r *RequestRepository) SoftDelete(ctx context.Context, id, actor string) (*models.ServiceRequest, error) {
	query := fmt.Sprintf(`UPDATE service_requests
SET deleted_by = $1, deleted_at = NOW(), updated_at = NOW()
WHERE id = $2 AND deleted_at IS NULL
RETURNING %s`, requestColumns)
	var req models.ServiceRequest
	if err := r.db.GetContext(ctx, &req, query, actor, id); err != nil {
		return nil, err
	}
	return &req, nil
}

func buildRequestWhere(filter models.RequestFilter) (string, []interface{}) {
	where := []string{"deleted_at IS NULL"}
	args := []interface{}{}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, string(*filter.Priority))
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("description ILIKE $%d", len(args)))
	}

	return strings.Join(where, " AND "), args
}
