package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/helpdesk-api/internal/audience"
	"github.com/campushq/helpdesk-api/internal/models"
)

const announcementColumns = `id, title, content, type, priority, target, target_roles, target_user_ids, created_by, created_by_role, related_request_id, read_by, created_at, updated_at`

// recipientPageSize caps recipient-facing listings to protect payload size.
const recipientPageSize = 50

// AnnouncementRepository provides persistence for announcements, including
// the append-only read-tracking set.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// Create inserts a new announcement with an empty read set.
func (r *AnnouncementRepository) Create(ctx context.Context, a *models.Announcement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.ReadBy == nil {
		a.ReadBy = []string{}
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	query := `INSERT INTO announcements (id, title, content, type, priority, target, target_roles, target_user_ids, created_by, created_by_role, related_request_id, read_by, created_at, updated_at)
VALUES (:id, :title, :content, :type, :priority, :target, :target_roles, :target_user_ids, :created_by, :created_by_role, :related_request_id, :read_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// GetByID returns an announcement by identifier.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := fmt.Sprintf(`SELECT %s FROM announcements WHERE id = $1`, announcementColumns)
	var a models.Announcement
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListForRecipient returns announcements addressed to the user, newest first,
// optionally restricted to unread ones. The audience predicate is compiled by
// the audience package so this query can never drift from UnreadCount or
// MarkAllRead.
func (r *AnnouncementRepository) ListForRecipient(ctx context.Context, userID string, role models.UserRole, unreadOnly bool) ([]models.Announcement, error) {
	clause, args := audience.RecipientClause(0, userID, role)
	where := clause
	if unreadOnly {
		args = append(args, userID)
		where = fmt.Sprintf("%s AND NOT ($%d = ANY(read_by))", where, len(args))
	}
	query := fmt.Sprintf(`SELECT %s FROM announcements WHERE %s ORDER BY created_at DESC LIMIT %d`,
		announcementColumns, where, recipientPageSize)
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, fmt.Errorf("list announcements for recipient: %w", err)
	}
	return announcements, nil
}

// UnreadCount returns the number of addressed-and-unread announcements.
func (r *AnnouncementRepository) UnreadCount(ctx context.Context, userID string, role models.UserRole) (int, error) {
	clause, args := audience.RecipientClause(0, userID, role)
	args = append(args, userID)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM announcements WHERE %s AND NOT ($%d = ANY(read_by))`,
		clause, len(args))
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count unread announcements: %w", err)
	}
	return count, nil
}

// List returns all announcements for the management view with pagination.
func (r *AnnouncementRepository) List(ctx context.Context, page, pageSize int) ([]models.Announcement, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT %s FROM announcements ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		announcementColumns, pageSize, offset)
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM announcements"); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return announcements, total, nil
}

// MarkRead appends the user to the read set. The append is guarded in the
// write itself, so the operation is idempotent and safe against concurrent
// writers: the database applies the set union atomically and a duplicate
// append can never occur.
func (r *AnnouncementRepository) MarkRead(ctx context.Context, id, userID string) error {
	query := `UPDATE announcements
SET read_by = array_append(read_by, $1), updated_at = NOW()
WHERE id = $2 AND NOT ($1 = ANY(read_by))`
	if _, err := r.db.ExecContext(ctx, query, userID, id); err != nil {
		return fmt.Errorf("mark announcement read: %w", err)
	}
	return nil
}

// MarkAllRead appends the user to the read set of every addressed-and-unread
// announcement in one statement. A single set-union write across the whole
// target set leaves no read-then-write window for a concurrent MarkRead to
// be lost against.
func (r *AnnouncementRepository) MarkAllRead(ctx context.Context, userID string, role models.UserRole) (int64, error) {
	clause, args := audience.RecipientClause(0, userID, role)
	args = append(args, userID)
	query := fmt.Sprintf(`UPDATE announcements
SET read_by = array_append(read_by, $%d), updated_at = NOW()
WHERE %s AND NOT ($%d = ANY(read_by))`, len(args), clause, len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark all announcements read: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all announcements read: %w", err)
	}
	return rows, nil
}

// Delete removes an announcement. Returns the number of deleted rows so the
// caller can report NotFound.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM announcements WHERE id = $1", id)
	if err != nil {
		return 0, fmt.Errorf("delete announcement: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete announcement: %w", err)
	}
	return rows, nil
}
