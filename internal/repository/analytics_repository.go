package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campushq/helpdesk-api/internal/models"
)

// AnalyticsRepository computes read-only rollups over the request store.
// Every query excludes soft-deleted rows, matching the store's list/count
// semantics.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository creates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// StatusCounts groups non-deleted requests by lifecycle state.
func (r *AnalyticsRepository) StatusCounts(ctx context.Context) ([]models.RequestStatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM service_requests WHERE deleted_at IS NULL GROUP BY status ORDER BY status`
	var counts []models.RequestStatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	return counts, nil
}

// PriorityCounts groups non-deleted requests by priority.
func (r *AnalyticsRepository) PriorityCounts(ctx context.Context) ([]models.RequestPriorityCount, error) {
	const query = `SELECT priority, COUNT(*) AS count FROM service_requests WHERE deleted_at IS NULL GROUP BY priority ORDER BY priority`
	var counts []models.RequestPriorityCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("priority counts: %w", err)
	}
	return counts, nil
}

// CategoryCounts groups non-deleted requests by category slug.
func (r *AnalyticsRepository) CategoryCounts(ctx context.Context) ([]models.RequestCategoryCount, error) {
	const query = `SELECT category, COUNT(*) AS count FROM service_requests WHERE deleted_at IS NULL GROUP BY category ORDER BY count DESC`
	var counts []models.RequestCategoryCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	return counts, nil
}

// DailyCounts returns per-day created and resolved volumes in [from, to].
func (r *AnalyticsRepository) DailyCounts(ctx context.Context, from, to time.Time) ([]models.RequestDailyCount, error) {
	const query = `SELECT day, SUM(created) AS created, SUM(resolved) AS resolved FROM (
    SELECT DATE_TRUNC('day', created_at) AS day, 1 AS created, 0 AS resolved
    FROM service_requests WHERE deleted_at IS NULL AND created_at >= $1 AND created_at < $2
    UNION ALL
    SELECT DATE_TRUNC('day', resolved_at) AS day, 0 AS created, 1 AS resolved
    FROM service_requests WHERE deleted_at IS NULL AND resolved_at IS NOT NULL AND resolved_at >= $1 AND resolved_at < $2
) AS days GROUP BY day ORDER BY day`
	var counts []models.RequestDailyCount
	if err := r.db.SelectContext(ctx, &counts, query, from, to); err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}
	return counts, nil
}

// Total returns the number of non-deleted requests.
func (r *AnalyticsRepository) Total(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM service_requests WHERE deleted_at IS NULL"); err != nil {
		return 0, fmt.Errorf("total requests: %w", err)
	}
	return total, nil
}
