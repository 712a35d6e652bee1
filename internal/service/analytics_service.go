package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campushq/helpdesk-api/internal/models"
	appErrors "github.com/campushq/helpdesk-api/pkg/errors"
)

type rollupRepository interface {
	StatusCounts(ctx context.Context) ([]models.RequestStatusCount, error)
	PriorityCounts(ctx context.Context) ([]models.RequestPriorityCount, error)
	CategoryCounts(ctx context.Context) ([]models.RequestCategoryCount, error)
	DailyCounts(ctx context.Context, from, to time.Time) ([]models.RequestDailyCount, error)
	Total(ctx context.Context) (int, error)
}

type clientCounter interface {
	ClientCount() int
}

// AnalyticsService serves read-only rollups over the request store with a
// cache-aside layer in front of the aggregate queries.
type AnalyticsService struct {
	repo    rollupRepository
	cache   *CacheService
	metrics *MetricsService
	clients clientCounter
	ttl     time.Duration
	logger  *zap.Logger
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(repo rollupRepository, cache *CacheService, metrics *MetricsService, clients clientCounter, ttl time.Duration, logger *zap.Logger) *AnalyticsService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, clients: clients, ttl: ttl, logger: logger}
}

// Overview returns the full request rollup for the window [from, to). A zero
// window defaults to the trailing 30 days.
func (s *AnalyticsService) Overview(ctx context.Context, from, to time.Time) (*models.RequestAnalytics, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	from = from.Truncate(24 * time.Hour)
	to = to.Truncate(24 * time.Hour).AddDate(0, 0, 1)

	cacheKey := fmt.Sprintf("analytics:requests:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	if s.cache != nil {
		var cached models.RequestAnalytics
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	overview, err := s.compute(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, overview, s.ttl); err != nil {
			s.logger.Warn("analytics cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return overview, nil
}

// Stats returns the status breakdown plus the total, for the quick stats
// endpoint on the requests resource.
func (s *AnalyticsService) Stats(ctx context.Context) ([]models.RequestStatusCount, int, error) {
	byStatus, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute request stats")
	}
	total := 0
	for _, bucket := range byStatus {
		total += bucket.Count
	}
	return byStatus, total, nil
}

// System returns the process-level metrics snapshot including the number of
// connected realtime clients.
func (s *AnalyticsService) System(_ context.Context) models.SystemMetrics {
	snapshot := s.metrics.Snapshot()
	if s.clients != nil {
		snapshot.ConnectedClients = s.clients.ClientCount()
	}
	return snapshot
}

// InvalidateRequestRollups drops cached analytics after request mutations.
func (s *AnalyticsService) InvalidateRequestRollups(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "analytics:requests:*"); err != nil {
		s.logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
}

func (s *AnalyticsService) compute(ctx context.Context, from, to time.Time) (*models.RequestAnalytics, error) {
	total, err := s.repo.Total(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}
	byStatus, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group requests by status")
	}
	byPriority, err := s.repo.PriorityCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group requests by priority")
	}
	byCategory, err := s.repo.CategoryCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group requests by category")
	}
	daily, err := s.repo.DailyCounts(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute daily volumes")
	}

	return &models.RequestAnalytics{
		Total:      total,
		ByStatus:   byStatus,
		ByPriority: byPriority,
		ByCategory: byCategory,
		Daily:      daily,
		From:       from,
		To:         to,
	}, nil
}
