package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
	appErrors "github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/errors"
)

type studentCounter interface {
	Counts(ctx context.Context) (*models.StudentCounts, error)
}

type lessonStatsSource interface {
	Stats(ctx context.Context, dayStart, dayEnd time.Time) (*models.LessonStats, error)
}

type paymentStatsSource interface {
	Stats(ctx context.Context, today time.Time) (*models.PaymentStats, error)
}

const (
	dashboardCacheKey         = "dashboard:stats"
	dashboardLessonsCacheKey  = "dashboard:lessons"
	dashboardPaymentsCacheKey = "dashboard:payments"
)

// DashboardService composes the combined stats snapshot, caching the result.
type DashboardService struct {
	students studentCounter
	lessons  lessonStatsSource
	payments paymentStatsSource
	cache    *CacheService
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(students studentCounter, lessons lessonStatsSource, payments paymentStatsSource, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		students: students,
		lessons:  lessons,
		payments: payments,
		cache:    cache,
		metrics:  metrics,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Stats returns the dashboard snapshot and whether it was served from cache.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, bool, error) {
	var cached models.DashboardStats
	if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	now := s.now()
	dayStart, dayEnd := dayBounds(now)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	start := time.Now()
	counts, err := s.students.Counts(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	s.metrics.ObserveDBQuery("dashboard_students", time.Since(start))

	start = time.Now()
	lessonStats, err := s.lessons.Stats(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate lesson stats")
	}
	s.metrics.ObserveDBQuery("dashboard_lessons", time.Since(start))

	start = time.Now()
	paymentStats, err := s.payments.Stats(ctx, today)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate payment stats")
	}
	s.metrics.ObserveDBQuery("dashboard_payments", time.Since(start))

	stats := &models.DashboardStats{
		Students: *counts,
		Lessons:  *lessonStats,
		Payments: *paymentStats,
	}
	if err := s.cache.Set(ctx, dashboardCacheKey, stats, s.cacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return stats, false, nil
}

// LessonStats returns the lesson counters alone, cached under their own key.
func (s *DashboardService) LessonStats(ctx context.Context) (*models.LessonStats, bool, error) {
	var cached models.LessonStats
	if hit, err := s.cache.Get(ctx, dashboardLessonsCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	dayStart, dayEnd := dayBounds(s.now())
	start := time.Now()
	stats, err := s.lessons.Stats(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate lesson stats")
	}
	s.metrics.ObserveDBQuery("dashboard_lessons", time.Since(start))
	if err := s.cache.Set(ctx, dashboardLessonsCacheKey, stats, s.cacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return stats, false, nil
}

// PaymentStats returns the payment counters alone, cached under their own key.
func (s *DashboardService) PaymentStats(ctx context.Context) (*models.PaymentStats, bool, error) {
	var cached models.PaymentStats
	if hit, err := s.cache.Get(ctx, dashboardPaymentsCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := time.Now()
	stats, err := s.payments.Stats(ctx, today)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate payment stats")
	}
	s.metrics.ObserveDBQuery("dashboard_payments", time.Since(start))
	if err := s.cache.Set(ctx, dashboardPaymentsCacheKey, stats, s.cacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return stats, false, nil
}

// InvalidateCache drops the cached snapshots after writes.
func (s *DashboardService) InvalidateCache(ctx context.Context) {
	for _, key := range []string{dashboardCacheKey, dashboardLessonsCacheKey, dashboardPaymentsCacheKey} {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("dashboard cache invalidate failed", zap.Error(err), zap.String("key", key))
		}
	}
}
