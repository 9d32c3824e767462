package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ayandah-api/internal/models"
	appErrors "github.com/noah-isme/ayandah-api/pkg/errors"
)

type dashboardRepository interface {
	Stats(ctx context.Context, topCountries int) (*models.ScholarshipStats, error)
	Upcoming(ctx context.Context, from, to time.Time, limit int) ([]models.Scholarship, error)
	Recent(ctx context.Context, limit int) ([]models.Scholarship, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL          time.Duration
	UpcomingWindow    time.Duration
	UpcomingLimit     int
	RecentLimit       int
	TopCountriesLimit int
}

// DashboardService composes the admin dashboard summary.
type DashboardService struct {
	repo    dashboardRepository
	metrics *MetricsService
	cache   *CacheService
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo    dashboardRepository
	Metrics *MetricsService
	Cache   *CacheService
	Logger  *zap.Logger
	Config  DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.UpcomingWindow <= 0 {
		cfg.UpcomingWindow = 30 * 24 * time.Hour
	}
	if cfg.UpcomingLimit <= 0 {
		cfg.UpcomingLimit = 5
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	if cfg.TopCountriesLimit <= 0 {
		cfg.TopCountriesLimit = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:    params.Repo,
		metrics: params.Metrics,
		cache:   params.Cache,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		cfg:     cfg,
	}
}

// Summary returns the admin dashboard and indicates cache utilisation. The
// system block is always live, even on a cache hit.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	const cacheKey = "dash:admin"
	var cached models.DashboardSummary
	if s.cache.Get(ctx, cacheKey, &cached) {
		cached.System = s.metrics.Snapshot()
		return &cached, true, nil
	}

	summary, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL)
	summary.System = s.metrics.Snapshot()
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context) (*models.DashboardSummary, error) {
	now := s.now()
	var (
		stats    *models.ScholarshipStats
		upcoming []models.Scholarship
		recent   []models.Scholarship
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.repo.Stats(gctx, s.cfg.TopCountriesLimit)
		return err
	})
	g.Go(func() error {
		var err error
		upcoming, err = s.repo.Upcoming(gctx, now, now.Add(s.cfg.UpcomingWindow), s.cfg.UpcomingLimit)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.repo.Recent(gctx, s.cfg.RecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("dashboard composition failed", zap.Error(err))
		return nil, appErrors.Internal(err)
	}

	return &models.DashboardSummary{
		Stats:             *stats,
		UpcomingDeadlines: digests(upcoming, now),
		RecentlyAdded:     digests(recent, now),
		GeneratedAt:       now,
	}, nil
}

func digests(records []models.Scholarship, now time.Time) []models.ScholarshipDigest {
	out := make([]models.ScholarshipDigest, 0, len(records))
	for _, r := range records {
		out = append(out, r.Digest(now))
	}
	return out
}
