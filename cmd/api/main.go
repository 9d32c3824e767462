package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ayandah-api/api/swagger"
	"github.com/noah-isme/ayandah-api/internal/handler"
	"github.com/noah-isme/ayandah-api/internal/repository"
	"github.com/noah-isme/ayandah-api/internal/service"
	"github.com/noah-isme/ayandah-api/pkg/cache"
	"github.com/noah-isme/ayandah-api/pkg/config"
	"github.com/noah-isme/ayandah-api/pkg/database"
	"github.com/noah-isme/ayandah-api/pkg/jobs"
	"github.com/noah-isme/ayandah-api/pkg/logger"
	"github.com/noah-isme/ayandah-api/pkg/storage"
)

// @title Ayandah API
// @version 1.0.0
// @description Scholarship catalog, accounts and admin dashboard.
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type sqlPinger struct{ db *sqlx.DB }

func (p sqlPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	mongoConn, err := database.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		return fmt.Errorf("mongo: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoConn.Close(closeCtx)
	}()

	scholarships := repository.NewScholarshipRepository(mongoConn.Database())
	if err := scholarships.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	users := repository.NewUserRepository(db)
	audits := repository.NewAuditRepository(db)

	// the catalog still serves from Mongo when Redis is down
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	store, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.SearchCacheTTL, logr, cfg.Catalog.CacheEnabled && redisClient != nil)
	validate := validator.New()

	views := jobs.NewQueue("scholarship-views", service.ViewCounterHandler(scholarships, logr), jobs.QueueConfig{
		Workers:    cfg.Views.Workers,
		BufferSize: cfg.Views.BufferSize,
		MaxRetries: cfg.Views.MaxRetries,
		Logger:     logr,
	})
	views.Start(ctx)
	defer views.Stop()

	scholarshipSvc := service.NewScholarshipService(service.ScholarshipServiceParams{
		Repo:      scholarships,
		Views:     views,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
		Config: service.ScholarshipServiceConfig{
			SearchCacheTTL: cfg.Catalog.SearchCacheTTL,
			RecentCacheTTL: cfg.Catalog.RecentCacheTTL,
			FacetsCacheTTL: cfg.Catalog.FacetsCacheTTL,
			RecentLimit:    cfg.Catalog.RecentLimit,
			MaxPageSize:    cfg.Catalog.MaxPageSize,
		},
	})

	authSvc := service.NewAuthService(users, metrics, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.Sessions.SingleSession,
	})

	signer := storage.NewSignedURLSigner(cfg.Brochures.SignedURLSecret, cfg.Brochures.SignedURLTTL)
	brochureSvc := service.NewBrochureService(scholarships, store, signer, cacheSvc, logr, service.BrochureConfig{
		APIPrefix:        cfg.APIPrefix,
		MaxFileSizeBytes: cfg.Brochures.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Brochures.AllowedMIMEs,
	})

	var dashboardHandler *handler.DashboardHandler
	if cfg.Dashboard.Enabled {
		dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
			Repo:    scholarships,
			Metrics: metrics,
			Cache:   cacheSvc,
			Logger:  logr,
			Config: service.DashboardServiceConfig{
				CacheTTL:          cfg.Dashboard.CacheTTL,
				UpcomingWindow:    cfg.Dashboard.UpcomingWindow,
				UpcomingLimit:     cfg.Dashboard.UpcomingLimit,
				RecentLimit:       cfg.Catalog.RecentLimit,
				TopCountriesLimit: cfg.Dashboard.TopCountriesLimit,
			},
		})
		dashboardHandler = handler.NewDashboardHandler(dashboardSvc)
	}

	janitor := service.NewSessionJanitor(users, metrics, logr, cfg.Sessions.CleanupSchedule)
	if err := janitor.Start(ctx); err != nil {
		return fmt.Errorf("session janitor: %w", err)
	}
	defer janitor.Stop()

	backends := map[string]handler.Pinger{
		"postgres": sqlPinger{db: db},
		"mongo":    mongoConn,
	}
	if redisClient != nil {
		backends["redis"] = cacheRepo
	}

	router := handler.NewRouter(handler.RouterParams{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Tokens:         authSvc,
		Observer:       metrics,
		Audit:          audits,
		Scholarships:   handler.NewScholarshipHandler(scholarshipSvc),
		Brochures:      handler.NewBrochureHandler(brochureSvc, cfg.Brochures.MaxFileSizeBytes),
		Auth:           handler.NewAuthHandler(authSvc),
		Dashboard:      dashboardHandler,
		Health:         handler.NewHealthHandler(metrics.Handler(), backends),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Driver {
	case config.StorageDriverMinio:
		return storage.NewMinioStorage(ctx, cfg)
	case config.StorageDriverLocal, "":
		return storage.NewLocalStorage(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
