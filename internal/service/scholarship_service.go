package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/ayandah-api/internal/catalog"
	"github.com/noah-isme/ayandah-api/internal/models"
	"github.com/noah-isme/ayandah-api/internal/repository"
	appErrors "github.com/noah-isme/ayandah-api/pkg/errors"
	"github.com/noah-isme/ayandah-api/pkg/export"
	"github.com/noah-isme/ayandah-api/pkg/jobs"
)

const (
	// JobTypeScholarshipView is the queue job that bumps a view counter.
	JobTypeScholarshipView = "scholarship.view"

	catalogCachePattern = "catalog:*"
	defaultPageSize     = 20
)

type scholarshipRepository interface {
	Search(ctx context.Context, q catalog.Query) ([]models.Scholarship, error)
	Recent(ctx context.Context, limit int) ([]models.Scholarship, error)
	List(ctx context.Context, page, pageSize int) ([]models.Scholarship, int64, error)
	All(ctx context.Context) ([]models.Scholarship, error)
	FindBySlug(ctx context.Context, slug string) (*models.Scholarship, error)
	Create(ctx context.Context, s *models.Scholarship) error
}

type viewIncrementer interface {
	IncrementViews(ctx context.Context, id string) error
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// ScholarshipServiceConfig tunes catalog caching and limits.
type ScholarshipServiceConfig struct {
	SearchCacheTTL time.Duration
	RecentCacheTTL time.Duration
	FacetsCacheTTL time.Duration
	RecentLimit    int
	MaxPageSize    int
}

// ScholarshipService implements the catalog use cases.
type ScholarshipService struct {
	repo      scholarshipRepository
	views     jobEnqueuer
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ScholarshipServiceConfig
	now       func() time.Time
}

// ScholarshipServiceParams groups constructor dependencies.
type ScholarshipServiceParams struct {
	Repo      scholarshipRepository
	Views     jobEnqueuer
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    ScholarshipServiceConfig
}

// ScholarshipPage is one page of the legacy listing.
type ScholarshipPage struct {
	Items    []models.Scholarship
	Total    int64
	Page     int
	PageSize int
}

// ExportFile is a rendered export ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewScholarshipService constructs a ScholarshipService with defaults applied.
func NewScholarshipService(params ScholarshipServiceParams) *ScholarshipService {
	cfg := params.Config
	if cfg.SearchCacheTTL <= 0 {
		cfg.SearchCacheTTL = 5 * time.Minute
	}
	if cfg.RecentCacheTTL <= 0 {
		cfg.RecentCacheTTL = 5 * time.Minute
	}
	if cfg.FacetsCacheTTL <= 0 {
		cfg.FacetsCacheTTL = 15 * time.Minute
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 6
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &ScholarshipService{
		repo:      params.Repo,
		views:     params.Views,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Search returns every scholarship matching params, newest first unless the
// caller asked for deadline order. The boolean reports a cache hit.
func (s *ScholarshipService) Search(ctx context.Context, params catalog.SearchParams) ([]models.Scholarship, bool, error) {
	if err := params.Validate(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	key := "catalog:search:" + params.Key()
	var cached []models.Scholarship
	if s.cache.Get(ctx, key, &cached) {
		return nonNil(cached), true, nil
	}

	results, err := s.repo.Search(ctx, params.Query())
	if err != nil {
		s.logger.Error("scholarship search failed", zap.String("params", params.Key()), zap.Error(err))
		return nil, false, appErrors.Internal(err)
	}
	results = nonNil(results)
	s.metrics.ObserveSearch(len(results))
	s.cache.Set(ctx, key, results, s.cfg.SearchCacheTTL)
	return results, false, nil
}

// Recent returns the most recently created scholarships.
func (s *ScholarshipService) Recent(ctx context.Context) ([]models.Scholarship, bool, error) {
	key := "catalog:recent:" + strconv.Itoa(s.cfg.RecentLimit)
	var cached []models.Scholarship
	if s.cache.Get(ctx, key, &cached) {
		return nonNil(cached), true, nil
	}

	results, err := s.repo.Recent(ctx, s.cfg.RecentLimit)
	if err != nil {
		return nil, false, appErrors.Internal(err)
	}
	results = nonNil(results)
	s.cache.Set(ctx, key, results, s.cfg.RecentCacheTTL)
	return results, false, nil
}

// Facets computes the filter options over the whole catalog.
func (s *ScholarshipService) Facets(ctx context.Context) (*catalog.FilterOptions, bool, error) {
	const key = "catalog:facets"
	var cached catalog.FilterOptions
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	records, err := s.repo.All(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err)
	}
	options := catalog.ExtractFacets(records)
	s.cache.Set(ctx, key, options, s.cfg.FacetsCacheTTL)
	return &options, false, nil
}

// List returns the catalog newest first. A zero page returns everything.
func (s *ScholarshipService) List(ctx context.Context, page, pageSize int) (*ScholarshipPage, error) {
	if page < 0 || pageSize < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "page and pageSize must be positive")
	}
	if page == 0 {
		items, err := s.repo.All(ctx)
		if err != nil {
			return nil, appErrors.Internal(err)
		}
		items = nonNil(items)
		return &ScholarshipPage{Items: items, Total: int64(len(items))}, nil
	}

	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}
	items, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, appErrors.Internal(err)
	}
	return &ScholarshipPage{Items: nonNil(items), Total: total, Page: page, PageSize: pageSize}, nil
}

// Create validates and stores a new scholarship, then drops cached catalog reads.
func (s *ScholarshipService) Create(ctx context.Context, req models.CreateScholarshipRequest) (*models.Scholarship, error) {
	if err := s.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if fe.Tag() == "required" {
					return nil, appErrors.Clone(appErrors.ErrValidation, "All required fields must be provided")
				}
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scholarship payload")
	}

	scholarshipType := models.ScholarshipType(strings.ToLower(strings.TrimSpace(req.Type)))
	if !scholarshipType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("type must be one of %s", typeList()))
	}

	deadline, err := parseDate(req.Deadline)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "deadline must be a valid date")
	}
	var startDate *time.Time
	if strings.TrimSpace(req.StartDate) != "" {
		parsed, err := parseDate(req.StartDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "startDate must be a valid date")
		}
		startDate = &parsed
	}

	record := &models.Scholarship{
		Title:             req.Title,
		Slug:              req.Slug,
		Description:       req.Description,
		Type:              scholarshipType,
		Value:             req.Value,
		Currency:          strings.ToUpper(req.Currency),
		Level:             strings.TrimSpace(req.Level),
		FieldOfStudy:      req.FieldOfStudy,
		Universities:      req.Universities,
		Country:           req.Country,
		Region:            req.Region,
		Requirements:      req.Requirements,
		EligibleCountries: req.EligibleCountries,
		MinGPA:            req.MinGPA,
		AgeLimit:          req.AgeLimit,
		Deadline:          deadline,
		StartDate:         startDate,
		DurationMonths:    req.DurationMonths,
		ApplicationLink:   req.ApplicationLink,
		ApplicationFee:    req.ApplicationFee,
		DocumentsRequired: req.DocumentsRequired,
		Image:             req.Image,
		IsActive:          true,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Scholarship with this slug already exists")
		}
		return nil, appErrors.Internal(err)
	}

	_ = s.cache.Invalidate(ctx, catalogCachePattern)
	s.logger.Info("scholarship created", zap.String("id", record.ID), zap.String("slug", record.Slug))
	return record, nil
}

// Detail returns one scholarship by slug and queues a view increment. A full
// queue drops the view rather than slowing the read.
func (s *ScholarshipService) Detail(ctx context.Context, slug string) (*models.Scholarship, error) {
	record, err := s.findBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if s.views != nil {
		err := s.views.TryEnqueue(jobs.Job{Type: JobTypeScholarshipView, Payload: record.ID})
		s.metrics.RecordViewEvent(err == nil)
		if err != nil {
			s.logger.Debug("view increment dropped", zap.String("id", record.ID), zap.Error(err))
		}
	}
	return record, nil
}

// Export renders the scholarships matching params in the requested format.
func (s *ScholarshipService) Export(ctx context.Context, params catalog.SearchParams, format export.Format) (*ExportFile, error) {
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := params.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	records, err := s.repo.Search(ctx, params.Query())
	if err != nil {
		return nil, appErrors.Internal(err)
	}

	now := s.now()
	data, err := renderer.Render(scholarshipDataset(records, now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("scholarships-%s.%s", now.Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func (s *ScholarshipService) findBySlug(ctx context.Context, slug string) (*models.Scholarship, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slug is required")
	}
	record, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Scholarship not found")
		}
		return nil, appErrors.Internal(err)
	}
	return record, nil
}

// ViewCounterHandler applies queued view increments. Views for documents that
// no longer exist are discarded instead of retried.
func ViewCounterHandler(repo viewIncrementer, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		id, ok := job.Payload.(string)
		if !ok || id == "" {
			logger.Warn("malformed view job", zap.Any("payload", job.Payload))
			return nil
		}
		if err := repo.IncrementViews(ctx, id); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil
			}
			return err
		}
		return nil
	}
}

func scholarshipDataset(records []models.Scholarship, now time.Time) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]string{
			"Title":     r.Title,
			"Type":      r.Type.Label(),
			"Level":     r.Level,
			"Countries": strings.Join(r.Country, ", "),
			"Fields":    strings.Join(r.FieldOfStudy, ", "),
			"Deadline":  r.Deadline.Format("2006-01-02"),
			"Days Left": strconv.Itoa(r.DaysRemaining(now)),
			"Link":      r.ApplicationLink,
		})
	}
	return export.Dataset{
		Title:   "Scholarships",
		Headers: []string{"Title", "Type", "Level", "Countries", "Fields", "Deadline", "Days Left", "Link"},
		Widths:  []float64{3, 1.2, 1, 2, 2, 1.2, 0.8, 2.5},
		Rows:    rows,
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func typeList() string {
	names := make([]string, 0, len(models.ScholarshipTypes))
	for _, t := range models.ScholarshipTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func nonNil(records []models.Scholarship) []models.Scholarship {
	if records == nil {
		return []models.Scholarship{}
	}
	return records
}
