package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/ayandah-api/internal/models"
	appErrors "github.com/noah-isme/ayandah-api/pkg/errors"
	"github.com/noah-isme/ayandah-api/pkg/storage"
)

type brochureRepository interface {
	FindBySlug(ctx context.Context, slug string) (*models.Scholarship, error)
	SetBrochure(ctx context.Context, slug, key string) error
}

// BrochureConfig constrains uploads and shapes download links.
type BrochureConfig struct {
	APIPrefix        string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// BrochureUpload is a single uploaded brochure file.
type BrochureUpload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// BrochureService stores scholarship brochures and hands out signed links.
type BrochureService struct {
	repo    brochureRepository
	store   storage.ObjectStore
	signer  *storage.SignedURLSigner
	cache   *CacheService
	logger  *zap.Logger
	cfg     BrochureConfig
	allowed map[string]struct{}
}

// NewBrochureService constructs a BrochureService.
func NewBrochureService(repo brochureRepository, store storage.ObjectStore, signer *storage.SignedURLSigner, cache *CacheService, logger *zap.Logger, cfg BrochureConfig) *BrochureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf"}
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &BrochureService{repo: repo, store: store, signer: signer, cache: cache, logger: logger, cfg: cfg, allowed: allowed}
}

// Upload stores a brochure for the scholarship and returns a download link.
// The content type is sniffed from the file body, not taken from the client.
func (s *BrochureService) Upload(ctx context.Context, slug string, upload BrochureUpload) (*models.BrochureLink, error) {
	if upload.Body == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "brochure file is required")
	}
	if upload.Size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, "brochure exceeds the maximum file size")
	}

	record, err := s.lookup(ctx, slug)
	if err != nil {
		return nil, err
	}

	reader := bufio.NewReaderSize(upload.Body, 512)
	head, err := reader.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unable to read brochure")
	}
	contentType := strings.ToLower(strings.SplitN(http.DetectContentType(head), ";", 2)[0])
	if _, ok := s.allowed[contentType]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported brochure type "+contentType)
	}

	ext := strings.ToLower(path.Ext(upload.Filename))
	if ext == "" {
		ext = ".pdf"
	}
	key := path.Join("brochures", record.Slug, uuid.NewString()+ext)

	if _, err := s.store.Put(ctx, key, io.LimitReader(reader, s.cfg.MaxFileSizeBytes), upload.Size, contentType); err != nil {
		return nil, appErrors.Internal(err)
	}

	if err := s.repo.SetBrochure(ctx, record.Slug, key); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned brochure object", zap.String("key", key), zap.Error(delErr))
		}
		return nil, appErrors.Internal(err)
	}

	if previous := record.BrochureFile; previous != "" && previous != key {
		if err := s.store.Delete(ctx, previous); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("failed to delete previous brochure", zap.String("key", previous), zap.Error(err))
		}
	}
	_ = s.cache.Invalidate(ctx, catalogCachePattern)

	s.logger.Info("brochure uploaded", zap.String("slug", record.Slug), zap.String("key", key), zap.Int64("size", upload.Size))
	return s.link(record.Slug, key)
}

// Link returns a fresh signed download link for the scholarship's brochure.
func (s *BrochureService) Link(ctx context.Context, slug string) (*models.BrochureLink, error) {
	record, err := s.lookup(ctx, slug)
	if err != nil {
		return nil, err
	}
	if record.BrochureFile == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Brochure not available")
	}
	return s.link(record.Slug, record.BrochureFile)
}

// Open resolves a signed token to the stored brochure. Callers must close the reader.
func (s *BrochureService) Open(ctx context.Context, token string) (io.ReadCloser, *storage.ObjectInfo, error) {
	slug, key, _, err := s.signer.Parse(token)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	case err != nil:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	if !strings.HasPrefix(key, path.Join("brochures", slug)+"/") {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}

	body, info, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "Brochure not available")
		}
		return nil, nil, appErrors.Internal(err)
	}
	return body, info, nil
}

func (s *BrochureService) link(slug, key string) (*models.BrochureLink, error) {
	token, expiresAt, err := s.signer.Generate(slug, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign brochure link")
	}
	return &models.BrochureLink{
		URL:       strings.TrimRight(s.cfg.APIPrefix, "/") + "/brochures/" + token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *BrochureService) lookup(ctx context.Context, slug string) (*models.Scholarship, error) {
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
