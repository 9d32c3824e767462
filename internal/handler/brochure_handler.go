package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ayandah-api/internal/models"
	"github.com/noah-isme/ayandah-api/internal/service"
	appErrors "github.com/noah-isme/ayandah-api/pkg/errors"
	"github.com/noah-isme/ayandah-api/pkg/response"
	"github.com/noah-isme/ayandah-api/pkg/storage"
)

type brochureService interface {
	Upload(ctx context.Context, slug string, upload service.BrochureUpload) (*models.BrochureLink, error)
	Link(ctx context.Context, slug string) (*models.BrochureLink, error)
	Open(ctx context.Context, token string) (io.ReadCloser, *storage.ObjectInfo, error)
}

// BrochureHandler serves brochure uploads and signed downloads.
type BrochureHandler struct {
	service brochureService
	maxSize int64
}

// NewBrochureHandler constructs the handler. maxSize bounds the multipart body.
func NewBrochureHandler(svc brochureService, maxSize int64) *BrochureHandler {
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	return &BrochureHandler{service: svc, maxSize: maxSize}
}

// Upload godoc
// @Summary Upload brochure
// @Tags Brochures
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Scholarship slug"
// @Param file formData file true "PDF brochure"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /scholarships/{slug}/brochure [post]
func (h *BrochureHandler) Upload(c *gin.Context) {
	// leave headroom for the multipart framing around the file
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+64*1024)

	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "brochure exceeds the maximum file size"))
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "brochure file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err))
		return
	}
	defer file.Close() //nolint:errcheck

	link, err := h.service.Upload(c.Request.Context(), c.Param("slug"), service.BrochureUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Brochure uploaded successfully", link)
}

// Link godoc
// @Summary Signed brochure link
// @Tags Brochures
// @Produce json
// @Param slug path string true "Scholarship slug"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scholarships/{slug}/brochure [get]
func (h *BrochureHandler) Link(c *gin.Context) {
	link, err := h.service.Link(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", link)
}

// Download godoc
// @Summary Download brochure
// @Tags Brochures
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /brochures/{token} [get]
func (h *BrochureHandler) Download(c *gin.Context) {
	body, info, err := h.service.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer body.Close() //nolint:errcheck

	size := info.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, info.ContentType, body, map[string]string{
		"Content-Disposition": `inline; filename="` + path.Base(info.Key) + `"`,
		"Cache-Control":       "private, max-age=300",
	})
}
