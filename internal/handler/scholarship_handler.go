package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ayandah-api/internal/catalog"
	"github.com/noah-isme/ayandah-api/internal/models"
	"github.com/noah-isme/ayandah-api/internal/service"
	appErrors "github.com/noah-isme/ayandah-api/pkg/errors"
	"github.com/noah-isme/ayandah-api/pkg/export"
	"github.com/noah-isme/ayandah-api/pkg/response"
)

type scholarshipService interface {
	Search(ctx context.Context, params catalog.SearchParams) ([]models.Scholarship, bool, error)
	Recent(ctx context.Context) ([]models.Scholarship, bool, error)
	Facets(ctx context.Context) (*catalog.FilterOptions, bool, error)
	List(ctx context.Context, page, pageSize int) (*service.ScholarshipPage, error)
	Create(ctx context.Context, req models.CreateScholarshipRequest) (*models.Scholarship, error)
	Detail(ctx context.Context, slug string) (*models.Scholarship, error)
	Export(ctx context.Context, params catalog.SearchParams, format export.Format) (*service.ExportFile, error)
}

// ScholarshipHandler exposes the catalog endpoints.
type ScholarshipHandler struct {
	service scholarshipService
}

// NewScholarshipHandler constructs the handler.
func NewScholarshipHandler(svc scholarshipService) *ScholarshipHandler {
	return &ScholarshipHandler{service: svc}
}

// Search godoc
// @Summary Search scholarships
// @Description Filters by exact type and level, country and field membership, title substring, and a free-text search across text and list fields. Results are newest first and unpaginated.
// @Tags Scholarships
// @Produce json
// @Param search query string false "Free text"
// @Param title query string false "Title substring"
// @Param type query string false "Funding type"
// @Param level query string false "Study level"
// @Param country query string false "Country"
// @Param fieldOfStudy query string false "Field of study"
// @Param sort query string false "newest (default) or deadline"
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /scholarships/search [get]
func (h *ScholarshipHandler) Search(c *gin.Context) {
	params := catalog.ParamsFromValues(c.Request.URL.Query())
	results, hit, err := h.service.Search(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Search completed successfully", results, cacheMeta(c, hit))
}

// Recent godoc
// @Summary Most recent scholarships
// @Tags Scholarships
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /scholarships/limit [get]
func (h *ScholarshipHandler) Recent(c *gin.Context) {
	results, hit, err := h.service.Recent(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Scholarships retrieved successfully", results, cacheMeta(c, hit))
}

// Facets godoc
// @Summary Filter options
// @Description Distinct types, levels, countries, fields and universities across the catalog.
// @Tags Scholarships
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /scholarships/facets [get]
func (h *ScholarshipHandler) Facets(c *gin.Context) {
	options, hit, err := h.service.Facets(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Filter options retrieved successfully", options, cacheMeta(c, hit))
}

// Export godoc
// @Summary Export scholarships
// @Description Renders the search result as CSV or PDF. Accepts the search filters.
// @Tags Scholarships
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /scholarships/export [get]
func (h *ScholarshipHandler) Export(c *gin.Context) {
	params := catalog.ParamsFromValues(c.Request.URL.Query())
	format := export.Format(strings.ToLower(strings.TrimSpace(c.Query("format"))))

	file, err := h.service.Export(c.Request.Context(), params, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Detail godoc
// @Summary Scholarship detail
// @Tags Scholarships
// @Produce json
// @Param slug path string true "Scholarship slug"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scholarships/{slug} [get]
func (h *ScholarshipHandler) Detail(c *gin.Context) {
	record, err := h.service.Detail(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "Scholarship retrieved successfully", record)
}

// List godoc
// @Summary List scholarships
// @Description Full catalog newest first. Pass page (and optionally pageSize) to paginate.
// @Tags Scholarships
// @Produce json
// @Param page query int false "Page number, 1-based"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schalorships [get]
func (h *ScholarshipHandler) List(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		response.Error(c, err)
		return
	}
	pageSize, err := queryInt(c, "pageSize")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	var pagination *response.Pagination
	if result.Page > 0 {
		pagination = &response.Pagination{Page: result.Page, PageSize: result.PageSize, TotalCount: result.Total}
	}
	response.Paged(c, "Scholarships retrieved successfully", result.Items, pagination, nil)
}

// Create godoc
// @Summary Create scholarship
// @Tags Scholarships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateScholarshipRequest true "Scholarship"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schalorships [post]
func (h *ScholarshipHandler) Create(c *gin.Context) {
	var req models.CreateScholarshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "All required fields must be provided"))
		return
	}

	record, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Scholarship created successfully", record)
}
