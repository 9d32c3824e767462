package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ayandah-api/internal/catalog"
	"github.com/noah-isme/ayandah-api/internal/middleware"
	"github.com/noah-isme/ayandah-api/internal/models"
	"github.com/noah-isme/ayandah-api/internal/service"
	appErrors "github.com/noah-isme/ayandah-api/pkg/errors"
	"github.com/noah-isme/ayandah-api/pkg/export"
)

type fakeScholarshipSrv struct {
	records    []models.Scholarship
	hit        bool
	err        error
	createErr  error
	lastParams catalog.SearchParams
	lastPage   int
	lastSize   int
	lastFormat export.Format
	created    *models.CreateScholarshipRequest
}

func (f *fakeScholarshipSrv) Search(_ context.Context, params catalog.SearchParams) ([]models.Scholarship, bool, error) {
	f.lastParams = params
	if f.err != nil {
		return nil, false, f.err
	}
	return params.Query().Apply(f.records), f.hit, nil
}

func (f *fakeScholarshipSrv) Recent(context.Context) ([]models.Scholarship, bool, error) {
	return f.records, f.hit, f.err
}

func (f *fakeScholarshipSrv) Facets(context.Context) (*catalog.FilterOptions, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	options := catalog.ExtractFacets(f.records)
	return &options, f.hit, nil
}

func (f *fakeScholarshipSrv) List(_ context.Context, page, pageSize int) (*service.ScholarshipPage, error) {
	f.lastPage, f.lastSize = page, pageSize
	if f.err != nil {
		return nil, f.err
	}
	if page == 0 {
		return &service.ScholarshipPage{Items: f.records, Total: int64(len(f.records))}, nil
	}
	if pageSize == 0 {
		pageSize = 20
	}
	return &service.ScholarshipPage{Items: f.records[:1], Total: int64(len(f.records)), Page: page, PageSize: pageSize}, nil
}

func (f *fakeScholarshipSrv) Create(_ context.Context, req models.CreateScholarshipRequest) (*models.Scholarship, error) {
	f.created = &req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Scholarship{ID: "new-id", Title: req.Title, Slug: req.Slug}, nil
}

func (f *fakeScholarshipSrv) Detail(_ context.Context, slug string) (*models.Scholarship, error) {
	for i := range f.records {
		if f.records[i].Slug == slug {
			return &f.records[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "Scholarship not found")
}

func (f *fakeScholarshipSrv) Export(_ context.Context, _ catalog.SearchParams, format export.Format) (*service.ExportFile, error) {
	f.lastFormat = format
	if f.err != nil {
		return nil, f.err
	}
	return &service.ExportFile{Filename: "scholarships-20261015.csv", ContentType: "text/csv", Data: []byte("Title\nMaple Leaf\n")}, nil
}

type envelope struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	Data       json.RawMessage        `json:"data"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
	Error      map[string]interface{} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func catalogFixture() []models.Scholarship {
	deadline := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	return []models.Scholarship{
		{ID: "a1", Title: "Maple Leaf Masters Award", Slug: "maple-leaf", Type: models.TypeFullyFunded, Level: "Masters",
			Country: []string{"Canada"}, FieldOfStudy: []string{"Engineering"}, Universities: []string{"UBC"}, Deadline: deadline,
			CreatedAt: deadline.AddDate(0, -1, 0)},
		{ID: "b2", Title: "Rhine Economics Grant", Slug: "rhine-economics", Type: models.TypePartial, Level: "Masters",
			Country: []string{"Germany"}, FieldOfStudy: []string{"Economics"}, Universities: []string{"LMU"}, Deadline: deadline,
			CreatedAt: deadline.AddDate(0, -2, 0)},
		{ID: "c3", Title: "Sorbonne Arts Fellowship", Slug: "sorbonne-arts", Type: models.TypeSelfFunded, Level: "PhD",
			Country: []string{"France", "Canada"}, FieldOfStudy: []string{"Arts"}, Universities: []string{"Sorbonne"}, Deadline: deadline,
			CreatedAt: deadline.AddDate(0, -3, 0)},
	}
}

func newTestContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	middleware.WithResponseMeta()(c)
	return c, rec
}

func TestScholarshipHandlerSearchFiltersByLevelAndCountry(t *testing.T) {
	svc := &fakeScholarshipSrv{records: catalogFixture()}
	handler := NewScholarshipHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/api/scholarships/search?level=Masters&country=Canada", nil)
	handler.Search(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Masters", svc.lastParams.Level)
	assert.Equal(t, "Canada", svc.lastParams.Country)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Search completed successfully", env.Message)
	var items []models.Scholarship
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "maple-leaf", items[0].Slug)
	assert.Equal(t, false, env.Meta["cache_hit"])
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
}

func TestScholarshipHandlerSearchNoMatchesReturnsEmptyList(t *testing.T) {
	handler := NewScholarshipHandler(&fakeScholarshipSrv{records: catalogFixture()})

	c, rec := newTestContext(http.MethodGet, "/api/scholarships/search?country=Japan", nil)
	handler.Search(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestScholarshipHandlerSearchError(t *testing.T) {
	handler := NewScholarshipHandler(&fakeScholarshipSrv{err: appErrors.Internal(assert.AnError)})

	c, rec := newTestContext(http.MethodGet, "/api/scholarships/search", nil)
	handler.Search(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
}

func TestScholarshipHandlerRecentCacheHit(t *testing.T) {
	handler := NewScholarshipHandler(&fakeScholarshipSrv{records: catalogFixture(), hit: true})

	c, rec := newTestContext(http.MethodGet, "/api/scholarships/limit", nil)
	handler.Recent(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Scholarships retrieved successfully", env.Message)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestScholarshipHandlerFacets(t *testing.T) {
	handler := NewScholarshipHandler(&fakeScholarshipSrv{records: catalogFixture()})

	c, rec := newTestContext(http.MethodGet, "/api/scholarships/facets", nil)
	handler.Facets(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var options catalog.FilterOptions
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &options))
	assert.Equal(t, []string{"Canada", "France", "Germany"}, options.Countries)
	assert.Len(t, options.Types, len(models.ScholarshipTypes))
}

func TestScholarshipHandlerDetailNotFound(t *testing.T) {
	handler := NewScholarshipHandler(&fakeScholarshipSrv{records: catalogFixture()})

	c, rec := newTestContext(http.MethodGet, "/api/scholarships/missing", nil)
	c.Params = gin.Params{{Key: "slug", Value: "missing"}}
	handler.Detail(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Scholarship not found", decodeEnvelope(t, rec).Message)
}

func TestScholarshipHandlerListWithoutPagination(t *testing.T) {
	svc := &fakeScholarshipSrv{records: catalogFixture()}
	handler := NewScholarshipHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/api/schalorships", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Nil(t, env.Pagination)
	var items []models.Scholarship
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 3)
	assert.Equal(t, 0, svc.lastPage)
}

func TestScholarshipHandlerListPaginated(t *testing.T) {
	svc := &fakeScholarshipSrv{records: catalogFixture()}
	handler := NewScholarshipHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/api/schalorships?page=2&pageSize=1", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Pagination)
	assert.EqualValues(t, 2, env.Pagination["page"])
	assert.EqualValues(t, 1, env.Pagination["page_size"])
	assert.EqualValues(t, 3, env.Pagination["total_count"])
	assert.Equal(t, 2, svc.lastPage)
	assert.Equal(t, 1, svc.lastSize)
}

func TestScholarshipHandlerListRejectsBadPage(t *testing.T) {
	handler := NewScholarshipHandler(&fakeScholarshipSrv{})

	c, rec := newTestContext(http.MethodGet, "/api/schalorships?page=-1", nil)
	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScholarshipHandlerCreate(t *testing.T) {
	svc := &fakeScholarshipSrv{}
	handler := NewScholarshipHandler(svc)

	body, _ := json.Marshal(map[string]interface{}{
		"title": "New Award", "slug": "new-award", "description": "d", "type": "partial", "level": "Masters",
		"fieldOfStudy": []string{}, "universities": []string{}, "country": []string{"Canada"},
		"requirements": "r", "deadline": "2026-12-01", "image": "img.png",
	})
	c, rec := newTestContext(http.MethodPost, "/api/schalorships", body)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Scholarship created successfully", env.Message)
	require.NotNil(t, svc.created)
	assert.Equal(t, "new-award", svc.created.Slug)
}

func TestScholarshipHandlerCreateMissingFields(t *testing.T) {
	handler := NewScholarshipHandler(&fakeScholarshipSrv{
		createErr: appErrors.Clone(appErrors.ErrValidation, "All required fields must be provided"),
	})

	c, rec := newTestContext(http.MethodPost, "/api/schalorships", []byte(`{"title":"Only a title"}`))
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "All required fields must be provided", decodeEnvelope(t, rec).Message)
}

func TestScholarshipHandlerCreateMalformedJSON(t *testing.T) {
	svc := &fakeScholarshipSrv{}
	handler := NewScholarshipHandler(svc)

	c, rec := newTestContext(http.MethodPost, "/api/schalorships", []byte(`{"title":`))
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "All required fields must be provided", decodeEnvelope(t, rec).Message)
	assert.Nil(t, svc.created)
}

func TestScholarshipHandlerCreateDuplicateSlug(t *testing.T) {
	handler := NewScholarshipHandler(&fakeScholarshipSrv{
		createErr: appErrors.Clone(appErrors.ErrConflict, "Scholarship with this slug already exists"),
	})

	body := []byte(`{"title":"t","slug":"maple-leaf"}`)
	c, rec := newTestContext(http.MethodPost, "/api/schalorships", body)
	handler.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScholarshipHandlerExport(t *testing.T) {
	svc := &fakeScholarshipSrv{}
	handler := NewScholarshipHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/api/scholarships/export?format=CSV&level=Masters", nil)
	handler.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.FormatCSV, svc.lastFormat)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="scholarships-20261015.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "Maple Leaf")
}
