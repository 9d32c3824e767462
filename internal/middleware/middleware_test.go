package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ayandah-api/internal/models"
	appErrors "github.com/noah-isme/ayandah-api/pkg/errors"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Wrap(errors.New("bad token"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
}

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(v TokenValidator) *gin.Engine {
	r := gin.New()
	r.GET("/admin", JWT(v), RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		claims, _ := CurrentClaims(c)
		c.String(http.StatusOK, claims.UserID)
	})
	r.GET("/open", OptionalJWT(v), func(c *gin.Context) {
		if claims, ok := CurrentClaims(c); ok {
			c.String(http.StatusOK, claims.UserID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	return r
}

func TestJWTAndRoles(t *testing.T) {
	v := stubValidator{
		"admin-token": {UserID: "a1", Role: models.RoleAdmin},
		"user-token":  {UserID: "u1", Role: models.RoleUser},
	}
	r := protectedRouter(v)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"plain user", "Bearer user-token", http.StatusForbidden},
		{"admin", "bearer admin-token", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status != http.StatusOK {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, false, body["success"])
			}
		})
	}
}

func TestOptionalJWT(t *testing.T) {
	r := protectedRouter(stubValidator{"user-token": {UserID: "u1", Role: models.RoleUser}})

	for header, want := range map[string]string{"": "anonymous", "Bearer junk": "anonymous", "Bearer user-token": "u1"} {
		req := httptest.NewRequest(http.MethodGet, "/open", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Body.String())
	}
}

func TestResponseMeta(t *testing.T) {
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/hit", func(c *gin.Context) {
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, ExtractMeta(c))
	})
	r.GET("/none", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"meta": ExtractMeta(c)})
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hit", nil))
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/none", nil))
	assert.JSONEq(t, `{"meta":null}`, rec.Body.String())
}

type observation struct {
	method, path string
	status       int
}

type recordingObserver struct{ seen []observation }

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.seen = append(r.seen, observation{method, path, status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	obs := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/api/scholarships/:slug", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/api/scholarships/a", "/api/scholarships/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	require.Len(t, obs.seen, 3)
	assert.Equal(t, observation{http.MethodGet, "/api/scholarships/:slug", http.StatusNoContent}, obs.seen[0])
	assert.Equal(t, obs.seen[0], obs.seen[1])
	assert.Equal(t, "unmatched", obs.seen[2].path)
	assert.Equal(t, http.StatusNotFound, obs.seen[2].status)
}
