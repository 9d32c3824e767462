package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/ayandah-api/internal/middleware"
	"github.com/noah-isme/ayandah-api/internal/models"
	appErrors "github.com/noah-isme/ayandah-api/pkg/errors"
	"github.com/noah-isme/ayandah-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ayandah-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ayandah-api/pkg/middleware/requestid"
	"github.com/noah-isme/ayandah-api/pkg/response"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger

	Tokens   middleware.TokenValidator
	Observer middleware.RequestObserver
	Audit    middleware.AuditRecorder

	Scholarships *ScholarshipHandler
	Brochures    *BrochureHandler
	Auth         *AuthHandler
	Dashboard    *DashboardHandler
	Health       *HealthHandler
}

// NewRouter builds the gin engine with middleware and every route registered.
func NewRouter(p RouterParams) *gin.Engine {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.APIPrefix == "" {
		p.APIPrefix = "/api"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(p.Logger))
	r.Use(corsmiddleware.New(p.AllowedOrigins))
	r.Use(middleware.Metrics(p.Observer))
	r.Use(middleware.WithResponseMeta())

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})

	if p.Health != nil {
		r.GET("/health", p.Health.Health)
		r.GET("/ready", p.Health.Ready)
		r.GET("/metrics", p.Health.Prometheus)
	}
	if p.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authRequired := middleware.JWT(p.Tokens)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(p.Audit, p.Logger, action, resource)
	}

	api := r.Group(p.APIPrefix)

	scholarships := api.Group("/scholarships")
	scholarships.GET("/search", p.Scholarships.Search)
	scholarships.GET("/limit", p.Scholarships.Recent)
	scholarships.GET("/facets", p.Scholarships.Facets)
	scholarships.GET("/export", p.Scholarships.Export)
	scholarships.GET("/:slug", p.Scholarships.Detail)
	if p.Brochures != nil {
		scholarships.GET("/:slug/brochure", p.Brochures.Link)
		scholarships.POST("/:slug/brochure", authRequired, adminOnly,
			audit(models.AuditActionBrochureUpload, models.AuditResourceScholarship), p.Brochures.Upload)
		api.GET("/brochures/:token", p.Brochures.Download)
	}

	// the misspelled collection path is the one existing clients call
	legacy := api.Group("/schalorships")
	legacy.GET("", p.Scholarships.List)
	legacy.POST("", authRequired, adminOnly,
		audit(models.AuditActionScholarshipCreate, models.AuditResourceScholarship), p.Scholarships.Create)

	auth := api.Group("/auth")
	auth.POST("/login", p.Auth.Login)
	auth.POST("/register", p.Auth.Register)
	auth.POST("/refresh", p.Auth.Refresh)
	auth.POST("/logout", authRequired, audit(models.AuditActionLogout, models.AuditResourceSession), p.Auth.Logout)
	auth.GET("/me", authRequired, p.Auth.Me)

	if p.Dashboard != nil {
		api.GET("/dashboard", authRequired, adminOnly, p.Dashboard.Summary)
	}

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		response.Error(c, appErrors.New("METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed, "method not allowed"))
	})

	return r
}
