package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"paperal-backend/internal/analyses"
	"paperal-backend/internal/papers"
	"paperal-backend/internal/reports"
	"paperal-backend/internal/shared/config"
	"paperal-backend/internal/shared/metrics"
	"paperal-backend/internal/shared/server/middleware"
	"paperal-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config          config.Config
	PapersHandler   *papers.Handler
	AnalysesHandler *analyses.Handler
	ReportsHandler  *reports.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(cfg.Env),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	registerMeRoutes(api)

	if deps.PapersHandler != nil {
		deps.PapersHandler.RegisterRoutes(api)
	}
	if deps.AnalysesHandler != nil {
		deps.AnalysesHandler.RegisterRoutes(api)
	}
	if deps.ReportsHandler != nil {
		deps.ReportsHandler.RegisterRoutes(api)
		// The shared-report route skips auth, see middleware.Auth.
		deps.ReportsHandler.RegisterPublicRoutes(&r.RouterGroup)
	}

	if cfg.Env == "dev" {
		r.GET("/metrics", metrics.Handler())
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
