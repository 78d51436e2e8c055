package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitelens/analyzer"
	"github.com/use-agent/sitelens/api/handler"
	"github.com/use-agent/sitelens/api/middleware"
	"github.com/use-agent/sitelens/browser"
	"github.com/use-agent/sitelens/cache"
	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/probe"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(az *analyzer.Analyzer, pool *browser.Pool, pr *probe.Prober, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(pool, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/analyze", handler.Analyze(az, pr, cc))

	return r
}
