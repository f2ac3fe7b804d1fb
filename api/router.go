package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/firescrape/api/handler"
	"github.com/use-agent/firescrape/api/middleware"
	"github.com/use-agent/firescrape/config"
)

// Service is what the router serves.
type Service interface {
	handler.Scraper
	handler.StatusReporter
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health sits outside auth so monitoring probes always work.
func NewRouter(svc Service, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Server.Mode != gin.TestMode {
		r.Use(gin.Logger())
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(svc, cfg.Browser.MaxPages, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/scrape", handler.Scrape(svc))
	protected.POST("/extract", handler.Extract(svc))
	protected.POST("/batch/scrape", handler.PostBatch(svc))

	return r
}
