package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/firescrape/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// StatusReporter exposes the runtime state shown by the health endpoint.
type StatusReporter interface {
	Engine() string
	CacheBackend() string
	Active() int
}

// Health returns a handler for GET /api/v1/health.
//
// Degrades status when more than 80% of maxPages sessions are active.
func Health(st StatusReporter, maxPages int, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		if maxPages > 0 && st.Active() > int(float64(maxPages)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Engine:  st.Engine(),
			Cache:   st.CacheBackend(),
			Version: Version,
		})
	}
}
