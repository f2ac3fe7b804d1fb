package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/firescrape/models"
)

// Scraper is the pipeline the handlers drive.
type Scraper interface {
	Scrape(ctx context.Context, req models.ScrapeRequest) (*models.ExtractionResult, error)
	Batch(ctx context.Context, job models.BatchJob) *models.BatchResult
}

// Scrape returns a handler for POST /api/v1/scrape. Partial results are
// returned with 200 and carry their warnings.
func Scrape(sc Scraper) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		res, err := sc.Scrape(c.Request.Context(), req)
		if err != nil {
			slog.Warn("scrape failed", "url", req.URL, "code", models.CodeOf(err),
				"elapsed_ms", time.Since(start).Milliseconds(), "error", err)
			c.JSON(statusOf(err), models.ScrapeResponse{Success: false, Error: models.DetailOf(err)})
			return
		}

		slog.Info("scrape completed", "url", req.URL, "from_cache", res.FromCache,
			"warnings", len(res.Warnings), "elapsed_ms", time.Since(start).Milliseconds())
		c.JSON(http.StatusOK, models.ScrapeResponse{Success: true, Data: res})
	}
}

// statusOf translates error codes to HTTP status codes.
func statusOf(err error) int {
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		return http.StatusInternalServerError
	}
	switch se.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeAIExtraction:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeActionFailed, models.ErrCodeElementNotFound, models.ErrCodeExtractionEmpty:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeBrowserUnavailable:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
