package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/use-agent/firescrape/models"
	"github.com/use-agent/firescrape/webhook"
)

// PostBatch returns a handler for POST /api/v1/batch/scrape. The batch runs
// to completion within the request; a webhook, if given, receives the same
// result as a batch.completed event.
func PostBatch(sc Scraper) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		res := sc.Batch(c.Request.Context(), models.BatchJob{
			ID:             "batch-" + uuid.NewString(),
			Requests:       req.Requests(),
			MaxConcurrency: req.MaxConcurrency,
		})

		if req.WebhookURL != "" {
			webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, webhook.BatchCompleted(res))
		}

		c.JSON(http.StatusOK, models.NewBatchResponse(res))
	}
}
