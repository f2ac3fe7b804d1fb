package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/firescrape/models"
)

// Extract returns a handler for POST /api/v1/extract. It always scrapes
// fresh content; a missing AI result fails the request.
func Extract(sc Scraper) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ExtractResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		res, err := sc.Scrape(c.Request.Context(), req.ToScrapeRequest())
		if err != nil {
			c.JSON(statusOf(err), models.ExtractResponse{Success: false, URL: req.URL, Error: models.DetailOf(err)})
			return
		}

		if res.Structured == nil {
			detail := models.ErrorDetail{Code: models.ErrCodeAIExtraction, Message: "AI extraction produced no data"}
			for _, w := range res.Warnings {
				if w.Code == models.ErrCodeAIExtraction {
					detail = w
				}
			}
			c.JSON(http.StatusBadGateway, models.ExtractResponse{Success: false, URL: req.URL, Title: res.Title, Error: &detail})
			return
		}

		c.JSON(http.StatusOK, models.ExtractResponse{
			Success: true,
			URL:     req.URL,
			Title:   res.Title,
			Data:    res.Structured,
		})
	}
}
