package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/use-agent/firescrape/models"
)

// Remote is a Scraper backed by a running firescrape HTTP API.
type Remote struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemote returns a Scraper that forwards tool calls to the API at baseURL.
func NewRemote(baseURL, apiKey string) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// Scrape posts req to /api/v1/scrape.
func (r *Remote) Scrape(ctx context.Context, req models.ScrapeRequest) (*models.ExtractionResult, error) {
	var resp models.ScrapeResponse
	if err := r.post(ctx, "/api/v1/scrape", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, remoteError(resp.Error)
	}
	if resp.Data == nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "api returned no data", nil)
	}
	return resp.Data, nil
}

// Batch posts the job to /api/v1/batch/scrape. The API applies one set of
// options to every URL, so they are taken from the first request.
func (r *Remote) Batch(ctx context.Context, job models.BatchJob) *models.BatchResult {
	res := &models.BatchResult{ID: job.ID, Items: make([]models.BatchItem, len(job.Requests))}
	if len(job.Requests) == 0 {
		return res
	}

	payload := models.BatchRequest{MaxConcurrency: job.MaxConcurrency}
	for _, req := range job.Requests {
		payload.URLs = append(payload.URLs, req.URL)
	}
	first := job.Requests[0]
	payload.Options = models.BatchOptions{
		Format:      first.Format,
		ExtractMode: first.ExtractMode,
		Actions:     first.Actions,
		Prompt:      first.Prompt,
		MaxAge:      first.MaxAge,
		NoCache:     first.NoCache,
		Timeout:     first.Timeout,
	}

	var resp models.BatchResponse
	err := r.post(ctx, "/api/v1/batch/scrape", payload, &resp)
	if err == nil && len(resp.Results) != len(job.Requests) {
		err = models.NewScrapeError(models.ErrCodeInternal,
			fmt.Sprintf("api returned %d results for %d urls", len(resp.Results), len(job.Requests)), nil)
	}
	for i, req := range job.Requests {
		res.Items[i].URL = req.URL
		if err != nil {
			res.Items[i].Err = err
			continue
		}
		item := resp.Results[i]
		if item.Success && item.Data != nil {
			res.Items[i].Result = item.Data
		} else {
			res.Items[i].Err = remoteError(item.Error)
		}
	}
	if err == nil {
		res.ID = resp.ID
		res.NearDuplicates = resp.NearDuplicates
	}
	return res
}

// post sends payload as JSON and decodes the response body into out.
// Error statuses carry the scrape envelope, whose code is passed through.
func (r *Remote) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeInternal, "api request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeInternal, "read api response", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var envelope models.ScrapeResponse
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil {
			return remoteError(envelope.Error)
		}
		return models.NewScrapeError(models.ErrCodeInternal, "api returned "+resp.Status, nil)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return models.NewScrapeError(models.ErrCodeInternal, "parse api response", err)
	}
	return nil
}

func remoteError(d *models.ErrorDetail) error {
	if d == nil {
		return models.NewScrapeError(models.ErrCodeInternal, "api reported failure without detail", nil)
	}
	return models.NewScrapeError(d.Code, d.Message, nil)
}
