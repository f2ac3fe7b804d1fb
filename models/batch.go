package models

// BatchJob is a set of scrape requests run under one bounded pool.
type BatchJob struct {
	ID             string
	Requests       []ScrapeRequest
	MaxConcurrency int
}

// BatchItem is the outcome slot of one request in a batch.
// Exactly one of Result and Err is set.
type BatchItem struct {
	URL         string            `json:"url"`
	Fingerprint string            `json:"fingerprint"`
	Result      *ExtractionResult `json:"result,omitempty"`
	Err         error             `json:"-"`
}

// Failed reports whether the slot holds an error.
func (i BatchItem) Failed() bool {
	return i.Err != nil
}

// DuplicatePair links two batch items whose content is near-identical.
type DuplicatePair struct {
	A        int `json:"a"`
	B        int `json:"b"`
	Distance int `json:"distance"`
}

// BatchResult holds one item per request, in submission order.
type BatchResult struct {
	ID             string          `json:"id"`
	Items          []BatchItem     `json:"items"`
	NearDuplicates []DuplicatePair `json:"near_duplicates,omitempty"`
}

// ByURL correlates results by URL. When the same URL appears with different
// options the first submitted one wins.
func (r *BatchResult) ByURL() map[string]BatchItem {
	m := make(map[string]BatchItem, len(r.Items))
	for _, item := range r.Items {
		if _, ok := m[item.URL]; !ok {
			m[item.URL] = item
		}
	}
	return m
}

// Succeeded counts slots holding a result.
func (r *BatchResult) Succeeded() int {
	n := 0
	for _, item := range r.Items {
		if !item.Failed() {
			n++
		}
	}
	return n
}

// BatchRequest is the payload for POST /api/v1/batch/scrape.
type BatchRequest struct {
	// URLs is the list of target pages to scrape. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=100"`

	// Options contains shared scrape options applied to all URLs.
	Options BatchOptions `json:"options"`

	// MaxConcurrency overrides the configured pool size.
	MaxConcurrency int `json:"max_concurrency,omitempty" binding:"omitempty,min=1,max=20"`

	// WebhookURL receives a batch.completed event when set.
	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// BatchOptions are the shared scrape settings applied to every URL in a batch.
type BatchOptions struct {
	Format      Format   `json:"format,omitempty" binding:"omitempty,oneof=markdown json html text"`
	ExtractMode string   `json:"extract_mode,omitempty" binding:"omitempty,oneof=readability raw"`
	Actions     []Action `json:"actions,omitempty"`
	Prompt      string   `json:"prompt,omitempty"`
	MaxAge      int      `json:"max_age,omitempty"`
	NoCache     bool     `json:"no_cache,omitempty"`
	Timeout     int      `json:"timeout,omitempty" binding:"omitempty,min=1,max=300"`
}

// Requests expands the batch into one ScrapeRequest per URL.
func (r *BatchRequest) Requests() []ScrapeRequest {
	reqs := make([]ScrapeRequest, 0, len(r.URLs))
	for _, u := range r.URLs {
		reqs = append(reqs, ScrapeRequest{
			URL:         u,
			Format:      r.Options.Format,
			ExtractMode: r.Options.ExtractMode,
			Actions:     r.Options.Actions,
			Prompt:      r.Options.Prompt,
			MaxAge:      r.Options.MaxAge,
			NoCache:     r.Options.NoCache,
			Timeout:     r.Options.Timeout,
		})
	}
	return reqs
}

// BatchItemResponse is one slot in the batch API response.
type BatchItemResponse struct {
	URL     string            `json:"url"`
	Success bool              `json:"success"`
	Data    *ExtractionResult `json:"data,omitempty"`
	Error   *ErrorDetail      `json:"error,omitempty"`
}

// BatchResponse is the response for POST /api/v1/batch/scrape.
type BatchResponse struct {
	ID             string              `json:"id"`
	Total          int                 `json:"total"`
	Succeeded      int                 `json:"succeeded"`
	Results        []BatchItemResponse `json:"results"`
	NearDuplicates []DuplicatePair     `json:"near_duplicates,omitempty"`
}

// NewBatchResponse converts a BatchResult into its API form.
func NewBatchResponse(res *BatchResult) *BatchResponse {
	resp := &BatchResponse{
		ID:             res.ID,
		Total:          len(res.Items),
		Succeeded:      res.Succeeded(),
		Results:        make([]BatchItemResponse, 0, len(res.Items)),
		NearDuplicates: res.NearDuplicates,
	}
	for _, item := range res.Items {
		r := BatchItemResponse{URL: item.URL, Success: !item.Failed(), Data: item.Result}
		if item.Failed() {
			r.Error = DetailOf(item.Err)
		}
		resp.Results = append(resp.Results, r)
	}
	return resp
}
