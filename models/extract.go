package models

// ExtractRequest is the payload for POST /api/v1/extract.
// It wraps a scrape operation with AI structured data extraction.
type ExtractRequest struct {
	// URL is the target page to scrape. Required.
	URL string `json:"url" binding:"required,url"`

	// Prompt describes what to extract. Required.
	Prompt string `json:"prompt" binding:"required"`

	// Timeout is the max duration in seconds for the scrape operation.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=300"`
}

// ToScrapeRequest converts an ExtractRequest into a ScrapeRequest.
// Extraction reads the whole page and always fetches fresh content.
func (r *ExtractRequest) ToScrapeRequest() ScrapeRequest {
	return ScrapeRequest{
		URL:         r.URL,
		Format:      FormatJSON,
		Prompt:      r.Prompt,
		ExtractMode: ExtractRaw,
		NoCache:     true,
		Timeout:     r.Timeout,
	}
}

// ExtractResponse is the response for POST /api/v1/extract.
type ExtractResponse struct {
	Success bool           `json:"success"`
	URL     string         `json:"url"`
	Title   string         `json:"title,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}
