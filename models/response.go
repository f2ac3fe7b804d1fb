package models

import "time"

// ExtractionResult is the outcome of one successful scrape session.
// It is not modified after creation; cache hits return a copy.
type ExtractionResult struct {
	// SourceURL is the requested URL.
	SourceURL string `json:"source_url"`

	// Title is the page title, if one was found.
	Title string `json:"title,omitempty"`

	// Markdown is the cleaned main content as Markdown.
	Markdown string `json:"markdown"`

	// Text is Markdown with all syntax stripped.
	Text string `json:"text"`

	// HTML is the raw source of the final page state.
	HTML string `json:"html"`

	// Structured holds the AI extraction output when a prompt was given.
	Structured map[string]any `json:"structured,omitempty"`

	// Metadata contains extracted page metadata.
	Metadata Metadata `json:"metadata"`

	// Links are the absolute http(s) links found on the page.
	Links []Link `json:"links,omitempty"`

	// ContentHash is the SimHash fingerprint of Text.
	ContentHash uint64 `json:"content_hash,omitempty"`

	// Tokens provides token estimates before and after cleaning.
	Tokens TokenInfo `json:"tokens"`

	// FetchedAt is when the page content was captured.
	FetchedAt time.Time `json:"fetched_at"`

	// Warnings lists partial failures (best-effort actions, an aborted
	// action sequence, AI extraction) that did not discard the content.
	Warnings []ErrorDetail `json:"warnings,omitempty"`

	// FromCache is set on results served from the cache store.
	FromCache bool `json:"from_cache,omitempty"`
}

// Partial reports whether any step degraded the result.
func (r *ExtractionResult) Partial() bool {
	return len(r.Warnings) > 0
}

// Content returns the field selected by format.
func (r *ExtractionResult) Content(format Format) string {
	switch format {
	case FormatText:
		return r.Text
	case FormatHTML:
		return r.HTML
	default:
		return r.Markdown
	}
}

// Link represents a hyperlink extracted from the page.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// Metadata holds page-level information extracted during scraping.
type Metadata struct {
	Description string `json:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Author      string `json:"author,omitempty"`
	Language    string `json:"language,omitempty"`
	OGTitle     string `json:"og_title,omitempty"`
	OGImage     string `json:"og_image,omitempty"`
	StatusCode  int    `json:"status_code,omitempty"`
}

// TokenInfo provides before/after token estimates to show cleaning efficacy.
type TokenInfo struct {
	// OriginalEstimate is the estimated token count of the raw HTML.
	OriginalEstimate int `json:"original_estimate"`

	// CleanedEstimate is the estimated token count of the Markdown.
	CleanedEstimate int `json:"cleaned_estimate"`

	// SavingsPercent is the percentage of tokens removed (0-100).
	SavingsPercent float64 `json:"savings_percent"`
}

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	Success bool              `json:"success"`
	Data    *ExtractionResult `json:"data,omitempty"`
	Error   *ErrorDetail      `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Engine  string `json:"engine"`
	Cache   string `json:"cache"`
	Version string `json:"version"`
}
