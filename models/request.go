package models

import (
	"fmt"
	"net/url"
	"time"
)

// Format selects which field of the result a caller consumes.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
)

// Extraction modes.
const (
	// ExtractReadability isolates the main content before conversion.
	ExtractReadability = "readability"
	// ExtractRaw converts the full rendered HTML.
	ExtractRaw = "raw"
)

// ScrapeRequest is one unit of work, also the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the target page to scrape. Required.
	URL string `json:"url" binding:"required,url"`

	// Format selects the primary output. Default: "markdown".
	Format Format `json:"format,omitempty" binding:"omitempty,oneof=markdown json html text"`

	// Actions are replayed in order after navigation.
	Actions []Action `json:"actions,omitempty"`

	// Prompt enables AI structured extraction over the page text.
	Prompt string `json:"prompt,omitempty"`

	// MaxAge is the cache ttl in seconds for the result. 0 uses the
	// configured default.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	// NoCache skips both cache lookup and cache write.
	NoCache bool `json:"no_cache,omitempty"`

	// ExtractMode is "readability" (default) or "raw".
	ExtractMode string `json:"extract_mode,omitempty" binding:"omitempty,oneof=readability raw"`

	// IncludeSelector narrows extraction to the matched elements.
	IncludeSelector string `json:"include_selector,omitempty"`

	// WaitFor is a CSS selector awaited after navigation, before actions.
	WaitFor string `json:"wait_for,omitempty"`

	// Timeout is the overall session deadline in seconds. Default: 30.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=300"`

	// Headers are sent with the navigation request.
	Headers map[string]string `json:"headers,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults(defaultTTL, defaultTimeout time.Duration) {
	if r.Format == "" {
		r.Format = FormatMarkdown
	}
	if r.ExtractMode == "" {
		r.ExtractMode = ExtractReadability
	}
	if r.MaxAge == 0 {
		r.MaxAge = int(defaultTTL / time.Second)
	}
	if r.Timeout == 0 {
		r.Timeout = int(defaultTimeout / time.Second)
	}
}

// Validate rejects requests that cannot be executed.
func (r *ScrapeRequest) Validate() error {
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf("invalid url %q", r.URL), err)
	}

	switch r.Format {
	case "", FormatMarkdown, FormatHTML, FormatText:
	case FormatJSON:
		if r.Prompt == "" {
			return NewScrapeError(ErrCodeInvalidInput, "json format requires a prompt", nil)
		}
	default:
		return NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf("unknown format %q", r.Format), nil)
	}

	switch r.ExtractMode {
	case "", ExtractReadability, ExtractRaw:
	default:
		return NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf("unknown extract mode %q", r.ExtractMode), nil)
	}

	if r.MaxAge < 0 || r.Timeout < 0 {
		return NewScrapeError(ErrCodeInvalidInput, "max_age and timeout must not be negative", nil)
	}

	return ValidateActions(r.Actions)
}

// TTL returns the cache ttl of the request.
func (r *ScrapeRequest) TTL() time.Duration {
	return time.Duration(r.MaxAge) * time.Second
}

// Deadline returns the overall session timeout of the request.
func (r *ScrapeRequest) Deadline() time.Duration {
	return time.Duration(r.Timeout) * time.Second
}
