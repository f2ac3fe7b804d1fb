package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/use-agent/firescrape/browser"
	"github.com/use-agent/firescrape/cache"
	"github.com/use-agent/firescrape/cleaner"
	"github.com/use-agent/firescrape/config"
	"github.com/use-agent/firescrape/llm"
	"github.com/use-agent/firescrape/models"
)

// Session runs single scrapes. Each call owns one page from acquisition to
// release; Session itself is safe for concurrent use.
type Session struct {
	browser   browser.Browser
	store     cache.Store   // nil disables caching
	cleaner   *cleaner.Cleaner
	extractor llm.Extractor // nil disables AI extraction
	executor  Executor
	cfg       config.ScraperConfig
	ttl       time.Duration
	now       func() time.Time

	active atomic.Int32
}

// NewSession wires a session. store and extractor may be nil.
func NewSession(b browser.Browser, store cache.Store, c *cleaner.Cleaner, ex llm.Extractor, cfg config.ScraperConfig, defaultTTL time.Duration) *Session {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.WaitForTimeout <= 0 {
		cfg.WaitForTimeout = 10 * time.Second
	}
	if defaultTTL <= 0 {
		defaultTTL = cache.DefaultTTL
	}
	return &Session{
		browser:   b,
		store:     store,
		cleaner:   c,
		extractor: ex,
		executor:  Executor{ActionTimeout: cfg.ActionTimeout},
		cfg:       cfg,
		ttl:       defaultTTL,
		now:       time.Now,
	}
}

// Active is the number of scrapes currently in progress.
func (s *Session) Active() int { return int(s.active.Load()) }

// Prepare applies defaults to req, validates it and returns its cache
// fingerprint. Invalid requests fail with INVALID_INPUT before any page
// is touched.
func (s *Session) Prepare(req *models.ScrapeRequest) (string, error) {
	req.Defaults(s.ttl, s.cfg.DefaultTimeout)
	if err := req.Validate(); err != nil {
		return "", err
	}
	return cache.Fingerprint(*req), nil
}

// Scrape runs one request through the pipeline:
//
//  1. Cache lookup        – a live entry is returned without touching the browser
//  2. Acquire page        – released on every exit path
//  3. Navigate            – transport failures are NAVIGATION_FAILED
//  4. wait_for            – a miss is recorded as a warning
//  5. Actions             – an aborted sequence is a warning, extraction still runs
//  6. Extract             – readability, markdown, plain text
//  7. AI extraction       – failure keeps the content and adds a warning
//  8. Cache write         – only for results without warnings
//
// Cache failures are logged and never fail the scrape.
func (s *Session) Scrape(ctx context.Context, req models.ScrapeRequest) (*models.ExtractionResult, error) {
	key, err := s.Prepare(&req)
	if err != nil {
		return nil, err
	}

	s.active.Add(1)
	defer s.active.Add(-1)

	// ── 1. Cache lookup ─────────────────────────────────────────────
	if s.store != nil && !req.NoCache {
		hit, ok, err := s.store.Get(ctx, key)
		switch {
		case err != nil:
			slog.Warn("cache read failed, scraping anyway", "url", req.URL,
				"error", models.NewScrapeError(models.ErrCodeCacheIO, "cache read failed", err))
		case ok:
			res := *hit
			res.FromCache = true
			return &res, nil
		}
	}

	timeout := req.Deadline()
	if s.cfg.MaxTimeout > 0 && timeout > s.cfg.MaxTimeout {
		timeout = s.cfg.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := s.run(ctx, req)
	if err != nil {
		return nil, err
	}

	// ── 8. Cache write ──────────────────────────────────────────────
	if s.store != nil && !req.NoCache && !res.Partial() {
		if err := s.store.Put(context.WithoutCancel(ctx), key, res, req.TTL()); err != nil {
			slog.Warn("cache write failed", "url", req.URL,
				"error", models.NewScrapeError(models.ErrCodeCacheIO, "cache write failed", err))
		}
	}
	return res, nil
}

func (s *Session) run(ctx context.Context, req models.ScrapeRequest) (*models.ExtractionResult, error) {
	// ── 2. Acquire page ─────────────────────────────────────────────
	page, err := s.browser.NewPage(ctx, browser.PageOptions{Headers: req.Headers})
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.NewScrapeError(models.ErrCodeTimeout, "timed out waiting for a browser page", err)
		}
		return nil, models.NewScrapeError(models.ErrCodeBrowserUnavailable, "failed to acquire browser page", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Warn("failed to release page", "url", req.URL, "error", err)
		}
	}()

	// ── 3. Navigate ─────────────────────────────────────────────────
	if err := page.Navigate(ctx, req.URL); err != nil {
		return nil, categorizeError(ctx, err, "navigation to target URL failed")
	}

	var warnings []models.ErrorDetail

	// ── 4. wait_for ─────────────────────────────────────────────────
	if req.WaitFor != "" {
		waitCtx, waitCancel := context.WithTimeout(ctx, s.cfg.WaitForTimeout)
		err := page.WaitFor(waitCtx, req.WaitFor)
		waitCancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, categorizeError(ctx, err, "timed out waiting for selector")
			}
			warnings = append(warnings, models.ErrorDetail{
				Code:    models.ErrCodeElementNotFound,
				Message: "wait_for selector " + req.WaitFor + " never appeared",
			})
		}
	}

	// ── 5. Actions ──────────────────────────────────────────────────
	actionWarnings, actionErr := s.executor.Run(ctx, page, req.Actions)
	warnings = append(warnings, actionWarnings...)
	if actionErr != nil {
		if models.HasCode(actionErr, models.ErrCodeTimeout) {
			return nil, actionErr
		}
		slog.Debug("action sequence aborted, extracting current page", "url", req.URL, "error", actionErr)
		warnings = append(warnings, *models.DetailOf(actionErr))
	}

	// ── 6. Extract ──────────────────────────────────────────────────
	rawHTML, err := page.Content(ctx)
	if err != nil {
		if actionErr != nil && ctx.Err() == nil {
			return nil, actionErr
		}
		return nil, categorizeError(ctx, err, "failed to read page content")
	}

	ext, err := s.cleaner.Extract(rawHTML, req.URL, cleaner.ExtractOptions{
		Mode:            req.ExtractMode,
		IncludeSelector: req.IncludeSelector,
	})
	if err != nil {
		if actionErr != nil {
			return nil, actionErr
		}
		return nil, err
	}

	res := &models.ExtractionResult{
		SourceURL:   req.URL,
		Title:       ext.Title,
		Markdown:    ext.Markdown,
		Text:        ext.Text,
		Metadata:    ext.Metadata,
		Links:       ext.Links,
		ContentHash: ext.ContentHash,
		Tokens:      ext.Tokens,
		FetchedAt:   s.now().UTC(),
	}
	res.Metadata.StatusCode = page.StatusCode()
	if req.Format == models.FormatHTML {
		res.HTML = rawHTML
	}

	// ── 7. AI extraction ────────────────────────────────────────────
	if req.Prompt != "" {
		structured, err := s.structured(ctx, req, res)
		if err != nil {
			slog.Warn("AI extraction failed, returning content only", "url", req.URL, "error", err)
			warnings = append(warnings, *models.DetailOf(err))
		} else {
			res.Structured = structured
		}
	}

	res.Warnings = warnings
	return res, nil
}

func (s *Session) structured(ctx context.Context, req models.ScrapeRequest, res *models.ExtractionResult) (map[string]any, error) {
	if s.extractor == nil {
		return nil, models.NewScrapeError(models.ErrCodeAIExtraction, "no LLM provider configured", nil)
	}
	out, err := s.extractor.Extract(ctx, llm.Input{
		URL:     req.URL,
		Title:   res.Title,
		Content: res.Text,
		Prompt:  req.Prompt,
	})
	if err != nil {
		if models.HasCode(err, models.ErrCodeAIExtraction) {
			return nil, err
		}
		return nil, models.NewScrapeError(models.ErrCodeAIExtraction, "AI extraction failed", err)
	}
	return out, nil
}

// categorizeError maps page errors onto the error taxonomy. An expired
// session deadline always wins over the underlying cause.
func categorizeError(ctx context.Context, err error, msg string) *models.ScrapeError {
	switch {
	case ctx.Err() != nil, errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, "scrape deadline exceeded: "+msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
