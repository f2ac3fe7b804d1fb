package scraper

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/firescrape/browser"
	"github.com/use-agent/firescrape/cache"
	"github.com/use-agent/firescrape/cleaner"
	"github.com/use-agent/firescrape/config"
	"github.com/use-agent/firescrape/llm"
	"github.com/use-agent/firescrape/models"
)

// Service bundles a session and a batch scheduler over one browser and
// cache. It is what the CLI, the HTTP API and the MCP server drive.
type Service struct {
	browser   browser.Browser
	store     cache.Store
	session   *Session
	scheduler *Scheduler
	cacheName string
}

// NewService builds the pipeline described by cfg. A cache that cannot be
// opened degrades to the in-memory backend.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	extractor, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}

	var b browser.Browser
	switch cfg.Browser.Engine {
	case "http":
		b = browser.NewHTTP(cfg.Browser)
	default:
		b = browser.NewRod(cfg.Browser)
	}

	store, cacheName := openStore(ctx, cfg.Cache)
	c := cleaner.NewCleaner(cleaner.Options{
		MinReadabilityLength: cfg.Cleaner.MinReadabilityLength,
		MinFragmentLength:    cfg.Cleaner.MinFragmentLength,
	})

	return New(b, store, c, extractor, cfg, cacheName), nil
}

// New assembles a Service from already built parts. store and extractor
// may be nil.
func New(b browser.Browser, store cache.Store, c *cleaner.Cleaner, ex llm.Extractor, cfg *config.Config, cacheName string) *Service {
	session := NewSession(b, store, c, ex, cfg.Scraper, cfg.Cache.DefaultTTL)
	return &Service{
		browser:   b,
		store:     store,
		session:   session,
		scheduler: NewScheduler(session, cfg.Batch.MaxConcurrency, cfg.Batch.NearDuplicateThreshold),
		cacheName: cacheName,
	}
}

func openStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, string) {
	switch cfg.Backend {
	case "none":
		return nil, "none"
	case "memory":
		return cache.NewMemory(cfg.MaxEntries, cfg.SweepInterval), "memory"
	}

	store, err := cache.NewSQLite(ctx, cfg.Path)
	if err != nil {
		slog.Warn("cache unavailable, falling back to memory",
			"path", cfg.Path,
			"error", models.NewScrapeError(models.ErrCodeCacheIO, "open sqlite cache", err))
		return cache.NewMemory(cfg.MaxEntries, cfg.SweepInterval), "memory"
	}
	return store, "sqlite"
}

// Scrape runs one request.
func (s *Service) Scrape(ctx context.Context, req models.ScrapeRequest) (*models.ExtractionResult, error) {
	return s.session.Scrape(ctx, req)
}

// Batch runs a batch job.
func (s *Service) Batch(ctx context.Context, job models.BatchJob) *models.BatchResult {
	return s.scheduler.Run(ctx, job)
}

// Engine names the browser backend.
func (s *Service) Engine() string { return s.browser.Name() }

// CacheBackend names the cache backend.
func (s *Service) CacheBackend() string { return s.cacheName }

// Active is the number of scrapes in progress.
func (s *Service) Active() int { return s.session.Active() }

// Close releases the browser and the cache.
func (s *Service) Close() error {
	var errs []error
	if err := s.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
