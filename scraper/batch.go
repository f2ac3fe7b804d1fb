package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/firescrape/models"
	"github.com/use-agent/firescrape/simhash"
)

// DefaultBatchConcurrency is the worker count when neither the job nor the
// scheduler sets one.
const DefaultBatchConcurrency = 3

// Scheduler runs batches of scrapes on a bounded worker pool. Each unique
// request occupies one slot for its whole session; a failing request never
// affects the others.
type Scheduler struct {
	session     *Session
	concurrency int
	threshold   int
}

// NewScheduler creates a scheduler. concurrency and nearDupThreshold fall
// back to package defaults when not positive.
func NewScheduler(s *Session, concurrency, nearDupThreshold int) *Scheduler {
	if concurrency < 1 {
		concurrency = DefaultBatchConcurrency
	}
	if nearDupThreshold <= 0 {
		nearDupThreshold = simhash.DefaultThreshold
	}
	return &Scheduler{session: s, concurrency: concurrency, threshold: nearDupThreshold}
}

// Concurrency is the default pool size.
func (b *Scheduler) Concurrency() int { return b.concurrency }

// Run scrapes every request of job and returns one item per request in
// submission order. Requests with the same fingerprint share a single
// session. Invalid requests fail their own slot without being scheduled.
func (b *Scheduler) Run(ctx context.Context, job models.BatchJob) *models.BatchResult {
	start := time.Now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	limit := job.MaxConcurrency
	if limit < 1 {
		limit = b.concurrency
	}

	items := make([]models.BatchItem, len(job.Requests))
	prepared := make([]models.ScrapeRequest, len(job.Requests))

	// owner maps a fingerprint to the first index submitting it; followers
	// lists the later indexes sharing that work.
	owner := make(map[string]int, len(job.Requests))
	followers := make(map[int][]int)
	var work []int

	for i := range job.Requests {
		req := job.Requests[i]
		items[i].URL = req.URL
		key, err := b.session.Prepare(&req)
		if err != nil {
			items[i].Err = err
			continue
		}
		prepared[i] = req
		items[i].Fingerprint = key

		if first, ok := owner[key]; ok {
			followers[first] = append(followers[first], i)
			continue
		}
		owner[key] = i
		work = append(work, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, i := range work {
		g.Go(func() error {
			res, err := b.scrapeOne(gctx, prepared[i])
			items[i].Result, items[i].Err = res, err
			return nil
		})
	}
	_ = g.Wait()

	for first, idxs := range followers {
		for _, i := range idxs {
			items[i].Result, items[i].Err = items[first].Result, items[first].Err
		}
	}

	result := &models.BatchResult{ID: job.ID, Items: items}
	result.NearDuplicates = b.nearDuplicates(items)

	slog.Info("batch completed",
		"id", job.ID,
		"total", len(items),
		"unique", len(work),
		"succeeded", result.Succeeded(),
		"concurrency", limit,
		"duration", time.Since(start),
	)
	return result
}

// scrapeOne runs one session, turning a panic into a failed slot.
func (b *Scheduler) scrapeOne(ctx context.Context, req models.ScrapeRequest) (res *models.ExtractionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scrape panicked", "url", req.URL, "panic", r, "stack", string(debug.Stack()))
			res = nil
			err = models.NewScrapeError(models.ErrCodeInternal, fmt.Sprintf("scrape panicked: %v", r), nil)
		}
	}()
	return b.session.Scrape(ctx, req)
}

// nearDuplicates compares the content hashes of distinct successful
// results. Slots that shared a session are exact duplicates and skipped.
func (b *Scheduler) nearDuplicates(items []models.BatchItem) []models.DuplicatePair {
	fps := make([]uint64, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.Failed() || item.Result == nil {
			continue
		}
		if _, dup := seen[item.Fingerprint]; dup {
			continue
		}
		seen[item.Fingerprint] = struct{}{}
		fps[i] = item.Result.ContentHash
	}

	var pairs []models.DuplicatePair
	for _, p := range simhash.NearDuplicates(fps, b.threshold) {
		pairs = append(pairs, models.DuplicatePair{A: p.A, B: p.B, Distance: p.Distance})
	}
	return pairs
}
