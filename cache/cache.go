package cache

import (
	"context"
	"sync"
	"time"

	"github.com/use-agent/firescrape/models"
)

// DefaultTTL is how long a result stays valid when a request gives no ttl.
const DefaultTTL = 48 * time.Hour

// Store maps request fingerprints to previously computed results.
// An entry whose age reaches its ttl is reported as absent.
type Store interface {
	Get(ctx context.Context, key string) (*models.ExtractionResult, bool, error)
	Put(ctx context.Context, key string, res *models.ExtractionResult, ttl time.Duration) error
	Close() error
}

// entry holds a cached result with its creation timestamp and ttl.
type entry struct {
	result    *models.ExtractionResult
	createdAt time.Time
	ttl       time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Memory is an in-process Store. It is safe for concurrent use and does not
// survive restarts.
type Memory struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	now        func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemory creates a Memory store holding at most maxEntries results.
// A background goroutine evicts expired entries every sweep interval;
// a zero interval disables it.
func NewMemory(maxEntries int, sweep time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	c := &Memory{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	if sweep > 0 {
		go c.cleanupLoop(sweep)
	}
	return c
}

// Get retrieves a cached result if it exists and has not expired.
func (c *Memory) Get(_ context.Context, key string) (*models.ExtractionResult, bool, error) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || e.expired(c.now()) {
		return nil, false, nil
	}
	return e.result, true, nil
}

// Put stores a result. If the store is at capacity, a random entry is
// evicted to make room.
func (c *Memory) Put(_ context.Context, key string, res *models.ExtractionResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		result:    res,
		createdAt: c.now(),
		ttl:       ttl,
	}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the background sweep.
func (c *Memory) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *Memory) sweep() {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.store {
		if e.expired(now) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}

func (c *Memory) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}
