package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/firescrape/models"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func sampleResult() *models.ExtractionResult {
	return &models.ExtractionResult{
		SourceURL:  "https://example.com/",
		Title:      "Example Domain",
		Markdown:   "# Example Domain\n\nThis domain is for use in examples.",
		Text:       "Example Domain\n\nThis domain is for use in examples.",
		HTML:       "<html><title>Example Domain</title></html>",
		Structured: map[string]any{"title": "Example Domain"},
		Metadata:   models.Metadata{Language: "en", StatusCode: 200},
		Links:      []models.Link{{Href: "https://www.iana.org/domains/example", Text: "More information"}},
		FetchedAt:  time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC),
	}
}

func newTestSQLiteStore(t *testing.T, clock *fakeClock) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewSQLite(context.Background(), path, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestMemoryStore(t *testing.T, clock *fakeClock) *Memory {
	t.Helper()
	m := NewMemory(10, 0)
	m.now = clock.Now
	t.Cleanup(func() { m.Close() })
	return m
}

// storeFactories runs the shared contract against both implementations.
func storeFactories() map[string]func(t *testing.T, clock *fakeClock) Store {
	return map[string]func(t *testing.T, clock *fakeClock) Store{
		"sqlite": func(t *testing.T, clock *fakeClock) Store { return newTestSQLiteStore(t, clock) },
		"memory": func(t *testing.T, clock *fakeClock) Store { return newTestMemoryStore(t, clock) },
	}
}

func TestStore_PutAndGet(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := factory(t, clock)

			want := sampleResult()
			require.NoError(t, s.Put(ctx, "k1", want, time.Hour))

			got, ok, err := s.Get(ctx, "k1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}
}

func TestStore_Missing(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t, newFakeClock())

			got, ok, err := s.Get(context.Background(), "nope")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestStore_Expired(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := factory(t, clock)

			require.NoError(t, s.Put(ctx, "k1", sampleResult(), time.Hour))

			clock.Advance(59 * time.Minute)
			_, ok, err := s.Get(ctx, "k1")
			require.NoError(t, err)
			assert.True(t, ok, "entry should still be valid before its ttl")

			clock.Advance(time.Minute)
			_, ok, err = s.Get(ctx, "k1")
			require.NoError(t, err)
			assert.False(t, ok, "entry at created_at + ttl must be absent")
		})
	}
}

func TestStore_OverwriteExpired(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := factory(t, clock)

			require.NoError(t, s.Put(ctx, "k1", sampleResult(), time.Minute))
			clock.Advance(2 * time.Minute)

			fresh := sampleResult()
			fresh.Title = "Refreshed"
			require.NoError(t, s.Put(ctx, "k1", fresh, time.Minute))

			got, ok, err := s.Get(ctx, "k1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "Refreshed", got.Title)
		})
	}
}

func TestStore_NonPositiveTTLIsNotStored(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t, newFakeClock())

			require.NoError(t, s.Put(ctx, "k1", sampleResult(), 0))
			_, ok, err := s.Get(ctx, "k1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	s, err := NewSQLite(ctx, path, WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k1", sampleResult(), time.Hour))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(ctx, path, WithClock(clock.Now))
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Example Domain", got.Title)
}

func TestSQLite_PruneKeepsLiveRows(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestSQLiteStore(t, clock)

	require.NoError(t, s.Put(ctx, "short", sampleResult(), time.Minute))
	require.NoError(t, s.Put(ctx, "long", sampleResult(), time.Hour))
	clock.Advance(5 * time.Minute)

	// Expired rows are still physically stored until pruned.
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, err := s.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_EvictsAtCapacity(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, 0)
	defer m.Close()

	require.NoError(t, m.Put(ctx, "a", sampleResult(), time.Hour))
	require.NoError(t, m.Put(ctx, "b", sampleResult(), time.Hour))
	require.NoError(t, m.Put(ctx, "c", sampleResult(), time.Hour))
	assert.Equal(t, 2, m.Len())

	// Overwriting an existing key never evicts.
	require.NoError(t, m.Put(ctx, "c", sampleResult(), time.Hour))
	assert.Equal(t, 2, m.Len())
}

func TestMemory_SweepRemovesExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := newTestMemoryStore(t, clock)

	require.NoError(t, m.Put(ctx, "a", sampleResult(), time.Minute))
	require.NoError(t, m.Put(ctx, "b", sampleResult(), time.Hour))
	clock.Advance(2 * time.Minute)

	m.sweep()
	assert.Equal(t, 1, m.Len())
}

func TestStore_SubMillisecondTTL(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := factory(t, clock)

			require.NoError(t, s.Put(ctx, "k1", sampleResult(), 500*time.Microsecond))

			_, ok, err := s.Get(ctx, "k1")
			require.NoError(t, err)
			assert.True(t, ok, "a positive ttl is readable right after put")

			clock.Advance(time.Millisecond)
			_, ok, err = s.Get(ctx, "k1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestTTLMillis(t *testing.T) {
	assert.Equal(t, int64(1), ttlMillis(time.Nanosecond))
	assert.Equal(t, int64(1), ttlMillis(time.Millisecond))
	assert.Equal(t, int64(2), ttlMillis(1500*time.Microsecond))
	assert.Equal(t, int64(3600000), ttlMillis(time.Hour))
}
