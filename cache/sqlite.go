package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/use-agent/firescrape/models"
)

// SQLiteStore implements Store using modernc.org/sqlite. Entries survive
// process restarts.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) { s.now = now }
}

// NewSQLite opens a SQLite database at path, configures WAL mode and runs
// the schema migration. The parent directory is created if missing.
func NewSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: create dir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scrape_cache (
	key        TEXT PRIMARY KEY,
	source_url TEXT NOT NULL,
	value      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	ttl_ms     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scrape_cache_source_url ON scrape_cache(source_url);
`

// Migrate creates the cache table if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the stored result for key. Rows whose created_at + ttl is not
// after now are reported as absent but left in place.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*models.ExtractionResult, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value, created_at, ttl_ms FROM scrape_cache WHERE key = ?`,
		key,
	)

	var (
		value     string
		createdAt int64
		ttlMs     int64
	)
	err := row.Scan(&value, &createdAt, &ttlMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get cached result")
	}

	if s.now().UnixMilli()-createdAt >= ttlMs {
		return nil, false, nil
	}

	var res models.ExtractionResult
	if err := json.Unmarshal([]byte(value), &res); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: unmarshal cached result")
	}
	return &res, true, nil
}

// Put upserts the result for key, replacing any previous entry.
func (s *SQLiteStore) Put(ctx context.Context, key string, res *models.ExtractionResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	value, err := json.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scrape_cache (key, source_url, value, created_at, ttl_ms) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			source_url = excluded.source_url,
			value      = excluded.value,
			created_at = excluded.created_at,
			ttl_ms     = excluded.ttl_ms`,
		key, res.SourceURL, string(value), s.now().UnixMilli(), ttlMillis(ttl),
	)
	return eris.Wrap(err, "sqlite: put cached result")
}

// ttlMillis rounds ttl up to whole milliseconds so a positive ttl never
// stores as zero.
func ttlMillis(ttl time.Duration) int64 {
	return int64((ttl + time.Millisecond - 1) / time.Millisecond)
}

// Prune deletes expired rows and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scrape_cache WHERE created_at + ttl_ms <= ?`,
		s.now().UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune expired results")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// Count returns the number of stored rows, expired or not.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scrape_cache`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count")
}
