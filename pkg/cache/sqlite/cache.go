package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/codegen/pkg/cache"
	"github.com/pario-ai/codegen/pkg/models"
	"github.com/rs/zerolog/log"
)

// Cache is an exact-match completion cache backed by SQLite.
// It survives restarts, unlike the in-memory store.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS completion_cache (
	prompt_hash TEXT NOT NULL,
	key_fingerprint TEXT NOT NULL,
	completion BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_ms INTEGER NOT NULL,
	PRIMARY KEY (prompt_hash, key_fingerprint)
);
`

// New creates a Cache with the given database path and TTL. A zero TTL keeps
// entries until cleared.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl}, nil
}

// Get retrieves a cached completion. Returns false if not found or expired.
func (c *Cache) Get(ctx context.Context, key cache.Key) (*models.Completion, bool) {
	var raw []byte
	var createdAt time.Time
	var ttlMs int64

	err := c.db.QueryRowContext(ctx,
		`SELECT completion, created_at, ttl_ms FROM completion_cache WHERE prompt_hash = ? AND key_fingerprint = ?`,
		key.PromptHash, key.Fingerprint,
	).Scan(&raw, &createdAt, &ttlMs)

	if err != nil {
		if err != sql.ErrNoRows {
			log.Warn().Err(err).Msg("cache lookup failed")
		}
		c.misses.Add(1)
		return nil, false
	}

	if ttlMs > 0 && time.Since(createdAt) > time.Duration(ttlMs)*time.Millisecond {
		c.misses.Add(1)
		return nil, false
	}

	var comp models.Completion
	if err := json.Unmarshal(raw, &comp); err != nil {
		log.Warn().Err(err).Msg("corrupt cache entry")
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return &comp, true
}

// Put stores a completion in the cache.
func (c *Cache) Put(ctx context.Context, key cache.Key, comp *models.Completion) error {
	v := *comp
	v.Cached = false
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO completion_cache (prompt_hash, key_fingerprint, completion, created_at, ttl_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		key.PromptHash, key.Fingerprint, raw, time.Now().UTC(), ttlMillis(c.ttl),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRow(`SELECT COUNT(*) FROM completion_cache`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Backend: "sqlite",
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries are removed.
func (c *Cache) Clear(expiredOnly bool) error {
	var query string
	if expiredOnly {
		query = `DELETE FROM completion_cache WHERE ttl_ms > 0 AND (julianday('now') - julianday(created_at)) * 86400000 > ttl_ms`
	} else {
		query = `DELETE FROM completion_cache`
	}
	_, err := c.db.Exec(query)
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// ttlMillis rounds ttl up to whole milliseconds. A stored zero means no
// expiry, so a positive TTL never rounds down to it.
func ttlMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64((ttl + time.Millisecond - 1) / time.Millisecond)
}
