package sqlite

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/tickerpulse/pkg/metrics"
	"github.com/pario-ai/tickerpulse/pkg/models"
)

// Cache is an exact-match prompt cache backed by SQLite. Entries are keyed by
// prompt only: any model in the pool may answer, and the one that did is kept
// alongside the answer.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS prompt_cache (
	prompt_hash TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	response BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL
);
`

// New creates a Cache with the given database path and default TTL.
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

// HashPrompt computes a SHA-256 hash of the prompt text.
func HashPrompt(prompt string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(prompt)))
}

// Get retrieves a cached answer. Returns false if not found or expired.
func (c *Cache) Get(promptHash string) (models.CacheEntry, bool) {
	entry := models.CacheEntry{PromptHash: promptHash}
	var ttlSeconds int64

	err := c.db.QueryRow(
		`SELECT model, response, created_at, ttl_seconds FROM prompt_cache WHERE prompt_hash = ?`,
		promptHash,
	).Scan(&entry.Model, &entry.Response, &entry.CreatedAt, &ttlSeconds)

	if err != nil {
		c.miss()
		return models.CacheEntry{}, false
	}

	entry.TTL = time.Duration(ttlSeconds) * time.Second
	if time.Since(entry.CreatedAt) > entry.TTL {
		c.miss()
		return models.CacheEntry{}, false
	}

	c.hits.Add(1)
	metrics.CacheTotal.WithLabelValues("hit").Inc()
	return entry, true
}

func (c *Cache) miss() {
	c.misses.Add(1)
	metrics.CacheTotal.WithLabelValues("miss").Inc()
}

// Put stores the answer model gave for a prompt.
func (c *Cache) Put(promptHash, model string, response []byte) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO prompt_cache (prompt_hash, model, response, created_at, ttl_seconds)
		 VALUES (?, ?, ?, ?, ?)`,
		promptHash, model, response, time.Now().UTC(), int64(c.ttl.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRow(`SELECT COUNT(*) FROM prompt_cache`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries are removed.
func (c *Cache) Clear(expiredOnly bool) error {
	var query string
	if expiredOnly {
		query = `DELETE FROM prompt_cache WHERE (julianday('now') - julianday(created_at)) * 86400 > ttl_seconds`
	} else {
		query = `DELETE FROM prompt_cache`
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
