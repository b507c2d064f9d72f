// Package cache stores summarization results keyed by thread, invalidated by
// a content+instructions fingerprint, persisted in a local SQLite database.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mailbrief/internal/model"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Cache is the summary store. database/sql serializes access, so it is safe
// for concurrent probes and writes from dispatch workers.
type Cache struct {
	db   *sql.DB
	path string
	log  *zap.Logger
	now  func() time.Time
}

// Open opens (or creates) the cache database. A database that cannot be
// opened or migrated is treated as corrupt: it is deleted and recreated
// empty, because losing prior cache state is acceptable and propagating
// corruption into summaries is not.
func Open(dbPath string, log *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := openAndMigrate(dbPath)
	if err != nil {
		log.Warn("cache database unusable, starting empty",
			zap.String("path", dbPath), zap.Error(err))
		for _, suffix := range []string{"", "-wal", "-shm"} {
			os.Remove(dbPath + suffix)
		}
		db, err = openAndMigrate(dbPath)
		if err != nil {
			return nil, fmt.Errorf("recreate cache db: %w", err)
		}
	}

	return &Cache{db: db, path: dbPath, log: log, now: time.Now}, nil
}

func openAndMigrate(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL keeps concurrent reads cheap while one writer flushes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS summaries (
	thread_id    TEXT PRIMARY KEY,
	fingerprint  TEXT NOT NULL,
	instructions TEXT NOT NULL DEFAULT '',
	summary      TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// IsCached reports whether a summary exists for threadID whose stored
// fingerprint equals the fingerprint of the current messages+instructions.
// Store errors degrade to a miss.
func (c *Cache) IsCached(ctx context.Context, threadID string, messages []model.Message, instructions string) bool {
	var stored string
	err := c.db.QueryRowContext(ctx,
		"SELECT fingerprint FROM summaries WHERE thread_id = ?", threadID).Scan(&stored)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		c.log.Warn("cache lookup failed, treating as miss",
			zap.String("thread_id", threadID), zap.Error(err))
		return false
	}
	return stored == Fingerprint(messages, instructions)
}

// Get returns the cached summary for threadID, with ok=false when absent.
func (c *Cache) Get(ctx context.Context, threadID string) (model.Summary, bool, error) {
	var blob string
	err := c.db.QueryRowContext(ctx,
		"SELECT summary FROM summaries WHERE thread_id = ?", threadID).Scan(&blob)
	if err == sql.ErrNoRows {
		return model.Summary{}, false, nil
	}
	if err != nil {
		return model.Summary{}, false, err
	}
	var s model.Summary
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		return model.Summary{}, false, fmt.Errorf("decode cached summary: %w", err)
	}
	return s, true, nil
}

// Put stores the summary for threadID under the current fingerprint,
// overwriting any prior entry for that thread.
func (c *Cache) Put(ctx context.Context, threadID string, messages []model.Message, instructions string, summary model.Summary) error {
	blob, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO summaries (thread_id, fingerprint, instructions, summary, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			fingerprint  = excluded.fingerprint,
			instructions = excluded.instructions,
			summary      = excluded.summary,
			created_at   = excluded.created_at
	`, threadID, Fingerprint(messages, instructions), instructions, string(blob), c.now().Unix())
	return err
}

// EvictOlderThan removes entries created before now-maxAge and returns the
// removal count.
func (c *Cache) EvictOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := c.now().Add(-maxAge).Unix()
	res, err := c.db.ExecContext(ctx, "DELETE FROM summaries WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.log.Info("evicted old cache entries", zap.Int64("count", n))
	}
	return int(n), nil
}

// Clear removes all entries.
func (c *Cache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM summaries")
	return err
}

// Stats describes the cache for status display.
type Stats struct {
	Path      string
	Entries   int
	SizeBytes int64
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Path: c.path}
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM summaries").Scan(&st.Entries); err != nil {
		return st, err
	}
	if fi, err := os.Stat(c.path); err == nil {
		st.SizeBytes = fi.Size()
	}
	return st, nil
}
