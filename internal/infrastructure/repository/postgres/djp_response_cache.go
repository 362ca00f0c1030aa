package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DJPResponseCache stores raw DJP validation responses keyed by QR URL.
type DJPResponseCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewDJPResponseCache keeps entries for ttl; a non-positive ttl never expires.
func NewDJPResponseCache(db *sql.DB, ttl time.Duration) *DJPResponseCache {
	return &DJPResponseCache{db: db, ttl: ttl, now: time.Now}
}

func (c *DJPResponseCache) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS djp_responses (
	qr_url TEXT PRIMARY KEY,
	body BYTEA NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_djp_responses_fetched_at ON djp_responses(fetched_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Get reports a miss for unknown or expired keys.
func (c *DJPResponseCache) Get(ctx context.Context, qrURL string) ([]byte, bool, error) {
	const query = `
SELECT body
FROM djp_responses
WHERE qr_url = $1 AND fetched_at >= $2
`
	var body []byte
	err := c.db.QueryRowContext(ctx, query, qrURL, c.cutoff()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select djp response: %w", err)
	}
	return body, true, nil
}

func (c *DJPResponseCache) Put(ctx context.Context, qrURL string, body []byte) error {
	const query = `
INSERT INTO djp_responses (qr_url, body, fetched_at)
VALUES ($1, $2, $3)
ON CONFLICT (qr_url) DO UPDATE SET body = EXCLUDED.body, fetched_at = EXCLUDED.fetched_at
`
	if _, err := c.db.ExecContext(ctx, query, qrURL, body, c.now().UTC()); err != nil {
		return fmt.Errorf("upsert djp response: %w", err)
	}
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (c *DJPResponseCache) Purge(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	res, err := c.db.ExecContext(ctx, `DELETE FROM djp_responses WHERE fetched_at < $1`, c.cutoff())
	if err != nil {
		return 0, fmt.Errorf("purge djp responses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return n, nil
}

func (c *DJPResponseCache) cutoff() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return c.now().UTC().Add(-c.ttl)
}
