package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/orgmatch/internal/db"
)

const kvTable = "orgmatch_kv"

// PostgresKV implements KV on a Postgres table.
type PostgresKV struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgres wraps an open pool.
func NewPostgres(pool db.Pool) *PostgresKV {
	return &PostgresKV{pool: pool, now: time.Now}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS orgmatch_kv (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_orgmatch_kv_expires_at ON orgmatch_kv (expires_at) WHERE expires_at IS NOT NULL;
`

// Migrate creates the kv table.
func (p *PostgresKV) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool.
func (p *PostgresKV) Close() error {
	p.pool.Close()
	return nil
}

// Get returns the live value for key.
func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM orgmatch_kv WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s", key)
	}
	return value, nil
}

// Set upserts key.
func (p *PostgresKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO orgmatch_kv (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, p.expiresAt(ttl),
	)
	return eris.Wrapf(err, "postgres: set %s", key)
}

// SetMany bulk-upserts entries through a COPY-staged temp table.
func (p *PostgresKV) SetMany(ctx context.Context, entries []Entry) error {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.Key, e.Value, p.expiresAt(e.TTL)}
	}
	_, err := db.BulkUpsert(ctx, p.pool, db.UpsertConfig{
		Table:        kvTable,
		Columns:      []string{"key", "value", "expires_at"},
		ConflictKeys: []string{"key"},
	}, rows)
	return eris.Wrap(err, "postgres: set many")
}

// Delete removes key.
func (p *PostgresKV) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM orgmatch_kv WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: delete %s", key)
}

// DeleteExpired removes expired entries and returns how many were dropped.
func (p *PostgresKV) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM orgmatch_kv WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired")
	}
	return int(tag.RowsAffected()), nil
}

func (p *PostgresKV) expiresAt(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := p.now().UTC().Add(ttl)
	return &t
}
