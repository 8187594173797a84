// Package store persists canonical records, forwarding pointers, candidates,
// scores and merge history in a key-value store with time-to-live.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orgmatch/internal/config"
	"github.com/sells-group/orgmatch/internal/db"
)

// KV is a key-value store with per-entry expiry. A ttl <= 0 never expires.
// Get returns nil, nil for missing or expired keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetMany(ctx context.Context, entries []Entry) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Entry is one key-value pair for SetMany.
type Entry struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

// Open creates the KV backend named by cfg.Driver and runs its migration.
func Open(ctx context.Context, cfg config.StoreConfig, cache config.CacheConfig) (KV, error) {
	switch cfg.Driver {
	case "", "memory":
		cleanup := time.Duration(cache.CleanupMinutes) * time.Minute
		return NewMemory(cleanup), nil
	case "sqlite":
		s, err := NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	case "postgres":
		pool, err := db.Open(ctx, cfg.DatabaseURL, cfg.MaxConns, cfg.MinConns)
		if err != nil {
			return nil, eris.Wrap(err, "store: open postgres")
		}
		s := NewPostgres(pool)
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
