package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Sweeper is implemented by backends that keep expired rows on disk until
// they are deleted. Reads already skip expired rows.
type Sweeper interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// SweepExpired deletes expired entries when kv is a Sweeper. It returns 0
// for backends that expire entries themselves.
func SweepExpired(ctx context.Context, kv KV) (int, error) {
	sw, ok := kv.(Sweeper)
	if !ok {
		return 0, nil
	}
	n, err := sw.DeleteExpired(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "store: sweep expired")
	}
	if n > 0 {
		zap.L().Debug("store: swept expired entries", zap.Int("deleted", n))
	}
	return n, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done. It returns
// at once when interval <= 0 or kv is not a Sweeper.
func RunSweeper(ctx context.Context, kv KV, interval time.Duration) {
	if _, ok := kv.(Sweeper); !ok || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := SweepExpired(ctx, kv); err != nil {
				zap.L().Warn("store: sweep failed", zap.Error(err))
			}
		}
	}
}
