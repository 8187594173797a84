package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/orgmatch/internal/config"
)

// Guard wraps calls to one external service with a rate limiter, a circuit
// breaker and retries. Safe for concurrent use.
type Guard struct {
	name    string
	limiter *rate.Limiter
	breaker *Breaker
	backoff Backoff
	timeout time.Duration
}

// NewGuard builds a guard from resilience settings. A non-positive rate
// disables limiting.
func NewGuard(name string, cfg config.ResilienceConfig) *Guard {
	b := DefaultBackoff()
	if cfg.MaxAttempts > 0 {
		b.Attempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMs > 0 {
		b.Initial = time.Duration(cfg.InitialBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoffMs > 0 {
		b.Max = time.Duration(cfg.MaxBackoffMs) * time.Millisecond
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &Guard{
		name:    name,
		limiter: rate.NewLimiter(limit, 1),
		breaker: NewBreaker(name, cfg.FailureThreshold, time.Duration(cfg.ResetTimeoutSecs)*time.Second),
		backoff: b,
		timeout: 30 * time.Second,
	}
}

// WithTimeout sets the per-attempt deadline.
func (g *Guard) WithTimeout(d time.Duration) *Guard {
	g.timeout = d
	return g
}

// Breaker exposes the guard's circuit breaker.
func (g *Guard) Breaker() *Breaker {
	return g.breaker
}

// Call runs fn through the guard.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	return Retry(ctx, g.backoff, g.name, func(ctx context.Context) (T, error) {
		var zero T
		if err := g.breaker.Allow(); err != nil {
			return zero, eris.Wrapf(err, "%s", g.name)
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, eris.Wrapf(err, "%s: rate limit wait", g.name)
		}

		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		val, err := fn(callCtx)
		g.breaker.Record(err)
		return val, err
	})
}
