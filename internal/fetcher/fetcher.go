package fetcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Snapshot is one fetched product state. A failed fetch yields no snapshot;
// the caller records no observation for that cycle.
type Snapshot struct {
	Store     string
	SKU       string
	Title     string
	ImageURL  string
	Price     decimal.Decimal
	Available bool
	FetchedAt time.Time
}

// Fetcher retrieves the current snapshot for a product URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Snapshot, error)
}

// Throttled wraps a Fetcher with a token bucket so that outbound calls keep
// a minimum spacing. Storefront rate limits are the bottleneck of an update
// run, not the in-memory evaluation.
type Throttled struct {
	inner   Fetcher
	limiter *rate.Limiter
}

// Throttle builds a Throttled fetcher with one fetch per minDelay.
func Throttle(inner Fetcher, minDelay time.Duration) *Throttled {
	if minDelay <= 0 {
		return &Throttled{inner: inner, limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttled{inner: inner, limiter: rate.NewLimiter(rate.Every(minDelay), 1)}
}

// Fetch waits for the limiter, then delegates.
func (t *Throttled) Fetch(ctx context.Context, url string) (Snapshot, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return Snapshot{}, err
	}
	return t.inner.Fetch(ctx, url)
}

var _ Fetcher = (*Throttled)(nil)
