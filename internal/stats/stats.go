package stats

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pricewatch/internal/storage"
)

// Window is a trailing span in days over which statistics are computed.
// WindowNone marks rules that do not depend on a window.
type Window int

const (
	WindowNone Window = 0
	Window7d   Window = 7
	Window30d  Window = 30
	Window90d  Window = 90
	Window180d Window = 180
)

// Windows lists the configured statistics windows in ascending order.
var Windows = []Window{Window7d, Window30d, Window90d, Window180d}

// Duration converts the window to a time span.
func (w Window) Duration() time.Duration {
	return time.Duration(w) * 24 * time.Hour
}

func (w Window) String() string {
	if w == WindowNone {
		return "none"
	}
	return fmt.Sprintf("%dd", int(w))
}

// Summary holds windowed statistics over a price series. Count carries the
// number of observations inside the window; Mean is defined for count >= 1
// and StdDev for count >= 2. Callers must check HasMean/HasStdDev before
// using the values: a zero decimal is never a stand-in for "no data".
type Summary struct {
	Window Window
	Count  int
	Mean   decimal.Decimal
	StdDev decimal.Decimal
	Min    decimal.Decimal
	Max    decimal.Decimal
}

// HasMean reports whether the mean (and min/max) are defined.
func (s Summary) HasMean() bool {
	return s.Count >= 1
}

// HasStdDev reports whether the standard deviation is defined.
func (s Summary) HasStdDev() bool {
	return s.Count >= 2
}

// Summarize computes statistics over observations with
// recorded_at >= now - window. The standard deviation is the sample standard
// deviation (divide by n-1), applied consistently across all windows.
func Summarize(series []storage.PriceObservation, w Window, now time.Time) Summary {
	summary := Summary{Window: w}
	cutoff := now.Add(-w.Duration())

	sum := decimal.Zero
	for _, obs := range series {
		if obs.RecordedAt.Before(cutoff) {
			continue
		}
		if summary.Count == 0 {
			summary.Min = obs.Price
			summary.Max = obs.Price
		} else {
			if obs.Price.LessThan(summary.Min) {
				summary.Min = obs.Price
			}
			if obs.Price.GreaterThan(summary.Max) {
				summary.Max = obs.Price
			}
		}
		sum = sum.Add(obs.Price)
		summary.Count++
	}

	if summary.Count == 0 {
		return summary
	}

	n := decimal.NewFromInt(int64(summary.Count))
	summary.Mean = sum.Div(n)

	if summary.Count < 2 {
		return summary
	}

	sumSq := decimal.Zero
	for _, obs := range series {
		if obs.RecordedAt.Before(cutoff) {
			continue
		}
		diff := obs.Price.Sub(summary.Mean)
		sumSq = sumSq.Add(diff.Mul(diff))
	}

	variance := sumSq.Div(decimal.NewFromInt(int64(summary.Count - 1)))
	summary.StdDev = decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))

	return summary
}

type cacheKey struct {
	productID int64
	window    Window
	lastAt    int64
	length    int
}

// Engine computes windowed summaries with a per-(product, window,
// last-observation) cache. Any new observation for a product changes the
// last-observation timestamp and therefore misses the cache, which is the
// required invalidation behaviour.
type Engine struct {
	mu    sync.Mutex
	cache map[cacheKey]Summary
}

// NewEngine constructs an Engine with an empty cache.
func NewEngine() *Engine {
	return &Engine{cache: make(map[cacheKey]Summary)}
}

// Summarize returns the cached summary when the series tail is unchanged,
// computing and caching it otherwise.
func (e *Engine) Summarize(productID int64, series []storage.PriceObservation, w Window, now time.Time) Summary {
	key := cacheKey{productID: productID, window: w, length: len(series)}
	if len(series) > 0 {
		key.lastAt = series[len(series)-1].RecordedAt.UnixNano()
	}

	e.mu.Lock()
	if cached, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return cached
	}
	e.mu.Unlock()

	summary := Summarize(series, w, now)

	e.mu.Lock()
	e.cache[key] = summary
	e.mu.Unlock()

	return summary
}

// SummarizeAll computes summaries for every configured window.
func (e *Engine) SummarizeAll(productID int64, series []storage.PriceObservation, now time.Time) map[Window]Summary {
	summaries := make(map[Window]Summary, len(Windows))
	for _, w := range Windows {
		summaries[w] = e.Summarize(productID, series, w, now)
	}
	return summaries
}

// Invalidate drops cached summaries for a product, e.g. after a purge.
func (e *Engine) Invalidate(productID int64) {
	e.mu.Lock()
	for key := range e.cache {
		if key.productID == productID {
			delete(e.cache, key)
		}
	}
	e.mu.Unlock()
}
