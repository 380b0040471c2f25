// Package compare ranks equivalent products (same generic category label,
// different store or brand) by current price.
package compare

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/stats"
	"pricewatch/internal/storage"
)

// ProductSource supplies the comparison set for a label.
type ProductSource interface {
	ListActiveByCategory(ctx context.Context, category string) ([]storage.Product, error)
}

// HistorySource supplies the series for the optional window mean.
type HistorySource interface {
	ListObservationsSince(ctx context.Context, productID int64, since time.Time) ([]storage.PriceObservation, error)
}

// Entry is one ranked product.
type Entry struct {
	Product      storage.Product
	CurrentPrice decimal.Decimal
	Mean30d      *decimal.Decimal
}

// Result is the ranked comparison for one category label. PotentialSavings
// is the spread between the most expensive and the cheapest entry; zero when
// the category has at most one member.
type Result struct {
	Category         string
	Entries          []Entry
	PotentialSavings decimal.Decimal
}

// Comparator ranks active products sharing an exact category label.
type Comparator struct {
	products ProductSource
	history  HistorySource
	engine   *stats.Engine
	logger   zerolog.Logger
	now      func() time.Time
}

// New constructs a Comparator. The history source may be nil, in which case
// entries carry no window mean.
func New(products ProductSource, history HistorySource, engine *stats.Engine, logger zerolog.Logger) *Comparator {
	if engine == nil {
		engine = stats.NewEngine()
	}
	return &Comparator{
		products: products,
		history:  history,
		engine:   engine,
		logger:   logger.With().Str("component", "comparator").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Compare returns active products with the exact label, ranked ascending by
// current price with ties broken by product id. An unknown label yields an
// empty result, not an error.
func (c *Comparator) Compare(ctx context.Context, label string) (Result, error) {
	result := Result{Category: label, PotentialSavings: decimal.Zero}

	products, err := c.products.ListActiveByCategory(ctx, label)
	if err != nil {
		return Result{}, err
	}

	now := c.now()
	for _, p := range products {
		if p.CurrentPrice == nil {
			continue
		}
		entry := Entry{Product: p, CurrentPrice: *p.CurrentPrice}

		if c.history != nil {
			series, histErr := c.history.ListObservationsSince(ctx, p.ID, now.Add(-stats.Window30d.Duration()))
			if histErr != nil {
				c.logger.Warn().Err(histErr).Int64("product_id", p.ID).Msg("skipping window mean")
			} else if summary := c.engine.Summarize(p.ID, series, stats.Window30d, now); summary.HasMean() {
				mean := summary.Mean
				entry.Mean30d = &mean
			}
		}

		result.Entries = append(result.Entries, entry)
	}

	sort.SliceStable(result.Entries, func(i, j int) bool {
		cmp := result.Entries[i].CurrentPrice.Cmp(result.Entries[j].CurrentPrice)
		if cmp != 0 {
			return cmp < 0
		}
		return result.Entries[i].Product.ID < result.Entries[j].Product.ID
	})

	if len(result.Entries) > 1 {
		cheapest := result.Entries[0].CurrentPrice
		mostExpensive := result.Entries[len(result.Entries)-1].CurrentPrice
		result.PotentialSavings = mostExpensive.Sub(cheapest)
	}

	return result, nil
}
