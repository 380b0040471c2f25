package stats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pricewatch/internal/storage"
)

func seriesFromPrices(now time.Time, prices ...string) []storage.PriceObservation {
	series := make([]storage.PriceObservation, 0, len(prices))
	for i, p := range prices {
		series = append(series, storage.PriceObservation{
			ID:         int64(i + 1),
			ProductID:  1,
			Price:      decimal.RequireFromString(p),
			RecordedAt: now.Add(-time.Duration(len(prices)-i) * 24 * time.Hour),
		})
	}
	return series
}

func TestSummarizeEmptySeries(t *testing.T) {
	now := time.Now().UTC()
	summary := Summarize(nil, Window30d, now)

	if summary.Count != 0 {
		t.Fatalf("expected count 0, got %d", summary.Count)
	}
	if summary.HasMean() || summary.HasStdDev() {
		t.Fatal("empty series must report no mean and no stddev")
	}
}

func TestSummarizeSingleObservation(t *testing.T) {
	now := time.Now().UTC()
	series := seriesFromPrices(now, "49.90")

	summary := Summarize(series, Window7d, now)

	if summary.Count != 1 {
		t.Fatalf("expected count 1, got %d", summary.Count)
	}
	if !summary.HasMean() {
		t.Fatal("single observation must define the mean")
	}
	if summary.HasStdDev() {
		t.Fatal("stddev requires at least two observations")
	}
	if !summary.Mean.Equal(decimal.RequireFromString("49.90")) {
		t.Fatalf("mean should equal the single price, got %s", summary.Mean)
	}
}

func TestSummarizeSampleStdDev(t *testing.T) {
	now := time.Now().UTC()
	series := seriesFromPrices(now, "10.00", "9.00", "8.00", "11.00")

	summary := Summarize(series, Window30d, now)

	if summary.Count != 4 {
		t.Fatalf("expected count 4, got %d", summary.Count)
	}
	if !summary.Mean.Equal(decimal.RequireFromString("9.5")) {
		t.Fatalf("expected mean 9.5, got %s", summary.Mean)
	}

	// sample stddev of [10, 9, 8, 11] is sqrt(5/3) ~= 1.2910
	expected := decimal.RequireFromString("1.2910")
	if summary.StdDev.Sub(expected).Abs().GreaterThan(decimal.RequireFromString("0.0001")) {
		t.Fatalf("expected stddev ~1.2910, got %s", summary.StdDev)
	}
	if !summary.Min.Equal(decimal.RequireFromString("8.00")) {
		t.Fatalf("expected min 8.00, got %s", summary.Min)
	}
	if !summary.Max.Equal(decimal.RequireFromString("11.00")) {
		t.Fatalf("expected max 11.00, got %s", summary.Max)
	}
}

func TestSummarizeWindowCutoff(t *testing.T) {
	now := time.Now().UTC()
	inside := storage.PriceObservation{Price: decimal.RequireFromString("5.00"), RecordedAt: now.Add(-2 * 24 * time.Hour)}
	outside := storage.PriceObservation{Price: decimal.RequireFromString("100.00"), RecordedAt: now.Add(-40 * 24 * time.Hour)}

	summary := Summarize([]storage.PriceObservation{outside, inside}, Window7d, now)

	if summary.Count != 1 {
		t.Fatalf("observation older than the window must be excluded, count %d", summary.Count)
	}
	if !summary.Mean.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("expected mean 5.00, got %s", summary.Mean)
	}

	// Windows are independent: the 90d window sees both observations.
	wide := Summarize([]storage.PriceObservation{outside, inside}, Window90d, now)
	if wide.Count != 2 {
		t.Fatalf("90d window should include both observations, count %d", wide.Count)
	}
}

func TestEngineCacheInvalidatesOnNewObservation(t *testing.T) {
	now := time.Now().UTC()
	engine := NewEngine()

	series := seriesFromPrices(now, "10.00", "9.00")
	first := engine.Summarize(1, series, Window30d, now)
	if first.Count != 2 {
		t.Fatalf("expected count 2, got %d", first.Count)
	}

	// Same tail: served from cache with identical values.
	again := engine.Summarize(1, series, Window30d, now)
	if !again.Mean.Equal(first.Mean) || again.Count != first.Count {
		t.Fatal("cached summary should match the computed one")
	}

	// Appending an observation changes the tail and must recompute.
	extended := append(series, storage.PriceObservation{
		ID: 3, ProductID: 1,
		Price:      decimal.RequireFromString("6.00"),
		RecordedAt: now,
	})
	updated := engine.Summarize(1, extended, Window30d, now)
	if updated.Count != 3 {
		t.Fatalf("expected recomputed count 3, got %d", updated.Count)
	}
	if updated.Mean.Equal(first.Mean) {
		t.Fatal("mean should change after the new observation")
	}
}

func TestWindowString(t *testing.T) {
	if WindowNone.String() != "none" {
		t.Fatalf("unexpected window label %q", WindowNone.String())
	}
	if Window30d.String() != "30d" {
		t.Fatalf("unexpected window label %q", Window30d.String())
	}
}
