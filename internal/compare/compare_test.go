package compare

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/storage"
)

type fakeProductSource struct {
	byCategory map[string][]storage.Product
}

func (f *fakeProductSource) ListActiveByCategory(_ context.Context, category string) ([]storage.Product, error) {
	return f.byCategory[category], nil
}

func product(id int64, store string, price string) storage.Product {
	d := decimal.RequireFromString(price)
	return storage.Product{ID: id, Store: store, SKU: "sku", CurrentPrice: &d, IsActive: true}
}

func TestCompareRanksAscendingWithSavings(t *testing.T) {
	source := &fakeProductSource{byCategory: map[string][]storage.Product{
		"Leite UHT Integral": {
			product(3, "carrefour", "5.49"),
			product(1, "zaffari", "6.29"),
			product(4, "amazon", "4.99"),
			product(2, "zaffari", "5.29"),
		},
	}}
	comparator := New(source, nil, nil, zerolog.Nop())

	result, err := comparator.Compare(context.Background(), "Leite UHT Integral")
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}

	wantPrices := []string{"4.99", "5.29", "5.49", "6.29"}
	if len(result.Entries) != len(wantPrices) {
		t.Fatalf("expected %d entries, got %d", len(wantPrices), len(result.Entries))
	}
	for i, want := range wantPrices {
		if !result.Entries[i].CurrentPrice.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("entry %d: expected %s, got %s", i, want, result.Entries[i].CurrentPrice)
		}
	}

	if !result.PotentialSavings.Equal(decimal.RequireFromString("1.30")) {
		t.Fatalf("expected savings 1.30, got %s", result.PotentialSavings)
	}
}

func TestCompareTieBreaksByProductID(t *testing.T) {
	source := &fakeProductSource{byCategory: map[string][]storage.Product{
		"Arroz Branco": {
			product(9, "carrefour", "20.00"),
			product(2, "zaffari", "20.00"),
		},
	}}
	comparator := New(source, nil, nil, zerolog.Nop())

	result, err := comparator.Compare(context.Background(), "Arroz Branco")
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if result.Entries[0].Product.ID != 2 || result.Entries[1].Product.ID != 9 {
		t.Fatal("equal prices must rank by product id for determinism")
	}
	if !result.PotentialSavings.IsZero() {
		t.Fatalf("identical prices mean zero savings, got %s", result.PotentialSavings)
	}
}

func TestCompareSingleMemberAndUnknownLabel(t *testing.T) {
	source := &fakeProductSource{byCategory: map[string][]storage.Product{
		"Requeijão": {product(1, "zaffari", "8.99")},
	}}
	comparator := New(source, nil, nil, zerolog.Nop())

	single, err := comparator.Compare(context.Background(), "Requeijão")
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if len(single.Entries) != 1 || !single.PotentialSavings.IsZero() {
		t.Fatal("single-member category must report zero savings")
	}

	empty, err := comparator.Compare(context.Background(), "Picanha")
	if err != nil {
		t.Fatalf("unknown label must not error: %v", err)
	}
	if len(empty.Entries) != 0 {
		t.Fatal("unknown label must yield an empty result")
	}
}

type fakeHistorySource struct {
	series map[int64][]storage.PriceObservation
}

func (f *fakeHistorySource) ListObservationsSince(_ context.Context, productID int64, _ time.Time) ([]storage.PriceObservation, error) {
	return f.series[productID], nil
}

func TestCompareAnnotatesWindowMean(t *testing.T) {
	now := time.Now().UTC()
	source := &fakeProductSource{byCategory: map[string][]storage.Product{
		"Café em Pó": {product(1, "zaffari", "18.00")},
	}}
	history := &fakeHistorySource{series: map[int64][]storage.PriceObservation{
		1: {
			{ProductID: 1, Price: decimal.RequireFromString("20.00"), RecordedAt: now.Add(-48 * time.Hour)},
			{ProductID: 1, Price: decimal.RequireFromString("18.00"), RecordedAt: now.Add(-24 * time.Hour)},
		},
	}}
	comparator := New(source, history, nil, zerolog.Nop())

	result, err := comparator.Compare(context.Background(), "Café em Pó")
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if result.Entries[0].Mean30d == nil {
		t.Fatal("expected a 30d mean annotation")
	}
	if !result.Entries[0].Mean30d.Equal(decimal.RequireFromString("19")) {
		t.Fatalf("expected mean 19, got %s", result.Entries[0].Mean30d)
	}
}
