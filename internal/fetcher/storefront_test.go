package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestStorefrontFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Fatal("request should carry a user agent")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sku":"7891234","title":"Leite UHT Integral 1L","image_url":"https://cdn.example/leite.jpg","price":"R$ 5,49","available":true}`))
	}))
	defer srv.Close()

	fetcher := NewStorefront(StorefrontOptions{Store: "zaffari", Timeout: time.Second}, zerolog.Nop())

	snap, err := fetcher.Fetch(context.Background(), srv.URL+"/produto/7891234")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if snap.SKU != "7891234" || snap.Store != "zaffari" {
		t.Fatalf("unexpected snapshot identity: %+v", snap)
	}
	if !snap.Price.Equal(decimal.RequireFromString("5.49")) {
		t.Fatalf("expected price 5.49, got %s", snap.Price)
	}
	if !snap.Available {
		t.Fatal("snapshot should be available")
	}
	if snap.FetchedAt.IsZero() {
		t.Fatal("snapshot should carry a fetch timestamp")
	}
}

func TestStorefrontFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer srv.Close()

	fetcher := NewStorefront(StorefrontOptions{Store: "carrefour", Timeout: time.Second}, zerolog.Nop())

	_, err := fetcher.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("429 should fail the fetch")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("error should surface the api message, got %v", err)
	}
}

func TestStorefrontRejectsNonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sku":"1","title":"Arroz","price":"R$ 0,00","available":true}`))
	}))
	defer srv.Close()

	fetcher := NewStorefront(StorefrontOptions{Store: "zaffari", Timeout: time.Second}, zerolog.Nop())

	if _, err := fetcher.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("a zero price must never produce a snapshot")
	}
}

func TestStorefrontRejectsUnparseablePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>captcha</html>`))
	}))
	defer srv.Close()

	fetcher := NewStorefront(StorefrontOptions{Store: "zaffari", Timeout: time.Second}, zerolog.Nop())

	if _, err := fetcher.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("non-JSON payloads must fail the fetch")
	}
}

func TestStorefrontRejectsForeignURL(t *testing.T) {
	fetcher := NewStorefront(StorefrontOptions{
		Store:   "zaffari",
		BaseURL: "https://www.zaffari.com.br",
		Timeout: time.Second,
	}, zerolog.Nop())

	if _, err := fetcher.Fetch(context.Background(), "https://other.example/p/1"); err == nil {
		t.Fatal("urls outside the store base must be rejected")
	}
}

func TestStorefrontRotatesUserAgents(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"sku":"1","title":"Feijão","price":"9,99","available":true}`))
	}))
	defer srv.Close()

	fetcher := NewStorefront(StorefrontOptions{
		Store:      "zaffari",
		Timeout:    time.Second,
		UserAgents: []string{"agent-a", "agent-b"},
	}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		if _, err := fetcher.Fetch(context.Background(), srv.URL); err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
	}
	if seen[0] == seen[1] {
		t.Fatalf("consecutive requests should rotate user agents, got %v", seen)
	}
	if seen[0] != seen[2] {
		t.Fatalf("rotation should cycle through the pool, got %v", seen)
	}
}

type countingFetcher struct {
	calls atomic.Int32
}

func (c *countingFetcher) Fetch(_ context.Context, _ string) (Snapshot, error) {
	c.calls.Add(1)
	return Snapshot{SKU: "1"}, nil
}

func TestThrottleSpacesFetches(t *testing.T) {
	inner := &countingFetcher{}
	throttled := Throttle(inner, 50*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := throttled.Fetch(context.Background(), "u"); err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("three fetches at 50ms spacing should take >=100ms, took %s", elapsed)
	}
	if inner.calls.Load() != 3 {
		t.Fatalf("expected 3 delegated calls, got %d", inner.calls.Load())
	}
}

func TestThrottleHonoursContextCancellation(t *testing.T) {
	inner := &countingFetcher{}
	throttled := Throttle(inner, time.Hour)

	if _, err := throttled.Fetch(context.Background(), "u"); err != nil {
		t.Fatalf("first fetch should pass immediately: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := throttled.Fetch(ctx, "u"); err == nil {
		t.Fatal("second fetch should fail when the context expires before the limiter allows it")
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	inner := &countingFetcher{}
	reg.Register("zaffari", inner)

	if _, err := reg.Lookup("zaffari"); err != nil {
		t.Fatalf("registered store should resolve: %v", err)
	}
	if _, err := reg.Lookup("unknown"); err == nil {
		t.Fatal("unknown store must error")
	}
	if stores := reg.Stores(); len(stores) != 1 || stores[0] != "zaffari" {
		t.Fatalf("unexpected store list: %v", stores)
	}
}
