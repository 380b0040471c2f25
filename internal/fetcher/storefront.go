package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"pricewatch/internal/money"
)

// StorefrontOptions parameterise one storefront product API client.
type StorefrontOptions struct {
	Store      string
	BaseURL    string
	Timeout    time.Duration
	UserAgents []string
}

// Storefront fetches product snapshots from a storefront's product JSON
// endpoint. Page scraping and HTML parsing live outside this module; the
// contract here is a JSON document with sku/title/price/availability.
type Storefront struct {
	opts   StorefrontOptions
	client *resty.Client
	logger zerolog.Logger
	uaIdx  atomic.Uint32
}

type productResponse struct {
	SKU       string `json:"sku"`
	Title     string `json:"title"`
	ImageURL  string `json:"image_url"`
	Price     string `json:"price"`
	Available bool   `json:"available"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewStorefront constructs a storefront client.
func NewStorefront(opts StorefrontOptions, logger zerolog.Logger) *Storefront {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)

	return &Storefront{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "storefront_fetcher").Str("store", opts.Store).Logger(),
	}
}

// Fetch retrieves and validates one product snapshot. A response without a
// positive price is an error: zero prices must never enter the series.
func (s *Storefront) Fetch(ctx context.Context, url string) (Snapshot, error) {
	if url == "" {
		return Snapshot{}, errors.New("product url required")
	}
	if s.opts.BaseURL != "" && !strings.HasPrefix(url, s.opts.BaseURL) {
		return Snapshot{}, fmt.Errorf("url %s does not belong to store %s", url, s.opts.Store)
	}

	req := s.client.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if ua := s.nextUserAgent(); ua != "" {
		req.SetHeader("User-Agent", ua)
	}

	resp, err := req.Get(url)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch %s: %w", url, err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return Snapshot{}, parseHTTPError(s.opts.Store, resp.StatusCode(), resp.Body())
	}

	var payload productResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return Snapshot{}, fmt.Errorf("parse product payload: %w", err)
	}

	if payload.SKU == "" {
		return Snapshot{}, errors.New("product payload missing sku")
	}

	price, err := money.Parse(payload.Price)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse product price %q: %w", payload.Price, err)
	}
	if !price.IsPositive() {
		return Snapshot{}, fmt.Errorf("product price must be positive, got %s", price)
	}

	s.logger.Debug().
		Str("sku", payload.SKU).
		Str("price", price.String()).
		Bool("available", payload.Available).
		Msg("product fetched")

	return Snapshot{
		Store:     s.opts.Store,
		SKU:       payload.SKU,
		Title:     payload.Title,
		ImageURL:  payload.ImageURL,
		Price:     price,
		Available: payload.Available,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (s *Storefront) nextUserAgent() string {
	if len(s.opts.UserAgents) == 0 {
		return "pricewatch/1.0"
	}
	idx := s.uaIdx.Add(1)
	return s.opts.UserAgents[int(idx)%len(s.opts.UserAgents)]
}

func parseHTTPError(store string, status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("%s api error (%d): %s", store, status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("%s api error (%d): %s", store, status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("%s api error (%d): %s", store, status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("%s api error (%d)", store, status)
}

var _ Fetcher = (*Storefront)(nil)
