// Package service orchestrates fetching, persistence, statistics, and alert
// reconciliation for the tracked product set.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/alerting"
	"pricewatch/internal/fetcher"
	"pricewatch/internal/stats"
	"pricewatch/internal/storage"
)

// Store is the persistence surface the service needs.
type Store interface {
	storage.ProductStore
	storage.ObservationStore
}

// FetcherSource resolves the fetcher for a store name.
type FetcherSource interface {
	Lookup(store string) (fetcher.Fetcher, error)
}

// Service drives the product update cycle.
type Service struct {
	store    Store
	fetchers FetcherSource
	engine   *stats.Engine
	tracker  *alerting.Tracker
	rules    []alerting.Rule
	locker   storage.AdvisoryLocker
	lockKey  int64
	logger   zerolog.Logger
	now      func() time.Time
}

// Options wires the service dependencies. Tracker may be nil to disable
// alert reconciliation; Locker may be nil when single-process execution is
// guaranteed.
type Options struct {
	Store    Store
	Fetchers FetcherSource
	Engine   *stats.Engine
	Tracker  *alerting.Tracker
	Rules    []alerting.Rule
	Locker   storage.AdvisoryLocker
	LockKey  int64
}

// New constructs the service.
func New(opts Options, logger zerolog.Logger) *Service {
	engine := opts.Engine
	if engine == nil {
		engine = stats.NewEngine()
	}
	return &Service{
		store:    opts.Store,
		fetchers: opts.Fetchers,
		engine:   engine,
		tracker:  opts.Tracker,
		rules:    opts.Rules,
		locker:   opts.Locker,
		lockKey:  opts.LockKey,
		logger:   logger.With().Str("component", "service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UpdateReport summarises one update cycle.
type UpdateReport struct {
	Attempted int
	Updated   int
	Failed    int
	Events    []alerting.Event
}

// ProcessRun executes one scheduled update under the advisory lock. When the
// lock is held elsewhere the run is skipped without error.
func (s *Service) ProcessRun(ctx context.Context, runAt time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("run_at", runAt).Msg("skip run because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	report, err := s.UpdateAll(ctx)
	if err != nil {
		return err
	}

	s.logger.Info().Time("run_at", runAt).
		Int("attempted", report.Attempted).
		Int("updated", report.Updated).
		Int("failed", report.Failed).
		Int("alerts", len(report.Events)).
		Msg("update cycle complete")
	return nil
}

// UpdateAll fetches every active product, records observations, and
// reconciles alerts. A failed fetch is logged and skipped; it never records
// an observation and never touches alert state for that product.
func (s *Service) UpdateAll(ctx context.Context) (UpdateReport, error) {
	products, err := s.store.ListProducts(ctx, true)
	if err != nil {
		return UpdateReport{}, fmt.Errorf("list active products: %w", err)
	}

	report := UpdateReport{Attempted: len(products)}
	for _, product := range products {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		events, err := s.updateProduct(ctx, product)
		if err != nil {
			report.Failed++
			s.logger.Warn().Err(err).
				Int64("product_id", product.ID).
				Str("store", product.Store).
				Str("sku", product.SKU).
				Msg("product update skipped")
			continue
		}
		report.Updated++
		report.Events = append(report.Events, events...)
	}

	return report, nil
}

// UpdateProduct fetches and reconciles a single product by id.
func (s *Service) UpdateProduct(ctx context.Context, id int64) ([]alerting.Event, error) {
	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.updateProduct(ctx, product)
}

func (s *Service) updateProduct(ctx context.Context, product storage.Product) ([]alerting.Event, error) {
	f, err := s.fetchers.Lookup(product.Store)
	if err != nil {
		return nil, err
	}

	snap, err := f.Fetch(ctx, product.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", product.Store, product.SKU, err)
	}

	previous := product.CurrentPrice

	if _, err := s.store.AppendObservation(ctx, storage.PriceObservation{
		ProductID:    product.ID,
		Price:        snap.Price,
		WasAvailable: snap.Available,
		RecordedAt:   snap.FetchedAt,
	}); err != nil {
		return nil, fmt.Errorf("append observation: %w", err)
	}

	if err := s.store.UpdateProductPrices(ctx, product.ID, snap.Price); err != nil {
		return nil, fmt.Errorf("update prices: %w", err)
	}

	s.logger.Info().
		Int64("product_id", product.ID).
		Str("store", product.Store).
		Str("sku", product.SKU).
		Str("price", snap.Price.String()).
		Bool("available", snap.Available).
		Msg("observation recorded")

	if s.tracker == nil || len(s.rules) == 0 {
		return nil, nil
	}

	return s.reconcile(ctx, product, snap.Price, previous)
}

func (s *Service) reconcile(ctx context.Context, product storage.Product, current decimal.Decimal, previous *decimal.Decimal) ([]alerting.Event, error) {
	now := s.now()
	series, err := s.store.ListObservationsSince(ctx, product.ID, now.Add(-stats.Window180d.Duration()))
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}

	candidates := alerting.Evaluate(alerting.Input{
		Current:   current,
		Previous:  previous,
		Target:    product.TargetPrice,
		Summaries: s.engine.SummarizeAll(product.ID, series, now),
		Rules:     s.rules,
	})

	events, err := s.tracker.Reconcile(ctx, product, candidates)
	if err != nil {
		return events, fmt.Errorf("reconcile alerts: %w", err)
	}
	return events, nil
}

// CheckProduct re-evaluates alert rules for one product from stored state
// without fetching. Products with no current price are skipped.
func (s *Service) CheckProduct(ctx context.Context, id int64) ([]alerting.Event, error) {
	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.CurrentPrice == nil {
		return nil, nil
	}
	if s.tracker == nil || len(s.rules) == 0 {
		return nil, nil
	}
	previous, err := s.previousPrice(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, product, *product.CurrentPrice, previous)
}

// CheckAll re-evaluates alert rules for every active product from stored
// state without fetching.
func (s *Service) CheckAll(ctx context.Context) ([]alerting.Event, error) {
	products, err := s.store.ListProducts(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}

	var (
		events []alerting.Event
		errs   []error
	)
	for _, product := range products {
		if product.CurrentPrice == nil {
			continue
		}
		previous, err := s.previousPrice(ctx, product.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ev, err := s.reconcile(ctx, product, *product.CurrentPrice, previous)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, ev...)
	}
	return events, errors.Join(errs...)
}

// previousPrice returns the price of the observation before the newest one.
func (s *Service) previousPrice(ctx context.Context, productID int64) (*decimal.Decimal, error) {
	recent, err := s.store.ListRecentObservations(ctx, productID, 2)
	if err != nil {
		return nil, fmt.Errorf("load recent observations: %w", err)
	}
	if len(recent) < 2 {
		return nil, nil
	}
	price := recent[1].Price
	return &price, nil
}

// AddProduct fetches the product once and registers it for tracking. An
// existing (store, sku) row is reactivated and its target updated instead of
// failing on the unique constraint.
func (s *Service) AddProduct(ctx context.Context, store, url string, target *decimal.Decimal) (storage.Product, error) {
	f, err := s.fetchers.Lookup(store)
	if err != nil {
		return storage.Product{}, err
	}

	snap, err := f.Fetch(ctx, url)
	if err != nil {
		return storage.Product{}, fmt.Errorf("initial fetch: %w", err)
	}

	existing, err := s.store.GetProductByStoreSKU(ctx, store, snap.SKU)
	switch {
	case err == nil:
		return s.reactivate(ctx, existing, snap, target)
	case errors.Is(err, storage.ErrNotFound):
	default:
		return storage.Product{}, err
	}

	price := snap.Price
	product := storage.Product{
		Store:        store,
		SKU:          snap.SKU,
		URL:          url,
		Title:        snap.Title,
		TargetPrice:  target,
		CurrentPrice: &price,
		LowestPrice:  &price,
		HighestPrice: &price,
	}
	if snap.ImageURL != "" {
		image := snap.ImageURL
		product.ImageURL = &image
	}

	stored, err := s.store.InsertProduct(ctx, product)
	if err != nil {
		return storage.Product{}, fmt.Errorf("insert product: %w", err)
	}

	if _, err := s.store.AppendObservation(ctx, storage.PriceObservation{
		ProductID:    stored.ID,
		Price:        snap.Price,
		WasAvailable: snap.Available,
		RecordedAt:   snap.FetchedAt,
	}); err != nil {
		return stored, fmt.Errorf("append initial observation: %w", err)
	}

	s.logger.Info().
		Int64("product_id", stored.ID).
		Str("store", stored.Store).
		Str("sku", stored.SKU).
		Msg("product registered")
	return stored, nil
}

func (s *Service) reactivate(ctx context.Context, existing storage.Product, snap fetcher.Snapshot, target *decimal.Decimal) (storage.Product, error) {
	if target != nil {
		if err := s.store.SetTargetPrice(ctx, existing.ID, *target); err != nil {
			return storage.Product{}, fmt.Errorf("update target: %w", err)
		}
	} else if !existing.IsActive {
		if err := s.store.SetProductActive(ctx, existing.ID, true); err != nil {
			return storage.Product{}, fmt.Errorf("reactivate product: %w", err)
		}
	}

	if _, err := s.store.AppendObservation(ctx, storage.PriceObservation{
		ProductID:    existing.ID,
		Price:        snap.Price,
		WasAvailable: snap.Available,
		RecordedAt:   snap.FetchedAt,
	}); err != nil {
		return storage.Product{}, fmt.Errorf("append observation: %w", err)
	}
	if err := s.store.UpdateProductPrices(ctx, existing.ID, snap.Price); err != nil {
		return storage.Product{}, fmt.Errorf("update prices: %w", err)
	}

	s.logger.Info().
		Int64("product_id", existing.ID).
		Str("store", existing.Store).
		Str("sku", existing.SKU).
		Msg("existing product reactivated")
	return s.store.GetProduct(ctx, existing.ID)
}

// RemoveProduct deactivates a product, or hard-deletes it with purge. A purge
// cascades to history and alert states and drops cached statistics.
func (s *Service) RemoveProduct(ctx context.Context, id int64, purge bool) error {
	if purge {
		if err := s.store.PurgeProduct(ctx, id); err != nil {
			return err
		}
		s.engine.Invalidate(id)
		s.logger.Info().Int64("product_id", id).Msg("product purged")
		return nil
	}
	if err := s.store.SetProductActive(ctx, id, false); err != nil {
		return err
	}
	s.logger.Info().Int64("product_id", id).Msg("product deactivated")
	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
