// Package app aggregates configuration and shared wiring for the CLI
// commands.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/alerting"
	"pricewatch/internal/categorize"
	"pricewatch/internal/compare"
	"pricewatch/internal/config"
	"pricewatch/internal/fetcher"
	"pricewatch/internal/scheduler"
	"pricewatch/internal/service"
	"pricewatch/internal/stats"
	"pricewatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	engine *stats.Engine
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		engine: stats.NewEngine(),
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newRegistry() *fetcher.Registry {
	registry := fetcher.NewRegistry()
	for name, baseURL := range a.Config.Scraper.Stores {
		storefront := fetcher.NewStorefront(fetcher.StorefrontOptions{
			Store:      name,
			BaseURL:    baseURL,
			Timeout:    a.Config.Scraper.RequestTimeout,
			UserAgents: a.Config.Scraper.UserAgents,
		}, a.Logger)
		registry.Register(name, fetcher.Throttle(storefront, a.Config.Scraper.MinFetchDelay))
	}
	return registry
}

func (a *App) newNotifier() alerting.Notifier {
	multi := alerting.NewMultiNotifier()
	for _, channel := range a.Config.Alerting.Channels {
		switch channel {
		case "console":
			multi.Register("console", alerting.NewConsoleNotifier(os.Stdout))
		case "telegram":
			tg := a.Config.Alerting.Telegram
			if !tg.Enabled {
				a.Logger.Warn().Msg("telegram channel configured but telegram is disabled")
				continue
			}
			multi.Register("telegram", alerting.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, 10*time.Second, a.Logger))
		default:
			a.Logger.Warn().Str("channel", channel).Msg("unknown alert channel ignored")
		}
	}
	if multi.Len() == 0 {
		return nil
	}
	return multi
}

func (a *App) newService(store *storage.Store) *service.Service {
	var (
		tracker *alerting.Tracker
		rules   []alerting.Rule
	)
	if a.Config.Alerting.Enabled {
		tracker = alerting.NewTracker(store, a.newNotifier(), a.Logger)
		rules = alerting.Rules(decimal.NewFromFloat(a.Config.Alerting.DropThresholdPct))
	}

	return service.New(service.Options{
		Store:    store,
		Fetchers: a.newRegistry(),
		Engine:   a.engine,
		Tracker:  tracker,
		Rules:    rules,
		Locker:   store,
		LockKey:  a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)
}

func (a *App) newComparator(store *storage.Store) *compare.Comparator {
	return compare.New(store, store, a.engine, a.Logger)
}

func (a *App) newCategorizer() (categorize.Categorizer, error) {
	return categorize.NewAnthropicClassifier(categorize.Options{
		APIKey:  a.Config.Categorizer.APIKey,
		Model:   a.Config.Categorizer.Model,
		BaseURL: a.Config.Categorizer.BaseURL,
		Timeout: a.Config.Categorizer.RequestTimeout,
	}, a.Logger)
}

// Run executes the long-running update service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sched, err := scheduler.New(scheduler.Options{
		DailyAt:      a.Config.Scheduler.DailyAt,
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
	if err != nil {
		return err
	}

	svc := a.newService(store)

	a.Logger.Info().Msg("starting price update service")
	err = sched.Run(ctx, svc.ProcessRun)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("price update service stopped")
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// AddOptions configure product registration.
type AddOptions struct {
	Store  string
	URL    string
	Target *decimal.Decimal
}

// ListOptions configure the product listing.
type ListOptions struct {
	All bool
}

// RemoveOptions configure product removal.
type RemoveOptions struct {
	ID    int64
	Purge bool
}

// UpdateOptions configure a manual update run.
type UpdateOptions struct {
	ID int64
}

// HistoryOptions configure the history command.
type HistoryOptions struct {
	ID        int64
	Limit     int
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// CategorizeOptions configure categorization runs.
type CategorizeOptions struct {
	ID  int64
	All bool
}

// CompareOptions configure the category comparison.
type CompareOptions struct {
	Category string
}
