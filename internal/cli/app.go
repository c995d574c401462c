package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"eve-hubcompare/internal/cache"
	"eve-hubcompare/internal/catalog"
	"eve-hubcompare/internal/config"
	"eve-hubcompare/internal/db"
	"eve-hubcompare/internal/esi"
	"eve-hubcompare/internal/logger"
	"eve-hubcompare/internal/market"
	"eve-hubcompare/internal/refresh"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	db       *db.DB
	client   *esi.Client
	resolver *esi.LocationResolver
	coord    *refresh.Coordinator
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		return nil, err
	}

	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		if cat, err = catalog.Load(cfg.CatalogFile); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(cfg.Cache.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	database, err := db.Open(filepath.Join(cfg.Cache.Dir, "hubcompare.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	client, err := esi.NewClient(esi.Options{
		BaseURL:               cfg.ESI.BaseURL,
		UserAgent:             cfg.ESI.UserAgent,
		Timeout:               cfg.ESI.Timeout,
		MaxRetries:            cfg.ESI.MaxRetries,
		BackoffBase:           cfg.ESI.BackoffBase,
		MaxRateLimitWait:      cfg.ESI.MaxRateLimitWait,
		LowRemainingThreshold: cfg.ESI.LowRemainingThreshold,
		LowRemainingPause:     cfg.ESI.LowRemainingPause,
		RequestsPerSecond:     cfg.ESI.RequestsPerSecond,
		Concurrency:           cfg.ESI.Concurrency,
		MaxPayloadBytes:       cfg.ESI.MaxPayloadBytes,
	})
	if err != nil {
		database.Close()
		return nil, err
	}

	start, _ := config.ParseClock(cfg.Refresh.MaintenanceStart)
	end, _ := config.ParseClock(cfg.Refresh.MaintenanceEnd)

	pages := esi.NewPageCache(client, database, filepath.Join(cfg.Cache.Dir, "pages"), cfg.ESI.MaxPages)
	resolver := esi.NewLocationResolver(client, database)
	history := esi.NewHistoryFetcher(client, database)
	agg := market.NewAggregator(cat, pages, resolver, history, market.Options{
		Depth:   cfg.Cache.LadderDepth,
		Workers: cfg.Cache.Workers,
	})
	store := cache.New(cfg.Cache.Dir, cfg.Cache.ChunkSize)

	coord := refresh.NewCoordinator(cat, agg, store, database, refresh.Options{
		LeaseTTL:          cfg.Refresh.LeaseTTL,
		ClientInterval:    cfg.Refresh.ClientInterval,
		BackgroundTimeout: cfg.Refresh.BackgroundTimeout,
		MaintenanceStart:  start,
		MaintenanceEnd:    end,
	},
		pages,
		refresh.ClearFunc(database.ClearMarketState),
		refresh.ClearFunc(func() error { resolver.Forget(); return nil }),
	)

	return &app{
		cfg:      cfg,
		catalog:  cat,
		db:       database,
		client:   client,
		resolver: resolver,
		coord:    coord,
	}, nil
}

func (a *app) Close() {
	a.coord.Wait()
	if err := a.db.Close(); err != nil {
		logger.Warn("DB", fmt.Sprintf("close: %v", err))
	}
}
