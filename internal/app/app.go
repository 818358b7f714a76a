package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"feedhub/internal/adapter/analytics"
	"feedhub/internal/adapter/fetcher"
	"feedhub/internal/adapter/parser"
	"feedhub/internal/adapter/rewriter"
	"feedhub/internal/cache"
	"feedhub/internal/catalog"
	"feedhub/internal/config"
	"feedhub/internal/migrations"
	server "feedhub/internal/transport/http"
	"feedhub/internal/usecase"
	"feedhub/internal/worker"
	"feedhub/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App wires the aggregation pipeline, the read tracker and the HTTP server.
type App struct {
	config     *config.Config
	logger     *slog.Logger
	server     *http.Server
	store      storage.ReadCounterStore
	aggregator *usecase.Aggregator
	reporter   *analytics.Client
	stopChan   chan os.Signal
	wg         sync.WaitGroup
}

// New builds every component from cfg. The caller owns log.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}
	groups, err := catalog.Load(cfg.App.FeedsFile, cfg.App.ExcludeFromAll)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed groups: %w", err)
	}
	store, err := OpenStore(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	loader := usecase.NewFeedLoader(
		fetcher.NewHTTPFetcher(&http.Client{}, cfg.App.UserAgent, log),
		parser.NewFeedParser(log),
		config.Duration(cfg.App.FetchTimeout),
		log,
	)
	aggregator := usecase.NewAggregator(
		groups,
		cache.New(log),
		loader,
		rewriter.New(log, cfg.App.SummaryFallback),
		worker.New(cfg.App.MaxConcurrentFetches, log),
		usecase.AggregatorOptions{
			FreshnessWindow: config.Duration(cfg.App.FreshnessWindow),
			Location:        loc,
			TTL:             cache.PolicyFor(cfg.App.Environment),
			SortEntries:     cfg.App.SortEntries,
			Author:          cfg.App.ChannelAuthor,
			Description:     cfg.App.ChannelDescription,
		},
		log,
	)
	tracker := usecase.NewReadTracker(store, loc, log)

	a := &App{
		config:     cfg,
		logger:     log,
		store:      store,
		aggregator: aggregator,
		stopChan:   make(chan os.Signal, 1),
	}
	var reporter analytics.Reporter = analytics.Noop{}
	if cfg.Analytics.Enabled {
		a.reporter = analytics.NewClient(&http.Client{}, analytics.Options{
			TrackingID:    cfg.Analytics.TrackingID,
			Endpoint:      cfg.Analytics.Endpoint,
			Timeout:       config.Duration(cfg.Analytics.Timeout),
			RatePerSecond: cfg.Analytics.RatePerSecond,
			Burst:         cfg.Analytics.Burst,
		}, log)
		reporter = a.reporter
	}

	handler := server.NewHandler(log, aggregator, tracker, reporter, server.HandlerOptions{
		DefaultGroup: cfg.App.DefaultGroup,
		PublicURL:    cfg.Server.PublicURL,
	})
	a.server = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.NewServer(log, handler),
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout),
	}
	log.Info("Application initialized",
		slog.String("component", "app"),
		slog.String("environment", cfg.App.Environment),
		slog.Int("groups", len(groups.Groups())),
		slog.String("database", cfg.Database.Driver),
		slog.Bool("analytics", cfg.Analytics.Enabled),
	)
	return a, nil
}

// OpenStore opens the read counter store selected by cfg.Driver. Postgres
// schemas are migrated before use.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (storage.ReadCounterStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		if err := migrations.Apply(ctx, log, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		return storage.NewPostgresReadStore(pool, log), nil
	case config.DriverSQLite:
		return storage.NewSQLiteReadStore(ctx, cfg.Path, log)
	case config.DriverMemory, "":
		log.Warn("Using in-memory read counters, counts are lost on restart", slog.String("component", "app"))
		return storage.NewMemoryReadStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func (a *App) Aggregator() *usecase.Aggregator {
	return a.aggregator
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts down.
func (a *App) Run() error {
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	a.logger.Info("HTTP server ready",
		slog.String("component", "server"),
		slog.String("address", listener.Addr().String()),
	)
	serveErr := make(chan error, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
			serveErr <- err
		}
	}()
	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	var runErr error
	select {
	case sig := <-a.stopChan:
		a.logger.Info("Shutdown signal received",
			slog.String("component", "app"),
			slog.String("signal", sig.String()),
		)
	case runErr = <-serveErr:
	}
	return errors.Join(runErr, a.Shutdown())
}

// Shutdown stops the HTTP server, waits for pending analytics hits and
// closes the store.
func (a *App) Shutdown() error {
	a.logger.Info("Starting graceful shutdown", slog.String("component", "app"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(a.config.Server.ShutdownTimeout))
	defer cancel()
	var err error
	if shutdownErr := a.server.Shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Error("HTTP server shutdown failed", slog.Any("error", shutdownErr))
		err = shutdownErr
	}
	a.wg.Wait()
	a.Close()
	a.logger.Info("Application stopped gracefully", slog.String("component", "app"))
	return err
}

// Close releases the store and flushes analytics without touching the server.
func (a *App) Close() {
	if a.reporter != nil {
		a.reporter.Wait()
	}
	if a.store != nil {
		a.store.Close()
	}
}
