package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"TenderScanner/internal/config"
	"TenderScanner/internal/domain"
	"TenderScanner/internal/httpapi"
	"TenderScanner/internal/infrastructure/archive"
	"TenderScanner/internal/infrastructure/events"
	"TenderScanner/internal/infrastructure/llm"
	"TenderScanner/internal/infrastructure/parser"
	"TenderScanner/internal/infrastructure/scheduler"
	"TenderScanner/internal/infrastructure/search"
	"TenderScanner/internal/infrastructure/storage"
	"TenderScanner/internal/infrastructure/telegram"
	"TenderScanner/internal/logging"
	"TenderScanner/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	ingestor  *usecase.Ingestor
	scheduler *usecase.Scheduler
	server    *http.Server
	closers   []func() error
}

// New connects the store and builds every adapter the configuration enables.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	pool, err := storage.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	repo := storage.NewPostgresRepository(pool, baseLogger.With("component", "storage"))
	if cfg.Database.Migrate {
		if err := repo.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	analyzer, err := llm.New(cfg.LLM, baseLogger.With("component", "llm."+cfg.LLM.Provider))
	if err != nil {
		a.Close()
		return nil, err
	}
	if !cfg.HasLLMCredential() {
		baseLogger.Warn("llm credential missing, scans will fail until it is configured", "provider", cfg.LLM.Provider)
	}

	deps := usecase.IngestorDeps{
		Feed: parser.NewRSSReader(cfg.Feed.URL, cfg.Feed.UserAgent,
			&http.Client{Timeout: cfg.Feed.Timeout}, baseLogger.With("component", "feed")),
		Repository: repo,
		Pages: parser.NewPageExtractor(nil, parser.PageExtractorOptions{
			Timeout:           cfg.Scraper.Timeout,
			UserAgent:         cfg.Scraper.UserAgent,
			MaxTextLength:     cfg.Scraper.MaxTextLength,
			RequestsPerSecond: cfg.Scraper.RequestsPerSecond,
		}, baseLogger.With("component", "pages")),
		Analyzer: analyzer,
		Logger:   baseLogger.With("component", "ingest"),
	}
	a.wireSinks(ctx, &deps)

	a.ingestor = usecase.NewIngestor(deps, usecase.IngestOptions{
		MaxNewItems: cfg.Ingest.MaxNewItems,
		Concurrency: cfg.Ingest.Concurrency,
	})

	if cfg.Scheduler.Enabled {
		a.scheduler = usecase.NewScheduler(
			scheduler.NewIntervalScheduler(cfg.Scheduler.Interval),
			a.ingestor,
			baseLogger.With("component", "scheduler"))
	}

	a.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouter(a.ingestor, repo, baseLogger.With("component", "http")),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	return a, nil
}

// wireSinks enables the optional side outputs; a sink that fails to initialise is skipped.
func (a *Application) wireSinks(ctx context.Context, deps *usecase.IngestorDeps) {
	cfg := a.cfg

	if notifier := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); notifier.Enabled() {
		deps.Notifier = notifier
	}

	if len(cfg.Events.Kafka.Brokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.Events.Kafka, a.logger.With("component", "events.kafka"))
		deps.Events = publisher
		a.closers = append(a.closers, publisher.Close)
	}

	if addr := cfg.Search.Elasticsearch.Addr; addr != "" {
		indexer, err := search.NewElasticIndexer(addr, cfg.Search.Elasticsearch.Index, a.logger.With("component", "search.elasticsearch"))
		if err != nil {
			a.logger.Warn("elasticsearch disabled", "error", err)
		} else {
			if err := indexer.EnsureIndex(ctx); err != nil {
				a.logger.Warn("elasticsearch index not ensured", "error", err)
			}
			deps.Index = indexer
		}
	}

	if cfg.Archive.Minio.Endpoint != "" {
		pages, err := archive.NewMinioArchive(cfg.Archive.Minio)
		if err != nil {
			a.logger.Warn("page archive disabled", "error", err)
		} else {
			if err := pages.EnsureBucket(ctx); err != nil {
				a.logger.Warn("page archive bucket not ensured", "error", err)
			}
			deps.Archive = pages
		}
	}
}

// Run serves HTTP (and the optional scheduler) until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "addr", a.cfg.Server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown", "error", err)
	}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			a.logger.Error("scheduler stop", "error", err)
		}
	}
	return runErr
}

// RunOnce performs a single scan run and reports run-level failures.
func (a *Application) RunOnce(ctx context.Context) (domain.ScanSummary, error) {
	return a.ingestor.Scan(ctx)
}

// Close releases connections in reverse order of creation.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource", "error", err)
		}
	}
	a.closers = nil
}
