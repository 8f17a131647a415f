package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/katchitechstudio/habersel-backend/internal/config"
	"github.com/katchitechstudio/habersel-backend/internal/publisher"
	"github.com/katchitechstudio/habersel-backend/internal/quota"
	"github.com/katchitechstudio/habersel-backend/internal/scheduler"
	"github.com/katchitechstudio/habersel-backend/internal/scraper"
	"github.com/katchitechstudio/habersel-backend/internal/server"
	"github.com/katchitechstudio/habersel-backend/internal/service"
	"github.com/katchitechstudio/habersel-backend/internal/source/currents"
	"github.com/katchitechstudio/habersel-backend/internal/source/gnews"
	"github.com/katchitechstudio/habersel-backend/internal/source/mediastack"
	"github.com/katchitechstudio/habersel-backend/internal/source/newsdata"
	"github.com/katchitechstudio/habersel-backend/internal/source/rss"
	"github.com/katchitechstudio/habersel-backend/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Stores
	articleStore := postgres.NewArticleStore(db)
	blacklistStore := postgres.NewBlacklistStore(db)
	quotaStore := postgres.NewQuotaStore(db)
	markerStore := postgres.NewRunMarkerStore(db)
	systemStore := postgres.NewSystemStore(db)
	txManager := postgres.NewTransactionManager(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Quota ledger
	limits := make(map[string]quota.Limit, len(cfg.Sources))
	for name, sc := range cfg.Sources {
		limits[name] = quota.Limit{Daily: sc.DailyLimit, Priority: sc.Priority}
	}
	if len(cfg.Feeds) > 0 {
		if _, ok := limits[rss.SourceID]; !ok {
			// Feeds cost nothing but still need a ledger entry for the
			// fallback chain; rank them after every paid API.
			limits[rss.SourceID] = quota.Limit{Daily: 1000, Priority: 99}
		}
	}
	ledger := quota.NewLedger(quotaStore, limits, logger)
	if err := ledger.Restore(ctx); err != nil {
		logger.Error("failed to restore quota state", "error", err)
		os.Exit(1)
	}

	// Sources
	sources := buildSources(cfg, logger)
	if len(sources) == 0 {
		logger.Error("no sources configured")
		os.Exit(1)
	}

	// Optional RabbitMQ publisher
	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	ingest := service.NewIngestService(sources, articleStore, systemStore, ledger, pub, logger, cfg.Ingest)

	scrape := scraper.New(articleStore, blacklistStore, txManager, pub, logger, cfg.Scrape)

	sched, err := scheduler.New(ingest, scrape, markerStore, logger, cfg.Scheduler)
	if err != nil {
		logger.Error("failed to build scheduler", "error", err)
		os.Exit(1)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if cfg.Scheduler.Internal {
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler error", "error", err)
			}
		}()
	}

	srv := server.New(ingest, sched, logger, cfg.Server)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		scrape.Wait()
	}()

	logger.Info("starting server",
		"port", cfg.Server.Port,
		"sources", len(sources),
		"categories", cfg.Ingest.Categories,
		"internal_scheduler", cfg.Scheduler.Internal,
	)

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// buildSources instantiates an adapter for every configured API plus the
// RSS fallback when feeds are present.
func buildSources(cfg *config.Config, logger *slog.Logger) []service.Source {
	var sources []service.Source

	for name, sc := range cfg.Sources {
		switch name {
		case gnews.SourceID:
			sources = append(sources, gnews.New(gnews.Config{
				APIKey:   sc.APIKey,
				BaseURL:  sc.BaseURL,
				Language: cfg.Ingest.Language,
				Timeout:  sc.Timeout,
			}, logger))
		case currents.SourceID:
			sources = append(sources, currents.New(currents.Config{
				APIKey:   sc.APIKey,
				BaseURL:  sc.BaseURL,
				Language: cfg.Ingest.Language,
				Timeout:  sc.Timeout,
			}, logger))
		case mediastack.SourceID:
			sources = append(sources, mediastack.New(mediastack.Config{
				APIKey:   sc.APIKey,
				BaseURL:  sc.BaseURL,
				Language: cfg.Ingest.Language,
				Timeout:  sc.Timeout,
			}, logger))
		case newsdata.SourceID:
			sources = append(sources, newsdata.New(newsdata.Config{
				APIKey:   sc.APIKey,
				BaseURL:  sc.BaseURL,
				Language: cfg.Ingest.Language,
				Timeout:  sc.Timeout,
			}, logger))
		default:
			logger.Warn("unknown source in config, skipping", "source", name)
		}
	}

	if len(cfg.Feeds) > 0 {
		sources = append(sources, rss.New(rss.Config{
			Feeds:   cfg.Feeds,
			Timeout: 10 * time.Second,
		}, logger))
	}

	return sources
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
