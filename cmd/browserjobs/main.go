// Command browserjobs runs the asynchronous browser scrape job service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/api"
	"github.com/scrapekit/browserjobs/internal/browser"
	clocksystem "github.com/scrapekit/browserjobs/internal/clock/system"
	"github.com/scrapekit/browserjobs/internal/config"
	iduuid "github.com/scrapekit/browserjobs/internal/id/uuid"
	"github.com/scrapekit/browserjobs/internal/jobs"
	"github.com/scrapekit/browserjobs/internal/logging"
	"github.com/scrapekit/browserjobs/internal/metrics"
	queuememory "github.com/scrapekit/browserjobs/internal/queue/memory"
	"github.com/scrapekit/browserjobs/internal/registry"
	"github.com/scrapekit/browserjobs/internal/scrape"
	storagelocal "github.com/scrapekit/browserjobs/internal/storage/local"
	storagememory "github.com/scrapekit/browserjobs/internal/storage/memory"
	storageredis "github.com/scrapekit/browserjobs/internal/storage/redis"
	"github.com/scrapekit/browserjobs/internal/tasks/booking"
	"github.com/scrapekit/browserjobs/internal/tasks/ghrepo"
	"github.com/scrapekit/browserjobs/internal/tasks/opendata"
	"github.com/scrapekit/browserjobs/internal/tasks/sitescrape"
	"github.com/scrapekit/browserjobs/internal/tasks/twitter"
	"github.com/scrapekit/browserjobs/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional, env vars apply)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "browserjobs: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobStore, err := newJobStore(ctx, cfg)
	if err != nil {
		return err
	}

	sink, err := storagelocal.New(cfg.Storage.DataRoot)
	if err != nil {
		return fmt.Errorf("init result storage: %w", err)
	}

	runtime, err := browser.NewRuntime(browser.Config{
		Headless:    cfg.Browser.Headless,
		UserAgent:   cfg.Browser.UserAgent,
		NavTimeout:  cfg.NavTimeout(),
		MaxParallel: cfg.Jobs.MaxConcurrent,
		DomainQPS:   cfg.Browser.DomainQPS,
	}, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("init browser runtime: %w", err)
	}
	defer runtime.Close()

	reg, err := registry.New(
		booking.New(booking.Config{
			MaxReviewPages: cfg.Extract.MaxReviewPages,
			StallLimit:     cfg.Extract.StallLimit,
			MaxRetries:     cfg.Extract.MaxRetries,
		}),
		sitescrape.New(sitescrape.Config{
			MaxPagesDefault: cfg.Crawl.MaxPagesDefault,
			MaxDepthDefault: cfg.Crawl.MaxDepthDefault,
			UserAgent:       cfg.Crawl.UserAgent,
		}),
		twitter.New(),
		opendata.New(),
		ghrepo.New(),
	)
	if err != nil {
		return fmt.Errorf("build task registry: %w", err)
	}
	logger.Info("tasks registered", zap.Strings("tasks", reg.Names()))

	queue := queuememory.NewQueue(cfg.Jobs.QueueDepth)
	defer queue.Close()

	clock := clocksystem.New()
	manager := jobs.NewManager(reg, jobStore, queue, iduuid.New(), clock, jobs.Config{
		Workers:    cfg.Jobs.MaxConcurrent,
		JobTimeout: cfg.JobTimeout(),
	}, logger.Named("jobs"))

	pool := worker.NewPool(
		cfg.Jobs.MaxConcurrent,
		queue, jobStore, reg, runtime, sink, clock,
		worker.Config{JobTimeout: cfg.JobTimeout()},
		logger.Named("worker"),
	)

	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		pool.Run(ctx)
	}()
	go manager.RunWatchdog(ctx)

	server := api.NewServer(manager, reg, cfg, logger.Named("api"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}

	select {
	case <-poolDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker pool did not drain before shutdown deadline")
	}

	logger.Info("browserjobs stopped")
	return nil
}

// newJobStore selects the configured job store backend.
func newJobStore(ctx context.Context, cfg config.Config) (scrape.JobStore, error) {
	switch cfg.Store.Provider {
	case "redis":
		store, err := storageredis.NewJobStore(ctx, cfg.Store.RedisURL,
			time.Duration(cfg.Store.TTLHours)*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("init redis job store: %w", err)
		}
		return store, nil
	default:
		return storagememory.NewJobStore(), nil
	}
}
