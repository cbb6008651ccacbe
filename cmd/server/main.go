package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slugr/url-shortener/internal/analytics"
	"github.com/slugr/url-shortener/internal/config"
	"github.com/slugr/url-shortener/internal/infra"
	"github.com/slugr/url-shortener/internal/observability"
	"github.com/slugr/url-shortener/internal/server"
)

func main() {
	// A missing BASE_URL is fatal: the service cannot compose short
	// links without it.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	obs, err := observability.Setup(ctx, observability.Config{
		ServiceName:  "url-shortener",
		Environment:  cfg.App.Environment,
		OTLPEndpoint: cfg.App.OTLPEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to setup observability: %v", err)
	}
	logger := obs.Logger

	db, err := infra.NewPostgresPool(ctx, cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	cache, err := infra.NewCacheClient(ctx, cfg.Cache.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to cache: %v", err)
	}
	defer cache.Close()

	// Click-event publishing is optional; without a broker the redirect
	// path still counts accesses synchronously.
	var events analytics.EventPublisher
	if cfg.Queue.URL != "" {
		publisher, err := analytics.NewQueuePublisher(cfg.Queue.URL, cfg.Queue.ClickName)
		if err != nil {
			log.Fatalf("Failed to connect to queue: %v", err)
		}
		defer publisher.Close()
		events = publisher
	}

	srv, cleanup := server.NewServer(cfg, db, cache, events, logger)
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("port", cfg.Server.Port),
			slog.String("base_url", cfg.App.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-quit:
		case <-gctx.Done():
			return gctx.Err()
		}

		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited with error", slog.String("error", err.Error()))
		obs.Shutdown(ctx)
		os.Exit(1)
	}

	obs.Shutdown(ctx)
	logger.Info("server exited gracefully")
}
