package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/slugr/url-shortener/internal/analytics"
	"github.com/slugr/url-shortener/internal/api"
	"github.com/slugr/url-shortener/internal/config"
	"github.com/slugr/url-shortener/internal/middleware"
	"github.com/slugr/url-shortener/internal/repository"
	"github.com/slugr/url-shortener/internal/service"
)

// redisPinger adapts *redis.Client to api.CacheInterface.
type redisPinger struct{ client *redis.Client }

func (r *redisPinger) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NewRouter initializes all dependencies and returns a configured Gin
// router plus a cleanup function that stops the slug generator's
// background sweep. Useful for testing where you don't need the full
// HTTP server.
func NewRouter(cfg *config.Config, db *pgxpool.Pool, cache *redis.Client, events analytics.EventPublisher, logger *slog.Logger) (*gin.Engine, func()) {
	linkRepo := repository.NewCachedLinkRepository(repository.NewLinkRepository(db), cache, cfg.Cache.TTL)
	userRepo := repository.NewUserRepository(db)

	generator := service.NewSlugGenerator()
	allocator := service.NewSlugAllocator(linkRepo, generator)
	linkService := service.NewLinkService(linkRepo, allocator, generator, events, cfg.App.BaseURL, logger)

	auth := middleware.NewAuthenticator(userRepo, logger)
	handler := api.NewHandler(linkService, auth, db, &redisPinger{client: cache}, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("url-shortener"))
	router.Use(middleware.Logging(logger))
	handler.RegisterRoutes(router)

	return router, generator.Stop
}

// NewServer initializes all dependencies and returns a configured HTTP
// server along with the router cleanup function.
func NewServer(cfg *config.Config, db *pgxpool.Pool, cache *redis.Client, events analytics.EventPublisher, logger *slog.Logger) (*http.Server, func()) {
	router, cleanup := NewRouter(cfg, db, cache, events, logger)

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, cleanup
}
