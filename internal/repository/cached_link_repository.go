package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/slugr/url-shortener/internal/model"
)

// notFoundSentinel is cached for slugs that resolved to no row, so a
// burst of lookups for a dead slug doesn't hammer the database.
const notFoundSentinel = "__not_found__"

const negativeTTL = 30 * time.Second

// CachedLinkRepository decorates LinkRepository with a cache-aside layer
// for slug lookups, the hot path of the redirect operation. Everything
// the cache does is advisory: any Redis failure falls through to the
// database, and a circuit breaker stops the repository from paying
// Redis timeouts while the cache is unhealthy.
type CachedLinkRepository struct {
	db      *LinkRepository
	cache   *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
}

var (
	_ LinkStore = (*LinkRepository)(nil)
	_ LinkStore = (*CachedLinkRepository)(nil)
)

// NewCachedLinkRepository wraps db with a Redis cache. A nil cache
// client disables caching entirely, which tests and degraded
// deployments rely on.
func NewCachedLinkRepository(db *LinkRepository, cache *redis.Client, ttl time.Duration) *CachedLinkRepository {
	return &CachedLinkRepository{
		db:    db,
		cache: cache,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "redis",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// A miss is a healthy answer from Redis, not a failure;
			// only real errors may open the circuit.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, redis.Nil)
			},
		}),
		ttl: ttl,
	}
}

func cacheKey(slug string) string {
	return fmt.Sprintf("link:%s", slug)
}

// GetBySlug serves from cache when possible, otherwise queries the
// database and back-fills the cache. Misses on non-existent slugs are
// cached negatively with a short TTL.
func (r *CachedLinkRepository) GetBySlug(ctx context.Context, slug string) (*model.Link, error) {
	key := cacheKey(slug)

	if cached, err := r.cacheGet(ctx, key); err == nil {
		if cached == notFoundSentinel {
			return nil, ErrNotFound
		}
		var link model.Link
		if err := json.Unmarshal([]byte(cached), &link); err == nil {
			return &link, nil
		}
		// Corrupt entry: drop it and fall through to the database.
		r.cacheDel(ctx, key)
	}

	link, err := r.db.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.cacheSet(ctx, key, notFoundSentinel, negativeTTL)
		}
		return nil, err
	}

	if data, err := json.Marshal(link); err == nil {
		r.cacheSet(ctx, key, string(data), r.ttl)
	}
	return link, nil
}

// Create delegates to the database, then drops the slug's cache entry.
// The allocator's availability probe has usually just negative-cached
// this exact slug; without the invalidation the first redirects would
// keep resolving to the sentinel until it expired. The fresh link is
// not warmed in; the first lookup populates it.
func (r *CachedLinkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.db.Create(ctx, link); err != nil {
		return err
	}
	r.cacheDel(ctx, cacheKey(link.Slug))
	return nil
}

// GetByID is not cached: it only serves the low-volume management paths.
func (r *CachedLinkRepository) GetByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*model.Link, error) {
	return r.db.GetByID(ctx, id, includeDeleted)
}

func (r *CachedLinkRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Link, error) {
	return r.db.ListByOwner(ctx, ownerID)
}

// UpdateOriginalURL writes through to the database and invalidates the
// slug's cache entry so redirects never serve the stale target.
func (r *CachedLinkRepository) UpdateOriginalURL(ctx context.Context, id uuid.UUID, newURL string) (*model.Link, error) {
	link, err := r.db.UpdateOriginalURL(ctx, id, newURL)
	if err != nil {
		return nil, err
	}
	r.cacheDel(ctx, cacheKey(link.Slug))
	return link, nil
}

// SoftDelete marks the row deleted and invalidates the cached slug.
func (r *CachedLinkRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	link, err := r.db.GetByID(ctx, id, false)
	if err != nil {
		return err
	}
	if err := r.db.SoftDelete(ctx, id); err != nil {
		return err
	}
	r.cacheDel(ctx, cacheKey(link.Slug))
	return nil
}

// IncrementAccessCount goes straight to the database; the cached copy of
// the link may carry a stale access_count, which only listings ever
// read and listings bypass the cache.
func (r *CachedLinkRepository) IncrementAccessCount(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.db.IncrementAccessCount(ctx, id)
}

func (r *CachedLinkRepository) cacheGet(ctx context.Context, key string) (string, error) {
	if r.cache == nil {
		return "", redis.Nil
	}
	val, err := r.breaker.Execute(func() (interface{}, error) {
		return r.cache.Get(ctx, key).Result()
	})
	if err != nil {
		return "", err
	}
	return val.(string), nil
}

func (r *CachedLinkRepository) cacheSet(ctx context.Context, key, value string, ttl time.Duration) {
	if r.cache == nil {
		return
	}
	_, _ = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.cache.Set(ctx, key, value, ttl).Err()
	})
}

func (r *CachedLinkRepository) cacheDel(ctx context.Context, key string) {
	if r.cache == nil {
		return
	}
	_, _ = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.cache.Del(ctx, key).Err()
	})
}
