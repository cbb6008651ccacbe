package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slugr/url-shortener/internal/model"
)

// testDB and testCache are initialized in link_repository_test.go's TestMain

const cacheTTL = 5 * time.Minute

func TestCachedLinkRepository_GetBySlug(t *testing.T) {
	ctx := context.Background()

	t.Run("cache miss - fetches from db and caches", func(t *testing.T) {
		testDB.Cleanup(ctx)
		testCache.Cleanup(ctx)

		repo := NewCachedLinkRepository(NewLinkRepository(testDB.Pool), testCache.Client, cacheTTL)

		link := &model.Link{ID: uuid.New(), Slug: "miss01", OriginalURL: "https://example.com/miss"}
		require.NoError(t, repo.Create(ctx, link))

		found, err := repo.GetBySlug(ctx, "miss01")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/miss", found.OriginalURL)

		exists, _ := testCache.Client.Exists(ctx, "link:miss01").Result()
		assert.Equal(t, int64(1), exists, "expected link to be cached after fetch")
	})

	t.Run("cache hit - served without a db round trip", func(t *testing.T) {
		testDB.Cleanup(ctx)
		testCache.Cleanup(ctx)

		repo := NewCachedLinkRepository(NewLinkRepository(testDB.Pool), testCache.Client, cacheTTL)

		link := &model.Link{ID: uuid.New(), Slug: "hit001", OriginalURL: "https://example.com/hit"}
		require.NoError(t, repo.Create(ctx, link))
		_, err := repo.GetBySlug(ctx, "hit001")
		require.NoError(t, err)

		// Remove the row out from under the cache.
		_, err = testDB.Pool.Exec(ctx, "DELETE FROM links WHERE slug = $1", "hit001")
		require.NoError(t, err)

		found, err := repo.GetBySlug(ctx, "hit001")
		require.NoError(t, err, "expected cache hit")
		assert.Equal(t, "https://example.com/hit", found.OriginalURL)
	})

	t.Run("negative caching - not found is remembered", func(t *testing.T) {
		testDB.Cleanup(ctx)
		testCache.Cleanup(ctx)

		repo := NewCachedLinkRepository(NewLinkRepository(testDB.Pool), testCache.Client, cacheTTL)

		_, err := repo.GetBySlug(ctx, "absent")
		assert.ErrorIs(t, err, ErrNotFound)

		cached, err := testCache.Client.Get(ctx, "link:absent").Result()
		require.NoError(t, err)
		assert.Equal(t, notFoundSentinel, cached)

		// The sentinel keeps resolving to not found.
		_, err = repo.GetBySlug(ctx, "absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create clears a negative-cached slug", func(t *testing.T) {
		testDB.Cleanup(ctx)
		testCache.Cleanup(ctx)

		repo := NewCachedLinkRepository(NewLinkRepository(testDB.Pool), testCache.Client, cacheTTL)

		// The allocator probes candidate availability through GetBySlug,
		// planting the sentinel for the very slug about to be created.
		_, err := repo.GetBySlug(ctx, "fresh1")
		require.ErrorIs(t, err, ErrNotFound)

		link := &model.Link{ID: uuid.New(), Slug: "fresh1", OriginalURL: "https://example.com/fresh"}
		require.NoError(t, repo.Create(ctx, link))

		found, err := repo.GetBySlug(ctx, "fresh1")
		require.NoError(t, err, "a just-created link must resolve immediately")
		assert.Equal(t, "https://example.com/fresh", found.OriginalURL)
	})

	t.Run("nil cache client degrades to db-only", func(t *testing.T) {
		testDB.Cleanup(ctx)

		repo := NewCachedLinkRepository(NewLinkRepository(testDB.Pool), nil, cacheTTL)

		link := &model.Link{ID: uuid.New(), Slug: "nocache", OriginalURL: "https://example.com/nocache"}
		require.NoError(t, repo.Create(ctx, link))

		found, err := repo.GetBySlug(ctx, "nocache")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/nocache", found.OriginalURL)
	})
}

func TestCachedLinkRepository_Invalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("update invalidates the cached slug", func(t *testing.T) {
		testDB.Cleanup(ctx)
		testCache.Cleanup(ctx)

		repo := NewCachedLinkRepository(NewLinkRepository(testDB.Pool), testCache.Client, cacheTTL)

		link := &model.Link{ID: uuid.New(), Slug: "inv001", OriginalURL: "https://example.com/old"}
		require.NoError(t, repo.Create(ctx, link))
		_, err := repo.GetBySlug(ctx, "inv001")
		require.NoError(t, err)

		_, err = repo.UpdateOriginalURL(ctx, link.ID, "https://example.com/new")
		require.NoError(t, err)

		found, err := repo.GetBySlug(ctx, "inv001")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/new", found.OriginalURL, "stale target must not survive an update")
	})

	t.Run("cache misses do not open the circuit breaker", func(t *testing.T) {
		testDB.Cleanup(ctx)
		testCache.Cleanup(ctx)

		repo := NewCachedLinkRepository(NewLinkRepository(testDB.Pool), testCache.Client, cacheTTL)

		// A cold burst of back-to-back misses, well past the
		// consecutive-failure threshold.
		for _, slug := range []string{"cold01", "cold02", "cold03", "cold04", "cold05", "cold06", "cold07"} {
			_, err := repo.cacheGet(ctx, cacheKey(slug))
			assert.ErrorIs(t, err, redis.Nil)
		}
		assert.Equal(t, gobreaker.StateClosed, repo.breaker.State(),
			"misses against a healthy cache must not trip the breaker")

		// Invalidation still works, so updates are not served stale.
		link := &model.Link{ID: uuid.New(), Slug: "cold08", OriginalURL: "https://example.com/old"}
		require.NoError(t, repo.Create(ctx, link))
		_, err := repo.GetBySlug(ctx, "cold08")
		require.NoError(t, err)

		_, err = repo.UpdateOriginalURL(ctx, link.ID, "https://example.com/new")
		require.NoError(t, err)

		found, err := repo.GetBySlug(ctx, "cold08")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/new", found.OriginalURL)
	})

	t.Run("soft delete invalidates the cached slug", func(t *testing.T) {
		testDB.Cleanup(ctx)
		testCache.Cleanup(ctx)

		repo := NewCachedLinkRepository(NewLinkRepository(testDB.Pool), testCache.Client, cacheTTL)

		link := &model.Link{ID: uuid.New(), Slug: "inv002", OriginalURL: "https://example.com"}
		require.NoError(t, repo.Create(ctx, link))
		_, err := repo.GetBySlug(ctx, "inv002")
		require.NoError(t, err)

		require.NoError(t, repo.SoftDelete(ctx, link.ID))

		_, err = repo.GetBySlug(ctx, "inv002")
		assert.ErrorIs(t, err, ErrNotFound, "deleted link must not be served from cache")
	})
}
