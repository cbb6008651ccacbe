package service

import (
	"context"
	"errors"
	"strings"

	"github.com/slugr/url-shortener/internal/observability"
	"github.com/slugr/url-shortener/internal/repository"
)

// ReservedSlugs are slug values that collide with fixed application
// routes and must never be assigned, whatever the casing.
var ReservedSlugs = map[string]struct{}{
	"api":     {},
	"auth":    {},
	"docs":    {},
	"shorten": {},
	"my-urls": {},
}

var (
	ErrReservedSlug  = errors.New("alias collides with a reserved route")
	ErrAliasInUse    = errors.New("alias is already in use")
	ErrRareCollision = errors.New("both slug generation attempts collided, check the slug generator")
)

// SlugAllocator turns a generation request into a slug that is unique
// among non-deleted links, or validates a caller-supplied alias.
type SlugAllocator struct {
	store repository.LinkStore
	gen   *SlugGenerator

	// Generation strategies, split out so tests can force candidates.
	primary  func() string
	fallback func() string
}

// NewSlugAllocator creates an allocator backed by the given store and
// generator.
func NewSlugAllocator(store repository.LinkStore, gen *SlugGenerator) *SlugAllocator {
	return &SlugAllocator{
		store:    store,
		gen:      gen,
		primary:  gen.GeneratePrimary,
		fallback: gen.GenerateFallback,
	}
}

// IsReservedSlug reports whether the slug matches a reserved route,
// case-insensitively.
func IsReservedSlug(slug string) bool {
	_, ok := ReservedSlugs[strings.ToLower(slug)]
	return ok
}

// ValidateCustomAlias lowercases the alias and checks it against the
// reserved set and the store. Returns the normalized alias on success.
//
// This check-then-act is racy under concurrent requests for the same
// alias; the store's uniqueness constraint at persist time is the final
// arbiter and the losing writer surfaces ErrAliasInUse there.
func (a *SlugAllocator) ValidateCustomAlias(ctx context.Context, alias string) (string, error) {
	alias = strings.ToLower(alias)

	if IsReservedSlug(alias) {
		return "", ErrReservedSlug
	}

	_, err := a.store.GetBySlug(ctx, alias)
	if err == nil {
		return "", ErrAliasInUse
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}
	return alias, nil
}

// GenerateUnique produces a slug that no non-deleted link holds. The
// primary strategy gets one attempt; on collision the fallback strategy
// gets exactly one more. A second collision is a (1/62^6)^2 event under
// honest randomness, so it is reported as ErrRareCollision and counted
// for alerting instead of being retried further.
func (a *SlugAllocator) GenerateUnique(ctx context.Context) (string, error) {
	slug := a.primary()

	taken, err := a.slugTaken(ctx, slug)
	if err != nil {
		return "", err
	}
	if !taken {
		return slug, nil
	}
	observability.SlugCollisionsTotal.Inc()

	slug = a.fallback()
	taken, err = a.slugTaken(ctx, slug)
	if err != nil {
		return "", err
	}
	if !taken {
		return slug, nil
	}

	observability.RareCollisionsTotal.Inc()
	return "", ErrRareCollision
}

// slugTaken consults the recency cache before the store. A cache hit
// counts as taken without a query; a miss proves nothing, so the store
// is always asked.
func (a *SlugAllocator) slugTaken(ctx context.Context, slug string) (bool, error) {
	if a.gen.InCache(slug) {
		return true, nil
	}
	_, err := a.store.GetBySlug(ctx, slug)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return false, err
}
