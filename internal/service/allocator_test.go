package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slugr/url-shortener/internal/model"
	"github.com/slugr/url-shortener/internal/repository"
)

// MockLinkStore mocks repository.LinkStore
type MockLinkStore struct {
	mock.Mock
}

func (m *MockLinkStore) Create(ctx context.Context, link *model.Link) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockLinkStore) GetBySlug(ctx context.Context, slug string) (*model.Link, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Link), args.Error(1)
}

func (m *MockLinkStore) GetByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*model.Link, error) {
	args := m.Called(ctx, id, includeDeleted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Link), args.Error(1)
}

func (m *MockLinkStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Link, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Link), args.Error(1)
}

func (m *MockLinkStore) UpdateOriginalURL(ctx context.Context, id uuid.UUID, newURL string) (*model.Link, error) {
	args := m.Called(ctx, id, newURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Link), args.Error(1)
}

func (m *MockLinkStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLinkStore) IncrementAccessCount(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

var _ repository.LinkStore = (*MockLinkStore)(nil)

func TestSlugAllocator_ValidateCustomAlias(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects reserved names regardless of case", func(t *testing.T) {
		store := new(MockLinkStore)
		g := NewSlugGenerator()
		defer g.Stop()
		alloc := NewSlugAllocator(store, g)

		for _, alias := range []string{"API", "Auth", "Docs", "Shorten", "My-Urls"} {
			_, err := alloc.ValidateCustomAlias(ctx, alias)
			assert.ErrorIs(t, err, ErrReservedSlug, "alias %q", alias)
		}
		// Reserved names never reach the store.
		store.AssertNotCalled(t, "GetBySlug")
	})

	t.Run("rejects an alias bound to a live link", func(t *testing.T) {
		store := new(MockLinkStore)
		g := NewSlugGenerator()
		defer g.Stop()
		alloc := NewSlugAllocator(store, g)

		store.On("GetBySlug", ctx, "taken").Return(&model.Link{Slug: "taken"}, nil)

		_, err := alloc.ValidateCustomAlias(ctx, "Taken")
		assert.ErrorIs(t, err, ErrAliasInUse)
	})

	t.Run("accepts a free alias and lowercases it", func(t *testing.T) {
		store := new(MockLinkStore)
		g := NewSlugGenerator()
		defer g.Stop()
		alloc := NewSlugAllocator(store, g)

		store.On("GetBySlug", ctx, "myalias").Return(nil, repository.ErrNotFound)

		alias, err := alloc.ValidateCustomAlias(ctx, "MyAlias")
		require.NoError(t, err)
		assert.Equal(t, "myalias", alias)
	})
}

func TestSlugAllocator_GenerateUnique(t *testing.T) {
	ctx := context.Background()

	newAllocator := func(store *MockLinkStore, primary, fallback string) (*SlugAllocator, *SlugGenerator) {
		g := NewSlugGenerator()
		alloc := NewSlugAllocator(store, g)
		alloc.primary = func() string { return primary }
		alloc.fallback = func() string { return fallback }
		return alloc, g
	}

	t.Run("returns the primary candidate when free", func(t *testing.T) {
		store := new(MockLinkStore)
		alloc, g := newAllocator(store, "Aaa111", "Bbb222")
		defer g.Stop()

		store.On("GetBySlug", ctx, "Aaa111").Return(nil, repository.ErrNotFound)

		slug, err := alloc.GenerateUnique(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Aaa111", slug)
		store.AssertNumberOfCalls(t, "GetBySlug", 1)
	})

	t.Run("falls back after a primary collision, two store queries total", func(t *testing.T) {
		store := new(MockLinkStore)
		alloc, g := newAllocator(store, "Aaa111", "Bbb222")
		defer g.Stop()

		store.On("GetBySlug", ctx, "Aaa111").Return(&model.Link{Slug: "Aaa111"}, nil)
		store.On("GetBySlug", ctx, "Bbb222").Return(nil, repository.ErrNotFound)

		slug, err := alloc.GenerateUnique(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Bbb222", slug)
		store.AssertNumberOfCalls(t, "GetBySlug", 2)
	})

	t.Run("fails with ErrRareCollision when both attempts collide", func(t *testing.T) {
		store := new(MockLinkStore)
		alloc, g := newAllocator(store, "Aaa111", "Bbb222")
		defer g.Stop()

		store.On("GetBySlug", ctx, "Aaa111").Return(&model.Link{Slug: "Aaa111"}, nil)
		store.On("GetBySlug", ctx, "Bbb222").Return(&model.Link{Slug: "Bbb222"}, nil)

		_, err := alloc.GenerateUnique(ctx)
		assert.ErrorIs(t, err, ErrRareCollision)
		store.AssertNumberOfCalls(t, "GetBySlug", 2)
	})

	t.Run("recency cache hit skips the store query", func(t *testing.T) {
		store := new(MockLinkStore)
		alloc, g := newAllocator(store, "Ccc333", "Ddd444")
		defer g.Stop()

		g.AddToCache("Ccc333")
		store.On("GetBySlug", ctx, "Ddd444").Return(nil, repository.ErrNotFound)

		slug, err := alloc.GenerateUnique(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Ddd444", slug)
		// The cached primary candidate never hit the store.
		store.AssertNumberOfCalls(t, "GetBySlug", 1)
	})

	t.Run("propagates store errors unchanged", func(t *testing.T) {
		store := new(MockLinkStore)
		alloc, g := newAllocator(store, "Eee555", "Fff666")
		defer g.Stop()

		store.On("GetBySlug", ctx, "Eee555").Return(nil, assert.AnError)

		_, err := alloc.GenerateUnique(ctx)
		assert.ErrorIs(t, err, assert.AnError)
	})
}
