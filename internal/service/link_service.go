package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/slugr/url-shortener/internal/analytics"
	"github.com/slugr/url-shortener/internal/model"
	"github.com/slugr/url-shortener/internal/observability"
	"github.com/slugr/url-shortener/internal/repository"
)

var (
	ErrAuthRequired = errors.New("custom aliases require authentication")
	ErrLinkNotFound = errors.New("link not found")
	ErrForbidden    = errors.New("link belongs to another user")
)

// LinkService implements the five public operations: create, list-mine,
// update, delete and redirect. It holds no mutable state of its own;
// everything flows through the injected store, allocator and generator.
type LinkService struct {
	store   repository.LinkStore
	alloc   *SlugAllocator
	gen     *SlugGenerator
	events  analytics.EventPublisher // nil when publishing is disabled
	baseURL string
	logger  *slog.Logger
}

// LinkServiceInterface defines the contract consumed by the transport layer
type LinkServiceInterface interface {
	CreateShortLink(ctx context.Context, req *model.CreateLinkRequest, callerID *uuid.UUID) (*model.CreateLinkResponse, error)
	ListMyLinks(ctx context.Context, callerID uuid.UUID) ([]model.LinkView, error)
	UpdateLink(ctx context.Context, id uuid.UUID, req *model.UpdateLinkRequest, callerID uuid.UUID) (*model.UpdateLinkResponse, error)
	DeleteLink(ctx context.Context, id uuid.UUID, callerID uuid.UUID) error
	Redirect(ctx context.Context, slug string) (string, error)
}

var _ LinkServiceInterface = (*LinkService)(nil)

// NewLinkService creates a new link service
func NewLinkService(store repository.LinkStore, alloc *SlugAllocator, gen *SlugGenerator, events analytics.EventPublisher, baseURL string, logger *slog.Logger) *LinkService {
	return &LinkService{
		store:   store,
		alloc:   alloc,
		gen:     gen,
		events:  events,
		baseURL: baseURL,
		logger:  logger,
	}
}

// CreateShortLink persists a new short link. A caller-supplied alias
// requires an authenticated caller and is stored lowercased; otherwise
// a slug is generated. The store's uniqueness constraint backs up the
// pre-validation, so a racing duplicate surfaces as ErrAliasInUse.
func (s *LinkService) CreateShortLink(ctx context.Context, req *model.CreateLinkRequest, callerID *uuid.UUID) (*model.CreateLinkResponse, error) {
	var (
		slug          string
		isCustomAlias bool
	)

	if req.CustomAlias != "" {
		if callerID == nil {
			return nil, ErrAuthRequired
		}
		validated, err := s.alloc.ValidateCustomAlias(ctx, req.CustomAlias)
		if err != nil {
			return nil, err
		}
		slug = validated
		isCustomAlias = true
	} else {
		generated, err := s.alloc.GenerateUnique(ctx)
		if err != nil {
			return nil, err
		}
		slug = generated
	}

	link := &model.Link{
		ID:            uuid.New(),
		Slug:          slug,
		OriginalURL:   req.URL,
		IsCustomAlias: isCustomAlias,
		OwnerID:       callerID,
	}

	if err := s.store.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrSlugConflict) {
			// Lost the validate-then-create race.
			return nil, ErrAliasInUse
		}
		return nil, err
	}

	s.gen.AddToCache(slug)
	origin := "generated"
	if isCustomAlias {
		origin = "custom_alias"
	}
	observability.LinksCreatedTotal.WithLabelValues(origin).Inc()

	return &model.CreateLinkResponse{
		ID:          link.ID,
		OriginalURL: link.OriginalURL,
		ShortURL:    s.baseURL + "/" + link.Slug,
		Slug:        link.Slug,
		AccessCount: link.AccessCount,
		CreatedAt:   link.CreatedAt.Format(time.RFC3339),
	}, nil
}

// ListMyLinks returns the caller's non-deleted links, newest first
func (s *LinkService) ListMyLinks(ctx context.Context, callerID uuid.UUID) ([]model.LinkView, error) {
	links, err := s.store.ListByOwner(ctx, callerID)
	if err != nil {
		return nil, err
	}

	views := make([]model.LinkView, 0, len(links))
	for _, link := range links {
		views = append(views, model.LinkView{
			ID:            link.ID,
			OriginalURL:   link.OriginalURL,
			ShortURL:      s.baseURL + "/" + link.Slug,
			Slug:          link.Slug,
			AccessCount:   link.AccessCount,
			IsCustomAlias: link.IsCustomAlias,
			CreatedAt:     link.CreatedAt.Format(time.RFC3339),
			UpdatedAt:     link.UpdatedAt.Format(time.RFC3339),
		})
	}
	return views, nil
}

// UpdateLink repoints a link to a new URL. Only the owner may update;
// anonymously created links have no owner and cannot be updated.
func (s *LinkService) UpdateLink(ctx context.Context, id uuid.UUID, req *model.UpdateLinkRequest, callerID uuid.UUID) (*model.UpdateLinkResponse, error) {
	link, err := s.store.GetByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	if link.OwnerID == nil || *link.OwnerID != callerID {
		return nil, ErrForbidden
	}

	updated, err := s.store.UpdateOriginalURL(ctx, id, req.URL)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	return &model.UpdateLinkResponse{
		ID:          updated.ID,
		OriginalURL: updated.OriginalURL,
		ShortURL:    s.baseURL + "/" + updated.Slug,
		Slug:        updated.Slug,
		AccessCount: updated.AccessCount,
		UpdatedAt:   updated.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// DeleteLink soft-deletes a link, with the same ownership rules as
// UpdateLink. The record stays in storage and its slug becomes
// assignable again.
func (s *LinkService) DeleteLink(ctx context.Context, id uuid.UUID, callerID uuid.UUID) error {
	link, err := s.store.GetByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotFound
		}
		return err
	}
	if link.OwnerID == nil || *link.OwnerID != callerID {
		return ErrForbidden
	}

	if err := s.store.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotFound
		}
		return err
	}
	return nil
}

// Redirect resolves a slug to its original URL and counts the access.
// This is the hot path: one store read (cache-aside) and one atomic
// increment, nothing else synchronous.
func (s *LinkService) Redirect(ctx context.Context, slug string) (string, error) {
	link, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrLinkNotFound
		}
		return "", err
	}

	count, err := s.store.IncrementAccessCount(ctx, link.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Deleted between lookup and increment.
			return "", ErrLinkNotFound
		}
		return "", err
	}
	observability.RedirectsTotal.Inc()

	if s.events != nil {
		ev := analytics.ClickEvent{
			LinkID:      link.ID,
			Slug:        link.Slug,
			AccessCount: count,
			OccurredAt:  time.Now().UTC(),
		}
		if err := s.events.PublishClick(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "failed to publish click event",
				slog.String("slug", link.Slug),
				slog.String("error", err.Error()))
		}
	}

	return link.OriginalURL, nil
}
