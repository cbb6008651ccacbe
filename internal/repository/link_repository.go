package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/slugr/url-shortener/internal/model"
)

var tracer = otel.Tracer("internal/repository")

var (
	ErrNotFound     = errors.New("link not found")
	ErrSlugConflict = errors.New("slug already exists")
)

// LinkStore is the persistence contract the service layer depends on.
// Satisfied by LinkRepository and by CachedLinkRepository.
type LinkStore interface {
	Create(ctx context.Context, link *model.Link) error
	GetBySlug(ctx context.Context, slug string) (*model.Link, error)
	GetByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*model.Link, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Link, error)
	UpdateOriginalURL(ctx context.Context, id uuid.UUID, newURL string) (*model.Link, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	IncrementAccessCount(ctx context.Context, id uuid.UUID) (int64, error)
}

// LinkRepository handles database operations for short links.
// Soft-deleted rows (deleted_at set) are retained but excluded from
// every lookup except GetByID with includeDeleted.
type LinkRepository struct {
	db *pgxpool.Pool
}

// NewLinkRepository creates a new link repository
func NewLinkRepository(db *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create inserts a new link record. The slug is expected to be
// pre-validated by the allocator; the partial unique index on
// (slug) WHERE deleted_at IS NULL is the last-resort guard against the
// validate-then-create race, and its violation is mapped to
// ErrSlugConflict so callers can surface an alias conflict.
func (r *LinkRepository) Create(ctx context.Context, link *model.Link) error {
	ctx, span := tracer.Start(ctx, "db.insert",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "INSERT"),
			attribute.String("db.sql.table", "links"),
			attribute.String("slug", link.Slug),
		),
	)
	defer span.End()

	query := `
		INSERT INTO links (id, slug, original_url, is_custom_alias, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(
		ctx,
		query,
		link.ID,
		link.Slug,
		link.OriginalURL,
		link.IsCustomAlias,
		link.OwnerID,
	).Scan(&link.CreatedAt, &link.UpdatedAt)

	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSlugConflict
		}
		return err
	}

	return nil
}

// GetBySlug retrieves a non-deleted link by its slug
func (r *LinkRepository) GetBySlug(ctx context.Context, slug string) (*model.Link, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "links"),
			attribute.String("slug", slug),
		),
	)
	defer span.End()

	query := `
		SELECT id, slug, original_url, is_custom_alias, access_count,
		       owner_id, created_at, updated_at, deleted_at
		FROM links
		WHERE slug = $1 AND deleted_at IS NULL
	`
	return r.scanLink(ctx, span, query, slug)
}

// GetByID retrieves a link by id. Soft-deleted records are only visible
// when includeDeleted is true.
func (r *LinkRepository) GetByID(ctx context.Context, id uuid.UUID, includeDeleted bool) (*model.Link, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "links"),
			attribute.String("link_id", id.String()),
		),
	)
	defer span.End()

	query := `
		SELECT id, slug, original_url, is_custom_alias, access_count,
		       owner_id, created_at, updated_at, deleted_at
		FROM links
		WHERE id = $1 AND deleted_at IS NULL
	`
	if includeDeleted {
		query = `
			SELECT id, slug, original_url, is_custom_alias, access_count,
			       owner_id, created_at, updated_at, deleted_at
			FROM links
			WHERE id = $1
		`
	}
	return r.scanLink(ctx, span, query, id)
}

// ListByOwner returns the owner's non-deleted links, newest first
func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Link, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "links"),
			attribute.String("owner_id", ownerID.String()),
		),
	)
	defer span.End()

	query := `
		SELECT id, slug, original_url, is_custom_alias, access_count,
		       owner_id, created_at, updated_at, deleted_at
		FROM links
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var links []model.Link
	for rows.Next() {
		var link model.Link
		if err := rows.Scan(
			&link.ID,
			&link.Slug,
			&link.OriginalURL,
			&link.IsCustomAlias,
			&link.AccessCount,
			&link.OwnerID,
			&link.CreatedAt,
			&link.UpdatedAt,
			&link.DeletedAt,
		); err != nil {
			span.RecordError(err)
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return links, nil
}

// UpdateOriginalURL repoints a non-deleted link and bumps updated_at
func (r *LinkRepository) UpdateOriginalURL(ctx context.Context, id uuid.UUID, newURL string) (*model.Link, error) {
	ctx, span := tracer.Start(ctx, "db.update",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "UPDATE"),
			attribute.String("db.sql.table", "links"),
			attribute.String("link_id", id.String()),
		),
	)
	defer span.End()

	query := `
		UPDATE links
		SET original_url = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING id, slug, original_url, is_custom_alias, access_count,
		          owner_id, created_at, updated_at, deleted_at
	`
	return r.scanLink(ctx, span, query, id, newURL)
}

// SoftDelete marks a link deleted by setting deleted_at. The row stays
// in storage; the partial unique index frees the slug for reuse.
func (r *LinkRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "db.update",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "UPDATE"),
			attribute.String("db.sql.table", "links"),
			attribute.String("link_id", id.String()),
		),
	)
	defer span.End()

	query := `
		UPDATE links
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementAccessCount bumps the access counter by one as a single
// atomic UPDATE, so concurrent redirects never lose an increment.
func (r *LinkRepository) IncrementAccessCount(ctx context.Context, id uuid.UUID) (int64, error) {
	ctx, span := tracer.Start(ctx, "db.update",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "UPDATE"),
			attribute.String("db.sql.table", "links"),
			attribute.String("link_id", id.String()),
		),
	)
	defer span.End()

	query := `
		UPDATE links
		SET access_count = access_count + 1
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING access_count
	`
	var count int64
	err := r.db.QueryRow(ctx, query, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		span.RecordError(err)
		return 0, err
	}
	return count, nil
}

func (r *LinkRepository) scanLink(ctx context.Context, span trace.Span, query string, args ...any) (*model.Link, error) {
	var link model.Link
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&link.ID,
		&link.Slug,
		&link.OriginalURL,
		&link.IsCustomAlias,
		&link.AccessCount,
		&link.OwnerID,
		&link.CreatedAt,
		&link.UpdatedAt,
		&link.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	return &link, nil
}
