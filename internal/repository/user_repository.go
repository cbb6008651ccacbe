package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/slugr/url-shortener/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository resolves caller identities for the auth middleware.
// Credential management lives in a separate service; this repository
// only reads the already-provisioned API keys.
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetByAPIKey looks up the user owning the given API key
func (r *UserRepository) GetByAPIKey(ctx context.Context, apiKey string) (*model.User, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "users"),
		),
	)
	defer span.End()

	query := `SELECT id, email, created_at FROM users WHERE api_key = $1`
	var user model.User
	err := r.db.QueryRow(ctx, query, apiKey).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	return &user, nil
}
