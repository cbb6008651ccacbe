package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/slugr/url-shortener/internal/model"
	"github.com/slugr/url-shortener/internal/repository"
)

// APIKeyHeader carries the caller's API key. Issuing and rotating keys
// is the auth service's job; this middleware only resolves them.
const APIKeyHeader = "X-API-Key"

const callerIDKey = "callerID"

// UserStore resolves API keys to users.
type UserStore interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.User, error)
}

// Authenticator attaches caller identity to requests.
type Authenticator struct {
	users  UserStore
	logger *slog.Logger
}

func NewAuthenticator(users UserStore, logger *slog.Logger) *Authenticator {
	return &Authenticator{users: users, logger: logger}
}

// Optional resolves the API key when one is present and otherwise lets
// the request through anonymously. Used on link creation, where an
// identity is only needed for custom aliases.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)
		if apiKey == "" {
			c.Next()
			return
		}

		user, err := a.resolve(c, apiKey)
		if err != nil {
			// An invalid key on an optional route is rejected rather
			// than downgraded to anonymous, so callers notice typos.
			a.abortUnauthorized(c, err)
			return
		}

		c.Set(callerIDKey, user.ID)
		c.Next()
	}
}

// Require rejects requests without a valid API key.
func (a *Authenticator) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)
		if apiKey == "" {
			a.abortUnauthorized(c, repository.ErrUserNotFound)
			return
		}

		user, err := a.resolve(c, apiKey)
		if err != nil {
			a.abortUnauthorized(c, err)
			return
		}

		c.Set(callerIDKey, user.ID)
		c.Next()
	}
}

func (a *Authenticator) resolve(c *gin.Context, apiKey string) (*model.User, error) {
	user, err := a.users.GetByAPIKey(c.Request.Context(), apiKey)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		a.logger.ErrorContext(c.Request.Context(), "api key lookup failed",
			slog.String("error", err.Error()))
	}
	return user, err
}

func (a *Authenticator) abortUnauthorized(c *gin.Context, err error) {
	status := http.StatusUnauthorized
	message := "A valid API key is required"
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		status = http.StatusInternalServerError
		message = "Internal server error"
	}
	c.AbortWithStatusJSON(status, model.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// CallerID returns the authenticated caller's id, if any.
func CallerID(c *gin.Context) (uuid.UUID, bool) {
	val, ok := c.Get(callerIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := val.(uuid.UUID)
	return id, ok
}
