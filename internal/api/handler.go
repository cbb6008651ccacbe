package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slugr/url-shortener/internal/middleware"
	"github.com/slugr/url-shortener/internal/model"
	"github.com/slugr/url-shortener/internal/service"
)

// aliasPattern constrains custom aliases to the slug alphabet plus
// hyphens. Generated slugs are stricter (6 alphanumerics) but that is
// the generator's job, not the transport's.
var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// Handler holds HTTP handlers and dependencies.
// It follows the dependency injection pattern, receiving
// interfaces rather than concrete implementations for testability.
type Handler struct {
	linkService service.LinkServiceInterface // slug allocation and link management
	auth        *middleware.Authenticator    // caller identity resolution
	db          DBInterface                  // Database connection for health checks
	cache       CacheInterface               // Cache connection for health checks
	logger      *slog.Logger                 // Structured logger for validation/error logging
}

// DBInterface defines the database operations needed by the handler.
// This interface allows for easy mocking in unit tests without
// requiring a real database connection.
type DBInterface interface {
	Ping(ctx context.Context) error // Check database connectivity
	Close()                         // Close database connection
}

// CacheInterface defines the cache operations needed by the handler.
type CacheInterface interface {
	Ping(ctx context.Context) error
}

// NewHandler creates a new handler instance with the provided dependencies.
func NewHandler(linkService service.LinkServiceInterface, auth *middleware.Authenticator, db DBInterface, cache CacheInterface, logger *slog.Logger) *Handler {
	return &Handler{
		linkService: linkService,
		auth:        auth,
		db:          db,
		cache:       cache,
		logger:      logger,
	}
}

// RegisterRoutes registers all route definitions on the given Gin engine.
// The caller is responsible for creating the engine and adding global
// middleware before calling this method. The static route names
// (shorten, my-urls, ...) are exactly the reserved slugs the allocator
// refuses to assign.
//
// Routes:
//   - Health and metrics endpoints for monitoring
//   - POST /shorten with optional identity
//   - /my-urls management group, identity required
//   - Public redirect endpoint, registered last to avoid conflicts
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/shorten", h.auth.Optional(), h.createShortLink)

	mine := r.Group("/my-urls", h.auth.Require())
	{
		mine.GET("", h.listMyLinks)
		mine.PUT("/:id", h.updateLink)
		mine.DELETE("/:id", h.deleteLink)
	}

	r.GET("/:slug", h.redirect)
}

// healthCheck handles GET /health
// Response codes:
//   - 200 OK: All dependencies are healthy
//   - 503 Service Unavailable: One or more dependencies are down
func (h *Handler) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	cacheErr := h.cache.Ping(ctx)
	dbErr := h.db.Ping(ctx)

	status := "ok"
	code := http.StatusOK
	deps := gin.H{"cache": "up", "database": "up"}

	if cacheErr != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		deps["cache"] = "down"
	}
	if dbErr != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		deps["database"] = "down"
	}

	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}

// createShortLink handles POST /shorten
// Creates a short link for the given URL, optionally under a custom
// alias when the caller is authenticated.
// Response codes:
//   - 201 Created: Short link successfully created
//   - 400 Bad Request: Invalid request body, URL, or alias format
//   - 401 Unauthorized: Custom alias requested without identity
//   - 409 Conflict: Alias reserved or already in use
//   - 500 Internal Server Error: Unexpected error (incl. double collision)
func (h *Handler) createShortLink(c *gin.Context) {
	ctx := c.Request.Context()
	var req model.CreateLinkRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path))
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CustomAlias != "" && !aliasPattern.MatchString(req.CustomAlias) {
		h.errorResponse(c, http.StatusBadRequest, "Invalid custom alias")
		return
	}

	var callerID *uuid.UUID
	if id, ok := middleware.CallerID(c); ok {
		callerID = &id
	}

	resp, err := h.linkService.CreateShortLink(ctx, &req, callerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAuthRequired):
			h.errorResponse(c, http.StatusUnauthorized, "Custom aliases require authentication")
		case errors.Is(err, service.ErrReservedSlug):
			h.errorResponse(c, http.StatusConflict, "Alias is a reserved route")
		case errors.Is(err, service.ErrAliasInUse):
			h.errorResponse(c, http.StatusConflict, "Alias is already in use")
		default:
			h.logger.ErrorContext(ctx, "unexpected error creating short link",
				slog.String("error", err.Error()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// listMyLinks handles GET /my-urls
// Returns the caller's non-deleted links, newest first.
// Response codes:
//   - 200 OK
//   - 401 Unauthorized: Missing or invalid API key
//   - 500 Internal Server Error: Unexpected error
func (h *Handler) listMyLinks(c *gin.Context) {
	ctx := c.Request.Context()

	callerID, ok := middleware.CallerID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "A valid API key is required")
		return
	}

	views, err := h.linkService.ListMyLinks(ctx, callerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "unexpected error listing links",
			slog.String("error", err.Error()))
		h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, views)
}

// updateLink handles PUT /my-urls/:id
// Repoints one of the caller's links to a new URL.
// Response codes:
//   - 200 OK: Updated view returned
//   - 400 Bad Request: Invalid id or body
//   - 403 Forbidden: Link belongs to another user
//   - 404 Not Found: No non-deleted link with that id
//   - 500 Internal Server Error: Unexpected error
func (h *Handler) updateLink(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid link id")
		return
	}

	var req model.UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	callerID, ok := middleware.CallerID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "A valid API key is required")
		return
	}

	resp, err := h.linkService.UpdateLink(ctx, id, &req, callerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLinkNotFound):
			h.errorResponse(c, http.StatusNotFound, "Link not found")
		case errors.Is(err, service.ErrForbidden):
			h.errorResponse(c, http.StatusForbidden, "You do not own this link")
		default:
			h.logger.ErrorContext(ctx, "unexpected error updating link",
				slog.String("error", err.Error()),
				slog.String("link_id", id.String()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// deleteLink handles DELETE /my-urls/:id
// Soft-deletes one of the caller's links.
// Response codes:
//   - 204 No Content: Link successfully deleted
//   - 400 Bad Request: Invalid id
//   - 403 Forbidden: Link belongs to another user
//   - 404 Not Found: No non-deleted link with that id
//   - 500 Internal Server Error: Unexpected error
func (h *Handler) deleteLink(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid link id")
		return
	}

	callerID, ok := middleware.CallerID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "A valid API key is required")
		return
	}

	if err := h.linkService.DeleteLink(ctx, id, callerID); err != nil {
		switch {
		case errors.Is(err, service.ErrLinkNotFound):
			h.errorResponse(c, http.StatusNotFound, "Link not found")
		case errors.Is(err, service.ErrForbidden):
			h.errorResponse(c, http.StatusForbidden, "You do not own this link")
		default:
			h.logger.ErrorContext(ctx, "unexpected error deleting link",
				slog.String("error", err.Error()),
				slog.String("link_id", id.String()))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// redirect handles GET /:slug
// Resolves the slug, increments the access count and redirects.
// A 302 keeps clients re-resolving through us so every access is
// counted; a 301 would let them cache the target away.
// Response codes:
//   - 302 Found: Redirects to the original URL
//   - 404 Not Found: Slug does not resolve to a non-deleted link
//   - 500 Internal Server Error: Unexpected error
func (h *Handler) redirect(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	url, err := h.linkService.Redirect(ctx, slug)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLinkNotFound):
			h.errorResponse(c, http.StatusNotFound, "Link not found")
		default:
			h.logger.ErrorContext(ctx, "unexpected error during redirect",
				slog.String("error", err.Error()),
				slog.String("slug", slug))
			h.errorResponse(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.Redirect(http.StatusFound, url)
}

// errorResponse sends a standardized JSON error response.
func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, model.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
