package model

import (
	"time"

	"github.com/google/uuid"
)

// Link represents a short-link record.
// A non-nil DeletedAt marks the record as soft-deleted: it is kept in
// storage but excluded from lookups, listings and uniqueness checks.
type Link struct {
	ID            uuid.UUID  `json:"id"`
	Slug          string     `json:"slug"`
	OriginalURL   string     `json:"original_url"`
	IsCustomAlias bool       `json:"is_custom_alias"`
	AccessCount   int64      `json:"access_count"`
	OwnerID       *uuid.UUID `json:"owner_id,omitempty"` // nil for anonymously created links
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// User is the minimal caller identity resolved by the auth middleware.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateLinkRequest represents the request body for creating a short link
type CreateLinkRequest struct {
	URL         string `json:"url" binding:"required,url,max=2048"`
	CustomAlias string `json:"custom_alias,omitempty" binding:"omitempty,min=3,max=30"`
}

// UpdateLinkRequest represents the request body for updating a link's target
type UpdateLinkRequest struct {
	URL string `json:"url" binding:"required,url,max=2048"`
}

// CreateLinkResponse represents the response for a created short link
type CreateLinkResponse struct {
	ID          uuid.UUID `json:"id"`
	OriginalURL string    `json:"original_url"`
	ShortURL    string    `json:"short_url"`
	Slug        string    `json:"slug"`
	AccessCount int64     `json:"access_count"`
	CreatedAt   string    `json:"created_at"`
}

// LinkView represents a link as returned by the my-urls listing
type LinkView struct {
	ID            uuid.UUID `json:"id"`
	OriginalURL   string    `json:"original_url"`
	ShortURL      string    `json:"short_url"`
	Slug          string    `json:"slug"`
	AccessCount   int64     `json:"access_count"`
	IsCustomAlias bool      `json:"is_custom_alias"`
	CreatedAt     string    `json:"created_at"`
	UpdatedAt     string    `json:"updated_at"`
}

// UpdateLinkResponse represents the view returned after a successful update
type UpdateLinkResponse struct {
	ID          uuid.UUID `json:"id"`
	OriginalURL string    `json:"original_url"`
	ShortURL    string    `json:"short_url"`
	Slug        string    `json:"slug"`
	AccessCount int64     `json:"access_count"`
	UpdatedAt   string    `json:"updated_at"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
