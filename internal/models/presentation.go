package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when a row does not exist, so
// callers can branch without knowing the storage driver.
var ErrNotFound = errors.New("not found")

// ErrDuplicateAccessCode is returned when an access code collides with an
// existing presentation.
var ErrDuplicateAccessCode = errors.New("access code already in use")

type Presentation struct {
	ID                uuid.UUID  `json:"id"`
	PresenterID       uuid.UUID  `json:"presenter_id"`
	Title             string     `json:"title"`
	AccessCode        string     `json:"access_code"`
	IsActive          bool       `json:"is_active"`
	CurrentSlideIndex int        `json:"current_slide_index"`
	ExpiresAt         *time.Time `json:"expires_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type Slide struct {
	ID             uuid.UUID `json:"id"`
	PresentationID uuid.UUID `json:"presentation_id"`
	Position       int       `json:"position"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	DeckPage       *int      `json:"deck_page"`
	CreatedAt      time.Time `json:"created_at"`
}

type CreatePresentationRequest struct {
	Title     string     `json:"title"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type UpdatePresentationRequest struct {
	Title     *string    `json:"title"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type CreateSlideRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
