package realtime

import (
	"context"

	"github.com/google/uuid"

	"slidecast-backend/internal/models"
)

// PresentationStore is the persistence collaborator for presentation
// records. Implementations report a missing row with models.ErrNotFound.
type PresentationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Presentation, error)
	GetByAccessCode(ctx context.Context, code string) (*models.Presentation, error)
	UpdateState(ctx context.Context, id uuid.UUID, isActive bool, slideIndex int) error
}

// SlideStore reports how many slides a presentation currently has.
type SlideStore interface {
	CountByPresentation(ctx context.Context, presentationID uuid.UUID) (int, error)
}

// AttendanceSink accepts attendance events for asynchronous recording.
// Record must never block the caller; implementations drop on overflow.
type AttendanceSink interface {
	Record(ev models.AttendanceEvent)
}
