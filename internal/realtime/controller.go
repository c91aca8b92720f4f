package realtime

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"slidecast-backend/internal/models"
)

// ControlResult reports the authoritative presentation state after a
// successful control operation.
type ControlResult struct {
	IsActive          bool `json:"is_active"`
	CurrentSlideIndex int  `json:"current_slide_index"`
	TotalSlides       int  `json:"total_slides"`
}

// Controller applies presenter commands to a presentation. Every operation
// re-reads the stored state, validates the transition, persists the new
// state, and only then broadcasts it. Persistence failures surface as
// Unavailable and nothing is broadcast, so subscribers never see a state
// the store does not hold.
type Controller struct {
	rooms         *Rooms
	presentations PresentationStore
	slides        SlideStore
}

func NewController(rooms *Rooms, presentations PresentationStore, slides SlideStore) *Controller {
	return &Controller{rooms: rooms, presentations: presentations, slides: slides}
}

// Start activates the presentation at slide zero.
func (c *Controller) Start(ctx context.Context, presenterID, presentationID uuid.UUID) (*ControlResult, *Error) {
	pres, total, aerr := c.load(ctx, presenterID, presentationID)
	if aerr != nil {
		return nil, aerr
	}
	if pres.IsActive {
		return nil, &Error{Code: CodeInvalidState, Message: "presentation is already active"}
	}
	if total == 0 {
		return nil, &Error{Code: CodeInvalidState, Message: "cannot start a presentation with no slides"}
	}
	return c.commit(ctx, pres.ID, EventPresentationStarted, true, 0, total)
}

// Stop deactivates the presentation. The slide index is kept so a later
// start of the same deck still begins at zero but the stopped position
// remains visible to the presenter.
func (c *Controller) Stop(ctx context.Context, presenterID, presentationID uuid.UUID) (*ControlResult, *Error) {
	pres, total, aerr := c.load(ctx, presenterID, presentationID)
	if aerr != nil {
		return nil, aerr
	}
	if !pres.IsActive {
		return nil, &Error{Code: CodeInvalidState, Message: "presentation is not active"}
	}
	return c.commit(ctx, pres.ID, EventPresentationStopped, false, pres.CurrentSlideIndex, total)
}

// startStopEvent reports whether an event type flips the active flag. Those
// events go to the presenter room too, so a second presenter tab that never
// joined as a participant still follows along.
func startStopEvent(event string) bool {
	return event == EventPresentationStarted || event == EventPresentationStopped
}

// Goto jumps to an arbitrary slide of an active presentation.
func (c *Controller) Goto(ctx context.Context, presenterID, presentationID uuid.UUID, slideIndex int) (*ControlResult, *Error) {
	pres, total, aerr := c.load(ctx, presenterID, presentationID)
	if aerr != nil {
		return nil, aerr
	}
	if !pres.IsActive {
		return nil, &Error{Code: CodeInvalidState, Message: "presentation is not active"}
	}
	if total == 0 {
		return nil, &Error{Code: CodeOutOfRange, Message: "presentation has no slides"}
	}
	if slideIndex < 0 || slideIndex >= total {
		return nil, Errorf(CodeOutOfRange, "valid range 0-%d", total-1)
	}
	return c.commit(ctx, pres.ID, EventSlideChanged, true, slideIndex, total)
}

// Next advances by one slide.
func (c *Controller) Next(ctx context.Context, presenterID, presentationID uuid.UUID) (*ControlResult, *Error) {
	pres, total, aerr := c.load(ctx, presenterID, presentationID)
	if aerr != nil {
		return nil, aerr
	}
	if !pres.IsActive {
		return nil, &Error{Code: CodeInvalidState, Message: "presentation is not active"}
	}
	if pres.CurrentSlideIndex >= total-1 {
		return nil, &Error{Code: CodeAlreadyAtBoundary, Message: "already at the last slide"}
	}
	return c.commit(ctx, pres.ID, EventSlideChanged, true, pres.CurrentSlideIndex+1, total)
}

// Prev steps back by one slide.
func (c *Controller) Prev(ctx context.Context, presenterID, presentationID uuid.UUID) (*ControlResult, *Error) {
	pres, total, aerr := c.load(ctx, presenterID, presentationID)
	if aerr != nil {
		return nil, aerr
	}
	if !pres.IsActive {
		return nil, &Error{Code: CodeInvalidState, Message: "presentation is not active"}
	}
	if pres.CurrentSlideIndex <= 0 {
		return nil, &Error{Code: CodeAlreadyAtBoundary, Message: "already at the first slide"}
	}
	return c.commit(ctx, pres.ID, EventSlideChanged, true, pres.CurrentSlideIndex-1, total)
}

func (c *Controller) load(ctx context.Context, presenterID, presentationID uuid.UUID) (*models.Presentation, int, *Error) {
	pres, err := c.presentations.GetByID(ctx, presentationID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, 0, &Error{Code: CodeNotFound, Message: "presentation not found"}
		}
		log.Printf("controller: presentation load %s: %v", presentationID, err)
		return nil, 0, &Error{Code: CodeUnavailable, Message: "could not load presentation"}
	}
	if pres.PresenterID != presenterID {
		return nil, 0, &Error{Code: CodeForbidden, Message: "you are not the presenter of this presentation"}
	}
	total, err := c.slides.CountByPresentation(ctx, presentationID)
	if err != nil {
		log.Printf("controller: slide count %s: %v", presentationID, err)
		return nil, 0, &Error{Code: CodeUnavailable, Message: "could not load presentation"}
	}
	return pres, total, nil
}

// commit persists the new state, then announces it. Broadcasting happens
// strictly after the store accepted the write; a state the store does not
// hold is never announced.
func (c *Controller) commit(ctx context.Context, presentationID uuid.UUID, event string, isActive bool, slideIndex, total int) (*ControlResult, *Error) {
	if err := c.presentations.UpdateState(ctx, presentationID, isActive, slideIndex); err != nil {
		log.Printf("controller: persist state %s: %v", presentationID, err)
		return nil, &Error{Code: CodeUnavailable, Message: "could not save presentation state"}
	}

	ev := Envelope{Type: event, Payload: statePayload(presentationID, isActive, slideIndex, total)}
	c.rooms.Broadcast(PresentationRoom(presentationID), ev)
	if startStopEvent(event) {
		c.rooms.Broadcast(PresenterRoom(presentationID), ev)
	}

	return &ControlResult{IsActive: isActive, CurrentSlideIndex: slideIndex, TotalSlides: total}, nil
}
