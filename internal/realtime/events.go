package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Event types broadcast to rooms.
const (
	EventPresentationStarted = "presentation.started"
	EventPresentationStopped = "presentation.stopped"
	EventSlideChanged        = "slide.changed"
	EventParticipantJoined   = "participant.joined"
	EventParticipantLeft     = "participant.left"
	EventReactionSent        = "reaction.sent"
)

// Envelope is one outbound frame. ID is set only on acks, where it echoes
// the id of the client frame being answered.
type Envelope struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload"`
}

// StatePayload accompanies presentation.started, presentation.stopped and
// slide.changed events.
type StatePayload struct {
	PresentationID    uuid.UUID `json:"presentation_id"`
	IsActive          bool      `json:"is_active"`
	CurrentSlideIndex int       `json:"current_slide_index"`
	TotalSlides       int       `json:"total_slides"`
	Timestamp         time.Time `json:"timestamp"`
}

// PresencePayload accompanies participant.joined and participant.left
// events. It never carries the session id, which stays private between the
// server and the session's owner.
type PresencePayload struct {
	PresentationID   uuid.UUID `json:"presentation_id"`
	DisplayName      string    `json:"display_name"`
	ParticipantCount int       `json:"participant_count"`
	Timestamp        time.Time `json:"timestamp"`
}

// ReactionPayload accompanies reaction.sent events, delivered to everyone
// viewing the same slide as the sender.
type ReactionPayload struct {
	PresentationID uuid.UUID `json:"presentation_id"`
	SlideIndex     int       `json:"slide_index"`
	DisplayName    string    `json:"display_name"`
	Emoji          string    `json:"emoji"`
	Timestamp      time.Time `json:"timestamp"`
}

func statePayload(presentationID uuid.UUID, isActive bool, slideIndex, totalSlides int) StatePayload {
	return StatePayload{
		PresentationID:    presentationID,
		IsActive:          isActive,
		CurrentSlideIndex: slideIndex,
		TotalSlides:       totalSlides,
		Timestamp:         time.Now().UTC(),
	}
}

func presencePayload(presentationID uuid.UUID, displayName string, count int) PresencePayload {
	return PresencePayload{
		PresentationID:   presentationID,
		DisplayName:      displayName,
		ParticipantCount: count,
		Timestamp:        time.Now().UTC(),
	}
}
