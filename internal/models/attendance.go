package models

import (
	"time"

	"github.com/google/uuid"
)

// Attendance event kinds.
const (
	AttendanceJoined = "joined"
	AttendanceLeft   = "left"
	AttendanceSwept  = "swept"
)

// AttendanceEvent is one row of a presentation's attendance log. Events are
// queued from the live path and written to the database by workers, so a
// slow database never stalls a broadcast.
type AttendanceEvent struct {
	ID             uuid.UUID `json:"id"`
	PresentationID uuid.UUID `json:"presentation_id"`
	SessionID      string    `json:"session_id"`
	DisplayName    string    `json:"display_name"`
	Anonymous      bool      `json:"anonymous"`
	Kind           string    `json:"kind"` // "joined" | "left" | "swept"
	OccurredAt     time.Time `json:"occurred_at"`
	Attempts       int       `json:"attempts"`
}
