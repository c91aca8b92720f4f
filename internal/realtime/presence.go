package realtime

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"slidecast-backend/internal/models"
)

// JoinRequest carries what a client supplies when attaching to a
// presentation. PriorSessionID is set only when resuming after a dropped
// connection.
type JoinRequest struct {
	AccessCode     string
	DisplayName    string
	PriorSessionID string
}

// JoinResult is returned to the joining client. SessionID is empty for
// presenters, who are addressed through their rooms rather than tracked as
// attendees.
type JoinResult struct {
	SessionID string
	Resumed   bool
	Snapshot  StateSnapshot
}

// StateSnapshot is the authoritative view of a presentation handed to a
// client at join time, so late joiners land on the live slide immediately.
type StateSnapshot struct {
	PresentationID    uuid.UUID `json:"presentation_id"`
	Title             string    `json:"title"`
	IsActive          bool      `json:"is_active"`
	CurrentSlideIndex int       `json:"current_slide_index"`
	TotalSlides       int       `json:"total_slides"`
	ParticipantCount  int       `json:"participant_count"`
}

// Presence orchestrates attendees entering and leaving presentations: it
// keeps the registry and room membership in step and announces arrivals and
// departures to the affected rooms.
type Presence struct {
	registry      *Registry
	rooms         *Rooms
	presentations PresentationStore
	slides        SlideStore
	attendance    AttendanceSink
}

func NewPresence(registry *Registry, rooms *Rooms, presentations PresentationStore, slides SlideStore, attendance AttendanceSink) *Presence {
	return &Presence{
		registry:      registry,
		rooms:         rooms,
		presentations: presentations,
		slides:        slides,
		attendance:    attendance,
	}
}

// Join attaches a connection to the presentation behind an access code. For
// participants it creates or resumes a session; for presenters it only
// establishes room membership on their own presentation. Calling Join again
// with the session id it already produced for the same connection is a
// harmless no-op success.
func (p *Presence) Join(ctx context.Context, sink Sink, ident Identity, req JoinRequest) (*JoinResult, *Error) {
	pres, totalSlides, aerr := p.lookup(ctx, req.AccessCode)
	if aerr != nil {
		return nil, aerr
	}
	connID := sink.ConnectionID()

	if ident.Role == RolePresenter {
		if ident.UserID != pres.PresenterID {
			return nil, &Error{Code: CodeForbidden, Message: "you are not the presenter of this presentation"}
		}
		p.rooms.Join(sink, PresentationRoom(pres.ID))
		p.rooms.Join(sink, PresenterRoom(pres.ID))
		return &JoinResult{Snapshot: p.snapshot(pres, totalSlides)}, nil
	}

	// Resuming is best effort: a session id the sweep already evicted, or
	// one issued for a different presentation, falls through to a fresh
	// join instead of failing the client.
	if req.PriorSessionID != "" {
		if res, ok := p.resume(sink, pres, totalSlides, req.PriorSessionID); ok {
			return res, nil
		}
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = ident.DisplayName
	}
	if displayName == "" {
		displayName = RandomDisplayName()
	}

	p.rooms.LeaveAll(connID)
	created, replaced := p.registry.Create(pres.ID, connID, displayName, ident.Anonymous, pres.CurrentSlideIndex)
	if replaced != nil {
		p.announceDeparture(*replaced, models.AttendanceLeft)
	}

	p.rooms.Join(sink, PresentationRoom(pres.ID))
	p.rooms.Join(sink, SlideRoom(pres.ID, created.SlideIndex))

	count := p.registry.CountFor(pres.ID)
	p.rooms.Broadcast(PresentationRoom(pres.ID), Envelope{
		Type:    EventParticipantJoined,
		Payload: presencePayload(pres.ID, created.DisplayName, count),
	})
	p.record(created, models.AttendanceJoined)

	snap := p.snapshot(pres, totalSlides)
	snap.ParticipantCount = count
	return &JoinResult{SessionID: created.SessionID, Snapshot: snap}, nil
}

// resume rebinds an existing session to the caller's connection. The old
// connection, if distinct, is closed and stripped of its room memberships;
// its eventual teardown then finds no session, which is the expected
// outcome of that race. A false return means the session is gone and the
// caller should create a fresh one.
func (p *Presence) resume(sink Sink, pres *models.Presentation, totalSlides int, priorSessionID string) (*JoinResult, bool) {
	connID := sink.ConnectionID()

	existing, ok := p.registry.Get(priorSessionID)
	if !ok || existing.PresentationID != pres.ID {
		return nil, false
	}

	if cur, ok := p.registry.GetByConnection(connID); ok && cur.SessionID != priorSessionID {
		if removed, ok := p.registry.RemoveBySessionID(cur.SessionID); ok {
			p.rooms.LeaveAll(connID)
			p.announceDeparture(removed, models.AttendanceLeft)
		}
	}

	sess, prevConn, ok := p.registry.Rebind(priorSessionID, connID)
	if !ok {
		return nil, false
	}
	if prevConn != connID {
		if old, ok := p.rooms.SinkFor(prevConn); ok {
			old.Close()
		}
		p.rooms.LeaveAll(prevConn)
	}

	p.rooms.Join(sink, PresentationRoom(pres.ID))
	p.rooms.Join(sink, SlideRoom(pres.ID, sess.SlideIndex))

	return &JoinResult{SessionID: sess.SessionID, Resumed: true, Snapshot: p.snapshot(pres, totalSlides)}, true
}

// Leave detaches a session on explicit request. The connection stays open;
// the client may join again later. Absence is not an error: the session may
// already be gone through a disconnect or sweep.
func (p *Presence) Leave(sessionID string) {
	sess, ok := p.registry.RemoveBySessionID(sessionID)
	if !ok {
		return
	}
	p.rooms.LeaveAll(sess.ConnectionID)
	p.announceDeparture(sess, models.AttendanceLeft)
}

// LeaveConnection detaches whatever session rides the connection, keeping
// the connection itself open for a later join.
func (p *Presence) LeaveConnection(connectionID string) {
	if sess, ok := p.registry.GetByConnection(connectionID); ok {
		p.Leave(sess.SessionID)
	}
}

// Disconnect cleans up after a connection closes for any reason. It always
// clears room membership; the session removal may find nothing if a resume
// already moved the session to a newer connection.
func (p *Presence) Disconnect(connectionID string) {
	sess, ok := p.registry.RemoveByConnectionID(connectionID)
	p.rooms.LeaveAll(connectionID)
	if !ok {
		return
	}
	p.announceDeparture(sess, models.AttendanceLeft)
}

// Touch refreshes the activity clock of whatever session rides the
// connection. Called for every inbound frame, pings and pongs included.
func (p *Presence) Touch(connectionID string) {
	p.registry.TouchByConnection(connectionID)
}

// ViewSlide records which slide the connection's participant is looking at
// and moves them between slide rooms so reactions reach the right audience.
func (p *Presence) ViewSlide(ctx context.Context, sink Sink, slideIndex int) *Error {
	connID := sink.ConnectionID()
	sess, ok := p.registry.GetByConnection(connID)
	if !ok {
		return &Error{Code: CodeNotFound, Message: "no session on this connection; join first"}
	}

	total, err := p.slides.CountByPresentation(ctx, sess.PresentationID)
	if err != nil {
		log.Printf("presence: slide count for %s: %v", sess.PresentationID, err)
		return &Error{Code: CodeUnavailable, Message: "could not load presentation state"}
	}
	if total == 0 {
		return &Error{Code: CodeOutOfRange, Message: "presentation has no slides"}
	}
	if slideIndex < 0 || slideIndex >= total {
		return Errorf(CodeOutOfRange, "valid range 0-%d", total-1)
	}

	sess, prev, ok := p.registry.SetSlideByConnection(connID, slideIndex)
	if !ok {
		return &Error{Code: CodeNotFound, Message: "no session on this connection; join first"}
	}
	if prev != slideIndex {
		p.rooms.Leave(connID, SlideRoom(sess.PresentationID, prev))
		p.rooms.Join(sink, SlideRoom(sess.PresentationID, slideIndex))
	}
	return nil
}

// React fans a participant's reaction out to everyone on the same slide and
// to the presenter.
func (p *Presence) React(connectionID, emoji string) *Error {
	if emoji == "" {
		return &Error{Code: CodeBadRequest, Message: "emoji required"}
	}
	if len(emoji) > 32 {
		return &Error{Code: CodeBadRequest, Message: "emoji too long"}
	}
	sess, ok := p.registry.GetByConnection(connectionID)
	if !ok {
		return &Error{Code: CodeNotFound, Message: "no session on this connection; join first"}
	}

	ev := Envelope{
		Type: EventReactionSent,
		Payload: ReactionPayload{
			PresentationID: sess.PresentationID,
			SlideIndex:     sess.SlideIndex,
			DisplayName:    sess.DisplayName,
			Emoji:          emoji,
			Timestamp:      time.Now().UTC(),
		},
	}
	p.rooms.Broadcast(SlideRoom(sess.PresentationID, sess.SlideIndex), ev)
	p.rooms.Broadcast(PresenterRoom(sess.PresentationID), ev)
	return nil
}

func (p *Presence) lookup(ctx context.Context, accessCode string) (*models.Presentation, int, *Error) {
	if accessCode == "" {
		return nil, 0, &Error{Code: CodeBadRequest, Message: "access code required"}
	}
	pres, err := p.presentations.GetByAccessCode(ctx, accessCode)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, 0, &Error{Code: CodeNotFound, Message: "no presentation with that access code"}
		}
		log.Printf("presence: presentation lookup: %v", err)
		return nil, 0, &Error{Code: CodeUnavailable, Message: "could not load presentation"}
	}
	if pres.ExpiresAt != nil && time.Now().After(*pres.ExpiresAt) {
		return nil, 0, &Error{Code: CodeExpired, Message: "this presentation has expired"}
	}
	total, err := p.slides.CountByPresentation(ctx, pres.ID)
	if err != nil {
		log.Printf("presence: slide count for %s: %v", pres.ID, err)
		return nil, 0, &Error{Code: CodeUnavailable, Message: "could not load presentation"}
	}
	return pres, total, nil
}

func (p *Presence) snapshot(pres *models.Presentation, totalSlides int) StateSnapshot {
	return StateSnapshot{
		PresentationID:    pres.ID,
		Title:             pres.Title,
		IsActive:          pres.IsActive,
		CurrentSlideIndex: pres.CurrentSlideIndex,
		TotalSlides:       totalSlides,
		ParticipantCount:  p.registry.CountFor(pres.ID),
	}
}

// announceDeparture broadcasts the loss of a session after it has already
// been removed from the registry, so the attached count excludes it.
func (p *Presence) announceDeparture(sess Session, kind string) {
	count := p.registry.CountFor(sess.PresentationID)
	p.rooms.Broadcast(PresentationRoom(sess.PresentationID), Envelope{
		Type:    EventParticipantLeft,
		Payload: presencePayload(sess.PresentationID, sess.DisplayName, count),
	})
	p.record(sess, kind)
}

func (p *Presence) record(sess Session, kind string) {
	if p.attendance == nil {
		return
	}
	p.attendance.Record(models.AttendanceEvent{
		ID:             uuid.New(),
		PresentationID: sess.PresentationID,
		SessionID:      sess.SessionID,
		DisplayName:    sess.DisplayName,
		Anonymous:      sess.Anonymous,
		Kind:           kind,
		OccurredAt:     time.Now().UTC(),
	})
}
