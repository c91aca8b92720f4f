package realtime

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"slidecast-backend/internal/models"
)

type presenceFixture struct {
	presence *Presence
	registry *Registry
	rooms    *Rooms
	store    *fakePresentationStore
	slides   *fakeSlideStore
	att      *fakeAttendance
	pres     models.Presentation
}

func newPresenceFixture(t *testing.T, totalSlides int, isActive bool, slideIndex int) *presenceFixture {
	t.Helper()

	pres := models.Presentation{
		ID:                uuid.New(),
		PresenterID:       uuid.New(),
		Title:             "Coastal Erosion",
		AccessCode:        "XYZ789",
		IsActive:          isActive,
		CurrentSlideIndex: slideIndex,
	}
	store := newFakePresentationStore(pres)
	slides := newFakeSlideStore()
	slides.counts[pres.ID] = totalSlides

	registry := NewRegistry()
	rooms := NewRooms()
	att := &fakeAttendance{}

	return &presenceFixture{
		presence: NewPresence(registry, rooms, store, slides, att),
		registry: registry,
		rooms:    rooms,
		store:    store,
		slides:   slides,
		att:      att,
		pres:     pres,
	}
}

func participantIdentity() Identity {
	return Identity{Role: RoleParticipant, Anonymous: true, DisplayName: RandomDisplayName()}
}

func (fx *presenceFixture) join(t *testing.T, sink Sink, name string) *JoinResult {
	t.Helper()
	res, aerr := fx.presence.Join(context.Background(), sink, participantIdentity(), JoinRequest{
		AccessCode:  fx.pres.AccessCode,
		DisplayName: name,
	})
	if aerr != nil {
		t.Fatalf("join failed: %v", aerr)
	}
	return res
}

func TestPresenceJoinParticipant(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 1)
	sink := newFakeSink("conn-1")

	res := fx.join(t, sink, "Dana")

	if res.SessionID == "" {
		t.Fatalf("participant join must mint a session id")
	}
	if res.Resumed {
		t.Fatalf("fresh join must not be flagged as resumed")
	}
	snap := res.Snapshot
	if snap.PresentationID != fx.pres.ID || snap.Title != "Coastal Erosion" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !snap.IsActive || snap.CurrentSlideIndex != 1 || snap.TotalSlides != 3 {
		t.Fatalf("snapshot must show the live state, got %+v", snap)
	}
	if snap.ParticipantCount != 1 {
		t.Fatalf("participant count = %d, want 1", snap.ParticipantCount)
	}

	// The joiner lands in the presentation room before the arrival is
	// announced, so it sees its own participant.joined.
	joined := sink.events(EventParticipantJoined)
	if len(joined) != 1 {
		t.Fatalf("got %d participant.joined events, want 1", len(joined))
	}
	payload := joined[0].Payload.(PresencePayload)
	if payload.DisplayName != "Dana" || payload.ParticipantCount != 1 {
		t.Fatalf("unexpected arrival payload: %+v", payload)
	}

	// Late joiners start on the slide the presenter is showing.
	sess, ok := fx.registry.Get(res.SessionID)
	if !ok {
		t.Fatalf("session not registered")
	}
	if sess.SlideIndex != 1 {
		t.Fatalf("session slide = %d, want the live slide 1", sess.SlideIndex)
	}
	if got := fx.rooms.CountIn(SlideRoom(fx.pres.ID, 1)); got != 1 {
		t.Fatalf("joiner should be in the live slide room, CountIn = %d", got)
	}

	if kinds := fx.att.kinds(); len(kinds) != 1 || kinds[0] != models.AttendanceJoined {
		t.Fatalf("attendance kinds = %v", kinds)
	}
}

func TestPresenceJoinMintsNameWhenMissing(t *testing.T) {
	fx := newPresenceFixture(t, 3, false, 0)
	sink := newFakeSink("conn-1")

	res, aerr := fx.presence.Join(context.Background(), sink, Identity{Role: RoleParticipant, Anonymous: true}, JoinRequest{
		AccessCode: fx.pres.AccessCode,
	})
	if aerr != nil {
		t.Fatalf("join failed: %v", aerr)
	}
	sess, _ := fx.registry.Get(res.SessionID)
	if sess.DisplayName == "" {
		t.Fatalf("a nameless join must still get a display name")
	}
}

func TestPresenceJoinFailures(t *testing.T) {
	expired := time.Now().Add(-time.Hour)

	tests := []struct {
		name       string
		mutate     func(fx *presenceFixture)
		accessCode string
		wantCode   Code
	}{
		{
			name:       "empty access code",
			accessCode: "",
			wantCode:   CodeBadRequest,
		},
		{
			name:       "unknown access code",
			accessCode: "NOPE42",
			wantCode:   CodeNotFound,
		},
		{
			name: "expired presentation",
			mutate: func(fx *presenceFixture) {
				pres := fx.pres
				pres.ExpiresAt = &expired
				fx.store.rows[pres.ID] = pres
			},
			accessCode: "XYZ789",
			wantCode:   CodeExpired,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newPresenceFixture(t, 3, false, 0)
			if tc.mutate != nil {
				tc.mutate(fx)
			}
			sink := newFakeSink("conn-1")
			_, aerr := fx.presence.Join(context.Background(), sink, participantIdentity(), JoinRequest{AccessCode: tc.accessCode})
			if aerr == nil || aerr.Code != tc.wantCode {
				t.Fatalf("expected %s, got %v", tc.wantCode, aerr)
			}
			if fx.registry.Len() != 0 {
				t.Fatalf("failed join must not leave a session behind")
			}
			if len(sink.got) != 0 {
				t.Fatalf("failed join must not broadcast")
			}
		})
	}
}

func TestPresencePresenterJoin(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 0)
	sink := newFakeSink("conn-presenter")

	res, aerr := fx.presence.Join(context.Background(), sink, Identity{
		Role:        RolePresenter,
		UserID:      fx.pres.PresenterID,
		DisplayName: "Prof. Reyes",
	}, JoinRequest{AccessCode: fx.pres.AccessCode})
	if aerr != nil {
		t.Fatalf("presenter join failed: %v", aerr)
	}

	// Presenters watch through rooms; they are not attendees.
	if res.SessionID != "" {
		t.Fatalf("presenter join must not mint a session id, got %q", res.SessionID)
	}
	if fx.registry.Len() != 0 {
		t.Fatalf("presenter must not be registered as a participant")
	}
	if got := fx.rooms.CountIn(PresentationRoom(fx.pres.ID)); got != 1 {
		t.Fatalf("presenter should be in the presentation room, CountIn = %d", got)
	}
	if got := fx.rooms.CountIn(PresenterRoom(fx.pres.ID)); got != 1 {
		t.Fatalf("presenter should be in the presenter room, CountIn = %d", got)
	}
	if len(fx.att.kinds()) != 0 {
		t.Fatalf("presenter join must not be recorded as attendance")
	}
}

func TestPresencePresenterJoinWrongOwner(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 0)
	sink := newFakeSink("conn-presenter")

	_, aerr := fx.presence.Join(context.Background(), sink, Identity{
		Role:   RolePresenter,
		UserID: uuid.New(),
	}, JoinRequest{AccessCode: fx.pres.AccessCode})
	if aerr == nil || aerr.Code != CodeForbidden {
		t.Fatalf("expected Forbidden for a presenter who does not own the deck, got %v", aerr)
	}
}

func TestPresenceJoinAgainReplacesSession(t *testing.T) {
	fx := newPresenceFixture(t, 3, false, 0)
	sink := newFakeSink("conn-1")

	first := fx.join(t, sink, "Dana")
	second := fx.join(t, sink, "Dana")

	if first.SessionID == second.SessionID {
		t.Fatalf("a repeat join without a prior session id must mint a new session")
	}
	if _, ok := fx.registry.Get(first.SessionID); ok {
		t.Fatalf("the replaced session must be gone")
	}
	if got := fx.registry.CountFor(fx.pres.ID); got != 1 {
		t.Fatalf("count = %d, want 1 after replacement", got)
	}

	// joined, then left for the replaced session, then joined again.
	want := []string{models.AttendanceJoined, models.AttendanceLeft, models.AttendanceJoined}
	if kinds := fx.att.kinds(); len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] || kinds[2] != want[2] {
		t.Fatalf("attendance kinds = %v, want %v", fx.att.kinds(), want)
	}
}

func TestPresenceResumeMovesSessionToNewConnection(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 0)
	first := newFakeSink("conn-1")
	second := newFakeSink("conn-2")

	joined := fx.join(t, first, "Dana")
	broadcastsBefore := len(first.got)

	res, aerr := fx.presence.Join(context.Background(), second, participantIdentity(), JoinRequest{
		AccessCode:     fx.pres.AccessCode,
		PriorSessionID: joined.SessionID,
	})
	if aerr != nil {
		t.Fatalf("resume failed: %v", aerr)
	}
	if !res.Resumed {
		t.Fatalf("expected a resumed join")
	}
	if res.SessionID != joined.SessionID {
		t.Fatalf("resume must keep the session id, got %q want %q", res.SessionID, joined.SessionID)
	}
	if got := fx.registry.CountFor(fx.pres.ID); got != 1 {
		t.Fatalf("count = %d, want 1 after resume", got)
	}
	if !first.wasClosed() {
		t.Fatalf("the superseded connection must be closed")
	}

	// Resume is silent: nobody is told a participant came or went.
	if len(second.events(EventParticipantLeft)) != 0 || len(second.events(EventParticipantJoined)) != 0 {
		t.Fatalf("resume must not announce presence changes")
	}

	// Broadcasts now reach the new connection and not the old one.
	fx.rooms.Broadcast(PresentationRoom(fx.pres.ID), Envelope{Type: EventSlideChanged})
	if len(second.events(EventSlideChanged)) != 1 {
		t.Fatalf("new connection should receive room broadcasts")
	}
	if len(first.got) != broadcastsBefore {
		t.Fatalf("old connection must be out of every room after resume")
	}

	// The old connection's teardown races the resume and must find nothing.
	fx.presence.Disconnect("conn-1")
	if _, ok := fx.registry.Get(joined.SessionID); !ok {
		t.Fatalf("disconnect of the superseded connection must not evict the session")
	}
	if len(second.events(EventParticipantLeft)) != 0 {
		t.Fatalf("disconnect of the superseded connection must not announce a departure")
	}
}

func TestPresenceResumeUnknownSessionFallsBack(t *testing.T) {
	fx := newPresenceFixture(t, 3, false, 0)
	sink := newFakeSink("conn-1")

	res, aerr := fx.presence.Join(context.Background(), sink, participantIdentity(), JoinRequest{
		AccessCode:     fx.pres.AccessCode,
		DisplayName:    "Dana",
		PriorSessionID: "long-gone",
	})
	if aerr != nil {
		t.Fatalf("join failed: %v", aerr)
	}
	if res.Resumed {
		t.Fatalf("an evicted session id must fall back to a fresh join")
	}
	if res.SessionID == "" || res.SessionID == "long-gone" {
		t.Fatalf("fresh join must mint a new session id, got %q", res.SessionID)
	}
}

func TestPresenceResumeWrongPresentationFallsBack(t *testing.T) {
	fx := newPresenceFixture(t, 3, false, 0)
	other := models.Presentation{
		ID:          uuid.New(),
		PresenterID: uuid.New(),
		Title:       "Glacier Flow",
		AccessCode:  "GLA100",
	}
	fx.store.rows[other.ID] = other
	fx.slides.counts[other.ID] = 2

	first := newFakeSink("conn-1")
	joined := fx.join(t, first, "Dana")

	second := newFakeSink("conn-2")
	res, aerr := fx.presence.Join(context.Background(), second, participantIdentity(), JoinRequest{
		AccessCode:     "GLA100",
		PriorSessionID: joined.SessionID,
	})
	if aerr != nil {
		t.Fatalf("join failed: %v", aerr)
	}
	if res.Resumed || res.SessionID == joined.SessionID {
		t.Fatalf("a session from another presentation must not be resumed")
	}
	if _, ok := fx.registry.Get(joined.SessionID); !ok {
		t.Fatalf("the original session must stay bound to its own presentation")
	}
}

func TestPresenceLeaveAnnouncesOnce(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 0)
	leaver := newFakeSink("conn-1")
	watcher := newFakeSink("conn-2")

	res := fx.join(t, leaver, "Dana")
	fx.join(t, watcher, "Kim")

	fx.presence.Leave(res.SessionID)

	left := watcher.events(EventParticipantLeft)
	if len(left) != 1 {
		t.Fatalf("got %d participant.left events, want exactly 1", len(left))
	}
	payload := left[0].Payload.(PresencePayload)
	if payload.DisplayName != "Dana" {
		t.Fatalf("departure should name the leaver, got %q", payload.DisplayName)
	}
	if payload.ParticipantCount != 1 {
		t.Fatalf("departure count = %d, want 1 remaining", payload.ParticipantCount)
	}

	// The leaver is out of the rooms before the announcement.
	if len(leaver.events(EventParticipantLeft)) != 0 {
		t.Fatalf("the leaver must not receive its own departure")
	}
	if _, ok := fx.registry.Get(res.SessionID); ok {
		t.Fatalf("session must be removed on leave")
	}

	// Leaving again is a no-op, not a second announcement.
	fx.presence.Leave(res.SessionID)
	if len(watcher.events(EventParticipantLeft)) != 1 {
		t.Fatalf("a second leave must not announce anything")
	}
}

func TestPresenceLeaveConnection(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 0)
	sink := newFakeSink("conn-1")
	res := fx.join(t, sink, "Dana")

	fx.presence.LeaveConnection("conn-1")
	if _, ok := fx.registry.Get(res.SessionID); ok {
		t.Fatalf("leave by connection must remove the session")
	}

	fx.presence.LeaveConnection("conn-unknown")
}

func TestPresenceDisconnectAnnouncesDeparture(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 0)
	dropper := newFakeSink("conn-1")
	watcher := newFakeSink("conn-2")

	res := fx.join(t, dropper, "Dana")
	fx.join(t, watcher, "Kim")

	fx.presence.Disconnect("conn-1")

	if len(watcher.events(EventParticipantLeft)) != 1 {
		t.Fatalf("a dropped connection should announce exactly one departure")
	}
	if _, ok := fx.registry.Get(res.SessionID); ok {
		t.Fatalf("session must be removed on disconnect")
	}
}

func TestPresenceViewSlide(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 0)
	sink := newFakeSink("conn-1")
	res := fx.join(t, sink, "Dana")

	if aerr := fx.presence.ViewSlide(context.Background(), sink, 2); aerr != nil {
		t.Fatalf("view slide failed: %v", aerr)
	}

	sess, _ := fx.registry.Get(res.SessionID)
	if sess.SlideIndex != 2 {
		t.Fatalf("slide index = %d, want 2", sess.SlideIndex)
	}
	if got := fx.rooms.CountIn(SlideRoom(fx.pres.ID, 0)); got != 0 {
		t.Fatalf("viewer should have left the old slide room, CountIn = %d", got)
	}
	if got := fx.rooms.CountIn(SlideRoom(fx.pres.ID, 2)); got != 1 {
		t.Fatalf("viewer should be in the new slide room, CountIn = %d", got)
	}
}

func TestPresenceViewSlideOutOfRange(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 0)
	sink := newFakeSink("conn-1")
	fx.join(t, sink, "Dana")

	aerr := fx.presence.ViewSlide(context.Background(), sink, 7)
	if aerr == nil || aerr.Code != CodeOutOfRange {
		t.Fatalf("expected OutOfRange, got %v", aerr)
	}
	if !strings.Contains(aerr.Message, "valid range 0-2") {
		t.Fatalf("message %q should state the valid range", aerr.Message)
	}
	if got := fx.rooms.CountIn(SlideRoom(fx.pres.ID, 0)); got != 1 {
		t.Fatalf("a rejected view must not move the viewer")
	}
}

func TestPresenceViewSlideWithoutSession(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 0)
	sink := newFakeSink("conn-1")

	aerr := fx.presence.ViewSlide(context.Background(), sink, 1)
	if aerr == nil || aerr.Code != CodeNotFound {
		t.Fatalf("expected NotFound without a session, got %v", aerr)
	}
}

func TestPresenceReact(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 0)
	reactor := newFakeSink("conn-1")
	neighbor := newFakeSink("conn-2")
	elsewhere := newFakeSink("conn-3")
	presenter := newFakeSink("conn-presenter")

	fx.join(t, reactor, "Dana")
	fx.join(t, neighbor, "Kim")
	fx.join(t, elsewhere, "Ana")
	if aerr := fx.presence.ViewSlide(context.Background(), elsewhere, 2); aerr != nil {
		t.Fatalf("view slide failed: %v", aerr)
	}
	fx.rooms.Join(presenter, PresenterRoom(fx.pres.ID))

	if aerr := fx.presence.React("conn-1", "🔥"); aerr != nil {
		t.Fatalf("react failed: %v", aerr)
	}

	for name, sink := range map[string]*fakeSink{"sender": reactor, "same slide": neighbor, "presenter": presenter} {
		got := sink.events(EventReactionSent)
		if len(got) != 1 {
			t.Fatalf("%s got %d reaction events, want 1", name, len(got))
		}
		payload := got[0].Payload.(ReactionPayload)
		if payload.Emoji != "🔥" || payload.DisplayName != "Dana" || payload.SlideIndex != 0 {
			t.Fatalf("%s saw unexpected reaction payload: %+v", name, payload)
		}
	}
	if len(elsewhere.events(EventReactionSent)) != 0 {
		t.Fatalf("reactions must not leak to other slides")
	}
}

func TestPresenceReactValidation(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 0)
	sink := newFakeSink("conn-1")
	fx.join(t, sink, "Dana")

	if aerr := fx.presence.React("conn-1", ""); aerr == nil || aerr.Code != CodeBadRequest {
		t.Fatalf("empty emoji: expected BadRequest, got %v", aerr)
	}
	if aerr := fx.presence.React("conn-1", strings.Repeat("x", 40)); aerr == nil || aerr.Code != CodeBadRequest {
		t.Fatalf("oversized emoji: expected BadRequest, got %v", aerr)
	}
	if aerr := fx.presence.React("conn-unknown", "🔥"); aerr == nil || aerr.Code != CodeNotFound {
		t.Fatalf("no session: expected NotFound, got %v", aerr)
	}
}

func TestPresenceTouchKeepsSessionFresh(t *testing.T) {
	fx := newPresenceFixture(t, 3, true, 0)
	sink := newFakeSink("conn-1")
	res := fx.join(t, sink, "Dana")

	before, _ := fx.registry.Get(res.SessionID)
	time.Sleep(5 * time.Millisecond)
	fx.presence.Touch("conn-1")
	after, _ := fx.registry.Get(res.SessionID)

	if !after.LastActivity.After(before.LastActivity) {
		t.Fatalf("touch must advance the activity clock")
	}
}
