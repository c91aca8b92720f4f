package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"slidecast-backend/internal/models"
)

func TestSweeperEvictsIdleSessions(t *testing.T) {
	registry := NewRegistry()
	rooms := NewRooms()
	att := &fakeAttendance{}
	presID := uuid.New()

	idle := newFakeSink("conn-idle")
	fresh := newFakeSink("conn-fresh")
	rooms.Join(idle, PresentationRoom(presID))
	rooms.Join(fresh, PresentationRoom(presID))

	idleSess, _ := registry.Create(presID, "conn-idle", "Dana", true, 0)
	time.Sleep(30 * time.Millisecond)
	registry.Create(presID, "conn-fresh", "Kim", true, 0)

	sweeper := NewSweeper(registry, rooms, att, time.Hour, 15*time.Millisecond)
	sweeper.sweepOnce()

	if _, ok := registry.Get(idleSess.SessionID); ok {
		t.Fatalf("idle session must be evicted")
	}
	if got := registry.CountFor(presID); got != 1 {
		t.Fatalf("count = %d, want 1 after sweep", got)
	}
	if !idle.wasClosed() {
		t.Fatalf("the idle connection must be closed")
	}
	if fresh.wasClosed() {
		t.Fatalf("the fresh connection must be left alone")
	}

	// The survivor hears exactly one departure with the post-sweep count.
	left := fresh.events(EventParticipantLeft)
	if len(left) != 1 {
		t.Fatalf("got %d participant.left events, want 1", len(left))
	}
	payload := left[0].Payload.(PresencePayload)
	if payload.DisplayName != "Dana" || payload.ParticipantCount != 1 {
		t.Fatalf("unexpected departure payload: %+v", payload)
	}

	// The evicted connection is out of the rooms before the announcement.
	if len(idle.events(EventParticipantLeft)) != 0 {
		t.Fatalf("the evicted connection must not see its own departure")
	}

	if kinds := att.kinds(); len(kinds) != 1 || kinds[0] != models.AttendanceSwept {
		t.Fatalf("attendance kinds = %v, want [swept]", kinds)
	}
}

func TestSweeperEmptyRegistryIsNoOp(t *testing.T) {
	registry := NewRegistry()
	rooms := NewRooms()
	att := &fakeAttendance{}

	sweeper := NewSweeper(registry, rooms, att, time.Hour, time.Minute)
	sweeper.sweepOnce()
	sweeper.sweepOnce()

	if len(att.kinds()) != 0 {
		t.Fatalf("sweeping nothing must record nothing")
	}
}

func TestSweeperSparesActiveSessions(t *testing.T) {
	registry := NewRegistry()
	rooms := NewRooms()
	presID := uuid.New()

	sink := newFakeSink("conn-1")
	rooms.Join(sink, PresentationRoom(presID))
	sess, _ := registry.Create(presID, "conn-1", "Dana", true, 0)

	sweeper := NewSweeper(registry, rooms, nil, time.Hour, time.Minute)
	sweeper.sweepOnce()

	if _, ok := registry.Get(sess.SessionID); !ok {
		t.Fatalf("a session within the idle cutoff must survive the sweep")
	}
	if sink.wasClosed() {
		t.Fatalf("a surviving session's connection must stay open")
	}
}

func TestSweeperStartStop(t *testing.T) {
	registry := NewRegistry()
	rooms := NewRooms()

	sweeper := NewSweeper(registry, rooms, nil, 5*time.Millisecond, time.Minute)
	sweeper.Start()
	time.Sleep(15 * time.Millisecond)
	sweeper.Stop()
	sweeper.Stop()
}
