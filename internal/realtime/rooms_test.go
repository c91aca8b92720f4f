package realtime

import (
	"testing"

	"github.com/google/uuid"
)

func TestRoomNamesAreDeterministic(t *testing.T) {
	presID := uuid.MustParse("6f1c6a52-8bc6-4f85-9def-3a4bfa7a2d11")

	if got, want := PresentationRoom(presID), RoomName("presentation:6f1c6a52-8bc6-4f85-9def-3a4bfa7a2d11"); got != want {
		t.Errorf("PresentationRoom = %q, want %q", got, want)
	}
	if got, want := PresenterRoom(presID), RoomName("presenter:6f1c6a52-8bc6-4f85-9def-3a4bfa7a2d11"); got != want {
		t.Errorf("PresenterRoom = %q, want %q", got, want)
	}
	if got, want := SlideRoom(presID, 7), RoomName("slide:6f1c6a52-8bc6-4f85-9def-3a4bfa7a2d11:7"); got != want {
		t.Errorf("SlideRoom = %q, want %q", got, want)
	}

	// Different instances of anything deriving these names must agree.
	if SlideRoom(presID, 7) != SlideRoom(presID, 7) {
		t.Errorf("identical inputs should produce identical room names")
	}
}

func TestRoomsJoinBroadcastLeave(t *testing.T) {
	rooms := NewRooms()
	room := PresentationRoom(uuid.New())
	a := newFakeSink("conn-a")
	b := newFakeSink("conn-b")

	rooms.Join(a, room)
	rooms.Join(b, room)
	if got := rooms.CountIn(room); got != 2 {
		t.Fatalf("CountIn = %d, want 2", got)
	}

	rooms.Broadcast(room, Envelope{Type: "slide.changed"})
	if len(a.events("slide.changed")) != 1 || len(b.events("slide.changed")) != 1 {
		t.Fatalf("both members should receive the broadcast")
	}

	rooms.Leave(a.id, room)
	rooms.Broadcast(room, Envelope{Type: "slide.changed"})
	if len(a.events("slide.changed")) != 1 {
		t.Fatalf("a left the room and should not receive further broadcasts")
	}
	if len(b.events("slide.changed")) != 2 {
		t.Fatalf("b should have received both broadcasts")
	}
	if got := rooms.CountIn(room); got != 1 {
		t.Fatalf("CountIn after leave = %d, want 1", got)
	}
}

func TestRoomsJoinTwiceIsNoOp(t *testing.T) {
	rooms := NewRooms()
	room := PresentationRoom(uuid.New())
	a := newFakeSink("conn-a")

	rooms.Join(a, room)
	rooms.Join(a, room)
	if got := rooms.CountIn(room); got != 1 {
		t.Fatalf("double join should count once, got %d", got)
	}

	rooms.Broadcast(room, Envelope{Type: "presentation.started"})
	if got := len(a.events("presentation.started")); got != 1 {
		t.Fatalf("double join must not duplicate deliveries, got %d", got)
	}
}

func TestRoomsBroadcastToEmptyRoomSucceeds(t *testing.T) {
	rooms := NewRooms()
	// No one ever joined; must not panic or error.
	rooms.Broadcast(PresentationRoom(uuid.New()), Envelope{Type: "participant.left"})
	if got := rooms.CountIn(PresentationRoom(uuid.New())); got != 0 {
		t.Fatalf("empty room count = %d, want 0", got)
	}
}

func TestRoomsLeaveAll(t *testing.T) {
	rooms := NewRooms()
	presID := uuid.New()
	a := newFakeSink("conn-a")

	rooms.Join(a, PresentationRoom(presID))
	rooms.Join(a, SlideRoom(presID, 0))

	rooms.LeaveAll(a.id)

	if rooms.CountIn(PresentationRoom(presID)) != 0 || rooms.CountIn(SlideRoom(presID, 0)) != 0 {
		t.Fatalf("LeaveAll should empty every room the connection was in")
	}
	if _, ok := rooms.SinkFor(a.id); ok {
		t.Fatalf("sink should be forgotten once it left every room")
	}
}

func TestRoomsBroadcastPreservesOrderPerMember(t *testing.T) {
	rooms := NewRooms()
	room := PresentationRoom(uuid.New())
	a := newFakeSink("conn-a")
	rooms.Join(a, room)

	for i := 0; i < 5; i++ {
		rooms.Broadcast(room, Envelope{Type: "slide.changed", Payload: i})
	}

	got := a.events("slide.changed")
	if len(got) != 5 {
		t.Fatalf("expected 5 deliveries, got %d", len(got))
	}
	for i, ev := range got {
		if ev.Payload.(int) != i {
			t.Fatalf("delivery %d carries payload %v, order not preserved", i, ev.Payload)
		}
	}
}

func TestRoomsSlowMemberDoesNotBlockOthers(t *testing.T) {
	rooms := NewRooms()
	room := PresentationRoom(uuid.New())
	slow := newFakeSink("conn-slow")
	slow.full = true
	fast := newFakeSink("conn-fast")

	rooms.Join(slow, room)
	rooms.Join(fast, room)

	rooms.Broadcast(room, Envelope{Type: "slide.changed"})

	if len(fast.events("slide.changed")) != 1 {
		t.Fatalf("fast member should receive the frame despite the slow one")
	}
	if len(slow.events("slide.changed")) != 0 {
		t.Fatalf("slow member's frame should be dropped, not queued")
	}
	// The slow member stays in the room; only the frame was dropped.
	if got := rooms.CountIn(room); got != 2 {
		t.Fatalf("CountIn = %d, want 2", got)
	}
}
