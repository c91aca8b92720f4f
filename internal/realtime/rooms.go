package realtime

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Sink is the send side of one live connection. Send must enqueue without
// blocking; the broadcaster calls it while holding room state locked.
type Sink interface {
	ConnectionID() string
	Send(ev Envelope) error
	Close() error
}

// RoomName addresses one broadcast group. Names are derived, never stored,
// so the same inputs always land in the same room.
type RoomName string

// PresentationRoom holds everyone attached to a presentation, participants
// and presenter alike.
func PresentationRoom(presentationID uuid.UUID) RoomName {
	return RoomName("presentation:" + presentationID.String())
}

// PresenterRoom holds only the presenter's connections for a presentation.
func PresenterRoom(presentationID uuid.UUID) RoomName {
	return RoomName("presenter:" + presentationID.String())
}

// SlideRoom holds the connections currently viewing one slide.
func SlideRoom(presentationID uuid.UUID, slideIndex int) RoomName {
	return RoomName(fmt.Sprintf("slide:%s:%d", presentationID, slideIndex))
}

// Rooms fans events out to the connections joined to each room. Broadcasting
// to a room nobody is in succeeds and delivers nothing. Within one room,
// frames reach each member in the order Broadcast was called by a single
// goroutine; there is no ordering promise across rooms.
type Rooms struct {
	mu      sync.RWMutex
	members map[RoomName]map[string]Sink
	joined  map[string]map[RoomName]struct{}
	sinks   map[string]Sink
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[RoomName]map[string]Sink),
		joined:  make(map[string]map[RoomName]struct{}),
		sinks:   make(map[string]Sink),
	}
}

// Join adds the sink to a room. Joining a room twice is a no-op.
func (r *Rooms) Join(sink Sink, room RoomName) {
	connID := sink.ConnectionID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[room] == nil {
		r.members[room] = make(map[string]Sink)
	}
	r.members[room][connID] = sink
	if r.joined[connID] == nil {
		r.joined[connID] = make(map[RoomName]struct{})
	}
	r.joined[connID][room] = struct{}{}
	r.sinks[connID] = sink
}

// Leave removes the connection from one room, dropping the room entirely
// once its last member is gone.
func (r *Rooms) Leave(connectionID string, room RoomName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connectionID, room)
}

// LeaveAll removes the connection from every room it joined.
func (r *Rooms) LeaveAll(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[connectionID] {
		r.leaveLocked(connectionID, room)
	}
}

func (r *Rooms) leaveLocked(connectionID string, room RoomName) {
	if members, ok := r.members[room]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(r.members, room)
		}
	}
	if rooms, ok := r.joined[connectionID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, connectionID)
			delete(r.sinks, connectionID)
		}
	}
}

// Broadcast sends the envelope to every member of the room. A member whose
// send queue is full is skipped and logged; slow consumers never stall the
// rest of the room.
func (r *Rooms) Broadcast(room RoomName, ev Envelope) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for connID, sink := range r.members[room] {
		if err := sink.Send(ev); err != nil {
			log.Printf("room %s: dropping %s for connection %s: %v", room, ev.Type, connID, err)
		}
	}
}

// CountIn reports how many connections are in the room.
func (r *Rooms) CountIn(room RoomName) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[room])
}

// SinkFor returns the sink of a connection that is in at least one room.
func (r *Rooms) SinkFor(connectionID string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sinks[connectionID]
	return sink, ok
}
