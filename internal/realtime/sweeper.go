package realtime

import (
	"log"
	"time"

	"github.com/google/uuid"

	"slidecast-backend/internal/models"
)

// Sweeper evicts sessions that have gone quiet, so crashed clients that
// never sent a close frame do not inflate participant counts forever.
type Sweeper struct {
	registry   *Registry
	rooms      *Rooms
	attendance AttendanceSink
	interval   time.Duration
	maxIdle    time.Duration
	stopChan   chan struct{}
}

func NewSweeper(registry *Registry, rooms *Rooms, attendance AttendanceSink, interval, maxIdle time.Duration) *Sweeper {
	return &Sweeper{
		registry:   registry,
		rooms:      rooms,
		attendance: attendance,
		interval:   interval,
		maxIdle:    maxIdle,
		stopChan:   make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (s *Sweeper) Start() {
	log.Printf("🧹 Session sweeper started (every %s, idle cutoff %s)", s.interval, s.maxIdle)
	go s.loop()
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// sweepOnce evicts every idle session, closes its connection if one is
// still around, and announces the departures. A sweep pass that starts
// finishes even if Stop is called while it runs.
func (s *Sweeper) sweepOnce() {
	evicted := s.registry.Sweep(s.maxIdle)
	for _, sess := range evicted {
		if sink, ok := s.rooms.SinkFor(sess.ConnectionID); ok {
			sink.Close()
		}
		s.rooms.LeaveAll(sess.ConnectionID)

		count := s.registry.CountFor(sess.PresentationID)
		s.rooms.Broadcast(PresentationRoom(sess.PresentationID), Envelope{
			Type:    EventParticipantLeft,
			Payload: presencePayload(sess.PresentationID, sess.DisplayName, count),
		})
		if s.attendance != nil {
			s.attendance.Record(models.AttendanceEvent{
				ID:             uuid.New(),
				PresentationID: sess.PresentationID,
				SessionID:      sess.SessionID,
				DisplayName:    sess.DisplayName,
				Anonymous:      sess.Anonymous,
				Kind:           models.AttendanceSwept,
				OccurredAt:     time.Now().UTC(),
			})
		}
		log.Printf("swept idle session %s from presentation %s", sess.SessionID, sess.PresentationID)
	}
}

// Stop halts the loop. Safe to call more than once.
func (s *Sweeper) Stop() {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}
