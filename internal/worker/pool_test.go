package worker

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"slidecast-backend/internal/models"
)

func testEvent(kind string) models.AttendanceEvent {
	return models.AttendanceEvent{
		ID:             uuid.New(),
		PresentationID: uuid.New(),
		SessionID:      uuid.NewString(),
		DisplayName:    "Dana",
		Anonymous:      true,
		Kind:           kind,
		OccurredAt:     time.Now().UTC(),
	}
}

func TestRecordNeverBlocks(t *testing.T) {
	pool := NewPool(nil, nil, 1)

	// Nobody is draining the buffer; overfilling it must drop, not stall.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			pool.Record(testEvent(models.AttendanceJoined))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Record blocked on a full buffer")
	}
	if got := len(pool.buffer); got != 1024 {
		t.Fatalf("buffered = %d, want the buffer capacity 1024", got)
	}
}

func TestRecordPreservesEventOrder(t *testing.T) {
	pool := NewPool(nil, nil, 1)

	first := testEvent(models.AttendanceJoined)
	second := testEvent(models.AttendanceLeft)
	pool.Record(first)
	pool.Record(second)

	if got := <-pool.buffer; got.ID != first.ID {
		t.Fatalf("first out = %s, want %s", got.ID, first.ID)
	}
	if got := <-pool.buffer; got.ID != second.ID {
		t.Fatalf("second out = %s, want %s", got.ID, second.ID)
	}
}

func TestHandleFailureDropsAfterMaxAttempts(t *testing.T) {
	// redis stays nil: the drop path must not touch the queue.
	pool := &Pool{}

	ev := testEvent(models.AttendanceSwept)
	ev.Attempts = 2

	pool.handleFailure(&ev, errors.New("insert failed"))

	if ev.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", ev.Attempts)
	}
}

func TestAttemptsSurviveRequeue(t *testing.T) {
	// A retried event goes back through the queue as JSON; the attempt
	// counter has to ride along or retries would never exhaust.
	ev := testEvent(models.AttendanceLeft)
	ev.Attempts = 2

	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back models.AttendanceEvent
	if err := json.Unmarshal(payload, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Attempts != 2 {
		t.Fatalf("attempts = %d after requeue, want 2", back.Attempts)
	}
	if back.Kind != models.AttendanceLeft || back.SessionID != ev.SessionID {
		t.Fatalf("event mangled in transit: %+v", back)
	}
}
