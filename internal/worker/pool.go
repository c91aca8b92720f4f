package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"slidecast-backend/internal/models"
	"slidecast-backend/internal/repository"
)

const attendanceQueue = "queue:attendance"

// Pool moves attendance events from the live path into the database. The
// live path hands events to Record, which buffers in memory; a forwarder
// pushes them onto the Redis queue and workers BLPOP them into Postgres.
// Losing an event under pressure is acceptable, stalling a broadcast is
// not.
type Pool struct {
	redis          *redis.Client
	attendanceRepo *repository.AttendanceRepo
	workerCount    int
	buffer         chan models.AttendanceEvent
	stopChan       chan struct{}
}

func NewPool(redisClient *redis.Client, attendanceRepo *repository.AttendanceRepo, workerCount int) *Pool {
	return &Pool{
		redis:          redisClient,
		attendanceRepo: attendanceRepo,
		workerCount:    workerCount,
		buffer:         make(chan models.AttendanceEvent, 1024),
		stopChan:       make(chan struct{}),
	}
}

// Record accepts an event from the live path without blocking. If the
// buffer is full the event is dropped and logged.
func (p *Pool) Record(ev models.AttendanceEvent) {
	select {
	case p.buffer <- ev:
	default:
		log.Printf("attendance buffer full, dropping %s event for session %s", ev.Kind, ev.SessionID)
	}
}

func (p *Pool) Start() {
	go p.forward()
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}

	log.Printf("Started %d attendance worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

// forward drains the in-memory buffer onto the Redis queue.
func (p *Pool) forward() {
	for {
		select {
		case <-p.stopChan:
			return
		case ev := <-p.buffer:
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Printf("failed to marshal attendance event %s: %v", ev.ID, err)
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.redis.LPush(ctx, attendanceQueue, string(payload)).Err(); err != nil {
				log.Printf("failed to enqueue attendance event %s: %v", ev.ID, err)
			}
			cancel()
		}
	}
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Attendance worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, attendanceQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var ev models.AttendanceEvent
		if err := json.Unmarshal([]byte(result[1]), &ev); err != nil {
			log.Printf("Attendance worker %d: failed to parse event: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("attendance_lock:%s", ev.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this event
		}

		insertCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		insertErr := p.attendanceRepo.Insert(insertCtx, &ev)
		cancel()

		if insertErr != nil {
			p.handleFailure(&ev, insertErr)
		}

		// Release lock
		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) handleFailure(ev *models.AttendanceEvent, err error) {
	ev.Attempts++

	if ev.Attempts < 3 {
		log.Printf("Attendance event %s failed (attempt %d): %v, retrying", ev.ID, ev.Attempts, err)

		payload, marshalErr := json.Marshal(ev)
		if marshalErr != nil {
			log.Printf("failed to marshal attendance event %s for retry: %v", ev.ID, marshalErr)
			return
		}
		backoff := time.Duration(1<<uint(ev.Attempts)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), attendanceQueue, string(payload))
		})
		return
	}

	log.Printf("Attendance event %s dropped after %d attempts: %v", ev.ID, ev.Attempts, err)
}
