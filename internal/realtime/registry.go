package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session tracks one attendee's presence in a presentation. The session id
// is the stable identity handed back to the client for resuming; the
// connection id changes across reconnects.
type Session struct {
	SessionID      string
	ConnectionID   string
	PresentationID uuid.UUID
	DisplayName    string
	Anonymous      bool
	SlideIndex     int
	JoinedAt       time.Time
	LastActivity   time.Time
}

// Registry is the in-memory source of truth for which sessions are attached
// to which presentations, indexed both by session id and by connection id.
// The two indexes always agree: each connection carries at most one session.
//
// All methods are safe for concurrent use. Lookups and removals report
// absence through their boolean return instead of an error, because sessions
// race with disconnects and sweeps; a miss is a routine outcome, not a
// failure.
type Registry struct {
	mu           sync.RWMutex
	bySession    map[string]*Session
	byConnection map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		bySession:    make(map[string]*Session),
		byConnection: make(map[string]*Session),
	}
}

// Create registers a new session bound to connectionID and returns a copy of
// it. If the connection already carried a session, that session is evicted
// first and returned as replaced, so the caller can announce its departure.
func (r *Registry) Create(presentationID uuid.UUID, connectionID, displayName string, anonymous bool, slideIndex int) (created Session, replaced *Session) {
	now := time.Now().UTC()
	sess := &Session{
		SessionID:      uuid.NewString(),
		ConnectionID:   connectionID,
		PresentationID: presentationID,
		DisplayName:    displayName,
		Anonymous:      anonymous,
		SlideIndex:     slideIndex,
		JoinedAt:       now,
		LastActivity:   now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConnection[connectionID]; ok {
		delete(r.bySession, prev.SessionID)
		delete(r.byConnection, prev.ConnectionID)
		old := *prev
		replaced = &old
	}
	r.bySession[sess.SessionID] = sess
	r.byConnection[connectionID] = sess
	return *sess, replaced
}

// Rebind moves an existing session onto a new connection and refreshes its
// activity clock. It returns the rebound session and the connection id the
// session was previously attached to. Rebinding a session onto the
// connection it already occupies succeeds and changes nothing but the
// activity clock.
func (r *Registry) Rebind(sessionID, connectionID string) (Session, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.bySession[sessionID]
	if !ok {
		return Session{}, "", false
	}
	prevConn := sess.ConnectionID
	if prevConn != connectionID {
		delete(r.byConnection, prevConn)
		sess.ConnectionID = connectionID
		r.byConnection[connectionID] = sess
	}
	sess.LastActivity = time.Now().UTC()
	return *sess, prevConn, true
}

// RemoveBySessionID deletes the session with the given id and returns a copy
// of it.
func (r *Registry) RemoveBySessionID(sessionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.bySession[sessionID]
	if !ok {
		return Session{}, false
	}
	delete(r.bySession, sess.SessionID)
	delete(r.byConnection, sess.ConnectionID)
	return *sess, true
}

// RemoveByConnectionID deletes whatever session is bound to the given
// connection. After a resume has rebound the session elsewhere, the old
// connection's teardown finds nothing here, which is exactly right.
func (r *Registry) RemoveByConnectionID(connectionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byConnection[connectionID]
	if !ok {
		return Session{}, false
	}
	delete(r.bySession, sess.SessionID)
	delete(r.byConnection, sess.ConnectionID)
	return *sess, true
}

// Get returns a copy of the session with the given id.
func (r *Registry) Get(sessionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.bySession[sessionID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// GetByConnection returns a copy of the session bound to the connection.
func (r *Registry) GetByConnection(connectionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.byConnection[connectionID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// TouchByConnection refreshes the activity clock of the session bound to the
// connection. Every inbound frame counts as activity.
func (r *Registry) TouchByConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.byConnection[connectionID]; ok {
		sess.LastActivity = time.Now().UTC()
	}
}

// SetSlideByConnection records which slide the connection's session is
// viewing and returns the updated session plus the index it was on before.
func (r *Registry) SetSlideByConnection(connectionID string, slideIndex int) (Session, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byConnection[connectionID]
	if !ok {
		return Session{}, 0, false
	}
	prev := sess.SlideIndex
	sess.SlideIndex = slideIndex
	sess.LastActivity = time.Now().UTC()
	return *sess, prev, true
}

// CountFor reports how many sessions are attached to the presentation.
func (r *Registry) CountFor(presentationID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, sess := range r.bySession {
		if sess.PresentationID == presentationID {
			n++
		}
	}
	return n
}

// ListFor returns copies of every session attached to the presentation.
func (r *Registry) ListFor(presentationID uuid.UUID) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0)
	for _, sess := range r.bySession {
		if sess.PresentationID == presentationID {
			out = append(out, *sess)
		}
	}
	return out
}

// Sweep removes every session idle longer than maxIdle and returns copies of
// the removed sessions. The cutoff is computed once so sessions active while
// the sweep runs are never caught by it.
func (r *Registry) Sweep(maxIdle time.Duration) []Session {
	cutoff := time.Now().UTC().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []Session
	for id, sess := range r.bySession {
		if sess.LastActivity.Before(cutoff) {
			delete(r.bySession, id)
			delete(r.byConnection, sess.ConnectionID)
			evicted = append(evicted, *sess)
		}
	}
	return evicted
}

// Len reports the total number of live sessions across all presentations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySession)
}
