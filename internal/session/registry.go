// Package session owns reconnect-durable participant identity. A session
// outlives any single websocket connection: when the connection drops the
// session enters a grace window, and a client that reconnects with its
// stored session id reclaims it together with all room memberships.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("session not found")

// Session is one participant across possibly many transport reconnects.
type Session struct {
	ID             string
	ConnID         string // empty while disconnected
	DisconnectedAt time.Time
	Nickname       string

	graceTimer *time.Timer
}

// Connected reports whether a live connection is bound.
func (s *Session) Connected() bool { return s.ConnID != "" }

// ExpiredFunc is invoked after a grace window elapses without reclaim.
// It receives the destroyed session's id and last nickname; the callback
// runs outside the registry lock so it may call other components freely.
type ExpiredFunc func(sessionID, nickname string)

// Registry maps session ids to sessions and live connection ids back to
// session ids. The two maps form a bijection while a session is connected.
type Registry struct {
	mu            sync.Mutex
	sessions      map[string]*Session
	connToSession map[string]string
	grace         time.Duration
	onExpired     ExpiredFunc
	closed        bool
}

// NewRegistry creates a session registry. onExpired may be nil.
func NewRegistry(grace time.Duration, onExpired ExpiredFunc) *Registry {
	return &Registry{
		sessions:      make(map[string]*Session),
		connToSession: make(map[string]string),
		grace:         grace,
		onExpired:     onExpired,
	}
}

// Create allocates a fresh session bound to connID. Always succeeds.
func (r *Registry) Create(connID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{
		ID:     uuid.NewString(),
		ConnID: connID,
	}
	r.sessions[s.ID] = s
	r.connToSession[connID] = s.ID
	return s
}

// Reclaim rebinds an existing session (connected or in its grace window)
// to a new connection, cancelling any pending expiry. It returns the
// session and the previous connection id, which may still be live: the
// caller must force-terminate that connection so the session↔connection
// mapping stays one-to-one. A false result means the id is unknown or
// already expired and the caller should Create instead.
func (r *Registry) Reclaim(sessionID, newConnID string) (s *Session, prevConnID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, found := r.sessions[sessionID]
	if !found {
		return nil, "", false
	}

	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}

	prevConnID = s.ConnID
	if prevConnID != "" {
		delete(r.connToSession, prevConnID)
	}

	s.ConnID = newConnID
	s.DisconnectedAt = time.Time{}
	r.connToSession[newConnID] = s.ID
	return s, prevConnID, true
}

// HandleDisconnect unbinds the connection, stamps the disconnect time and
// starts the grace timer. Returns the affected session, or ErrNotFound if
// the connection is not bound to one.
func (r *Registry) HandleDisconnect(connID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID, ok := r.connToSession[connID]
	if !ok {
		return nil, ErrNotFound
	}
	s := r.sessions[sessionID]

	delete(r.connToSession, connID)
	s.ConnID = ""
	s.DisconnectedAt = time.Now()

	if r.closed {
		return s, nil
	}

	// The timer callback re-checks under the lock that it is still the
	// stored timer: a reclaim that races a fired timer wins, and the
	// stale expiry becomes a no-op even if a later disconnect has
	// already opened a new grace window.
	var t *time.Timer
	t = time.AfterFunc(r.grace, func() {
		r.expire(sessionID, t)
	})
	s.graceTimer = t

	return s, nil
}

// GetByConn returns the session bound to a live connection.
func (r *Registry) GetByConn(connID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID, ok := r.connToSession[connID]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[sessionID]
	return s, ok
}

// GetByID returns the session with the given id, connected or not.
func (r *Registry) GetByID(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// LiveConn returns the live connection id for a session, if any.
func (r *Registry) LiveConn(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.ConnID == "" {
		return "", false
	}
	return s.ConnID, true
}

// SetNickname stores the display label. Validation is the caller's
// concern; the registry stores what it is given.
func (r *Registry) SetNickname(sessionID, nickname string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.Nickname = nickname
	}
}

// Alive reports whether a session id still exists. Used as the room
// reaper's liveness predicate.
func (r *Registry) Alive(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// Size returns the number of live sessions (connected or in grace).
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close cancels every pending grace timer and stops scheduling new ones.
// Expiry callbacks no longer fire after Close returns.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for _, s := range r.sessions {
		if s.graceTimer != nil {
			s.graceTimer.Stop()
			s.graceTimer = nil
		}
	}
}

// expire destroys a session whose grace window elapsed, then runs the
// expiry cascade outside the lock. Only the currently stored timer may
// destroy the session; a stale callback whose timer was replaced or
// cancelled (reclaim, Close, a newer disconnect) is a no-op.
func (r *Registry) expire(sessionID string, fired *time.Timer) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok || r.closed || s.graceTimer != fired {
		r.mu.Unlock()
		return
	}
	s.graceTimer = nil
	nickname := s.Nickname
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"component": "session",
		"session":   shortID(sessionID),
	}).Info("Grace period elapsed, session expired")

	if r.onExpired != nil {
		r.onExpired(sessionID, nickname)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
