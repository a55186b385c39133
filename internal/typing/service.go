// Package typing tracks who is typing in which room. Indicators
// auto-expire so a crashed client cannot stay "typing" forever.
package typing

import (
	"errors"
	"sync"
	"time"

	"github.com/vagxrth/charlar/internal/room"
)

const defaultAutoExpire = 5 * time.Second

var ErrNotParticipant = errors.New("not a participant of this room")

// ExpiredFunc is invoked when an indicator auto-expires, so the transport
// layer can broadcast the stop. Injected at construction; runs outside
// the service lock.
type ExpiredFunc func(roomCode, sessionID string)

// Service holds per-room typing state with cancellable expiry timers.
type Service struct {
	mu        sync.Mutex
	rooms     *room.Registry
	typing    map[string]map[string]*time.Timer // roomCode → sessionID → timer
	expire    time.Duration
	onExpired ExpiredFunc
}

func NewService(rooms *room.Registry, onExpired ExpiredFunc) *Service {
	if rooms == nil {
		panic("typing: nil room registry")
	}
	return &Service{
		rooms:     rooms,
		typing:    make(map[string]map[string]*time.Timer),
		expire:    defaultAutoExpire,
		onExpired: onExpired,
	}
}

// Start marks the session as typing, resetting the auto-expire timer if
// it already was.
func (s *Service) Start(roomCode, sessionID string) error {
	if !s.rooms.IsParticipant(roomCode, sessionID) {
		return ErrNotParticipant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byRoom := s.typing[roomCode]
	if byRoom == nil {
		byRoom = make(map[string]*time.Timer)
		s.typing[roomCode] = byRoom
	}
	if t := byRoom[sessionID]; t != nil {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(s.expire, func() {
		s.autoExpire(roomCode, sessionID, t)
	})
	byRoom[sessionID] = t
	return nil
}

// Stop clears the indicator. Returns false if the session was not typing,
// so callers can skip the broadcast.
func (s *Service) Stop(roomCode, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear(roomCode, sessionID)
}

// ClearSession drops typing state everywhere for a session and returns
// the rooms where it was typing, for stop fan-out.
func (s *Service) ClearSession(sessionID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var codes []string
	for roomCode, byRoom := range s.typing {
		if _, ok := byRoom[sessionID]; ok {
			s.clear(roomCode, sessionID)
			codes = append(codes, roomCode)
		}
	}
	return codes
}

// clear cancels and removes one indicator. Caller must hold s.mu.
func (s *Service) clear(roomCode, sessionID string) bool {
	byRoom := s.typing[roomCode]
	if byRoom == nil {
		return false
	}
	t, ok := byRoom[sessionID]
	if !ok {
		return false
	}
	t.Stop()
	delete(byRoom, sessionID)
	if len(byRoom) == 0 {
		delete(s.typing, roomCode)
	}
	return true
}

// autoExpire fires on the timer goroutine. The fired timer is compared
// against the stored one under the lock: a callback that was already in
// flight when a restart or an explicit Stop replaced or removed the
// entry is a no-op, and cannot cancel the fresh window.
func (s *Service) autoExpire(roomCode, sessionID string, fired *time.Timer) {
	s.mu.Lock()
	if s.typing[roomCode][sessionID] != fired {
		s.mu.Unlock()
		return
	}
	expired := s.clear(roomCode, sessionID)
	s.mu.Unlock()

	if expired && s.onExpired != nil {
		s.onExpired(roomCode, sessionID)
	}
}
