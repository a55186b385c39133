// Package chat is the message-delivery collaborator at the core's
// boundary: it validates and throttles chat messages, leaving broadcast
// to the transport layer.
package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vagxrth/charlar/internal/ratelimit"
	"github.com/vagxrth/charlar/internal/room"
)

const (
	maxMessageLength = 1000
	throttleWindow   = 3 * time.Second
	throttleMax      = 5
)

var (
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds 1000 characters")
	ErrNotParticipant  = errors.New("not a participant of this room")
	ErrTooFast         = errors.New("sending messages too fast")
)

// Message is a validated chat message ready for broadcast.
type Message struct {
	ID        string `json:"id"`
	RoomCode  string `json:"-"`
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Service validates messages and throttles senders on the same
// sliding-window primitive the abuse guards use.
type Service struct {
	rooms    *room.Registry
	throttle *ratelimit.Limiter
}

func NewService(rooms *room.Registry) *Service {
	if rooms == nil {
		panic("chat: nil room registry")
	}
	return &Service{
		rooms:    rooms,
		throttle: ratelimit.NewLimiter(throttleMax, throttleWindow),
	}
}

// ProcessMessage validates, authorizes and throttles one message.
// Validation never mutates state; the throttle records only admitted
// messages.
func (s *Service) ProcessMessage(roomCode, sessionID, content string) (Message, error) {
	if roomCode == "" {
		return Message{}, ErrInvalidRoomCode
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Message{}, ErrEmptyMessage
	}
	if len(trimmed) > maxMessageLength {
		return Message{}, ErrMessageTooLong
	}

	if !s.rooms.IsParticipant(roomCode, sessionID) {
		return Message{}, ErrNotParticipant
	}

	if !s.throttle.Allow(sessionID) {
		return Message{}, ErrTooFast
	}

	return Message{
		ID:        uuid.NewString(),
		RoomCode:  roomCode,
		SessionID: sessionID,
		Content:   trimmed,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// ClearSession drops throttle state for an expired session.
func (s *Service) ClearSession(sessionID string) {
	s.throttle.Forget(sessionID)
}

// Sweep trims fully-expired throttle windows.
func (s *Service) Sweep() int {
	return s.throttle.Sweep()
}
