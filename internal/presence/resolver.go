// Package presence answers "who is in this room and are they online".
// Online status is derived, never stored: a participant is online iff its
// session currently has a live connection bound.
package presence

import (
	"errors"

	"github.com/vagxrth/charlar/internal/room"
	"github.com/vagxrth/charlar/internal/session"
)

var ErrNotParticipant = errors.New("not a participant of this room")

// Participant is one room member with derived liveness.
type Participant struct {
	SessionID string `json:"sessionId"`
	Online    bool   `json:"online"`
	Nickname  string `json:"nickname"`
}

// Resolver combines room membership with session liveness.
type Resolver struct {
	rooms    *room.Registry
	sessions *session.Registry
}

func NewResolver(rooms *room.Registry, sessions *session.Registry) *Resolver {
	if rooms == nil || sessions == nil {
		panic("presence: nil registry")
	}
	return &Resolver{rooms: rooms, sessions: sessions}
}

// RoomPresence lists the room's members with their online state. Only
// current members may ask; outsiders get ErrNotParticipant before any
// room data is revealed.
func (r *Resolver) RoomPresence(code, requesterID string) ([]Participant, error) {
	if !r.rooms.IsParticipant(code, requesterID) {
		return nil, ErrNotParticipant
	}

	members, err := r.rooms.Participants(code)
	if err != nil {
		return nil, err
	}

	participants := make([]Participant, 0, len(members))
	for _, sessionID := range members {
		p := Participant{SessionID: sessionID, Nickname: "Unknown"}
		if s, ok := r.sessions.GetByID(sessionID); ok {
			p.Online = s.Connected()
			if s.Nickname != "" {
				p.Nickname = s.Nickname
			}
		}
		participants = append(participants, p)
	}
	return participants, nil
}

// ParticipantCount returns the live member count, 0 for absent rooms.
func (r *Resolver) ParticipantCount(code string) int {
	return r.rooms.ParticipantCount(code)
}
