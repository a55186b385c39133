// Package signal validates call-negotiation relay requests. The relay is
// stateless per message: it checks payload shape and room authorization,
// resolves the target's live connection, and leaves the actual unicast to
// the transport layer. The peer-connection state machine lives in the
// clients; this package only guarantees the messages that drive it reach
// exactly the named target.
package signal

import (
	"encoding/json"
	"errors"

	"github.com/vagxrth/charlar/internal/room"
	"github.com/vagxrth/charlar/internal/session"
)

const (
	// SDP offers/answers are typically 2-10 KB; anything near the cap is
	// hostile or broken.
	maxSDPLength       = 100_000
	maxCandidateLength = 10_000
)

var (
	ErrInvalidSDP         = errors.New("invalid SDP payload")
	ErrInvalidCandidate   = errors.New("invalid ICE candidate")
	ErrInvalidRoomCode    = errors.New("invalid room code")
	ErrInvalidTarget      = errors.New("invalid target session")
	ErrSelfSignal         = errors.New("cannot signal yourself")
	ErrSenderNotInRoom    = errors.New("not a participant of this room")
	ErrTargetNotInRoom    = errors.New("target is not in this room")
	ErrTargetNotConnected = errors.New("target is not connected")
)

// SDP is an offer or answer session description.
type SDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Relay authorizes point-to-point negotiation traffic between two members
// of the same room.
type Relay struct {
	rooms    *room.Registry
	sessions *session.Registry
}

func NewRelay(rooms *room.Registry, sessions *session.Registry) *Relay {
	if rooms == nil || sessions == nil {
		panic("signal: nil registry")
	}
	return &Relay{rooms: rooms, sessions: sessions}
}

// CheckSDP rejects session descriptions that are not a bounded, non-empty
// offer or answer. Runs before any state lookup.
func CheckSDP(sdp *SDP) error {
	if sdp == nil {
		return ErrInvalidSDP
	}
	if sdp.Type != "offer" && sdp.Type != "answer" {
		return ErrInvalidSDP
	}
	if len(sdp.SDP) == 0 || len(sdp.SDP) > maxSDPLength {
		return ErrInvalidSDP
	}
	return nil
}

// CheckCandidate rejects ICE candidate payloads that are not a bounded
// JSON object whose candidate field, when present, is a string. An empty
// candidate string signals end-of-candidates and is allowed through.
func CheckCandidate(raw json.RawMessage) error {
	if len(raw) == 0 || len(raw) > maxCandidateLength {
		return ErrInvalidCandidate
	}
	// Must be a JSON object; arrays, scalars and null are rejected.
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shape); err != nil || shape == nil {
		return ErrInvalidCandidate
	}
	if c, ok := shape["candidate"]; ok {
		var s string
		if err := json.Unmarshal(c, &s); err != nil {
			return ErrInvalidCandidate
		}
	}
	return nil
}

// Resolve runs the relay validation chain and returns the target's live
// connection id. Order: code format, target presence, self-signal,
// sender membership, target membership, target reachability.
func (r *Relay) Resolve(senderID, roomCode, targetID string) (string, error) {
	if !room.ValidCode(roomCode) {
		return "", ErrInvalidRoomCode
	}
	if targetID == "" {
		return "", ErrInvalidTarget
	}
	if senderID == targetID {
		return "", ErrSelfSignal
	}
	if !r.rooms.IsParticipant(roomCode, senderID) {
		return "", ErrSenderNotInRoom
	}
	if !r.rooms.IsParticipant(roomCode, targetID) {
		return "", ErrTargetNotInRoom
	}
	connID, ok := r.sessions.LiveConn(targetID)
	if !ok {
		return "", ErrTargetNotConnected
	}
	return connID, nil
}
