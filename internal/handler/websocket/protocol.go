package websocket

import (
	"encoding/json"

	"github.com/vagxrth/charlar/internal/presence"
	"github.com/vagxrth/charlar/internal/signal"
)

// Envelope frames every message in both directions. Requests carrying a
// non-zero id receive an "ack" envelope with the same id; id 0 means the
// client declined an acknowledgment and gets a no-op one.
type Envelope struct {
	Event   string          `json:"event"`
	ID      int64           `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event names.
const (
	evRoomCreate      = "room:create"
	evRoomJoin        = "room:join"
	evRoomLeave       = "room:leave"
	evPresenceRequest = "presence:request"
	evSignalOffer     = "signal:offer"
	evSignalAnswer    = "signal:answer"
	evSignalCandidate = "signal:ice-candidate"
	evChatMessage     = "chat:message"
	evTypingStart     = "typing:start"
	evTypingStop      = "typing:stop"
)

// Outbound event names.
const (
	evAck              = "ack"
	evSessionCreated   = "session:created"
	evPeerJoined       = "room:peer-joined"
	evPeerLeft         = "room:peer-left"
	evPeerDisconnected = "room:peer-disconnected"
	evPeerReconnected  = "room:peer-reconnected"
)

// Inbound payloads.

type roomCreateRequest struct {
	Nickname string `json:"nickname"`
}

type roomJoinRequest struct {
	Code     string `json:"code"`
	Nickname string `json:"nickname"`
}

type roomCodeRequest struct {
	Code string `json:"code"`
}

type signalRequest struct {
	RoomCode        string          `json:"roomCode"`
	TargetSessionID string          `json:"targetSessionId"`
	SDP             *signal.SDP     `json:"sdp,omitempty"`
	Candidate       json.RawMessage `json:"candidate,omitempty"`
}

type chatRequest struct {
	RoomCode string `json:"roomCode"`
	Content  string `json:"content"`
}

// Ack payloads.

type ackError struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type ackOK struct {
	OK bool `json:"ok"`
}

type roomCreateAck struct {
	OK               bool   `json:"ok"`
	Code             string `json:"code"`
	ParticipantCount int    `json:"participantCount"`
	Nickname         string `json:"nickname"`
}

type roomJoinAck struct {
	OK               bool                   `json:"ok"`
	ParticipantCount int                    `json:"participantCount"`
	Participants     []presence.Participant `json:"participants"`
	Nickname         string                 `json:"nickname"`
}

type presenceAck struct {
	OK               bool                   `json:"ok"`
	Participants     []presence.Participant `json:"participants"`
	ParticipantCount int                    `json:"participantCount"`
}

type chatAck struct {
	OK        bool   `json:"ok"`
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// Server-emitted payloads.

type sessionCreatedEvent struct {
	SessionID string `json:"sessionId"`
}

type peerEvent struct {
	SessionID        string `json:"sessionId"`
	Nickname         string `json:"nickname,omitempty"`
	ParticipantCount int    `json:"participantCount"`
}

type typingEvent struct {
	SessionID string `json:"sessionId"`
}

type signalOfferEvent struct {
	SessionID string      `json:"sessionId"`
	SDP       *signal.SDP `json:"sdp"`
}

type signalCandidateEvent struct {
	SessionID string          `json:"sessionId"`
	Candidate json.RawMessage `json:"candidate"`
}

type chatMessageEvent struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// encode marshals an envelope with the given payload. Marshalling only
// fails for unsupported types, which would be a programming error, so the
// error is swallowed after logging at the call sites that care.
func encode(event string, id int64, payload any) []byte {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	frame, _ := json.Marshal(Envelope{Event: event, ID: id, Payload: raw})
	return frame
}
