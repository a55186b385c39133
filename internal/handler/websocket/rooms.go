package websocket

import (
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/vagxrth/charlar/internal/presence"
	"github.com/vagxrth/charlar/internal/room"
	"github.com/vagxrth/charlar/internal/session"
)

var errInvalidRoomCode = errors.New("invalid room code")

func (g *Gateway) handleRoomCreate(sess *session.Session, payload json.RawMessage) (any, error) {
	var req roomCreateRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, errBadPayload
		}
	}

	code, err := g.rooms.CreateRoom(sess.ID)
	if err != nil {
		return nil, err
	}

	// Only a successful create may touch session state.
	nickname := g.assignNickname(sess, req.Nickname)

	logrus.WithFields(logrus.Fields{
		"component": "gateway",
		"session":   shortID(sess.ID),
		"room":      code,
	}).Info("Room created")

	return roomCreateAck{OK: true, Code: code, ParticipantCount: 1, Nickname: nickname}, nil
}

func (g *Gateway) handleRoomJoin(sess *session.Session, payload json.RawMessage) (any, error) {
	var req roomJoinRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errBadPayload
	}

	if !room.ValidCode(req.Code) {
		return nil, errInvalidRoomCode
	}

	// Brute-force defense: repeated failed guesses lock the session out
	// before the room table is consulted at all.
	if !g.joinGuard.Allowed(sess.ID) {
		return nil, errTooManyAttempts
	}

	if err := g.rooms.JoinRoom(req.Code, sess.ID); err != nil {
		g.joinGuard.Record(sess.ID)
		return nil, err
	}

	nickname := g.assignNickname(sess, req.Nickname)
	participantCount := g.rooms.ParticipantCount(req.Code)

	g.broadcastRoom(req.Code, sess.ID, evPeerJoined, peerEvent{
		SessionID:        sess.ID,
		Nickname:         nickname,
		ParticipantCount: participantCount,
	})

	participants, err := g.presence.RoomPresence(req.Code, sess.ID)
	if err != nil {
		participants = []presence.Participant{}
	}

	logrus.WithFields(logrus.Fields{
		"component": "gateway",
		"session":   shortID(sess.ID),
		"room":      req.Code,
	}).Info("Room joined")

	return roomJoinAck{
		OK:               true,
		ParticipantCount: participantCount,
		Participants:     participants,
		Nickname:         nickname,
	}, nil
}

func (g *Gateway) handleRoomLeave(sess *session.Session, payload json.RawMessage) (any, error) {
	var req roomCodeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errBadPayload
	}
	if !room.ValidCode(req.Code) {
		return nil, errInvalidRoomCode
	}

	g.rooms.LeaveRoom(req.Code, sess.ID)
	g.typing.Stop(req.Code, sess.ID)

	g.broadcastRoom(req.Code, sess.ID, evPeerLeft, peerEvent{
		SessionID:        sess.ID,
		Nickname:         sess.Nickname,
		ParticipantCount: g.rooms.ParticipantCount(req.Code),
	})

	logrus.WithFields(logrus.Fields{
		"component": "gateway",
		"session":   shortID(sess.ID),
		"room":      req.Code,
	}).Info("Room left")

	return ackOK{OK: true}, nil
}

func (g *Gateway) handlePresenceRequest(sess *session.Session, payload json.RawMessage) (any, error) {
	var req roomCodeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errBadPayload
	}
	if !room.ValidCode(req.Code) {
		return nil, errInvalidRoomCode
	}

	participants, err := g.presence.RoomPresence(req.Code, sess.ID)
	if err != nil {
		return nil, err
	}

	return presenceAck{
		OK:               true,
		Participants:     participants,
		ParticipantCount: len(participants),
	}, nil
}

// assignNickname normalizes the requested display name, or keeps the
// session's current one when nothing usable is requested, falling back
// to a generated guest name on first room entry.
func (g *Gateway) assignNickname(sess *session.Session, requested string) string {
	if requested == "" && sess.Nickname != "" {
		return sess.Nickname
	}
	nickname := session.NormalizeNickname(requested)
	g.sessions.SetNickname(sess.ID, nickname)
	return nickname
}
