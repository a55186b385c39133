package websocket

import (
	"encoding/json"

	"github.com/vagxrth/charlar/internal/room"
	"github.com/vagxrth/charlar/internal/session"
)

func (g *Gateway) handleChatMessage(sess *session.Session, payload json.RawMessage) (any, error) {
	var req chatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errBadPayload
	}

	msg, err := g.chat.ProcessMessage(req.RoomCode, sess.ID, req.Content)
	if err != nil {
		return nil, err
	}

	// Sending a message implicitly stops the typing indicator.
	g.typing.Stop(msg.RoomCode, sess.ID)

	g.broadcastRoom(msg.RoomCode, sess.ID, evChatMessage, chatMessageEvent{
		ID:        msg.ID,
		SessionID: sess.ID,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	})

	return chatAck{OK: true, ID: msg.ID, Timestamp: msg.Timestamp}, nil
}

func (g *Gateway) handleTypingStart(sess *session.Session, payload json.RawMessage) (any, error) {
	var req roomCodeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errBadPayload
	}
	if !room.ValidCode(req.Code) {
		return nil, errInvalidRoomCode
	}

	if err := g.typing.Start(req.Code, sess.ID); err != nil {
		return nil, err
	}

	g.broadcastRoom(req.Code, sess.ID, evTypingStart, typingEvent{SessionID: sess.ID})
	return ackOK{OK: true}, nil
}

func (g *Gateway) handleTypingStop(sess *session.Session, payload json.RawMessage) (any, error) {
	var req roomCodeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errBadPayload
	}
	if !room.ValidCode(req.Code) {
		return nil, errInvalidRoomCode
	}

	if g.typing.Stop(req.Code, sess.ID) {
		g.broadcastRoom(req.Code, sess.ID, evTypingStop, typingEvent{SessionID: sess.ID})
	}
	return ackOK{OK: true}, nil
}
