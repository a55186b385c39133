// Package websocket is the transport adapter: it upgrades connections,
// resolves session identity for each one, dispatches inbound events into
// the domain components, and carries their broadcasts and unicasts back
// out. All domain handler code for a connection runs on that connection's
// read-pump goroutine, so events from one connection are processed in
// arrival order.
package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vagxrth/charlar/internal/chat"
	"github.com/vagxrth/charlar/internal/hub"
	"github.com/vagxrth/charlar/internal/presence"
	"github.com/vagxrth/charlar/internal/ratelimit"
	"github.com/vagxrth/charlar/internal/room"
	"github.com/vagxrth/charlar/internal/session"
	"github.com/vagxrth/charlar/internal/signal"
	"github.com/vagxrth/charlar/internal/typing"
)

const (
	// Per-connection event ceiling. Disconnects are not events and are
	// never counted.
	eventLimit  = 50
	eventWindow = 10 * time.Second

	// Failed room-code guesses per session. The sixth wrong guess inside
	// the window is rejected before the room table is touched.
	failedJoinLimit  = 5
	failedJoinWindow = time.Minute
)

var (
	errRateLimited     = errors.New("too many requests, slow down")
	errTooManyAttempts = errors.New("too many attempts, try again later")
	errUnknownEvent    = errors.New("unknown event")
	errBadPayload      = errors.New("malformed payload")
)

// Gateway wires the hub to the domain components. It constructs the
// pieces that need its broadcast capability (session registry, typing
// service) itself, keeping the dependency graph acyclic.
type Gateway struct {
	hub      *hub.Hub
	rooms    *room.Registry
	sessions *session.Registry
	presence *presence.Resolver
	relay    *signal.Relay
	chat     *chat.Service
	typing   *typing.Service

	eventGuard *ratelimit.Limiter
	joinGuard  *ratelimit.Limiter

	upgrader gorilla.Upgrader
	handlers map[string]handlerFunc
}

type handlerFunc func(g *Gateway, sess *session.Session, payload json.RawMessage) (any, error)

func NewGateway(h *hub.Hub, rooms *room.Registry, grace time.Duration) *Gateway {
	if h == nil || rooms == nil {
		panic("websocket: nil dependency for Gateway")
	}

	g := &Gateway{
		hub:        h,
		rooms:      rooms,
		chat:       chat.NewService(rooms),
		eventGuard: ratelimit.NewLimiter(eventLimit, eventWindow),
		joinGuard:  ratelimit.NewLimiter(failedJoinLimit, failedJoinWindow),
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers enforce same-origin for the page itself; the ws
			// endpoint trusts the CORS-checked origin upstream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	g.typing = typing.NewService(rooms, g.onTypingExpired)
	g.sessions = session.NewRegistry(grace, g.onSessionExpired)
	g.presence = presence.NewResolver(rooms, g.sessions)
	g.relay = signal.NewRelay(rooms, g.sessions)

	g.handlers = map[string]handlerFunc{
		evRoomCreate:      (*Gateway).handleRoomCreate,
		evRoomJoin:        (*Gateway).handleRoomJoin,
		evRoomLeave:       (*Gateway).handleRoomLeave,
		evPresenceRequest: (*Gateway).handlePresenceRequest,
		evSignalOffer:     (*Gateway).handleSignalOffer,
		evSignalAnswer:    (*Gateway).handleSignalAnswer,
		evSignalCandidate: (*Gateway).handleSignalCandidate,
		evChatMessage:     (*Gateway).handleChatMessage,
		evTypingStart:     (*Gateway).handleTypingStart,
		evTypingStop:      (*Gateway).handleTypingStop,
	}
	return g
}

// Sessions exposes the session registry for lifecycle management and the
// reaper's liveness predicate.
func (g *Gateway) Sessions() *session.Registry { return g.sessions }

// Sweep trims fully-expired guard windows. Run periodically.
func (g *Gateway) Sweep() int {
	return g.eventGuard.Sweep() + g.joinGuard.Sweep() + g.chat.Sweep()
}

// HandleConnection upgrades the request and performs the connection
// handshake: reclaim the supplied prior session if it is still within its
// grace window, otherwise mint a fresh one, then tell the client its id.
func (g *Gateway) HandleConnection(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logrus.WithError(err).Warn("Failed to upgrade connection")
		return
	}

	client := hub.NewClient(g.hub, conn, g.handleFrame, g.handleClose)

	sess, reconnected := g.resolveSession(client.ID, c.Query("sessionId"))

	g.hub.Register(client)
	client.Run()

	logCtx := logrus.WithFields(logrus.Fields{
		"component": "gateway",
		"session":   shortID(sess.ID),
		"conn":      client.ID,
	})

	g.hub.Send(client.ID, encode(evSessionCreated, 0, sessionCreatedEvent{SessionID: sess.ID}))

	if reconnected {
		codes := g.rooms.RoomsBySession(sess.ID)
		for _, code := range codes {
			g.broadcastRoom(code, sess.ID, evPeerReconnected, peerEvent{
				SessionID:        sess.ID,
				Nickname:         sess.Nickname,
				ParticipantCount: g.rooms.ParticipantCount(code),
			})
		}
		logCtx.WithField("rooms", len(codes)).Info("Client reconnected, session reclaimed")
	} else {
		logCtx.Info("Client connected")
	}
}

// resolveSession reclaims the prior session when possible, falling back
// to a fresh identity. An unknown or expired prior id is not an error.
// Reclaim force-terminates the session's previous connection if it is
// somehow still open, keeping the session↔connection mapping bijective.
func (g *Gateway) resolveSession(connID, priorID string) (*session.Session, bool) {
	if priorID != "" {
		if sess, prevConn, ok := g.sessions.Reclaim(priorID, connID); ok {
			if prevConn != "" {
				g.hub.ForceClose(prevConn)
			}
			return sess, true
		}
	}
	return g.sessions.Create(connID), false
}

// handleFrame runs on the owning connection's read-pump goroutine.
func (g *Gateway) handleFrame(c *hub.Client, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
		logrus.WithFields(logrus.Fields{
			"component": "gateway",
			"conn":      c.ID,
		}).Warn("Dropping malformed frame")
		return
	}

	if !g.eventGuard.Allow(c.ID) {
		g.ack(c, env.ID, nil, errRateLimited)
		return
	}

	sess, ok := g.sessions.GetByConn(c.ID)
	if !ok {
		// Connection lost its session (force-closed during reclaim);
		// nothing can be authorized anymore.
		g.ack(c, env.ID, nil, session.ErrNotFound)
		return
	}

	handler, ok := g.handlers[env.Event]
	if !ok {
		g.ack(c, env.ID, nil, errUnknownEvent)
		return
	}

	result, err := handler(g, sess, env.Payload)
	g.ack(c, env.ID, result, err)
}

// handleClose runs when a connection's read pump exits, for any reason.
// The session survives in its grace window; peers learn the participant
// is offline but still a member.
func (g *Gateway) handleClose(c *hub.Client) {
	sess, err := g.sessions.HandleDisconnect(c.ID)
	if err != nil {
		// Already unbound: a reclaim raced this disconnect and won.
		return
	}

	for _, code := range g.typing.ClearSession(sess.ID) {
		g.broadcastRoom(code, sess.ID, evTypingStop, typingEvent{SessionID: sess.ID})
	}

	for _, code := range g.rooms.RoomsBySession(sess.ID) {
		g.broadcastRoom(code, sess.ID, evPeerDisconnected, peerEvent{
			SessionID:        sess.ID,
			Nickname:         sess.Nickname,
			ParticipantCount: g.rooms.ParticipantCount(code),
		})
	}

	logrus.WithFields(logrus.Fields{
		"component": "gateway",
		"session":   shortID(sess.ID),
		"conn":      c.ID,
	}).Info("Client disconnected, grace period started")
}

// onSessionExpired is the grace-window expiry cascade: evict the session
// from every room, drop its throttle state, and tell the remaining peers
// it left for good.
func (g *Gateway) onSessionExpired(sessionID, nickname string) {
	g.chat.ClearSession(sessionID)
	g.joinGuard.Forget(sessionID)

	for _, code := range g.typing.ClearSession(sessionID) {
		g.broadcastRoom(code, sessionID, evTypingStop, typingEvent{SessionID: sessionID})
	}

	for _, code := range g.rooms.RemoveFromAll(sessionID) {
		g.broadcastRoom(code, sessionID, evPeerLeft, peerEvent{
			SessionID:        sessionID,
			Nickname:         nickname,
			ParticipantCount: g.rooms.ParticipantCount(code),
		})
		logrus.WithFields(logrus.Fields{
			"component": "gateway",
			"session":   shortID(sessionID),
			"room":      code,
		}).Info("Expired session removed from room")
	}
}

// onTypingExpired broadcasts the auto-expired stop to the whole room,
// including the typer's own connection.
func (g *Gateway) onTypingExpired(roomCode, sessionID string) {
	g.broadcastRoom(roomCode, "", evTypingStop, typingEvent{SessionID: sessionID})
}

// ack answers a request. A zero id means the caller declined an
// acknowledgment; per the contract that is a no-op, never a fault.
func (g *Gateway) ack(c *hub.Client, id int64, result any, err error) {
	if id == 0 {
		return
	}
	if err != nil {
		g.hub.Send(c.ID, encode(evAck, id, ackError{Error: err.Error()}))
		return
	}
	if result == nil {
		result = ackOK{OK: true}
	}
	g.hub.Send(c.ID, encode(evAck, id, result))
}

// broadcastRoom fans an event out to every current room member with a
// live connection, excluding exceptSessionID when non-empty. Delivery is
// per-connection best effort; a full send buffer drops the frame for
// that member only.
func (g *Gateway) broadcastRoom(code, exceptSessionID, event string, payload any) {
	members, err := g.rooms.Participants(code)
	if err != nil {
		return
	}

	frame := encode(event, 0, payload)
	for _, memberID := range members {
		if memberID == exceptSessionID {
			continue
		}
		if connID, ok := g.sessions.LiveConn(memberID); ok {
			g.hub.Send(connID, frame)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
