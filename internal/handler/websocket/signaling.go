package websocket

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/vagxrth/charlar/internal/session"
	"github.com/vagxrth/charlar/internal/signal"
)

// handleSignalOffer and handleSignalAnswer relay reliably: a frame that
// cannot be queued to the target comes back as a failure ack so the
// sender can surface "peer unreachable". Candidates are loss-tolerant.

func (g *Gateway) handleSignalOffer(sess *session.Session, payload json.RawMessage) (any, error) {
	return g.relaySDP(sess, payload, evSignalOffer)
}

func (g *Gateway) handleSignalAnswer(sess *session.Session, payload json.RawMessage) (any, error) {
	return g.relaySDP(sess, payload, evSignalAnswer)
}

func (g *Gateway) relaySDP(sess *session.Session, payload json.RawMessage, event string) (any, error) {
	var req signalRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errBadPayload
	}

	// Payload shape first: oversized or malformed SDP never reaches a
	// state lookup.
	if err := signal.CheckSDP(req.SDP); err != nil {
		return nil, err
	}

	targetConn, err := g.relay.Resolve(sess.ID, req.RoomCode, req.TargetSessionID)
	if err != nil {
		return nil, err
	}

	delivered := g.hub.Send(targetConn, encode(event, 0, signalOfferEvent{
		SessionID: sess.ID,
		SDP:       req.SDP,
	}))
	if !delivered {
		return nil, signal.ErrTargetNotConnected
	}

	logrus.WithFields(logrus.Fields{
		"component": "gateway",
		"from":      shortID(sess.ID),
		"to":        shortID(req.TargetSessionID),
		"room":      req.RoomCode,
	}).Debugf("%s relayed", event)

	return ackOK{OK: true}, nil
}

func (g *Gateway) handleSignalCandidate(sess *session.Session, payload json.RawMessage) (any, error) {
	var req signalRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errBadPayload
	}

	if err := signal.CheckCandidate(req.Candidate); err != nil {
		return nil, err
	}

	targetConn, err := g.relay.Resolve(sess.ID, req.RoomCode, req.TargetSessionID)
	if err != nil {
		return nil, err
	}

	// Best effort: candidate loss is recoverable, the peer connection
	// retries or succeeds on a later candidate.
	g.hub.Send(targetConn, encode(evSignalCandidate, 0, signalCandidateEvent{
		SessionID: sess.ID,
		Candidate: req.Candidate,
	}))

	return ackOK{OK: true}, nil
}
