// Package hub owns the live websocket connections: registration, lookup
// by connection id, and frame delivery. It knows nothing about sessions
// or rooms; the handler layer resolves those and hands the hub targets.
package hub

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Sized for SDP payloads,
	// which run to tens of kilobytes.
	maxMessageSize = 128 * 1024
)

// Hub is the registry of live connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Register adds a client to the registry.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"component": "hub",
		"conn":      c.ID,
	}).Debug("Client registered")
}

// Unregister removes a client and closes its send channel, which stops
// its write pump. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c.ID]
	delete(h.clients, c.ID)
	h.mu.Unlock()

	if present {
		c.closeSend()
		logrus.WithFields(logrus.Fields{
			"component": "hub",
			"conn":      c.ID,
		}).Debug("Client unregistered")
	}
}

// Get returns the client for a connection id.
func (h *Hub) Get(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// Send queues a frame to one connection. Returns false when the
// connection is gone or its send buffer is full; the caller decides
// whether that loss matters.
func (h *Hub) Send(connID string, frame []byte) bool {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.queue(frame)
}

// ForceClose terminates a connection at the transport level. Used when a
// reclaim arrives while the session's previous connection is still open,
// so two connections never share one session.
func (h *Hub) ForceClose(connID string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		c.conn.Close()
	}
}

// Size returns the number of live connections.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
