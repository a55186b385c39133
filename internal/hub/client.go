package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client wraps one websocket connection with its read/write pumps and a
// buffered outbound queue.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// onMessage runs on the read-pump goroutine, so events from one
	// connection are always handled in arrival order.
	onMessage func(c *Client, frame []byte)

	// onClose runs once when the read pump exits.
	onClose func(c *Client)

	// mu guards closed. A sender that resolved this client just before
	// it was unregistered observes the flag instead of a closed channel.
	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, onMessage func(*Client, []byte), onClose func(*Client)) *Client {
	return &Client{
		ID:        uuid.NewString(),
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		onMessage: onMessage,
		onClose:   onClose,
	}
}

// Run starts the client's pumps.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

// queue attempts a non-blocking enqueue so one slow consumer cannot
// stall a broadcast.
func (c *Client) queue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"component": "hub",
			"conn":      c.ID,
		}).Warn("Send channel full, dropping frame")
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump pumps frames from the websocket to the handler. There is at
// most one reader per connection; all reads happen here.
func (c *Client) readPump() {
	defer func() {
		if c.onClose != nil {
			c.onClose(c)
		}
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logrus.WithFields(logrus.Fields{
					"component": "hub",
					"conn":      c.ID,
				}).WithError(err).Warn("Websocket read error")
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if c.onMessage != nil {
			c.onMessage(c, frame)
		}
	}
}

// writePump pumps frames from the send channel to the websocket and
// keeps the connection alive with pings. There is at most one writer per
// connection; all writes happen here.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
