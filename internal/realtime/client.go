package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	sendBufferSize = 32
)

// Client owns one websocket connection for one user. Writes go through the
// buffered send channel so producers never block on the transport.
type Client struct {
	userID string
	hub    *Hub
	conn   *websocket.Conn
	logger *zap.Logger

	send      chan Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(userID string, conn *websocket.Conn, hub *Hub, logger *zap.Logger) *Client {
	return &Client{
		userID: userID,
		hub:    hub,
		conn:   conn,
		logger: logger,
		send:   make(chan Envelope, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// UserID returns the authenticated user this connection belongs to. Empty for
// anonymous connections admitted in permissive mode.
func (c *Client) UserID() string {
	return c.userID
}

// TrySend queues the envelope without blocking. A closed connection or a full
// buffer drops the frame.
func (c *Client) TrySend(envelope Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- envelope:
		return true
	default:
		return false
	}
}

// Close tears the connection down. Idempotent; the read pump observes the
// closed socket and completes hub cleanup.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump consumes inbound frames until the peer disconnects. The client
// protocol is push-only, so inbound payloads are discarded; the pump exists
// to observe disconnects and keep pong deadlines fresh.
func (c *Client) readPump() {
	defer func() {
		c.Close()
		c.hub.drop(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error",
					zap.String("user_id", c.userID),
					zap.Error(err))
			}
			return
		}
	}
}

// writePump drains the send channel onto the socket and keeps the peer alive
// with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case envelope := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(envelope); err != nil {
				c.logger.Debug("websocket write error",
					zap.String("user_id", c.userID),
					zap.Error(err))
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
