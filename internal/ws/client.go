package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/Julfy0228/WebMessenger/internal/metrics"
)

const (
	sendBufferSize = 256
	writeDeadline  = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxFrameSize   = 64 * 1024
)

// Client is one live websocket session. Outbound frames flow through a
// buffered channel drained by a single writer, which preserves per-session
// emission order; a full buffer drops the frame rather than blocking the
// broadcaster.
type Client struct {
	SocketID string
	UserID   uint

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func NewClient(socketID string, userID uint, conn *websocket.Conn) *Client {
	return &Client{
		SocketID: socketID,
		UserID:   userID,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
	}
}

func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		metrics.EventsDropped.Inc()
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings. Runs in its own goroutine per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
