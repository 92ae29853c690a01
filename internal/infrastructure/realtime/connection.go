package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// ErrConnClosed is returned by Send once the connection has been torn down.
var ErrConnClosed = errors.New("realtime: connection closed")

// Connection wraps one client websocket and serializes outbound writes
// through a buffered channel so any goroutine can Send safely.
type Connection struct {
	ID     string
	UserID string

	ws     *websocket.Conn
	send   chan []byte
	once   sync.Once
	closed chan struct{}
}

// NewConnection constructs a Connection for the given user.
func NewConnection(userID string, ws *websocket.Conn) *Connection {
	return &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Start launches the write pump. Call exactly once per connection.
func (c *Connection) Start() {
	go c.writePump()
}

// Send enqueues payload for delivery. A slow client that fills the buffer
// gets closed so backpressure stays bounded.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return ErrConnClosed
	}
}

// Close tears down the connection exactly once. Safe to call from any
// goroutine and safe to call repeatedly.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		if c.ws == nil {
			return
		}
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
