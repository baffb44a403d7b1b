package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	heartbeatInterval = 10 * time.Second
	sendBufferSize    = 16
)

// Connection is an interface that abstracts the websocket connection.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// Client is one WebSocket connection watching a game.
type Client struct {
	ID     string
	GameID string
	conn   Connection
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(gameID string, conn Connection) *Client {
	return &Client{
		ID:     uuid.New().String(),
		GameID: gameID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Send queues data without blocking. It reports false when the client is
// closed or its queue is full.
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// SendJSON marshals v and queues it.
func (c *Client) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal client message", "client.id", c.ID, "error", err)
		return false
	}
	return c.Send(data)
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// WritePump is the only writer of the connection. It exits and closes the
// connection once the client is closed or a write fails.
func (c *Client) WritePump() {
	pingTicker := time.NewTicker(heartbeatInterval)
	defer func() {
		pingTicker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Warn("Failed to write to client", "client.id", c.ID, "game.id", c.GameID, "error", err)
				return
			}
		case <-pingTicker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Warn("Failed to send ping to client, assuming disconnect", "client.id", c.ID, "error", err)
				return
			}
		}
	}
}

// ReadPump hands every incoming message to handle until the connection
// fails, then unregisters the client from h.
func (c *Client) ReadPump(h *Hub, handle func(c *Client, msg []byte)) {
	defer h.Unregister(c)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			slog.Info("Client connection closed", "client.id", c.ID, "game.id", c.GameID, "error", err)
			return
		}
		handle(c, msg)
	}
}
