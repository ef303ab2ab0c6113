package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/OfirPatish/Chattrix-sub000/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
)

// Client is one live socket connection attributed to a user. It is
// runtime-only state; nothing about it is persisted.
type Client struct {
	ID     uuid.UUID
	User   *models.User
	Socket *websocket.Conn
	Send   chan []byte

	// rooms this connection has joined; guarded by the hub mutex
	rooms map[string]bool
}

func newClient(user *models.User, socket *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.New(),
		User:   user,
		Socket: socket,
		Send:   make(chan []byte, 256),
		rooms:  make(map[string]bool),
	}
}

// readPump pumps events from the socket into the handler
func (c *Client) readPump(h *Handler) {
	defer func() {
		h.handleDisconnect(c)
		h.hub.unregister <- c
		c.Socket.Close()
	}()

	c.Socket.SetReadLimit(maxMessageSize)
	c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	c.Socket.SetPongHandler(func(string) error {
		c.Socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("Error reading from client %s: %v", c.ID, err)
			} else {
				log.Info("Client %s closed connection: %v", c.ID, err)
			}
			break
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			log.Warn("Malformed event from client %s: %v", c.ID, err)
			h.hub.EmitToClient(c, EventError, ErrorPayload{Message: "invalid event format"})
			continue
		}

		h.dispatch(c, envelope)
	}
}

// writePump pumps events from the hub to the socket
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
