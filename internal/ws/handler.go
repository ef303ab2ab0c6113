package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/OfirPatish/Chattrix-sub000/internal/database"
)

// Handler owns the socket endpoint: handshake authentication, presence
// and room setup, and dispatch of client events into the pipeline.
type Handler struct {
	hub           *Hub
	store         database.Store
	authenticator *Authenticator
	pipeline      *Pipeline
	upgrader      websocket.Upgrader
}

// NewHandler wires the socket layer together
func NewHandler(hub *Hub, store database.Store, authenticator *Authenticator) *Handler {
	return &Handler{
		hub:           hub,
		store:         store,
		authenticator: authenticator,
		pipeline:      NewPipeline(store, hub),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Browser origin policy is enforced by the CORS layer in
				// front of the REST API; socket handshakes are gated by the
				// token instead
				return true
			},
		},
	}
}

// Pipeline exposes the delivery pipeline, mainly for tests
func (h *Handler) Pipeline() *Pipeline {
	return h.pipeline
}

// HandleWebSocket authenticates the handshake and upgrades the
// connection. The token travels in the `token` query parameter, not a
// regular header: browsers cannot set headers on socket handshakes.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")

	user, err := h.authenticator.Authenticate(c.Request.Context(), token)
	if err != nil {
		var rejection *RejectionError
		reason := "authentication failed"
		if errors.As(err, &rejection) {
			reason = rejection.Reason
		}
		log.Warn("Handshake rejected for %s: %s", c.Request.RemoteAddr, reason)
		c.JSON(http.StatusUnauthorized, gin.H{"error": reason})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade connection: %v", err)
		return
	}

	client := newClient(user, conn)
	h.hub.Register(client)

	go client.writePump()
	go client.readPump(h)

	h.setupPresence(client)
}

// setupPresence joins the authenticated connection to its rooms and
// announces the user online. The chat lookup and the online flip run
// concurrently. Failures here degrade presence accuracy but never drop
// the connection; they are logged and the client stays connected.
func (h *Handler) setupPresence(client *Client) {
	userID := client.User.ID

	var (
		wg      sync.WaitGroup
		chatIDs []uuid.UUID
		lookupErr, flipErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		chatIDs, lookupErr = h.store.ChatIDsForUser(userID)
	}()
	go func() {
		defer wg.Done()
		flipErr = h.store.SetOnline(userID, true)
	}()
	wg.Wait()

	if lookupErr != nil {
		log.Error("Presence setup: chat lookup failed for user %s: %v", userID, lookupErr)
	}
	if flipErr != nil {
		log.Error("Presence setup: online flip failed for user %s: %v", userID, flipErr)
	}

	// Personal room first, then every chat the user participates in
	h.hub.JoinRoom(userID.String(), client)
	for _, chatID := range chatIDs {
		h.hub.JoinRoom(chatID.String(), client)
	}

	// Global broadcast: any connected user might have this user in
	// their chat list
	h.hub.EmitToAll(EventUserOnline, PresencePayload{UserID: userID, IsOnline: true}, client)
}

// handleDisconnect flips the user offline and announces it. Connect and
// disconnect race under multiple tabs from the same user; the last flip
// wins. That is a known simplification, not reference-counted.
func (h *Handler) handleDisconnect(client *Client) {
	userID := client.User.ID

	if err := h.store.SetOnline(userID, false); err != nil {
		log.Error("Offline flip failed for user %s: %v", userID, err)
	}

	h.hub.EmitToAll(EventUserOffline, PresencePayload{UserID: userID, IsOnline: false}, client)
}

// dispatch routes one decoded envelope. Validation and authorization
// failures become a single error event back to the emitting client;
// they are never broadcast and never fatal to the connection.
func (h *Handler) dispatch(client *Client, envelope Envelope) {
	switch envelope.Event {
	case EventJoinChat:
		h.handleJoinChat(client, envelope.Data)
	case EventLeaveChat:
		h.handleLeaveChat(client, envelope.Data)
	case EventSendMessage:
		h.handleSendMessage(client, envelope.Data)
	case EventTypingStart, EventTypingStop:
		h.handleTyping(client, envelope.Data, envelope.Event == EventTypingStart)
	case EventMarkRead:
		h.handleMarkRead(client, envelope.Data)
	default:
		log.Warn("Unknown event %q from client %s", envelope.Event, client.ID)
		h.emitError(client, "unknown event")
	}
}

func (h *Handler) emitError(client *Client, message string) {
	h.hub.EmitToClient(client, EventError, ErrorPayload{Message: message})
}

// handleJoinChat verifies the requester actually participates in the
// chat before joining the room. Unauthorized attempts get an error
// event and no room membership.
func (h *Handler) handleJoinChat(client *Client, data json.RawMessage) {
	chatID, err := decodeChatID(data)
	if err != nil {
		h.emitError(client, "invalid chat id")
		return
	}

	ok, err := h.store.IsParticipant(chatID, client.User.ID)
	if err != nil {
		log.Error("join-chat authorization failed for user %s: %v", client.User.ID, err)
		h.emitError(client, "failed to join chat")
		return
	}
	if !ok {
		log.Warn("User %s attempted to join chat %s without membership", client.User.ID, chatID)
		h.emitError(client, "chat not found or access denied")
		return
	}

	h.hub.JoinRoom(chatID.String(), client)
}

// handleLeaveChat is unconditional: leaving needs no authorization
func (h *Handler) handleLeaveChat(client *Client, data json.RawMessage) {
	chatID, err := decodeChatID(data)
	if err != nil {
		h.emitError(client, "invalid chat id")
		return
	}

	h.hub.LeaveRoom(chatID.String(), client)
}

func (h *Handler) handleSendMessage(client *Client, data json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChatID == uuid.Nil {
		h.emitError(client, "invalid send-message payload")
		return
	}

	if _, err := h.pipeline.CreateMessage(client, payload); err != nil {
		log.Warn("send-message from user %s failed: %v", client.User.ID, err)
		switch {
		case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMessageTooLong):
			h.emitError(client, err.Error())
		case errors.Is(err, database.ErrChatNotFound):
			h.emitError(client, "chat not found or access denied")
		default:
			h.emitError(client, "failed to send message")
		}
	}
}

func (h *Handler) handleTyping(client *Client, data json.RawMessage, typing bool) {
	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChatID == uuid.Nil {
		h.emitError(client, "invalid typing payload")
		return
	}

	h.pipeline.RelayTyping(client, payload.ChatID, typing)
}

func (h *Handler) handleMarkRead(client *Client, data json.RawMessage) {
	var payload MarkReadPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.MessageID == uuid.Nil {
		h.emitError(client, "invalid mark-read payload")
		return
	}

	if err := h.pipeline.MarkAsRead(client, payload.MessageID); err != nil {
		log.Warn("mark-read from user %s failed: %v", client.User.ID, err)
		switch {
		case errors.Is(err, database.ErrMessageNotFound):
			h.emitError(client, "message not found")
		case errors.Is(err, ErrNotParticipant):
			h.emitError(client, "not a participant of this chat")
		default:
			h.emitError(client, "failed to mark message as read")
		}
	}
}
