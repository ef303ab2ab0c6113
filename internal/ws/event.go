package ws

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Client-to-server event names
const (
	EventJoinChat    = "join-chat"
	EventLeaveChat   = "leave-chat"
	EventSendMessage = "send-message"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
	EventMarkRead    = "mark-read"
)

// Server-to-client event names. Note the asymmetry: clients emit
// "typing-stop" but the room receives "typing-stopped".
const (
	EventReceiveMessage = "receive-message"
	EventMessageRead    = "message-read"
	EventUserOnline     = "user-online"
	EventUserOffline    = "user-offline"
	EventTypingStarted  = "typing-start"
	EventTypingStopped  = "typing-stopped"
	EventError          = "error"
)

// Envelope is the wire format for socket events in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an event and its payload into wire bytes
func Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// SendMessagePayload is the body of a send-message event
type SendMessagePayload struct {
	ChatID      uuid.UUID `json:"chatId"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
}

// TypingPayload is the body of typing-start / typing-stop from clients
type TypingPayload struct {
	ChatID uuid.UUID `json:"chatId"`
}

// MarkReadPayload is the body of a mark-read event
type MarkReadPayload struct {
	MessageID uuid.UUID `json:"messageId"`
}

// MessageReadPayload is the body of a message-read broadcast
type MessageReadPayload struct {
	MessageID uuid.UUID `json:"messageId"`
	UserID    uuid.UUID `json:"userId"`
}

// PresencePayload is the body of user-online / user-offline broadcasts
type PresencePayload struct {
	UserID   uuid.UUID `json:"userId"`
	IsOnline bool      `json:"isOnline"`
}

// TypingBroadcastPayload is the body of typing-start / typing-stopped
// broadcasts to a chat room
type TypingBroadcastPayload struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
}

// ErrorPayload is the body of an error event sent back to the emitter
type ErrorPayload struct {
	Message string `json:"message"`
}

// decodeChatID accepts the join-chat / leave-chat data field, which is
// a bare chat id string on the wire
func decodeChatID(data json.RawMessage) (uuid.UUID, error) {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(raw)
}
