package models

import (
	"time"

	"github.com/google/uuid"
)

// Message kinds
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// MaxContentLength is the maximum message content length in runes
const MaxContentLength = 5000

// ReadReceipt records that a user has seen a message. A user appears
// at most once in a message's ReadBy list.
type ReadReceipt struct {
	UserID uuid.UUID `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// Message represents a chat message in the system
type Message struct {
	ID          uuid.UUID     `json:"id"`
	ChatID      uuid.UUID     `json:"chat_id"`
	SenderID    uuid.UUID     `json:"sender_id"`
	Content     string        `json:"content"`
	MessageType string        `json:"message_type"`
	ImageURL    string        `json:"image_url,omitempty"`
	ReadBy      []ReadReceipt `json:"read_by"`
	CreatedAt   time.Time     `json:"created_at"`

	// Sender is populated on outgoing copies; never carries the password hash
	Sender *PublicUser `json:"sender,omitempty"`
}

// ReadByUser reports whether userID already has a read receipt on the message
func (m *Message) ReadByUser(userID uuid.UUID) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
