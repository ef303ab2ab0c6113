package models

import (
	"time"

	"github.com/google/uuid"
)

// Chat is a one-to-one conversation. Participants always has exactly
// two entries; group chats do not exist in this system.
type Chat struct {
	ID            uuid.UUID   `json:"id"`
	Participants  []uuid.UUID `json:"participants"`
	LastMessageID *uuid.UUID  `json:"last_message_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// ChatResponse is the populated chat shape returned to clients
type ChatResponse struct {
	ID           uuid.UUID     `json:"id"`
	Participants []*PublicUser `json:"participants"`
	LastMessage  *Message      `json:"last_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ChatCreateRequest asks for the chat between the caller and another user
type ChatCreateRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// HasParticipant reports whether the given user belongs to the chat
func (c *Chat) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
