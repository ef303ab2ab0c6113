package client

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OfirPatish/Chattrix-sub000/internal/models"
)

// ChatRef is a chat identifier that may arrive on the wire either as a
// bare id string or as a populated chat object carrying an id field.
type ChatRef struct {
	ID uuid.UUID
}

func (c *ChatRef) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		id, err := uuid.Parse(raw)
		if err != nil {
			return err
		}
		c.ID = id
		return nil
	}

	var obj struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	c.ID = obj.ID
	return nil
}

func (c ChatRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ID.String())
}

// IncomingMessage is the receive-message payload as the client sees it
type IncomingMessage struct {
	ID          uuid.UUID            `json:"id"`
	ChatID      ChatRef              `json:"chat_id"`
	SenderID    uuid.UUID            `json:"sender_id"`
	Content     string               `json:"content"`
	MessageType string               `json:"message_type"`
	ImageURL    string               `json:"image_url,omitempty"`
	ReadBy      []models.ReadReceipt `json:"read_by"`
	CreatedAt   time.Time            `json:"created_at"`
	Sender      *models.PublicUser   `json:"sender,omitempty"`
}

// Presence is the locally tracked online state of a user
type Presence struct {
	IsOnline bool
	LastSeen time.Time
}

// ChatState is the reference EventSink: per-chat message lists, a
// last-message pointer for list ordering, and a presence map. All
// applications are idempotent so at-least-once delivery (reconnect
// replay, duplicate emission) cannot double state.
type ChatState struct {
	mu          sync.Mutex
	messages    map[uuid.UUID][]*IncomingMessage
	seen        map[uuid.UUID]bool
	lastMessage map[uuid.UUID]uuid.UUID
	presence    map[uuid.UUID]Presence
	typing      map[uuid.UUID]bool
}

// NewChatState creates empty local chat state
func NewChatState() *ChatState {
	return &ChatState{
		messages:    make(map[uuid.UUID][]*IncomingMessage),
		seen:        make(map[uuid.UUID]bool),
		lastMessage: make(map[uuid.UUID]uuid.UUID),
		presence:    make(map[uuid.UUID]Presence),
		typing:      make(map[uuid.UUID]bool),
	}
}

// AddMessage appends the message to its chat exactly once. A message id
// seen before is ignored, so replayed events do not duplicate.
func (s *ChatState) AddMessage(msg *IncomingMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[msg.ID] {
		return
	}
	s.seen[msg.ID] = true

	chatID := msg.ChatID.ID
	s.messages[chatID] = append(s.messages[chatID], msg)
	s.lastMessage[chatID] = msg.ID
}

// ApplyRead appends a read receipt to the local copy of the message,
// with the same at-most-once rule as the server side
func (s *ChatState) ApplyRead(messageID, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msgs := range s.messages {
		for _, msg := range msgs {
			if msg.ID != messageID {
				continue
			}
			for _, r := range msg.ReadBy {
				if r.UserID == userID {
					return
				}
			}
			msg.ReadBy = append(msg.ReadBy, models.ReadReceipt{
				UserID: userID,
				ReadAt: time.Now(),
			})
			return
		}
	}
}

// SetPresence updates the local presence map
func (s *ChatState) SetPresence(userID uuid.UUID, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.presence[userID] = Presence{IsOnline: online, LastSeen: time.Now()}
}

// SetTyping tracks who is currently typing
func (s *ChatState) SetTyping(userID uuid.UUID, _ string, typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if typing {
		s.typing[userID] = true
	} else {
		delete(s.typing, userID)
	}
}

// Messages returns a copy of the chat's message list in arrival order
func (s *ChatState) Messages(chatID uuid.UUID) []*IncomingMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*IncomingMessage(nil), s.messages[chatID]...)
}

// LastMessage returns the chat's last-message pointer
func (s *ChatState) LastMessage(chatID uuid.UUID) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.lastMessage[chatID]
	return id, ok
}

// PresenceOf returns the tracked presence of a user
func (s *ChatState) PresenceOf(userID uuid.UUID) (Presence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presence[userID]
	return p, ok
}

// IsTyping reports whether the user is currently typing
func (s *ChatState) IsTyping(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.typing[userID]
}
