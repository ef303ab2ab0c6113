package ws

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/OfirPatish/Chattrix-sub000/internal/database"
	"github.com/OfirPatish/Chattrix-sub000/internal/models"
)

var (
	// ErrEmptyMessage rejects messages whose trimmed content is empty
	ErrEmptyMessage = errors.New("message content is empty")
	// ErrMessageTooLong rejects content above models.MaxContentLength
	ErrMessageTooLong = errors.New("message content is too long")
	// ErrNotParticipant rejects read receipts from users outside the chat
	ErrNotParticipant = errors.New("not a participant of this chat")
)

// Pipeline validates, persists and fans out messages, read receipts
// and typing indicators.
type Pipeline struct {
	store database.Store
	hub   *Hub

	warnOnce sync.Once
}

// NewPipeline creates a message delivery pipeline
func NewPipeline(store database.Store, hub *Hub) *Pipeline {
	return &Pipeline{store: store, hub: hub}
}

// CreateMessage validates and persists a new message, then broadcasts
// receive-message to every connection in the chat's room, sender
// included, so the sender's other devices stay in sync. A non-
// participant gets database.ErrChatNotFound: indistinguishable from a
// missing chat, so chat ids cannot be probed.
func (p *Pipeline) CreateMessage(sender *Client, payload SendMessagePayload) (*models.Message, error) {
	content := strings.TrimSpace(payload.Content)
	messageType := payload.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	// Media messages may carry no text; everything else needs content.
	// Length is checked before any persistence call.
	if content == "" && payload.ImageURL == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > models.MaxContentLength {
		return nil, ErrMessageTooLong
	}

	senderID := sender.User.ID

	ok, err := p.store.IsParticipant(payload.ChatID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, database.ErrChatNotFound
	}

	if !p.store.SupportsTransactions() {
		p.warnOnce.Do(func() {
			log.Warn("Store has no transactions; message insert and chat pointer update are not atomic")
		})
	}

	message, err := p.store.CreateMessage(senderID, payload.ChatID, content, messageType, payload.ImageURL)
	if err != nil {
		return nil, err
	}

	// Broadcast carries the sender's public fields, never the hash
	message.Sender = sender.User.Public()

	room := payload.ChatID.String()
	p.hub.EmitToRoom(room, EventReceiveMessage, message, nil)

	// Sending implies no longer typing
	p.hub.EmitToRoom(room, EventTypingStopped, TypingBroadcastPayload{
		UserID:   senderID,
		Username: sender.User.Username,
	}, sender)

	return message, nil
}

// MarkAsRead appends a read receipt for the user if one does not exist
// and broadcasts message-read to the chat room. The append is
// idempotent per (message, user); a duplicate call is a no-op.
func (p *Pipeline) MarkAsRead(reader *Client, messageID uuid.UUID) error {
	message, err := p.store.GetMessageByID(messageID)
	if err != nil {
		return err
	}

	userID := reader.User.ID

	ok, err := p.store.IsParticipant(message.ChatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}

	added, err := p.store.MarkMessageRead(messageID, userID)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}

	p.hub.EmitToRoom(message.ChatID.String(), EventMessageRead, MessageReadPayload{
		MessageID: messageID,
		UserID:    userID,
	}, nil)

	return nil
}

// RelayTyping forwards a typing indicator to the chat room, excluding
// the sender. Pure relay: nothing is persisted and no authorization
// beyond socket authentication, since room membership already gates
// the recipients.
func (p *Pipeline) RelayTyping(sender *Client, chatID uuid.UUID, typing bool) {
	event := EventTypingStarted
	if !typing {
		event = EventTypingStopped
	}

	p.hub.EmitToRoom(chatID.String(), event, TypingBroadcastPayload{
		UserID:   sender.User.ID,
		Username: sender.User.Username,
	}, sender)
}
