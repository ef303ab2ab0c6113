package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/OfirPatish/Chattrix-sub000/internal/database"
	"github.com/OfirPatish/Chattrix-sub000/internal/models"
)

// Pagination defaults for chat and message listings
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ChatHandler handles chat and message listing routes
type ChatHandler struct {
	DB database.Store
}

// NewChatHandler creates a new chat handler
func NewChatHandler(db database.Store) *ChatHandler {
	return &ChatHandler{DB: db}
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// populate builds the client-facing chat shape: public participants
// and the populated last message
func (h *ChatHandler) populate(chat *models.Chat) (*models.ChatResponse, error) {
	resp := &models.ChatResponse{
		ID:        chat.ID,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	}

	for _, participantID := range chat.Participants {
		user, err := h.DB.GetUserByID(participantID)
		if err != nil {
			return nil, err
		}
		resp.Participants = append(resp.Participants, user.Public())
	}

	if chat.LastMessageID != nil {
		message, err := h.DB.GetMessageByID(*chat.LastMessageID)
		if err != nil && !errors.Is(err, database.ErrMessageNotFound) {
			return nil, err
		}
		if message != nil {
			if sender, err := h.DB.GetUserByID(message.SenderID); err == nil {
				message.Sender = sender.Public()
			}
			resp.LastMessage = message
		}
	}

	return resp, nil
}

// ListChats returns the caller's chats, newest activity first
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)
	limit, offset := pagination(c)

	chats, err := h.DB.GetChatsForUser(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve chats"})
		return
	}

	responses := make([]*models.ChatResponse, 0, len(chats))
	for _, chat := range chats {
		resp, err := h.populate(chat)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to populate chats"})
			return
		}
		responses = append(responses, resp)
	}

	c.JSON(http.StatusOK, responses)
}

// CreateChat gets or lazily creates the chat between the caller and
// another user. Calling it twice, in either argument order, yields the
// same chat.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	var input models.ChatCreateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.UserID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot start a chat with yourself"})
		return
	}

	if _, err := h.DB.GetUserByID(input.UserID); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		return
	}

	chat, err := h.DB.GetOrCreateChat(userID, input.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create chat"})
		return
	}

	resp, err := h.populate(chat)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to populate chat"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetChatMessages returns a page of a chat's messages in send order.
// Non-participants get the same NotFound as a missing chat, so chat
// ids cannot be probed.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	userID := c.MustGet("userID").(uuid.UUID)

	chatID, err := uuid.Parse(c.Param("chatID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID"})
		return
	}

	ok, err := h.DB.IsParticipant(chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check chat"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
		return
	}

	limit, offset := pagination(c)

	messages, err := h.DB.GetChatMessages(chatID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}

	for _, message := range messages {
		if sender, err := h.DB.GetUserByID(message.SenderID); err == nil {
			message.Sender = sender.Public()
		}
	}

	if messages == nil {
		messages = []*models.Message{}
	}

	c.JSON(http.StatusOK, messages)
}
