package database

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/OfirPatish/Chattrix-sub000/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrChatNotFound      = errors.New("chat not found")
	ErrMessageNotFound   = errors.New("message not found")
)

// Store is the persistence gateway for users, chats and messages
type Store interface {
	// User methods
	CreateUser(username, email, passwordHash string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uuid.UUID) (*models.User, error)
	GetAllUsers(excludeUserID uuid.UUID) ([]*models.User, error)
	UpdateProfile(userID uuid.UUID, update models.ProfileUpdate) (*models.User, error)
	// SetOnline flips the online flag and bumps last_seen
	SetOnline(userID uuid.UUID, online bool) error

	// Chat methods
	GetOrCreateChat(userA, userB uuid.UUID) (*models.Chat, error)
	GetChatByID(chatID uuid.UUID) (*models.Chat, error)
	GetChatsForUser(userID uuid.UUID, limit, offset int) ([]*models.Chat, error)
	ChatIDsForUser(userID uuid.UUID) ([]uuid.UUID, error)
	IsParticipant(chatID, userID uuid.UUID) (bool, error)

	// Message methods
	CreateMessage(senderID, chatID uuid.UUID, content, messageType, imageURL string) (*models.Message, error)
	GetMessageByID(messageID uuid.UUID) (*models.Message, error)
	GetChatMessages(chatID uuid.UUID, limit, offset int) ([]*models.Message, error)
	// MarkMessageRead appends a read receipt for userID if none exists;
	// reports whether a receipt was added
	MarkMessageRead(messageID, userID uuid.UUID) (bool, error)

	// SupportsTransactions reports whether CreateMessage writes the
	// message and the chat pointer atomically. Backends without
	// transactions write sequentially with no rollback guarantee.
	SupportsTransactions() bool

	Close() error
}

type StoreType string

const (
	PostgreSQL StoreType = "postgres"
	InMemory   StoreType = "memory"
)

// NewStore creates a persistence gateway of the given type
func NewStore(storeType StoreType, connStr string) (Store, error) {
	switch storeType {
	case PostgreSQL:
		return NewPostgresStore(connStr)
	case InMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
