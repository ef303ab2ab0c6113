package database

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OfirPatish/Chattrix-sub000/internal/models"
)

// MemoryStore is an in-process persistence gateway used in tests and
// local development. It has no transactions: CreateMessage performs its
// two writes sequentially with no rollback guarantee, which it reports
// through SupportsTransactions.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*models.User
	chats    map[uuid.UUID]*models.Chat
	messages map[uuid.UUID]*models.Message
	// chat ids keyed by the canonical participant pair
	chatByPair map[string]uuid.UUID
	// message ids per chat in send order
	chatMessages map[uuid.UUID][]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[uuid.UUID]*models.User),
		chats:        make(map[uuid.UUID]*models.Chat),
		messages:     make(map[uuid.UUID]*models.Message),
		chatByPair:   make(map[string]uuid.UUID),
		chatMessages: make(map[uuid.UUID][]uuid.UUID),
	}
}

// SupportsTransactions reports false: writes are sequential, not atomic
func (s *MemoryStore) SupportsTransactions() bool {
	return false
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyChat(c *models.Chat) *models.Chat {
	out := *c
	out.Participants = append([]uuid.UUID(nil), c.Participants...)
	if c.LastMessageID != nil {
		id := *c.LastMessageID
		out.LastMessageID = &id
	}
	return &out
}

func copyMessage(m *models.Message) *models.Message {
	out := *m
	out.ReadBy = append([]models.ReadReceipt(nil), m.ReadBy...)
	out.Sender = nil
	return &out
}

func (s *MemoryStore) CreateUser(username, email, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return nil, ErrUserAlreadyExists
		}
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		LastSeen:     time.Now(),
		CreatedAt:    time.Now(),
	}
	s.users[user.ID] = user

	return copyUser(user), nil
}

func (s *MemoryStore) GetUserByEmail(email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) GetUserByID(id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *MemoryStore) GetAllUsers(excludeUserID uuid.UUID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []*models.User
	for _, u := range s.users {
		if u.ID != excludeUserID {
			users = append(users, copyUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })

	return users, nil
}

func (s *MemoryStore) UpdateProfile(userID uuid.UUID, update models.ProfileUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}

	for id, u := range s.users {
		if id == userID {
			continue
		}
		if (update.Username != "" && u.Username == update.Username) ||
			(update.Email != "" && u.Email == update.Email) {
			return nil, ErrUserAlreadyExists
		}
	}

	if update.Username != "" {
		user.Username = update.Username
	}
	if update.Email != "" {
		user.Email = update.Email
	}
	if update.AvatarURL != "" {
		user.AvatarURL = update.AvatarURL
	}

	return copyUser(user), nil
}

func (s *MemoryStore) SetOnline(userID uuid.UUID, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}

	user.IsOnline = online
	user.LastSeen = time.Now()
	return nil
}

func pairKey(a, b uuid.UUID) string {
	first, second := a.String(), b.String()
	if strings.Compare(first, second) > 0 {
		first, second = second, first
	}
	return first + ":" + second
}

func (s *MemoryStore) GetOrCreateChat(userA, userB uuid.UUID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(userA, userB)
	if id, ok := s.chatByPair[key]; ok {
		return copyChat(s.chats[id]), nil
	}

	chat := &models.Chat{
		ID:           uuid.New(),
		Participants: []uuid.UUID{userA, userB},
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.chats[chat.ID] = chat
	s.chatByPair[key] = chat.ID

	return copyChat(chat), nil
}

func (s *MemoryStore) GetChatByID(chatID uuid.UUID) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	return copyChat(chat), nil
}

func (s *MemoryStore) GetChatsForUser(userID uuid.UUID, limit, offset int) ([]*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chats []*models.Chat
	for _, c := range s.chats {
		if c.HasParticipant(userID) {
			chats = append(chats, copyChat(c))
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].UpdatedAt.After(chats[j].UpdatedAt) })

	if offset >= len(chats) {
		return nil, nil
	}
	chats = chats[offset:]
	if limit > 0 && limit < len(chats) {
		chats = chats[:limit]
	}

	return chats, nil
}

func (s *MemoryStore) ChatIDsForUser(userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for _, c := range s.chats {
		if c.HasParticipant(userID) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (s *MemoryStore) IsParticipant(chatID, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return false, nil
	}
	return chat.HasParticipant(userID), nil
}

func (s *MemoryStore) CreateMessage(senderID, chatID uuid.UUID, content, messageType, imageURL string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}

	message := &models.Message{
		ID:          uuid.New(),
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     content,
		MessageType: messageType,
		ImageURL:    imageURL,
		ReadBy:      []models.ReadReceipt{},
		CreatedAt:   time.Now(),
	}

	// Sequential writes; no transaction to roll back here
	s.messages[message.ID] = message
	s.chatMessages[chatID] = append(s.chatMessages[chatID], message.ID)
	chat.LastMessageID = &message.ID
	chat.UpdatedAt = message.CreatedAt

	return copyMessage(message), nil
}

func (s *MemoryStore) GetMessageByID(messageID uuid.UUID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	message, ok := s.messages[messageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return copyMessage(message), nil
}

func (s *MemoryStore) GetChatMessages(chatID uuid.UUID, limit, offset int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.chatMessages[chatID]
	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	messages := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		messages = append(messages, copyMessage(s.messages[id]))
	}
	return messages, nil
}

func (s *MemoryStore) MarkMessageRead(messageID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	message, ok := s.messages[messageID]
	if !ok {
		return false, ErrMessageNotFound
	}

	if message.ReadByUser(userID) {
		return false, nil
	}

	message.ReadBy = append(message.ReadBy, models.ReadReceipt{
		UserID: userID,
		ReadAt: time.Now(),
	})
	return true, nil
}
