package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OfirPatish/Chattrix-sub000/internal/models"
)

func newTestUsers(t *testing.T, s *MemoryStore) (*models.User, *models.User) {
	t.Helper()

	alice, err := s.CreateUser("alice", "a@x.com", "hash-a")
	require.NoError(t, err)
	bob, err := s.CreateUser("bob", "b@x.com", "hash-b")
	require.NoError(t, err)

	return alice, bob
}

func TestCreateUserUniqueness(t *testing.T) {
	s := NewMemoryStore()
	_, _ = newTestUsers(t, s)

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{name: "duplicate username", username: "alice", email: "other@x.com"},
		{name: "duplicate email", username: "other", email: "a@x.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateUser(tt.username, tt.email, "hash")
			assert.ErrorIs(t, err, ErrUserAlreadyExists)
		})
	}
}

func TestGetOrCreateChatOrderIndependent(t *testing.T) {
	s := NewMemoryStore()
	alice, bob := newTestUsers(t, s)

	chatAB, err := s.GetOrCreateChat(alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, chatAB.Participants, 2)

	chatBA, err := s.GetOrCreateChat(bob.ID, alice.ID)
	require.NoError(t, err)

	// Same chat in either argument order, never a duplicate
	assert.Equal(t, chatAB.ID, chatBA.ID)

	ids, err := s.ChatIDsForUser(alice.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestCreateMessageUpdatesChatPointer(t *testing.T) {
	s := NewMemoryStore()
	alice, bob := newTestUsers(t, s)

	chat, err := s.GetOrCreateChat(alice.ID, bob.ID)
	require.NoError(t, err)
	require.Nil(t, chat.LastMessageID)

	msg, err := s.CreateMessage(alice.ID, chat.ID, "hi", models.MessageTypeText, "")
	require.NoError(t, err)

	got, err := s.GetChatByID(chat.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageID)
	assert.Equal(t, msg.ID, *got.LastMessageID)
	assert.False(t, got.UpdatedAt.Before(chat.UpdatedAt))
}

func TestCreateMessageUnknownChat(t *testing.T) {
	s := NewMemoryStore()
	alice, _ := newTestUsers(t, s)

	_, err := s.CreateMessage(alice.ID, uuid.New(), "hi", models.MessageTypeText, "")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestChatListOrdering(t *testing.T) {
	s := NewMemoryStore()
	alice, bob := newTestUsers(t, s)
	carol, err := s.CreateUser("carol", "c@x.com", "hash-c")
	require.NoError(t, err)

	chatAB, err := s.GetOrCreateChat(alice.ID, bob.ID)
	require.NoError(t, err)
	chatAC, err := s.GetOrCreateChat(alice.ID, carol.ID)
	require.NoError(t, err)

	// Activity in the older chat moves it to the front
	_, err = s.CreateMessage(alice.ID, chatAB.ID, "bump", models.MessageTypeText, "")
	require.NoError(t, err)

	chats, err := s.GetChatsForUser(alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, chatAB.ID, chats[0].ID)
	assert.Equal(t, chatAC.ID, chats[1].ID)
}

func TestMarkMessageReadIdempotent(t *testing.T) {
	s := NewMemoryStore()
	alice, bob := newTestUsers(t, s)

	chat, err := s.GetOrCreateChat(alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := s.CreateMessage(alice.ID, chat.ID, "hi", models.MessageTypeText, "")
	require.NoError(t, err)

	added, err := s.MarkMessageRead(msg.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.MarkMessageRead(msg.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, added)

	got, err := s.GetMessageByID(msg.ID)
	require.NoError(t, err)
	require.Len(t, got.ReadBy, 1)
	assert.Equal(t, bob.ID, got.ReadBy[0].UserID)
}

func TestMarkMessageReadUnknownMessage(t *testing.T) {
	s := NewMemoryStore()
	alice, _ := newTestUsers(t, s)

	_, err := s.MarkMessageRead(uuid.New(), alice.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestGetChatMessagesPagination(t *testing.T) {
	s := NewMemoryStore()
	alice, bob := newTestUsers(t, s)

	chat, err := s.GetOrCreateChat(alice.ID, bob.ID)
	require.NoError(t, err)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		msg, err := s.CreateMessage(alice.ID, chat.ID, "msg", models.MessageTypeText, "")
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	page, err := s.GetChatMessages(chat.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[0], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	page, err = s.GetChatMessages(chat.ID, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[4], page[0].ID)

	page, err = s.GetChatMessages(chat.ID, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestIsParticipant(t *testing.T) {
	s := NewMemoryStore()
	alice, bob := newTestUsers(t, s)
	carol, err := s.CreateUser("carol", "c@x.com", "hash-c")
	require.NoError(t, err)

	chat, err := s.GetOrCreateChat(alice.ID, bob.ID)
	require.NoError(t, err)

	ok, err := s.IsParticipant(chat.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsParticipant(chat.ID, carol.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.IsParticipant(uuid.New(), alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetOnline(t *testing.T) {
	s := NewMemoryStore()
	alice, _ := newTestUsers(t, s)

	require.NoError(t, s.SetOnline(alice.ID, true))
	got, err := s.GetUserByID(alice.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline)

	require.NoError(t, s.SetOnline(alice.ID, false))
	got, err = s.GetUserByID(alice.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOnline)

	assert.ErrorIs(t, s.SetOnline(uuid.New(), true), ErrUserNotFound)
}

func TestUpdateProfileConflicts(t *testing.T) {
	s := NewMemoryStore()
	alice, bob := newTestUsers(t, s)

	_, err := s.UpdateProfile(alice.ID, models.ProfileUpdate{Username: "bob"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	_, err = s.UpdateProfile(alice.ID, models.ProfileUpdate{Email: bob.Email})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	updated, err := s.UpdateProfile(alice.ID, models.ProfileUpdate{AvatarURL: "http://img/alice.png"})
	require.NoError(t, err)
	assert.Equal(t, "http://img/alice.png", updated.AvatarURL)
	assert.Equal(t, "alice", updated.Username)
}
