package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OfirPatish/Chattrix-sub000/internal/auth"
	"github.com/OfirPatish/Chattrix-sub000/internal/blacklist"
	"github.com/OfirPatish/Chattrix-sub000/internal/database"
	"github.com/OfirPatish/Chattrix-sub000/internal/models"
)

type serverFixture struct {
	server *httptest.Server
	store  *database.MemoryStore
	tokens *auth.Service
	hub    *Hub

	alice, bob *models.User
	chat       *models.Chat
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := database.NewMemoryStore()
	tokens := auth.NewService([]byte("test-access-key"), []byte("test-refresh-key"), blacklist.NewMemory())

	hub := NewHub()
	go hub.Run()

	handler := NewHandler(hub, store, NewAuthenticator(tokens, store))

	router := gin.New()
	router.GET("/ws", handler.HandleWebSocket)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	alice, err := store.CreateUser("alice", "a@x.com", "hash-a")
	require.NoError(t, err)
	bob, err := store.CreateUser("bob", "b@x.com", "hash-b")
	require.NoError(t, err)

	chat, err := store.GetOrCreateChat(alice.ID, bob.ID)
	require.NoError(t, err)

	return &serverFixture{
		server: server,
		store:  store,
		tokens: tokens,
		hub:    hub,
		alice:  alice,
		bob:    bob,
		chat:   chat,
	}
}

// waitForRoomMembers blocks until the room has n members. Dialing
// returns at the upgrade handshake, before presence setup joins the
// connection to its rooms, so tests wait here before driving traffic.
func (f *serverFixture) waitForRoomMembers(t *testing.T, room string, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		f.hub.mutex.Lock()
		defer f.hub.mutex.Unlock()
		return len(f.hub.rooms[room]) == n
	}, time.Second, 5*time.Millisecond)
}

func (f *serverFixture) wsURL(token string) string {
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

// dial connects a user's socket and fails the test on rejection
func (f *serverFixture) dial(t *testing.T, user *models.User) *websocket.Conn {
	t.Helper()

	token, _, err := f.tokens.IssueAccessToken(user.ID)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()

	data, err := Encode(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// waitForEvent reads frames until the named event arrives, skipping
// unrelated traffic such as presence broadcasts
func waitForEvent(t *testing.T, conn *websocket.Conn, event string) Envelope {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))

	for time.Now().Before(deadline) {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)

		var envelope Envelope
		require.NoError(t, json.Unmarshal(raw, &envelope))
		if envelope.Event == event {
			return envelope
		}
	}

	t.Fatalf("timed out waiting for %s", event)
	return Envelope{}
}

func assertSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected frame: %s", raw)
	}
}

func TestHandshakeRejections(t *testing.T) {
	f := newServerFixture(t)

	revoked, _, err := f.tokens.IssueAccessToken(f.alice.ID)
	require.NoError(t, err)
	require.NoError(t, f.tokens.Revoke(context.Background(), revoked))

	expiredSvc := auth.NewService([]byte("test-access-key"), []byte("test-refresh-key"), blacklist.NewMemory())
	expiredSvc.SetTTLs(-time.Minute, -time.Minute)
	expired, _, err := expiredSvc.IssueAccessToken(f.alice.ID)
	require.NoError(t, err)

	phantomSvc := auth.NewService([]byte("test-access-key"), []byte("test-refresh-key"), blacklist.NewMemory())
	phantom, _, err := phantomSvc.IssueAccessToken(uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
		{"revoked token", revoked},
		{"expired token", expired},
		{"token for unknown user", phantom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(tt.token), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			if conn != nil {
				conn.Close()
			}
		})
	}
}

func TestEndToEndMessageFlow(t *testing.T) {
	f := newServerFixture(t)

	aliceConn := f.dial(t, f.alice)

	// Alice sees bob come online
	bobConn := f.dial(t, f.bob)
	f.waitForRoomMembers(t, f.chat.ID.String(), 2)
	envelope := waitForEvent(t, aliceConn, EventUserOnline)

	var presence PresencePayload
	require.NoError(t, json.Unmarshal(envelope.Data, &presence))
	assert.Equal(t, f.bob.ID, presence.UserID)
	assert.True(t, presence.IsOnline)

	// Bob sees alice typing, alice hears nothing back
	sendEvent(t, bobConn, EventTypingStart, TypingPayload{ChatID: f.chat.ID})
	envelope = waitForEvent(t, aliceConn, EventTypingStarted)

	var typing TypingBroadcastPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &typing))
	assert.Equal(t, "bob", typing.Username)

	// Bob sends a message; both sides receive exactly one copy
	sendEvent(t, bobConn, EventSendMessage, SendMessagePayload{ChatID: f.chat.ID, Content: "hey alice"})

	envelope = waitForEvent(t, aliceConn, EventReceiveMessage)
	var received models.Message
	require.NoError(t, json.Unmarshal(envelope.Data, &received))
	assert.Equal(t, "hey alice", received.Content)
	require.NotNil(t, received.Sender)
	assert.Equal(t, "bob", received.Sender.Username)

	envelope = waitForEvent(t, bobConn, EventReceiveMessage)
	var echoed models.Message
	require.NoError(t, json.Unmarshal(envelope.Data, &echoed))
	assert.Equal(t, received.ID, echoed.ID)

	// Sending also clears the typing indicator on alice's side
	waitForEvent(t, aliceConn, EventTypingStopped)

	// Alice marks it read; bob gets the receipt broadcast
	sendEvent(t, aliceConn, EventMarkRead, MarkReadPayload{MessageID: received.ID})
	envelope = waitForEvent(t, bobConn, EventMessageRead)

	var read MessageReadPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &read))
	assert.Equal(t, received.ID, read.MessageID)
	assert.Equal(t, f.alice.ID, read.UserID)

	// Bob disconnects; alice sees him go offline
	bobConn.Close()
	envelope = waitForEvent(t, aliceConn, EventUserOffline)
	require.NoError(t, json.Unmarshal(envelope.Data, &presence))
	assert.Equal(t, f.bob.ID, presence.UserID)
	assert.False(t, presence.IsOnline)

	require.Eventually(t, func() bool {
		user, err := f.store.GetUserByID(f.bob.ID)
		return err == nil && !user.IsOnline
	}, time.Second, 10*time.Millisecond)
}

func TestJoinChatUnauthorized(t *testing.T) {
	f := newServerFixture(t)

	carol, err := f.store.CreateUser("carol", "c@x.com", "hash-c")
	require.NoError(t, err)

	aliceConn := f.dial(t, f.alice)
	carolConn := f.dial(t, carol)
	f.waitForRoomMembers(t, f.chat.ID.String(), 1)
	waitForEvent(t, aliceConn, EventUserOnline)

	// Carol tries to join a chat she is not part of
	raw, err := json.Marshal(f.chat.ID.String())
	require.NoError(t, err)
	require.NoError(t, carolConn.WriteJSON(Envelope{Event: EventJoinChat, Data: raw}))

	envelope := waitForEvent(t, carolConn, EventError)
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &errPayload))
	assert.Equal(t, "chat not found or access denied", errPayload.Message)

	// Traffic in that chat never reaches her
	sendEvent(t, aliceConn, EventSendMessage, SendMessagePayload{ChatID: f.chat.ID, Content: "private"})
	waitForEvent(t, aliceConn, EventReceiveMessage)
	assertSilence(t, carolConn)
}

func TestSendMessageErrorFeedback(t *testing.T) {
	f := newServerFixture(t)

	aliceConn := f.dial(t, f.alice)
	bobConn := f.dial(t, f.bob)
	f.waitForRoomMembers(t, f.chat.ID.String(), 2)
	waitForEvent(t, aliceConn, EventUserOnline)

	sendEvent(t, aliceConn, EventSendMessage, SendMessagePayload{
		ChatID:  f.chat.ID,
		Content: strings.Repeat("x", models.MaxContentLength+1),
	})

	// The error goes only to the emitter; nothing is broadcast
	envelope := waitForEvent(t, aliceConn, EventError)
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &errPayload))
	assert.Equal(t, ErrMessageTooLong.Error(), errPayload.Message)
	assertSilence(t, bobConn)

	// Unknown events get the same single-client treatment
	sendEvent(t, aliceConn, "shout", nil)
	envelope = waitForEvent(t, aliceConn, EventError)
	require.NoError(t, json.Unmarshal(envelope.Data, &errPayload))
	assert.Equal(t, "unknown event", errPayload.Message)
}
