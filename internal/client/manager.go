// Package client implements the connecting side of the socket
// protocol: a connection manager bound to an access token, typed
// actions, and reconciliation of incoming events into local state.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/OfirPatish/Chattrix-sub000/internal/logger"
	"github.com/OfirPatish/Chattrix-sub000/internal/ws"
)

var (
	// ErrNoToken means no connection is attempted without credentials
	ErrNoToken = errors.New("no access token")
	// ErrNotConnected guards actions on a dead transport; the caller
	// owns retry by re-invoking the action
	ErrNotConnected = errors.New("socket not connected")
	// ErrRejected means the server refused the handshake with a reason
	// that retrying the same token cannot fix
	ErrRejected = errors.New("handshake rejected")
	// ErrExpiredToken asks the caller to refresh the token and connect
	// again; the manager does not refresh tokens itself
	ErrExpiredToken = errors.New("access token expired")
)

var log = logger.New("client")

// Defaults for reconnection and duplicate-send suppression
const (
	DefaultMaxAttempts  = 5
	DefaultBackoff      = 2 * time.Second
	DefaultDedupeWindow = time.Second
)

// EventSink receives decoded server events. It is injected at
// construction so the manager never reaches back into application
// state.
type EventSink interface {
	AddMessage(msg *IncomingMessage)
	ApplyRead(messageID, userID uuid.UUID)
	SetPresence(userID uuid.UUID, online bool)
	SetTyping(userID uuid.UUID, username string, typing bool)
}

// Manager maintains at most one live connection for the current access
// token. It is a constructed object with an explicit lifecycle, not a
// process-wide singleton; tests can run independent instances.
type Manager struct {
	url  string
	sink EventSink

	MaxAttempts  int
	Backoff      time.Duration
	DedupeWindow time.Duration

	mu        sync.Mutex
	token     string
	conn      *websocket.Conn
	connected bool
	closing   bool

	lastSendChat    uuid.UUID
	lastSendContent string
	lastSendAt      time.Time
}

// NewManager creates a disconnected manager for the given socket URL
// (ws://host/ws). The sink must not be nil.
func NewManager(url string, sink EventSink) *Manager {
	return &Manager{
		url:          url,
		sink:         sink,
		MaxAttempts:  DefaultMaxAttempts,
		Backoff:      DefaultBackoff,
		DedupeWindow: DefaultDedupeWindow,
	}
}

// Connect ensures a live connection for the token. An unchanged token
// with a live connection is a no-op; a changed token tears down the
// stale connection and dials fresh. An empty token connects nothing.
func (m *Manager) Connect(token string) error {
	if token == "" {
		m.Close()
		return ErrNoToken
	}

	m.mu.Lock()
	if m.connected && m.token == token {
		m.mu.Unlock()
		return nil
	}

	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
		m.connected = false
	}
	m.token = token
	m.closing = false
	m.mu.Unlock()

	return m.dial(token)
}

// dial attempts the handshake with bounded attempts and fixed backoff.
// Server rejections are terminal: an expired token needs a refresh and
// a revoked or invalid one can never succeed, so neither is retried.
// The read loop is the only listener and is started exactly once per
// successful physical connection.
func (m *Manager) dial(token string) error {
	var lastErr error

	for attempt := 0; attempt < m.MaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(m.Backoff)
		}

		conn, resp, err := websocket.DefaultDialer.Dial(m.url+"?token="+token, nil)
		if err != nil {
			if errors.Is(err, websocket.ErrBadHandshake) {
				switch reason := rejectionReason(resp); reason {
				case ws.RejectExpired:
					log.Warn("Handshake rejected: token expired")
					return ErrExpiredToken
				case "":
					// Not a recognizable rejection; treat as transient
				default:
					log.Warn("Handshake rejected: %s", reason)
					return fmt.Errorf("%w: %s", ErrRejected, reason)
				}
			}
			lastErr = err
			log.Warn("Connection attempt %d failed: %v", attempt+1, err)
			continue
		}

		m.mu.Lock()
		if m.closing || m.token != token {
			// Token changed or the manager closed while dialing
			m.mu.Unlock()
			conn.Close()
			return nil
		}
		if m.conn != nil && m.conn != conn {
			// A concurrent dial for the same token won the slot first
			m.conn.Close()
		}
		m.conn = conn
		m.connected = true
		m.mu.Unlock()

		go m.readLoop(conn, token)
		log.Info("Socket connected")
		return nil
	}

	return lastErr
}

// rejectionReason extracts the reason from a 401 handshake response
func rejectionReason(resp *http.Response) string {
	if resp == nil || resp.StatusCode != http.StatusUnauthorized || resp.Body == nil {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil {
		return ""
	}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return payload.Error
}

// Close tears down the connection and forgets the token
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closing = true
	m.token = ""
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.connected = false
}

// Connected reports whether the transport is currently live
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// emit sends one envelope if connected
func (m *Manager) emit(event string, payload interface{}) error {
	data, err := ws.Encode(event, payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected || m.conn == nil {
		return ErrNotConnected
	}

	return m.conn.WriteMessage(websocket.TextMessage, data)
}

// SendMessage emits a send-message event. When disconnected it warns
// and does nothing: messages are not queued, the caller re-invokes.
// Identical (chat, content) sends within the dedupe window collapse to
// one emission, guarding against accidental double-submit. The window
// is recorded only after the write succeeds, so a failed send never
// suppresses the caller's immediate retry.
func (m *Manager) SendMessage(chatID uuid.UUID, content, messageType, imageURL string) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		log.Warn("SendMessage while disconnected; dropping")
		return ErrNotConnected
	}

	if chatID == m.lastSendChat && content == m.lastSendContent && time.Since(m.lastSendAt) < m.DedupeWindow {
		m.mu.Unlock()
		log.Debug("Suppressed duplicate send to chat %s", chatID)
		return nil
	}
	m.mu.Unlock()

	err := m.emit(ws.EventSendMessage, ws.SendMessagePayload{
		ChatID:      chatID,
		Content:     content,
		MessageType: messageType,
		ImageURL:    imageURL,
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.lastSendChat = chatID
	m.lastSendContent = content
	m.lastSendAt = time.Now()
	m.mu.Unlock()

	return nil
}

// JoinChat asks the server to join the chat's room
func (m *Manager) JoinChat(chatID uuid.UUID) error {
	return m.emit(ws.EventJoinChat, chatID.String())
}

// LeaveChat leaves the chat's room
func (m *Manager) LeaveChat(chatID uuid.UUID) error {
	return m.emit(ws.EventLeaveChat, chatID.String())
}

// StartTyping announces typing in a chat
func (m *Manager) StartTyping(chatID uuid.UUID) error {
	return m.emit(ws.EventTypingStart, ws.TypingPayload{ChatID: chatID})
}

// StopTyping retracts a typing announcement
func (m *Manager) StopTyping(chatID uuid.UUID) error {
	return m.emit(ws.EventTypingStop, ws.TypingPayload{ChatID: chatID})
}

// MarkAsRead records the message as read on the server
func (m *Manager) MarkAsRead(messageID uuid.UUID) error {
	return m.emit(ws.EventMarkRead, ws.MarkReadPayload{MessageID: messageID})
}

// readLoop applies server events to the sink until the connection
// dies, then reconnects unless the manager is closing or the token
// changed underneath it.
func (m *Manager) readLoop(conn *websocket.Conn, token string) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var envelope ws.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			log.Warn("Malformed server event: %v", err)
			continue
		}

		m.apply(envelope)
	}

	m.mu.Lock()
	stale := m.conn != conn
	if !stale {
		m.conn = nil
		m.connected = false
	}
	closing := m.closing || m.token != token
	m.mu.Unlock()

	if stale || closing {
		return
	}

	log.Info("Socket lost, reconnecting")
	if err := m.dial(token); err != nil {
		log.Error("Reconnect failed: %v", err)
	}
}

func (m *Manager) apply(envelope ws.Envelope) {
	switch envelope.Event {
	case ws.EventReceiveMessage:
		var msg IncomingMessage
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			log.Warn("Bad receive-message payload: %v", err)
			return
		}
		m.sink.AddMessage(&msg)
	case ws.EventMessageRead:
		var payload ws.MessageReadPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return
		}
		m.sink.ApplyRead(payload.MessageID, payload.UserID)
	case ws.EventUserOnline, ws.EventUserOffline:
		var payload ws.PresencePayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return
		}
		m.sink.SetPresence(payload.UserID, payload.IsOnline)
	case ws.EventTypingStarted, ws.EventTypingStopped:
		var payload ws.TypingBroadcastPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return
		}
		m.sink.SetTyping(payload.UserID, payload.Username, envelope.Event == ws.EventTypingStarted)
	case ws.EventError:
		var payload ws.ErrorPayload
		_ = json.Unmarshal(envelope.Data, &payload)
		log.Warn("Server error event: %s", payload.Message)
	default:
		log.Debug("Ignoring unknown event %q", envelope.Event)
	}
}
