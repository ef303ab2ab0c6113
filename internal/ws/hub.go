package ws

import (
	"sync"

	"github.com/google/uuid"

	"github.com/OfirPatish/Chattrix-sub000/internal/logger"
)

var log = logger.New("ws")

// Hub maintains the set of active clients and the rooms they belong
// to. A room is a broadcast group keyed by a string: chat rooms use the
// chat id, personal rooms use the user's own id.
type Hub struct {
	clients    map[uuid.UUID]*Client
	rooms      map[string]map[*Client]bool
	unregister chan *Client
	mutex      sync.Mutex
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		rooms:      make(map[string]map[*Client]bool),
		unregister: make(chan *Client),
	}
}

// Register adds a client to the hub. It is synchronous: once it
// returns, JoinRoom and the emit paths see the client, so callers may
// join rooms immediately without racing the hub.
func (h *Hub) Register(client *Client) {
	h.mutex.Lock()
	h.clients[client.ID] = client
	h.mutex.Unlock()
	log.Info("Client connected: %s (user %s)", client.ID, client.User.ID)
}

// Run services client teardown; call it in its own goroutine
func (h *Hub) Run() {
	for client := range h.unregister {
		h.mutex.Lock()
		if _, ok := h.clients[client.ID]; ok {
			h.removeLocked(client)
			log.Info("Client disconnected: %s (user %s)", client.ID, client.User.ID)
		}
		h.mutex.Unlock()
	}
}

// removeLocked drops a client from the hub and every room it joined.
// Caller holds the mutex.
func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client.ID)
	for room := range client.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(client.Send)
}

// JoinRoom adds a client to a room
func (h *Hub) JoinRoom(room string, client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		// Client already gone; don't resurrect room state for it
		return
	}

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.rooms[room] = true
	log.Debug("Client %s joined room %s", client.ID, room)
}

// LeaveRoom removes a client from a room
func (h *Hub) LeaveRoom(room string, client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)
	log.Debug("Client %s left room %s", client.ID, room)
}

// EmitToRoom sends an event to every client joined to the room.
// exclude may be nil; when set, that client is skipped.
func (h *Hub) EmitToRoom(room, event string, payload interface{}, exclude *Client) {
	data, err := Encode(event, payload)
	if err != nil {
		log.Error("Failed to encode %s event: %v", event, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.rooms[room] {
		if client == exclude {
			continue
		}
		h.sendLocked(client, data)
	}
}

// EmitToAll sends an event to every connected client except exclude
func (h *Hub) EmitToAll(event string, payload interface{}, exclude *Client) {
	data, err := Encode(event, payload)
	if err != nil {
		log.Error("Failed to encode %s event: %v", event, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, client := range h.clients {
		if client == exclude {
			continue
		}
		h.sendLocked(client, data)
	}
}

// EmitToClient sends an event to a single client only. Used for error
// feedback to the emitter; never broadcast.
func (h *Hub) EmitToClient(client *Client, event string, payload interface{}) {
	data, err := Encode(event, payload)
	if err != nil {
		log.Error("Failed to encode %s event: %v", event, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	h.sendLocked(client, data)
}

// sendLocked delivers bytes to one client, evicting slow consumers.
// Caller holds the mutex.
func (h *Hub) sendLocked(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		log.Warn("Client %s send buffer full, evicting", client.ID)
		h.removeLocked(client)
	}
}
