package http

import (
	"encoding/json"
	"log/slog"
	"sync"
)

const sendBuffer = 64

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// client is one websocket connection. Messages are pre-encoded and written by
// a single writer goroutine.
type client struct {
	userID string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newClient(userID string) *client {
	return &client{
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue never blocks; a full buffer drops the message.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Hub tracks connected users and the party room each one is in. It
// implements app.Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]struct{}
	partyOf map[string]string
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]struct{}),
		partyOf: make(map[string]string),
		log:     log,
	}
}

// register makes c the live connection for its user, closing any older one.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	old := h.clients[c.userID]
	h.clients[c.userID] = c
	h.mu.Unlock()
	if old != nil {
		old.close()
	}
}

// unregister drops c and returns the party the user was in. It returns ""
// when a newer connection for the same user has taken over.
func (h *Hub) unregister(c *client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.close()
	if h.clients[c.userID] != c {
		return ""
	}
	delete(h.clients, c.userID)
	partyID := h.partyOf[c.userID]
	h.leaveLocked(partyID, c.userID)
	return partyID
}

// PartyOf returns the room userID is currently in.
func (h *Hub) PartyOf(userID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.partyOf[userID]
}

func (h *Hub) JoinRoom(partyID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.partyOf[userID]; ok && prev != partyID {
		h.leaveLocked(prev, userID)
	}
	room, ok := h.rooms[partyID]
	if !ok {
		room = make(map[string]struct{})
		h.rooms[partyID] = room
	}
	room[userID] = struct{}{}
	h.partyOf[userID] = partyID
}

func (h *Hub) LeaveRoom(partyID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(partyID, userID)
}

func (h *Hub) leaveLocked(partyID, userID string) {
	if partyID == "" {
		return
	}
	if room, ok := h.rooms[partyID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(h.rooms, partyID)
		}
	}
	if h.partyOf[userID] == partyID {
		delete(h.partyOf, userID)
	}
}

func (h *Hub) Broadcast(partyID, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.log.Error("encode broadcast", "event", event, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID := range h.rooms[partyID] {
		c, ok := h.clients[userID]
		if !ok {
			continue
		}
		if !c.enqueue(data) {
			h.log.Warn("dropped broadcast", "party", partyID, "user", userID, "event", event)
		}
	}
}

func (h *Hub) SendTo(userID, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.log.Error("encode message", "event", event, "err", err)
		return
	}

	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if !c.enqueue(data) {
		h.log.Warn("dropped message", "user", userID, "event", event)
	}
}

func encode(event string, payload any) ([]byte, error) {
	return json.Marshal(outboundMessage{Type: event, Payload: payload})
}
