package http

import (
	"encoding/json"
	"sync"
)

// outboundMessage is the envelope for every server-to-client frame.
type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub routes game events onto client send channels. It satisfies the game
// core's Emitter interface so the app layer never sees a websocket.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client            // playerID -> connection
	rooms   map[string]map[string]*client // room code -> members
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]*client),
	}
}

// Register binds a connection to a player ID and a room. A reconnect under
// the same ID replaces the old binding.
func (h *Hub) Register(playerID, code string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[playerID] = c
	members, ok := h.rooms[code]
	if !ok {
		members = make(map[string]*client)
		h.rooms[code] = members
	}
	members[playerID] = c
}

// Unregister drops the binding, but only if the connection still owns it.
func (h *Hub) Unregister(playerID, code string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[playerID]; ok && current == c {
		delete(h.clients, playerID)
	}
	if members, ok := h.rooms[code]; ok {
		if current, ok := members[playerID]; ok && current == c {
			delete(members, playerID)
		}
		if len(members) == 0 {
			delete(h.rooms, code)
		}
	}
}

func (h *Hub) ToPlayer(playerID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[playerID]
	h.mu.RUnlock()
	if ok {
		c.enqueue(outboundMessage{Type: event, Payload: payload})
	}
}

func (h *Hub) ToRoom(code, event string, payload any) {
	h.mu.RLock()
	members := make([]*client, 0, len(h.rooms[code]))
	for _, c := range h.rooms[code] {
		members = append(members, c)
	}
	h.mu.RUnlock()
	for _, c := range members {
		c.enqueue(outboundMessage{Type: event, Payload: payload})
	}
}

// client is one websocket connection with its buffered outbound queue.
type client struct {
	send chan outboundMessage
	once sync.Once
}

func newClient() *client {
	return &client{send: make(chan outboundMessage, 32)}
}

// enqueue drops the frame if the client's buffer is full so a slow reader
// can never stall a broadcast.
func (c *client) enqueue(msg outboundMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

func rawPayload(payload json.RawMessage, dst any) error {
	if len(payload) == 0 {
		return json.Unmarshal([]byte("{}"), dst)
	}
	return json.Unmarshal(payload, dst)
}
