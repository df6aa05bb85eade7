// Package hub fans session events out to connected clients.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/domain"
)

// Role distinguishes host dashboards from player connections.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// Client is one subscriber with a bounded outbound queue.
type Client struct {
	ID        string
	SessionID string
	Role      Role

	mu       sync.Mutex
	playerID string
	send     chan []byte
	closed   bool
}

// Send is the queue drained by the connection writer. It is closed when the client is dropped.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// PlayerID returns the player bound to this connection, if any.
func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// deliver enqueues without blocking and reports whether the message was accepted.
func (c *Client) deliver(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Stats summarises hub occupancy.
type Stats struct {
	Connections int            `json:"connections"`
	Sessions    int            `json:"sessions"`
	PerSession  map[string]int `json:"perSession"`
}

// Hub keeps per-session subscriber sets. It implements app.Publisher and never blocks a sender.
type Hub struct {
	bufferSize int

	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}
	players  map[string]map[string]*Client
}

func New(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		bufferSize: bufferSize,
		sessions:   make(map[string]map[*Client]struct{}),
		players:    make(map[string]map[string]*Client),
	}
}

// Register adds a new client to sessionID.
func (h *Hub) Register(sessionID string, role Role) *Client {
	client := &Client{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		send:      make(chan []byte, h.bufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*Client]struct{})
	}
	h.sessions[sessionID][client] = struct{}{}

	log.Debug().
		Str("connection_id", client.ID).
		Str("session_id", sessionID).
		Str("role", string(role)).
		Int("total_connections", len(h.sessions[sessionID])).
		Msg("connection registered")
	return client
}

// Bind routes private messages for playerID to client, replacing an older connection.
func (h *Hub) Bind(client *Client, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[client.SessionID][client]; !ok {
		return
	}
	if h.players[client.SessionID] == nil {
		h.players[client.SessionID] = make(map[string]*Client)
	}
	h.players[client.SessionID][playerID] = client

	client.mu.Lock()
	client.playerID = playerID
	client.mu.Unlock()
}

// Unregister removes client and closes its queue. It is safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	h.removeLocked(client)
	h.mu.Unlock()
	client.close()
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.sessions[client.SessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.sessions, client.SessionID)
	}

	if playerID := client.PlayerID(); playerID != "" {
		if bound := h.players[client.SessionID]; bound != nil && bound[playerID] == client {
			delete(bound, playerID)
			if len(bound) == 0 {
				delete(h.players, client.SessionID)
			}
		}
	}
	log.Debug().
		Str("connection_id", client.ID).
		Str("session_id", client.SessionID).
		Msg("connection unregistered")
}

// Broadcast delivers event to every client of sessionID.
func (h *Hub) Broadcast(sessionID string, event domain.Event) {
	h.fanout(sessionID, event, func(*Client) bool { return true })
}

// BroadcastHosts delivers event to the host clients of sessionID.
func (h *Hub) BroadcastHosts(sessionID string, event domain.Event) {
	h.fanout(sessionID, event, func(c *Client) bool { return c.Role == RoleHost })
}

// SendTo delivers event to the connection bound to playerID.
func (h *Hub) SendTo(sessionID, playerID string, event domain.Event) {
	h.mu.RLock()
	client := h.players[sessionID][playerID]
	h.mu.RUnlock()
	if client == nil {
		return
	}
	h.SendClient(client, event)
}

// SendClient delivers event to a single connection.
func (h *Hub) SendClient(client *Client, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal event")
		return
	}
	if !client.deliver(data) {
		h.drop(client)
	}
}

func (h *Hub) fanout(sessionID string, event domain.Event, match func(*Client) bool) {
	h.mu.RLock()
	clients := h.sessions[sessionID]
	targets := make([]*Client, 0, len(clients))
	for client := range clients {
		if match(client) {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal event for broadcast")
		return
	}
	for _, client := range targets {
		if !client.deliver(data) {
			h.drop(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	log.Warn().
		Str("connection_id", client.ID).
		Str("session_id", client.SessionID).
		Str("player_id", client.PlayerID()).
		Msg("connection send buffer full, dropping connection")
	h.Unregister(client)
}

// CloseSession drops every client of sessionID.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	clients := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	delete(h.players, sessionID)
	h.mu.Unlock()

	for client := range clients {
		client.close()
	}
}

// IsBound reports whether some connection currently receives playerID's private messages.
func (h *Hub) IsBound(sessionID, playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.players[sessionID][playerID]
	return ok
}

// Count returns the number of clients subscribed to sessionID.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stats := Stats{Sessions: len(h.sessions), PerSession: make(map[string]int, len(h.sessions))}
	for id, clients := range h.sessions {
		stats.Connections += len(clients)
		stats.PerSession[id] = len(clients)
	}
	return stats
}
