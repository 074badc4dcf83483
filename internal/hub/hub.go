package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/log"
)

// Config tunes the websocket connection handling.
type Config struct {
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
}

// DefaultConfig returns sane websocket timings.
func DefaultConfig() Config {
	return Config{
		MaxMessageSize: 4096,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   54 * time.Second,
	}
}

// Hub owns every websocket client and fans session-scoped messages out to
// the clients attached to that session.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	sessions   map[string]map[string]*Client // sessionID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *sessionMessage
	mu         sync.RWMutex
	config     Config
}

type sessionMessage struct {
	SessionID string
	Message   []byte
	Exclude   string // client ID to skip
}

// NewHub creates a hub; call Run on its own goroutine.
func NewHub(cfg Config) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		sessions:   make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *sessionMessage, 256),
		config:     cfg,
	}
}

// Run processes registrations and fan-out until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.L().Debug().Str("client_id", client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for sessionID, members := range h.sessions {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.sessions, sessionID)
					}
				}
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			log.L().Debug().Str("client_id", client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			if members, ok := h.sessions[msg.SessionID]; ok {
				for clientID, client := range members {
					if clientID == msg.Exclude {
						continue
					}
					select {
					case client.Send <- msg.Message:
					default:
						// Slow consumer; drop the connection rather than
						// block the fan-out.
						go h.removeClient(client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinSession attaches a client to a session's fan-out set.
func (h *Hub) JoinSession(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[sessionID]; !ok {
		h.sessions[sessionID] = make(map[string]*Client)
	}
	h.sessions[sessionID][client.ID] = client
	client.SessionID = sessionID
	log.L().Info().
		Str("client_id", client.ID).
		Str(log.FieldSessionID, sessionID).
		Msg("client joined session")
}

// LeaveSession detaches a client from a session's fan-out set.
func (h *Hub) LeaveSession(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.sessions[sessionID]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.sessions, sessionID)
		}
	}
	if client.SessionID == sessionID {
		client.SessionID = ""
	}
	log.L().Info().
		Str("client_id", client.ID).
		Str(log.FieldSessionID, sessionID).
		Msg("client left session")
}

// BroadcastToSession marshals message and fans it out to every client in
// the session, except exclude.
func (h *Hub) BroadcastToSession(sessionID string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &sessionMessage{
		SessionID: sessionID,
		Message:   data,
		Exclude:   exclude,
	}
	return nil
}

// SessionClientCount returns the number of connected clients in a session.
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

func (h *Hub) removeClient(client *Client) {
	h.unregister <- client
}
