package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// directMessage targets one user's open connections.
type directMessage struct {
	TargetUserID uuid.UUID
	Payload      []byte
}

// Hub maintains the set of connected clients and routes notification
// payloads to the right user. A user can hold several connections (tabs)
// at once; each gets the payload.
type Hub struct {
	// Registered clients. Maps user ID to a set of active connections.
	clients map[uuid.UUID]map[*Client]bool

	sendDirect chan *directMessage

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	logger *slog.Logger
	mu     sync.RWMutex
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		sendDirect: make(chan *directMessage),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run starts the hub's processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.clients[client.UserID]; !ok {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client registered", "user", client.UserID)

		case client := <-h.Unregister:
			h.mu.Lock()
			if userClients, ok := h.clients[client.UserID]; ok {
				if _, clientOk := userClients[client]; clientOk {
					delete(userClients, client)
					if len(userClients) == 0 {
						delete(h.clients, client.UserID)
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client unregistered", "user", client.UserID)

		case message := <-h.sendDirect:
			h.mu.RLock()
			for client := range h.clients[message.TargetUserID] {
				select {
				case client.Send <- message.Payload:
				default:
					h.logger.Warn("send buffer full, dropping payload", "user", client.UserID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// SendDirectMessage queues a payload for every connection a user has
// open. Dropped with a log line if the hub is blocked for over a second.
func (h *Hub) SendDirectMessage(targetUserID uuid.UUID, payload []byte) {
	message := &directMessage{
		TargetUserID: targetUserID,
		Payload:      payload,
	}
	select {
	case h.sendDirect <- message:
	case <-time.After(1 * time.Second):
		h.logger.Warn("timeout queuing direct message", "user", targetUserID)
	}
}
