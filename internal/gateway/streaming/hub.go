// Package streaming handles WebSocket connections for real-time run event
// mirroring. The hub is fed by the event bus, so WebSocket observers see the
// same ordered event stream the SSE response carries.
package streaming

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kandev/agui-gateway/internal/common/logger"
	"github.com/kandev/agui-gateway/internal/events"
	"github.com/kandev/agui-gateway/internal/events/bus"
)

// Client represents a WebSocket client connection
type Client struct {
	ID        string
	conn      *websocket.Conn
	threadIDs map[string]bool // Threads this client is subscribed to
	send      chan []byte
	hub       *Hub
	mu        sync.RWMutex
	logger    *logger.Logger
}

// NewClient creates a new WebSocket client
func NewClient(id string, conn *websocket.Conn, hub *Hub, log *logger.Logger) *Client {
	return &Client{
		ID:        id,
		conn:      conn,
		threadIDs: make(map[string]bool),
		send:      make(chan []byte, 256),
		hub:       hub,
		logger:    log.WithFields(zap.String("client_id", id)),
	}
}

// Hub manages all WebSocket clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Clients by thread ID for efficient event routing
	threadClients map[string]map[*Client]bool

	// Channels
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu     sync.RWMutex
	logger *logger.Logger
}

// BroadcastMessage contains one run event to fan out
type BroadcastMessage struct {
	ThreadID string
	Event    interface{}
}

// NewHub creates a new WebSocket hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		threadClients: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		broadcast:     make(chan *BroadcastMessage, 256),
		logger:        log.WithFields(zap.String("component", "websocket_hub")),
	}
}

// Run starts the hub processing loop
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer h.logger.Info("WebSocket hub stopped")

	for {
		select {
		case <-ctx.Done():
			// Close all client connections
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.threadClients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("Client registered", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)

				// Remove from all thread subscriptions
				for threadID := range client.threadIDs {
					if clients, ok := h.threadClients[threadID]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.threadClients, threadID)
						}
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", zap.String("client_id", client.ID))

		case msg := <-h.broadcast:
			h.mu.RLock()
			clients := h.threadClients[msg.ThreadID]
			h.mu.RUnlock()

			if len(clients) == 0 {
				continue
			}

			data, err := json.Marshal(msg.Event)
			if err != nil {
				h.logger.Error("Failed to marshal event", zap.Error(err))
				continue
			}

			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Client send buffer is full, close connection
					h.mu.Lock()
					close(client.send)
					delete(h.clients, client)
					for threadID := range client.threadIDs {
						if threadClients, ok := h.threadClients[threadID]; ok {
							delete(threadClients, client)
							if len(threadClients) == 0 {
								delete(h.threadClients, threadID)
							}
						}
					}
					h.mu.Unlock()
				}
			}
		}
	}
}

// AttachBus feeds the hub from the bus's run-event mirror. Events published
// for any thread reach the clients subscribed to that thread.
func (h *Hub) AttachBus(eventBus bus.EventBus) (bus.Subscription, error) {
	return eventBus.Subscribe(events.BuildRunStreamWildcardSubject(), func(ctx context.Context, event *bus.Event) error {
		threadID, _ := event.Data["threadId"].(string)
		if threadID == "" {
			return nil
		}
		h.Broadcast(threadID, event.Data["event"])
		return nil
	})
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends a run event to all clients subscribed to a thread
func (h *Hub) Broadcast(threadID string, event interface{}) {
	h.broadcast <- &BroadcastMessage{
		ThreadID: threadID,
		Event:    event,
	}
}

// SubscribeClient subscribes a client to a thread
func (h *Hub) SubscribeClient(client *Client, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.threadClients[threadID]; !ok {
		h.threadClients[threadID] = make(map[*Client]bool)
	}
	h.threadClients[threadID][client] = true
	h.logger.Debug("Client subscribed to thread",
		zap.String("client_id", client.ID),
		zap.String("thread_id", threadID))
}

// UnsubscribeClient unsubscribes a client from a thread
func (h *Hub) UnsubscribeClient(client *Client, threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.threadClients[threadID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.threadClients, threadID)
		}
	}
	h.logger.Debug("Client unsubscribed from thread",
		zap.String("client_id", client.ID),
		zap.String("thread_id", threadID))
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetThreadSubscriberCount returns the number of clients subscribed to a thread
func (h *Hub) GetThreadSubscriberCount(threadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.threadClients[threadID]; ok {
		return len(clients)
	}
	return 0
}
