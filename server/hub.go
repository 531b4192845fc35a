package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/room4-2/accessai/config"
	"github.com/room4-2/accessai/messages"
	"github.com/room4-2/accessai/metrics"
	"github.com/room4-2/accessai/session"
)

// Hub tracks connected UI clients and fans conversation updates out to them
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	redis   *redis.Client
	config  *config.Config
	metrics *metrics.Metrics

	controller Controller
}

// NewHub creates a hub. redisClient may be nil, in which case presence is
// only kept in memory.
func NewHub(cfg *config.Config, redisClient *redis.Client, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		redis:   redisClient,
		config:  cfg,
		metrics: m,
	}
}

func (h *Hub) attach(controller Controller) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.controller = controller
}

// Register creates a client for conn
func (h *Hub) Register(ctx context.Context, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) >= h.config.MaxClients {
		return nil, fmt.Errorf("maximum clients reached")
	}

	clientID := uuid.New().String()
	client := NewClient(clientID, conn, h.controller, h.config.KeepAlivePeriod)

	h.storeClient(ctx, clientID, client)
	h.metrics.SetUIClients(len(h.clients))
	return client, nil
}

// storeClient saves a client to memory and Redis
func (h *Hub) storeClient(ctx context.Context, clientID string, client *Client) {
	h.clients[clientID] = client

	if h.redis != nil {
		h.redis.HSet(ctx, "uiclient:"+clientID, map[string]interface{}{
			"created_at":    client.CreatedAt.Format(time.RFC3339),
			"last_activity": client.LastActive().Format(time.RFC3339),
			"remote_addr":   client.RemoteAddr(),
			"status":        "active",
		})
		h.redis.SAdd(ctx, "ui_clients", clientID)
		h.redis.Expire(ctx, "uiclient:"+clientID, h.config.SessionTimeout)
	}
}

// Get retrieves a client by ID
func (h *Hub) Get(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[clientID]
	return client, exists
}

// Remove closes and forgets a client
func (h *Hub) Remove(ctx context.Context, clientID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, exists := h.clients[clientID]
	if !exists {
		return nil
	}

	client.Close()
	h.forget(ctx, clientID)
	return nil
}

func (h *Hub) forget(ctx context.Context, clientID string) {
	delete(h.clients, clientID)
	h.metrics.SetUIClients(len(h.clients))

	if h.redis != nil {
		h.redis.Del(ctx, "uiclient:"+clientID)
		h.redis.SRem(ctx, "ui_clients", clientID)
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CleanupInactive removes clients that have been inactive
func (h *Hub) CleanupInactive(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for id, client := range h.clients {
		if now.Sub(client.LastActive()) > h.config.SessionTimeout {
			client.Close()
			h.forget(ctx, id)
		}
	}
}

// StartCleanupRoutine starts periodic cleanup of inactive clients
func (h *Hub) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.CleanupInactive(ctx)
		}
	}
}

// Shutdown closes all clients
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		client.Close()
		delete(h.clients, id)
	}
	h.metrics.SetUIClients(0)

	if h.redis != nil {
		h.redis.Del(context.Background(), "ui_clients")
	}
}

// SetState broadcasts a conversation state change. It implements
// session.StateSink.
func (h *Hub) SetState(state session.State, side *session.SideData) {
	h.broadcast(h.stateMessage(state, side))
}

// Transcript broadcasts one line of the conversation.
func (h *Hub) Transcript(role, text string) {
	h.broadcast(messages.NewTranscriptMessage(role, text))
}

func (h *Hub) stateMessage(state session.State, side *session.SideData) *messages.ServerMessage {
	h.mu.RLock()
	controller := h.controller
	h.mu.RUnlock()

	var conversationID string
	if controller != nil {
		conversationID = controller.ID()
	}
	var sideData any
	if side != nil {
		sideData = side
	}
	return messages.NewStateMessage(state.String(), conversationID, sideData)
}

func (h *Hub) broadcast(msg *messages.ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		client.queueMessage(msg)
	}
}
