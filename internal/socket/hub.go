// internal/socket/hub.go
package socket

import (
	"encoding/json"
	"sync"

	"waste-tracking-api-server/internal/logger"
	"waste-tracking-api-server/internal/metrics"
	"waste-tracking-api-server/internal/models"
)

// sendBuffer bounds how many events may queue for a slow subscriber before
// further events are dropped for it.
const sendBuffer = 64

// Client is one subscriber connection. Send is drained by the connection's
// write loop.
type Client struct {
	UserID string
	Send   chan []byte
	tables map[string]bool
}

func NewClient(userID string, tables []string) *Client {
	c := &Client{
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
		tables: make(map[string]bool, len(tables)),
	}
	for _, t := range tables {
		c.tables[t] = true
	}
	return c
}

// Subscribed reports whether the client listens to table.
func (c *Client) Subscribed(table string) bool {
	return c.tables[table]
}

// Hub fans change events out to subscribed clients. Delivery is best-effort:
// a client whose buffer is full misses the event and is expected to refetch.
type Hub struct {
	clients map[*Client]bool
	// mu guards clients; Broadcast holds it for reading only.
	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	metrics.WebSocketClients.Inc()
	logger.Info("websocket client registered", "user", c.UserID)
}

// Unregister removes the client and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
		metrics.WebSocketClients.Dec()
		logger.Info("websocket client unregistered", "user", c.UserID)
	}
}

// Broadcast delivers event to every client subscribed to its table and
// returns how many clients received it.
func (h *Hub) Broadcast(event models.ChangeEvent) int {
	message, err := json.Marshal(event)
	if err != nil {
		logger.Error("marshal change event", "err", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.clients {
		if !c.Subscribed(event.Table) {
			continue
		}
		select {
		case c.Send <- message:
			delivered++
		default:
			logger.Warn("websocket client lagging, event dropped", "user", c.UserID, "table", event.Table)
		}
	}
	return delivered
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
