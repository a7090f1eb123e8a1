package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const sendBuffer = 32

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans feed events out to every connected dashboard.
type Hub struct {
	pingInterval   time.Duration
	maxMessageSize int64

	mu      sync.Mutex
	clients map[*Client]struct{}
}

// NewHub creates a hub. Zero values select a 54s ping interval and 512 byte inbound limit.
func NewHub(pingInterval time.Duration, maxMessageSize int64) *Hub {
	if pingInterval <= 0 {
		pingInterval = 54 * time.Second
	}
	if maxMessageSize <= 0 {
		maxMessageSize = 512
	}
	return &Hub{
		pingInterval:   pingInterval,
		maxMessageSize: maxMessageSize,
		clients:        make(map[*Client]struct{}),
	}
}

// HandleFeed upgrades the HTTP request to a WebSocket connection and subscribes it.
func (h *Hub) HandleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written an HTTP error
		log.Info("Failed to upgrade connection", "error", err)
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		Conn:        conn,
		Send:        make(chan []byte, sendBuffer),
		RateLimiter: rate.NewLimiter(1, 3),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	log.Debug("Feed client connected", "client", client.ID)

	go client.WriteMessages(h.pingInterval)
	go client.ReadMessages(h.pingInterval*10/9, h.maxMessageSize, h.HandleMessage, h.remove)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.Disconnect()
}

// Publish sends an event to all clients.
func (h *Hub) Publish(eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error("Error marshalling feed event", "type", eventType, "error", err)
		return
	}
	raw, err := json.Marshal(&Message{Type: eventType, Data: payload})
	if err != nil {
		log.Error("Error marshalling feed event", "type", eventType, "error", err)
		return
	}
	h.Broadcast(raw)
}

// Broadcast sends a message to all connected clients. Clients that cannot
// keep up are dropped.
func (h *Hub) Broadcast(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.TrySend(message) {
			delete(h.clients, client)
			client.Disconnect()
			log.Debug("Dropped slow feed client", "client", client.ID)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		client.Disconnect()
	}
}
