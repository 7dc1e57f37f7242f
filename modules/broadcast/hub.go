package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
)

// Client is one connected dashboard.
type Client struct {
	ID   string
	Conn *websocket.Conn
}

// CurrentNotice is pushed to every client when the subject's current
// activity changes. Payload is nil when the subject went idle.
type CurrentNotice struct {
	Type    string               `json:"type"`
	Subject string               `json:"subject"`
	Current *domain.ActiveRecord `json:"current"`
}

// Hub fans current-activity change notices out to connected websocket
// clients.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	notices    chan CurrentNotice
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notices:    make(chan CurrentNotice, 64),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It accepts a context for graceful
// shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[broadcast] Shutting down...")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client.ID)
			h.mu.Unlock()
		case notice := <-h.notices:
			h.fanOut(notice)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds a client connection.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client connection.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// NotifyCurrent implements the activity service's Notifier. Best-effort:
// a full notice channel drops the notice rather than blocking a write
// operation.
func (h *Hub) NotifyCurrent(subjectID string, active *domain.ActiveRecord) {
	notice := CurrentNotice{Type: "current", Subject: subjectID, Current: active}
	select {
	case h.notices <- notice:
	default:
		log.Println("[broadcast] Warning: notice channel full, dropping update")
	}
}

func (h *Hub) fanOut(notice CurrentNotice) {
	data, err := json.Marshal(notice)
	if err != nil {
		log.Printf("[broadcast] failed to marshal notice: %v", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[broadcast] write to %s failed: %v", client.ID, err)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
}
