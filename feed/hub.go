package feed

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub fans relay events out to connected observers. A nil *Hub is valid and
// drops everything, so callers can publish unconditionally.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("feed: observer connected", "observers", h.observerCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.done)
				close(client.send)
			}
			h.mu.Unlock()
			slog.Info("feed: observer disconnected", "observers", h.observerCount())
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Publish sends an event to every connected observer. Slow observers drop
// events rather than stall the relay.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("feed: marshal event", "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.Send(data)
	}
}

func (h *Hub) observerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
