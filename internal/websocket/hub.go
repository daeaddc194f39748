package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"redstring/pkg/logger"
	"redstring/pkg/models"
)

// Hub pushes each reader's progress updates to that reader's open
// websocket connections, so a second tab can refresh its badges.
type Hub struct {
	log *logger.Logger

	mu      sync.Mutex
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
	publish    chan models.ProgressUpdate
	done       chan struct{}
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		log:        log.With("component", "websocket"),
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		publish:    make(chan models.ProgressUpdate, 100),
		done:       make(chan struct{}),
	}
}

// Run handles registration and fan-out until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("websocket client connected", "user_id", c.userID)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.log.Debug("websocket client disconnected", "user_id", c.userID)
			}
			h.mu.Unlock()

		case u := <-h.publish:
			data, err := json.Marshal(u)
			if err != nil {
				h.log.Error("websocket marshal", "error", err)
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				if c.userID != u.UserID {
					continue
				}
				select {
				case c.send <- data:
				default:
					h.log.Warn("websocket send buffer full, dropping client", "user_id", c.userID)
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish never blocks; updates are dropped when the hub falls behind.
func (h *Hub) Publish(u models.ProgressUpdate) {
	select {
	case h.publish <- u:
	default:
		h.log.Warn("websocket publish queue full, dropping update", "user_id", u.UserID)
	}
}

// Clients counts the open connections of userID.
func (h *Hub) Clients(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		if c.userID == userID {
			n++
		}
	}
	return n
}

// drop must be called with h.mu held.
func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	_ = c.conn.Close()
}
