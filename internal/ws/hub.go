package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
)

// ErrHubClosed is returned by Publish once Run has exited.
var ErrHubClosed = errors.New("hub closed")

const broadcastBuffer = 256

// Hub keeps the set of connected sessions and fans every published frame
// out to all of them. All membership changes and fan-outs happen on the
// Run goroutine, so each session sees frames in the order they were published.
type Hub struct {
	clients map[*Client]bool

	// Broadcast carries encoded frames to be delivered to every session.
	Broadcast chan []byte

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	sessions   atomic.Int64
	log        *slog.Logger
}

// NewHub creates an idle hub. Start it with Run.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled,
// then disconnects every session.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				c.close()
			}
			h.sessions.Store(0)
			h.log.Info("hub stopped")
			return

		case c := <-h.register:
			h.clients[c] = true
			h.sessions.Store(int64(len(h.clients)))
			h.log.Debug("session joined", slog.String("session_id", c.id), slog.Int("sessions", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
				h.sessions.Store(int64(len(h.clients)))
				h.log.Debug("session left", slog.String("session_id", c.id), slog.Int("sessions", len(h.clients)))
			}

		case payload := <-h.Broadcast:
			for c := range h.clients {
				if !c.deliver(payload) {
					// Send buffer full: drop the session, it rehydrates on reconnect.
					delete(h.clients, c)
					c.close()
					h.log.Warn("dropping slow session", slog.String("session_id", c.id))
				}
			}
			h.sessions.Store(int64(len(h.clients)))
		}
	}
}

// Publish encodes an event and queues it for every connected session.
func (h *Hub) Publish(event string, data any) error {
	msg, err := NewMessage(event, data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case h.Broadcast <- payload:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Sessions returns the number of connected sessions.
func (h *Hub) Sessions() int {
	return int(h.sessions.Load())
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
