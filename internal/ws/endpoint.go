package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Handler serves the board behind the socket.
type Handler interface {
	// Welcome returns the frames a session receives right after it joins.
	Welcome(ctx context.Context) ([]Message, error)
	// Handle processes one inbound frame and returns the frames meant for
	// the sender only. State changes are announced through the Hub.
	Handle(ctx context.Context, msg Message) []Message
}

// Options configures the socket endpoint.
type Options struct {
	// AllowedOrigin is matched against the Origin header. Empty or "*"
	// accepts any origin.
	AllowedOrigin string
	// RateLimit and Burst bound inbound frames per session.
	RateLimit rate.Limit
	Burst     int
}

// Endpoint upgrades HTTP requests into board sessions.
type Endpoint struct {
	hub      *Hub
	handler  Handler
	opts     Options
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewEndpoint builds the socket endpoint for hub.
func NewEndpoint(hub *Hub, handler Handler, opts Options, log *slog.Logger) *Endpoint {
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Inf
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	e := &Endpoint{hub: hub, handler: handler, opts: opts, log: log}
	e.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     e.checkOrigin,
	}
	return e
}

func (e *Endpoint) checkOrigin(r *http.Request) bool {
	if e.opts.AllowedOrigin == "" || e.opts.AllowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == e.opts.AllowedOrigin
}

// ServeHTTP upgrades the connection, registers the session and then sends
// the welcome frames. Broadcasts published after registration are held
// until the welcome frames are queued, so every change committed after the
// snapshot follows it. A change that landed in both is applied again,
// which clients absorb by upserting on item id.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &Client{
		id:      uuid.NewString(),
		hub:     e.hub,
		conn:    conn,
		handler: e.handler,
		limiter: rate.NewLimiter(e.opts.RateLimit, e.opts.Burst),
		log:     e.log,
		send:    make(chan []byte, sendBuffer),
	}

	if !e.hub.join(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go c.writePump()

	ctx := r.Context()
	welcome, err := e.handler.Welcome(ctx)
	if err != nil {
		e.log.Error("build welcome frames", slog.String("session_id", c.id), slog.Any("error", err))
		c.reply(ErrorMessage("", CodePersistence, "board unavailable"))
		e.hub.leave(c)
		return
	}
	for _, msg := range welcome {
		c.reply(msg)
	}
	if !c.markReady() {
		e.log.Warn("dropping slow session", slog.String("session_id", c.id))
		e.hub.leave(c)
		return
	}

	c.readPump(ctx)
}
