package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 256
)

// Client is one connected session.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	handler Handler
	limiter *rate.Limiter
	log     *slog.Logger

	mu     sync.Mutex
	closed bool
	send   chan []byte
	// Broadcasts are held here until the welcome frames are queued.
	ready bool
	held  [][]byte
}

// enqueue queues payload for the write pump. It reports false when the
// session is closed or its buffer is full.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	return c.push(payload)
}

// deliver queues a broadcast frame. Before the session is ready the frame
// is held back, so it cannot overtake the welcome snapshot.
func (c *Client) deliver(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if !c.ready {
		if len(c.held) >= sendBuffer {
			return false
		}
		c.held = append(c.held, payload)
		return true
	}
	return c.push(payload)
}

// markReady releases the held broadcasts behind the welcome frames.
func (c *Client) markReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.ready = true
	held := c.held
	c.held = nil
	for _, payload := range held {
		if !c.push(payload) {
			return false
		}
	}
	return true
}

func (c *Client) push(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) reply(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("encode reply", slog.String("type", msg.Type), slog.Any("error", err))
		return
	}
	c.enqueue(payload)
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump decodes inbound frames and hands them to the handler one at a
// time, so replies to a session keep the order of its requests.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read failed", slog.String("session_id", c.id), slog.Any("error", err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.reply(ErrorMessage("", CodeBadRequest, "malformed frame"))
			continue
		}

		if !c.limiter.Allow() {
			c.reply(ErrorMessage(msg.Type, CodeRateLimited, "too many requests"))
			continue
		}

		for _, out := range c.handler.Handle(ctx, msg) {
			c.reply(out)
		}
	}
}

// writePump drains the send buffer onto the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.log.Debug("write failed", slog.String("session_id", c.id), slog.Any("error", err))
				}
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
