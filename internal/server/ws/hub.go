// Package ws pushes leaderboard change events to browser clients over
// WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polyrank/internal/domain"
	"github.com/alanyoungcy/polyrank/internal/metrics"
	"github.com/alanyoungcy/polyrank/internal/server/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 1024
	sendBufferSize = 64
)

// Hub relays messages from one signal bus channel to every connected client.
type Hub struct {
	bus     domain.SignalBus
	channel string
	logger  *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	startedAt  time.Time
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub relaying channel from bus. allowedOrigins follows the
// CORS rules: empty or "*" accepts any origin.
func NewHub(bus domain.SignalBus, channel string, allowedOrigins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		bus:        bus,
		channel:    channel,
		logger:     logger.With(slog.String("component", "ws")),
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		startedAt:  time.Now().UTC(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
		},
	}
	return h
}

// Run drives registration and broadcast until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	if h.bus != nil {
		msgs, err := h.bus.Subscribe(ctx, h.channel)
		if err != nil {
			h.logger.Error("subscribe failed",
				slog.String("channel", h.channel),
				slog.String("error", err.Error()),
			)
		} else {
			go h.relay(ctx, msgs)
		}
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			metrics.WebSocketClients.Set(0)
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			h.logger.Debug("client connected", slog.Int("clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			h.logger.Debug("client disconnected", slog.Int("clients", n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) relay(ctx context.Context, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("subscription closed", slog.String("channel", h.channel))
				return
			}
			select {
			case h.broadcast <- data:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the request and registers the connection.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	if !h.attach(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// attach queues the hello and hands c to Run. Once registered, c.send
// belongs to Run, which may close it at any time. It reports false when the
// hub has stopped.
func (h *Hub) attach(c *client) bool {
	c.sendHello()
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// sendHello lets the client mark the connection live before any event
// arrives. It must run before registration.
func (c *client) sendHello() {
	msg, err := json.Marshal(map[string]any{
		"type":          "hello",
		"channel":       c.hub.channel,
		"uptimeSeconds": int64(time.Since(c.hub.startedAt).Seconds()),
	})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// readPump discards client frames and keeps the read deadline fresh.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
