package web

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Viral-Card/server/internal/engine"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 256
)

// Client is one renderer connected to a session's event stream
type Client struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *EventHub
	mu        sync.Mutex
	closed    bool
}

// EventHub fans engine events out to the websocket clients of the session
// they belong to. It implements engine.Notifier.
type EventHub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan engine.Event
	log        *zap.Logger
	mu         sync.RWMutex
}

func NewEventHub(log *zap.Logger) *EventHub {
	return &EventHub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		broadcast:  make(chan engine.Event, 1000),
		log:        log.Named("hub"),
	}
}

// Run is the hub's event loop. It returns when ctx is done, closing every
// client.
func (h *EventHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case ev := <-h.broadcast:
			h.broadcastEvent(ev)
		}
	}
}

// Publish queues ev for delivery without blocking the engine
func (h *EventHub) Publish(ev engine.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("broadcast channel full, dropping event",
			zap.String("session", ev.SessionID), zap.String("type", string(ev.Type)))
	}
}

// Register attaches a client. The caller starts the read pump.
func (h *EventHub) Register(c *Client) {
	h.register <- c
}

func (h *EventHub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.log.Info("client connected",
		zap.String("client", client.ID), zap.String("session", client.SessionID), zap.Int("total", len(h.clients)))

	go client.writePump()
}

func (h *EventHub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
		h.log.Info("client disconnected", zap.String("client", client.ID), zap.Int("total", len(h.clients)))
	}
}

func (h *EventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
}

func (h *EventHub) broadcastEvent(ev engine.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to marshal event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.clients {
		if client.SessionID != ev.SessionID {
			continue
		}
		select {
		case client.Send <- data:
			sent++
		default:
			h.log.Warn("client send buffer full", zap.String("client", client.ID))
		}
	}
	h.log.Debug("event broadcast", zap.String("type", string(ev.Type)), zap.Int("clients", sent))
}

// ClientCount returns the number of clients watching sessionID, or all
// clients when sessionID is empty
func (h *EventHub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if sessionID == "" {
		return len(h.clients)
	}
	n := 0
	for _, c := range h.clients {
		if c.SessionID == sessionID {
			n++
		}
	}
	return n
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.mu.Lock()
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.closed = true
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				c.mu.Unlock()
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.log.Debug("write failed", zap.String("client", c.ID), zap.Error(err))
				c.closed = true
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()

		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}

			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Hub.log.Debug("ping failed", zap.String("client", c.ID), zap.Error(err))
				c.closed = true
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.Conn.Close()
}

// readPump drains the connection so pongs and close frames are processed.
// Renderers only listen; anything they send is discarded.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("unexpected close", zap.String("client", c.ID), zap.Error(err))
			}
			return
		}
	}
}
