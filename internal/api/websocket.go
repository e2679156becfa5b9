package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"market-dashboard/internal/app"
	"market-dashboard/observability"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Message types exchanged over /api/ws
const (
	MessageSnapshot = "snapshot"
	MessageRefresh  = "refresh"
	MessageDismiss  = "dismiss"
	MessageError    = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the envelope written to and read from WebSocket clients
type Message struct {
	Type  string     `json:"type"`
	Data  *app.State `json:"data,omitempty"`
	Error string     `json:"error,omitempty"`
}

// Hub pushes dashboard snapshots to connected WebSocket clients
type Hub struct {
	ctrl    *app.Controller
	metrics *observability.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub bound to the controller's state stream
func NewHub(ctrl *app.Controller, metrics *observability.Metrics) *Hub {
	return &Hub{
		ctrl:    ctrl,
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.SetWebSocketClients(n)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.SetWebSocketClients(n)
	}
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	state <-chan app.State
	// direct replies such as errors; never closed
	replies chan Message
	done    chan struct{}
}

// HandleWebSocket upgrades the connection and streams dashboard snapshots.
// Clients may send {"type":"refresh"} or {"type":"dismiss"}.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.Warn("websocket upgrade failed", "error", err)
		return
	}

	states, unsubscribe := h.ctrl.Subscribe()
	c := &client{
		hub:     h.hub,
		conn:    conn,
		state:   states,
		replies: make(chan Message, 4),
		done:    make(chan struct{}),
	}
	h.hub.register(c)
	observability.Debug("websocket client connected", "remote", r.RemoteAddr)

	go c.writePump()
	go func() {
		c.readPump()
		unsubscribe()
		h.hub.unregister(c)
		observability.Debug("websocket client disconnected", "remote", r.RemoteAddr)
	}()
}

// readPump handles client commands and watches the connection for liveness
func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				observability.Warn("websocket read error", "error", err)
			}
			return
		}
		c.handle(raw)
	}
}

func (c *client) handle(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply(Message{Type: MessageError, Error: "invalid message"})
		return
	}

	switch msg.Type {
	case MessageRefresh:
		// the resulting snapshot arrives through the subscription
		go func() {
			if err := c.hub.ctrl.Refresh(context.Background()); err != nil {
				observability.Warn("websocket refresh fell back to fixtures", "error", err)
			}
		}()
	case MessageDismiss:
		c.hub.ctrl.DismissErrors()
	default:
		c.reply(Message{Type: MessageError, Error: "unknown message type: " + msg.Type})
	}
}

func (c *client) reply(m Message) {
	select {
	case c.replies <- m:
	default:
	}
}

// writePump forwards snapshots and replies to the connection and sends pings
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case s, ok := <-c.state:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// controller shut down
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(Message{Type: MessageSnapshot, Data: &s}); err != nil {
				return
			}

		case m := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(m); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
