package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/switchyard-ai/switchyard/core"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// clientMessage is the client-to-server wire format
type clientMessage struct {
	Type        string   `json:"type"`
	MetricTypes []string `json:"metric_types,omitempty"`
}

// serverMessage is the server-to-client control wire format
type serverMessage struct {
	Type        string   `json:"type"`
	MetricTypes []string `json:"metric_types,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// HubStats counts connected clients and delivered messages
type HubStats struct {
	ConnectedClients int   `json:"connected_clients"`
	MessagesSent     int64 `json:"messages_sent"`
}

// Hub bridges the in-process bus onto WebSocket connections. Each
// client picks its metric types with subscribe messages; clients that
// cannot keep up are dropped.
type Hub struct {
	bus      *Bus
	upgrader websocket.Upgrader
	logger   core.Logger

	mu           sync.Mutex
	clients      map[*wsClient]struct{}
	messagesSent int64
}

// NewHub creates a hub attached to the given bus
func NewHub(bus *Bus, logger core.Logger) *Hub {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the connection and runs the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", map[string]interface{}{
			"operation": "realtime_connect",
			"error":     err.Error(),
		})
		return
	}

	client := &wsClient{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		subscriptions: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.bus.Attach(client)

	client.sendControl(serverMessage{Type: "welcome", Message: "send a subscribe message to receive updates"})

	go client.writePump()
	client.readPump()
}

// Stats returns a snapshot of hub counters
func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HubStats{
		ConnectedClients: len(h.clients),
		MessagesSent:     atomic.LoadInt64(&h.messagesSent),
	}
}

func (h *Hub) drop(client *wsClient) {
	h.bus.Detach(client)

	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	client.close()
}

// wsClient is one WebSocket connection with its subscription set
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.Mutex
	closed        bool
	subscriptions map[string]bool
}

// close shuts the send channel exactly once. Writers check the closed
// flag under the same lock, so no send can race the close.
func (c *wsClient) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.send)
}

// Wants implements Subscriber
func (c *wsClient) Wants(metricType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscriptions[metricType]
}

// Deliver implements Subscriber. A full send buffer means the client
// is too slow; it gets dropped rather than blocking the publisher.
func (c *wsClient) Deliver(update Update) {
	data, err := json.Marshal(update)
	if err != nil {
		return
	}
	if !c.trySend(data) {
		c.hub.logger.Warn("Dropping slow WebSocket client", map[string]interface{}{
			"operation": "realtime_broadcast",
		})
		c.hub.drop(c)
	}
}

func (c *wsClient) sendControl(msg serverMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend queues a frame without blocking. Returns false when the
// buffer is full. Closed clients report success so callers do not
// re-drop them.
func (c *wsClient) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		atomic.AddInt64(&c.hub.messagesSent, 1)
		return true
	default:
		return false
	}
}

// readPump handles subscribe, unsubscribe, and ping messages
func (c *wsClient) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendControl(serverMessage{Type: "error", Message: "invalid message"})
			continue
		}

		switch msg.Type {
		case "subscribe":
			c.mu.Lock()
			for _, mt := range msg.MetricTypes {
				c.subscriptions[mt] = true
			}
			c.mu.Unlock()
			c.sendControl(serverMessage{Type: "subscribed", MetricTypes: msg.MetricTypes})
		case "unsubscribe":
			c.mu.Lock()
			for _, mt := range msg.MetricTypes {
				delete(c.subscriptions, mt)
			}
			c.mu.Unlock()
			c.sendControl(serverMessage{Type: "unsubscribed", MetricTypes: msg.MetricTypes})
		case "ping":
			c.sendControl(serverMessage{Type: "pong"})
		default:
			c.sendControl(serverMessage{Type: "error", Message: "unknown message type"})
		}
	}
}

// writePump drains the send channel onto the connection and keeps the
// connection alive with protocol pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
