package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StatusEvent is the wire shape of an order-status broadcast.
type StatusEvent struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"orderId"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub manages WebSocket clients and broadcasts order-status messages to them.
type Hub struct {
	mu          sync.Mutex
	connections map[*websocket.Conn]struct{}
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	broadcast   chan []byte
	done        chan struct{}
	stopOnce    sync.Once
}

// NewHub constructs a Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		register:    make(chan *websocket.Conn),
		unregister:  make(chan *websocket.Conn),
		broadcast:   make(chan []byte),
		done:        make(chan struct{}),
	}
}

// Register adds a client connection. After the hub has stopped the connection
// is closed instead, since nothing will ever serve it.
func (h *Hub) Register(conn *websocket.Conn) {
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
	}
}

// Unregister removes and closes a client connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		conn.Close()
	}
}

// Broadcast sends a raw message to every connected client. Messages sent after
// the hub has stopped are dropped.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// BroadcastStatus sends an order-status event to every connected client.
func (h *Hub) BroadcastStatus(orderID, state string) {
	data, err := json.Marshal(StatusEvent{
		Type:      "order_status",
		OrderID:   orderID,
		State:     state,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	h.Broadcast(data)
}

// Run processes register/unregister/broadcast events until the context ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Release in-flight and future callers before tearing down, so
			// Register/Unregister/Broadcast never block on a stopped hub.
			h.stopOnce.Do(func() { close(h.done) })
			h.mu.Lock()
			for conn := range h.connections {
				conn.Close()
				delete(h.connections, conn)
			}
			h.mu.Unlock()
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = struct{}{}
			h.mu.Unlock()
		case conn := <-h.unregister:
			h.mu.Lock()
			delete(h.connections, conn)
			h.mu.Unlock()
			conn.Close()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.connections {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}
