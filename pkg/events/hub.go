// Package events implements the WebSocket event bus the read-only
// dashboard API subscribes to (SPEC_FULL.md §4.9, §4.12). A single
// daemon instance serves one host, so this is a plain in-process
// broadcast hub — unlike the teacher's ConnectionManager, there is no
// Postgres LISTEN/NOTIFY catchup or multi-replica fan-out to manage,
// since the dashboard is explicitly a thin, stubbed, out-of-scope
// surface (spec.md §1 Non-goals); those teacher concerns have no
// caller here.
//
// Grounded on the teacher's pkg/events/manager.go mutex-guarded
// connection registry and snapshot-then-send idiom (copy connection
// pointers under lock, release before the blocking write).
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is one message broadcast to subscribed dashboard clients.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// WriteTimeout bounds how long a single client send may block.
const WriteTimeout = 5 * time.Second

// connection wraps a single WebSocket client. Writes are serialized
// through a mutex since gorilla/websocket connections are not
// safe for concurrent writers.
type connection struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *connection) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub fans out Events to every registered dashboard connection.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*connection
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*connection)}
}

// Register adds conn to the broadcast set and returns its connection
// ID, used by the caller to Unregister on disconnect.
func (h *Hub) Register(conn *websocket.Conn) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.conns[id] = &connection{id: id, conn: conn}
	h.mu.Unlock()
	return id
}

// Unregister removes a connection from the broadcast set.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

// ActiveConnections reports the number of registered clients.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast sends event to every registered connection. Best-effort:
// a failing send only unregisters that connection and logs, it never
// propagates to the caller (spec.md §4.4 failure semantics: dashboard
// notifications are best-effort).
func (h *Hub) Broadcast(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("events: marshal broadcast event failed", "type", event.Type, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(payload); err != nil {
			slog.Warn("events: send to dashboard client failed, unregistering", "connection_id", c.id, "error", err)
			h.Unregister(c.id)
		}
	}
}
