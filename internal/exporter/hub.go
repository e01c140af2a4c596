package exporter

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/powerroam/powerroam/internal/logging"
	"github.com/powerroam/powerroam/internal/protocol"
)

const (
	// Time allowed to write a message to a subscriber
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from a subscriber
	pongWait = 60 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Messages queued per subscriber before updates are dropped
	subscriberBuffer = 64
)

// Message is one JSON message on the live feed.
type Message struct {
	Type   string          `json:"type"` // "hello" or "update"
	ID     string          `json:"id,omitempty"`
	Kind   string          `json:"kind,omitempty"`
	Time   time.Time       `json:"time"`
	Update protocol.Update `json:"update,omitempty"`
}

// Hub fans decoded updates out to WebSocket subscribers.
type Hub struct {
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[uuid.UUID]chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subscribers: make(map[uuid.UUID]chan []byte),
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish sends u to every subscriber. Slow subscribers miss updates rather
// than stall the feed.
func (h *Hub) Publish(u protocol.Update) {
	msg, err := json.Marshal(Message{
		Type:   "update",
		Kind:   u.Tag().String(),
		Time:   time.Now().UTC(),
		Update: u,
	})
	if err != nil {
		logging.Error("Failed to encode update", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
			logging.Warn("Dropping update for slow subscriber", zap.String("subscriber", id.String()))
		}
	}
}

func (h *Hub) subscribe() (uuid.UUID, chan []byte) {
	id := uuid.New()
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *Hub) unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}

// ServeHTTP upgrades the request and streams updates until the client
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	id, ch := h.subscribe()
	logging.Info("Live feed subscriber connected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("subscriber", id.String()),
	)

	go h.readPump(conn, id)
	h.writePump(conn, id, ch)
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(conn *websocket.Conn, id uuid.UUID) {
	defer h.unsubscribe(id)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, id uuid.UUID, ch <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		logging.Info("Live feed subscriber disconnected", zap.String("subscriber", id.String()))
	}()

	hello, _ := json.Marshal(Message{Type: "hello", ID: id.String(), Time: time.Now().UTC()})
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return
	}

	for {
		select {
		case msg, ok := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
