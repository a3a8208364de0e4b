// Package hub tracks live streaming clients and fans messages out to them.
package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harrylevesque/aviator/internal/metrics"
	"github.com/harrylevesque/aviator/internal/utils"
)

// UpdateMessage is the change-notification token pushed on every registry
// mutation. Clients respond by re-reading /api/apps.
const UpdateMessage = "update"

// DefaultWriteTimeout bounds a single send so one stalled client cannot hold
// up a broadcast round.
const DefaultWriteTimeout = 5 * time.Second

// Conn is the part of *websocket.Conn the hub writes through.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Hub holds the active connection set. Connect, Disconnect and Broadcast are
// meant to run on the serving loop; the set is also locked so Count can be
// read from anywhere.
type Hub struct {
	mu           sync.RWMutex
	clients      map[Conn]struct{}
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

func New(opts ...Option) *Hub {
	h := &Hub{
		clients:      make(map[Conn]struct{}),
		writeTimeout: DefaultWriteTimeout,
		logger:       utils.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect registers an already-upgraded connection.
func (h *Hub) Connect(c Conn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetConnections(n)
	h.logger.Debug("hub: client connected", "clients", n)
}

// Disconnect removes c. Removing an unknown connection is a no-op.
func (h *Hub) Disconnect(c Conn) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.metrics.SetConnections(n)
	h.logger.Debug("hub: client disconnected", "clients", n)
}

// Broadcast sends msg as a text frame to every active connection and returns
// how many sends succeeded. A failed send is logged and skipped; the
// connection stays registered until its own read loop disconnects it.
func (h *Hub) Broadcast(msg string) int {
	h.mu.RLock()
	clients := make([]Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	h.metrics.Broadcast()
	data := []byte(msg)
	delivered := 0
	for _, c := range clients {
		if err := h.send(c, data); err != nil {
			h.metrics.DeliveryFailure()
			h.logger.Warn("hub: delivery failed", "err", utils.Wrap(utils.KindDelivery, "send", err))
			continue
		}
		delivered++
	}
	h.logger.Debug("hub: broadcast", "msg", msg, "clients", len(clients), "delivered", delivered)
	return delivered
}

func (h *Hub) send(c Conn, data []byte) (err error) {
	// A connection closed underneath us may panic inside the writer.
	defer func() {
		if r := recover(); r != nil {
			err = utils.New(utils.KindDelivery, "panic during send")
		}
	}()
	if err := c.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

// Count returns the number of active connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes and forgets every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
	h.metrics.SetConnections(0)
}
