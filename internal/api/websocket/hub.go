package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/fortuna/collegebaseball/internal/monitoring"
	"github.com/fortuna/collegebaseball/internal/publisher"
)

// Hub maintains the set of active clients and broadcasts job events to them.
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	broadcast  chan publisher.Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger, metrics *monitoring.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan publisher.Event, 1000),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    metrics,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.clientsMu.Unlock()
			h.metrics.WSConnected()
			h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.Int("clients", n))

		case c := <-h.unregister:
			h.remove(c)

		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues ev for every subscribed client. It never blocks; a full
// buffer drops the event.
func (h *Hub) Publish(_ context.Context, ev publisher.Event) error {
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("broadcast buffer full, dropping event", zap.String("type", ev.Type))
	}
	return nil
}

// ClientCount returns the number of active clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(ev publisher.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encoding event", zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		if !c.Wants(ev) {
			continue
		}
		if !c.TrySend(msg) {
			h.logger.Warn("client buffer full, disconnecting", zap.String("client_id", c.ID))
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.metrics.WSDisconnected()
	}
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
		h.metrics.WSDisconnected()
	}
}
