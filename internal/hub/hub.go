// Package hub broadcasts dispatcher notifications to UI collaborators over
// WebSocket connections.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/arcadeops/ledarcade/internal/game"
	"github.com/coder/websocket"
)

const (
	queueSize    = 256
	writeTimeout = 5 * time.Second
)

// Hub fans notifications out to every connected observer. Notify never
// blocks: notifications queue into a buffered channel and are dropped with a
// log line when the queue is full.
type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}

	queue  chan game.Notification
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub and starts its broadcast loop.
func NewHub(parent context.Context, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		conns:  make(map[*websocket.Conn]struct{}),
		queue:  make(chan game.Notification, queueSize),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

// Notify implements game.Notifier. Fire-and-forget: a full queue drops the
// notification rather than stalling the dispatcher.
func (h *Hub) Notify(n game.Notification) {
	select {
	case h.queue <- n:
	default:
		h.logger.Warn("Notification queue full, dropping", "type", n.Type)
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case n := <-h.queue:
			h.broadcast(n)
		}
	}
}

func (h *Hub) broadcast(n game.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("Failed to marshal notification", "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
		err := conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			// Slow or gone observer: drop it.
			h.unregister(conn)
			_ = conn.Close(websocket.StatusNormalClosure, "observer dropped")
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("Event observer connected", "observers", h.ObserverCount())
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// ObserverCount returns how many observers are connected.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// ServeHTTP upgrades the request and streams notifications until the
// observer goes away. Observers are write-only; inbound frames are drained
// and discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept observer WebSocket", "error", err)
		return
	}

	h.register(conn)
	defer func() {
		h.unregister(conn)
		_ = conn.Close(websocket.StatusNormalClosure, "stream ended")
	}()

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// Close stops the broadcast loop and disconnects all observers.
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	for conn := range h.conns {
		_ = conn.Close(websocket.StatusNormalClosure, "server shutting down")
		delete(h.conns, conn)
	}
	h.mu.Unlock()
}
