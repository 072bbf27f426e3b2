// Package sse streams host lifecycle events to admin clients as
// server-sent events.
package sse

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/regwhelp/internal/events"
	"github.com/mcoot/regwhelp/internal/model"
)

// LifecycleEvent is the data of each streamed event
type LifecycleEvent struct {
	Type      string    `json:"type"`
	Subject   string    `json:"subject"`
	PlayerID  string    `json:"player_id,omitempty"`
	Account   string    `json:"account,omitempty"`
	Region    string    `json:"region,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type broadcast struct {
	playerID string
	data     []byte
}

// Hub fans lifecycle events out to connected SSE clients
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	// Channels for managing clients
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcast
	done       chan struct{}
	closeOnce  sync.Once

	subMu sync.Mutex
	sub   *events.Subscription
}

// NewHub creates a new Hub. Call Run to start delivering.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "sse")),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcast, 256),
		done:       make(chan struct{}),
	}
}

// Attach subscribes the hub to every lifecycle event on bus
func (h *Hub) Attach(bus *events.Bus) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.sub != nil {
		return
	}
	h.sub = bus.SubscribeAll(h.onEvent, model.AllEvents...)
}

func (h *Hub) onEvent(_ context.Context, ev events.Event) {
	payload := LifecycleEvent{
		Type:      string(ev.Type),
		Subject:   ev.Subject,
		Region:    ev.Region,
		Timestamp: ev.Timestamp,
	}
	if ev.Player != nil {
		payload.PlayerID = ev.Player.ID()
		payload.Account = ev.Player.AccountName()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode lifecycle event", slog.String("error", err.Error()))
		return
	}
	h.BroadcastEvent(payload.PlayerID, string(ev.Type), string(data))
}

// Run starts the hub's event loop. It returns after Close.
func (h *Hub) Run() {
	h.logger.Info("sse hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("sse client registered",
				slog.String("player_filter", client.playerID),
				slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("sse client unregistered",
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			dropped := 0
			for client := range h.clients {
				if !client.wants(msg.playerID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					dropped++
				}
			}
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("sse message dropped - client buffer full", slog.Int("dropped", dropped))
			}

		case <-h.done:
			h.mu.Lock()
			clientCount := len(h.clients)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("sse hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

// Register adds a client to the hub. It reports false once the hub is closed.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastEvent queues an SSE event for every client following playerID.
// Clients without a player filter receive every event.
func (h *Hub) BroadcastEvent(playerID, eventName, data string) {
	select {
	case h.broadcast <- broadcast{playerID: playerID, data: formatSSEMessage(eventName, data)}:
	default:
		h.logger.Warn("sse broadcast dropped - hub buffer full")
	}
}

// Close detaches from the bus and disconnects every client
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.subMu.Lock()
		h.sub.Release()
		h.sub = nil
		h.subMu.Unlock()
		close(h.done)
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatSSEMessage formats an SSE message with event name and data
// Multi-line data is properly formatted with "data: " prefix on each line
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: " + eventName + "\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
