package sse

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	// Time between keepalive comments
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Client represents a connected SSE client
type Client struct {
	// playerID limits the stream to one player's events when set
	playerID    string
	send        chan []byte
	connectedAt time.Time
}

// NewClient creates a new SSE client following playerID, or every
// player when playerID is empty
func NewClient(playerID string) *Client {
	return &Client{
		playerID:    playerID,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

func (c *Client) wants(playerID string) bool {
	return c.playerID == "" || c.playerID == playerID
}

// ServeHTTP streams lifecycle events until the client disconnects or the
// hub closes. The optional player_id query parameter filters the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// The stream outlives the server's write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	client := NewClient(r.URL.Query().Get("player_id"))
	if !h.Register(client) {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer h.Unregister(client)

	_, _ = w.Write([]byte("event: connected\ndata: {\"status\":\"connected\"}\n\n"))
	if err := rc.Flush(); err != nil {
		h.logger.Warn("sse streaming unsupported", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				// Hub closed the channel
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			_ = rc.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			_ = rc.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
