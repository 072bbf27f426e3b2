// Package gateway connects players to the world over websockets.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mcoot/regwhelp/internal/command"
	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/world"
)

// Client message types
const (
	ClientChat     = "chat"
	ClientAnswer   = "answer"
	ClientInteract = "interact"
	ClientRegion   = "region"
	ClientLevelUp  = "level_up"
	ClientDie      = "die"
	ClientRelease  = "release"
	ClientQuit     = "quit"
)

const (
	writeWait     = 10 * time.Second
	defaultRegion = "start"
)

// ClientMessage is sent by a connected player
type ClientMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	DialogID string `json:"dialog_id,omitempty"`
	Accepted bool   `json:"accepted,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
	Region   string `json:"region,omitempty"`
}

// Config holds gateway limits
type Config struct {
	// CommandRate and CommandBurst bound messages per connection
	CommandRate  rate.Limit
	CommandBurst int
}

// DefaultConfig returns the default gateway configuration
func DefaultConfig() Config {
	return Config{
		CommandRate:  rate.Limit(1),
		CommandBurst: 5,
	}
}

// Handler upgrades HTTP requests to player connections
type Handler struct {
	world      *world.World
	dispatcher *command.Dispatcher
	cfg        Config
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a new websocket Handler
func NewHandler(w *world.World, dispatcher *command.Dispatcher, cfg Config, logger *slog.Logger) *Handler {
	if cfg.CommandRate == 0 {
		cfg.CommandRate = DefaultConfig().CommandRate
	}
	if cfg.CommandBurst == 0 {
		cfg.CommandBurst = DefaultConfig().CommandBurst
	}
	return &Handler{
		world:      w,
		dispatcher: dispatcher,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With(slog.String("component", "gateway")),
	}
}

// ServeHTTP connects a character. The query carries account, and
// optionally name and region.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	account := q.Get("account")
	if account == "" {
		http.Error(w, "missing account", http.StatusBadRequest)
		return
	}
	name := q.Get("name")
	if name == "" {
		name = account
	}
	region := q.Get("region")
	if region == "" {
		region = defaultRegion
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("account", account),
			slog.String("error", err.Error()),
		)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx := r.Context()
	player := h.world.Connect(ctx, account, name, region)
	logger := h.logger.With(slog.String("player_id", player.ID()), slog.String("account", account))

	writerDone := make(chan struct{})
	go h.writeLoop(conn, player, logger, writerDone)

	graceful := h.readLoop(ctx, conn, player, logger)
	if err := h.world.Disconnect(ctx, player.ID(), graceful); err != nil && !errors.Is(err, model.ErrPlayerNotFound) {
		logger.Warn("disconnect failed", slog.String("error", err.Error()))
	}
	<-writerDone
}

// writeLoop forwards the player's outbox until it is closed
func (h *Handler) writeLoop(conn *websocket.Conn, player *world.Player, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)
	for msg := range player.Outbox() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Debug("websocket write failed", slog.String("error", err.Error()))
			// Keep draining so senders never block on a dead connection
			continue
		}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
}

// readLoop handles client messages until the connection ends. It reports
// whether the player quit on purpose.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, player *world.Player, logger *slog.Logger) bool {
	limiter := rate.NewLimiter(h.cfg.CommandRate, h.cfg.CommandBurst)
	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return true
			}
			logger.Debug("websocket read ended", slog.String("error", err.Error()))
			return false
		}

		if msg.Type == ClientQuit {
			return true
		}

		if !limiter.Allow() {
			player.SendMessage("You are doing that too fast, slow down.")
			logger.Warn("rate limit exceeded", slog.String("type", msg.Type))
			continue
		}

		if err := h.handle(ctx, player, msg); err != nil {
			logger.Debug("client message rejected",
				slog.String("type", msg.Type),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (h *Handler) handle(ctx context.Context, player *world.Player, msg ClientMessage) error {
	id := player.ID()
	switch msg.Type {
	case ClientChat:
		if command.IsCommand(msg.Text) {
			return h.dispatcher.Dispatch(ctx, player, msg.Text)
		}
		return h.world.Say(ctx, id, msg.Text)
	case ClientAnswer:
		return h.world.Answer(ctx, id, msg.DialogID, msg.Accepted)
	case ClientInteract:
		return h.world.Interact(ctx, id, msg.EntityID)
	case ClientRegion:
		if msg.Region == "" {
			return errors.New("missing region")
		}
		return h.world.ChangeRegion(ctx, id, msg.Region)
	case ClientLevelUp:
		return h.world.LevelUp(ctx, id)
	case ClientDie:
		return h.world.Kill(ctx, id)
	case ClientRelease:
		return h.world.Release(ctx, id)
	default:
		player.SendMessage("Unknown message type: " + msg.Type)
		return errors.New("unknown message type")
	}
}
