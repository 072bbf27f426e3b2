package world

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/regwhelp/internal/host"
)

// OutboxSize is the number of undelivered messages buffered per player
const OutboxSize = 64

// Player is a connected character in the simulated world
type Player struct {
	id      string
	account string
	name    string
	logger  *slog.Logger

	connectedAt time.Time

	mu      sync.Mutex
	region  string
	inWorld bool
	alive   bool
	dialogs map[string]func(accepted bool)
	outbox  chan Message
	closed  bool
}

// Ensure Player implements host.Player
var _ host.Player = (*Player)(nil)

func newPlayer(account, name, region string, now time.Time, logger *slog.Logger) *Player {
	id := uuid.NewString()
	return &Player{
		id:          id,
		account:     account,
		name:        name,
		logger:      logger.With(slog.String("player_id", id)),
		connectedAt: now,
		region:      region,
		inWorld:     true,
		alive:       true,
		dialogs:     make(map[string]func(bool)),
		outbox:      make(chan Message, OutboxSize),
	}
}

func (p *Player) ID() string          { return p.id }
func (p *Player) AccountName() string { return p.account }
func (p *Player) Name() string        { return p.name }

func (p *Player) Region() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.region
}

func (p *Player) InWorld() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inWorld
}

// Active reports whether the character is in the world and alive
func (p *Player) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inWorld && p.alive
}

// Outbox returns the channel of messages for the player's connection. It
// is closed when the player leaves the world.
func (p *Player) Outbox() <-chan Message {
	return p.outbox
}

func (p *Player) SendMessage(text string) {
	p.send(Message{Type: MessageSystem, Text: text})
}

// Confirm issues a dialog; the answer arrives through World.Answer
func (p *Player) Confirm(prompt string, respond func(accepted bool)) {
	dialogID := uuid.NewString()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.dialogs[dialogID] = respond
	p.mu.Unlock()

	p.send(Message{Type: MessageDialog, DialogID: dialogID, Text: prompt})
}

// takeDialog removes and returns the callback for dialogID
func (p *Player) takeDialog(dialogID string) (func(bool), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	respond, ok := p.dialogs[dialogID]
	delete(p.dialogs, dialogID)
	return respond, ok
}

// PendingDialogs returns the number of unanswered dialogs
func (p *Player) PendingDialogs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dialogs)
}

func (p *Player) send(msg Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.outbox <- msg:
	default:
		p.logger.Warn("message dropped - outbox full", slog.String("type", msg.Type))
	}
}

func (p *Player) setRegion(region string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.region = region
}

func (p *Player) setAlive(alive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = alive
}

// leave takes the player out of the world and closes the outbox
func (p *Player) leave() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.inWorld = false
	p.closed = true
	p.dialogs = make(map[string]func(bool))
	close(p.outbox)
}
