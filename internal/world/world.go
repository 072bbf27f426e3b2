// Package world is an in-process host runtime: players, regions,
// companion entities and yes/no dialogs. Lifecycle changes are published
// on the event bus in the order the host would deliver them.
package world

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mcoot/regwhelp/internal/dependencies/clock"
	"github.com/mcoot/regwhelp/internal/events"
	"github.com/mcoot/regwhelp/internal/host"
	"github.com/mcoot/regwhelp/internal/model"
)

// World holds every connected player and spawned entity
type World struct {
	bus    *events.Bus
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.RWMutex
	players  map[string]*Player
	entities map[string]*Entity
}

// Ensure World implements host.World
var _ host.World = (*World)(nil)

// New creates an empty World
func New(bus *events.Bus, clk clock.Clock, logger *slog.Logger) *World {
	return &World{
		bus:      bus,
		clock:    clk,
		logger:   logger.With(slog.String("component", "world")),
		players:  make(map[string]*Player),
		entities: make(map[string]*Entity),
	}
}

// Connect brings a character into region and publishes EventEnteredWorld
func (w *World) Connect(ctx context.Context, account, name, region string) *Player {
	p := newPlayer(account, name, region, w.clock.Now(), w.logger)

	w.mu.Lock()
	w.players[p.id] = p
	count := len(w.players)
	w.mu.Unlock()

	w.logger.Info("player entered world",
		slog.String("player_id", p.id),
		slog.String("account", account),
		slog.String("region", region),
		slog.Int("total_players", count),
	)
	p.send(Message{Type: MessageRegion, Region: region})
	w.publish(ctx, model.EventEnteredWorld, p)
	return p
}

// Disconnect removes the player. A lost connection publishes
// EventLinkDeath before EventQuit.
func (w *World) Disconnect(ctx context.Context, playerID string, graceful bool) error {
	p, err := w.player(playerID)
	if err != nil {
		return err
	}
	if !graceful {
		w.publish(ctx, model.EventLinkDeath, p)
	}
	w.publish(ctx, model.EventQuit, p)

	w.mu.Lock()
	delete(w.players, playerID)
	count := len(w.players)
	w.mu.Unlock()
	p.leave()

	w.logger.Info("player left world",
		slog.String("player_id", playerID),
		slog.Bool("graceful", graceful),
		slog.Duration("connection_duration", w.clock.Now().Sub(p.connectedAt)),
		slog.Int("total_players", count),
	)
	return nil
}

// Delete removes the player as if the character were deleted
func (w *World) Delete(ctx context.Context, playerID string) error {
	p, err := w.player(playerID)
	if err != nil {
		return err
	}
	w.publish(ctx, model.EventDeleted, p)

	w.mu.Lock()
	delete(w.players, playerID)
	w.mu.Unlock()
	p.leave()
	return nil
}

// ChangeRegion moves the player and publishes EventRegionChanged
func (w *World) ChangeRegion(ctx context.Context, playerID, region string) error {
	p, err := w.player(playerID)
	if err != nil {
		return err
	}
	p.setRegion(region)
	p.send(Message{Type: MessageRegion, Region: region})
	w.publish(ctx, model.EventRegionChanged, p)
	return nil
}

// LevelUp publishes EventLevelUp for the player
func (w *World) LevelUp(ctx context.Context, playerID string) error {
	p, err := w.player(playerID)
	if err != nil {
		return err
	}
	p.SendMessage("You have gained a level!")
	w.publish(ctx, model.EventLevelUp, p)
	return nil
}

// Kill marks the player dead until released
func (w *World) Kill(_ context.Context, playerID string) error {
	p, err := w.player(playerID)
	if err != nil {
		return err
	}
	p.setAlive(false)
	p.SendMessage("You have died.")
	return nil
}

// Release revives the player and publishes EventReleased
func (w *World) Release(ctx context.Context, playerID string) error {
	p, err := w.player(playerID)
	if err != nil {
		return err
	}
	p.setAlive(true)
	w.publish(ctx, model.EventReleased, p)
	return nil
}

// Interact publishes EventInteract from the player to the entity
func (w *World) Interact(ctx context.Context, playerID, entityID string) error {
	p, err := w.player(playerID)
	if err != nil {
		return err
	}
	w.mu.RLock()
	_, ok := w.entities[entityID]
	w.mu.RUnlock()
	if !ok {
		return model.ErrEntityNotFound
	}
	w.bus.Publish(ctx, events.Event{
		Type:      model.EventInteract,
		Timestamp: w.clock.Now(),
		Subject:   entityID,
		Player:    p,
		Region:    p.Region(),
	})
	return nil
}

// Answer delivers a dialog response. Each dialog can be answered once.
func (w *World) Answer(_ context.Context, playerID, dialogID string, accepted bool) error {
	p, err := w.player(playerID)
	if err != nil {
		return err
	}
	respond, ok := p.takeDialog(dialogID)
	if !ok {
		return fmt.Errorf("dialog %q: %w", dialogID, model.ErrStateMismatch)
	}
	respond(accepted)
	return nil
}

// Say delivers chat text to every player in the speaker's region
func (w *World) Say(_ context.Context, playerID, text string) error {
	p, err := w.player(playerID)
	if err != nil {
		return err
	}
	msg := Message{Type: MessageChat, From: p.Name(), Text: text}
	for _, other := range w.playersInRegion(p.Region()) {
		other.send(msg)
	}
	return nil
}

func (w *World) SpawnCompanion(_ context.Context, spec host.CompanionSpec) (host.Entity, error) {
	owner, err := w.player(spec.Owner.ID())
	if err != nil {
		return nil, err
	}
	e := &Entity{
		id:     uuid.NewString(),
		spec:   spec,
		world:  w,
		region: owner.Region(),
	}
	e.active.Store(true)

	w.mu.Lock()
	w.entities[e.id] = e
	w.mu.Unlock()

	owner.send(Message{
		Type:      MessageEntitySpawned,
		EntityID:  e.id,
		From:      spec.Name,
		Region:    e.region,
		Offset:    spec.OffsetBehind,
		FollowMin: spec.FollowMin,
		FollowMax: spec.FollowMax,
	})
	return e, nil
}

// RemoveEntity takes an entity out of the world
func (w *World) RemoveEntity(_ context.Context, entityID string) error {
	e, err := w.entity(entityID)
	if err != nil {
		return err
	}
	w.removeEntity(e, false)
	return nil
}

// KillEntity kills an entity; it leaves the world with EventEntityDied
func (w *World) KillEntity(_ context.Context, entityID string) error {
	e, err := w.entity(entityID)
	if err != nil {
		return err
	}
	w.removeEntity(e, true)
	return nil
}

func (w *World) removeEntity(e *Entity, died bool) {
	if !e.active.CompareAndSwap(true, false) {
		return
	}
	w.mu.Lock()
	delete(w.entities, e.id)
	w.mu.Unlock()

	w.deliver(e.OwnerID(), Message{Type: MessageEntityRemoved, EntityID: e.id, From: e.spec.Name})

	typ := model.EventEntityRemoved
	if died {
		typ = model.EventEntityDied
	}
	w.bus.Publish(context.Background(), events.Event{
		Type:      typ,
		Timestamp: w.clock.Now(),
		Subject:   e.id,
		Region:    e.region,
	})
}

// Player returns a connected player
func (w *World) Player(playerID string) (*Player, bool) {
	p, err := w.player(playerID)
	return p, err == nil
}

// Players returns connected players ordered by name
func (w *World) Players() []*Player {
	w.mu.RLock()
	out := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Entities returns the live entities following playerID
func (w *World) Entities(playerID string) []*Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []*Entity
	for _, e := range w.entities {
		if e.OwnerID() == playerID {
			out = append(out, e)
		}
	}
	return out
}

func (w *World) player(playerID string) (*Player, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return p, nil
}

func (w *World) entity(entityID string) (*Entity, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[entityID]
	if !ok {
		return nil, model.ErrEntityNotFound
	}
	return e, nil
}

func (w *World) playersInRegion(region string) []*Player {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []*Player
	for _, p := range w.players {
		if p.Region() == region {
			out = append(out, p)
		}
	}
	return out
}

func (w *World) deliver(playerID string, msg Message) {
	if p, err := w.player(playerID); err == nil {
		p.send(msg)
	}
}

func (w *World) publish(ctx context.Context, typ model.EventType, p *Player) {
	w.bus.Publish(ctx, events.Event{
		Type:      typ,
		Timestamp: w.clock.Now(),
		Subject:   p.id,
		Player:    p,
		Region:    p.Region(),
	})
}
