package world

import (
	"sync/atomic"
	"time"

	"github.com/mcoot/regwhelp/internal/host"
)

// Entity is a companion spawned into the simulated world
type Entity struct {
	id     string
	spec   host.CompanionSpec
	world  *World
	region string
	active atomic.Bool
}

// Ensure Entity implements host.Entity
var _ host.Entity = (*Entity)(nil)

func (e *Entity) ID() string { return e.id }

// Name returns the entity's display name
func (e *Entity) Name() string { return e.spec.Name }

// OwnerID returns the ID of the player the entity follows
func (e *Entity) OwnerID() string { return e.spec.Owner.ID() }

func (e *Entity) Active() bool { return e.active.Load() }

// Offset returns how far behind its owner the entity was placed
func (e *Entity) Offset() int { return e.spec.OffsetBehind }

// FollowRange returns the distance band the entity keeps to its owner
func (e *Entity) FollowRange() (lo, hi int) { return e.spec.FollowMin, e.spec.FollowMax }

func (e *Entity) PlayAttackAnimation(target host.Player) {
	e.world.deliver(target.ID(), Message{Type: MessageAttack, EntityID: e.id, From: e.spec.Name})
}

func (e *Entity) BroadcastSpellAnimation(effectID int, castTime time.Duration) {
	msg := Message{
		Type:     MessageSpell,
		EntityID: e.id,
		From:     e.spec.Name,
		EffectID: effectID,
		CastMS:   castTime.Milliseconds(),
	}
	for _, p := range e.world.playersInRegion(e.region) {
		p.send(msg)
	}
}

func (e *Entity) SayTo(target host.Player, text string) {
	e.world.deliver(target.ID(), Message{Type: MessageSay, EntityID: e.id, From: e.spec.Name, Text: text})
}

func (e *Entity) Remove() {
	e.world.removeEntity(e, false)
}
