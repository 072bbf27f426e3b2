// Package host declares the collaborators the registration workflow
// consumes from the surrounding world runtime.
package host

import (
	"context"
	"time"
)

// Player is a connected character session
type Player interface {
	// ID identifies the session; it is stable for the life of the connection
	ID() string
	AccountName() string
	Name() string
	Region() string

	// InWorld reports whether the session is fully playing
	InWorld() bool
	// Active reports whether the character object is present in the world
	Active() bool

	SendMessage(text string)

	// Confirm shows a yes/no dialog. respond is called at most once, later,
	// from whatever goroutine delivers the answer.
	Confirm(prompt string, respond func(accepted bool))
}

// Entity is a world object spawned on behalf of the workflow
type Entity interface {
	ID() string
	Active() bool

	// PlayAttackAnimation shows a harmless fumbled swing at target
	PlayAttackAnimation(target Player)
	// BroadcastSpellAnimation shows a spell cast to nearby observers
	BroadcastSpellAnimation(effectID int, castTime time.Duration)
	SayTo(target Player, text string)

	// Remove takes the entity out of the world; the world publishes
	// EventEntityRemoved for it
	Remove()
}

// CompanionSpec describes the follower entity to create
type CompanionSpec struct {
	Owner    Player
	Name     string
	Model    int
	Peaceful bool

	// OffsetBehind is the spawn distance behind the owner
	OffsetBehind int
	// FollowMin and FollowMax bound the follow distance to the owner
	FollowMin int
	FollowMax int
}

// World creates entities
type World interface {
	SpawnCompanion(ctx context.Context, spec CompanionSpec) (Entity, error)
}
