// Package companion implements the follower entity that nudges an
// unregistered player towards finishing registration.
package companion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/regwhelp/internal/dependencies/clock"
	"github.com/mcoot/regwhelp/internal/dependencies/random"
	"github.com/mcoot/regwhelp/internal/events"
	"github.com/mcoot/regwhelp/internal/features"
	"github.com/mcoot/regwhelp/internal/host"
	"github.com/mcoot/regwhelp/internal/metrics"
	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/services/session"
)

const (
	// SpellEffectID is the spell animation broadcast on a tick
	SpellEffectID = 207
	// SpellCastTime is the cast time shown with the spell animation
	SpellCastTime = 3 * time.Second
)

// Termination reasons reported in logs and metrics
const (
	ReasonValidated = "validated"
	ReasonLifetime  = "lifetime"
	ReasonInactive  = "inactive"
	ReasonOwnerGone = "owner_gone"
	ReasonExplicit  = "explicit"
)

// Companion is a live follower bound to one player's session
type Companion struct {
	id      string
	state   *session.State
	owner   host.Player
	cfg     features.Config
	clock   clock.Clock
	random  random.Random
	metrics metrics.Recorder
	logger  *slog.Logger

	mu            sync.Mutex
	entity        host.Entity
	tickTimer     clock.Timer
	lifetimeTimer clock.Timer
	subs          []*events.Subscription
	done          bool
}

// Ensure Companion can be stored on a session
var _ session.Companion = (*Companion)(nil)

func (c *Companion) ID() string {
	return c.id
}

// Owner returns the player the companion follows
func (c *Companion) Owner() host.Player {
	return c.owner
}

// Entity returns the world entity, or nil while spawning
func (c *Companion) Entity() host.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entity
}

// Done reports whether the companion has been torn down
func (c *Companion) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Terminate tears the companion down and removes its entity from the
// world. Only the first call has any effect.
func (c *Companion) Terminate(reason string) {
	if !c.teardown(reason) {
		return
	}
	if entity := c.Entity(); entity != nil && entity.Active() {
		entity.Remove()
	}
}

// teardown stops both timers, releases every subscription and clears the
// session's handle. It reports whether this call did the teardown.
func (c *Companion) teardown(reason string) bool {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return false
	}
	c.done = true
	tick, lifetime := c.tickTimer, c.lifetimeTimer
	subs := c.subs
	c.tickTimer, c.lifetimeTimer, c.subs = nil, nil, nil
	c.mu.Unlock()

	if tick != nil {
		tick.Stop()
	}
	if lifetime != nil {
		lifetime.Stop()
	}
	for _, sub := range subs {
		sub.Release()
	}
	c.state.DetachCompanion(c)

	c.metrics.RecordCompanionTerminated(reason)
	c.logger.Info("companion terminated", slog.String("reason", reason))
	return true
}

func (c *Companion) onOwnerGone(_ context.Context, ev events.Event) {
	c.Terminate(string(ev.Type))
}

func (c *Companion) onEntityGone(_ context.Context, ev events.Event) {
	c.teardown(string(ev.Type))
}

func (c *Companion) onInteract(_ context.Context, ev events.Event) {
	if ev.Player == nil || ev.Player.ID() != c.owner.ID() {
		return
	}
	if c.Done() {
		return
	}

	rec := c.state.Record()
	if rec == nil || rec.Validated {
		c.Terminate(ReasonValidated)
		return
	}

	if entity := c.Entity(); entity != nil {
		entity.SayTo(c.owner, c.explanation(rec))
	}
}

func (c *Companion) scheduleTick() {
	delay := c.nextTickDelay()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.tickTimer = c.clock.AfterFunc(delay, c.tick)
}

// nextTickDelay is the tick period perturbed by up to half in either direction
func (c *Companion) nextTickDelay() time.Duration {
	ms := c.cfg.TickPeriod.Milliseconds()
	if ms <= 1 {
		return c.cfg.TickPeriod
	}
	return time.Duration(ms/2+int64(c.random.Intn(int(ms)+1))) * time.Millisecond
}

func (c *Companion) tick() {
	entity := c.Entity()
	if c.Done() || entity == nil {
		return
	}

	rec := c.state.Record()
	switch {
	case !entity.Active():
		c.Terminate(ReasonInactive)
		return
	case c.state.Closed() || !c.owner.Active() || !c.owner.InWorld():
		c.Terminate(ReasonOwnerGone)
		return
	case rec == nil || rec.Validated:
		c.Terminate(ReasonValidated)
		return
	}

	switch c.random.Intn(3) {
	case 0:
		entity.PlayAttackAnimation(c.owner)
	case 1:
		entity.BroadcastSpellAnimation(SpellEffectID, SpellCastTime)
	default:
		entity.SayTo(c.owner, c.reminder(rec))
	}

	c.scheduleTick()
}

func (c *Companion) reminder(rec *model.Record) string {
	if !rec.HasExternalAccount() {
		if random.Bool(c.random) {
			return fmt.Sprintf("Hey! You should definitely try to register on %s!", c.cfg.ServerName)
		}
		return fmt.Sprintf("I would stop following you if you registered on %s...", c.cfg.ServerName)
	}
	if random.Bool(c.random) {
		return "Don't forget to validate your registered account!"
	}
	return "I would stop following you if you validated your account..."
}

func (c *Companion) explanation(rec *model.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s and welcome to %s!\n", c.owner.Name(), c.cfg.ServerName)
	b.WriteString("This server is meant for long term play and needs you to register on the website for easier support and other features.\n\n")
	fmt.Fprintf(&b, "Browse to %s and create an account, or log in to an existing one.\n\n", c.cfg.WebsiteURL)
	b.WriteString("Then bind your current game account to your website account using the command:\n")
	b.WriteString("/register \"Website Account Name\"\n\n")
	b.WriteString("A validation token will then be displayed on your account page:\n")
	fmt.Fprintf(&b, "%s\n\n", c.cfg.AccountURL)
	b.WriteString("Enter your validation token using the command:\n")
	b.WriteString("/register \"Validation Token\"\n\n")

	if !rec.HasExternalAccount() {
		b.WriteString("You haven't registered any website account!\n")
		b.WriteString("Please create a website account as described and use the /register command.")
		return b.String()
	}

	fmt.Fprintf(&b, "Your registered website account isn't validated! It is currently set to:\n%s\n\n", rec.ExternalAccount)
	b.WriteString("Please use the /register command to enter the validation token from your account page.\n")
	b.WriteString("If you registered the wrong website account name you can /register another one, and a new token will be created.")
	return b.String()
}
