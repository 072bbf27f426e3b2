package companion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mcoot/regwhelp/internal/dependencies/clock"
	"github.com/mcoot/regwhelp/internal/dependencies/random"
	"github.com/mcoot/regwhelp/internal/events"
	"github.com/mcoot/regwhelp/internal/features"
	"github.com/mcoot/regwhelp/internal/host"
	"github.com/mcoot/regwhelp/internal/metrics"
	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/services/session"
)

// Appearance of every companion
const (
	Name         = "Registration Whelp"
	Model        = 1200
	OffsetBehind = 50
	FollowMin    = 60
	FollowMax    = 2000
)

// Spawner creates companions and wires their lifecycle to the event bus
type Spawner struct {
	world   host.World
	bus     *events.Bus
	cfg     features.Config
	clock   clock.Clock
	random  random.Random
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewSpawner creates a new Spawner
func NewSpawner(
	world host.World,
	bus *events.Bus,
	cfg features.Config,
	clk clock.Clock,
	rnd random.Random,
	rec metrics.Recorder,
	logger *slog.Logger,
) *Spawner {
	return &Spawner{
		world:   world,
		bus:     bus,
		cfg:     cfg,
		clock:   clk,
		random:  rnd,
		metrics: rec,
		logger:  logger.With(slog.String("component", "companion-spawner")),
	}
}

// Spawn creates a companion for the session's player. It returns
// ErrSpawningDisabled when spawning is switched off and ErrAlreadyActive
// when the session already has a companion.
func (s *Spawner) Spawn(ctx context.Context, st *session.State) (*Companion, error) {
	if !s.cfg.SpawningEnabled {
		return nil, model.ErrSpawningDisabled
	}

	owner := st.Player()
	c := &Companion{
		id:      uuid.NewString(),
		state:   st,
		owner:   owner,
		cfg:     s.cfg,
		clock:   s.clock,
		random:  s.random,
		metrics: s.metrics,
	}
	c.logger = s.logger.With(
		slog.String("companion_id", c.id),
		slog.String("player_id", owner.ID()),
		slog.String("account", owner.AccountName()),
	)

	if !st.AttachCompanion(c) {
		if st.Closed() {
			return nil, model.ErrSessionEnded
		}
		return nil, model.ErrAlreadyActive
	}

	entity, err := s.world.SpawnCompanion(ctx, host.CompanionSpec{
		Owner:        owner,
		Name:         Name,
		Model:        Model,
		Peaceful:     true,
		OffsetBehind: OffsetBehind,
		FollowMin:    FollowMin,
		FollowMax:    FollowMax,
	})
	if err != nil {
		st.DetachCompanion(c)
		return nil, fmt.Errorf("spawning companion entity: %w", err)
	}

	c.mu.Lock()
	c.entity = entity
	if c.done {
		// Terminated while the entity was being created
		c.mu.Unlock()
		entity.Remove()
		return nil, model.ErrSessionEnded
	}
	c.subs = []*events.Subscription{
		s.bus.Subscribe(owner.ID(), c.onOwnerGone, model.SessionEndSignals...),
		s.bus.Subscribe(entity.ID(), c.onEntityGone, model.EntityGoneSignals...),
		s.bus.Subscribe(entity.ID(), c.onInteract, model.EventInteract),
	}
	c.lifetimeTimer = s.clock.AfterFunc(s.cfg.Lifetime, func() {
		c.Terminate(ReasonLifetime)
	})
	c.mu.Unlock()

	c.scheduleTick()

	s.metrics.RecordCompanionSpawned()
	c.logger.Info("companion spawned", slog.String("entity_id", entity.ID()))
	return c, nil
}
