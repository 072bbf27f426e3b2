package companion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/regwhelp/internal/dependencies/mocks"
	"github.com/mcoot/regwhelp/internal/events"
	"github.com/mcoot/regwhelp/internal/features"
	"github.com/mcoot/regwhelp/internal/metrics"
	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/services/session"
	"github.com/mcoot/regwhelp/internal/testutil"
)

type CompanionSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	world   *mocks.MockWorld
	bus     *events.Bus
	player  *mocks.MockPlayer
	state   *session.State
	cfg     features.Config
	spawner *Spawner
}

func TestCompanionSuite(t *testing.T) {
	suite.Run(t, new(CompanionSuite))
}

func (s *CompanionSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.clock = mocks.NewMockClock(s.now)
	s.random = mocks.NewMockRandom()
	s.world = mocks.NewMockWorld()
	s.bus = events.NewBus(testutil.NopLogger())
	s.world.OnRemove = func(e *mocks.MockEntity) {
		s.bus.Publish(s.ctx, events.Event{Type: model.EventEntityRemoved, Subject: e.ID()})
	}
	s.player = mocks.NewMockPlayer("p1", "alice", "Alice")
	s.state = session.NewState(s.player)
	s.state.StoreRecord(model.NewRecord("alice", s.now))

	s.cfg = features.DefaultConfig()
	s.cfg.ServerName = "Freyad"
	s.cfg.WebsiteURL = "https://freyad.example"
	s.cfg.AccountURL = "https://freyad.example/account"
	s.spawner = s.newSpawner(s.cfg)
}

func (s *CompanionSuite) newSpawner(cfg features.Config) *Spawner {
	return NewSpawner(s.world, s.bus, cfg, s.clock, s.random, metrics.Nop{}, testutil.NopLogger())
}

func (s *CompanionSuite) spawn() (*Companion, *mocks.MockEntity) {
	c, err := s.spawner.Spawn(s.ctx, s.state)
	s.Require().NoError(err)
	return c, s.world.LastEntity()
}

func (s *CompanionSuite) bindAccount(ext string) {
	rec := s.state.Record()
	s.Require().NoError(rec.BindExternalAccount(ext, "#1234567890", s.now))
	s.state.StoreRecord(rec)
}

func (s *CompanionSuite) validate() {
	rec := s.state.Record()
	rec.Validated = true
	s.state.StoreRecord(rec)
}

func (s *CompanionSuite) assertTornDown(c *Companion, entity *mocks.MockEntity) {
	s.True(c.Done())
	s.Nil(s.state.Companion())
	s.Equal(0, s.clock.PendingTimers())
	s.Equal(0, s.bus.SubscriberCount(s.player.ID()))
	s.Equal(0, s.bus.SubscriberCount(entity.ID()))
}

// Spawn tests

func (s *CompanionSuite) TestSpawnCreatesPeacefulFollower() {
	c, entity := s.spawn()

	spec := entity.Spec()
	s.Equal(Name, spec.Name)
	s.Equal(Model, spec.Model)
	s.True(spec.Peaceful)
	s.Same(s.player, spec.Owner)
	s.Equal(OffsetBehind, spec.OffsetBehind)
	s.Same(c, s.state.Companion())
	s.Same(entity, c.Entity())
}

func (s *CompanionSuite) TestSpawnArmsTickAndLifetimeTimers() {
	s.spawn()

	s.Equal(2, s.clock.PendingTimers())
}

func (s *CompanionSuite) TestSpawnRefusedWhenDisabled() {
	cfg := s.cfg
	cfg.SpawningEnabled = false

	_, err := s.newSpawner(cfg).Spawn(s.ctx, s.state)
	s.ErrorIs(err, model.ErrSpawningDisabled)
	s.Equal(0, s.world.SpawnCount())
}

func (s *CompanionSuite) TestSpawnRefusedWhenAlreadyActive() {
	s.spawn()

	_, err := s.spawner.Spawn(s.ctx, s.state)
	s.ErrorIs(err, model.ErrAlreadyActive)
	s.Equal(1, s.world.SpawnCount())
}

func (s *CompanionSuite) TestSpawnRefusedWhenSessionClosed() {
	s.state.Close()

	_, err := s.spawner.Spawn(s.ctx, s.state)
	s.ErrorIs(err, model.ErrSessionEnded)
	s.Equal(0, s.world.SpawnCount())
}

func (s *CompanionSuite) TestSpawnWorldFailureClearsHandle() {
	boom := errors.New("world full")
	s.world.SpawnErr = boom

	_, err := s.spawner.Spawn(s.ctx, s.state)
	s.ErrorIs(err, boom)
	s.Nil(s.state.Companion())
	s.Equal(0, s.clock.PendingTimers())
}

// Tick tests

func (s *CompanionSuite) TestTickPlaysAttackAnimation() {
	s.random.QueueIntn(0, 0)
	_, entity := s.spawn()

	s.clock.Advance(15 * time.Second)

	s.Equal(1, entity.Attacks)
	s.Empty(entity.Spells)
	s.Empty(entity.Said)
}

func (s *CompanionSuite) TestTickBroadcastsSpell() {
	s.random.QueueIntn(0, 1)
	_, entity := s.spawn()

	s.clock.Advance(15 * time.Second)

	s.Equal([]int{SpellEffectID}, entity.Spells)
	s.Equal(0, entity.Attacks)
}

func (s *CompanionSuite) TestTickRemindsToRegister() {
	s.random.QueueIntn(0, 2, 1)
	_, entity := s.spawn()

	s.clock.Advance(15 * time.Second)

	s.Equal("Hey! You should definitely try to register on Freyad!", entity.LastSaid())
}

func (s *CompanionSuite) TestTickRemindsToRegisterAlternatePhrasing() {
	s.random.QueueIntn(0, 2, 0)
	_, entity := s.spawn()

	s.clock.Advance(15 * time.Second)

	s.Equal("I would stop following you if you registered on Freyad...", entity.LastSaid())
}

func (s *CompanionSuite) TestTickRemindsToValidate() {
	s.bindAccount("AliceWeb")
	s.random.QueueIntn(0, 2, 1)
	_, entity := s.spawn()

	s.clock.Advance(15 * time.Second)

	s.Equal("Don't forget to validate your registered account!", entity.LastSaid())
}

func (s *CompanionSuite) TestTickRemindsToValidateAlternatePhrasing() {
	s.bindAccount("AliceWeb")
	s.random.QueueIntn(0, 2, 0)
	_, entity := s.spawn()

	s.clock.Advance(15 * time.Second)

	s.Equal("I would stop following you if you validated your account...", entity.LastSaid())
}

func (s *CompanionSuite) TestTickIntervalIsPerturbedPeriod() {
	// Upper bound of the perturbation: half the period plus the full period
	s.random.QueueIntn(30000)
	_, entity := s.spawn()

	s.clock.Advance(44 * time.Second)
	s.Equal(0, entity.Attacks)

	s.clock.Advance(time.Second)
	s.Equal(1, entity.Attacks)
	s.Equal(30001, s.random.IntnCalls[0])
}

func (s *CompanionSuite) TestTickKeepsTicking() {
	_, entity := s.spawn()

	s.clock.Advance(60 * time.Second)

	s.Equal(4, entity.Attacks)
}

func (s *CompanionSuite) TestTickTerminatesWhenValidated() {
	c, entity := s.spawn()
	s.validate()

	s.clock.Advance(15 * time.Second)

	s.Equal(0, entity.Attacks)
	s.Equal(1, entity.Removals)
	s.assertTornDown(c, entity)
}

func (s *CompanionSuite) TestTickTerminatesWhenEntityInactive() {
	c, entity := s.spawn()
	entity.SetActive(false)

	s.clock.Advance(15 * time.Second)

	s.Equal(0, entity.Removals)
	s.assertTornDown(c, entity)
}

func (s *CompanionSuite) TestTickTerminatesWhenOwnerGone() {
	c, entity := s.spawn()
	s.player.SetActive(false)

	s.clock.Advance(15 * time.Second)

	s.Equal(1, entity.Removals)
	s.assertTornDown(c, entity)
}

// Lifetime tests

func (s *CompanionSuite) TestLifetimeTerminates() {
	c, entity := s.spawn()

	s.clock.Advance(s.cfg.Lifetime)

	s.Equal(1, entity.Removals)
	s.assertTornDown(c, entity)
}

// Session end and removal tests

func (s *CompanionSuite) TestOwnerSessionEndSignalsTerminate() {
	for _, typ := range model.SessionEndSignals {
		s.Run(string(typ), func() {
			s.SetupTest()
			c, entity := s.spawn()

			s.bus.Publish(s.ctx, events.Event{Type: typ, Subject: s.player.ID(), Player: s.player})

			s.Equal(1, entity.Removals)
			s.assertTornDown(c, entity)
		})
	}
}

func (s *CompanionSuite) TestEntityGoneSignalsTearDown() {
	for _, typ := range model.EntityGoneSignals {
		s.Run(string(typ), func() {
			s.SetupTest()
			c, entity := s.spawn()

			s.bus.Publish(s.ctx, events.Event{Type: typ, Subject: entity.ID()})

			s.Equal(0, entity.Removals)
			s.assertTornDown(c, entity)
		})
	}
}

func (s *CompanionSuite) TestExternalRemovalTearsDown() {
	c, entity := s.spawn()

	entity.Remove()

	s.assertTornDown(c, entity)
}

func (s *CompanionSuite) TestTerminateIsIdempotent() {
	reg := &countingRecorder{}
	spawner := NewSpawner(s.world, s.bus, s.cfg, s.clock, s.random, reg, testutil.NopLogger())
	c, err := spawner.Spawn(s.ctx, s.state)
	s.Require().NoError(err)
	entity := s.world.LastEntity()

	c.Terminate(ReasonExplicit)
	c.Terminate(ReasonExplicit)
	s.bus.Publish(s.ctx, events.Event{Type: model.EventQuit, Subject: s.player.ID()})

	s.Equal(1, entity.Removals)
	s.Equal(1, reg.terminated)
}

func (s *CompanionSuite) TestSpawnAgainAfterTermination() {
	c, _ := s.spawn()
	c.Terminate(ReasonExplicit)

	_, err := s.spawner.Spawn(s.ctx, s.state)
	s.NoError(err)
	s.Equal(2, s.world.SpawnCount())
}

// Interaction tests

func (s *CompanionSuite) interact(subject string, p *mocks.MockPlayer) {
	s.bus.Publish(s.ctx, events.Event{Type: model.EventInteract, Subject: subject, Player: p})
}

func (s *CompanionSuite) TestInteractExplainsRegistration() {
	_, entity := s.spawn()

	s.interact(entity.ID(), s.player)

	said := entity.LastSaid()
	s.Contains(said, "Hello Alice and welcome to Freyad!")
	s.Contains(said, "https://freyad.example/account")
	s.Contains(said, "/register \"Website Account Name\"")
	s.Contains(said, "/register \"Validation Token\"")
	s.Contains(said, "You haven't registered any website account!")
}

func (s *CompanionSuite) TestInteractExplainsValidation() {
	s.bindAccount("AliceWeb")
	_, entity := s.spawn()

	s.interact(entity.ID(), s.player)

	said := entity.LastSaid()
	s.Contains(said, "isn't validated")
	s.Contains(said, "AliceWeb")
	s.Contains(said, "/register \"Validation Token\"")
}

func (s *CompanionSuite) TestInteractIgnoresOtherPlayers() {
	_, entity := s.spawn()

	s.interact(entity.ID(), mocks.NewMockPlayer("p2", "bob", "Bob"))

	s.Empty(entity.Said)
}

func (s *CompanionSuite) TestInteractTerminatesWhenValidated() {
	c, entity := s.spawn()
	s.validate()

	s.interact(entity.ID(), s.player)

	s.Empty(entity.Said)
	s.assertTornDown(c, entity)
}

type countingRecorder struct {
	metrics.Nop
	terminated int
}

func (r *countingRecorder) RecordCompanionTerminated(string) {
	r.terminated++
}
