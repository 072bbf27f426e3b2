package factory

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/regwhelp/internal/features"
	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/services/companion"
	"github.com/mcoot/regwhelp/internal/world"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
	cfg features.Config
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.cfg = features.DefaultConfig()
	s.app = NewTestAppWithFeatures(s.cfg)
	s.ctx = context.Background()
}

func (s *IntegrationSuite) TearDownTest() {
	s.Require().NoError(s.app.Close())
}

// restart replaces the app with one using cfg
func (s *IntegrationSuite) restart(cfg features.Config) {
	s.Require().NoError(s.app.Close())
	s.cfg = cfg
	s.app = NewTestAppWithFeatures(cfg)
}

func (s *IntegrationSuite) connect(account string) *world.Player {
	return s.app.World.Connect(s.ctx, account, strings.ToUpper(account[:1])+account[1:], "goldshire")
}

func (s *IntegrationSuite) record(account string) *model.Record {
	rec, err := s.app.Store.FindRecord(s.ctx, account)
	s.Require().NoError(err)
	return rec
}

func (s *IntegrationSuite) say(p *world.Player, line string) error {
	return s.app.Dispatcher.Dispatch(s.ctx, p, line)
}

// answer replies to the most recent dialog in the player's outbox
func (s *IntegrationSuite) answer(p *world.Player, accepted bool) []world.Message {
	msgs := Drain(p)
	dialog, ok := LastOfType(msgs, world.MessageDialog)
	s.Require().True(ok, "expected a dialog")
	s.Require().NoError(s.app.World.Answer(s.ctx, p.ID(), dialog.DialogID, accepted))
	return Drain(p)
}

var errStoreDown = errors.New("store down")

func lastText(msgs []world.Message) string {
	msg, _ := LastOfType(msgs, world.MessageSystem)
	return msg.Text
}

// bind runs the register and confirm steps for an external account
func (s *IntegrationSuite) bind(p *world.Player, external, digits string) {
	s.app.MockRandom.QueueDigits(digits)
	s.Require().NoError(s.say(p, "/register "+external))
	s.answer(p, true)
}

func (s *IntegrationSuite) TestScenarioA_NewPlayerGetsCompanion() {
	p := s.connect("anna")

	rec := s.record("anna")
	s.Equal("", rec.ExternalAccount)
	s.Equal("", rec.Token)
	s.False(rec.Validated)
	s.Empty(s.app.World.Entities(p.ID()), "companion waits for the spawn delay")

	s.app.MockClock.Advance(s.cfg.SpawnDelay)

	entities := s.app.World.Entities(p.ID())
	s.Require().Len(entities, 1)
	s.Equal(companion.Name, entities[0].Name())

	Drain(p)
	s.Require().NoError(s.app.World.Interact(s.ctx, p.ID(), entities[0].ID()))

	said, ok := LastOfType(Drain(p), world.MessageSay)
	s.Require().True(ok)
	s.Contains(said.Text, "Hello Anna and welcome to "+s.cfg.ServerName+"!")
	s.Contains(said.Text, "You haven't registered any website account!")
}

func (s *IntegrationSuite) TestScenarioB_BindExternalAccount() {
	p := s.connect("anna")
	s.app.MockRandom.QueueDigits("1234567890")

	s.Require().NoError(s.say(p, "/register MyWebAccount"))
	dialog, ok := LastOfType(Drain(p), world.MessageDialog)
	s.Require().True(ok)
	s.Equal("Confirm registration to account: MyWebAccount", dialog.Text)
	s.Require().NoError(s.app.World.Answer(s.ctx, p.ID(), dialog.DialogID, true))

	s.Equal("You registered account MyWebAccount, please visit "+s.cfg.AccountURL+" to get your validation token!",
		lastText(Drain(p)))
	rec := s.record("anna")
	s.Equal("MyWebAccount", rec.ExternalAccount)
	s.Equal("#1234567890", rec.Token)
	s.False(rec.Validated)
}

func (s *IntegrationSuite) TestScenarioB_QuotedAccountName() {
	p := s.connect("anna")
	s.bind(p, `"My Web Account"`, "1234567890")

	s.Equal("My Web Account", s.record("anna").ExternalAccount)
}

func (s *IntegrationSuite) TestScenarioC_ValidateEndsCompanion() {
	p := s.connect("anna")
	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	s.Require().Len(s.app.World.Entities(p.ID()), 1)

	s.bind(p, "MyWebAccount", "1234567890")

	s.Require().NoError(s.say(p, "/register 1234567890"))
	dialog, ok := LastOfType(Drain(p), world.MessageDialog)
	s.Require().True(ok)
	s.Equal("Confirm registration token for account: MyWebAccount", dialog.Text)
	s.Require().NoError(s.app.World.Answer(s.ctx, p.ID(), dialog.DialogID, true))

	s.Equal("Thank you, your account is successfully validated!", lastText(Drain(p)))
	s.True(s.record("anna").Validated)

	// The next liveness check ends the escort
	s.app.MockClock.Advance(s.cfg.TickPeriod)
	s.Empty(s.app.World.Entities(p.ID()))
	st, ok := s.app.Sessions.Lookup(p.ID())
	s.Require().True(ok)
	s.Nil(st.Companion())

	// Validated players never get another companion
	s.Require().NoError(s.app.World.ChangeRegion(s.ctx, p.ID(), "westfall"))
	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	s.Empty(s.app.World.Entities(p.ID()))
}

func (s *IntegrationSuite) TestScenarioC_InteractionAfterValidation() {
	p := s.connect("anna")
	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	entities := s.app.World.Entities(p.ID())
	s.Require().Len(entities, 1)

	s.bind(p, "MyWebAccount", "1234567890")
	s.Require().NoError(s.say(p, "&register #1234567890"))
	s.answer(p, true)

	s.Require().NoError(s.app.World.Interact(s.ctx, p.ID(), entities[0].ID()))

	s.Empty(s.app.World.Entities(p.ID()))
	removed, ok := LastOfType(Drain(p), world.MessageEntityRemoved)
	s.Require().True(ok)
	s.Equal(entities[0].ID(), removed.EntityID)
}

func (s *IntegrationSuite) TestScenarioD_WrongTokenRejected() {
	p := s.connect("anna")
	s.bind(p, "MyWebAccount", "1234567890")

	err := s.say(p, "/register 0000000000")
	s.ErrorIs(err, model.ErrTokenMismatch)

	msgs := Drain(p)
	s.Equal("Wrong validation token! Please double check your spelling before trying again.", lastText(msgs))
	_, dialogIssued := LastOfType(msgs, world.MessageDialog)
	s.False(dialogIssued)
	s.Zero(p.PendingDialogs())

	rec := s.record("anna")
	s.Equal("#1234567890", rec.Token)
	s.False(rec.Validated)
}

func (s *IntegrationSuite) TestScenarioE_AlreadyValidated() {
	rec := model.NewRecord("anna", s.app.Clock.Now())
	s.Require().NoError(rec.BindExternalAccount("MyWebAccount", "#1234567890", s.app.Clock.Now()))
	s.Require().NoError(rec.Validate("#1234567890", s.app.Clock.Now()))
	s.Require().NoError(s.app.Store.CreateRecord(s.ctx, rec))

	p := s.connect("anna")
	err := s.say(p, "/register AnotherName")
	s.ErrorIs(err, model.ErrAlreadyValidated)

	msgs := Drain(p)
	s.Equal(`You are already registered to "MyWebAccount", and cannot register again.`, lastText(msgs))
	_, dialogIssued := LastOfType(msgs, world.MessageDialog)
	s.False(dialogIssued)

	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	s.Empty(s.app.World.Entities(p.ID()))
}

func (s *IntegrationSuite) TestScenarioF_RegionChangesDebounced() {
	p := s.connect("anna")

	s.app.MockClock.Advance(10 * time.Second)
	s.Require().NoError(s.app.World.ChangeRegion(s.ctx, p.ID(), "westfall"))
	s.Require().NoError(s.app.World.ChangeRegion(s.ctx, p.ID(), "duskwood"))
	s.app.MockClock.Advance(s.cfg.SpawnDelay - 10*time.Second)

	s.Len(s.app.World.Entities(p.ID()), 1)

	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	s.Len(s.app.World.Entities(p.ID()), 1)
}

func (s *IntegrationSuite) TestRegionChangeReplacesCompanion() {
	p := s.connect("anna")
	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	first := s.app.World.Entities(p.ID())
	s.Require().Len(first, 1)

	s.Require().NoError(s.app.World.ChangeRegion(s.ctx, p.ID(), "westfall"))
	s.Empty(s.app.World.Entities(p.ID()))

	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	second := s.app.World.Entities(p.ID())
	s.Require().Len(second, 1)
	s.NotEqual(first[0].ID(), second[0].ID())
}

func (s *IntegrationSuite) TestDeathAndReleaseRespawns() {
	p := s.connect("anna")
	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	s.Require().Len(s.app.World.Entities(p.ID()), 1)

	s.Require().NoError(s.app.World.Kill(s.ctx, p.ID()))
	s.Require().NoError(s.app.World.Release(s.ctx, p.ID()))
	s.Empty(s.app.World.Entities(p.ID()))

	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	s.Len(s.app.World.Entities(p.ID()), 1)
}

func (s *IntegrationSuite) TestQuitBeforeSpawnCancels() {
	p := s.connect("anna")
	s.Require().NoError(s.app.World.Disconnect(s.ctx, p.ID(), true))

	_, ok := s.app.Sessions.Lookup(p.ID())
	s.False(ok, "session released on quit")

	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	s.Empty(s.app.World.Entities(p.ID()))
}

func (s *IntegrationSuite) TestLinkDeathRemovesCompanion() {
	p := s.connect("anna")
	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	s.Require().Len(s.app.World.Entities(p.ID()), 1)

	s.Require().NoError(s.app.World.Disconnect(s.ctx, p.ID(), false))

	s.Empty(s.app.World.Entities(p.ID()))
	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	s.Empty(s.app.World.Entities(p.ID()))
}

func (s *IntegrationSuite) TestLifetimeExpires() {
	p := s.connect("anna")
	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	s.Require().Len(s.app.World.Entities(p.ID()), 1)

	s.app.MockClock.Advance(s.cfg.Lifetime)

	s.Empty(s.app.World.Entities(p.ID()))
}

func (s *IntegrationSuite) TestRegistrationDisabled() {
	cfg := features.DefaultConfig()
	cfg.RegistrationEnabled = false
	s.restart(cfg)

	p := s.connect("anna")
	err := s.say(p, "/register MyWebAccount")

	s.ErrorIs(err, model.ErrRegistrationDisabled)
	s.Equal("Registration is currently disabled!", lastText(Drain(p)))
}

func (s *IntegrationSuite) TestSpawningDisabled() {
	cfg := features.DefaultConfig()
	cfg.SpawningEnabled = false
	s.restart(cfg)

	p := s.connect("anna")
	s.app.MockClock.Advance(cfg.SpawnDelay)

	s.Empty(s.app.World.Entities(p.ID()))
	// Records are still created so registration works
	s.Equal("anna", s.record("anna").AccountName)
}

func (s *IntegrationSuite) TestStorageFailureSkipsCycle() {
	s.app.MockStore.SetErrors(errStoreDown, nil, nil)

	p := s.connect("anna")
	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	s.Empty(s.app.World.Entities(p.ID()))

	// The next activity signal retries
	s.app.MockStore.SetErrors(nil, nil, nil)
	s.Require().NoError(s.app.World.LevelUp(s.ctx, p.ID()))
	s.app.MockClock.Advance(s.cfg.SpawnDelay)
	s.Len(s.app.World.Entities(p.ID()), 1)
}

func (s *IntegrationSuite) TestCancelledBindingKeepsRecord() {
	p := s.connect("anna")
	s.app.MockRandom.QueueDigits("1234567890")

	s.Require().NoError(s.say(p, "/register MyWebAccount"))
	msgs := s.answer(p, false)

	s.Equal("Account registration cancelled!", lastText(msgs))
	s.Equal("", s.record("anna").ExternalAccount)
}

func (s *IntegrationSuite) TestEarlierDialogCannotConfirmLaterAccount() {
	p := s.connect("anna")
	s.app.MockRandom.QueueDigits("2222222222")

	s.Require().NoError(s.say(p, "/register FirstAccount"))
	first, ok := LastOfType(Drain(p), world.MessageDialog)
	s.Require().True(ok)
	s.Require().NoError(s.say(p, "/register SecondAccount"))
	second, ok := LastOfType(Drain(p), world.MessageDialog)
	s.Require().True(ok)
	s.Equal("Confirm registration to account: SecondAccount", second.Text)

	s.Require().NoError(s.app.World.Answer(s.ctx, p.ID(), first.DialogID, true))
	s.Equal("Error while handling your account registration confirmation, please try again.", lastText(Drain(p)))
	s.Equal("", s.record("anna").ExternalAccount)

	s.Require().NoError(s.app.World.Answer(s.ctx, p.ID(), second.DialogID, true))
	s.Equal("You registered account SecondAccount, please visit "+s.cfg.AccountURL+" to get your validation token!",
		lastText(Drain(p)))
	rec := s.record("anna")
	s.Equal("SecondAccount", rec.ExternalAccount)
	s.Equal("#2222222222", rec.Token)
}

func (s *IntegrationSuite) TestUnknownCommand() {
	p := s.connect("anna")

	s.Error(s.say(p, "/dance"))
	s.Equal("Unknown command: dance", lastText(Drain(p)))
}

func (s *IntegrationSuite) TestEventFeedStreamsLifecycle() {
	srv := httptest.NewServer(s.app.Router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/events")
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()
	s.Equal(http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	nextEvent := func() string {
		line, err := reader.ReadString('\n')
		s.Require().NoError(err)
		for line == "\n" || strings.HasPrefix(line, "data:") {
			line, err = reader.ReadString('\n')
			s.Require().NoError(err)
		}
		return strings.TrimSpace(line)
	}
	s.Equal("event: connected", nextEvent())

	p := s.connect("anna")
	s.Require().NoError(s.app.World.LevelUp(s.ctx, p.ID()))

	s.Equal("event: entered_world", nextEvent())
	s.Equal("event: level_up", nextEvent())
}
