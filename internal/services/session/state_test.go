package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/regwhelp/internal/dependencies/clock"
	"github.com/mcoot/regwhelp/internal/dependencies/mocks"
	"github.com/mcoot/regwhelp/internal/model"
)

type fakeCompanion struct {
	id         string
	terminated string
}

func (f *fakeCompanion) ID() string              { return f.id }
func (f *fakeCompanion) Terminate(reason string) { f.terminated = reason }

type StateSuite struct {
	suite.Suite
	clock  *mocks.MockClock
	player *mocks.MockPlayer
	state  *State
	now    time.Time
}

func TestStateSuite(t *testing.T) {
	suite.Run(t, new(StateSuite))
}

func (s *StateSuite) SetupTest() {
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.clock = mocks.NewMockClock(s.now)
	s.player = mocks.NewMockPlayer("p1", "alice", "Alice")
	s.state = NewState(s.player)
}

func (s *StateSuite) armTimer() bool {
	return s.state.ArmSpawnTimer(func() clock.Timer {
		return s.clock.AfterFunc(time.Second, func() {})
	})
}

// Record tests

func (s *StateSuite) TestEnsureRecordLoadsOnce() {
	calls := 0
	load := func() (*model.Record, error) {
		calls++
		return model.NewRecord("alice", s.now), nil
	}

	_, err := s.state.EnsureRecord(load)
	s.Require().NoError(err)
	rec, err := s.state.EnsureRecord(load)
	s.Require().NoError(err)

	s.Equal(1, calls)
	s.Equal("alice", rec.AccountName)
}

func (s *StateSuite) TestEnsureRecordErrorLeavesCacheEmpty() {
	boom := errors.New("boom")

	_, err := s.state.EnsureRecord(func() (*model.Record, error) { return nil, boom })
	s.ErrorIs(err, boom)
	s.Nil(s.state.Record())
}

func (s *StateSuite) TestRecordReturnsCopy() {
	s.state.StoreRecord(model.NewRecord("alice", s.now))

	rec := s.state.Record()
	rec.ExternalAccount = "changed"

	s.Empty(s.state.Record().ExternalAccount)
}

func (s *StateSuite) TestStoreRecordNeverClearsValidated() {
	rec := model.NewRecord("alice", s.now)
	rec.Validated = true
	s.state.StoreRecord(rec)

	stale := model.NewRecord("alice", s.now)
	s.state.StoreRecord(stale)

	s.True(s.state.Validated())
}

// Spawn timer tests

func (s *StateSuite) TestArmSpawnTimerOnlyOnce() {
	s.True(s.armTimer())
	s.False(s.armTimer())
	s.Equal(1, s.clock.PendingTimers())
	s.True(s.state.SpawnPending())
}

func (s *StateSuite) TestArmSpawnTimerAfterClear() {
	s.Require().True(s.armTimer())
	s.state.ClearSpawnTimer()

	s.True(s.armTimer())
}

func (s *StateSuite) TestArmSpawnTimerRefusedWithCompanion() {
	s.Require().True(s.state.AttachCompanion(&fakeCompanion{id: "c1"}))

	s.False(s.armTimer())
	s.Equal(0, s.clock.PendingTimers())
}

func (s *StateSuite) TestArmSpawnTimerRefusedWhenClosed() {
	s.state.Close()

	s.False(s.armTimer())
}

func (s *StateSuite) TestConcurrentArmKeepsOneTimer() {
	var wg sync.WaitGroup
	var mu sync.Mutex
	armed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.armTimer() {
				mu.Lock()
				armed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, armed)
	s.Equal(1, s.clock.PendingTimers())
}

// Companion tests

func (s *StateSuite) TestAttachCompanionOnlyOnce() {
	s.True(s.state.AttachCompanion(&fakeCompanion{id: "c1"}))
	s.False(s.state.AttachCompanion(&fakeCompanion{id: "c2"}))
	s.Equal("c1", s.state.Companion().ID())
}

func (s *StateSuite) TestDetachCompanionIgnoresOtherCompanion() {
	s.Require().True(s.state.AttachCompanion(&fakeCompanion{id: "c1"}))

	s.False(s.state.DetachCompanion(&fakeCompanion{id: "c2"}))
	s.NotNil(s.state.Companion())

	s.True(s.state.DetachCompanion(&fakeCompanion{id: "c1"}))
	s.Nil(s.state.Companion())
}

// Pending tests

func (s *StateSuite) TestTakePendingClears() {
	s.state.SetPending(model.AwaitingAccountConfirm{ID: "op-1", ExternalAccount: "Web"})

	op := s.state.TakePending("op-1")
	s.Equal(model.AwaitingAccountConfirm{ID: "op-1", ExternalAccount: "Web"}, op)
	s.Nil(s.state.TakePending("op-1"))
}

func (s *StateSuite) TestTakePendingRequiresMatchingID() {
	s.state.SetPending(model.AwaitingAccountConfirm{ID: "op-2", ExternalAccount: "Second"})

	s.Nil(s.state.TakePending("op-1"))
	s.Nil(s.state.TakePending(""))
	s.Equal(model.AwaitingAccountConfirm{ID: "op-2", ExternalAccount: "Second"}, s.state.Pending())
}

func (s *StateSuite) TestSetPendingOverwrites() {
	s.state.SetPending(model.AwaitingAccountConfirm{ID: "op-1", ExternalAccount: "Web"})
	s.state.SetPending(model.AwaitingTokenConfirm{ID: "op-2", Token: "#1234567890"})

	s.Equal(model.AwaitingTokenConfirm{ID: "op-2", Token: "#1234567890"}, s.state.Pending())
	s.Nil(s.state.TakePending("op-1"))
}

func (s *StateSuite) TestCloseClearsPending() {
	s.state.SetPending(model.AwaitingAccountConfirm{ExternalAccount: "Web"})
	s.state.Close()

	s.True(s.state.Closed())
	s.Nil(s.state.Pending())
}

func (s *StateSuite) TestSnapshot() {
	s.state.StoreRecord(model.NewRecord("alice", s.now))
	s.state.SetPending(model.AwaitingTokenConfirm{Token: "#1234567890"})
	s.Require().True(s.armTimer())

	snap := s.state.Snapshot()
	s.Equal("p1", snap.PlayerID)
	s.Equal("alice", snap.AccountName)
	s.True(snap.RecordLoaded)
	s.False(snap.Validated)
	s.True(snap.SpawnPending)
	s.False(snap.CompanionActive)
	s.Equal("token", snap.Pending)
}
