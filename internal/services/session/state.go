// Package session holds the transient per-player state that ties a
// registration record to its spawn timer, companion and pending
// confirmation.
package session

import (
	"sync"

	"github.com/mcoot/regwhelp/internal/dependencies/clock"
	"github.com/mcoot/regwhelp/internal/host"
	"github.com/mcoot/regwhelp/internal/model"
)

// Companion is the handle a session keeps to its active companion
type Companion interface {
	ID() string
	Terminate(reason string)
}

// State is the per-player session state. A session holds at most one
// spawn timer and at most one companion at any time.
type State struct {
	player host.Player

	mu         sync.Mutex
	record     *model.Record
	spawnTimer clock.Timer
	companion  Companion
	pending    model.PendingOperation
	closed     bool
}

// NewState creates empty state for player
func NewState(player host.Player) *State {
	return &State{player: player}
}

// Player returns the owning player
func (s *State) Player() host.Player {
	return s.player
}

// Record returns a copy of the cached record, or nil if none is loaded
func (s *State) Record() *model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

// EnsureRecord returns the cached record, calling load to fill the cache
// if it is empty. A load error leaves the cache empty.
func (s *State) EnsureRecord(load func() (*model.Record, error)) (*model.Record, error) {
	s.mu.Lock()
	if s.record != nil {
		rec := s.record.Clone()
		s.mu.Unlock()
		return rec, nil
	}
	s.mu.Unlock()

	loaded, err := load()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		s.record = loaded.Clone()
	}
	return s.record.Clone(), nil
}

// StoreRecord replaces the cached record. A cached validated flag is
// never cleared.
func (s *State) StoreRecord(rec *model.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := rec.Clone()
	if s.record != nil && s.record.Validated {
		next.Validated = true
	}
	s.record = next
}

// Validated reports whether the cached record is validated
func (s *State) Validated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record != nil && s.record.Validated
}

// ArmSpawnTimer stores the timer returned by arm, unless the session is
// closed or already has a spawn timer or companion. arm is only called
// when the timer will be kept.
func (s *State) ArmSpawnTimer(arm func() clock.Timer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.spawnTimer != nil || s.companion != nil {
		return false
	}
	s.spawnTimer = arm()
	return true
}

// ClearSpawnTimer forgets the spawn timer handle
func (s *State) ClearSpawnTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawnTimer = nil
}

// SpawnPending reports whether a spawn timer is armed
func (s *State) SpawnPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawnTimer != nil
}

// AttachCompanion records c as the session's companion. It fails if the
// session is closed or another companion is attached.
func (s *State) AttachCompanion(c Companion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.companion != nil {
		return false
	}
	s.companion = c
	return true
}

// DetachCompanion clears the companion handle if it still refers to c
func (s *State) DetachCompanion(c Companion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.companion == nil || s.companion.ID() != c.ID() {
		return false
	}
	s.companion = nil
	return true
}

// Companion returns the active companion, or nil
func (s *State) Companion() Companion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.companion
}

// SetPending stages op, replacing any earlier pending confirmation
func (s *State) SetPending(op model.PendingOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = op
}

// TakePending returns the pending confirmation with the given operation
// ID and clears it. Any other pending confirmation is left in place and
// nil is returned.
func (s *State) TakePending(id string) model.PendingOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := s.pending
	if op == nil || op.OperationID() != id {
		return nil
	}
	s.pending = nil
	return op
}

// Pending returns the pending confirmation without clearing it
func (s *State) Pending() model.PendingOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Close marks the session ended. An armed spawn timer is left to find
// the session closed when it fires.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
}

// Closed reports whether the session has ended
func (s *State) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Snapshot is a point-in-time view of a session
type Snapshot struct {
	PlayerID        string
	PlayerName      string
	AccountName     string
	RecordLoaded    bool
	Validated       bool
	SpawnPending    bool
	CompanionActive bool
	Pending         string
}

// Snapshot returns a point-in-time view of the session
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		PlayerID:        s.player.ID(),
		PlayerName:      s.player.Name(),
		AccountName:     s.player.AccountName(),
		RecordLoaded:    s.record != nil,
		SpawnPending:    s.spawnTimer != nil,
		CompanionActive: s.companion != nil,
	}
	if s.record != nil {
		snap.Validated = s.record.Validated
	}
	switch s.pending.(type) {
	case model.AwaitingAccountConfirm:
		snap.Pending = "account"
	case model.AwaitingTokenConfirm:
		snap.Pending = "token"
	}
	return snap
}
