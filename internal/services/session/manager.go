package session

import (
	"sort"
	"sync"

	"github.com/mcoot/regwhelp/internal/host"
)

// Manager maps player IDs to their session state
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

// NewManager creates an empty Manager
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*State)}
}

// Get returns the session for player, creating it if needed
func (m *Manager) Get(player host.Player) *State {
	m.mu.RLock()
	st, ok := m.sessions[player.ID()]
	m.mu.RUnlock()
	if ok {
		return st
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.sessions[player.ID()]; ok {
		return st
	}
	st = NewState(player)
	m.sessions[player.ID()] = st
	return st
}

// Lookup returns the session for playerID if one exists
func (m *Manager) Lookup(playerID string) (*State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[playerID]
	return st, ok
}

// Release closes and forgets the session for playerID
func (m *Manager) Release(playerID string) {
	m.mu.Lock()
	st, ok := m.sessions[playerID]
	delete(m.sessions, playerID)
	m.mu.Unlock()

	if ok {
		st.Close()
	}
}

// Snapshots returns views of all sessions ordered by player name
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	states := make([]*State, 0, len(m.sessions))
	for _, st := range m.sessions {
		states = append(states, st)
	}
	m.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(states))
	for _, st := range states {
		snaps = append(snaps, st.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].PlayerName != snaps[j].PlayerName {
			return snaps[i].PlayerName < snaps[j].PlayerName
		}
		return snaps[i].PlayerID < snaps[j].PlayerID
	})
	return snaps
}
