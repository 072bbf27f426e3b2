package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mcoot/regwhelp/internal/host"
)

// MockPlayer is a mock implementation of host.Player for testing
type MockPlayer struct {
	mu sync.Mutex

	id      string
	account string
	name    string
	region  string
	inWorld bool
	active  bool

	Messages []string
	Prompts  []*MockPrompt
}

// MockPrompt is a yes/no dialog issued to a MockPlayer
type MockPrompt struct {
	Text     string
	respond  func(accepted bool)
	answered bool
}

// Ensure MockPlayer implements host.Player
var _ host.Player = (*MockPlayer)(nil)

// NewMockPlayer creates an in-world, active player
func NewMockPlayer(id, account, name string) *MockPlayer {
	return &MockPlayer{
		id:      id,
		account: account,
		name:    name,
		region:  "region-1",
		inWorld: true,
		active:  true,
	}
}

func (p *MockPlayer) ID() string          { return p.id }
func (p *MockPlayer) AccountName() string { return p.account }
func (p *MockPlayer) Name() string        { return p.name }

func (p *MockPlayer) Region() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.region
}

func (p *MockPlayer) InWorld() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inWorld
}

func (p *MockPlayer) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// SetRegion moves the player
func (p *MockPlayer) SetRegion(region string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.region = region
}

// SetInWorld sets whether the player is fully playing
func (p *MockPlayer) SetInWorld(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inWorld = v
}

// SetActive sets whether the character is present in the world
func (p *MockPlayer) SetActive(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = v
}

func (p *MockPlayer) SendMessage(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, text)
}

func (p *MockPlayer) Confirm(prompt string, respond func(accepted bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Prompts = append(p.Prompts, &MockPrompt{Text: prompt, respond: respond})
}

// LastMessage returns the most recent message, or "" if none
func (p *MockPlayer) LastMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Messages) == 0 {
		return ""
	}
	return p.Messages[len(p.Messages)-1]
}

// MessageCount returns the number of messages sent
func (p *MockPlayer) MessageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Messages)
}

// PromptCount returns the number of dialogs issued
func (p *MockPlayer) PromptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Prompts)
}

// LastPrompt returns the most recent dialog, or nil if none
func (p *MockPlayer) LastPrompt() *MockPrompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Prompts) == 0 {
		return nil
	}
	return p.Prompts[len(p.Prompts)-1]
}

// Answer answers the most recent dialog
func (p *MockPlayer) Answer(accepted bool) error {
	prompt := p.LastPrompt()
	if prompt == nil {
		return fmt.Errorf("no prompt issued")
	}
	return prompt.Answer(accepted)
}

// Answer delivers the response; a prompt can be answered once
func (m *MockPrompt) Answer(accepted bool) error {
	if m.answered {
		return fmt.Errorf("prompt %q already answered", m.Text)
	}
	m.answered = true
	m.respond(accepted)
	return nil
}

// MockEntity is a mock implementation of host.Entity for testing
type MockEntity struct {
	mu sync.Mutex

	id     string
	spec   host.CompanionSpec
	active bool

	Attacks  int
	Spells   []int
	Said     []string
	Removals int

	// OnRemove runs after Remove marks the entity inactive
	OnRemove func(e *MockEntity)
}

// Ensure MockEntity implements host.Entity
var _ host.Entity = (*MockEntity)(nil)

func (e *MockEntity) ID() string { return e.id }

// Spec returns the spec the entity was spawned with
func (e *MockEntity) Spec() host.CompanionSpec { return e.spec }

func (e *MockEntity) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SetActive overrides the entity's liveness
func (e *MockEntity) SetActive(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = v
}

func (e *MockEntity) PlayAttackAnimation(host.Player) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Attacks++
}

func (e *MockEntity) BroadcastSpellAnimation(effectID int, _ time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Spells = append(e.Spells, effectID)
}

func (e *MockEntity) SayTo(_ host.Player, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Said = append(e.Said, text)
}

// LastSaid returns the most recent line spoken, or "" if none
func (e *MockEntity) LastSaid() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Said) == 0 {
		return ""
	}
	return e.Said[len(e.Said)-1]
}

func (e *MockEntity) Remove() {
	e.mu.Lock()
	e.active = false
	e.Removals++
	hook := e.OnRemove
	e.mu.Unlock()

	if hook != nil {
		hook(e)
	}
}

// MockWorld is a mock implementation of host.World for testing
type MockWorld struct {
	mu sync.Mutex

	// SpawnErr, when set, is returned by SpawnCompanion
	SpawnErr error
	// OnRemove is copied onto every spawned entity
	OnRemove func(e *MockEntity)

	Entities []*MockEntity
}

// Ensure MockWorld implements host.World
var _ host.World = (*MockWorld)(nil)

// NewMockWorld creates a new MockWorld
func NewMockWorld() *MockWorld {
	return &MockWorld{}
}

func (w *MockWorld) SpawnCompanion(_ context.Context, spec host.CompanionSpec) (host.Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.SpawnErr != nil {
		return nil, w.SpawnErr
	}
	e := &MockEntity{
		id:       fmt.Sprintf("entity-%d", len(w.Entities)+1),
		spec:     spec,
		active:   true,
		OnRemove: w.OnRemove,
	}
	w.Entities = append(w.Entities, e)
	return e, nil
}

// SpawnCount returns the number of entities spawned
func (w *MockWorld) SpawnCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.Entities)
}

// LastEntity returns the most recently spawned entity, or nil
func (w *MockWorld) LastEntity() *MockEntity {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.Entities) == 0 {
		return nil
	}
	return w.Entities[len(w.Entities)-1]
}
