package factory

import (
	"time"

	"github.com/mcoot/regwhelp/internal/dependencies/mocks"
	"github.com/mcoot/regwhelp/internal/features"
	"github.com/mcoot/regwhelp/internal/testutil"
	"github.com/mcoot/regwhelp/internal/world"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	MockStore  *mocks.MockRecordStore
}

// NewTestApp creates a started App with mocked dependencies and the
// default feature configuration
func NewTestApp() *TestApp {
	return NewTestAppWithFeatures(features.DefaultConfig())
}

// NewTestAppWithFeatures creates a started App with mocked dependencies
func NewTestAppWithFeatures(feat features.Config) *TestApp {
	store := mocks.NewMockRecordStore()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, mockClock, mockRandom, Config{Features: feat}, testutil.NopLogger())
	app.Start()

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		MockStore:  store,
	}
}

// Drain returns every message waiting in the player's outbox
func Drain(p *world.Player) []world.Message {
	var out []world.Message
	for {
		select {
		case msg, ok := <-p.Outbox():
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

// LastOfType returns the most recent message of typ, if any
func LastOfType(msgs []world.Message, typ string) (world.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == typ {
			return msgs[i], true
		}
	}
	return world.Message{}, false
}
