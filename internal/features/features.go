// Package features holds the toggles and timings that drive the
// registration workflow and companion scheduling.
package features

import "time"

// Config is injected into the scheduler, spawner and workflow
type Config struct {
	RegistrationEnabled bool
	SpawningEnabled     bool

	SpawnDelay time.Duration
	Lifetime   time.Duration
	TickPeriod time.Duration

	// Used in the companion's welcome text
	ServerName string
	WebsiteURL string
	AccountURL string
}

// DefaultConfig returns the default feature configuration
func DefaultConfig() Config {
	return Config{
		RegistrationEnabled: true,
		SpawningEnabled:     true,
		SpawnDelay:          30 * time.Second,
		Lifetime:            10 * time.Minute,
		TickPeriod:          30 * time.Second,
		ServerName:          "the realm",
		WebsiteURL:          "https://example.com",
		AccountURL:          "https://example.com/account",
	}
}
