// Package config loads server settings from the environment and an
// optional TOML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"golang.org/x/time/rate"

	"github.com/mcoot/regwhelp/internal/features"
	"github.com/mcoot/regwhelp/internal/gateway"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// Config holds every server setting. Environment variables are read
// first; values defined in ConfigFile then take precedence.
type Config struct {
	RegistrationEnabled bool          `env:"ACCOUNT_REGISTRATION_ENABLED" envDefault:"true"`
	SpawningEnabled     bool          `env:"WHELP_SPAWNING_ENABLED" envDefault:"true"`
	SpawnDelay          time.Duration `env:"WHELP_SPAWN_DELAY" envDefault:"30s"`
	Lifetime            time.Duration `env:"WHELP_LIFETIME" envDefault:"10m"`
	TickPeriod          time.Duration `env:"WHELP_TICK_PERIOD" envDefault:"30s"`

	ServerName string `env:"SERVER_NAME" envDefault:"the realm"`
	WebsiteURL string `env:"WEBSITE_URL" envDefault:"https://example.com"`
	AccountURL string `env:"ACCOUNT_URL" envDefault:"https://example.com/account"`

	StorageType string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string `env:"REDIS_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"regwhelp.db"`

	Addr         string  `env:"ADDR" envDefault:":8080"`
	AdminToken   string  `env:"ADMIN_TOKEN"`
	CommandRate  float64 `env:"COMMAND_RATE" envDefault:"1"`
	CommandBurst int     `env:"COMMAND_BURST" envDefault:"5"`

	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	ConfigFile string `env:"CONFIG_FILE"`
}

type fileConfig struct {
	RegistrationEnabled bool          `toml:"account_registration_enabled"`
	SpawningEnabled     bool          `toml:"whelp_spawning_enabled"`
	SpawnDelay          time.Duration `toml:"whelp_spawn_delay"`
	Lifetime            time.Duration `toml:"whelp_lifetime"`
	TickPeriod          time.Duration `toml:"whelp_tick_period"`
	ServerName          string        `toml:"server_name"`
	WebsiteURL          string        `toml:"website_url"`
	AccountURL          string        `toml:"account_url"`
	StorageType         string        `toml:"storage_type"`
	RedisURL            string        `toml:"redis_url"`
	SQLitePath          string        `toml:"sqlite_path"`
	Addr                string        `toml:"addr"`
	AdminToken          string        `toml:"admin_token"`
	CommandRate         float64       `toml:"command_rate"`
	CommandBurst        int           `toml:"command_burst"`
	LogLevel            string        `toml:"log_level"`
}

// ParseEnv parses environment variables into target
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the environment, overlays CONFIG_FILE when set and
// validates the result
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.ConfigFile != "" {
		if err := cfg.applyFile(cfg.ConfigFile); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	if meta.IsDefined("account_registration_enabled") {
		c.RegistrationEnabled = raw.RegistrationEnabled
	}
	if meta.IsDefined("whelp_spawning_enabled") {
		c.SpawningEnabled = raw.SpawningEnabled
	}
	if meta.IsDefined("whelp_spawn_delay") {
		c.SpawnDelay = raw.SpawnDelay
	}
	if meta.IsDefined("whelp_lifetime") {
		c.Lifetime = raw.Lifetime
	}
	if meta.IsDefined("whelp_tick_period") {
		c.TickPeriod = raw.TickPeriod
	}
	strs := []struct {
		key   string
		value string
		dst   *string
	}{
		{"server_name", raw.ServerName, &c.ServerName},
		{"website_url", raw.WebsiteURL, &c.WebsiteURL},
		{"account_url", raw.AccountURL, &c.AccountURL},
		{"storage_type", raw.StorageType, &c.StorageType},
		{"redis_url", raw.RedisURL, &c.RedisURL},
		{"sqlite_path", raw.SQLitePath, &c.SQLitePath},
		{"addr", raw.Addr, &c.Addr},
		{"admin_token", raw.AdminToken, &c.AdminToken},
		{"log_level", raw.LogLevel, &c.LogLevel},
	}
	for _, s := range strs {
		if meta.IsDefined(s.key) {
			*s.dst = strings.TrimSpace(s.value)
		}
	}
	if meta.IsDefined("command_rate") {
		c.CommandRate = raw.CommandRate
	}
	if meta.IsDefined("command_burst") {
		c.CommandBurst = raw.CommandBurst
	}
	return nil
}

// Validate checks the settings are usable
func (c Config) Validate() error {
	switch c.StorageType {
	case StorageTypeMemory, StorageTypeSQLite:
	case StorageTypeRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL required when STORAGE_TYPE=redis")
		}
	default:
		return fmt.Errorf("invalid storage type %q: must be memory, redis or sqlite", c.StorageType)
	}
	if c.StorageType == StorageTypeSQLite && c.SQLitePath == "" {
		return errors.New("SQLITE_PATH required when STORAGE_TYPE=sqlite")
	}
	if c.SpawnDelay < 0 || c.Lifetime <= 0 || c.TickPeriod <= 0 {
		return errors.New("spawn delay must be non-negative and lifetime and tick period positive")
	}
	if c.CommandRate <= 0 || c.CommandBurst <= 0 {
		return errors.New("command rate and burst must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Features returns the workflow toggles and timings
func (c Config) Features() features.Config {
	return features.Config{
		RegistrationEnabled: c.RegistrationEnabled,
		SpawningEnabled:     c.SpawningEnabled,
		SpawnDelay:          c.SpawnDelay,
		Lifetime:            c.Lifetime,
		TickPeriod:          c.TickPeriod,
		ServerName:          c.ServerName,
		WebsiteURL:          c.WebsiteURL,
		AccountURL:          c.AccountURL,
	}
}

// Gateway returns the websocket connection limits
func (c Config) Gateway() gateway.Config {
	return gateway.Config{
		CommandRate:  rate.Limit(c.CommandRate),
		CommandBurst: c.CommandBurst,
	}
}

// Level returns the configured log level, defaulting to info
func (c Config) Level() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
