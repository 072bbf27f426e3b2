package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mcoot/regwhelp/internal/api"
	"github.com/mcoot/regwhelp/internal/command"
	"github.com/mcoot/regwhelp/internal/dependencies/clock"
	"github.com/mcoot/regwhelp/internal/dependencies/random"
	"github.com/mcoot/regwhelp/internal/events"
	"github.com/mcoot/regwhelp/internal/features"
	"github.com/mcoot/regwhelp/internal/gateway"
	"github.com/mcoot/regwhelp/internal/metrics"
	"github.com/mcoot/regwhelp/internal/services/companion"
	"github.com/mcoot/regwhelp/internal/services/registration"
	"github.com/mcoot/regwhelp/internal/services/session"
	"github.com/mcoot/regwhelp/internal/services/spawn"
	"github.com/mcoot/regwhelp/internal/sse"
	"github.com/mcoot/regwhelp/internal/storage"
	"github.com/mcoot/regwhelp/internal/storage/memory"
	redisstorage "github.com/mcoot/regwhelp/internal/storage/redis"
	sqlitestorage "github.com/mcoot/regwhelp/internal/storage/sqlite"
	"github.com/mcoot/regwhelp/internal/world"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// App contains all wired application components
type App struct {
	// Storage
	Store storage.RecordStore

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Host
	Bus   *events.Bus
	World *world.World

	// Services
	Sessions   *session.Manager
	Spawner    *companion.Spawner
	Scheduler  *spawn.Scheduler
	Workflow   *registration.Workflow
	Dispatcher *command.Dispatcher

	// Metrics
	Registry *prometheus.Registry
	Metrics  *metrics.Collector

	// Transport
	Gateway *gateway.Handler
	Feed    *sse.Hub
	Router  http.Handler
}

// Config holds configuration for the application factory
type Config struct {
	// Features holds the workflow toggles and timings (optional)
	// If zero value, defaults to features.DefaultConfig()
	Features features.Config
	// Gateway holds websocket connection limits (optional)
	Gateway gateway.Config
	// AdminToken guards the admin API when set
	AdminToken string
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	app := newWithDependencies(store, clock.New(), random.New(), cfg, logger)
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return app, nil
}

func newStore(cfg Config) (storage.RecordStore, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		store, err := sqlitestorage.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'sqlite'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.RecordStore, clk clock.Clock, rnd random.Random, cfg Config, logger *slog.Logger) *App {
	feat := cfg.Features
	if feat == (features.Config{}) {
		feat = features.DefaultConfig()
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	bus := events.NewBus(logger)
	w := world.New(bus, clk, logger)
	sessions := session.NewManager()

	spawner := companion.NewSpawner(w, bus, feat, clk, rnd, collector, logger)
	scheduler := spawn.NewScheduler(store, sessions, spawner, bus, feat, clk, collector, logger)
	workflow := registration.NewWorkflow(store, sessions, feat, clk, rnd, collector, logger)

	dispatcher := command.NewDispatcher()
	dispatcher.Register(command.Command{
		Name:        "register",
		Description: "Link and validate your website account",
		Handler:     workflow.HandleCommand,
	})

	gw := gateway.NewHandler(w, dispatcher, cfg.Gateway, logger)
	feed := sse.NewHub(logger)
	feed.Attach(bus)
	router := api.NewRouter(api.RouterConfig{
		Logger:     logger,
		Store:      store,
		Sessions:   sessions,
		Gatherer:   registry,
		Gateway:    gw,
		Events:     feed,
		AdminToken: cfg.AdminToken,
	})

	return &App{
		Store:      store,
		Clock:      clk,
		Random:     rnd,
		Bus:        bus,
		World:      w,
		Sessions:   sessions,
		Spawner:    spawner,
		Scheduler:  scheduler,
		Workflow:   workflow,
		Dispatcher: dispatcher,
		Registry:   registry,
		Metrics:    collector,
		Gateway:    gw,
		Feed:       feed,
		Router:     router,
	}
}

// Start begins reacting to player activity
func (a *App) Start() {
	go a.Feed.Run()
	a.Scheduler.Start()
}

// Close stops the scheduler and event feed and releases the store
func (a *App) Close() error {
	a.Scheduler.Stop()
	a.Feed.Close()
	return a.Store.Close()
}
