// Package spawn schedules companion spawns from player activity.
//
// Each session moves Idle -> PendingSpawn -> Spawned -> Idle. An activity
// signal arms a single debounce timer; further signals while the timer is
// armed or a companion is out are ignored. When the timer fires the
// conditions are checked again before spawning.
package spawn

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mcoot/regwhelp/internal/dependencies/clock"
	"github.com/mcoot/regwhelp/internal/events"
	"github.com/mcoot/regwhelp/internal/features"
	"github.com/mcoot/regwhelp/internal/host"
	"github.com/mcoot/regwhelp/internal/metrics"
	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/services/companion"
	"github.com/mcoot/regwhelp/internal/services/session"
	"github.com/mcoot/regwhelp/internal/storage"
)

// Scheduler turns activity signals into debounced companion spawns
type Scheduler struct {
	store    storage.RecordStore
	sessions *session.Manager
	spawner  *companion.Spawner
	bus      *events.Bus
	cfg      features.Config
	clock    clock.Clock
	metrics  metrics.Recorder
	logger   *slog.Logger

	mu   sync.Mutex
	subs []*events.Subscription
}

// NewScheduler creates a new Scheduler. Call Start to begin listening.
func NewScheduler(
	store storage.RecordStore,
	sessions *session.Manager,
	spawner *companion.Spawner,
	bus *events.Bus,
	cfg features.Config,
	clk clock.Clock,
	rec metrics.Recorder,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		store:    store,
		sessions: sessions,
		spawner:  spawner,
		bus:      bus,
		cfg:      cfg,
		clock:    clk,
		metrics:  rec,
		logger:   logger.With(slog.String("component", "spawn-scheduler")),
	}
}

// Start subscribes to player lifecycle events
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) > 0 {
		return
	}
	s.subs = []*events.Subscription{
		s.bus.SubscribeAll(s.onActivity, model.ActivitySignals...),
		s.bus.SubscribeAll(s.onSessionGone, model.EventQuit, model.EventDeleted),
	}
}

// Stop unsubscribes from player lifecycle events. Armed timers still fire.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Release()
	}
}

func (s *Scheduler) onActivity(ctx context.Context, ev events.Event) {
	if ev.Player == nil {
		return
	}
	err := s.Signal(ctx, ev.Player)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrAlreadyActive):
		s.logger.Debug("spawn already pending or active",
			slog.String("player_id", ev.Player.ID()),
			slog.String("event", string(ev.Type)),
		)
	default:
		s.logger.Warn("activity signal skipped",
			slog.String("player_id", ev.Player.ID()),
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Scheduler) onSessionGone(_ context.Context, ev events.Event) {
	s.sessions.Release(ev.Subject)
}

// Signal handles one activity signal for player: it loads the record if
// needed and arms the spawn timer unless the record is validated or a
// spawn is already pending or active. It returns ErrAlreadyActive for an
// ignored signal and a StorageError when the record could not be loaded.
func (s *Scheduler) Signal(ctx context.Context, player host.Player) error {
	st := s.sessions.Get(player)

	rec, err := st.EnsureRecord(func() (*model.Record, error) {
		return s.loadRecord(ctx, player.AccountName())
	})
	if err != nil {
		s.metrics.RecordSpawnSignal(metrics.SignalStorageFail)
		var se *model.StorageError
		if errors.As(err, &se) {
			s.metrics.RecordStorageError(se.Op)
		}
		return err
	}
	if rec.Validated {
		s.metrics.RecordSpawnSignal(metrics.SignalValidated)
		return nil
	}

	armed := st.ArmSpawnTimer(func() clock.Timer {
		return s.clock.AfterFunc(s.cfg.SpawnDelay, func() {
			s.fire(st)
		})
	})
	if !armed {
		s.metrics.RecordSpawnSignal(metrics.SignalIgnored)
		return model.ErrAlreadyActive
	}

	s.metrics.RecordSpawnSignal(metrics.SignalArmed)
	s.logger.Debug("spawn timer armed",
		slog.String("player_id", player.ID()),
		slog.String("account", player.AccountName()),
		slog.Duration("delay", s.cfg.SpawnDelay),
	)
	return nil
}

// loadRecord finds the account's record, creating a blank one if absent
func (s *Scheduler) loadRecord(ctx context.Context, account string) (*model.Record, error) {
	rec, err := s.store.FindRecord(ctx, account)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, model.ErrRecordNotFound) {
		return nil, model.NewStorageError("find", account, err)
	}

	rec = model.NewRecord(account, s.clock.Now())
	err = s.store.CreateRecord(ctx, rec)
	if errors.Is(err, model.ErrRecordExists) {
		// Another session created it first
		rec, err = s.store.FindRecord(ctx, account)
		if err != nil {
			return nil, model.NewStorageError("find", account, err)
		}
		return rec, nil
	}
	if err != nil {
		return nil, model.NewStorageError("create", account, err)
	}

	s.logger.Info("registration record created", slog.String("account", account))
	return rec, nil
}

func (s *Scheduler) fire(st *session.State) {
	st.ClearSpawnTimer()

	player := st.Player()
	logger := s.logger.With(slog.String("player_id", player.ID()))

	switch {
	case !s.cfg.SpawningEnabled:
		logger.Debug("spawn skipped: spawning disabled")
		return
	case st.Validated():
		logger.Debug("spawn skipped: record validated")
		return
	case st.Companion() != nil:
		logger.Debug("spawn skipped: companion already active")
		return
	case st.Closed() || !player.InWorld() || !player.Active():
		logger.Debug("spawn skipped: session ended")
		return
	}

	if _, err := s.spawner.Spawn(context.Background(), st); err != nil {
		if errors.Is(err, model.ErrAlreadyActive) || errors.Is(err, model.ErrSessionEnded) {
			logger.Debug("spawn skipped", slog.String("error", err.Error()))
			return
		}
		logger.Error("spawn failed", slog.String("error", err.Error()))
	}
}
