// Package metrics collects and exposes Prometheus metrics for the
// registration workflow and companion lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Spawn signal outcomes
const (
	SignalArmed       = "armed"
	SignalValidated   = "validated"
	SignalIgnored     = "ignored"
	SignalStorageFail = "storage_error"
)

// Recorder is the metrics surface used by the services
type Recorder interface {
	RecordSpawnSignal(outcome string)
	RecordCompanionSpawned()
	RecordCompanionTerminated(reason string)
	RecordRegistrationStep(step, outcome string)
	RecordStorageError(op string)
}

// Collector records metrics in Prometheus
type Collector struct {
	spawnSignals      *prometheus.CounterVec
	companionsSpawned prometheus.Counter
	companionsEnded   *prometheus.CounterVec
	companionsActive  prometheus.Gauge
	registrationSteps *prometheus.CounterVec
	storageErrors     *prometheus.CounterVec
}

// Ensure Collector implements Recorder
var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		spawnSignals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regwhelp_spawn_signals_total",
			Help: "Activity signals seen by the spawn scheduler, by outcome",
		}, []string{"outcome"}),
		companionsSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regwhelp_companions_spawned_total",
			Help: "Companions spawned",
		}),
		companionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regwhelp_companions_terminated_total",
			Help: "Companions terminated, by reason",
		}, []string{"reason"}),
		companionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regwhelp_companions_active",
			Help: "Companions currently in the world",
		}),
		registrationSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regwhelp_registration_steps_total",
			Help: "Register command and confirmation results, by step and outcome",
		}, []string{"step", "outcome"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regwhelp_storage_errors_total",
			Help: "Record store failures, by operation",
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.spawnSignals,
		c.companionsSpawned,
		c.companionsEnded,
		c.companionsActive,
		c.registrationSteps,
		c.storageErrors,
	)

	return c
}

func (c *Collector) RecordSpawnSignal(outcome string) {
	c.spawnSignals.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCompanionSpawned() {
	c.companionsSpawned.Inc()
	c.companionsActive.Inc()
}

func (c *Collector) RecordCompanionTerminated(reason string) {
	c.companionsEnded.WithLabelValues(reason).Inc()
	c.companionsActive.Dec()
}

func (c *Collector) RecordRegistrationStep(step, outcome string) {
	c.registrationSteps.WithLabelValues(step, outcome).Inc()
}

func (c *Collector) RecordStorageError(op string) {
	c.storageErrors.WithLabelValues(op).Inc()
}

// Handler returns the Prometheus scrape handler for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards all metrics
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordSpawnSignal(string)              {}
func (Nop) RecordCompanionSpawned()               {}
func (Nop) RecordCompanionTerminated(string)      {}
func (Nop) RecordRegistrationStep(string, string) {}
func (Nop) RecordStorageError(string)             {}
