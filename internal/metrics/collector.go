// Package metrics provides Prometheus metrics for go-parallel-groups.
//
// All metrics are registered on the Registerer given to the collector, so a
// run can expose them on its own registry and dump them on exit.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "parallel_groups"

// Exit categories used for the task_exits_total metric.
const (
	ExitSuccess = "success"
	ExitError   = "error"
	ExitSignal  = "signal"
)

// Finish results used for the tasks_finished_total metric.
const (
	ResultPassed       = "passed"
	ResultFailed       = "failed"
	ResultCollectError = "collect_error"
)

// Collector manages all Prometheus metrics for a run.
type Collector struct {
	info            *prometheus.GaugeVec
	spawned         prometheus.Counter
	spawnErrors     prometheus.Counter
	finished        *prometheus.CounterVec
	exits           *prometheus.CounterVec
	terminated      prometheus.Counter
	active          prometheus.Gauge
	duration        prometheus.Histogram
	modeChanges     *prometheus.CounterVec
	groups          *prometheus.CounterVec
	scanErrors      prometheus.Counter
	sequenceStopped *prometheus.CounterVec

	mu         sync.Mutex
	activeNow  int
	peakActive int
	startTime  time.Time
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
	Runner  string
	RunID   string
}

// NewCollector creates a collector on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Information about the run (value always 1)",
		}, []string{"version", "runner", "run_id"}),

		spawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_spawned_total",
			Help:      "Tasks started successfully",
		}),

		spawnErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawn_errors_total",
			Help:      "Tasks that could not be started",
		}),

		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Collected tasks by result (passed, failed, collect_error)",
		}, []string{"result"}),

		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_exits_total",
			Help:      "Collected tasks by exit category (success, error, signal)",
		}, []string{"category"}),

		terminated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_terminated_total",
			Help:      "Tasks killed by a group teardown",
		}),

		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_active",
			Help:      "Currently running tasks",
		}),

		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time from spawn to collection",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),

		modeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_mode_changes_total",
			Help:      "Groups that left process-all, by new mode",
		}, []string{"mode"}),

		groups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_completed_total",
			Help:      "Completed groups by final mode",
		}, []string{"mode"}),

		scanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Failed completion polls",
		}),

		sequenceStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequences_stopped_total",
			Help:      "Sequences that did not run all groups, by reason",
		}, []string{"reason"}),

		startTime: time.Now(),
	}

	registry.MustRegister(
		c.info,
		c.spawned,
		c.spawnErrors,
		c.finished,
		c.exits,
		c.terminated,
		c.active,
		c.duration,
		c.modeChanges,
		c.groups,
		c.scanErrors,
		c.sequenceStopped,
	)

	c.info.WithLabelValues(cfg.Version, cfg.Runner, cfg.RunID).Set(1)
	return c
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// TaskSpawned records a started task.
func (c *Collector) TaskSpawned() {
	c.spawned.Inc()
	c.addActive(1)
}

// SpawnFailed records a task that could not start.
func (c *Collector) SpawnFailed() {
	c.spawnErrors.Inc()
}

// TaskFinished records a collected task. collectErr marks a task whose
// output could not be retrieved; exitCode is then ignored.
func (c *Collector) TaskFinished(exitCode int, failed, collectErr bool, d time.Duration) {
	c.addActive(-1)
	c.duration.Observe(d.Seconds())

	switch {
	case collectErr:
		c.finished.WithLabelValues(ResultCollectError).Inc()
		return
	case failed:
		c.finished.WithLabelValues(ResultFailed).Inc()
	default:
		c.finished.WithLabelValues(ResultPassed).Inc()
	}
	c.exits.WithLabelValues(ExitCategory(exitCode)).Inc()
}

// TaskTerminated records a task killed by a teardown.
func (c *Collector) TaskTerminated() {
	c.terminated.Inc()
	c.addActive(-1)
}

// ModeChanged records a group leaving process-all.
func (c *Collector) ModeChanged(mode string) {
	c.modeChanges.WithLabelValues(mode).Inc()
}

// GroupDone records a finished group.
func (c *Collector) GroupDone(mode string, scanErrors int) {
	c.groups.WithLabelValues(mode).Inc()
	c.scanErrors.Add(float64(scanErrors))
}

// SequenceStopped records a sequence that skipped groups.
func (c *Collector) SequenceStopped(reason string) {
	c.sequenceStopped.WithLabelValues(reason).Inc()
}

func (c *Collector) addActive(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeNow += delta
	if c.activeNow < 0 {
		c.activeNow = 0
	}
	if c.activeNow > c.peakActive {
		c.peakActive = c.activeNow
	}
	c.active.Set(float64(c.activeNow))
}

// PeakActive returns the highest number of simultaneously running tasks.
func (c *Collector) PeakActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakActive
}

// Elapsed returns the time since the collector was created.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// ExitCategory classifies an exit code. Codes above 128 are signal exits.
func ExitCategory(exitCode int) string {
	switch {
	case exitCode == 0:
		return ExitSuccess
	case exitCode > 128:
		return ExitSignal
	default:
		return ExitError
	}
}
