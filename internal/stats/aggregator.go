// Package stats aggregates task outcomes across all groups and sequences of
// a run and formats the exit summary.
package stats

import (
	"maps"
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// TaskSample is one collected task.
type TaskSample struct {
	Description string
	ExitCode    int
	Failed      bool
	CollectErr  bool
	Duration    time.Duration
}

// Aggregator collects task outcomes. It is safe for concurrent use because
// parallel sequences report from their own goroutines.
type Aggregator struct {
	mu sync.Mutex

	tasks         int
	passed        int
	failed        int
	collectErrors int
	spawnErrors   int
	terminated    int

	groups       int
	groupsFailed int

	sequences        int
	sequencesStopped int
	groupsSkipped    int

	exitCodes map[int]int
	patterns  map[string]int

	// TDigest is not thread-safe; guarded by mu.
	durations   *tdigest.TDigest
	maxDuration time.Duration
	slowest     string
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		exitCodes: make(map[int]int),
		patterns:  make(map[string]int),
		durations: tdigest.NewWithCompression(100),
	}
}

// RecordTask records a collected task.
func (a *Aggregator) RecordTask(s TaskSample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tasks++
	switch {
	case s.CollectErr:
		a.collectErrors++
		a.failed++
	case s.Failed:
		a.failed++
	default:
		a.passed++
	}
	if !s.CollectErr {
		a.exitCodes[s.ExitCode]++
	}

	a.durations.Add(float64(s.Duration.Nanoseconds()), 1)
	if s.Duration > a.maxDuration {
		a.maxDuration = s.Duration
		a.slowest = s.Description
	}
}

// RecordSpawnError records a task that never started.
func (a *Aggregator) RecordSpawnError() {
	a.mu.Lock()
	a.spawnErrors++
	a.mu.Unlock()
}

// RecordTerminated records a task killed by a teardown.
func (a *Aggregator) RecordTerminated() {
	a.mu.Lock()
	a.terminated++
	a.mu.Unlock()
}

// RecordGroup records a finished group.
func (a *Aggregator) RecordGroup(failed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.groups++
	if failed {
		a.groupsFailed++
	}
}

// RecordSequence records a finished sequence and how many of its groups
// never started.
func (a *Aggregator) RecordSequence(stopped bool, skipped int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sequences++
	if stopped {
		a.sequencesStopped++
	}
	a.groupsSkipped += skipped
}

// RecordPatterns merges stderr pattern counts of a failed task.
func (a *Aggregator) RecordPatterns(counts map[string]int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for p, n := range counts {
		a.patterns[p] += n
	}
}

// Summary is a snapshot of an Aggregator.
type Summary struct {
	Tasks         int
	Passed        int
	Failed        int
	CollectErrors int
	SpawnErrors   int
	Terminated    int

	Groups       int
	GroupsFailed int

	Sequences        int
	SequencesStopped int
	GroupsSkipped    int

	DurationP50 time.Duration
	DurationP95 time.Duration
	DurationP99 time.Duration
	DurationMax time.Duration
	Slowest     string

	ExitCodes      map[int]int
	StderrPatterns map[string]int
}

// Snapshot returns the current summary.
func (a *Aggregator) Snapshot() *Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := &Summary{
		Tasks:            a.tasks,
		Passed:           a.passed,
		Failed:           a.failed,
		CollectErrors:    a.collectErrors,
		SpawnErrors:      a.spawnErrors,
		Terminated:       a.terminated,
		Groups:           a.groups,
		GroupsFailed:     a.groupsFailed,
		Sequences:        a.sequences,
		SequencesStopped: a.sequencesStopped,
		GroupsSkipped:    a.groupsSkipped,
		DurationMax:      a.maxDuration,
		Slowest:          a.slowest,
		ExitCodes:        maps.Clone(a.exitCodes),
		StderrPatterns:   maps.Clone(a.patterns),
	}

	if a.tasks > 0 {
		s.DurationP50 = time.Duration(a.durations.Quantile(0.50))
		s.DurationP95 = time.Duration(a.durations.Quantile(0.95))
		s.DurationP99 = time.Duration(a.durations.Quantile(0.99))
	}

	return s
}

// AnyFailed reports whether anything in the run failed.
func (s *Summary) AnyFailed() bool {
	return s.Failed > 0 || s.SpawnErrors > 0 || s.Terminated > 0
}
