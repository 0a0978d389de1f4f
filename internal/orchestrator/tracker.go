package orchestrator

import (
	"log/slog"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-parallel-groups/internal/config"
	"github.com/randomizedcoder/go-parallel-groups/internal/group"
	"github.com/randomizedcoder/go-parallel-groups/internal/logging"
	"github.com/randomizedcoder/go-parallel-groups/internal/metrics"
	"github.com/randomizedcoder/go-parallel-groups/internal/sequence"
	"github.com/randomizedcoder/go-parallel-groups/internal/stats"
	"github.com/randomizedcoder/go-parallel-groups/internal/tui"
)

// tracker fans group events out to metrics, stats, the dashboard and the
// log. Sequences run in parallel, so every sink must be safe for
// concurrent use.
type tracker struct {
	logger  *slog.Logger
	verbose bool
	metrics *metrics.Collector
	stats   *stats.Aggregator
	program *tea.Program // nil without -tui

	active atomic.Int64
}

func newTracker(logger *slog.Logger, verbose bool, m *metrics.Collector, agg *stats.Aggregator) *tracker {
	return &tracker{
		logger:  logger,
		verbose: verbose,
		metrics: m,
		stats:   agg,
	}
}

// callbacks returns the group callbacks for one sequence.
func (t *tracker) callbacks(seq string) group.Callbacks[config.Meta] {
	logger := t.logger.With("sequence", seq)
	return group.Callbacks[config.Meta]{
		OnSpawn: func(pid int, task group.Task[config.Meta]) {
			t.onSpawn(logger, seq, pid, task)
		},
		OnSpawnError: func(err *group.SpawnError) {
			t.onSpawnError(logger, seq, err)
		},
		OnFinish: func(r *group.Result[config.Meta]) {
			t.onFinish(logger, seq, r)
		},
		OnTerminate: func(term group.Terminated) {
			t.onTerminate(logger, seq, term)
		},
		OnModeChange: func(oldMode, newMode group.Mode) {
			t.onModeChange(logger, seq, oldMode, newMode)
		},
	}
}

func (t *tracker) onSpawn(logger *slog.Logger, seq string, pid int, task group.Task[config.Meta]) {
	t.active.Add(1)
	t.metrics.TaskSpawned()

	if t.verbose {
		logger.Debug("task_spawned", "pid", pid, "task", task.Description, "group", task.Meta.Group)
	}
	tui.Send(t.program, tui.TaskEventMsg{
		Kind:     tui.EventSpawned,
		Sequence: seq,
		PID:      pid,
		Task:     task.Description,
	})
}

func (t *tracker) onSpawnError(logger *slog.Logger, seq string, err *group.SpawnError) {
	t.metrics.SpawnFailed()
	t.stats.RecordSpawnError()

	logger.Warn("task_spawn_failed", "task", err.Description, "error", err.Err)
	tui.Send(t.program, tui.TaskEventMsg{
		Kind:     tui.EventSpawnFailed,
		Sequence: seq,
		Task:     err.Description,
		Err:      err.Err.Error(),
	})
}

func (t *tracker) onFinish(logger *slog.Logger, seq string, r *group.Result[config.Meta]) {
	t.active.Add(-1)

	exitCode, collectErr := -1, r.Output == nil
	if r.Output != nil {
		exitCode = r.Output.ExitCode
	}
	t.metrics.TaskFinished(exitCode, r.Failed, collectErr, r.Duration)
	t.stats.RecordTask(stats.TaskSample{
		Description: r.Description,
		ExitCode:    exitCode,
		Failed:      r.Failed,
		CollectErr:  collectErr,
		Duration:    r.Duration,
	})

	var errText string
	switch {
	case r.Err != nil:
		errText = r.Err.Error()
		logger.Error("task_collect_failed", "pid", r.PID, "task", r.Description, "error", r.Err)
	case r.Failed:
		logger.Warn("task_failed",
			"pid", r.PID,
			"task", r.Description,
			"exit_code", exitCode,
			"duration", r.Duration.Round(time.Millisecond).String(),
		)
		if len(r.Output.Stderr) > 0 {
			h := logging.NewStderrHandler(r.Description, logger, t.verbose)
			h.HandleOutput(r.Output.Stderr)
			t.stats.RecordPatterns(h.CountErrors())
		}
	default:
		logger.Info("task_finished",
			"pid", r.PID,
			"task", r.Description,
			"duration", r.Duration.Round(time.Millisecond).String(),
		)
	}

	tui.Send(t.program, tui.TaskEventMsg{
		Kind:     tui.EventFinished,
		Sequence: seq,
		PID:      r.PID,
		Task:     r.Description,
		ExitCode: exitCode,
		Failed:   r.Failed,
		Err:      errText,
		Duration: r.Duration,
	})
}

func (t *tracker) onTerminate(logger *slog.Logger, seq string, term group.Terminated) {
	t.active.Add(-1)
	t.metrics.TaskTerminated()
	t.stats.RecordTerminated()

	logger.Info("task_terminated", "pid", term.PID, "task", term.Description)
	tui.Send(t.program, tui.TaskEventMsg{
		Kind:     tui.EventTerminated,
		Sequence: seq,
		PID:      term.PID,
		Task:     term.Description,
	})
}

func (t *tracker) onModeChange(logger *slog.Logger, seq string, oldMode, newMode group.Mode) {
	t.metrics.ModeChanged(newMode.String())

	logger.Warn("group_mode_changed", "from", oldMode.String(), "to", newMode.String())
	tui.Send(t.program, tui.TaskEventMsg{
		Kind:     tui.EventModeChanged,
		Sequence: seq,
		Mode:     newMode.String(),
	})
}

// groupDone records a finished group report.
func (t *tracker) groupDone(report *group.Report[config.Meta]) {
	t.metrics.GroupDone(report.Mode.String(), report.ScanErrors)
	t.stats.RecordGroup(report.Failed())
}

// sequenceDone records a finished sequence.
func (t *tracker) sequenceDone(res *sequence.Result[config.Meta]) {
	stopped := res.StoppedBy != sequence.StopNone
	if stopped {
		t.metrics.SequenceStopped(res.StoppedBy.String())
	}
	t.stats.RecordSequence(stopped, res.Skipped)
}

// ActiveCount returns the number of tasks currently running.
func (t *tracker) ActiveCount() int {
	return int(t.active.Load())
}
