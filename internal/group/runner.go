package group

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultPollInterval is how long the runner sleeps between scans when
	// nothing has finished.
	DefaultPollInterval = 10 * time.Millisecond

	// DefaultMaxScanErrors is how many consecutive scan errors are tolerated
	// before a group is torn down.
	DefaultMaxScanErrors = 3
)

// Callbacks contains optional callback functions for group events. They are
// called from the coordinating goroutine and must not block.
type Callbacks[M any] struct {
	// OnSpawn is called for every task that started.
	OnSpawn func(pid int, task Task[M])

	// OnSpawnError is called for every task that could not start.
	OnSpawnError func(err *SpawnError)

	// OnFinish is called for every collected task.
	OnFinish func(r *Result[M])

	// OnTerminate is called for every task killed by a teardown.
	OnTerminate func(t Terminated)

	// OnModeChange is called when the group leaves ModeProcessAll.
	OnModeChange func(oldMode, newMode Mode)
}

// Config holds configuration for creating a new Runner.
type Config[M any] struct {
	Spawner       Spawner
	Logger        *slog.Logger
	PollInterval  time.Duration // 0 = DefaultPollInterval
	MaxScanErrors int           // 0 = DefaultMaxScanErrors
	Callbacks     Callbacks[M]
}

// Runner drives groups from spawn to completion.
type Runner[M any] struct {
	spawner       Spawner
	logger        *slog.Logger
	pollInterval  time.Duration
	maxScanErrors int
	callbacks     Callbacks[M]
}

// NewRunner creates a Runner with the given configuration.
func NewRunner[M any](cfg Config[M]) *Runner[M] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxScanErrors := cfg.MaxScanErrors
	if maxScanErrors <= 0 {
		maxScanErrors = DefaultMaxScanErrors
	}
	return &Runner[M]{
		spawner:       cfg.Spawner,
		logger:        logger,
		pollInterval:  interval,
		maxScanErrors: maxScanErrors,
		callbacks:     cfg.Callbacks,
	}
}

// Report is the aggregated outcome of one group.
type Report[M any] struct {
	// Mode is the final group mode.
	Mode Mode

	// Outputs are the collected tasks in completion order.
	Outputs []Result[M]

	// SpawnErrors holds one *SpawnError per task that did not start.
	SpawnErrors []error

	// Terminated lists tasks killed without contributing output.
	Terminated []Terminated

	// ScanErrors counts failed polls.
	ScanErrors int
}

// Failed reports whether any task failed to spawn or finished as failed.
func (r *Report[M]) Failed() bool {
	if len(r.SpawnErrors) > 0 || len(r.Terminated) > 0 {
		return true
	}
	for i := range r.Outputs {
		if r.Outputs[i].Failed {
			return true
		}
	}
	return false
}

// FailedCount returns the number of collected tasks that failed.
func (r *Report[M]) FailedCount() int {
	n := 0
	for i := range r.Outputs {
		if r.Outputs[i].Failed {
			n++
		}
	}
	return n
}

// Run spawns tasks under parentDir and polls the group until it is empty.
//
// Under ModeStopAll every remaining task is terminated and released before
// the next poll, including when the mode was already reached while
// spawning. Cancelling ctx tears the group down the same way and returns
// the partial report with ctx.Err().
func (r *Runner[M]) Run(ctx context.Context, tasks []Task[M], parentDir string, end End) (*Report[M], error) {
	r.logger.Debug("group_starting",
		"parent_dir", parentDir,
		"tasks", len(tasks),
		"end", end.String(),
	)

	g, mode, spawnErrs := Spawn(ctx, r.spawner, tasks, parentDir, end)
	report := &Report[M]{SpawnErrors: spawnErrs}

	for _, err := range spawnErrs {
		r.logger.Warn("task_spawn_failed", "error", err)
		if se, ok := err.(*SpawnError); ok && r.callbacks.OnSpawnError != nil {
			r.callbacks.OnSpawnError(se)
		}
	}
	for _, pid := range g.PIDs() {
		task, _ := g.Task(pid)
		r.logger.Info("task_spawned", "pid", pid, "task", task.Description)
		if r.callbacks.OnSpawn != nil {
			r.callbacks.OnSpawn(pid, task)
		}
	}
	if mode.HasError() {
		r.modeChanged(ModeProcessAll, mode)
	}

	scanErrors := 0
	for {
		if mode == ModeStopAll && !g.IsEmpty() {
			r.teardown(g, report, "stop_all")
		}
		if ctx.Err() != nil {
			r.teardown(g, report, "context_cancelled")
			report.Mode = mode
			return report, ctx.Err()
		}

		step := Step(g, mode, end)
		switch step.Kind {
		case StepGroupDone:
			report.Mode = mode
			r.logger.Info("group_done",
				"mode", mode.String(),
				"outputs", len(report.Outputs),
				"spawn_errors", len(report.SpawnErrors),
				"terminated", len(report.Terminated),
			)
			return report, nil

		case StepFinished:
			scanErrors = 0
			res := step.Result
			report.Outputs = append(report.Outputs, *res)
			r.logFinished(res)
			if r.callbacks.OnFinish != nil {
				r.callbacks.OnFinish(res)
			}
			if step.Mode != mode {
				r.modeChanged(mode, step.Mode)
			}
			mode = step.Mode

		case StepScanError:
			scanErrors++
			report.ScanErrors++
			r.logger.Error("group_scan_failed",
				"error", step.Err,
				"consecutive", scanErrors,
				"max", r.maxScanErrors,
			)
			if scanErrors >= r.maxScanErrors {
				r.teardown(g, report, "scan_errors")
				report.Mode = mode
				return report, fmt.Errorf("%w: %w", ErrTooManyScanErrors, step.Err)
			}
			r.sleep(ctx)

		case StepNoChange:
			scanErrors = 0
			r.sleep(ctx)
		}
	}
}

// sleep waits one poll interval or until ctx is done. No group state is
// touched while waiting.
func (r *Runner[M]) sleep(ctx context.Context) {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// teardown terminates and releases every remaining member without
// collecting output.
func (r *Runner[M]) teardown(g *Group[M], report *Report[M], reason string) {
	for _, pid := range g.PIDs() {
		h, task, _ := g.Remove(pid)
		h.Terminate()
		h.Release()

		t := Terminated{PID: pid, Description: task.Description}
		report.Terminated = append(report.Terminated, t)

		r.logger.Warn("task_terminated",
			"pid", pid,
			"task", task.Description,
			"reason", reason,
		)
		if r.callbacks.OnTerminate != nil {
			r.callbacks.OnTerminate(t)
		}
	}
}

func (r *Runner[M]) modeChanged(oldMode, newMode Mode) {
	r.logger.Warn("group_mode_changed", "from", oldMode.String(), "to", newMode.String())
	if r.callbacks.OnModeChange != nil {
		r.callbacks.OnModeChange(oldMode, newMode)
	}
}

func (r *Runner[M]) logFinished(res *Result[M]) {
	if res.Err != nil {
		r.logger.Error("task_collect_failed",
			"pid", res.PID,
			"task", res.Description,
			"error", res.Err,
		)
		return
	}

	level := slog.LevelInfo
	if res.Failed {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "task_finished",
		"pid", res.PID,
		"task", res.Description,
		"exit_code", res.Output.ExitCode,
		"stderr_bytes", len(res.Output.Stderr),
		"failed", res.Failed,
		"duration", res.Duration.String(),
	)
}
