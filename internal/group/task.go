// Package group implements the life cycle of a group of parallel worker
// processes: spawning them, polling for completion from a single
// coordinating goroutine, classifying each completion, and applying the
// group's end policy when a task fails.
package group

import "time"

// Task describes one worker to launch. Tasks are created by the caller
// before a group starts and are never modified by this package.
type Task[M any] struct {
	// Subdir is the task's directory, relative to the group's parent directory.
	Subdir string

	// ID identifies the binary or task to run within Subdir.
	ID string

	// Options are passed to the spawner as-is (feature flags, build tags, args).
	Options []string

	// Description is a free-form label used in logs and reports.
	Description string

	// Meta is caller-defined and opaque to this package.
	Meta M
}

// Output is what a finished process left behind.
type Output struct {
	// ExitCode is the process exit code. A process killed by a signal
	// reports 128 + signal number.
	ExitCode int

	Stdout []byte
	Stderr []byte
}

// Success reports whether the process exited with code 0.
func (o *Output) Success() bool {
	return o != nil && o.ExitCode == 0
}

// TaskFailed classifies a completion. A task fails when its output could not
// be collected, when it exited non-zero, or when it wrote anything to stderr
// (warnings count, even with exit code 0).
func TaskFailed(out *Output, err error) bool {
	if err != nil || out == nil {
		return true
	}
	return out.ExitCode != 0 || len(out.Stderr) > 0
}

// Result is one finished task, paired with the description and metadata of
// the task that produced it.
type Result[M any] struct {
	PID         int
	Task        Task[M]
	Description string
	Meta        M

	// Output is nil when collection failed; Err is then set.
	Output *Output
	Err    error

	Failed   bool
	Duration time.Duration
}

// Terminated records a task that was killed during a StopAll teardown.
// Its output is discarded.
type Terminated struct {
	PID         int
	Description string
}
