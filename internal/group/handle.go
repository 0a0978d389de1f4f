package group

import "context"

// Handle owns one live external process.
//
// The group calls TryPoll from a single goroutine. Collect and Release are
// each called at most once, and never both.
type Handle interface {
	// PID returns the OS process identifier.
	PID() int

	// TryPoll reports whether the process has finished, without blocking.
	// A non-zero exit is still "finished"; an error means the wait
	// primitive itself failed. Once true, it stays true until collected.
	TryPoll() (bool, error)

	// Collect waits for the process and returns its output. It consumes
	// the handle.
	Collect() (*Output, error)

	// Terminate kills the process. Failures are logged, not returned.
	Terminate()

	// Release reaps the process and discards its output.
	Release()
}

// Spawner starts one task. It owns all build, resolve and launch mechanics.
type Spawner interface {
	Spawn(ctx context.Context, parentDir, subdir, taskID string, options []string) (Handle, error)
}

// SpawnerFunc adapts a function to the Spawner interface.
type SpawnerFunc func(ctx context.Context, parentDir, subdir, taskID string, options []string) (Handle, error)

// Spawn calls f.
func (f SpawnerFunc) Spawn(ctx context.Context, parentDir, subdir, taskID string, options []string) (Handle, error) {
	return f(ctx, parentDir, subdir, taskID, options)
}
