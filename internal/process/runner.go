// Package process provides abstractions for building and running the
// external worker processes of a group.
package process

import (
	"context"
	"os/exec"
)

// Runner creates executable commands for tasks.
// This interface allows the spawner to be agnostic of how a task is built.
type Runner interface {
	// BuildCommand returns a ready-to-start command for the task in
	// parentDir/subdir. It may do slow work (compiling), but the returned
	// command must NOT be started yet.
	BuildCommand(ctx context.Context, parentDir, subdir, taskID string, options []string) (*exec.Cmd, error)

	// CommandString returns the command(s) BuildCommand would run, for
	// --print-cmd.
	CommandString(parentDir, subdir, taskID string, options []string) string

	// Name returns a human-readable name for this runner type.
	Name() string
}
