package process

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-parallel-groups/internal/group"
)

// DefaultWaitDelay bounds how long Collect waits for output pipes to close
// after the process itself has exited (e.g. held open by a grandchild).
const DefaultWaitDelay = 5 * time.Second

// waiter tells whether a started command has exited, and reaps it.
type waiter interface {
	// ready reports, without blocking, whether the process has exited.
	// It must not reap the process.
	ready() (bool, error)

	// wait reaps the process and returns cmd.Wait's error.
	wait() error
}

// Handle is a running task process with captured stdout and stderr.
// It implements group.Handle.
type Handle struct {
	cmd    *exec.Cmd
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	waiter waiter
	logger *slog.Logger

	consumed bool
}

var _ group.Handle = (*Handle)(nil)

// Start starts cmd with stdout and stderr captured in memory, in its own
// process group.
func Start(cmd *exec.Cmd, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	return &Handle{
		cmd:    cmd,
		stdout: &stdout,
		stderr: &stderr,
		waiter: newWaiter(cmd),
		logger: logger,
	}, nil
}

// PID returns the OS process ID.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// TryPoll reports whether the process has exited, without blocking and
// without reaping it, so repeated calls keep returning true until Collect.
func (h *Handle) TryPoll() (bool, error) {
	if h.consumed {
		return true, nil
	}
	return h.waiter.ready()
}

// Collect reaps the process and returns its exit code and captured output.
// A non-zero exit is not an error; an error means the output could not be
// retrieved.
func (h *Handle) Collect() (*group.Output, error) {
	if h.consumed {
		return nil, errors.New("output already collected")
	}
	h.consumed = true

	waitErr := h.waiter.wait()
	exitCode := ExitCode(waitErr)
	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
		case errors.Is(waitErr, exec.ErrWaitDelay) && h.cmd.ProcessState != nil:
			// The task exited but something it started still holds the
			// pipes. Keep what was copied so far.
			exitCode = h.cmd.ProcessState.ExitCode()
			h.logger.Debug("task_pipes_held_open",
				"pid", h.PID(),
				"exit_code", exitCode,
			)
		default:
			return nil, waitErr
		}
	}

	return &group.Output{
		ExitCode: exitCode,
		Stdout:   h.stdout.Bytes(),
		Stderr:   h.stderr.Bytes(),
	}, nil
}

// Terminate kills the whole process group. Errors are logged only.
func (h *Handle) Terminate() {
	if h.consumed {
		return
	}
	if err := killProcessGroup(h.cmd); err != nil {
		h.logger.Warn("task_kill_failed",
			"pid", h.PID(),
			"error", err,
		)
	}
}

// Release reaps the process and drops its output.
func (h *Handle) Release() {
	if h.consumed {
		return
	}
	h.consumed = true

	if err := h.waiter.wait(); err != nil {
		h.logger.Debug("task_released",
			"pid", h.PID(),
			"exit_code", ExitCode(err),
		)
	}
	h.stdout.Reset()
	h.stderr.Reset()
}

// ExitCode extracts the exit code from a Wait() error.
// Signal exit is reported as 128 + signal number.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}

	// Unknown error, assume exit code 1
	return 1
}
