package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExecRunner implements Runner for prebuilt executables: the task ID is an
// executable file in the task directory and the options are its arguments.
type ExecRunner struct {
	env []string
}

// NewExecRunner creates an exec runner. env is appended to the inherited
// environment of every task.
func NewExecRunner(env []string) *ExecRunner {
	return &ExecRunner{env: env}
}

// Name returns "exec".
func (r *ExecRunner) Name() string {
	return "exec"
}

// BuildCommand resolves parentDir/subdir/taskID and returns a command that
// runs it from the task directory.
func (r *ExecRunner) BuildCommand(ctx context.Context, parentDir, subdir, taskID string, options []string) (*exec.Cmd, error) {
	dir := filepath.Join(parentDir, subdir)
	path := filepath.Join(dir, taskID)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("task executable: %w", err)
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return nil, fmt.Errorf("task executable %s is not executable", path)
	}

	cmd := exec.Command(path, options...)
	cmd.Dir = dir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	return cmd, nil
}

// CommandString returns the command that would be executed.
func (r *ExecRunner) CommandString(parentDir, subdir, taskID string, options []string) string {
	dir := filepath.Join(parentDir, subdir)
	argv := append([]string{filepath.Join(dir, taskID)}, options...)
	return fmt.Sprintf("(cd %s && %s)", dir, strings.Join(argv, " "))
}
