package process

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Profile selects the build flavour of the go runner.
type Profile string

const (
	// ProfileDev builds with the toolchain defaults.
	ProfileDev Profile = "dev"

	// ProfileRelease builds with -trimpath and stripped symbols.
	ProfileRelease Profile = "release"
)

// MainBinary is the task ID of the package at the root of a subdirectory.
// Any other ID names a binary under the subdirectory's cmd/<id>.
const MainBinary = "main"

// GoConfig holds configuration for the go runner.
type GoConfig struct {
	// GoPath is the path to the go binary.
	GoPath string

	// BuildDir is where built binaries are written. Required.
	BuildDir string

	// Profile is the build flavour.
	Profile Profile

	// Probe checks with `go list` that the target is a main package before
	// building it.
	Probe bool

	// Env is appended to the environment of both the build and the task.
	Env []string

	// Args are passed to every task binary.
	Args []string
}

// DefaultGoConfig returns a GoConfig with sensible defaults.
func DefaultGoConfig(buildDir string) *GoConfig {
	return &GoConfig{
		GoPath:   "go",
		BuildDir: buildDir,
		Profile:  ProfileDev,
	}
}

// GoRunner implements Runner by building a Go binary per task, with the
// task options as build tags, and running it from the task directory.
type GoRunner struct {
	config *GoConfig
}

// NewGoRunner creates a new go runner with the given configuration.
func NewGoRunner(cfg *GoConfig) *GoRunner {
	return &GoRunner{config: cfg}
}

// Name returns "go".
func (r *GoRunner) Name() string {
	return "go"
}

// Config returns the runner configuration.
func (r *GoRunner) Config() *GoConfig {
	return r.config
}

// BuildCommand compiles the task binary and returns the command to run it.
// The build itself blocks; ctx cancels it.
func (r *GoRunner) BuildCommand(ctx context.Context, parentDir, subdir, taskID string, options []string) (*exec.Cmd, error) {
	dir := filepath.Join(parentDir, subdir)
	target := buildTarget(taskID)

	if r.config.Probe {
		if err := r.ProbeMain(ctx, dir, target, options); err != nil {
			return nil, err
		}
	}

	binary := filepath.Join(r.config.BuildDir, binaryName(subdir, taskID, options))
	build := exec.CommandContext(ctx, r.config.GoPath, r.buildArgs(binary, target, options)...)
	build.Dir = dir
	build.Env = r.env()

	if out, err := build.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("go build %s in %s: %w: %s", target, dir, err, strings.TrimSpace(string(out)))
	}

	cmd := exec.Command(binary, r.config.Args...)
	cmd.Dir = dir
	cmd.Env = r.env()
	return cmd, nil
}

// buildArgs constructs the `go build` arguments.
func (r *GoRunner) buildArgs(binary, target string, options []string) []string {
	args := []string{"build", "-o", binary}

	if r.config.Profile == ProfileRelease {
		args = append(args, "-trimpath", "-ldflags", "-s -w")
	}

	if tags := buildTags(options); tags != "" {
		args = append(args, "-tags", tags)
	}

	return append(args, target)
}

func (r *GoRunner) env() []string {
	if len(r.config.Env) == 0 {
		return nil
	}
	return append(os.Environ(), r.config.Env...)
}

// CommandString returns the build and run commands (for debugging).
func (r *GoRunner) CommandString(parentDir, subdir, taskID string, options []string) string {
	dir := filepath.Join(parentDir, subdir)
	binary := filepath.Join(r.config.BuildDir, binaryName(subdir, taskID, options))
	build := r.config.GoPath + " " + strings.Join(r.buildArgs(binary, buildTarget(taskID), options), " ")
	run := strings.TrimSpace(binary + " " + strings.Join(r.config.Args, " "))
	return fmt.Sprintf("(cd %s && %s && %s)", dir, build, run)
}

// buildTarget maps a task ID to a package path relative to the task dir.
func buildTarget(taskID string) string {
	if taskID == "" || taskID == MainBinary {
		return "."
	}
	return "./cmd/" + taskID
}

// buildTags joins options into a -tags value, dropping blanks.
func buildTags(options []string) string {
	tags := make([]string, 0, len(options))
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			tags = append(tags, o)
		}
	}
	return strings.Join(tags, ",")
}

// binaryName derives a stable, unique file name for one build
// configuration so parallel tasks never overwrite each other's binaries.
func binaryName(subdir, taskID string, options []string) string {
	sum := sha256.Sum256([]byte(subdir + "\x00" + taskID + "\x00" + strings.Join(options, "\x00")))
	id := taskID
	if id == "" {
		id = MainBinary
	}
	return id + "-" + hex.EncodeToString(sum[:6])
}
