// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/randomizedcoder/go-parallel-groups/internal/process"
)

// Per running task the orchestrator holds the read ends of the stdout and
// stderr pipes plus the null device for stdin.
const (
	fdsPerTask  = 3
	fdOverhead  = 64
	procPerTask = 1
	procSlack   = 50
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Options describes the run being checked.
type Options struct {
	// Concurrent is the largest number of tasks that can run at once.
	Concurrent int

	// ParentDir must exist.
	ParentDir string

	// GoPath is checked when set (go runner only).
	GoPath string
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(ctx context.Context, opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkParentDir(opts.ParentDir))
	add(checkFileDescriptors(opts.Concurrent))
	add(checkProcessLimit(opts.Concurrent))
	if opts.GoPath != "" {
		add(checkGo(ctx, opts.GoPath))
	}

	return result
}

func checkParentDir(dir string) Check {
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		return Check{Name: "parent_dir", Message: err.Error()}
	case !info.IsDir():
		return Check{Name: "parent_dir", Message: dir + " is not a directory"}
	default:
		return Check{Name: "parent_dir", Passed: true, Message: dir}
	}
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(tasks int) Check {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	required := tasks*fdsPerTask + fdOverhead
	actual := clampLimit(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d tasks)", actual, required, tasks),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
func checkProcessLimit(tasks int) Check {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NPROC, &limit); err != nil {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	required := tasks*procPerTask + procSlack
	actual := clampLimit(limit.Cur)

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// clampLimit converts an rlimit value to int; RLIM_INFINITY becomes MaxInt32.
func clampLimit(v uint64) int {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}

// checkGo verifies the go toolchain is available and working.
func checkGo(ctx context.Context, path string) Check {
	if !process.GoAvailable(path) {
		return Check{
			Name:    "go",
			Passed:  false,
			Message: fmt.Sprintf("not found at %s", path),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "version").Output()
	if err != nil {
		return Check{
			Name:    "go",
			Passed:  false,
			Message: fmt.Sprintf("%s version failed: %v", path, err),
		}
	}

	return Check{
		Name:    "go",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", path, parseGoVersion(output)),
	}
}

// parseGoVersion extracts the version from "go version go1.25.0 linux/amd64".
// Development toolchains print "go version devel go1.26-abcdef ...".
func parseGoVersion(output []byte) string {
	line, _, _ := strings.Cut(string(output), "\n")
	parts := strings.Fields(line)
	if len(parts) < 3 || parts[0] != "go" || parts[1] != "version" {
		return "unknown"
	}
	for _, p := range parts[2:] {
		if strings.HasPrefix(p, "go") {
			return p
		}
	}
	return "unknown"
}

// PrintResults prints the preflight check results.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 8192 (or edit /etc/security/limits.conf)"
	case "process_limit":
		return "ulimit -u 4096 (or edit /etc/security/limits.conf)"
	case "go":
		return "install Go (https://go.dev/dl/) or pass -go /path/to/go"
	case "parent_dir":
		return "pass an existing directory with -parent"
	default:
		return "see documentation"
	}
}
