package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// stringList is a custom flag type for repeatable flags.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ", ")
}

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

// ParseFlags parses command-line flags and returns a Config.
func ParseFlags() (*Config, error) {
	return Parse(flag.CommandLine, os.Args[1:])
}

// Parse parses args with fs and returns a Config.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := DefaultConfig()
	var env, taskArgs stringList

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, `go-parallel-groups - run groups of worker processes in parallel

Usage:
  go-parallel-groups [flags] <subdir[:id[:opt,opt]]>...
  go-parallel-groups [flags] -plan plan.toml

Work:
`)
		printFlagCategory(fs, []string{"parent", "plan", "end"})

		fmt.Fprintf(out, "\nRunner:\n")
		printFlagCategory(fs, []string{"runner", "go", "profile", "build-dir", "probe", "env", "arg"})

		fmt.Fprintf(out, "\nPolling:\n")
		printFlagCategory(fs, []string{"poll-interval", "max-scan-errors"})

		fmt.Fprintf(out, "\nSafety & Diagnostics:\n")
		printFlagCategory(fs, []string{"print-cmd", "skip-preflight", "no-lock"})

		fmt.Fprintf(out, "\nObservability:\n")
		printFlagCategory(fs, []string{"metrics", "metrics-dump", "runtime-metrics", "v", "log-format", "tui"})

		fmt.Fprintf(out, `
Flag Convention:
  Single-dash flags (-runner, -end) are normal options.
  Double-dash flags (--print-cmd, --skip-preflight) are diagnostic modes.

End Policies:
  stop-all       kill every running task on the first failure
  finish-active  let running tasks finish, start nothing new
  process-all    run every task regardless of failures

Examples:
  # Build and run three feature sets of one binary, stop on first failure
  go-parallel-groups -parent ./repo crates/a:main:serde crates/a:main:json crates/b

  # Run a plan with parallel sequences
  go-parallel-groups -parent ./repo -plan ci.toml -metrics 127.0.0.1:17093

`)
	}

	// Work
	fs.StringVar(&cfg.ParentDir, "parent", cfg.ParentDir, "Parent directory that task subdirs are relative to")
	fs.StringVar(&cfg.PlanFile, "plan", cfg.PlanFile, "TOML plan file describing sequences of groups")
	fs.StringVar(&cfg.End, "end", cfg.End, `Group end policy when the plan omits one: "stop-all", "finish-active", "process-all"`)

	// Runner
	fs.StringVar(&cfg.Runner, "runner", cfg.Runner, `How tasks are run: "go" (build then run) or "exec"`)
	fs.StringVar(&cfg.GoPath, "go", cfg.GoPath, "Path to the go binary")
	fs.StringVar(&cfg.Profile, "profile", cfg.Profile, `Build profile for the go runner: "dev" or "release"`)
	fs.StringVar(&cfg.BuildDir, "build-dir", cfg.BuildDir, "Directory for built binaries (default: a temporary directory)")
	fs.BoolVar(&cfg.Probe, "probe", cfg.Probe, "Check with go list that each target is a main package before building")
	fs.Var(&env, "env", "Extra KEY=VALUE environment for every task (can repeat)")
	fs.Var(&taskArgs, "arg", "Extra argument for every binary built by the go runner (can repeat)")

	// Polling
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Sleep between scans when no task finished")
	fs.IntVar(&cfg.MaxScanErrors, "max-scan-errors", cfg.MaxScanErrors, "Consecutive scan errors before a group is aborted")

	// Safety & Diagnostics (double-dash convention)
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the command for every task and exit")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")
	fs.BoolVar(&cfg.NoLock, "no-lock", cfg.NoLock, "Do not take the run lock on the parent directory")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.StringVar(&cfg.MetricsDump, "metrics-dump", cfg.MetricsDump, "Write final metrics in text format to this file")
	fs.BoolVar(&cfg.RuntimeMetrics, "runtime-metrics", cfg.RuntimeMetrics, "Also export Go runtime and process metrics")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Show a live terminal dashboard while tasks run")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Env = env
	cfg.Args = taskArgs
	cfg.Tasks = fs.Args()

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, names []string) {
	out := fs.Output()
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				writeFlag(out, f)
				return
			}
		}
	})
}

func writeFlag(out io.Writer, f *flag.Flag) {
	fmt.Fprintf(out, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
	if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
		fmt.Fprintf(out, " (default %s)", f.DefValue)
	}
	fmt.Fprintln(out)
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	// Check if it looks like a duration
	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	// Check if numeric
	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
