// Package orchestrator wires configuration, runners, groups, sequences,
// metrics, and the dashboard into one run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/randomizedcoder/go-parallel-groups/internal/config"
	"github.com/randomizedcoder/go-parallel-groups/internal/logging"
	"github.com/randomizedcoder/go-parallel-groups/internal/metrics"
	"github.com/randomizedcoder/go-parallel-groups/internal/preflight"
	"github.com/randomizedcoder/go-parallel-groups/internal/process"
	"github.com/randomizedcoder/go-parallel-groups/internal/report"
	"github.com/randomizedcoder/go-parallel-groups/internal/sequence"
	"github.com/randomizedcoder/go-parallel-groups/internal/stats"
	"github.com/randomizedcoder/go-parallel-groups/internal/tui"
)

// ErrTasksFailed is returned by Run when the run completed but at least one
// task, group, or sequence failed.
var ErrTasksFailed = errors.New("tasks failed")

// Options holds run-wide settings that are not flags.
type Options struct {
	// Version is reported in the info metric.
	Version string

	// Out receives reports and the exit summary. Defaults to os.Stdout.
	Out io.Writer
}

// Orchestrator coordinates all components for one run.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	out     io.Writer
	version string
	runID   string

	plan     config.Plan
	runner   process.Runner
	buildDir string // removed on exit when we created it

	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *metrics.Server
	stats         *stats.Aggregator
	tracker       *tracker
}

// New creates an Orchestrator. The plan is loaded here so that plan errors
// are reported before anything starts.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	plan, err := cfg.LoadPlan()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger = logging.WithRun(logger, runID)

	o := &Orchestrator{
		config:   cfg,
		logger:   logger,
		out:      out,
		version:  opts.Version,
		runID:    runID,
		plan:     plan,
		registry: prometheus.NewRegistry(),
		stats:    stats.NewAggregator(),
	}

	if err := o.setupRunner(); err != nil {
		return nil, err
	}

	o.metrics = metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
		Version: opts.Version,
		Runner:  o.runner.Name(),
		RunID:   runID,
	}, o.registry)
	if cfg.RuntimeMetrics {
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, o.registry, logger)
	}

	o.tracker = newTracker(logger, cfg.Verbose, o.metrics, o.stats)
	return o, nil
}

func (o *Orchestrator) setupRunner() error {
	switch o.config.Runner {
	case "exec":
		o.runner = process.NewExecRunner(o.config.Env)
		return nil
	case "go":
		buildDir := o.config.BuildDir
		if buildDir == "" && !o.config.PrintCmd {
			dir, err := os.MkdirTemp("", "go-parallel-groups-")
			if err != nil {
				return fmt.Errorf("failed to create build dir: %w", err)
			}
			buildDir = dir
			o.buildDir = dir
		}
		if buildDir == "" {
			buildDir = "$BUILD_DIR"
		}
		goCfg := process.DefaultGoConfig(buildDir)
		goCfg.GoPath = o.config.GoPath
		goCfg.Profile = process.Profile(o.config.Profile)
		goCfg.Probe = o.config.Probe
		goCfg.Env = o.config.Env
		goCfg.Args = o.config.Args
		o.runner = process.NewGoRunner(goCfg)
		return nil
	default:
		return fmt.Errorf("unknown runner %q", o.config.Runner)
	}
}

// Run executes the plan. It blocks until every sequence finished or ctx
// is cancelled, then prints the reports and the exit summary.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.cleanup()

	if o.config.PrintCmd {
		return o.PrintCommands()
	}

	if !o.config.SkipPreflight {
		if err := o.preflight(ctx); err != nil {
			return err
		}
	}

	if !o.config.NoLock {
		lock, err := acquireLock(o.config.ParentDir)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				o.logger.Warn("lock_release_failed", "error", err)
			}
		}()
	}

	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer o.shutdownMetrics()
	}

	o.logger.Info("run_starting",
		"runner", o.runner.Name(),
		"parent_dir", o.config.ParentDir,
		"sequences", len(o.plan),
		"tasks", o.plan.TaskCount(),
	)

	var dash *dashboard
	if o.config.TUIEnabled {
		dash = o.startDashboard()
		o.tracker.program = dash.program
	}

	spawner := process.NewSpawner(o.runner, o.logger)
	runners := newRunnerSet(spawner, o.logger, o.config, o.tracker)
	results, runErr := sequence.RunParallel(ctx, runners, o.config.ParentDir, o.plan, o.logger)

	for _, res := range results {
		if res != nil {
			o.tracker.sequenceDone(res)
		}
	}
	summary := o.stats.Snapshot()

	if dash != nil {
		dash.stop(summary.AnyFailed() || runErr != nil)
	}

	if err := o.printReports(results); err != nil {
		o.logger.Warn("report_write_failed", "error", err)
	}
	fmt.Fprint(o.out, stats.FormatExitSummary(summary, stats.SummaryConfig{
		RunID:       o.runID,
		Runner:      o.runner.Name(),
		Duration:    o.metrics.Elapsed(),
		PeakActive:  o.metrics.PeakActive(),
		MetricsAddr: o.metricsAddr(),
	}))

	if o.config.MetricsDump != "" {
		if err := metrics.DumpFile(o.config.MetricsDump, o.registry); err != nil {
			o.logger.Warn("metrics_dump_failed", "path", o.config.MetricsDump, "error", err)
		}
	}

	o.logger.Info("run_finished",
		"passed", summary.Passed,
		"failed", summary.Failed,
		"spawn_errors", summary.SpawnErrors,
		"terminated", summary.Terminated,
	)

	if runErr != nil {
		return runErr
	}
	if summary.AnyFailed() {
		return ErrTasksFailed
	}
	return nil
}

func (o *Orchestrator) preflight(ctx context.Context) error {
	opts := preflight.Options{
		Concurrent: o.plan.Concurrency(),
		ParentDir:  o.config.ParentDir,
	}
	if o.config.Runner == "go" {
		opts.GoPath = o.config.GoPath
	}

	result := preflight.RunAll(ctx, opts)
	if !result.Passed || o.config.Verbose {
		preflight.PrintResults(o.out, result)
	}
	if !result.Passed {
		return errors.New("preflight checks failed (use --skip-preflight to override)")
	}
	return nil
}

func (o *Orchestrator) printReports(results []*sequence.Result[config.Meta]) error {
	for _, res := range results {
		if res == nil {
			continue
		}
		if len(results) > 1 {
			fmt.Fprintf(o.out, "\n=== %s ===\n", res.Name)
		}
		for _, rep := range res.Reports {
			if err := report.Group(o.out, rep); err != nil {
				return err
			}
		}
		if res.StoppedBy != sequence.StopNone {
			fmt.Fprintf(o.out, "sequence %s stopped (%s), %d group(s) skipped\n", res.Name, res.StoppedBy, res.Skipped)
		}
	}
	return nil
}

// PrintCommands writes the command of every task in the plan.
func (o *Orchestrator) PrintCommands() error {
	fmt.Fprintf(o.out, "# Commands the %s runner would run:\n", o.runner.Name())
	for _, seq := range o.plan {
		fmt.Fprintf(o.out, "\n# sequence %s\n", seq.Name)
		for i, step := range seq.Steps {
			fmt.Fprintf(o.out, "# group %d (%s)\n", i, step.End)
			for _, task := range step.Tasks {
				fmt.Fprintln(o.out, o.runner.CommandString(o.config.ParentDir, task.Subdir, task.ID, task.Options))
			}
		}
	}
	return nil
}

func (o *Orchestrator) metricsAddr() string {
	if o.metricsServer == nil {
		return ""
	}
	return o.metricsServer.Addr()
}

func (o *Orchestrator) shutdownMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.metricsServer.Shutdown(ctx); err != nil {
		o.logger.Warn("metrics_server_shutdown_error", "error", err)
	}
}

func (o *Orchestrator) cleanup() {
	if o.buildDir == "" {
		return
	}
	if err := os.RemoveAll(o.buildDir); err != nil {
		o.logger.Warn("build_dir_cleanup_failed", "dir", o.buildDir, "error", err)
	}
}

// RunID returns the id of this run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Registry returns the run's metrics registry.
func (o *Orchestrator) Registry() *prometheus.Registry {
	return o.registry
}

// =============================================================================
// Dashboard
// =============================================================================

type dashboard struct {
	program *tea.Program
	done    chan struct{}
}

func (o *Orchestrator) startDashboard() *dashboard {
	model := tui.New(tui.Config{
		RunID:       o.runID,
		Runner:      o.runner.Name(),
		MetricsAddr: o.metricsAddr(),
	})
	d := &dashboard{
		program: tea.NewProgram(model, tea.WithAltScreen()),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(d.done)
		if _, err := d.program.Run(); err != nil {
			o.logger.Warn("tui_failed", "error", err)
		}
	}()
	return d
}

// stop tells the dashboard the run is over and waits for it to exit, so
// reports print on a normal screen.
func (d *dashboard) stop(failed bool) {
	tui.Send(d.program, tui.DoneMsg{Failed: failed})
	tui.SendQuit(d.program)
	<-d.done
}
