// Package config provides configuration management for go-parallel-groups.
package config

import (
	"time"

	"github.com/randomizedcoder/go-parallel-groups/internal/group"
)

// Config holds all configuration options for the orchestrator.
type Config struct {
	// Work
	ParentDir string   `json:"parent_dir"`
	PlanFile  string   `json:"plan_file"`
	Tasks     []string `json:"tasks"` // positional subdir[:id[:opt,opt]]
	End       string   `json:"end"`   // default group end policy

	// Runner
	Runner   string   `json:"runner"` // go, exec
	GoPath   string   `json:"go_path"`
	Profile  string   `json:"profile"` // dev, release
	BuildDir string   `json:"build_dir"`
	Probe    bool     `json:"probe"`
	Env      []string `json:"env"`
	Args     []string `json:"args"`

	// Polling
	PollInterval  time.Duration `json:"poll_interval"`
	MaxScanErrors int           `json:"max_scan_errors"`

	// Observability
	MetricsAddr    string `json:"metrics_addr"`
	MetricsDump    string `json:"metrics_dump"`
	RuntimeMetrics bool   `json:"runtime_metrics"`
	Verbose        bool   `json:"verbose"`
	LogFormat      string `json:"log_format"` // json, text
	TUIEnabled     bool   `json:"tui"`

	// Diagnostic modes
	PrintCmd      bool `json:"print_cmd"`
	SkipPreflight bool `json:"skip_preflight"`
	NoLock        bool `json:"no_lock"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ParentDir: ".",
		End:       group.EndOnFailureStopAll.String(),

		Runner:  "go",
		GoPath:  "go",
		Profile: "dev",

		PollInterval:  group.DefaultPollInterval,
		MaxScanErrors: group.DefaultMaxScanErrors,

		MetricsAddr: "", // Disabled
		LogFormat:   "json",
	}
}
