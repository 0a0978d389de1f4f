package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/randomizedcoder/go-parallel-groups/internal/group"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	// Work comes from exactly one place
	switch {
	case cfg.PlanFile == "" && len(cfg.Tasks) == 0:
		errs = append(errs, ValidationError{
			Field:   "tasks",
			Message: "give at least one task or a -plan file",
		})
	case cfg.PlanFile != "" && len(cfg.Tasks) > 0:
		errs = append(errs, ValidationError{
			Field:   "tasks",
			Message: "positional tasks cannot be combined with -plan",
		})
	}

	if cfg.ParentDir == "" {
		errs = append(errs, ValidationError{
			Field:   "parent_dir",
			Message: "must not be empty",
		})
	}

	if _, err := group.ParseEnd(cfg.End); err != nil {
		errs = append(errs, ValidationError{
			Field:   "end",
			Message: err.Error(),
		})
	}

	// Runner must be valid
	validRunners := map[string]bool{"go": true, "exec": true}
	if !validRunners[cfg.Runner] {
		errs = append(errs, ValidationError{
			Field:   "runner",
			Message: fmt.Sprintf("must be 'go' or 'exec' (got %q)", cfg.Runner),
		})
	}

	validProfiles := map[string]bool{"dev": true, "release": true}
	if cfg.Runner == "go" && !validProfiles[cfg.Profile] {
		errs = append(errs, ValidationError{
			Field:   "profile",
			Message: fmt.Sprintf("must be 'dev' or 'release' (got %q)", cfg.Profile),
		})
	}

	for _, kv := range cfg.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			errs = append(errs, ValidationError{
				Field:   "env",
				Message: fmt.Sprintf("must be KEY=VALUE (got %q)", kv),
			})
		}
	}

	if cfg.PollInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "poll_interval",
			Message: "must be positive",
		})
	}

	if cfg.MaxScanErrors < 1 {
		errs = append(errs, ValidationError{
			Field:   "max_scan_errors",
			Message: "must be at least 1",
		})
	}

	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics_addr",
				Message: err.Error(),
			})
		}
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// GroupEnd returns the default group end policy. Call after Validate.
func (c *Config) GroupEnd() group.End {
	end, err := group.ParseEnd(c.End)
	if err != nil {
		return group.EndOnFailureStopAll
	}
	return end
}

// LoadPlan returns the work described by the configuration: the plan file
// when one is given, otherwise one group built from the positional tasks.
func (c *Config) LoadPlan() (Plan, error) {
	if c.PlanFile != "" {
		return LoadPlan(c.PlanFile, c.GroupEnd())
	}
	return TasksPlan(c.Tasks, c.GroupEnd())
}
