package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════\n"
	lightRule = "───────────────────────────────────────────────────────────────────────────────\n"
)

// SummaryConfig holds run information for the exit summary.
type SummaryConfig struct {
	// RunID identifies the run in logs and metrics
	RunID string

	// Runner is the runner name (go or exec)
	Runner string

	// Duration is the total run duration
	Duration time.Duration

	// PeakActive is the highest number of simultaneously running tasks
	PeakActive int

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string
}

// FormatExitSummary formats the run summary for display at program exit.
func FormatExitSummary(s *Summary, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(heavyRule)
	b.WriteString("                        go-parallel-groups Exit Summary\n")
	b.WriteString(heavyRule + "\n")

	if cfg.RunID != "" {
		fmt.Fprintf(&b, "Run ID:                 %s\n", cfg.RunID)
	}
	if cfg.Runner != "" {
		fmt.Fprintf(&b, "Runner:                 %s\n", cfg.Runner)
	}
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "Peak Active Tasks:      %d\n\n", cfg.PeakActive)

	section(&b, "Tasks")
	fmt.Fprintf(&b, "  Collected:            %d\n", s.Tasks)
	fmt.Fprintf(&b, "  Passed:               %d\n", s.Passed)
	fmt.Fprintf(&b, "  Failed:               %d\n", s.Failed)
	if s.CollectErrors > 0 {
		fmt.Fprintf(&b, "  Collect Errors:       %d\n", s.CollectErrors)
	}
	fmt.Fprintf(&b, "  Spawn Errors:         %d\n", s.SpawnErrors)
	fmt.Fprintf(&b, "  Terminated:           %d\n\n", s.Terminated)

	section(&b, "Groups")
	fmt.Fprintf(&b, "  Completed:            %d (%d failed)\n", s.Groups, s.GroupsFailed)
	if s.Sequences > 0 {
		fmt.Fprintf(&b, "  Sequences:            %d (%d stopped early)\n", s.Sequences, s.SequencesStopped)
	}
	if s.GroupsSkipped > 0 {
		fmt.Fprintf(&b, "  Groups Skipped:       %d\n", s.GroupsSkipped)
	}
	b.WriteString("\n")

	if s.Tasks > 0 {
		section(&b, "Task Duration")
		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatMs(s.DurationP50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatMs(s.DurationP95))
		fmt.Fprintf(&b, "  P99:                  %s\n", FormatMs(s.DurationP99))
		fmt.Fprintf(&b, "  Max:                  %s (%s)\n\n", FormatMs(s.DurationMax), s.Slowest)
	}

	if len(s.ExitCodes) > 0 {
		section(&b, "Exit Codes")

		codes := make([]int, 0, len(s.ExitCodes))
		for code := range s.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		for _, code := range codes {
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, exitCodeLabel(code), s.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if len(s.StderrPatterns) > 0 {
		section(&b, "Stderr Patterns")

		patterns := make([]string, 0, len(s.StderrPatterns))
		for p := range s.StderrPatterns {
			patterns = append(patterns, p)
		}
		sort.Slice(patterns, func(i, j int) bool {
			pi, pj := s.StderrPatterns[patterns[i]], s.StderrPatterns[patterns[j]]
			if pi != pj {
				return pi > pj
			}
			return patterns[i] < patterns[j]
		})

		for _, p := range patterns {
			fmt.Fprintf(&b, "  %-26s %d\n", p, s.StderrPatterns[p])
		}
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	result := "PASSED"
	if s.AnyFailed() {
		result = "FAILED"
	}
	fmt.Fprintf(&b, "Result: %s\n", result)
	b.WriteString(heavyRule)

	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString(lightRule)
	pad := (len([]rune(lightRule)) - 1 - len(title)) / 2
	b.WriteString(strings.Repeat(" ", max(pad, 0)) + title + "\n")
	b.WriteString(lightRule + "\n")
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 2:
		return "(go panic)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
