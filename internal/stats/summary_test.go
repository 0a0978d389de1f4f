package stats

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Table-Driven Tests: Formatting Functions
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "00:00:00"},
		{"one second", time.Second, "00:00:01"},
		{"one minute", time.Minute, "00:01:00"},
		{"one hour", time.Hour, "01:00:00"},
		{"mixed", 2*time.Hour + 30*time.Minute + 45*time.Second, "02:30:45"},
		{"sub-second", 500 * time.Millisecond, "00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.duration); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "0 ms"},
		{"1 ms", time.Millisecond, "1 ms"},
		{"1 second", time.Second, "1000 ms"},
		{"sub-ms", 500 * time.Microsecond, "500 µs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatMs(tt.duration); got != tt.want {
				t.Errorf("FormatMs(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestExitCodeLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "(clean)"},
		{1, "(error)"},
		{2, "(go panic)"},
		{137, "(SIGKILL)"},
		{143, "(SIGTERM)"},
		{-1, ""},
		{255, ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			if got := exitCodeLabel(tt.code); got != tt.want {
				t.Errorf("exitCodeLabel(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: FormatExitSummary
// =============================================================================

func TestFormatExitSummary_Empty(t *testing.T) {
	out := FormatExitSummary(NewAggregator().Snapshot(), SummaryConfig{Duration: 3 * time.Second})

	for _, want := range []string{"Exit Summary", "00:00:03", "Collected:            0", "Result: PASSED"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Task Duration") || strings.Contains(out, "Exit Codes") {
		t.Error("empty run printed duration or exit code sections")
	}
}

func TestFormatExitSummary_Full(t *testing.T) {
	a := NewAggregator()
	a.RecordTask(TaskSample{Description: "a", Duration: 100 * time.Millisecond})
	a.RecordTask(TaskSample{Description: "slow", ExitCode: 1, Failed: true, Duration: 2 * time.Second})
	a.RecordTerminated()
	a.RecordGroup(true)
	a.RecordSequence(true, 2)
	a.RecordPatterns(map[string]int{"panic:": 1, "--- FAIL": 3})

	out := FormatExitSummary(a.Snapshot(), SummaryConfig{
		RunID:       "run-1",
		Runner:      "go",
		PeakActive:  2,
		MetricsAddr: "127.0.0.1:9090",
	})

	for _, want := range []string{
		"Run ID:                 run-1",
		"Runner:                 go",
		"Peak Active Tasks:      2",
		"Failed:               1",
		"Terminated:           1",
		"Completed:            1 (1 failed)",
		"Groups Skipped:       2",
		"Max:                  2000 ms (slow)",
		"(error)",
		"http://127.0.0.1:9090/metrics",
		"Result: FAILED",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "--- FAIL") > strings.Index(out, "panic:") {
		t.Error("stderr patterns not sorted by count")
	}
}
