package tui

import (
	"strings"
	"testing"
)

func TestStatusIcon(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   string
	}{
		{StatusRunning, "●"},
		{StatusPassed, "✓"},
		{StatusFailed, "✗"},
		{StatusSpawnFailed, "✗"},
		{StatusTerminated, "■"},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := StatusIcon(tt.status); got != tt.want {
				t.Errorf("StatusIcon(%s) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_String(t *testing.T) {
	if got := TaskStatus(99).String(); got != "unknown" {
		t.Errorf("String() = %q, want unknown", got)
	}
	if got := StatusSpawnFailed.String(); got != "spawn failed" {
		t.Errorf("String() = %q", got)
	}
}

func TestRenderKeyValue(t *testing.T) {
	got := RenderKeyValue("Passed", "3")
	if !strings.Contains(got, "Passed:") || !strings.Contains(got, "3") {
		t.Errorf("RenderKeyValue() = %q", got)
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		name     string
		progress float64
		width    int
		percent  string
	}{
		{"empty", 0, 20, "0%"},
		{"half", 0.5, 20, "50%"},
		{"full", 1, 20, "100%"},
		{"overflow clamps bar", 1.5, 20, "150%"},
		{"narrow width", 0.5, 3, "50%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderProgressBar(tt.progress, tt.width)
			if !strings.Contains(got, tt.percent) {
				t.Errorf("RenderProgressBar() = %q, missing %q", got, tt.percent)
			}
		})
	}
}

func TestRepeatChar(t *testing.T) {
	if got := repeatChar('x', 3); got != "xxx" {
		t.Errorf("repeatChar = %q", got)
	}
	if got := repeatChar('x', -1); got != "" {
		t.Errorf("repeatChar negative = %q", got)
	}
}
