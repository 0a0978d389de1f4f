package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single stderr line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of stderr lines kept per task.
	MaxBufferedLines = 100
)

// StderrHandler logs the stderr of a finished task line by line and keeps
// the most recent lines for the exit summary.
type StderrHandler struct {
	task    string
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewStderrHandler creates a stderr handler for one task.
func NewStderrHandler(task string, logger *slog.Logger, verbose bool) *StderrHandler {
	return &StderrHandler{
		task:    task,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleOutput processes captured stderr one line at a time.
func (h *StderrHandler) HandleOutput(stderr []byte) {
	for line := range bytes.Lines(stderr) {
		line = bytes.TrimRight(line, "\r\n")
		if len(line) > 0 {
			h.HandleLine(string(line))
		}
	}
}

// HandleLine processes a single line of stderr output.
func (h *StderrHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	h.logLine(line)
}

// logLine logs the line at a level based on its content.
func (h *StderrHandler) logLine(line string) {
	level := classifyLine(line)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level == slog.LevelDebug {
		return
	}

	h.logger.Log(context.Background(), level, "task_stderr",
		"task", h.task,
		"line", line,
	)
}

// classifyLine maps Go toolchain and runtime output to a log level.
func classifyLine(line string) slog.Level {
	trimmed := strings.TrimSpace(line)

	if strings.HasPrefix(trimmed, "panic:") ||
		strings.HasPrefix(trimmed, "fatal error:") ||
		strings.HasPrefix(trimmed, "--- FAIL") ||
		strings.HasPrefix(trimmed, "FAIL") ||
		strings.Contains(trimmed, "DATA RACE") {
		return slog.LevelError
	}

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "warning:") ||
		strings.Contains(lower, "error") ||
		strings.Contains(lower, "deprecated") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *StderrHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}

// ErrorPatterns are stderr patterns counted for the exit summary.
var ErrorPatterns = []string{
	"panic:",
	"fatal error:",
	"DATA RACE",
	"--- FAIL",
	"warning:",
	"undefined:",
	"cannot use",
	"build constraints exclude",
}

// CountErrors counts occurrences of error patterns in the buffer.
func (h *StderrHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}

	return counts
}
