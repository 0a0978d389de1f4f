package tui

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Main View Rendering
// =============================================================================

func (m Model) renderView() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		m.renderCounts(),
		m.renderTaskTable(),
		m.renderFooter(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	state := statusInfo.Render("● running")
	switch {
	case m.done && m.failed:
		state = statusError.Render("✗ failed")
	case m.done:
		state = statusOK.Render("✓ passed")
	}

	header := fmt.Sprintf(
		" go-parallel-groups │ %s │ Running: %d │ Elapsed: %s ",
		state,
		m.Count(StatusRunning),
		formatDuration(m.Elapsed()),
	)
	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress
// =============================================================================

func (m Model) renderProgress() string {
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Progress"),
		RenderProgressBar(m.Progress(), barWidth),
		dimStyle.Render(fmt.Sprintf("%d/%d tasks settled", m.Total()-m.Count(StatusRunning), m.Total())),
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Counts and Modes
// =============================================================================

func (m Model) renderCounts() string {
	lines := []string{
		sectionHeaderStyle.Render("Tasks"),
		RenderKeyValue("Passed", StatusStyle(StatusPassed).Render(fmt.Sprint(m.Count(StatusPassed)))),
		RenderKeyValue("Failed", StatusStyle(StatusFailed).Render(fmt.Sprint(m.Count(StatusFailed)))),
		RenderKeyValue("Terminated", StatusStyle(StatusTerminated).Render(fmt.Sprint(m.Count(StatusTerminated)))),
		RenderKeyValue("Spawn errors", StatusStyle(StatusSpawnFailed).Render(fmt.Sprint(m.Count(StatusSpawnFailed)))),
	}

	if len(m.modes) > 0 {
		lines = append(lines, sectionHeaderStyle.Render("Group Modes"))
		for _, seq := range slices.Sorted(maps.Keys(m.modes)) {
			mode := m.modes[seq]
			lines = append(lines, RenderKeyValue(seq, ModeStyle(mode).Render(mode)))
		}
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// =============================================================================
// Task Table
// =============================================================================

func (m Model) visibleRows() []taskRow {
	if !m.failuresOnly {
		return m.rows
	}
	var out []taskRow
	for _, r := range m.rows {
		if r.status != StatusRunning && r.status != StatusPassed {
			out = append(out, r)
		}
	}
	return out
}

func (m Model) renderTaskTable() string {
	rows := m.visibleRows()
	if len(rows) == 0 {
		return boxStyle.Width(m.width - 2).Render(dimStyle.Render("No tasks yet."))
	}

	header := tableHeaderStyle.Render(
		fmt.Sprintf("  %-8s %-12s %-6s %-10s %s", "PID", "STATUS", "EXIT", "TIME", "TASK"),
	)

	maxRows := m.height - 20
	if maxRows < 5 {
		maxRows = 5
	}

	// Most recent rows are the interesting ones.
	hidden := 0
	if len(rows) > maxRows {
		hidden = len(rows) - maxRows
		rows = rows[hidden:]
	}

	lines := []string{sectionHeaderStyle.Render("Tasks"), header}
	if hidden > 0 {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("... %d earlier tasks", hidden)))
	}
	for i, r := range rows {
		lines = append(lines, m.renderTaskRow(i, r))
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderTaskRow(i int, r taskRow) string {
	rowStyle := tableRowEvenStyle
	if i%2 == 1 {
		rowStyle = tableRowOddStyle
	}

	pid, exit, took := "-", "-", "-"
	if r.pid > 0 {
		pid = fmt.Sprint(r.pid)
	}
	if r.status == StatusPassed || r.status == StatusFailed {
		exit = fmt.Sprint(r.exitCode)
	}
	if r.duration > 0 {
		took = r.duration.Round(10 * time.Millisecond).String()
	}

	name := r.name
	if r.detail != "" {
		name += " (" + r.detail + ")"
	}
	if maxName := m.width - 48; maxName > 10 && len(name) > maxName {
		name = name[:maxName-3] + "..."
	}

	style := StatusStyle(r.status)
	return style.Render(StatusIcon(r.status)) + " " + rowStyle.Render(
		fmt.Sprintf("%-8s %-12s %-6s %-10s %s", pid, r.status, exit, took, name),
	)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	filter := "f: failures only"
	if m.failuresOnly {
		filter = "f: show all"
	}
	shortcuts := []string{"q: close dashboard", filter}

	var info []string
	if m.runner != "" {
		info = append(info, "Runner: "+m.runner)
	}
	if m.runID != "" {
		info = append(info, "Run: "+m.runID)
	}
	if m.metricsAddr != "" {
		info = append(info, "Metrics: "+m.metricsAddr)
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	right := dimStyle.Render(strings.Join(info, " │ "))

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}
