// Package report orders and prints the collected outputs of a group.
package report

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-parallel-groups/internal/group"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
	colorMuted   = lipgloss.Color("#9CA3AF")

	passHeader = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	failHeader = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	warnHeader = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// Order returns results with successes first and failures last, each part
// kept in completion order. The input is not modified.
func Order[M any](results []group.Result[M]) []group.Result[M] {
	ordered := make([]group.Result[M], 0, len(results))
	for _, r := range results {
		if !r.Failed {
			ordered = append(ordered, r)
		}
	}
	for _, r := range results {
		if r.Failed {
			ordered = append(ordered, r)
		}
	}
	return ordered
}

// Print writes every result in Order: a header line, then stdout, then stderr.
func Print[M any](w io.Writer, results []group.Result[M]) error {
	for _, r := range Order(results) {
		if err := printResult(w, &r); err != nil {
			return err
		}
	}
	return nil
}

func printResult[M any](w io.Writer, r *group.Result[M]) error {
	var buf bytes.Buffer

	buf.WriteString(header(r))
	buf.WriteByte('\n')

	if r.Err != nil {
		fmt.Fprintf(&buf, "%s %v\n", labelStyle.Render("error:"), r.Err)
	}
	if r.Output != nil {
		writeStream(&buf, "stdout", r.Output.Stdout)
		writeStream(&buf, "stderr", r.Output.Stderr)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func header[M any](r *group.Result[M]) string {
	status := "collect failed"
	if r.Output != nil {
		status = fmt.Sprintf("exit %d", r.Output.ExitCode)
	}
	text := fmt.Sprintf("%s %s (pid %d, %s, %s)",
		mark(r.Failed), r.Description, r.PID, status, r.Duration.Round(time.Millisecond))

	if r.Failed {
		return failHeader.Render(text)
	}
	return passHeader.Render(text)
}

func mark(failed bool) string {
	if failed {
		return "✗"
	}
	return "✓"
}

func writeStream(buf *bytes.Buffer, name string, data []byte) {
	if len(data) == 0 {
		return
	}
	buf.WriteString(labelStyle.Render("--- " + name + " ---"))
	buf.WriteByte('\n')
	buf.Write(data)
	if data[len(data)-1] != '\n' {
		buf.WriteByte('\n')
	}
}

// PrintErrors writes spawn errors and tasks killed during a teardown.
func PrintErrors(w io.Writer, spawnErrs []error, terminated []group.Terminated) error {
	var buf bytes.Buffer
	for _, err := range spawnErrs {
		buf.WriteString(failHeader.Render("✗ spawn failed: " + err.Error()))
		buf.WriteByte('\n')
	}
	for _, t := range terminated {
		buf.WriteString(warnHeader.Render(fmt.Sprintf("■ %s (pid %d) terminated", t.Description, t.PID)))
		buf.WriteByte('\n')
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Group prints one group report: collected outputs followed by errors.
func Group[M any](w io.Writer, r *group.Report[M]) error {
	if err := Print(w, r.Outputs); err != nil {
		return err
	}
	return PrintErrors(w, r.SpawnErrors, r.Terminated)
}
