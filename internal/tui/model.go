package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the elapsed time.
type TickMsg time.Time

// EventKind is the kind of a task event.
type EventKind int

const (
	EventSpawned EventKind = iota
	EventSpawnFailed
	EventFinished
	EventTerminated
	EventModeChanged
)

// TaskEventMsg carries one runner callback to the dashboard.
type TaskEventMsg struct {
	Kind     EventKind
	Sequence string
	PID      int
	Task     string
	ExitCode int
	Failed   bool
	Err      string
	Mode     string
	Duration time.Duration
}

// DoneMsg signals that every sequence finished.
type DoneMsg struct {
	Failed bool
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// TaskStatus is the dashboard state of one task.
type TaskStatus int

const (
	StatusRunning TaskStatus = iota
	StatusPassed
	StatusFailed
	StatusTerminated
	StatusSpawnFailed
)

func (s TaskStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusTerminated:
		return "terminated"
	case StatusSpawnFailed:
		return "spawn failed"
	default:
		return "unknown"
	}
}

type taskRow struct {
	sequence string
	name     string
	pid      int
	status   TaskStatus
	exitCode int
	detail   string
	started  time.Time
	duration time.Duration
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	runID       string
	runner      string
	metricsAddr string

	// Current state
	rows      []taskRow
	byPID     map[int]int
	counts    map[TaskStatus]int
	modes     map[string]string
	startTime time.Time
	done      bool
	failed    bool

	// Display options
	width        int
	height       int
	failuresOnly bool

	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	RunID       string
	Runner      string
	MetricsAddr string
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		runID:       cfg.RunID,
		runner:      cfg.Runner,
		metricsAddr: cfg.MetricsAddr,
		byPID:       make(map[int]int),
		counts:      make(map[TaskStatus]int),
		modes:       make(map[string]string),
		startTime:   time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "f":
			m.failuresOnly = !m.failuresOnly
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case TaskEventMsg:
		m = m.apply(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.failed = msg.Failed
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// apply folds one task event into the model. Maps are shared between
// copies of the model, which is fine because Update runs on one goroutine.
func (m Model) apply(ev TaskEventMsg) Model {
	switch ev.Kind {
	case EventSpawned:
		m.byPID[ev.PID] = len(m.rows)
		m.rows = append(m.rows, taskRow{
			sequence: ev.Sequence,
			name:     ev.Task,
			pid:      ev.PID,
			status:   StatusRunning,
			started:  time.Now(),
		})
		m.counts[StatusRunning]++

	case EventSpawnFailed:
		m.rows = append(m.rows, taskRow{
			sequence: ev.Sequence,
			name:     ev.Task,
			status:   StatusSpawnFailed,
			detail:   ev.Err,
		})
		m.counts[StatusSpawnFailed]++

	case EventFinished:
		status := StatusPassed
		if ev.Failed {
			status = StatusFailed
		}
		m.settle(ev.PID, status, func(r *taskRow) {
			r.exitCode = ev.ExitCode
			r.detail = ev.Err
			r.duration = ev.Duration
		})

	case EventTerminated:
		m.settle(ev.PID, StatusTerminated, func(r *taskRow) {
			r.duration = time.Since(r.started)
		})

	case EventModeChanged:
		m.modes[ev.Sequence] = ev.Mode
	}
	return m
}

func (m Model) settle(pid int, status TaskStatus, update func(*taskRow)) {
	idx, ok := m.byPID[pid]
	if !ok {
		return
	}
	delete(m.byPID, pid)

	r := &m.rows[idx]
	m.counts[r.status]--
	r.status = status
	m.counts[status]++
	update(r)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the run started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Count returns the number of tasks in status.
func (m Model) Count(status TaskStatus) int {
	return m.counts[status]
}

// Total returns the number of tasks seen so far.
func (m Model) Total() int {
	return len(m.rows)
}

// Progress returns the settled share of seen tasks (0.0 to 1.0).
func (m Model) Progress() float64 {
	if len(m.rows) == 0 {
		return 0
	}
	return float64(len(m.rows)-m.counts[StatusRunning]) / float64(len(m.rows))
}

// =============================================================================
// Helpers for external use
// =============================================================================

// Send delivers msg to p. A nil program is ignored.
func Send(p *tea.Program, msg tea.Msg) {
	if p != nil {
		p.Send(msg)
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	Send(p, QuitMsg{})
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
