package group

import "time"

// StepKind says what one poll step observed.
type StepKind int

const (
	// StepNoChange: nothing finished and the group is not empty. The caller
	// sleeps one poll interval and steps again.
	StepNoChange StepKind = iota

	// StepFinished: exactly one task completed and was collected.
	StepFinished

	// StepGroupDone: the group is empty. No further steps are valid.
	StepGroupDone

	// StepScanError: polling itself failed. The group was not modified.
	StepScanError
)

// String returns a human-readable name for the step kind.
func (k StepKind) String() string {
	switch k {
	case StepNoChange:
		return "no_change"
	case StepFinished:
		return "finished"
	case StepGroupDone:
		return "group_done"
	case StepScanError:
		return "scan_error"
	default:
		return "unknown"
	}
}

// StepResult is the outcome of one Step.
type StepResult[M any] struct {
	Kind StepKind

	// Result is set for StepFinished.
	Result *Result[M]

	// Mode is the group mode after this step.
	Mode Mode

	// Err is the *ScanError for StepScanError.
	Err error
}

// Step scans the group once, collects at most one finished task and
// updates the mode. The mode is threaded through explicitly; Step keeps no
// state of its own.
func Step[M any](g *Group[M], mode Mode, end End) StepResult[M] {
	pid, ok, err := g.ScanForFinished()
	if err != nil {
		return StepResult[M]{Kind: StepScanError, Mode: mode, Err: err}
	}
	if !ok {
		if g.IsEmpty() {
			return StepResult[M]{Kind: StepGroupDone, Mode: mode}
		}
		return StepResult[M]{Kind: StepNoChange, Mode: mode}
	}

	h, task, started := g.Remove(pid)
	out, err := h.Collect()
	if err != nil {
		out = nil
		err = &CollectError{PID: pid, Err: err}
	}
	failed := TaskFailed(out, err)

	return StepResult[M]{
		Kind: StepFinished,
		Result: &Result[M]{
			PID:         pid,
			Task:        task,
			Description: task.Description,
			Meta:        task.Meta,
			Output:      out,
			Err:         err,
			Failed:      failed,
			Duration:    time.Since(started),
		},
		Mode: NextMode(mode, failed, end),
	}
}
