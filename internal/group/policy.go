package group

import (
	"fmt"
	"strings"
)

// Mode is the group-wide failure handling state. The zero value is
// ModeProcessAll. A group only ever moves away from ModeProcessAll, never
// back to it.
type Mode int

const (
	// ModeProcessAll is the default: no failure observed yet.
	ModeProcessAll Mode = iota

	// ModeFinishActive keeps draining already started tasks and collecting
	// their outputs.
	ModeFinishActive

	// ModeStopAll terminates all remaining tasks and discards their output.
	// The output of the task that triggered it is kept.
	ModeStopAll
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeProcessAll:
		return "process-all"
	case ModeFinishActive:
		return "finish-active"
	case ModeStopAll:
		return "stop-all"
	default:
		return "unknown"
	}
}

// HasError returns true if the mode was entered because of a failure.
func (m Mode) HasError() bool {
	return m != ModeProcessAll
}

// End is the caller's policy for what a group does on its first failure.
// It is fixed for the lifetime of a group.
type End int

const (
	// EndOnFailureStopAll stops all active tasks on the first failure,
	// reporting only the failed task's output.
	EndOnFailureStopAll End = iota

	// EndOnFailureFinishActive waits for all active tasks to finish and
	// reports all their outputs.
	EndOnFailureFinishActive

	// EndProcessAll never treats a failure as a trigger.
	EndProcessAll
)

// String returns the name used in plan files and flags.
func (e End) String() string {
	switch e {
	case EndOnFailureStopAll:
		return "stop-all"
	case EndOnFailureFinishActive:
		return "finish-active"
	case EndProcessAll:
		return "process-all"
	default:
		return "unknown"
	}
}

// ParseEnd parses a group end policy name, as produced by End.String.
func ParseEnd(s string) (End, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stop-all", "stop":
		return EndOnFailureStopAll, nil
	case "finish-active", "finish":
		return EndOnFailureFinishActive, nil
	case "process-all", "all":
		return EndProcessAll, nil
	default:
		return 0, fmt.Errorf("unknown group end %q (want stop-all, finish-active or process-all)", s)
	}
}

// UnmarshalText lets End be decoded from TOML and flag values.
func (e *End) UnmarshalText(text []byte) error {
	v, err := ParseEnd(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// MarshalText is the inverse of UnmarshalText.
func (e End) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// ModeAfterFailure returns the mode a group adopts on its first failure.
func (e End) ModeAfterFailure() Mode {
	switch e {
	case EndOnFailureStopAll:
		return ModeStopAll
	case EndOnFailureFinishActive:
		return ModeFinishActive
	default:
		return ModeProcessAll
	}
}

// NextMode computes the group mode after one task completion.
//
// Once a group has left ModeProcessAll it must be in end's failure mode;
// anything else is a logic error and panics.
func NextMode(current Mode, failed bool, end End) Mode {
	if current.HasError() {
		if want := end.ModeAfterFailure(); current != want {
			panic(fmt.Sprintf("group: inconsistent mode %s for end policy %s (want %s)", current, end, want))
		}
		return current
	}
	if failed {
		return end.ModeAfterFailure()
	}
	return ModeProcessAll
}
