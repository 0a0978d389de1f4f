package group

import (
	"errors"
	"fmt"
)

// ErrTooManyScanErrors is returned by Runner.Run when polling failed more
// times in a row than the runner allows.
var ErrTooManyScanErrors = errors.New("too many consecutive scan errors")

// SpawnError is a task that could not be launched.
type SpawnError struct {
	Subdir      string
	TaskID      string
	Description string
	Err         error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s (%s/%s): %v", e.Description, e.Subdir, e.TaskID, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ScanError is a failure of the OS wait primitive while polling a live
// process. It says nothing about the task's own success.
type ScanError struct {
	PID int
	Err error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("poll pid %d: %v", e.PID, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// CollectError is a finished process whose output could not be retrieved.
type CollectError struct {
	PID int
	Err error
}

func (e *CollectError) Error() string {
	return fmt.Sprintf("collect output of pid %d: %v", e.PID, e.Err)
}

func (e *CollectError) Unwrap() error { return e.Err }
