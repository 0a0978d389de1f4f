package group

import (
	"fmt"
	"slices"
	"time"
)

// member is a running process plus the task it was started for.
type member[M any] struct {
	handle  Handle
	task    Task[M]
	started time.Time
}

// Group is the set of currently running processes of one batch, keyed by
// PID. It is owned by a single coordinating goroutine and does no locking.
//
// A Group grows only while spawning and shrinks monotonically while polling.
type Group[M any] struct {
	members map[int]*member[M]
}

// New returns an empty group.
func New[M any]() *Group[M] {
	return &Group[M]{members: make(map[int]*member[M])}
}

// Insert adds a running process. PIDs must be unique among stored handles;
// a duplicate is a programming error and panics.
func (g *Group[M]) Insert(pid int, h Handle, task Task[M]) {
	if _, ok := g.members[pid]; ok {
		panic(fmt.Sprintf("group: duplicate pid %d", pid))
	}
	g.members[pid] = &member[M]{handle: h, task: task, started: time.Now()}
}

// ScanForFinished polls every live handle at most once and returns the PID
// of the first finished one. Handles are visited in ascending PID order, so
// when several finish within one poll interval the lowest PID wins.
//
// The first TryPoll error aborts the scan and is returned as a *ScanError.
// The group is never modified.
func (g *Group[M]) ScanForFinished() (int, bool, error) {
	for _, pid := range g.PIDs() {
		done, err := g.members[pid].handle.TryPoll()
		if err != nil {
			return 0, false, &ScanError{PID: pid, Err: err}
		}
		if done {
			return pid, true, nil
		}
	}
	return 0, false, nil
}

// Remove takes a member out of the group and returns its handle and task.
// Removing an absent PID is a programming error and panics.
func (g *Group[M]) Remove(pid int) (Handle, Task[M], time.Time) {
	m, ok := g.members[pid]
	if !ok {
		panic(fmt.Sprintf("group: remove of unknown pid %d", pid))
	}
	delete(g.members, pid)
	return m.handle, m.task, m.started
}

// IsEmpty reports whether no process is left.
func (g *Group[M]) IsEmpty() bool {
	return len(g.members) == 0
}

// Len returns the number of live processes.
func (g *Group[M]) Len() int {
	return len(g.members)
}

// PIDs returns the live PIDs in ascending order.
func (g *Group[M]) PIDs() []int {
	pids := make([]int, 0, len(g.members))
	for pid := range g.members {
		pids = append(pids, pid)
	}
	slices.Sort(pids)
	return pids
}

// Task returns the task a live PID was started for.
func (g *Group[M]) Task(pid int) (Task[M], bool) {
	m, ok := g.members[pid]
	if !ok {
		var zero Task[M]
		return zero, false
	}
	return m.task, true
}
