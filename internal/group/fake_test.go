package group

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// Fake Handle and Spawner for testing
// =============================================================================

// fakeHandle implements Handle without an OS process.
type fakeHandle struct {
	pid int

	// pollsUntilDone is the number of TryPoll calls that report "running"
	// before the handle finishes. Negative means it never finishes on its own.
	pollsUntilDone int
	polls          int

	output     *Output
	collectErr error
	pollErr    error

	collected  int
	terminated int
	released   int
}

func (f *fakeHandle) PID() int { return f.pid }

func (f *fakeHandle) TryPoll() (bool, error) {
	if f.pollErr != nil {
		return false, f.pollErr
	}
	if f.terminated > 0 {
		return true, nil
	}
	if f.pollsUntilDone < 0 {
		return false, nil
	}
	if f.polls >= f.pollsUntilDone {
		return true, nil
	}
	f.polls++
	return false, nil
}

func (f *fakeHandle) Collect() (*Output, error) {
	f.collected++
	if f.collectErr != nil {
		return nil, f.collectErr
	}
	return f.output, nil
}

func (f *fakeHandle) Terminate() { f.terminated++ }
func (f *fakeHandle) Release()   { f.released++ }

// fakeSpawner hands out fakeHandles by task ID, assigning increasing PIDs.
type fakeSpawner struct {
	handles map[string]*fakeHandle
	fail    map[string]error
	nextPID int
	calls   []string
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{
		handles: make(map[string]*fakeHandle),
		fail:    make(map[string]error),
		nextPID: 100,
	}
}

func (s *fakeSpawner) Spawn(ctx context.Context, parentDir, subdir, taskID string, options []string) (Handle, error) {
	s.calls = append(s.calls, taskID)
	if err, ok := s.fail[taskID]; ok {
		return nil, err
	}
	h, ok := s.handles[taskID]
	if !ok {
		return nil, fmt.Errorf("no fake for %q", taskID)
	}
	h.pid = s.nextPID
	s.nextPID++
	return h, nil
}

// add registers a handle for taskID.
func (s *fakeSpawner) add(taskID string, h *fakeHandle) *fakeHandle {
	s.handles[taskID] = h
	return h
}

func okHandle(polls int) *fakeHandle {
	return &fakeHandle{
		pollsUntilDone: polls,
		output:         &Output{ExitCode: 0, Stdout: []byte("ok\n")},
	}
}

func failHandle(polls int) *fakeHandle {
	return &fakeHandle{
		pollsUntilDone: polls,
		output:         &Output{ExitCode: 1, Stderr: []byte("boom\n")},
	}
}

func hangHandle() *fakeHandle {
	return &fakeHandle{
		pollsUntilDone: -1,
		output:         &Output{ExitCode: 0, Stdout: []byte("never\n")},
	}
}

var errSpawn = errors.New("spawn failed")

func tasks(ids ...string) []Task[int] {
	out := make([]Task[int], len(ids))
	for i, id := range ids {
		out[i] = Task[int]{
			Subdir:      "sub/" + id,
			ID:          id,
			Options:     []string{"feature-" + id},
			Description: "task " + id,
			Meta:        i + 1,
		}
	}
	return out
}
