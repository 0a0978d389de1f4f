package group

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(s Spawner, cb Callbacks[int]) *Runner[int] {
	return NewRunner(Config[int]{
		Spawner:      s,
		Logger:       newTestLogger(),
		PollInterval: time.Millisecond,
		Callbacks:    cb,
	})
}

func TestRunner_AllSucceed(t *testing.T) {
	for _, n := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			s := newFakeSpawner()
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprint(i)
				s.add(ids[i], okHandle(i%3))
			}

			report, err := newTestRunner(s, Callbacks[int]{}).Run(context.Background(), tasks(ids...), "/p", EndOnFailureStopAll)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if report.Mode != ModeProcessAll {
				t.Errorf("mode = %s, want process-all", report.Mode)
			}
			if len(report.Outputs) != n {
				t.Errorf("outputs = %d, want %d", len(report.Outputs), n)
			}
			if report.Failed() {
				t.Error("report.Failed() = true")
			}
		})
	}
}

func TestRunner_FinishActive(t *testing.T) {
	s := newFakeSpawner()
	s.add("1", okHandle(4))
	s.add("2", failHandle(1))
	s.add("3", okHandle(6))

	var modes []Mode
	cb := Callbacks[int]{OnModeChange: func(_, m Mode) { modes = append(modes, m) }}

	report, err := newTestRunner(s, cb).Run(context.Background(), tasks("1", "2", "3"), "/p", EndOnFailureFinishActive)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Mode != ModeFinishActive {
		t.Errorf("mode = %s, want finish-active", report.Mode)
	}
	if len(report.Outputs) != 3 {
		t.Fatalf("outputs = %d, want 3", len(report.Outputs))
	}
	if len(report.Terminated) != 0 {
		t.Errorf("terminated = %v, want none", report.Terminated)
	}
	for _, r := range report.Outputs {
		wantFailed := r.Task.ID == "2"
		if r.Failed != wantFailed {
			t.Errorf("task %s failed = %v, want %v", r.Task.ID, r.Failed, wantFailed)
		}
	}
	if report.Outputs[0].Task.ID != "2" {
		t.Errorf("first completion = %s, want 2", report.Outputs[0].Task.ID)
	}
	if len(modes) != 1 || modes[0] != ModeFinishActive {
		t.Errorf("mode changes = %v", modes)
	}
}

func TestRunner_StopAll(t *testing.T) {
	s := newFakeSpawner()
	h1 := s.add("1", hangHandle())
	h2 := s.add("2", failHandle(1))
	h3 := s.add("3", hangHandle())

	var terminated []Terminated
	cb := Callbacks[int]{OnTerminate: func(tt Terminated) { terminated = append(terminated, tt) }}

	report, err := newTestRunner(s, cb).Run(context.Background(), tasks("1", "2", "3"), "/p", EndOnFailureStopAll)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Mode != ModeStopAll {
		t.Errorf("mode = %s, want stop-all", report.Mode)
	}
	if len(report.Outputs) != 1 || report.Outputs[0].Task.ID != "2" {
		t.Fatalf("outputs = %+v, want only task 2", report.Outputs)
	}
	if h2.collected != 1 {
		t.Errorf("trigger collected %d times", h2.collected)
	}
	for _, h := range []*fakeHandle{h1, h3} {
		if h.terminated != 1 || h.released != 1 {
			t.Errorf("pid %d terminated=%d released=%d, want 1/1", h.pid, h.terminated, h.released)
		}
		if h.collected != 0 {
			t.Errorf("pid %d output was collected", h.pid)
		}
	}
	if len(report.Terminated) != 2 || len(terminated) != 2 {
		t.Errorf("terminated = %v / %v", report.Terminated, terminated)
	}
}

func TestRunner_StopAllAtSpawnTime(t *testing.T) {
	s := newFakeSpawner()
	h1 := s.add("1", okHandle(3))
	s.fail["2"] = errSpawn
	h3 := s.add("3", okHandle(3))

	report, err := newTestRunner(s, Callbacks[int]{}).Run(context.Background(), tasks("1", "2", "3"), "/p", EndOnFailureStopAll)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Mode != ModeStopAll {
		t.Errorf("mode = %s", report.Mode)
	}
	if len(report.SpawnErrors) != 1 {
		t.Errorf("spawn errors = %d, want 1", len(report.SpawnErrors))
	}
	if len(report.Outputs) != 0 {
		t.Errorf("outputs = %d, want 0", len(report.Outputs))
	}
	if h1.polls != 0 || h3.polls != 0 {
		t.Error("handles were polled before teardown")
	}
	if h1.terminated != 1 || h3.terminated != 1 {
		t.Error("spawned tasks were not terminated")
	}
}

func TestRunner_SpawnFailureFinishActive(t *testing.T) {
	s := newFakeSpawner()
	s.add("1", okHandle(1))
	s.fail["2"] = errSpawn
	s.add("3", okHandle(2))

	var spawnErrs []*SpawnError
	cb := Callbacks[int]{OnSpawnError: func(e *SpawnError) { spawnErrs = append(spawnErrs, e) }}

	report, err := newTestRunner(s, cb).Run(context.Background(), tasks("1", "2", "3"), "/p", EndOnFailureFinishActive)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Mode != ModeFinishActive || len(report.Outputs) != 2 || len(spawnErrs) != 1 {
		t.Errorf("mode=%s outputs=%d spawnErrs=%d", report.Mode, len(report.Outputs), len(spawnErrs))
	}
	if !report.Failed() {
		t.Error("report.Failed() = false with a spawn error")
	}
}

func TestRunner_ProcessAllKeepsGoing(t *testing.T) {
	s := newFakeSpawner()
	s.add("1", failHandle(0))
	s.add("2", okHandle(2))
	s.add("3", failHandle(3))

	report, err := newTestRunner(s, Callbacks[int]{}).Run(context.Background(), tasks("1", "2", "3"), "/p", EndProcessAll)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Mode != ModeProcessAll {
		t.Errorf("mode = %s", report.Mode)
	}
	if len(report.Outputs) != 3 || report.FailedCount() != 2 {
		t.Errorf("outputs=%d failed=%d", len(report.Outputs), report.FailedCount())
	}
}

func TestRunner_TooManyScanErrors(t *testing.T) {
	s := newFakeSpawner()
	bad := s.add("1", &fakeHandle{pollErr: errors.New("EINVAL")})

	report, err := newTestRunner(s, Callbacks[int]{}).Run(context.Background(), tasks("1"), "/p", EndOnFailureFinishActive)
	if !errors.Is(err, ErrTooManyScanErrors) {
		t.Fatalf("err = %v, want ErrTooManyScanErrors", err)
	}
	if report.ScanErrors != DefaultMaxScanErrors {
		t.Errorf("scan errors = %d, want %d", report.ScanErrors, DefaultMaxScanErrors)
	}
	if bad.terminated != 1 || bad.released != 1 {
		t.Error("handle not torn down after fatal scan errors")
	}
}

func TestRunner_ContextCancel(t *testing.T) {
	s := newFakeSpawner()
	h := s.add("1", hangHandle())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	report, err := newTestRunner(s, Callbacks[int]{}).Run(ctx, tasks("1"), "/p", EndOnFailureFinishActive)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if len(report.Terminated) != 1 || h.terminated != 1 {
		t.Error("running task not terminated on cancel")
	}
}

func TestRunner_EmptyTaskList(t *testing.T) {
	report, err := newTestRunner(newFakeSpawner(), Callbacks[int]{}).Run(context.Background(), nil, "/p", EndOnFailureStopAll)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Mode != ModeProcessAll || len(report.Outputs) != 0 || report.Failed() {
		t.Errorf("report = %+v", report)
	}
}

func TestRunner_Callbacks(t *testing.T) {
	s := newFakeSpawner()
	s.add("a", okHandle(0))
	s.add("b", okHandle(1))

	var spawned, finished []string
	cb := Callbacks[int]{
		OnSpawn:  func(_ int, task Task[int]) { spawned = append(spawned, task.ID) },
		OnFinish: func(r *Result[int]) { finished = append(finished, r.Task.ID) },
	}

	if _, err := newTestRunner(s, cb).Run(context.Background(), tasks("a", "b"), "/p", EndOnFailureStopAll); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(spawned) != 2 || len(finished) != 2 {
		t.Errorf("spawned=%v finished=%v", spawned, finished)
	}
}

func TestNewRunner_Defaults(t *testing.T) {
	r := NewRunner(Config[int]{})
	if r.pollInterval != DefaultPollInterval {
		t.Errorf("pollInterval = %v", r.pollInterval)
	}
	if r.maxScanErrors != DefaultMaxScanErrors {
		t.Errorf("maxScanErrors = %d", r.maxScanErrors)
	}
	if r.logger == nil {
		t.Error("logger is nil")
	}
}
