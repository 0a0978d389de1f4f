package group

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestSpawn_AllSucceed(t *testing.T) {
	s := newFakeSpawner()
	for _, id := range []string{"a", "b", "c"} {
		s.add(id, okHandle(0))
	}

	g, mode, errs := Spawn(context.Background(), s, tasks("a", "b", "c"), "/parent", EndOnFailureStopAll)

	if len(errs) != 0 {
		t.Fatalf("errs = %v, want none", errs)
	}
	if mode != ModeProcessAll {
		t.Errorf("mode = %s, want process-all", mode)
	}
	if g.Len() != 3 {
		t.Errorf("group len = %d, want 3", g.Len())
	}
	if !slices.Equal(g.PIDs(), []int{100, 101, 102}) {
		t.Errorf("PIDs = %v", g.PIDs())
	}
}

func TestSpawn_MiddleFails(t *testing.T) {
	tests := []struct {
		end      End
		wantMode Mode
	}{
		{EndOnFailureStopAll, ModeStopAll},
		{EndOnFailureFinishActive, ModeFinishActive},
		{EndProcessAll, ModeProcessAll},
	}

	for _, tt := range tests {
		t.Run(tt.end.String(), func(t *testing.T) {
			s := newFakeSpawner()
			s.add("1", okHandle(0))
			s.fail["2"] = errSpawn
			s.add("3", okHandle(0))

			g, mode, errs := Spawn(context.Background(), s, tasks("1", "2", "3"), "/parent", tt.end)

			if len(errs) != 1 {
				t.Fatalf("len(errs) = %d, want 1", len(errs))
			}
			var se *SpawnError
			if !errors.As(errs[0], &se) {
				t.Fatalf("error %T is not *SpawnError", errs[0])
			}
			if se.TaskID != "2" || !errors.Is(se, errSpawn) {
				t.Errorf("SpawnError = %+v", se)
			}
			if mode != tt.wantMode {
				t.Errorf("mode = %s, want %s", mode, tt.wantMode)
			}
			if !slices.Equal(s.calls, []string{"1", "2", "3"}) {
				t.Errorf("spawn calls = %v, want all three in order", s.calls)
			}
			if g.Len() != 2 {
				t.Fatalf("group len = %d, want 2", g.Len())
			}
			for _, pid := range g.PIDs() {
				task, _ := g.Task(pid)
				if task.ID == "2" {
					t.Error("failed task is in the group")
				}
			}
		})
	}
}

func TestSpawn_Empty(t *testing.T) {
	g, mode, errs := Spawn[int](context.Background(), newFakeSpawner(), nil, "/parent", EndOnFailureStopAll)
	if !g.IsEmpty() || mode != ModeProcessAll || len(errs) != 0 {
		t.Errorf("got len=%d mode=%s errs=%v", g.Len(), mode, errs)
	}
}

func TestGroup_ScanForFinished_LowestPIDFirst(t *testing.T) {
	g := New[int]()
	g.Insert(30, &fakeHandle{pid: 30, pollsUntilDone: 0}, Task[int]{ID: "c"})
	g.Insert(10, &fakeHandle{pid: 10, pollsUntilDone: -1}, Task[int]{ID: "a"})
	g.Insert(20, &fakeHandle{pid: 20, pollsUntilDone: 0}, Task[int]{ID: "b"})

	pid, ok, err := g.ScanForFinished()
	if err != nil || !ok {
		t.Fatalf("ScanForFinished() = %d, %v, %v", pid, ok, err)
	}
	if pid != 20 {
		t.Errorf("pid = %d, want 20 (lowest finished)", pid)
	}
	if g.Len() != 3 {
		t.Errorf("scan modified the group: len = %d", g.Len())
	}
}

func TestGroup_ScanForFinished_None(t *testing.T) {
	g := New[int]()
	g.Insert(1, hangHandle(), Task[int]{})
	g.Insert(2, hangHandle(), Task[int]{})

	_, ok, err := g.ScanForFinished()
	if ok || err != nil {
		t.Errorf("ScanForFinished() ok=%v err=%v, want none", ok, err)
	}
}

func TestGroup_ScanForFinished_ErrorAborts(t *testing.T) {
	pollErr := errors.New("waitid: ECHILD")
	later := &fakeHandle{pollsUntilDone: 0}

	g := New[int]()
	g.Insert(1, &fakeHandle{pollErr: pollErr}, Task[int]{})
	g.Insert(2, later, Task[int]{})

	_, ok, err := g.ScanForFinished()
	if ok {
		t.Error("ok = true on scan error")
	}
	var se *ScanError
	if !errors.As(err, &se) || se.PID != 1 || !errors.Is(err, pollErr) {
		t.Fatalf("err = %v, want ScanError for pid 1", err)
	}
	if later.polls != 0 {
		t.Error("scan continued past the failing handle")
	}
	if g.Len() != 2 {
		t.Errorf("group len = %d, want 2 (unmodified)", g.Len())
	}
}

func TestGroup_RemoveUnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	New[int]().Remove(42)
}

func TestGroup_DuplicateInsertPanics(t *testing.T) {
	g := New[int]()
	g.Insert(1, okHandle(0), Task[int]{})
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	g.Insert(1, okHandle(0), Task[int]{})
}

func TestFakeHandle_TryPollIdempotent(t *testing.T) {
	h := okHandle(1)
	if done, _ := h.TryPoll(); done {
		t.Fatal("finished on first poll")
	}
	for i := 0; i < 5; i++ {
		if done, _ := h.TryPoll(); !done {
			t.Fatalf("poll %d flipped back to running", i)
		}
	}
}

func TestStep(t *testing.T) {
	t.Run("group done", func(t *testing.T) {
		res := Step(New[int](), ModeProcessAll, EndOnFailureStopAll)
		if res.Kind != StepGroupDone {
			t.Errorf("kind = %s, want group_done", res.Kind)
		}
	})

	t.Run("no change", func(t *testing.T) {
		g := New[int]()
		g.Insert(1, hangHandle(), Task[int]{})
		res := Step(g, ModeProcessAll, EndOnFailureStopAll)
		if res.Kind != StepNoChange || res.Mode != ModeProcessAll {
			t.Errorf("got %s/%s", res.Kind, res.Mode)
		}
	})

	t.Run("finished failure changes mode", func(t *testing.T) {
		g := New[int]()
		h := failHandle(0)
		g.Insert(7, h, Task[int]{ID: "x", Description: "task x", Meta: 9})
		res := Step(g, ModeProcessAll, EndOnFailureFinishActive)
		if res.Kind != StepFinished {
			t.Fatalf("kind = %s", res.Kind)
		}
		if res.Mode != ModeFinishActive {
			t.Errorf("mode = %s, want finish-active", res.Mode)
		}
		r := res.Result
		if r.PID != 7 || r.Description != "task x" || r.Meta != 9 || !r.Failed {
			t.Errorf("result = %+v", r)
		}
		if h.collected != 1 || !g.IsEmpty() {
			t.Errorf("collected=%d len=%d", h.collected, g.Len())
		}
	})

	t.Run("collection error", func(t *testing.T) {
		g := New[int]()
		g.Insert(3, &fakeHandle{pollsUntilDone: 0, collectErr: errors.New("read pipe")}, Task[int]{})
		res := Step(g, ModeProcessAll, EndOnFailureStopAll)
		var ce *CollectError
		if !errors.As(res.Result.Err, &ce) || ce.PID != 3 {
			t.Fatalf("err = %v, want CollectError", res.Result.Err)
		}
		if res.Result.Output != nil || !res.Result.Failed {
			t.Errorf("result = %+v", res.Result)
		}
		if res.Mode != ModeStopAll {
			t.Errorf("mode = %s, want stop-all", res.Mode)
		}
	})

	t.Run("scan error leaves group alone", func(t *testing.T) {
		g := New[int]()
		g.Insert(1, &fakeHandle{pollErr: errors.New("EINVAL")}, Task[int]{})
		res := Step(g, ModeProcessAll, EndOnFailureStopAll)
		if res.Kind != StepScanError || res.Err == nil {
			t.Errorf("got %s err=%v", res.Kind, res.Err)
		}
		if g.Len() != 1 {
			t.Error("group modified on scan error")
		}
	})
}
