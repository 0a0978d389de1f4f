package stats

import (
	"sync"
	"testing"
	"time"
)

func TestAggregator_Empty(t *testing.T) {
	s := NewAggregator().Snapshot()
	if s.Tasks != 0 || s.DurationP50 != 0 || s.AnyFailed() {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestAggregator_RecordTask(t *testing.T) {
	a := NewAggregator()
	a.RecordTask(TaskSample{Description: "ok", Duration: time.Second})
	a.RecordTask(TaskSample{Description: "warn", Failed: true, Duration: time.Second})
	a.RecordTask(TaskSample{Description: "crash", ExitCode: 2, Failed: true, Duration: 3 * time.Second})
	a.RecordTask(TaskSample{Description: "lost", CollectErr: true, Failed: true})

	s := a.Snapshot()

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"Tasks", s.Tasks, 4},
		{"Passed", s.Passed, 1},
		{"Failed", s.Failed, 3},
		{"CollectErrors", s.CollectErrors, 1},
		{"exit 0", s.ExitCodes[0], 2},
		{"exit 2", s.ExitCodes[2], 1},
		{"exit codes", len(s.ExitCodes), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
			}
		})
	}

	if s.DurationMax != 3*time.Second || s.Slowest != "crash" {
		t.Errorf("max = %v (%s)", s.DurationMax, s.Slowest)
	}
	if !s.AnyFailed() {
		t.Error("AnyFailed() = false")
	}
}

func TestAggregator_Percentiles(t *testing.T) {
	a := NewAggregator()
	for i := 1; i <= 100; i++ {
		a.RecordTask(TaskSample{Duration: time.Duration(i) * time.Millisecond})
	}

	s := a.Snapshot()
	if s.DurationP50 < 45*time.Millisecond || s.DurationP50 > 55*time.Millisecond {
		t.Errorf("P50 = %v, want ~50ms", s.DurationP50)
	}
	if s.DurationP99 < 90*time.Millisecond || s.DurationP99 > 105*time.Millisecond {
		t.Errorf("P99 = %v, want ~99ms", s.DurationP99)
	}
	if s.DurationP50 > s.DurationP95 || s.DurationP95 > s.DurationP99 {
		t.Errorf("percentiles not monotonic: %v %v %v", s.DurationP50, s.DurationP95, s.DurationP99)
	}
}

func TestAggregator_GroupsAndSequences(t *testing.T) {
	a := NewAggregator()
	a.RecordSpawnError()
	a.RecordGroup(false)
	a.RecordGroup(true)
	a.RecordSequence(false, 0)
	a.RecordSequence(true, 3)

	s := a.Snapshot()
	if s.SpawnErrors != 1 || s.Groups != 2 || s.GroupsFailed != 1 {
		t.Errorf("groups: %+v", s)
	}
	if s.Sequences != 2 || s.SequencesStopped != 1 || s.GroupsSkipped != 3 {
		t.Errorf("sequences: %+v", s)
	}
	if !s.AnyFailed() {
		t.Error("spawn error not counted as failure")
	}
}

func TestAggregator_SnapshotIsCopy(t *testing.T) {
	a := NewAggregator()
	a.RecordPatterns(map[string]int{"panic:": 1})
	s := a.Snapshot()
	a.RecordPatterns(map[string]int{"panic:": 1})

	if s.StderrPatterns["panic:"] != 1 {
		t.Error("snapshot shares the pattern map")
	}
}

func TestAggregator_ThreadSafety(t *testing.T) {
	a := NewAggregator()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.RecordTask(TaskSample{Duration: time.Millisecond})
				a.RecordTerminated()
				_ = a.Snapshot()
			}
		}()
	}
	wg.Wait()

	if s := a.Snapshot(); s.Tasks != 800 || s.Terminated != 800 {
		t.Errorf("tasks=%d terminated=%d", s.Tasks, s.Terminated)
	}
}
