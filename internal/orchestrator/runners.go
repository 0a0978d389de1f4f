package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randomizedcoder/go-parallel-groups/internal/config"
	"github.com/randomizedcoder/go-parallel-groups/internal/group"
	"github.com/randomizedcoder/go-parallel-groups/internal/sequence"
)

// runnerSet is a sequence.GroupRunner that keeps one group.Runner per
// sequence, so that callbacks know which sequence an event belongs to.
type runnerSet struct {
	spawner       group.Spawner
	logger        *slog.Logger
	pollInterval  time.Duration
	maxScanErrors int
	tracker       *tracker

	mu      sync.Mutex
	runners map[string]*group.Runner[config.Meta]
}

var _ sequence.GroupRunner[config.Meta] = (*runnerSet)(nil)

func newRunnerSet(spawner group.Spawner, logger *slog.Logger, cfg *config.Config, t *tracker) *runnerSet {
	return &runnerSet{
		spawner:       spawner,
		logger:        logger,
		pollInterval:  cfg.PollInterval,
		maxScanErrors: cfg.MaxScanErrors,
		tracker:       t,
		runners:       make(map[string]*group.Runner[config.Meta]),
	}
}

// Run runs one group with the runner of the sequence its tasks belong to.
func (s *runnerSet) Run(ctx context.Context, tasks []group.Task[config.Meta], parentDir string, end group.End) (*group.Report[config.Meta], error) {
	seq := config.DefaultSequence
	if len(tasks) > 0 {
		seq = tasks[0].Meta.Sequence
	}

	report, err := s.runner(seq).Run(ctx, tasks, parentDir, end)
	if report != nil {
		s.tracker.groupDone(report)
	}
	return report, err
}

func (s *runnerSet) runner(seq string) *group.Runner[config.Meta] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.runners[seq]; ok {
		return r
	}
	r := group.NewRunner(group.Config[config.Meta]{
		Spawner:       s.spawner,
		Logger:        s.logger.With("sequence", seq),
		PollInterval:  s.pollInterval,
		MaxScanErrors: s.maxScanErrors,
		Callbacks:     s.tracker.callbacks(seq),
	})
	s.runners[seq] = r
	return r
}
