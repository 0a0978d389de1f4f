package process

import (
	"context"
	"log/slog"

	"github.com/randomizedcoder/go-parallel-groups/internal/group"
)

// Spawner builds a task's command with a Runner and starts it.
// It implements group.Spawner.
type Spawner struct {
	runner Runner
	logger *slog.Logger
}

var _ group.Spawner = (*Spawner)(nil)

// NewSpawner creates a spawner for the given runner.
func NewSpawner(runner Runner, logger *slog.Logger) *Spawner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Spawner{runner: runner, logger: logger}
}

// Spawn builds and starts one task.
func (s *Spawner) Spawn(ctx context.Context, parentDir, subdir, taskID string, options []string) (group.Handle, error) {
	cmd, err := s.runner.BuildCommand(ctx, parentDir, subdir, taskID, options)
	if err != nil {
		s.logger.Error("failed_to_build_command",
			"runner", s.runner.Name(),
			"subdir", subdir,
			"task_id", taskID,
			"error", err,
		)
		return nil, err
	}

	h, err := Start(cmd, s.logger)
	if err != nil {
		s.logger.Error("failed_to_start_process",
			"subdir", subdir,
			"task_id", taskID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Debug("process_started",
		"pid", h.PID(),
		"subdir", subdir,
		"task_id", taskID,
		"options", options,
	)
	return h, nil
}
