package sequence

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/go-parallel-groups/internal/group"
)

// GroupRunner runs a single group to completion. *group.Runner satisfies it.
type GroupRunner[M any] interface {
	Run(ctx context.Context, tasks []group.Task[M], parentDir string, end group.End) (*group.Report[M], error)
}

// StopReason tells why a sequence did not run all of its groups.
type StopReason int

const (
	StopNone StopReason = iota
	StopGroupFailed
	StopPeerFailed
	StopError
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopGroupFailed:
		return "group_failed"
	case StopPeerFailed:
		return "peer_failed"
	case StopError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one sequence.
type Result[M any] struct {
	Name    string
	Reports []*group.Report[M]

	// Skipped counts groups that were never started.
	Skipped int

	StoppedBy StopReason
}

// Failed reports whether any group of the sequence failed.
func (r *Result[M]) Failed() bool {
	for _, rep := range r.Reports {
		if rep.Failed() {
			return true
		}
	}
	return r.StoppedBy == StopError
}

// Run runs the groups of seq in order.
//
// A failed group stops the sequence unless its end is EndProcessAll. A
// sequence with StopOnOthersFailure also stops before its next group once
// peers is set. Any failure of this sequence sets peers.
func Run[M any](ctx context.Context, runner GroupRunner[M], parentDir string, seq Sequence[M], peers *Flag, logger *slog.Logger) (*Result[M], error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("sequence", seq.Name)

	res := &Result[M]{Name: seq.Name}
	for i, step := range seq.Steps {
		if seq.OnOthersFailure == StopOnOthersFailure && peers.IsSet() {
			res.StoppedBy = StopPeerFailed
			res.Skipped = len(seq.Steps) - i
			logger.Warn("sequence_stopped", "reason", res.StoppedBy.String(), "skipped", res.Skipped)
			return res, nil
		}

		logger.Debug("sequence_group_starting", "group", i, "tasks", len(step.Tasks), "end", step.End.String())
		report, err := runner.Run(ctx, step.Tasks, parentDir, step.End)
		if report != nil {
			res.Reports = append(res.Reports, report)
		}
		if err != nil {
			peers.Set()
			res.StoppedBy = StopError
			res.Skipped = len(seq.Steps) - i - 1
			return res, err
		}

		if report.Failed() {
			peers.Set()
			if step.End != group.EndProcessAll {
				res.StoppedBy = StopGroupFailed
				res.Skipped = len(seq.Steps) - i - 1
				logger.Warn("sequence_stopped", "reason", res.StoppedBy.String(), "group", i, "skipped", res.Skipped)
				return res, nil
			}
		}
	}

	logger.Debug("sequence_done", "groups", len(res.Reports))
	return res, nil
}

// RunParallel runs every sequence concurrently, each with its own groups.
// Results are returned in the order of seqs. A returned error (not a task
// failure) cancels the context of the other sequences.
func RunParallel[M any](ctx context.Context, runner GroupRunner[M], parentDir string, seqs []Sequence[M], logger *slog.Logger) ([]*Result[M], error) {
	results := make([]*Result[M], len(seqs))
	var peers Flag

	g, gctx := errgroup.WithContext(ctx)
	for i, seq := range seqs {
		g.Go(func() error {
			res, err := Run(gctx, runner, parentDir, seq, &peers, logger)
			results[i] = res
			return err
		})
	}

	err := g.Wait()
	return results, err
}
