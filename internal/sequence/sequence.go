// Package sequence runs groups one after another, and several such
// sequences in parallel.
package sequence

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/randomizedcoder/go-parallel-groups/internal/group"
)

// End says how a sequence reacts to the failure of a parallel peer sequence.
type End int

const (
	// ContinueRegardlessOfOthers keeps going while this sequence's own
	// groups succeed.
	ContinueRegardlessOfOthers End = iota

	// StopOnOthersFailure starts no further group once any peer failed.
	StopOnOthersFailure
)

func (e End) String() string {
	switch e {
	case ContinueRegardlessOfOthers:
		return "continue"
	case StopOnOthersFailure:
		return "stop"
	default:
		return "unknown"
	}
}

// ParseEnd parses "continue" or "stop".
func ParseEnd(s string) (End, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continue", "":
		return ContinueRegardlessOfOthers, nil
	case "stop":
		return StopOnOthersFailure, nil
	default:
		return 0, fmt.Errorf("unknown sequence end %q (want continue or stop)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *End) UnmarshalText(text []byte) error {
	v, err := ParseEnd(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Step is one group of a sequence.
type Step[M any] struct {
	End   group.End
	Tasks []group.Task[M]
}

// Sequence is an ordered list of groups.
type Sequence[M any] struct {
	Name            string
	OnOthersFailure End
	Steps           []Step[M]
}

// SingleTasks builds a sequence that runs one task per feature set, one at
// a time, all with the same subdir and ID.
func SingleTasks[M any](name, subdir, id string, featureSets [][]string, end group.End) Sequence[M] {
	seq := Sequence[M]{Name: name}
	for _, features := range featureSets {
		seq.Steps = append(seq.Steps, Step[M]{
			End: end,
			Tasks: []group.Task[M]{{
				Subdir:      subdir,
				ID:          id,
				Options:     features,
				Description: Describe(subdir, id, features),
			}},
		})
	}
	return seq
}

// Describe is the default task description: "subdir:id [opt,opt]".
func Describe(subdir, id string, features []string) string {
	if len(features) == 0 {
		return subdir + ":" + id
	}
	return subdir + ":" + id + " [" + strings.Join(features, ",") + "]"
}

// Flag is the failure signal shared by parallel sequences.
type Flag struct {
	failed atomic.Bool
}

// Set marks that some sequence failed.
func (f *Flag) Set() {
	if f != nil {
		f.failed.Store(true)
	}
}

// IsSet reports whether any sequence failed.
func (f *Flag) IsSet() bool {
	return f != nil && f.failed.Load()
}
