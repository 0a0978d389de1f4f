package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/randomizedcoder/go-parallel-groups/internal/group"
	"github.com/randomizedcoder/go-parallel-groups/internal/process"
	"github.com/randomizedcoder/go-parallel-groups/internal/sequence"
)

// Meta is attached to every task built from the configuration.
type Meta struct {
	Sequence string
	Group    int // index of the group within its sequence
}

// Plan is the work to run: sequences of groups, run in parallel.
type Plan []sequence.Sequence[Meta]

// TaskCount returns the number of tasks across all sequences.
func (p Plan) TaskCount() int {
	n := 0
	for _, seq := range p {
		for _, step := range seq.Steps {
			n += len(step.Tasks)
		}
	}
	return n
}

// Concurrency returns the most tasks that can run at once: sequences run
// in parallel, each with one group at a time.
func (p Plan) Concurrency() int {
	n := 0
	for _, seq := range p {
		largest := 0
		for _, step := range seq.Steps {
			largest = max(largest, len(step.Tasks))
		}
		n += largest
	}
	return n
}

// planFile mirrors the TOML layout of a plan.
type planFile struct {
	Sequence []planSequence `toml:"sequence"`
}

type planSequence struct {
	Name            string       `toml:"name"`
	OnOthersFailure sequence.End `toml:"on_others_failure"`
	Group           []planGroup  `toml:"group"`
}

type planGroup struct {
	End  string     `toml:"end"`
	Task []planTask `toml:"task"`
}

type planTask struct {
	Subdir      string   `toml:"subdir"`
	ID          string   `toml:"id"`
	Options     []string `toml:"options"`
	Description string   `toml:"description"`
}

// LoadPlan reads a TOML plan file. Groups without an end policy get
// defaultEnd. Unknown keys are an error.
func LoadPlan(path string, defaultEnd group.End) (Plan, error) {
	var pf planFile
	md, err := toml.DecodeFile(path, &pf)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan %s: %w", path, err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return pf.build(defaultEnd)
}

// ParsePlan decodes a TOML plan from a string.
func ParsePlan(data string, defaultEnd group.End) (Plan, error) {
	var pf planFile
	md, err := toml.Decode(data, &pf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	return pf.build(defaultEnd)
}

func checkUndecoded(md toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, len(undecoded))
	for i, k := range undecoded {
		keys[i] = k.String()
	}
	return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
}

func (pf *planFile) build(defaultEnd group.End) (Plan, error) {
	var errs []error
	if len(pf.Sequence) == 0 {
		errs = append(errs, ValidationError{Field: "sequence", Message: "plan has no sequences"})
	}

	seen := make(map[string]bool)
	plan := make(Plan, 0, len(pf.Sequence))
	for si, ps := range pf.Sequence {
		name := ps.Name
		if name == "" {
			name = fmt.Sprintf("sequence-%d", si+1)
		}
		if seen[name] {
			errs = append(errs, ValidationError{Field: "sequence.name", Message: fmt.Sprintf("duplicate name %q", name)})
		}
		seen[name] = true

		seq := sequence.Sequence[Meta]{Name: name, OnOthersFailure: ps.OnOthersFailure}
		for gi, pg := range ps.Group {
			end := defaultEnd
			if pg.End != "" {
				parsed, err := group.ParseEnd(pg.End)
				if err != nil {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("%s.group[%d].end", name, gi),
						Message: err.Error(),
					})
				}
				end = parsed
			}

			step := sequence.Step[Meta]{End: end}
			for ti, pt := range pg.Task {
				if pt.Subdir == "" {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("%s.group[%d].task[%d].subdir", name, gi, ti),
						Message: "is required",
					})
					continue
				}
				step.Tasks = append(step.Tasks, newTask(pt.Subdir, pt.ID, pt.Options, pt.Description, Meta{Sequence: name, Group: gi}))
			}
			seq.Steps = append(seq.Steps, step)
		}
		plan = append(plan, seq)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return plan, nil
}

// DefaultSequence is the name of the sequence built from positional tasks.
const DefaultSequence = "default"

// TasksPlan builds a one-group plan from positional task arguments.
func TasksPlan(args []string, end group.End) (Plan, error) {
	step := sequence.Step[Meta]{End: end}
	var errs []error
	for _, arg := range args {
		task, err := ParseTaskArg(arg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		step.Tasks = append(step.Tasks, task)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return Plan{{Name: DefaultSequence, Steps: []sequence.Step[Meta]{step}}}, nil
}

// ParseTaskArg parses "subdir[:id[:opt,opt]]".
func ParseTaskArg(arg string) (group.Task[Meta], error) {
	parts := strings.SplitN(arg, ":", 3)
	subdir := strings.TrimSpace(parts[0])
	if subdir == "" {
		return group.Task[Meta]{}, ValidationError{Field: "task", Message: fmt.Sprintf("missing subdir in %q", arg)}
	}

	var id string
	if len(parts) > 1 {
		id = strings.TrimSpace(parts[1])
	}

	var options []string
	if len(parts) > 2 {
		for opt := range strings.SplitSeq(parts[2], ",") {
			if opt = strings.TrimSpace(opt); opt != "" {
				options = append(options, opt)
			}
		}
	}

	return newTask(subdir, id, options, "", Meta{Sequence: DefaultSequence}), nil
}

func newTask(subdir, id string, options []string, description string, meta Meta) group.Task[Meta] {
	if id == "" {
		id = process.MainBinary
	}
	if description == "" {
		description = sequence.Describe(subdir, id, options)
	}
	return group.Task[Meta]{
		Subdir:      subdir,
		ID:          id,
		Options:     options,
		Description: description,
		Meta:        meta,
	}
}
