package process

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// PackageInfo is the subset of `go list -json` output the runner needs.
type PackageInfo struct {
	Dir        string `json:"Dir"`
	ImportPath string `json:"ImportPath"`
	Name       string `json:"Name"`
	Error      *struct {
		Err string `json:"Err"`
	} `json:"Error,omitempty"`
}

// ProbeMain uses `go list` to check that target in dir is a main package
// under the given build tags.
func (r *GoRunner) ProbeMain(ctx context.Context, dir, target string, options []string) error {
	pkg, err := r.probe(ctx, dir, target, options)
	if err != nil {
		return err
	}
	if pkg.Error != nil {
		return fmt.Errorf("go list %s: %s", target, pkg.Error.Err)
	}
	if pkg.Name != "main" {
		return fmt.Errorf("%s in %s is package %q, not a command", target, dir, pkg.Name)
	}
	return nil
}

// probe executes go list and returns the package information.
func (r *GoRunner) probe(ctx context.Context, dir, target string, options []string) (*PackageInfo, error) {
	args := []string{"list", "-e", "-json"}
	if tags := buildTags(options); tags != "" {
		args = append(args, "-tags", tags)
	}
	args = append(args, target)

	cmd := exec.CommandContext(ctx, r.config.GoPath, args...)
	cmd.Dir = dir
	cmd.Env = r.env()

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("go list failed: %w", err)
	}

	return parsePackageInfo(output)
}

// parsePackageInfo decodes go list -json output for a single package.
func parsePackageInfo(data []byte) (*PackageInfo, error) {
	var info PackageInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse go list output: %w", err)
	}
	return &info, nil
}

// GoAvailable checks if the go binary is available.
func GoAvailable(goPath string) bool {
	_, err := exec.LookPath(goPath)
	return err == nil
}
