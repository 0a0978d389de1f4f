package process

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeScript writes an executable shell script to dir/name.
func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestExecRunner_BuildCommand(t *testing.T) {
	parent := t.TempDir()
	writeScript(t, filepath.Join(parent, "a"), "run.sh", `echo "$@"`)

	r := NewExecRunner([]string{"GROUP_TEST=1"})
	cmd, err := r.BuildCommand(context.Background(), parent, "a", "run.sh", []string{"x", "y"})
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}
	if cmd.Dir != filepath.Join(parent, "a") {
		t.Errorf("Dir = %q", cmd.Dir)
	}
	if got := strings.Join(cmd.Args[1:], " "); got != "x y" {
		t.Errorf("Args = %q", cmd.Args)
	}
	found := false
	for _, e := range cmd.Env {
		if e == "GROUP_TEST=1" {
			found = true
		}
	}
	if !found {
		t.Error("extra env not set")
	}
}

func TestExecRunner_Errors(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "a")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plain.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		taskID string
	}{
		{"missing", "nope.sh"},
		{"not executable", "plain.txt"},
		{"directory", "."},
	}

	r := NewExecRunner(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.BuildCommand(context.Background(), parent, "a", tt.taskID, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExecRunner_CommandString(t *testing.T) {
	got := NewExecRunner(nil).CommandString("/p", "s", "t.sh", []string{"--fast"})
	if got != "(cd /p/s && /p/s/t.sh --fast)" {
		t.Errorf("CommandString() = %q", got)
	}
}
