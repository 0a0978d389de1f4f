//go:build unix

package process

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the task in its own process group so that a
// teardown also reaches anything it forked.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessGroup sends SIGKILL to the task's process group, falling back
// to the process alone.
func killProcessGroup(cmd *exec.Cmd) error {
	pid := cmd.Process.Pid
	if pgid, err := unix.Getpgid(pid); err == nil && pgid == pid {
		if err := unix.Kill(-pgid, unix.SIGKILL); err == nil || err == unix.ESRCH {
			return nil
		}
	}
	return cmd.Process.Kill()
}
