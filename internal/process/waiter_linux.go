//go:build linux

package process

import (
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"
)

// pidWaiter peeks at the child's state with waitid(WNOWAIT), leaving the
// zombie in place for cmd.Wait to reap and to finish copying output.
type pidWaiter struct {
	cmd *exec.Cmd
}

func newWaiter(cmd *exec.Cmd) waiter {
	return &pidWaiter{cmd: cmd}
}

func (w *pidWaiter) ready() (bool, error) {
	for {
		var info unix.Siginfo
		err := unix.Waitid(unix.P_PID, w.cmd.Process.Pid, &info, unix.WEXITED|unix.WNOHANG|unix.WNOWAIT, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("waitid: %w", err)
		}
		// With WNOHANG and nothing to report the kernel leaves info zeroed.
		return info.Signo == int32(unix.SIGCHLD), nil
	}
}

func (w *pidWaiter) wait() error {
	return w.cmd.Wait()
}
