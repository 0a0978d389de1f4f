//go:build !linux

package process

import "os/exec"

// chanWaiter runs cmd.Wait in one goroutine and records when it returns.
type chanWaiter struct {
	done chan struct{}
	err  error
}

func newWaiter(cmd *exec.Cmd) waiter {
	w := &chanWaiter{done: make(chan struct{})}
	go func() {
		w.err = cmd.Wait()
		close(w.done)
	}()
	return w
}

func (w *chanWaiter) ready() (bool, error) {
	select {
	case <-w.done:
		return true, nil
	default:
		return false, nil
	}
}

func (w *chanWaiter) wait() error {
	<-w.done
	return w.err
}
