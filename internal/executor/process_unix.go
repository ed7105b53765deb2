//go:build unix

package executor

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// setProcGroup starts the command in its own process group.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalProcGroup delivers sig to every process in the command's group.
// sudo relays SIGTERM to the command it runs but cannot relay SIGKILL.
func signalProcGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

// groupKiller terminates a process group with SIGTERM and escalates to
// SIGKILL once grace has passed.
type groupKiller struct {
	cmd   *exec.Cmd
	grace time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func newGroupKiller(cmd *exec.Cmd, grace time.Duration) *groupKiller {
	k := &groupKiller{cmd: cmd, grace: grace}
	setProcGroup(cmd)
	cmd.Cancel = k.terminate
	return k
}

func (k *groupKiller) terminate() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.timer == nil {
		k.timer = time.AfterFunc(k.grace, func() {
			_ = signalProcGroup(k.cmd, syscall.SIGKILL)
		})
	}
	return signalProcGroup(k.cmd, syscall.SIGTERM)
}

// reap kills whatever is left in a terminated group and disarms the
// escalation. It is a no-op when terminate was never called.
func (k *groupKiller) reap() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.timer == nil {
		return
	}
	k.timer.Stop()
	_ = signalProcGroup(k.cmd, syscall.SIGKILL)
}
