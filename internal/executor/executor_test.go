package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unipkg/internal/logging"
	"unipkg/pkg/manager"
)

// recordingLogger keeps every line it receives.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
	task  string
}

func (r *recordingLogger) Log(level logging.Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, r.task+msg)
}

func (r *recordingLogger) WithTask(id string) logging.Logger {
	return &recordingLogger{task: "[" + id + "] "}
}

func (r *recordingLogger) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func TestRunCapturesOutput(t *testing.T) {
	exec := New()

	out, err := exec.Run(context.Background(), Command{Name: "echo", Args: []string{"hello"}, Timeout: 5 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "hello\n", out.Stdout)
	require.Len(t, out.Lines, 1)
	assert.Equal(t, Line{Stream: Stdout, Text: "hello"}, out.Lines[0])
	assert.False(t, out.TimedOut)
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	exec := New()

	out, err := exec.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo 'error: target not found: nope' >&2; exit 1"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, out.ExitCode)
	assert.Equal(t, "error: target not found: nope\n", out.Stderr)
	require.Len(t, out.Lines, 1)
	assert.Equal(t, Stderr, out.Lines[0].Stream)
}

func TestRunMissingBinary(t *testing.T) {
	exec := New()

	out, err := exec.Run(context.Background(), Command{Name: "definitely-not-a-package-manager-xyz"})
	assert.Nil(t, out)

	var execErr *manager.CommandExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, manager.ErrCommandExecution)
	assert.True(t, manager.IsManagerError(err))
}

func TestRunTimeout(t *testing.T) {
	exec := New()

	start := time.Now()
	out, err := exec.Run(context.Background(), Command{
		Name:    "sleep",
		Args:    []string{"10"},
		Timeout: 200 * time.Millisecond,
	})
	assert.Nil(t, out)
	assert.Less(t, time.Since(start), 8*time.Second)

	var timeoutErr *manager.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 200*time.Millisecond, timeoutErr.Timeout)
	assert.ErrorIs(t, err, manager.ErrTimeout)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	exec := New()
	pidFile := filepath.Join(t.TempDir(), "pid")

	start := time.Now()
	_, err := exec.Run(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "sleep 30 & echo $! > " + pidFile + "; wait"},
		Timeout: 300 * time.Millisecond,
	})
	require.ErrorIs(t, err, manager.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !processAlive(pid)
	}, 2*time.Second, 20*time.Millisecond, "background sleep %d survived the timeout", pid)
}

// processAlive reports whether pid exists and is not a zombie.
func processAlive(pid int) bool {
	if errors.Is(syscall.Kill(pid, 0), syscall.ESRCH) {
		return false
	}
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return !os.IsNotExist(err)
	}
	// The state follows the parenthesized command name.
	if i := strings.LastIndexByte(string(stat), ')'); i >= 0 && i+2 < len(stat) {
		return stat[i+2] != 'Z'
	}
	return true
}

func TestRunTimeoutEscalatesToKill(t *testing.T) {
	exec := New()
	exec.killGrace = 200 * time.Millisecond

	start := time.Now()
	_, err := exec.Run(context.Background(), Command{
		Name:    "sh",
		Args:    []string{"-c", "trap '' TERM; sleep 30"},
		Timeout: 200 * time.Millisecond,
	})
	require.ErrorIs(t, err, manager.ErrTimeout)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestContextCancellation(t *testing.T) {
	exec := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Run(ctx, Command{Name: "sleep", Args: []string{"10"}})
	assert.ErrorIs(t, err, manager.ErrTimeout)
}

func TestRunStreamsLinesToLogger(t *testing.T) {
	exec := New()
	log := &recordingLogger{}
	tagged := log.WithTask("step-1").(*recordingLogger)

	_, err := exec.Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "echo one; echo two; printf three"},
		Logger: tagged,
	})
	require.NoError(t, err)

	var output []string
	for _, l := range tagged.snapshot() {
		if !strings.HasPrefix(l, "[step-1] $") && !strings.Contains(l, "exited with") {
			output = append(output, l)
		}
	}
	assert.Equal(t, []string{"[step-1] one", "[step-1] two", "[step-1] three"}, output)
}

func TestRunForcesCLocale(t *testing.T) {
	exec := New()

	out, err := exec.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo $LC_ALL"}})
	require.NoError(t, err)
	assert.Equal(t, "C\n", out.Stdout)
}

func TestRunExtraEnv(t *testing.T) {
	exec := New()

	out, err := exec.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo $DEBIAN_FRONTEND"},
		Env:  []string{"DEBIAN_FRONTEND=noninteractive"},
	})
	require.NoError(t, err)
	assert.Equal(t, "noninteractive\n", out.Stdout)
}

func TestElevate(t *testing.T) {
	tests := []struct {
		name     string
		root     bool
		sudo     bool
		wantName string
		wantArgs []string
	}{
		{"root runs directly", true, true, "pacman", []string{"-S", "git"}},
		{"sudo available", false, true, "sudo", []string{"-n", "pacman", "-S", "git"}},
		{"no sudo runs directly", false, false, "pacman", []string{"-S", "git"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			e.isRoot = func() bool { return tt.root }
			e.hasSudo = func() bool { return tt.sudo }

			name, args := e.elevate("pacman", []string{"-S", "git"})
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestIsRoot(t *testing.T) {
	// CanElevate must hold whenever IsRoot does
	if IsRoot() && !CanElevate() {
		t.Error("CanElevate() should be true when running as root")
	}
	_, err := exec.LookPath("sudo")
	assert.Equal(t, err == nil, HasSudo())
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "apt-get", Args: []string{"install", "-y", "git"}}
	assert.Equal(t, "apt-get install -y git", c.String())
}
