// Package executor runs package manager subprocesses and captures their output.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"unipkg/internal/logging"
	"unipkg/pkg/manager"
)

// Stream identifies which output stream a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// Line is one line of subprocess output.
type Line struct {
	Stream Stream
	Text   string
}

// Command describes one subprocess invocation.
type Command struct {
	Name    string
	Args    []string
	Env     []string // appended to the inherited environment
	Sudo    bool     // run through sudo when not root
	Timeout time.Duration
	Logger  logging.Logger // receives output lines as they arrive
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Outcome is the captured result of a finished subprocess.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Lines    []Line // both streams in arrival order
	Duration time.Duration
	TimedOut bool
	Signaled bool // terminated by a signal that was not ours
}

// Runner executes commands. A non-zero exit code is not an error; errors
// are reserved for commands that could not be started
// (*manager.CommandExecutionError) or that exceeded their time budget
// (*manager.TimeoutError).
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Outcome, error)
}

const (
	// waitDelay bounds how long we wait for output pipes after the process
	// exits or is killed.
	waitDelay = 5 * time.Second

	// killGrace is how long a timed out process group gets between SIGTERM
	// and SIGKILL.
	killGrace = 2 * time.Second
)

// Executor is the os/exec backed Runner. Each command runs in its own
// process group; a timeout terminates the whole group.
type Executor struct {
	killGrace time.Duration
	isRoot    func() bool
	hasSudo   func() bool
}

// New creates an Executor that escalates with "sudo -n".
func New() *Executor {
	return &Executor{
		killGrace: killGrace,
		isRoot:    IsRoot,
		hasSudo:   HasSudo,
	}
}

// Run executes the command and blocks until it exits or times out.
func (e *Executor) Run(ctx context.Context, c Command) (*Outcome, error) {
	log := c.Logger
	if log == nil {
		log = logging.Nop()
	}

	name, args := c.Name, c.Args
	if c.Sudo {
		name, args = e.elevate(name, args)
	}
	display := strings.TrimSpace(name + " " + strings.Join(args, " "))

	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	// Output parsing relies on untranslated messages.
	cmd.Env = append(os.Environ(), "LC_ALL=C", "LANG=C")
	cmd.Env = append(cmd.Env, c.Env...)
	cmd.WaitDelay = waitDelay
	killer := newGroupKiller(cmd, e.killGrace)

	capture := &capture{log: log}
	cmd.Stdout = capture.writer(Stdout)
	cmd.Stderr = capture.writer(Stderr)

	log.Log(logging.LevelDebug, "$ "+display)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return nil, &manager.TimeoutError{Command: display, Err: ctxErr}
		}
		return nil, &manager.CommandExecutionError{Command: display, Err: err}
	}

	err := cmd.Wait()
	elapsed := time.Since(start)
	killer.reap()
	capture.flush()

	if ctxErr := runCtx.Err(); ctxErr != nil {
		log.Log(logging.LevelWarn, fmt.Sprintf("%s killed after %s", c.Name, elapsed.Round(time.Millisecond)))
		timeout := c.Timeout
		if !errors.Is(ctxErr, context.DeadlineExceeded) {
			timeout = 0
		}
		return nil, &manager.TimeoutError{
			Command: display,
			Timeout: timeout,
			Elapsed: elapsed,
			Err:     ctxErr,
		}
	}

	out := capture.outcome()
	out.Duration = elapsed

	var exitErr *exec.ExitError
	switch {
	case err == nil, errors.Is(err, exec.ErrWaitDelay):
		out.ExitCode = cmd.ProcessState.ExitCode()
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
		if out.ExitCode == -1 {
			out.Signaled = true
		}
	default:
		return nil, &manager.CommandExecutionError{Command: display, Err: err}
	}

	log.Log(logging.LevelDebug, fmt.Sprintf("%s exited with %d in %s", c.Name, out.ExitCode, elapsed.Round(time.Millisecond)))
	return out, nil
}

// capture collects both streams line by line, forwarding each complete line
// to the logger as soon as it is written.
type capture struct {
	mu     sync.Mutex
	log    logging.Logger
	stdout bytes.Buffer
	stderr bytes.Buffer
	lines  []Line
	parts  [2][]byte
}

type streamWriter struct {
	c      *capture
	stream Stream
}

func (c *capture) writer(s Stream) *streamWriter {
	return &streamWriter{c: c, stream: s}
}

func (w *streamWriter) Write(p []byte) (int, error) {
	c := w.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if w.stream == Stdout {
		c.stdout.Write(p)
	} else {
		c.stderr.Write(p)
	}

	buf := append(c.parts[w.stream], p...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		c.emit(w.stream, string(buf[:i]))
		buf = buf[i+1:]
	}
	c.parts[w.stream] = append([]byte(nil), buf...)
	return len(p), nil
}

// emit must be called with c.mu held.
func (c *capture) emit(s Stream, text string) {
	text = strings.TrimRight(text, "\r")
	c.lines = append(c.lines, Line{Stream: s, Text: text})

	level := logging.LevelInfo
	if s == Stderr {
		level = logging.LevelWarn
	}
	c.log.Log(level, text)
}

func (c *capture) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.parts {
		if len(c.parts[s]) > 0 {
			c.emit(Stream(s), string(c.parts[s]))
			c.parts[s] = nil
		}
	}
}

func (c *capture) outcome() *Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Outcome{
		Stdout: c.stdout.String(),
		Stderr: c.stderr.String(),
		Lines:  append([]Line(nil), c.lines...),
	}
}
