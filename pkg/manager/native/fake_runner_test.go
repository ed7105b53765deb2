package native

import (
	"context"
	"strings"
	"sync"

	"unipkg/internal/executor"
)

type executorLine = executor.Line

// reply is one scripted subprocess result.
type reply struct {
	exit     int
	lines    []executorLine
	signaled bool
	err      error
}

func out(s string) executor.Line { return executor.Line{Stream: executor.Stdout, Text: s} }
func errl(s string) executor.Line {
	return executor.Line{Stream: executor.Stderr, Text: s}
}

func (r reply) outcome() *executor.Outcome {
	var stdout, stderr strings.Builder
	for _, l := range r.lines {
		if l.Stream == executor.Stdout {
			stdout.WriteString(l.Text + "\n")
		} else {
			stderr.WriteString(l.Text + "\n")
		}
	}
	return &executor.Outcome{
		ExitCode: r.exit,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Lines:    r.lines,
		Signaled: r.signaled,
	}
}

type route struct {
	prefix  string
	replies []reply
	served  int
}

// fakeRunner answers commands by the longest matching command line prefix.
// Each route serves its replies in order and repeats the last one.
type fakeRunner struct {
	mu     sync.Mutex
	routes []*route
	calls  []executor.Command
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{}
}

func (f *fakeRunner) on(prefix string, replies ...reply) *fakeRunner {
	f.routes = append(f.routes, &route{prefix: prefix, replies: replies})
	return f
}

func (f *fakeRunner) Run(ctx context.Context, c executor.Command) (*executor.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)

	var best *route
	line := c.String()
	for _, r := range f.routes {
		if strings.HasPrefix(line, r.prefix) && (best == nil || len(r.prefix) > len(best.prefix)) {
			best = r
		}
	}
	if best == nil {
		return &executor.Outcome{ExitCode: 127}, nil
	}

	i := best.served
	if i >= len(best.replies) {
		i = len(best.replies) - 1
	}
	best.served++
	r := best.replies[i]
	if r.err != nil {
		return nil, r.err
	}
	return r.outcome(), nil
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.calls))
	for i, c := range f.calls {
		lines[i] = c.String()
	}
	return lines
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
