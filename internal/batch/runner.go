package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"unipkg/internal/logging"
	"unipkg/pkg/manager"
)

// DefaultJobs is the worker count used when neither the plan nor the caller
// sets one.
const DefaultJobs = 4

// Resolver picks the backend for a step from its preference list.
type Resolver func(preferred []string) (manager.Manager, error)

// StepResult is the outcome of one step. Exactly one of Result and Err is set.
type StepResult struct {
	Step    Step
	Backend string
	Result  *manager.OperationResult
	Err     error
}

// OK reports whether the step succeeded.
func (r StepResult) OK() bool {
	return r.Err == nil && r.Result != nil && r.Result.Success
}

// Runner executes plan steps concurrently.
type Runner struct {
	Resolve Resolver
	Jobs    int
	Options manager.Options
	Logger  logging.Logger

	// OnStart is called when a step begins running, from the worker goroutine.
	OnStart func(Step)
	// OnStep is called as each step finishes. Calls are serialized.
	OnStep func(StepResult)

	mu    sync.Mutex
	cbMu  sync.Mutex
	locks map[string]*sync.Mutex
}

// Run executes every step and returns the results in plan order. Steps
// never cancel each other; a cancelled ctx surfaces as a per-step error.
// Mutating steps that resolve to the same backend run one at a time since
// every supported backend holds a system-wide lock while it works.
func (r *Runner) Run(ctx context.Context, plan *Plan) []StepResult {
	jobs := r.Jobs
	if jobs <= 0 {
		jobs = plan.Jobs
	}
	if jobs <= 0 {
		jobs = DefaultJobs
	}

	log := r.Logger
	if log == nil {
		log = logging.Nop()
	}

	results := make([]StepResult, len(plan.Steps))

	var g errgroup.Group
	g.SetLimit(jobs)

	for i, step := range plan.Steps {
		g.Go(func() error {
			res := r.runStep(ctx, step, log.WithTask(step.ID))
			results[i] = res
			r.notify(res)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Runner) runStep(ctx context.Context, step Step, log logging.Logger) StepResult {
	out := StepResult{Step: step}

	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	m, err := r.Resolve(step.Backend)
	if err != nil {
		log.Log(logging.LevelError, err.Error())
		out.Err = err
		return out
	}
	out.Backend = m.Name()

	opts := r.Options
	opts.TaskID = step.ID
	opts.Reinstall = opts.Reinstall || step.Reinstall

	if step.Kind().Mutating() {
		lock := r.backendLock(manager.LockDomain(m))
		lock.Lock()
		defer lock.Unlock()
	}

	if r.OnStart != nil {
		r.OnStart(step)
	}
	log.Log(logging.LevelInfo, string(step.Kind())+" via "+m.Name())
	out.Result, out.Err = manager.Execute(ctx, m, manager.OperationRequest{
		Kind:     step.Kind(),
		Packages: step.Specs(),
		Options:  opts,
	})
	if out.Err != nil {
		log.Log(logging.LevelError, out.Err.Error())
	}
	return out
}

// backendLock returns the mutex for a lock domain.
func (r *Runner) backendLock(domain string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locks == nil {
		r.locks = make(map[string]*sync.Mutex)
	}
	l, ok := r.locks[domain]
	if !ok {
		l = &sync.Mutex{}
		r.locks[domain] = l
	}
	return l
}

func (r *Runner) notify(res StepResult) {
	if r.OnStep == nil {
		return
	}
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.OnStep(res)
}

// Failed returns the results of steps that did not succeed.
func Failed(results []StepResult) []StepResult {
	var failed []StepResult
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}
