// Package native implements the system package managers (pacman, apt, dnf).
package native

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"unipkg/internal/config"
	"unipkg/internal/executor"
	"unipkg/internal/logging"
	"unipkg/pkg/manager"
)

// BaseManager provides common functionality for all package manager backends.
type BaseManager struct {
	name        string
	displayName string
	binary      string
	managerType manager.ManagerType
	needsSudo   bool
	supported   manager.OperationSet
	runner      executor.Runner
	log         logging.Logger
	timeout     time.Duration
}

// NewBaseManager creates a new BaseManager supporting every operation.
func NewBaseManager(name, displayName, binary string, needsSudo bool) *BaseManager {
	return &BaseManager{
		name:        name,
		displayName: displayName,
		binary:      binary,
		managerType: manager.TypeNative,
		needsSudo:   needsSudo,
		supported:   manager.NewOperationSet(manager.AllOperations...),
		runner:      executor.New(),
		log:         logging.Nop(),
		timeout:     config.DefaultTimeout,
	}
}

// Name returns the short identifier for this manager.
func (b *BaseManager) Name() string {
	return b.name
}

// DisplayName returns the human-readable name.
func (b *BaseManager) DisplayName() string {
	return b.displayName
}

// Type returns the manager type.
func (b *BaseManager) Type() manager.ManagerType {
	return b.managerType
}

// SetType changes the manager category.
func (b *BaseManager) SetType(t manager.ManagerType) {
	b.managerType = t
}

// IsAvailable returns true if this package manager is installed.
func (b *BaseManager) IsAvailable() bool {
	_, err := exec.LookPath(b.binary)
	return err == nil
}

// NeedsSudo returns true if this manager requires root privileges.
func (b *BaseManager) NeedsSudo() bool {
	return b.needsSudo
}

// SetNeedsSudo overrides privilege escalation for mutations.
func (b *BaseManager) SetNeedsSudo(needsSudo bool) {
	b.needsSudo = needsSudo
}

// Binary returns the primary binary name for this manager.
func (b *BaseManager) Binary() string {
	return b.binary
}

// SetBinary changes the binary to use.
func (b *BaseManager) SetBinary(binary string) {
	b.binary = binary
}

// Supports reports whether op is in the supported set.
func (b *BaseManager) Supports(op manager.Operation) bool {
	return b.supported[op]
}

// SetSupported replaces the supported operation set.
func (b *BaseManager) SetSupported(ops manager.OperationSet) {
	b.supported = ops
}

// Runner returns the command runner.
func (b *BaseManager) Runner() executor.Runner {
	return b.runner
}

// SetRunner sets the command runner.
func (b *BaseManager) SetRunner(r executor.Runner) {
	b.runner = r
}

// SetLogger sets the handle subprocess output is streamed to.
func (b *BaseManager) SetLogger(l logging.Logger) {
	if l == nil {
		l = logging.Nop()
	}
	b.log = l
}

// SetTimeout bounds every subprocess started by this backend.
func (b *BaseManager) SetTimeout(d time.Duration) {
	b.timeout = d
}

func (b *BaseManager) checkSupported(op manager.Operation) error {
	if !b.Supports(op) {
		return &manager.UnsupportedOperationError{Backend: b.name, Operation: op}
	}
	return nil
}

// runTool runs an arbitrary executable with this backend's timeout and logger.
func (b *BaseManager) runTool(ctx context.Context, opts manager.Options, name string, args, env []string, sudo bool) (*executor.Outcome, error) {
	return b.runner.Run(ctx, executor.Command{
		Name:    name,
		Args:    args,
		Env:     env,
		Sudo:    sudo,
		Timeout: b.timeout,
		Logger:  b.log.WithTask(opts.TaskID),
	})
}

// inventory is the installed state reported by a backend's query command.
type inventory struct {
	versions map[string]string
	exitCode int
}

func (inv *inventory) has(name string) bool {
	_, ok := inv.versions[name]
	return ok
}

// queryFunc lists installed versions for names, or everything when names is empty.
type queryFunc func(ctx context.Context, opts manager.Options, names []string) (*inventory, error)

// transaction describes one mutating operation of a backend.
type transaction struct {
	op    manager.Operation
	specs []manager.PackageSpec
	opts  manager.Options
	args  func(targets []manager.PackageSpec) []string
	env   []string
	rules *ruleSet
	query queryFunc
}

const (
	msgUndetermined = "outcome undetermined from output"
	msgAborted      = "not attempted: transaction aborted"
	msgNotInstalled = "not installed"
)

// transact runs a mutating operation: pre-check installed state, run the
// backend for the packages that need it, interpret its output and resolve
// whatever the output left open with a post-check.
func (b *BaseManager) transact(ctx context.Context, tx transaction) (*manager.OperationResult, error) {
	if err := b.checkSupported(tx.op); err != nil {
		return nil, err
	}
	req := manager.OperationRequest{Kind: tx.op, Packages: tx.specs, Options: tx.opts}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	pre, err := tx.query(ctx, tx.opts, req.Names())
	if err != nil {
		return nil, err
	}

	decided := make(map[string]manager.PackageOutcome, len(tx.specs))
	var targets []manager.PackageSpec
	for _, spec := range tx.specs {
		name := spec.Name()
		version, present := pre.versions[name]

		switch {
		case !present && tx.op != manager.OpInstall:
			decided[name] = manager.PackageOutcome{Name: name, Status: manager.StatusNotFound, Message: msgNotInstalled}
		case present && tx.op == manager.OpInstall && !tx.opts.Reinstall && satisfied(spec, version):
			decided[name] = manager.PackageOutcome{Name: name, Status: manager.StatusAlreadyPresent, Version: version}
		default:
			targets = append(targets, spec)
		}
	}

	exitCode := 0
	if len(targets) > 0 {
		out, err := b.runTool(ctx, tx.opts, b.binary, tx.args(targets), tx.env, b.needsSudo)
		if err != nil {
			return nil, err
		}
		exitCode = out.ExitCode

		names := make([]string, len(targets))
		for i, t := range targets {
			names[i] = t.Name()
		}
		sc, err := tx.rules.interpret(b.name, tx.op, names, out)
		if err != nil {
			return nil, err
		}

		if err := b.resolve(ctx, tx, names, pre, sc, out.ExitCode, decided); err != nil {
			return nil, err
		}
	}

	outcomes := make([]manager.PackageOutcome, len(tx.specs))
	for i, spec := range tx.specs {
		outcomes[i] = decided[spec.Name()]
	}

	return manager.NewResult(tx.op, b.name, outcomes, exitCode, time.Since(start)), nil
}

// resolve turns scan verdicts into outcomes and settles packages the output
// did not mention.
func (b *BaseManager) resolve(ctx context.Context, tx transaction, names []string, pre *inventory, sc *scan, exitCode int, decided map[string]manager.PackageOutcome) error {
	var open []string
	for _, name := range names {
		if v, ok := sc.verdicts[name]; ok {
			decided[name] = manager.PackageOutcome{Name: name, Status: v.status, Message: v.message}
			continue
		}
		open = append(open, name)
	}

	if len(open) > 0 && exitCode == 0 && sc.batch == nil {
		post, err := tx.query(ctx, tx.opts, open)
		if err != nil {
			return err
		}

		var still []string
		for _, name := range open {
			switch {
			case tx.op == manager.OpRemove && !post.has(name):
				decided[name] = manager.PackageOutcome{Name: name, Status: manager.StatusRemoved}
			case tx.op != manager.OpRemove && post.has(name):
				status := manager.StatusInstalled
				if pre.has(name) && pre.versions[name] == post.versions[name] {
					status = manager.StatusAlreadyPresent
				}
				decided[name] = manager.PackageOutcome{Name: name, Status: status, Version: post.versions[name]}
			default:
				still = append(still, name)
			}
		}
		open = still
	}

	for _, name := range open {
		switch {
		case sc.batch != nil:
			decided[name] = manager.PackageOutcome{Name: name, Status: sc.batch.status, Message: sc.batch.message}
		case exitCode != 0 && sc.anyNegative(tx.op):
			decided[name] = manager.PackageOutcome{Name: name, Status: manager.StatusSkipped, Message: msgAborted}
		default:
			msg := msgUndetermined
			if exitCode != 0 {
				msg = fmt.Sprintf("%s (exit %d)", msgUndetermined, exitCode)
			}
			decided[name] = manager.PackageOutcome{Name: name, Status: manager.StatusFailed, Message: msg}
		}
	}

	// Packages the output marked positive keep the version we know of.
	for _, name := range names {
		o := decided[name]
		if o.Version == "" && o.Status == manager.StatusAlreadyPresent {
			o.Version = pre.versions[name]
			decided[name] = o
		}
	}
	return nil
}

// lookup answers a query operation from the backend's inventory.
func (b *BaseManager) lookup(ctx context.Context, specs []manager.PackageSpec, opts manager.Options, query queryFunc) (*manager.OperationResult, error) {
	if err := b.checkSupported(manager.OpQuery); err != nil {
		return nil, err
	}
	req := manager.OperationRequest{Kind: manager.OpQuery, Packages: specs, Options: opts}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	inv, err := query(ctx, opts, req.Names())
	if err != nil {
		return nil, err
	}

	var outcomes []manager.PackageOutcome
	if len(specs) == 0 {
		names := make([]string, 0, len(inv.versions))
		for name := range inv.versions {
			names = append(names, name)
		}
		sort.Strings(names)
		outcomes = make([]manager.PackageOutcome, 0, len(names))
		for _, name := range names {
			outcomes = append(outcomes, manager.PackageOutcome{Name: name, Status: manager.StatusInstalled, Version: inv.versions[name]})
		}
		return manager.NewResult(manager.OpQuery, b.name, outcomes, inv.exitCode, time.Since(start)), nil
	}

	outcomes = make([]manager.PackageOutcome, 0, len(specs))
	for _, spec := range specs {
		name := spec.Name()
		version, ok := inv.versions[name]
		o := manager.PackageOutcome{Name: name, Version: version}
		switch {
		case !ok:
			o.Status = manager.StatusNotFound
			o.Message = msgNotInstalled
		case !satisfied(spec, version):
			o.Status = manager.StatusFailed
			o.Message = fmt.Sprintf("installed version %s does not satisfy %s%s", version, spec.Operator(), spec.Version())
		default:
			o.Status = manager.StatusInstalled
		}
		outcomes = append(outcomes, o)
	}
	return manager.NewResult(manager.OpQuery, b.name, outcomes, inv.exitCode, time.Since(start)), nil
}

// installed answers IsInstalled from the backend's inventory.
func (b *BaseManager) installed(ctx context.Context, name string, query queryFunc) (bool, error) {
	spec, err := manager.NewPackageSpec(name, "")
	if err != nil {
		return false, err
	}
	if err := b.checkSupported(manager.OpQuery); err != nil {
		return false, err
	}
	inv, err := query(ctx, manager.Options{}, []string{spec.Name()})
	if err != nil {
		return false, err
	}
	return inv.has(spec.Name()), nil
}

// satisfied treats an uncomparable version as not satisfying the constraint
// so the backend gets to decide.
func satisfied(spec manager.PackageSpec, version string) bool {
	ok, err := spec.Satisfies(version)
	return err == nil && ok
}
