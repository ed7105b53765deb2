// Package backends wires every supported package manager into a registry.
package backends

import (
	"fmt"
	"sort"
	"time"

	"unipkg/internal/config"
	"unipkg/internal/executor"
	"unipkg/internal/logging"
	"unipkg/pkg/manager"
	"unipkg/pkg/manager/native"
	"unipkg/pkg/manager/universal"
)

// Backend is a manager whose runtime knobs can be configured.
type Backend interface {
	manager.Manager
	SetRunner(r executor.Runner)
	SetLogger(l logging.Logger)
	SetTimeout(d time.Duration)
	SetBinary(binary string)
	SetNeedsSudo(needsSudo bool)
	SetSupported(ops manager.OperationSet)
}

var constructors = map[string]func() Backend{
	"pacman": func() Backend { return native.NewPacman() },
	"apt":    func() Backend { return native.NewAPT() },
	"dnf":    func() Backend { return native.NewDNF() },
	"yay":    func() Backend { return universal.NewYay() },
	"paru":   func() Backend { return universal.NewParu() },
}

// Names lists every supported backend, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options are the shared dependencies handed to every backend.
type Options struct {
	Runner executor.Runner // defaults to executor.New()
	Logger logging.Logger  // defaults to logging.Nop()
}

// New constructs a single configured backend.
func New(name string, cfg *config.Config, opts Options) (Backend, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q", manager.ErrInvalidRequest, name)
	}
	if cfg == nil {
		cfg = config.Default()
	}

	b := ctor()
	if opts.Runner != nil {
		b.SetRunner(opts.Runner)
	}
	if opts.Logger != nil {
		b.SetLogger(opts.Logger)
	}
	if cfg.General.Timeout.Duration > 0 {
		b.SetTimeout(cfg.General.Timeout.Duration)
	}

	mc := cfg.GetManagerConfig(name)
	if mc.Binary != "" {
		b.SetBinary(mc.Binary)
	}
	if mc.Sudo != nil {
		b.SetNeedsSudo(*mc.Sudo)
	}
	if len(mc.DisabledOperations) > 0 {
		ops := manager.NewOperationSet(manager.AllOperations...)
		for _, s := range mc.DisabledOperations {
			op, err := manager.ParseOperation(s)
			if err != nil {
				return nil, fmt.Errorf("managers.%s.disabled_operations: %w", name, err)
			}
			ops = ops.Without(op)
		}
		b.SetSupported(ops)
	}
	return b, nil
}

// NewRegistry registers every supported backend, configured from cfg.
func NewRegistry(cfg *config.Config, opts Options) (*manager.Registry, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	registry := manager.NewRegistry(cfg)
	for _, name := range Names() {
		b, err := New(name, cfg, opts)
		if err != nil {
			return nil, err
		}
		registry.Register(b)
	}
	return registry, nil
}
