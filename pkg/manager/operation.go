package manager

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Operation is the kind of operation requested from a backend.
type Operation string

const (
	OpInstall Operation = "install"
	OpRemove  Operation = "remove"
	OpUpdate  Operation = "update"
	OpQuery   Operation = "query"
)

// AllOperations lists every operation in a stable order.
var AllOperations = []Operation{OpInstall, OpRemove, OpUpdate, OpQuery}

// ParseOperation converts a string (case-insensitive) into an Operation.
// "uninstall" and "upgrade" are accepted as aliases.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "install":
		return OpInstall, nil
	case "remove", "uninstall":
		return OpRemove, nil
	case "update", "upgrade":
		return OpUpdate, nil
	case "query":
		return OpQuery, nil
	}
	return "", fmt.Errorf("%w: unknown operation %q", ErrInvalidRequest, s)
}

// IsPositive reports whether status counts as success for this operation.
func (op Operation) IsPositive(s Status) bool {
	switch op {
	case OpInstall, OpUpdate:
		return s == StatusInstalled || s == StatusAlreadyPresent
	case OpRemove:
		return s == StatusRemoved
	case OpQuery:
		return s == StatusInstalled
	}
	return false
}

// Mutating reports whether the operation changes installed state.
func (op Operation) Mutating() bool {
	return op != OpQuery
}

// OperationSet is the set of operations a backend supports.
type OperationSet map[Operation]bool

// NewOperationSet builds a set from the given operations.
func NewOperationSet(ops ...Operation) OperationSet {
	set := make(OperationSet, len(ops))
	for _, op := range ops {
		set[op] = true
	}
	return set
}

// Without returns a copy of the set minus the given operations.
func (s OperationSet) Without(ops ...Operation) OperationSet {
	out := make(OperationSet, len(s))
	for op, ok := range s {
		out[op] = ok
	}
	for _, op := range ops {
		delete(out, op)
	}
	return out
}

// List returns the supported operations sorted by name.
func (s OperationSet) List() []Operation {
	var ops []Operation
	for op, ok := range s {
		if ok {
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Options are the per-request knobs shared by every backend.
type Options struct {
	AssumeYes bool // answer yes to prompts (apt/dnf -y)
	NoConfirm bool // never ask for confirmation (pacman --noconfirm)
	Reinstall bool // reinstall packages that are already present

	// TaskID is an opaque caller identifier used only to tag log lines.
	TaskID string
}

// NonInteractive reports whether the backend should run without prompting.
func (o Options) NonInteractive() bool {
	return o.AssumeYes || o.NoConfirm
}

// OperationRequest is one unified request against a backend.
type OperationRequest struct {
	Kind     Operation
	Packages []PackageSpec
	Options  Options
}

// NewRequest builds and validates a request.
func NewRequest(kind Operation, packages []PackageSpec, opts Options) (OperationRequest, error) {
	req := OperationRequest{Kind: kind, Packages: packages, Options: opts}
	if err := req.Validate(); err != nil {
		return OperationRequest{}, err
	}
	return req, nil
}

// Validate checks the request invariants.
func (r OperationRequest) Validate() error {
	switch r.Kind {
	case OpInstall, OpRemove, OpUpdate:
		if len(r.Packages) == 0 {
			return fmt.Errorf("%w: %s requires at least one package", ErrInvalidRequest, r.Kind)
		}
	case OpQuery:
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidRequest, r.Kind)
	}

	seen := make(map[string]bool, len(r.Packages))
	for _, p := range r.Packages {
		if p.Name() == "" {
			return fmt.Errorf("%w: empty package name", ErrInvalidRequest)
		}
		if seen[p.Name()] {
			return fmt.Errorf("%w: package %s requested twice", ErrInvalidRequest, p.Name())
		}
		seen[p.Name()] = true
	}
	return nil
}

// Names returns the requested package names in order.
func (r OperationRequest) Names() []string {
	names := make([]string, len(r.Packages))
	for i, p := range r.Packages {
		names[i] = p.Name()
	}
	return names
}

// Execute dispatches a request to the matching Manager method.
func Execute(ctx context.Context, m Manager, req OperationRequest) (*OperationResult, error) {
	switch req.Kind {
	case OpInstall:
		return m.Install(ctx, req.Packages, req.Options)
	case OpRemove:
		return m.Remove(ctx, req.Packages, req.Options)
	case OpUpdate:
		return m.Update(ctx, req.Packages, req.Options)
	case OpQuery:
		return m.Query(ctx, req.Packages, req.Options)
	}
	return nil, fmt.Errorf("%w: unknown operation %q", ErrInvalidRequest, req.Kind)
}
