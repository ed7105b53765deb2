// Package manager provides the core abstraction shared by every package manager backend.
package manager

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
)

// ManagerType represents the category of package manager.
type ManagerType string

const (
	// TypeNative represents system-native package managers (apt, dnf, pacman)
	TypeNative ManagerType = "native"
	// TypeAUR represents Arch User Repository helpers (yay, paru)
	TypeAUR ManagerType = "aur"
)

// Status is the outcome of an operation for a single package.
type Status string

const (
	StatusInstalled        Status = "installed"
	StatusAlreadyPresent   Status = "already_present"
	StatusRemoved          Status = "removed"
	StatusNotFound         Status = "not_found"
	StatusFailed           Status = "failed"
	StatusPermissionDenied Status = "permission_denied"
	StatusSkipped          Status = "skipped"
)

// PackageSpec identifies a requested package. The zero value is not valid;
// use NewPackageSpec or ParsePackageSpec.
type PackageSpec struct {
	name       string
	op         string
	constraint string
}

var (
	validName    = regexp.MustCompile(`^[A-Za-z0-9@._+][A-Za-z0-9@._+:-]*$`)
	constraintRe = regexp.MustCompile(`^(==|=|>=|<=|>|<)\s*([0-9A-Za-z][^\s<>=]*)$`)
)

// NewPackageSpec builds a spec from a bare name and an optional constraint
// such as ">=2.40" or "=1.2.3-1".
func NewPackageSpec(name, constraint string) (PackageSpec, error) {
	name = strings.TrimSpace(name)
	if !validName.MatchString(name) {
		return PackageSpec{}, fmt.Errorf("%w: invalid package name %q", ErrInvalidRequest, name)
	}

	spec := PackageSpec{name: name}
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return spec, nil
	}

	m := constraintRe.FindStringSubmatch(constraint)
	if m == nil {
		return PackageSpec{}, fmt.Errorf("%w: invalid version constraint %q for %s", ErrInvalidRequest, constraint, name)
	}
	spec.op = m[1]
	if spec.op == "==" {
		spec.op = "="
	}
	spec.constraint = m[2]
	return spec, nil
}

// ParsePackageSpec parses "name", "name=1.2", "name>=1.2" and similar forms.
func ParsePackageSpec(s string) (PackageSpec, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "<>="); i > 0 {
		return NewPackageSpec(s[:i], s[i:])
	}
	return NewPackageSpec(s, "")
}

// ParsePackageSpecs parses every argument, stopping at the first error.
func ParsePackageSpecs(args []string) ([]PackageSpec, error) {
	specs := make([]PackageSpec, 0, len(args))
	for _, a := range args {
		spec, err := ParsePackageSpec(a)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Packages is a convenience for building constraint-free specs.
// It panics on an invalid name and is intended for literals.
func Packages(names ...string) []PackageSpec {
	specs := make([]PackageSpec, len(names))
	for i, n := range names {
		spec, err := NewPackageSpec(n, "")
		if err != nil {
			panic(err)
		}
		specs[i] = spec
	}
	return specs
}

// Name returns the package name.
func (p PackageSpec) Name() string { return p.name }

// Operator returns the constraint operator ("=", ">=", ...) or "".
func (p PackageSpec) Operator() string { return p.op }

// Version returns the constrained version or "".
func (p PackageSpec) Version() string { return p.constraint }

// HasConstraint reports whether a version constraint was given.
func (p PackageSpec) HasConstraint() bool { return p.op != "" }

// String renders the spec in the same form ParsePackageSpec accepts.
func (p PackageSpec) String() string {
	return p.name + p.op + p.constraint
}

// Satisfies reports whether an installed version meets the constraint.
// Distribution versions that are not semver-like fall back to exact string
// comparison for "=", and to an error for ordered operators.
func (p PackageSpec) Satisfies(installed string) (bool, error) {
	if !p.HasConstraint() {
		return true, nil
	}

	if p.op == "=" && (installed == p.constraint || upstreamVersion(installed) == p.constraint) {
		return true, nil
	}

	want, werr := version.NewVersion(upstreamVersion(p.constraint))
	have, herr := version.NewVersion(upstreamVersion(installed))
	if werr != nil || herr != nil {
		if p.op == "=" {
			return false, nil
		}
		return false, fmt.Errorf("cannot compare version %q with %s%s", installed, p.op, p.constraint)
	}

	c, err := version.NewConstraint(p.op + " " + want.Original())
	if err != nil {
		return false, err
	}
	return c.Check(have), nil
}

// upstreamVersion strips an epoch ("1:") and a packaging release ("-3") so
// distribution versions become comparable.
func upstreamVersion(v string) string {
	if i := strings.Index(v, ":"); i >= 0 {
		v = v[i+1:]
	}
	if i := strings.LastIndex(v, "-"); i > 0 {
		v = v[:i]
	}
	return v
}

// PackageOutcome is the per-package result of an operation.
type PackageOutcome struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Version string `json:"version,omitempty"`
	Message string `json:"message,omitempty"`
}

// OperationResult is the aggregate result of one operation.
// It is produced once by NewResult and must not be modified afterwards.
type OperationResult struct {
	Success   bool             `json:"success"`
	Operation Operation        `json:"operation"`
	Outcomes  []PackageOutcome `json:"outcomes"`
	Backend   string           `json:"backend"`
	ExitCode  int              `json:"exit_code"`
	Duration  time.Duration    `json:"duration"`
}

// NewResult builds an OperationResult and derives Success from the outcomes.
func NewResult(op Operation, backend string, outcomes []PackageOutcome, exitCode int, duration time.Duration) *OperationResult {
	success := true
	for _, o := range outcomes {
		if !op.IsPositive(o.Status) {
			success = false
			break
		}
	}

	return &OperationResult{
		Success:   success,
		Operation: op,
		Outcomes:  outcomes,
		Backend:   backend,
		ExitCode:  exitCode,
		Duration:  duration,
	}
}

// Outcome returns the outcome for a package name.
func (r *OperationResult) Outcome(name string) (PackageOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return PackageOutcome{}, false
}

// Failed returns every outcome that is not positive for the operation.
func (r *OperationResult) Failed() []PackageOutcome {
	var failed []PackageOutcome
	for _, o := range r.Outcomes {
		if !r.Operation.IsPositive(o.Status) {
			failed = append(failed, o)
		}
	}
	return failed
}
