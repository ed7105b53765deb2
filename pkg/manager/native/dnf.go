package native

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"unipkg/pkg/manager"
)

// DNF implements the Manager interface for Fedora/RHEL's DNF package manager.
// Installed state is read from the rpm database.
type DNF struct {
	*BaseManager
	queryBinary string
}

// NewDNF creates a new DNF manager instance.
func NewDNF() *DNF {
	return &DNF{
		BaseManager: NewBaseManager("dnf", "DNF (Fedora/RHEL)", "dnf", true),
		queryBinary: "rpm",
	}
}

// Install installs one or more packages.
func (d *DNF) Install(ctx context.Context, packages []manager.PackageSpec, opts manager.Options) (*manager.OperationResult, error) {
	return d.transact(ctx, transaction{
		op:    manager.OpInstall,
		specs: packages,
		opts:  opts,
		args: func(targets []manager.PackageSpec) []string {
			cmd := "install"
			if opts.Reinstall {
				cmd = "reinstall"
			}
			return append(d.confirmArgs([]string{cmd}, opts), renderTargets(targets, dnfTarget)...)
		},
		rules: dnfRules,
		query: d.inventory,
	})
}

// Remove removes one or more packages.
func (d *DNF) Remove(ctx context.Context, packages []manager.PackageSpec, opts manager.Options) (*manager.OperationResult, error) {
	return d.transact(ctx, transaction{
		op:    manager.OpRemove,
		specs: packages,
		opts:  opts,
		args: func(targets []manager.PackageSpec) []string {
			return append(d.confirmArgs([]string{"remove"}, opts), names(targets)...)
		},
		rules: dnfRules,
		query: d.inventory,
	})
}

// Update upgrades installed packages.
func (d *DNF) Update(ctx context.Context, packages []manager.PackageSpec, opts manager.Options) (*manager.OperationResult, error) {
	return d.transact(ctx, transaction{
		op:    manager.OpUpdate,
		specs: packages,
		opts:  opts,
		args: func(targets []manager.PackageSpec) []string {
			return append(d.confirmArgs([]string{"upgrade"}, opts), renderTargets(targets, dnfTarget)...)
		},
		rules: dnfRules,
		query: d.inventory,
	})
}

// Query reports installed state. With no packages it lists everything installed.
func (d *DNF) Query(ctx context.Context, packages []manager.PackageSpec, opts manager.Options) (*manager.OperationResult, error) {
	return d.lookup(ctx, packages, opts, d.inventory)
}

// IsInstalled checks if a package is installed.
func (d *DNF) IsInstalled(ctx context.Context, name string) (bool, error) {
	return d.installed(ctx, name, d.inventory)
}

func (d *DNF) confirmArgs(args []string, opts manager.Options) []string {
	if opts.NonInteractive() {
		args = append(args, "-y")
	}
	return args
}

const rpmFormat = "%{NAME}\t%{VERSION}-%{RELEASE}\n"

// inventory runs "rpm -q". Each missing package prints "package X is not
// installed" and bumps the exit code, which is not an error here.
func (d *DNF) inventory(ctx context.Context, opts manager.Options, pkgs []string) (*inventory, error) {
	args := []string{"-qa", "--qf", rpmFormat}
	if len(pkgs) > 0 {
		args = append([]string{"-q", "--qf", rpmFormat}, pkgs...)
	}

	out, err := d.runTool(ctx, opts, d.queryBinary, args, nil, false)
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 && !strings.Contains(out.Stdout, "is not installed") {
		return nil, &manager.BackendError{Backend: d.name, ExitCode: out.ExitCode, Reason: firstLine(out.Stderr)}
	}
	return &inventory{versions: parseRPMQuery(out.Stdout), exitCode: out.ExitCode}, nil
}

// parseRPMQuery parses "name\tversion-release" lines.
func parseRPMQuery(output string) map[string]string {
	versions := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		name, version, ok := strings.Cut(scanner.Text(), "\t")
		if ok && name != "" {
			versions[name] = strings.TrimSpace(version)
		}
	}
	return versions
}

// dnfTarget renders a constrained target. Exact versions use the
// "name-version" form; ordered constraints are passed as one argument.
func dnfTarget(s manager.PackageSpec) string {
	if s.Operator() == "=" {
		return s.Name() + "-" + s.Version()
	}
	return fmt.Sprintf("%s %s %s", s.Name(), s.Operator(), s.Version())
}

var dnfRules = &ruleSet{
	fatal: []fatalRule{
		{pattern: regexp.MustCompile(`rpmdb open failed|Failed to (?:load|open) (?:the )?rpm ?db`), reason: "rpm database could not be opened"},
		{pattern: regexp.MustCompile(`DB_RUNRECOVERY`), reason: "rpm database needs recovery, run 'rpm --rebuilddb'"},
	},
	batch: []batchRule{
		{
			pattern: regexp.MustCompile(`has to be run with superuser privileges|has to be run under the root user`),
			status:  manager.StatusPermissionDenied,
			message: "root privileges required",
		},
		{
			pattern: regexp.MustCompile(`^sudo: (?:a password is required|a terminal is required)`),
			status:  manager.StatusPermissionDenied,
			message: "sudo could not elevate without a password",
		},
		{
			pattern: regexp.MustCompile(`Failed to obtain (?:the )?(?:rpm )?(?:transaction )?lock|Waiting for process with pid|Resource temporarily unavailable`),
			status:  manager.StatusFailed,
			message: "rpm transaction lock is held by another process",
		},
		{
			pattern: regexp.MustCompile(`Operation aborted|Is this ok \[y/N\]:\s*$`),
			status:  manager.StatusFailed,
			message: "confirmation required, retry with assume-yes",
		},
		{
			pattern: regexp.MustCompile(`Failed to download metadata|Cannot download repomd|Curl error`),
			status:  manager.StatusFailed,
			message: "failed to download repository metadata",
		},
		{
			pattern: regexp.MustCompile(`^Error: Transaction (?:test|check) error`),
			status:  manager.StatusFailed,
			message: "transaction check failed",
		},
	},
	pkg: []pkgRule{
		{pattern: regexp.MustCompile(`^Package (?P<pkg>\S+) is already installed`), status: manager.StatusAlreadyPresent},
		{pattern: regexp.MustCompile(`^No match for argument: (?P<pkg>\S+)`), status: manager.StatusNotFound},
		{pattern: regexp.MustCompile(`^Error: Unable to find a match: (?P<pkgs>.+)$`), status: manager.StatusNotFound},
		{pattern: regexp.MustCompile(`^Package (?P<pkg>\S+) available, but not installed`), status: manager.StatusNotFound},
		{pattern: regexp.MustCompile(`^- nothing provides \S+ needed by (?P<pkg>\S+)`), status: manager.StatusFailed},
		{pattern: regexp.MustCompile(`^(?:\[\d+/\d+\]\s*)?(?:Installing|Upgrading|Reinstalling|Downgrading)\s*:?\s+(?P<pkg>\S+)`), status: manager.StatusInstalled, ops: mutations},
		{pattern: regexp.MustCompile(`^(?:\[\d+/\d+\]\s*)?(?:Erasing|Removing)\s*:?\s+(?P<pkg>\S+)`), status: manager.StatusRemoved, ops: removal},
	},
}
