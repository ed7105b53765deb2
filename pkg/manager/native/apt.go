package native

import (
	"bufio"
	"context"
	"regexp"
	"strings"

	"unipkg/pkg/manager"
)

// APT implements the Manager interface for Debian/Ubuntu's APT package manager.
// Mutations go through apt-get, whose output is stable for scripts; state is
// read with dpkg-query.
type APT struct {
	*BaseManager
	queryBinary string
}

// NewAPT creates a new APT manager instance.
func NewAPT() *APT {
	return &APT{
		BaseManager: NewBaseManager("apt", "APT (Debian/Ubuntu)", "apt-get", true),
		queryBinary: "dpkg-query",
	}
}

// aptEnv keeps debconf from prompting.
var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// Install installs one or more packages.
func (a *APT) Install(ctx context.Context, packages []manager.PackageSpec, opts manager.Options) (*manager.OperationResult, error) {
	return a.transact(ctx, transaction{
		op:    manager.OpInstall,
		specs: packages,
		opts:  opts,
		args: func(targets []manager.PackageSpec) []string {
			args := a.confirmArgs([]string{"install"}, opts)
			if opts.Reinstall {
				args = append(args, "--reinstall")
			}
			return append(args, renderTargets(targets, aptTarget)...)
		},
		env:   aptEnv,
		rules: aptRules,
		query: a.inventory,
	})
}

// Remove removes one or more packages, keeping their configuration files.
func (a *APT) Remove(ctx context.Context, packages []manager.PackageSpec, opts manager.Options) (*manager.OperationResult, error) {
	return a.transact(ctx, transaction{
		op:    manager.OpRemove,
		specs: packages,
		opts:  opts,
		args: func(targets []manager.PackageSpec) []string {
			return append(a.confirmArgs([]string{"remove"}, opts), names(targets)...)
		},
		env:   aptEnv,
		rules: aptRules,
		query: a.inventory,
	})
}

// Update upgrades installed packages without installing new ones.
func (a *APT) Update(ctx context.Context, packages []manager.PackageSpec, opts manager.Options) (*manager.OperationResult, error) {
	return a.transact(ctx, transaction{
		op:    manager.OpUpdate,
		specs: packages,
		opts:  opts,
		args: func(targets []manager.PackageSpec) []string {
			args := a.confirmArgs([]string{"install", "--only-upgrade"}, opts)
			return append(args, renderTargets(targets, aptTarget)...)
		},
		env:   aptEnv,
		rules: aptRules,
		query: a.inventory,
	})
}

// Query reports installed state. With no packages it lists everything installed.
func (a *APT) Query(ctx context.Context, packages []manager.PackageSpec, opts manager.Options) (*manager.OperationResult, error) {
	return a.lookup(ctx, packages, opts, a.inventory)
}

// IsInstalled checks if a package is installed.
func (a *APT) IsInstalled(ctx context.Context, name string) (bool, error) {
	return a.installed(ctx, name, a.inventory)
}

func (a *APT) confirmArgs(args []string, opts manager.Options) []string {
	if opts.NonInteractive() {
		args = append(args, "-y", "-o", "Dpkg::Options::=--force-confdef", "-o", "Dpkg::Options::=--force-confold")
	}
	return args
}

const dpkgFormat = "${Package}\t${Version}\t${db:Status-Abbrev}\n"

// inventory runs dpkg-query. Unknown packages make it exit 1 with a
// "no packages found matching" line per name, which is not an error here.
func (a *APT) inventory(ctx context.Context, opts manager.Options, pkgs []string) (*inventory, error) {
	args := append([]string{"-W", "-f=" + dpkgFormat}, pkgs...)
	out, err := a.runTool(ctx, opts, a.queryBinary, args, nil, false)
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 && !strings.Contains(out.Stderr, "no packages found matching") {
		return nil, &manager.BackendError{Backend: a.name, ExitCode: out.ExitCode, Reason: firstLine(out.Stderr)}
	}
	return &inventory{versions: parseDpkgQuery(out.Stdout), exitCode: out.ExitCode}, nil
}

// parseDpkgQuery keeps packages whose status abbreviation says installed
// ("ii", or "hi" when held).
func parseDpkgQuery(output string) map[string]string {
	versions := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 3 {
			continue
		}
		status := strings.TrimSpace(fields[2])
		if len(status) >= 2 && status[1] == 'i' {
			versions[fields[0]] = fields[1]
		}
	}
	return versions
}

// aptTarget renders a constrained target. apt-get only pins exact versions;
// ordered constraints are left to the pre-check and query.
func aptTarget(s manager.PackageSpec) string {
	if s.Operator() == "=" {
		return s.Name() + "=" + s.Version()
	}
	return s.Name()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var aptRules = &ruleSet{
	fatal: []fatalRule{
		{pattern: regexp.MustCompile(`dpkg was interrupted`), reason: "dpkg was interrupted, run 'dpkg --configure -a'"},
		{pattern: regexp.MustCompile(`The package lists or status file could not be parsed`), reason: "package lists or status file could not be parsed"},
	},
	batch: []batchRule{
		{
			pattern: regexp.MustCompile(`Permission denied|are you root\?`),
			status:  manager.StatusPermissionDenied,
			message: "root privileges required",
		},
		{
			pattern: regexp.MustCompile(`^sudo: (?:a password is required|a terminal is required)`),
			status:  manager.StatusPermissionDenied,
			message: "sudo could not elevate without a password",
		},
		{
			pattern: regexp.MustCompile(`Could not get lock|is another process using it\?`),
			status:  manager.StatusFailed,
			message: "dpkg lock is held by another process",
		},
		{
			pattern: regexp.MustCompile(`(?:^|\s)Abort\.$`),
			status:  manager.StatusFailed,
			message: "confirmation required, retry with assume-yes",
		},
		{
			pattern: regexp.MustCompile(`^E: Failed to fetch|Temporary failure resolving`),
			status:  manager.StatusFailed,
			message: "failed to fetch packages",
		},
		{
			pattern: regexp.MustCompile(`^E: Sub-process /usr/bin/dpkg returned an error code`),
			status:  manager.StatusFailed,
			message: "dpkg returned an error",
		},
	},
	pkg: []pkgRule{
		{pattern: regexp.MustCompile(`^(?P<pkg>\S+) is already the newest version`), status: manager.StatusAlreadyPresent},
		{pattern: regexp.MustCompile(`^E: Unable to locate package (?P<pkg>\S+)`), status: manager.StatusNotFound},
		{pattern: regexp.MustCompile(`^E: Package '(?P<pkg>[^']+)' has no installation candidate`), status: manager.StatusNotFound},
		{pattern: regexp.MustCompile(`^E: Version '[^']+' for '(?P<pkg>[^']+)' was not found`), status: manager.StatusNotFound},
		{pattern: regexp.MustCompile(`^Skipping (?P<pkg>[^,\s]+),? it is not installed`), status: manager.StatusNotFound},
		{pattern: regexp.MustCompile(`^Package '(?P<pkg>[^']+)' is not installed, so not removed`), status: manager.StatusNotFound},
		{pattern: regexp.MustCompile(`^(?P<pkg>\S+) : Depends: .* but it is not (?:going to be installed|installable)`), status: manager.StatusFailed},
		{pattern: regexp.MustCompile(`^(?:Setting up|Unpacking) (?P<pkg>\S+) \(`), status: manager.StatusInstalled, ops: mutations},
		{pattern: regexp.MustCompile(`^(?:Removing|Purging configuration files for) (?P<pkg>\S+) \(`), status: manager.StatusRemoved, ops: removal},
	},
}
