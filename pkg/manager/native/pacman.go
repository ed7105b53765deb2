package native

import (
	"bufio"
	"context"
	"regexp"
	"strings"

	"unipkg/pkg/manager"
)

// Pacman implements the Manager interface for Arch Linux's pacman and for
// the AUR helpers that share its command line.
type Pacman struct {
	*BaseManager
	rules        *ruleSet
	confirmFlags []string
}

// NewPacman creates a new Pacman manager instance.
func NewPacman() *Pacman {
	return NewPacmanFamily("pacman", "Pacman (Arch Linux)", "pacman", true)
}

// NewPacmanFamily creates a manager for a pacman compatible binary.
func NewPacmanFamily(name, displayName, binary string, needsSudo bool) *Pacman {
	return &Pacman{
		BaseManager:  NewBaseManager(name, displayName, binary, needsSudo),
		rules:        pacmanRules,
		confirmFlags: []string{"--noconfirm"},
	}
}

// SetConfirmFlags replaces the flags passed for non-interactive runs.
func (p *Pacman) SetConfirmFlags(flags ...string) {
	p.confirmFlags = flags
}

// Install installs one or more packages. Packages that are already present
// are left alone unless Reinstall is set.
func (p *Pacman) Install(ctx context.Context, packages []manager.PackageSpec, opts manager.Options) (*manager.OperationResult, error) {
	return p.transact(ctx, transaction{
		op:    manager.OpInstall,
		specs: packages,
		opts:  opts,
		args: func(targets []manager.PackageSpec) []string {
			args := []string{"-S"}
			if !opts.Reinstall {
				args = append(args, "--needed")
			}
			return append(p.confirmArgs(args, opts), renderTargets(targets, pacmanTarget)...)
		},
		rules: p.rules,
		query: p.inventory,
	})
}

// Remove removes one or more packages.
func (p *Pacman) Remove(ctx context.Context, packages []manager.PackageSpec, opts manager.Options) (*manager.OperationResult, error) {
	return p.transact(ctx, transaction{
		op:    manager.OpRemove,
		specs: packages,
		opts:  opts,
		args: func(targets []manager.PackageSpec) []string {
			return append(p.confirmArgs([]string{"-R"}, opts), names(targets)...)
		},
		rules: p.rules,
		query: p.inventory,
	})
}

// Update upgrades installed packages to the newest version in the sync
// databases as they are. Refreshing them here would make a partial upgrade.
func (p *Pacman) Update(ctx context.Context, packages []manager.PackageSpec, opts manager.Options) (*manager.OperationResult, error) {
	return p.transact(ctx, transaction{
		op:    manager.OpUpdate,
		specs: packages,
		opts:  opts,
		args: func(targets []manager.PackageSpec) []string {
			args := p.confirmArgs([]string{"-S", "--needed"}, opts)
			return append(args, renderTargets(targets, pacmanTarget)...)
		},
		rules: p.rules,
		query: p.inventory,
	})
}

// Query reports installed state. With no packages it lists everything installed.
func (p *Pacman) Query(ctx context.Context, packages []manager.PackageSpec, opts manager.Options) (*manager.OperationResult, error) {
	return p.lookup(ctx, packages, opts, p.inventory)
}

// IsInstalled checks if a package is installed.
func (p *Pacman) IsInstalled(ctx context.Context, name string) (bool, error) {
	return p.installed(ctx, name, p.inventory)
}

// LockDomain is shared by pacman and its AUR helpers, which all take the
// sync database lock.
func (p *Pacman) LockDomain() string {
	return "pacman"
}

func (p *Pacman) confirmArgs(args []string, opts manager.Options) []string {
	if opts.NonInteractive() {
		args = append(args, p.confirmFlags...)
	}
	return args
}

// inventory runs "pacman -Q". Missing packages are reported on stderr and
// make pacman exit 1, which is not an error here.
func (p *Pacman) inventory(ctx context.Context, opts manager.Options, pkgs []string) (*inventory, error) {
	out, err := p.runTool(ctx, opts, p.binary, append([]string{"-Q"}, pkgs...), nil, false)
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		for _, r := range p.rules.fatal {
			if r.pattern.MatchString(out.Stderr) {
				return nil, &manager.BackendError{Backend: p.name, ExitCode: out.ExitCode, Reason: r.reason}
			}
		}
	}
	return &inventory{versions: parsePacmanQuery(out.Stdout), exitCode: out.ExitCode}, nil
}

// parsePacmanQuery parses "name version" lines.
func parsePacmanQuery(output string) map[string]string {
	versions := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 {
			versions[fields[0]] = fields[1]
		}
	}
	return versions
}

// pacmanTarget renders a constrained target; pacman accepts "name>=ver".
func pacmanTarget(s manager.PackageSpec) string {
	return s.Name() + s.Operator() + s.Version()
}

func names(specs []manager.PackageSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name()
	}
	return out
}

var (
	mutations = []manager.Operation{manager.OpInstall, manager.OpUpdate}
	removal   = []manager.Operation{manager.OpRemove}
)

// pacmanRules covers pacman and the yay/paru wrappers, which print
// pacman's own messages plus a few of their own.
var pacmanRules = &ruleSet{
	fatal: []fatalRule{
		{pattern: regexp.MustCompile(`failed to initialize alpm library`), reason: "failed to initialize alpm library"},
		{pattern: regexp.MustCompile(`could not open file .*/local/ALPM_DB_VERSION`), reason: "local package database is unreadable"},
	},
	batch: []batchRule{
		{
			pattern: regexp.MustCompile(`you cannot perform this operation unless you are root`),
			status:  manager.StatusPermissionDenied,
			message: "root privileges required",
		},
		{
			pattern: regexp.MustCompile(`^sudo: (?:a password is required|a terminal is required|\S+: command not found)`),
			status:  manager.StatusPermissionDenied,
			message: "sudo could not elevate without a password",
		},
		{
			pattern: regexp.MustCompile(`unable to lock database`),
			status:  manager.StatusFailed,
			message: "package database is locked by another process (/var/lib/pacman/db.lck)",
		},
		{
			pattern: regexp.MustCompile(`failed to synchronize all databases|failed to update \S+ \(`),
			status:  manager.StatusFailed,
			message: "failed to synchronize package databases",
		},
		{
			pattern: regexp.MustCompile(`Avoid running \S+ as root`),
			status:  manager.StatusPermissionDenied,
			message: "AUR helpers must not run as root",
		},
	},
	pkg: []pkgRule{
		{pattern: regexp.MustCompile(`^warning: (?P<pkg>\S+) is up to date -- skipping`), status: manager.StatusAlreadyPresent},
		{pattern: regexp.MustCompile(`^warning: (?P<pkg>\S+) is up to date -- reinstalling`), status: manager.StatusInstalled},
		{pattern: regexp.MustCompile(`^error: target not found: (?P<pkg>\S+)`), status: manager.StatusNotFound},
		{pattern: regexp.MustCompile(`^error: '(?P<pkg>[^']+)': could not find or read package`), status: manager.StatusNotFound},
		{pattern: regexp.MustCompile(`No AUR package found for (?P<pkg>\S+)`), status: manager.StatusNotFound},
		{pattern: regexp.MustCompile(`^(?P<pkg>\S+) \((?i:target)\)$`), status: manager.StatusNotFound, message: "package not found"},
		{pattern: regexp.MustCompile(`failed retrieving file '(?P<pkg>[^']+)'`), status: manager.StatusFailed, message: "download failed"},
		{pattern: regexp.MustCompile(`^:: (?:installing|removing) (?P<pkg>\S+) .*breaks dependency`), status: manager.StatusFailed},
		{pattern: regexp.MustCompile(`^:: (?P<pkgs>\S+ and \S+) are in conflict`), status: manager.StatusFailed},
		{pattern: regexp.MustCompile(`^error: (?P<pkg>\S+): signature from .* is (?:invalid|unknown trust)`), status: manager.StatusFailed},
		{pattern: regexp.MustCompile(`\b(?:installing|upgrading|reinstalling|downgrading) (?P<pkg>\S+?)(?:\.\.\.)?(?:\s|$)`), status: manager.StatusInstalled, ops: mutations},
		{pattern: regexp.MustCompile(`\bremoving (?P<pkg>\S+?)(?:\.\.\.)?(?:\s|$)`), status: manager.StatusRemoved, ops: removal},
	},
	annotate: annotateConflicts,
}
