package native

import (
	"regexp"
	"strings"

	"unipkg/internal/executor"
	"unipkg/pkg/manager"
)

// DependencyConflict describes a pacman transaction rejected because its
// dependencies could not be satisfied.
type DependencyConflict struct {
	Packages   []string // packages named by the conflict, requested or not
	Suggestion string
}

// Regular expressions for parsing pacman dependency errors
var (
	// Matches: "error: failed to prepare transaction (could not satisfy dependencies)"
	dependencyFailurePattern = regexp.MustCompile(`failed to prepare transaction.*could not satisfy dependencies`)

	// Matches: ":: installing pkg (1.2.3-4) breaks dependency 'pkg=1.2.3-1' required by other-pkg"
	// and ":: removing pkg breaks dependency 'pkg' required by other-pkg"
	breaksDepPattern = regexp.MustCompile(`:: (?:installing|removing) (\S+) .*breaks dependency .* required by (\S+)`)

	// Matches: ":: pkg and other-pkg are in conflict"
	conflictPattern = regexp.MustCompile(`:: (\S+) and (\S+) are in conflict`)

	// Matches: ":: unable to satisfy dependency 'lib>=2' required by pkg"
	unsatisfiedPattern = regexp.MustCompile(`:: unable to satisfy dependency '[^']+' required by (\S+)`)
)

const conflictSuggestion = "run a full system upgrade first"

// ParseDependencyConflict inspects pacman output for a dependency conflict.
// It returns nil when the output holds none.
func ParseDependencyConflict(output string) *DependencyConflict {
	if !dependencyFailurePattern.MatchString(output) && !conflictPattern.MatchString(output) {
		return nil
	}
	return &DependencyConflict{
		Packages:   extractAffectedPackages(output),
		Suggestion: conflictSuggestion,
	}
}

// Message renders the conflict for a package outcome.
func (c *DependencyConflict) Message() string {
	var sb strings.Builder
	sb.WriteString("dependency conflict")
	if len(c.Packages) > 0 {
		sb.WriteString(" involving ")
		sb.WriteString(strings.Join(c.Packages, ", "))
	}
	if c.Suggestion != "" {
		sb.WriteString("; ")
		sb.WriteString(c.Suggestion)
	}
	return sb.String()
}

// extractAffectedPackages extracts package names from dependency conflict messages.
func extractAffectedPackages(output string) []string {
	seen := make(map[string]bool)
	var packages []string
	add := func(names ...string) {
		for _, n := range names {
			if n != "" && !seen[n] {
				packages = append(packages, n)
				seen[n] = true
			}
		}
	}

	for _, m := range breaksDepPattern.FindAllStringSubmatch(output, -1) {
		add(m[1], m[2])
	}
	for _, m := range conflictPattern.FindAllStringSubmatch(output, -1) {
		add(m[1], m[2])
	}
	for _, m := range unsatisfiedPattern.FindAllStringSubmatch(output, -1) {
		add(m[1])
	}
	return packages
}

// annotateConflicts marks requested packages named by a dependency conflict
// as failed. When the conflict names none of them, the whole transaction
// failed on account of installed packages.
func annotateConflicts(lines []executor.Line, names []string, sc *scan) {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	}

	conflict := ParseDependencyConflict(sb.String())
	if conflict == nil {
		return
	}

	v := verdict{status: manager.StatusFailed, message: conflict.Message()}
	marked := false
	for _, pkg := range conflict.Packages {
		if name, ok := matchName(pkg, names); ok {
			sc.set(name, v)
			marked = true
		}
	}
	if !marked && sc.batch == nil {
		sc.batch = &v
	}
}
