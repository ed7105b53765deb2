package native

import (
	"regexp"
	"strings"
	"unicode"

	"unipkg/internal/executor"
	"unipkg/pkg/manager"
)

// pkgRule recognizes a line that reports on specific packages. The pattern
// names the package with a "pkg" group, or several space separated packages
// with a "pkgs" group.
type pkgRule struct {
	pattern *regexp.Regexp
	status  manager.Status
	ops     []manager.Operation // nil applies to every operation
	message string              // defaults to the matched line
}

// batchRule recognizes a line that applies to the whole transaction, such as
// a held lock or missing privileges.
type batchRule struct {
	pattern *regexp.Regexp
	status  manager.Status
	message string
}

// fatalRule recognizes a failure of the backend itself.
type fatalRule struct {
	pattern *regexp.Regexp
	reason  string
}

// ruleSet is the output vocabulary of one backend family.
type ruleSet struct {
	fatal []fatalRule
	batch []batchRule
	pkg   []pkgRule

	// annotate may refine verdicts after the line scan.
	annotate func(lines []executor.Line, names []string, sc *scan)
}

type verdict struct {
	status  manager.Status
	message string
}

// scan is what the output said about a transaction.
type scan struct {
	verdicts map[string]verdict
	batch    *verdict
}

func (s *scan) set(name string, v verdict) {
	s.verdicts[name] = v
}

// anyNegative reports whether some package got a verdict that is not a
// success for op.
func (s *scan) anyNegative(op manager.Operation) bool {
	for _, v := range s.verdicts {
		if !op.IsPositive(v.status) {
			return true
		}
	}
	return false
}

// interpret scans the output in arrival order. Later lines about the same
// package override earlier ones.
func (rs *ruleSet) interpret(backend string, op manager.Operation, names []string, out *executor.Outcome) (*scan, error) {
	if out.Signaled {
		return nil, &manager.BackendError{Backend: backend, ExitCode: out.ExitCode, Reason: "terminated by signal"}
	}

	sc := &scan{verdicts: make(map[string]verdict, len(names))}
	for _, line := range out.Lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}

		if out.ExitCode != 0 {
			for _, r := range rs.fatal {
				if r.pattern.MatchString(text) {
					reason := r.reason
					if reason == "" {
						reason = text
					}
					return nil, &manager.BackendError{Backend: backend, ExitCode: out.ExitCode, Reason: reason}
				}
			}
		}

		if rs.matchBatch(text, sc) {
			continue
		}
		rs.matchPackages(text, op, names, sc)
	}

	if rs.annotate != nil {
		rs.annotate(out.Lines, names, sc)
	}
	return sc, nil
}

func (rs *ruleSet) matchBatch(text string, sc *scan) bool {
	for _, r := range rs.batch {
		if r.pattern.MatchString(text) {
			msg := r.message
			if msg == "" {
				msg = text
			}
			sc.batch = &verdict{status: r.status, message: msg}
			return true
		}
	}
	return false
}

func (rs *ruleSet) matchPackages(text string, op manager.Operation, names []string, sc *scan) {
	for _, r := range rs.pkg {
		if !appliesTo(r.ops, op) {
			continue
		}
		m := r.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		var tokens []string
		for i, group := range r.pattern.SubexpNames() {
			switch group {
			case "pkg":
				tokens = append(tokens, m[i])
			case "pkgs":
				tokens = append(tokens, strings.FieldsFunc(m[i], func(r rune) bool {
					return unicode.IsSpace(r) || r == ','
				})...)
			}
		}

		msg := r.message
		if msg == "" {
			msg = text
		}
		for _, tok := range tokens {
			if name, ok := matchName(tok, names); ok {
				sc.set(name, verdict{status: r.status, message: msg})
			}
		}
		return
	}
}

func appliesTo(ops []manager.Operation, op manager.Operation) bool {
	if ops == nil {
		return true
	}
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

// matchName maps an output token to a requested package name. Tokens may
// carry quotes, an architecture suffix ("git:amd64"), a constraint echoed
// back as given ("git>=9.0", "git=2.43") or a version ("git-2.43.0-1",
// "git-2.43.0-1.fc39.x86_64"). The longest matching name wins.
func matchName(token string, names []string) (string, bool) {
	token = strings.Trim(token, "'\"`,;.()[]")
	if i := strings.IndexByte(token, ':'); i > 0 {
		token = token[:i]
	}
	if i := strings.IndexAny(token, "<>="); i >= 0 {
		token = token[:i]
	}
	if token == "" {
		return "", false
	}

	best := ""
	for _, name := range names {
		if token == name {
			return name, true
		}
		rest, ok := strings.CutPrefix(token, name+"-")
		if ok && rest != "" && rest[0] >= '0' && rest[0] <= '9' && len(name) > len(best) {
			best = name
		}
	}
	return best, best != ""
}

// renderTargets turns specs into command line arguments.
func renderTargets(specs []manager.PackageSpec, render func(manager.PackageSpec) string) []string {
	args := make([]string, len(specs))
	for i, s := range specs {
		if s.HasConstraint() {
			args[i] = render(s)
		} else {
			args[i] = s.Name()
		}
	}
	return args
}
