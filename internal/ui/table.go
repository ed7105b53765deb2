package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"unipkg/internal/history"
	"unipkg/pkg/manager"
)

// newTable creates a table with the shared unipkg styling.
func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	style := table.StyleLight
	if !UseUnicode {
		style = table.StyleDefault
	}
	style.Options.DrawBorder = false
	style.Options.SeparateColumns = false
	style.Options.SeparateHeader = true
	if UseColors {
		style.Color.Header = text.Colors{text.Bold}
	}
	t.SetStyle(style)

	t.AppendHeader(header)
	return t
}

// PrintResult renders the per-package outcomes of an operation followed by a
// one-line summary.
func PrintResult(w io.Writer, res *manager.OperationResult) {
	if res == nil {
		return
	}
	if len(res.Outcomes) == 0 {
		Muted.Fprintf(w, "No packages\n")
		return
	}

	t := newTable(w, table.Row{"", "Package", "Status", "Version", "Message"})
	for _, o := range res.Outcomes {
		c := StatusColor(res.Operation, o.Status)
		t.AppendRow(table.Row{
			c.Sprint(StatusSymbol(res.Operation, o.Status)),
			PackageName.Sprint(o.Name),
			c.Sprint(string(o.Status)),
			o.Version,
			o.Message,
		})
	}
	t.Render()

	fmt.Fprintln(w, ResultSummary(res))
}

// ResultSummary returns e.g. "install via pacman: 2/3 ok, exit 1, 1.2s".
func ResultSummary(res *manager.OperationResult) string {
	ok := len(res.Outcomes) - len(res.Failed())
	summary := fmt.Sprintf("%s via %s: %d/%d ok", res.Operation, BackendName.Sprint(res.Backend), ok, len(res.Outcomes))
	if res.ExitCode != 0 {
		summary += fmt.Sprintf(", exit %d", res.ExitCode)
	}
	if res.Duration > 0 {
		summary += ", " + res.Duration.Round(100*time.Millisecond).String()
	}
	return summary
}

// PrintDetection renders which backends were probed and which are usable.
func PrintDetection(w io.Writer, d *manager.Detection, lookup func(name string) (manager.Manager, bool)) {
	if d.System != nil {
		name := d.System.PrettyName
		if name == "" {
			name = d.System.Distribution
		}
		fmt.Fprintf(w, "%s %s/%s %s\n", Bold("System:"), d.System.OS, d.System.Arch, name)
	}

	t := newTable(w, table.Row{"Backend", "Type", "Binary", "Sudo", "Available"})
	for _, name := range d.Probed {
		row := table.Row{BackendName.Sprint(name), "", "", "", ""}
		if m, ok := lookup(name); ok {
			row[1] = string(m.Type())
			row[2] = m.Binary()
			row[3] = yesNo(m.NeedsSudo())
		}
		if d.Has(name) {
			row[4] = Success.Sprint(SymbolSuccess)
		} else {
			row[4] = Muted.Sprint("-")
		}
		t.AppendRow(row)
	}
	t.Render()

	if len(d.Available) > 0 {
		fmt.Fprintf(w, "Selected by default: %s\n", BackendName.Sprint(d.Available[0]))
	}
}

// PrintHistory renders history entries, newest first.
func PrintHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		Muted.Fprintf(w, "No history\n")
		return
	}

	t := newTable(w, table.Row{"ID", "Time", "Task", "Operation", "Backend", "Packages", "Result"})
	for _, e := range entries {
		result := Success.Sprint("ok")
		if !e.Success {
			result = Error.Sprint("failed")
			if e.Error != "" {
				result += " " + truncate(e.Error, 40)
			}
		}
		t.AppendRow(table.Row{
			e.ShortID(),
			e.FormatTime(),
			e.TaskID,
			string(e.Operation),
			e.Backend,
			truncate(strings.Join(e.Packages, " "), 40),
			result,
		})
	}
	t.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
