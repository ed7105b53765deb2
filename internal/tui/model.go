package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"unipkg/internal/batch"
	"unipkg/pkg/manager"
)

type stepState int

const (
	statePending stepState = iota
	stateRunning
	stateDone
)

// Messages sent by the runner callbacks
type (
	stepStartedMsg struct {
		id string
		at time.Time
	}

	stepFinishedMsg struct {
		result batch.StepResult
		at     time.Time
	}

	runFinishedMsg struct{}
)

type stepRow struct {
	step    batch.Step
	state   stepState
	started time.Time
	elapsed time.Duration
	result  batch.StepResult
}

// Model is the bubbletea model of a running plan.
type Model struct {
	rows     []stepRow
	index    map[string]int
	jobs     int
	spinner  spinner.Model
	keys     KeyMap
	styles   *Styles
	cancel   context.CancelFunc
	canceled bool
	finished bool
}

// NewModel creates the view for plan. cancel is called when the user
// interrupts the run.
func NewModel(plan *batch.Plan, jobs int, cancel context.CancelFunc) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	styles := DefaultStyles()
	sp.Style = styles.Spinner

	m := &Model{
		index:   make(map[string]int, len(plan.Steps)),
		jobs:    jobs,
		spinner: sp,
		keys:    DefaultKeyMap(),
		styles:  styles,
		cancel:  cancel,
	}
	for i, s := range plan.Steps {
		m.rows = append(m.rows, stepRow{step: s})
		m.index[s.ID] = i
	}
	return m
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Cancel) && !m.canceled {
			m.canceled = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case stepStartedMsg:
		if i, ok := m.index[msg.id]; ok {
			m.rows[i].state = stateRunning
			m.rows[i].started = msg.at
		}
		return m, nil

	case stepFinishedMsg:
		if i, ok := m.index[msg.result.Step.ID]; ok {
			row := &m.rows[i]
			row.state = stateDone
			row.result = msg.result
			if !row.started.IsZero() {
				row.elapsed = msg.at.Sub(row.started)
			}
		}
		return m, nil

	case runFinishedMsg:
		m.finished = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model
func (m *Model) View() string {
	var b strings.Builder

	done := 0
	for _, r := range m.rows {
		if r.state == stateDone {
			done++
		}
	}
	b.WriteString(m.styles.Header.Render(fmt.Sprintf("Applying plan: %d/%d steps, %d jobs", done, len(m.rows), m.jobs)))
	b.WriteString("\n")

	for _, r := range m.rows {
		b.WriteString(m.renderRow(r))
		b.WriteString("\n")
	}

	switch {
	case m.finished:
	case m.canceled:
		b.WriteString(m.styles.Footer.Render(m.styles.Warning.Render("canceling, waiting for running steps...")))
	default:
		help := m.keys.Cancel.Help()
		b.WriteString(m.styles.Footer.Render(m.styles.HelpKey.Render(help.Key) + " " + m.styles.HelpDesc.Render(help.Desc)))
	}
	b.WriteString("\n")

	return b.String()
}

func (m *Model) renderRow(r stepRow) string {
	var status string
	switch r.state {
	case statePending:
		status = m.styles.Muted.Render("○")
	case stateRunning:
		status = m.spinner.View()
	case stateDone:
		if r.result.OK() {
			status = m.styles.Success.Render("✓")
		} else {
			status = m.styles.Error.Render("✗")
		}
	}

	line := fmt.Sprintf("%s %s %s %s", status,
		m.styles.StepID.Render(r.step.ID),
		string(r.step.Kind()),
		m.styles.Packages.Render(strings.Join(r.step.Packages, " ")))

	if r.state == statePending {
		return line
	}

	if r.result.Backend != "" {
		line += " " + m.styles.BackendStyle(r.result.Backend).Render("["+r.result.Backend+"]")
	}
	if r.state == stateDone {
		line += " " + m.summarize(r)
	}
	return line
}

func (m *Model) summarize(r stepRow) string {
	res := r.result
	if res.Err != nil {
		return m.styles.Error.Render(res.Err.Error())
	}

	counts := make(map[manager.Status]int)
	var order []manager.Status
	for _, o := range res.Result.Outcomes {
		if counts[o.Status] == 0 {
			order = append(order, o.Status)
		}
		counts[o.Status]++
	}

	parts := make([]string, 0, len(order))
	for _, s := range order {
		style := m.styles.Error
		if res.Result.Operation.IsPositive(s) {
			style = m.styles.Success
		} else if s == manager.StatusNotFound || s == manager.StatusSkipped {
			style = m.styles.Warning
		}
		parts = append(parts, style.Render(fmt.Sprintf("%d %s", counts[s], s)))
	}
	if r.elapsed > 0 {
		parts = append(parts, m.styles.Muted.Render(r.elapsed.Round(100*time.Millisecond).String()))
	}
	return strings.Join(parts, ", ")
}
