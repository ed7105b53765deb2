package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unipkg/internal/batch"
	"unipkg/pkg/manager"
)

func testPlan(t *testing.T) *batch.Plan {
	t.Helper()
	plan := &batch.Plan{Steps: []batch.Step{
		{ID: "tools", Operation: "install", Packages: []string{"git", "vim"}},
		{ID: "cleanup", Operation: "remove", Packages: []string{"nano"}},
	}}
	require.NoError(t, plan.Validate())
	return plan
}

func TestModelTracksSteps(t *testing.T) {
	plan := testPlan(t)
	m := NewModel(plan, 2, nil)

	view := m.View()
	assert.Contains(t, view, "Applying plan: 0/2 steps, 2 jobs")
	assert.Contains(t, view, "tools")
	assert.Contains(t, view, "git vim")

	start := time.Now()
	m.Update(stepStartedMsg{id: "tools", at: start})
	assert.Equal(t, stateRunning, m.rows[0].state)

	res := manager.NewResult(manager.OpInstall, "pacman", []manager.PackageOutcome{
		{Name: "git", Status: manager.StatusInstalled},
		{Name: "vim", Status: manager.StatusAlreadyPresent},
	}, 0, time.Second)
	m.Update(stepFinishedMsg{
		result: batch.StepResult{Step: plan.Steps[0], Backend: "pacman", Result: res},
		at:     start.Add(1200 * time.Millisecond),
	})

	view = m.View()
	assert.Contains(t, view, "Applying plan: 1/2 steps")
	assert.Contains(t, view, "[pacman]")
	assert.Contains(t, view, "1 installed")
	assert.Contains(t, view, "1 already_present")
	assert.Contains(t, view, "1.2s")
}

func TestModelShowsStepError(t *testing.T) {
	plan := testPlan(t)
	m := NewModel(plan, 1, nil)

	m.Update(stepFinishedMsg{result: batch.StepResult{
		Step: plan.Steps[1],
		Err:  errors.New("no usable package manager found"),
	}, at: time.Now()})

	assert.Contains(t, m.View(), "no usable package manager found")
}

func TestModelCancelKey(t *testing.T) {
	canceled := 0
	m := NewModel(testPlan(t), 1, func() { canceled++ })

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	assert.Equal(t, 1, canceled)
	assert.Contains(t, m.View(), "canceling")
}

func TestModelQuitsWhenRunFinishes(t *testing.T) {
	m := NewModel(testPlan(t), 1, nil)

	_, cmd := m.Update(runFinishedMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.False(t, strings.Contains(m.View(), "cancel remaining"))
}

func TestModelIgnoresUnknownStep(t *testing.T) {
	m := NewModel(testPlan(t), 1, nil)
	m.Update(stepStartedMsg{id: "missing", at: time.Now()})

	for _, r := range m.rows {
		assert.Equal(t, statePending, r.state)
	}
}
