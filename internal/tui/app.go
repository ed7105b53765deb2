package tui

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"unipkg/internal/batch"
)

// Run executes plan with runner while rendering live progress to out.
// The runner's OnStart and OnStep hooks are chained, not replaced.
func Run(ctx context.Context, runner *batch.Runner, plan *batch.Plan, jobs int, out io.Writer) ([]batch.StepResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(plan, jobs, cancel),
		tea.WithOutput(out),
		tea.WithoutSignalHandler(),
	)

	onStart, onStep := runner.OnStart, runner.OnStep
	runner.OnStart = func(s batch.Step) {
		if onStart != nil {
			onStart(s)
		}
		p.Send(stepStartedMsg{id: s.ID, at: time.Now()})
	}
	runner.OnStep = func(res batch.StepResult) {
		if onStep != nil {
			onStep(res)
		}
		p.Send(stepFinishedMsg{result: res, at: time.Now()})
	}

	done := make(chan []batch.StepResult, 1)
	go func() {
		results := runner.Run(ctx, plan)
		done <- results
		p.Send(runFinishedMsg{})
	}()

	// If the view fails the steps still run to completion.
	_, err := p.Run()
	return <-done, err
}
