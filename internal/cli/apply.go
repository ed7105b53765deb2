package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"unipkg/internal/batch"
	"unipkg/internal/history"
	"unipkg/internal/tui"
	"unipkg/internal/ui"
	"unipkg/pkg/manager"
)

func newApplyCmd(a *app) *cobra.Command {
	var (
		jobs int
		live bool
	)

	cmd := &cobra.Command{
		Use:   "apply <plan.toml>",
		Short: "Run a batch plan of package operations",
		Long: `Run every step of a TOML plan through a bounded worker pool. Each step
names an operation, its packages and optionally a backend preference.
Log lines of a step are tagged with its id.

Example plan:
  jobs = 2

  [[step]]
  id = "tools"
  operation = "install"
  packages = ["git", "vim"]

  [[step]]
  id = "aur"
  operation = "install"
  packages = ["spotify"]
  backend = ["aur"]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := batch.LoadPlan(args[0])
			if err != nil {
				return err
			}

			opts := a.options()
			// Steps run unattended.
			opts.AssumeYes, opts.NoConfirm = true, true

			runner := &batch.Runner{
				Resolve: a.resolve,
				Jobs:    jobs,
				Options: opts,
				Logger:  a.log,
			}

			var results []batch.StepResult
			if live && a.interactive() {
				runner.OnStep = a.recordStep
				release := a.logSink.hold()
				results, err = tui.Run(cmd.Context(), runner, plan, effectiveJobs(jobs, plan), os.Stderr)
				release()
				if err != nil {
					ui.WarningMsg("live view failed: %v", err)
				}
				for _, res := range results {
					a.printStep(res)
				}
			} else {
				runner.OnStep = func(res batch.StepResult) {
					a.printStep(res)
					a.recordStep(res)
				}
				results = runner.Run(cmd.Context(), plan)
			}

			failed := batch.Failed(results)
			fmt.Fprintf(a.out, "%d/%d steps succeeded\n", len(results)-len(failed), len(results))
			if len(failed) > 0 {
				return ErrUnsuccessful
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "maximum steps running at once (overrides the plan)")
	cmd.Flags().BoolVar(&live, "tui", false, "show a live progress view")
	return cmd
}

// resolve picks a step backend, falling back to the global --backend list.
func (a *app) resolve(preferred []string) (manager.Manager, error) {
	if len(preferred) == 0 {
		preferred = a.backends
	}
	return a.registry.Create(preferred)
}

func effectiveJobs(flag int, plan *batch.Plan) int {
	switch {
	case flag > 0:
		return flag
	case plan.Jobs > 0:
		return plan.Jobs
	}
	return batch.DefaultJobs
}

func (a *app) printStep(res batch.StepResult) {
	if res.Err != nil {
		ui.ErrorMsg("[%s] %v", res.Step.ID, res.Err)
		return
	}
	fmt.Fprintf(a.out, "[%s] %s\n", res.Step.ID, ui.ResultSummary(res.Result))
	for _, o := range res.Result.Failed() {
		fmt.Fprintf(a.out, "  %s: %s %s\n", o.Name, o.Status, o.Message)
	}
}

func (a *app) recordStep(res batch.StepResult) {
	step := res.Step
	if !step.Kind().Mutating() {
		return
	}
	names := make([]string, len(step.Specs()))
	for i, s := range step.Specs() {
		names[i] = s.Name()
	}
	entry := history.NewEntry(step.Kind(), res.Backend, names)
	entry.TaskID = step.ID
	entry.Complete(res.Result, res.Err)
	a.record(entry)
}
