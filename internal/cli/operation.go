package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"unipkg/internal/history"
	"unipkg/internal/ui"
	"unipkg/pkg/manager"
)

var operationHelp = map[manager.Operation]struct {
	use, short, long string
	aliases          []string
}{
	manager.OpInstall: {
		use:   "install <package>...",
		short: "Install one or more packages",
		long: `Install packages with the selected backend. A version constraint may be
attached to a package (git>=2.40, vim=9.1.0).

Examples:
  unipkg install git vim curl
  unipkg install -b yay spotify
  unipkg install --reinstall git`,
	},
	manager.OpRemove: {
		use:     "remove <package>...",
		short:   "Remove one or more packages",
		aliases: []string{"uninstall"},
		long: `Remove installed packages. Packages that are not installed are reported
as not_found without running the backend.

Examples:
  unipkg remove nano
  unipkg remove -y vim emacs`,
	},
	manager.OpUpdate: {
		use:     "update <package>...",
		short:   "Upgrade installed packages",
		aliases: []string{"upgrade"},
		long: `Upgrade the given installed packages to the newest available version.

Examples:
  unipkg update git
  unipkg update -b dnf kernel`,
	},
	manager.OpQuery: {
		use:   "query [package]...",
		short: "Show whether packages are installed",
		long: `Report installed state and version for the given packages. With no
arguments every installed package is listed.

Examples:
  unipkg query git
  unipkg query 'git>=2.40'
  unipkg query -b pacman`,
	},
}

func newOperationCmd(a *app, op manager.Operation) *cobra.Command {
	help := operationHelp[op]
	var reinstall bool

	cmd := &cobra.Command{
		Use:     help.use,
		Short:   help.short,
		Long:    help.long,
		Aliases: help.aliases,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.options()
			opts.Reinstall = reinstall
			return a.runOperation(cmd, op, args, opts)
		},
	}
	if op.Mutating() {
		cmd.Args = cobra.MinimumNArgs(1)
	}
	if op == manager.OpInstall {
		cmd.Flags().BoolVar(&reinstall, "reinstall", false, "reinstall packages that are already installed")
	}
	return cmd
}

// runOperation resolves the backend, asks for confirmation when needed, runs
// the operation and prints and records its result.
func (a *app) runOperation(cmd *cobra.Command, op manager.Operation, args []string, opts manager.Options) error {
	specs, err := manager.ParsePackageSpecs(a.cfg.ResolveAliases(args))
	if err != nil {
		return err
	}
	req, err := manager.NewRequest(op, specs, opts)
	if err != nil {
		return err
	}

	mgr, err := a.registry.Create(a.backends)
	if err != nil {
		return err
	}

	if op.Mutating() && !a.cfg.General.AssumeYes && a.interactive() {
		ok, err := a.confirm(op, mgr.Name(), specs)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
		// The backend has no stdin; the answer above stands in for its prompt.
		req.Options.AssumeYes, req.Options.NoConfirm = true, true
	}

	entry := history.NewEntry(op, mgr.Name(), req.Names())
	entry.TaskID = opts.TaskID

	var res *manager.OperationResult
	message := fmt.Sprintf("%s via %s", op, mgr.DisplayName())
	err = ui.WithSpinner(message, !a.cfg.Output.Verbose && a.interactive(), func() error {
		var runErr error
		res, runErr = manager.Execute(cmd.Context(), mgr, req)
		return runErr
	})

	if op.Mutating() {
		entry.Complete(res, err)
		a.record(entry)
	}
	if err != nil {
		return err
	}

	ui.PrintResult(a.out, res)
	if !res.Success {
		return ErrUnsuccessful
	}
	return nil
}
