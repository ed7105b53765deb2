package cli

import (
	"github.com/spf13/cobra"

	"unipkg/internal/ui"
)

func newDetectCmd(a *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Show which package managers are available",
		Long: `Probe the host for every supported backend and show the one that
would be selected when no --backend preference is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.registry.Detect()
			if refresh {
				d = a.registry.Redetect()
			}
			ui.PrintDetection(a.out, d, a.registry.Get)

			if len(a.backends) > 0 {
				mgr, err := a.registry.Create(a.backends)
				if err != nil {
					return err
				}
				ui.InfoMsg("Preference %v selects %s", a.backends, mgr.Name())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "probe again instead of using the cached detection")
	return cmd
}
