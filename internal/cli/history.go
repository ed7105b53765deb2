package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"unipkg/internal/ui"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit    int
		clearAll bool
		prune    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show operation history",
		Long: `Display the install, remove and update operations run by unipkg.

Examples:
  unipkg history              # Show recent history
  unipkg history -l 20        # Show last 20 operations
  unipkg history show 3f2a9c1e
  unipkg history --prune 720h # Drop entries older than 30 days`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			switch {
			case clearAll:
				if err := store.Clear(); err != nil {
					return fmt.Errorf("failed to clear history: %w", err)
				}
				ui.SuccessMsg("History cleared")
				return nil
			case prune > 0:
				n, err := store.Prune(prune)
				if err != nil {
					return fmt.Errorf("failed to prune history: %w", err)
				}
				ui.SuccessMsg("Removed %d entries older than %s", n, prune)
				return nil
			}

			entries, err := store.List(limit)
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}
			ui.PrintHistory(a.out, entries)

			if total, err := store.Count(); err == nil && total > len(entries) {
				ui.MutedMsg("Showing %d of %d total entries", len(entries), total)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "number of entries to show (0 for all)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete all history")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete entries older than this age")
	cmd.MarkFlagsMutuallyExclusive("clear", "prune")

	cmd.AddCommand(newHistoryShowCmd(a))
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the package outcomes of one history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			entry, err := store.Find(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, entry.Summary())
			if entry.TaskID != "" {
				fmt.Fprintf(a.out, "Task: %s\n", entry.TaskID)
			}
			if entry.Error != "" {
				fmt.Fprintf(a.out, "Error: %s\n", entry.Error)
				return nil
			}
			ui.PrintResult(a.out, entry.Result())
			return nil
		},
	}
}
