package main

import (
	"fmt"

	"github.com/mnemo-vc/mnemo/pkg/repo"
	"github.com/spf13/cobra"
)

func newGcCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete loose objects unreachable from branches, tags, and the recent reflog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			summary, err := r.GC(dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary.Removed == 0 {
				fmt.Fprintln(out, "nothing to collect")
				return nil
			}
			verb := "removed"
			if dryRun {
				verb = "would remove"
			}
			fmt.Fprintf(out, "%s %d unreachable object(s), %d byte(s)\n", verb, summary.Removed, summary.BytesFreed)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report what would be deleted without deleting")
	return cmd
}
