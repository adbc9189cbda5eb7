package main

import (
	"fmt"

	"github.com/mnemo-vc/mnemo/pkg/repo"
	"github.com/spf13/cobra"
)

func newRepackCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "repack",
		Short: "Pack reachable loose objects and remove their loose copies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			summary, err := r.Repack(dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary.Packed == 0 {
				fmt.Fprintln(out, "nothing to pack")
				return nil
			}
			if dryRun {
				fmt.Fprintf(out, "would pack %d loose object(s)\n", summary.Packed)
				return nil
			}
			fmt.Fprintf(
				out,
				"packed %d object(s) (%d as deltas) into %s, removed %d loose cop(ies)\n",
				summary.Packed,
				summary.Deltas,
				summary.PackFile,
				summary.Removed,
			)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report what would be packed without writing")
	return cmd
}
