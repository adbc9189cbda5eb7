package main

import (
	"fmt"
	"time"

	"github.com/mnemo-vc/mnemo/pkg/repo"
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log [ref]",
		Short: "Show the reflog of a ref (default: current branch)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			ref := ""
			if len(args) == 1 {
				ref = args[0]
			} else {
				ref, err = r.Head()
				if err != nil {
					return err
				}
			}

			entries, err := r.ReadReflog(ref, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s %.8s -> %.8s %s\n",
					time.Unix(e.Timestamp, 0).Format(time.RFC3339), e.OldHash, e.NewHash, e.Reason)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of entries to show")
	return cmd
}
