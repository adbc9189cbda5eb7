package main

import (
	"fmt"

	"github.com/mnemo-vc/mnemo/pkg/repo"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check integrity of loose objects and pack files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			summary, err := r.Store.Verify()
			if err != nil {
				return err
			}

			fmt.Fprintf(
				cmd.OutOrStdout(),
				"ok: %d loose object(s), %d pack file(s), %d packed object(s)\n",
				summary.LooseObjects,
				summary.PackFiles,
				summary.PackObjects,
			)
			return nil
		},
	}
}
