package main

import (
	"fmt"

	"github.com/mnemo-vc/mnemo/pkg/repo"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an empty mnemo repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Init(".")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty mnemo repository in %s\n", r.MnemoDir)
			return nil
		},
	}
}
