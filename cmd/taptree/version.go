package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bgricker/taptree/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the taptree version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "taptree %s\n", version.Build)
			return err
		},
	}
}
