package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/charlie0129/battcap/pkg/version"
)

// NewVersionCommand .
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", version.Version, version.GitCommit)
		},
	}
}
