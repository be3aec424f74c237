package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HerbHall/rackledger/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show RackLedger version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
