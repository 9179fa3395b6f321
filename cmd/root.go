package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stemset/server"
)

var rootCmd = &cobra.Command{
	Use:   "stemset",
	Short: "stemset splits songs into stems and mixes them back live.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
