package cmd

import (
	"github.com/spf13/cobra"

	"stemset/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the stemset HTTP server",
	Long:  `Start the HTTP server: upload API, separation pipeline, audio proxy and mixer WebSocket.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
