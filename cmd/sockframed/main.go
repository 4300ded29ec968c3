package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sockframed",
		Short: "Realtime RPC-over-WebSocket server",
		Long: `sockframed serves a realtime, bidirectional RPC protocol over
persistent WebSocket connections.

Clients invoke named API methods over their connection; the server
broadcasts named events to dynamic groups of connections through a
pluggable pub/sub broker (in-memory or NATS).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sockframed %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
