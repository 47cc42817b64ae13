// Package commands implements the maikoctl subcommands, a small cobra CLI
// demonstrating the engine against runnable scenarios from the spec. It is
// explicitly outside the engine's core: a convenience wrapper, not a
// dependency of internal/engine.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// rounds bounds how many ping/pong round-trips the ping-pong demo
	// runs before shutting down.
	rounds int

	// verbose enables debug-level engine logging for a demo run.
	verbose bool
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "maikoctl",
	Short: "maiko engine demonstration CLI",
	Long: `maikoctl runs small, self-contained scenarios against the maiko
topic-routed actor engine: a ping-pong round trip and an overflow-policy
comparison, printing a delivery report at the end of each run.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(
		&verbose, "verbose", false, "enable debug-level engine logging",
	)

	rootCmd.AddCommand(pingPongCmd)
	rootCmd.AddCommand(overflowCmd)
}
