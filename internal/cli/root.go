// Package cli implements the admingate command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "admingate",
	Short: "Privileged-operation gateway for admin APIs",
	Long:  "Fronts privileged admin operations with token verification, per-client rate limiting, schema validation, injection detection, and a hash-chained audit trail.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
