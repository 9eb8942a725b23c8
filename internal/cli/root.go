// Package cli defines the cobra command tree for the open house coordinator.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	flagFormat string
	flagDB     string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "oh",
		Short:         "Coordinate open house sessions and visitor follow-up",
		Long:          "Schedule open house sessions, check visitors in by QR code, and drive automated follow-up sequences over email and SMS.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default: ~/.openhouse/openhouse.db)")

	root.AddCommand(
		newSessionCmd(),
		newVisitorCmd(),
		newSequenceCmd(),
		newEnrollmentCmd(),
		newAPIKeyCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	return root
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}
