package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return optional(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display LeapETL version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "LeapETL v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Run-month extraction built with Go %s and DuckDB\n", runtime.Version())
		},
	})
}
