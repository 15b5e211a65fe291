package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/textdedup/pkg/version"
)

// NewVersionCommand builds the `version` subcommand.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "textdedup %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
