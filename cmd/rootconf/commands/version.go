package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/rootconf/internal/build"
)

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		// The version is printed without reading the settings.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			cmdo := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(cmdo, "rootconf version %s (commit: %s, date: %s)\n", build.Version, build.Commit, build.Date)
		},
	}
}
