package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/rootconf/internal/app"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path]",
		Short: "Reload the project config whenever its files change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return c.app.Watch(cmd.Context(), startDir(args), func(res *app.Result) {
				data, err := res.JSON()
				if err != nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
					return
				}
				_, _ = out.Write(data)
			})
		},
	}
}
