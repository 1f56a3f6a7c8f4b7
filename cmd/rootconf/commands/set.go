package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/rootconf/internal/app"
	"go.trai.ch/rootconf/internal/core/domain"
)

func (c *CLI) newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a dotted config key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			v, err := c.app.Get(cmd.Context(), path, args[0])
			if err != nil {
				return err
			}
			if str, ok := v.(string); ok {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), str)
				return err
			}
			data, err := json.Marshal(v)
			if err != nil {
				return domain.Wrap(err, domain.ErrJSONEncodeFailed)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	cmd.Flags().StringP("path", "p", ".", "Path inside the project")
	return cmd
}

func (c *CLI) newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a dotted config key and write the project config",
		Long: "Set a dotted config key and write the project config.\n" +
			"The value is parsed as JSON when possible and stored as a string otherwise.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			target, _ := cmd.Flags().GetString("target")
			written, err := c.app.Set(cmd.Context(), path, args[0], args[1], app.SetOptions{Target: target})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), written)
			return err
		},
	}
	cmd.Flags().StringP("path", "p", ".", "Path inside the project")
	cmd.Flags().String("target", "", "Config file to write instead of the project default")
	return cmd
}
