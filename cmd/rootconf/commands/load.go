package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/rootconf/internal/app"
	"go.trai.ch/rootconf/internal/core/domain"
	"go.trai.ch/rootconf/internal/ui/output"
	"go.trai.ch/rootconf/internal/ui/style"
)

func (c *CLI) newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [path]",
		Short: "Load the project config and print the merged result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Load(cmd.Context(), startDir(args))
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			if !asJSON && output.IsTerminal(out) {
				printSummary(out, res)
			}
			data, err := res.JSON()
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}
	cmd.Flags().Bool("json", false, "Print only the merged config as JSON")
	return cmd
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "root [path]",
		Short: "Print the detected project root",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Load(cmd.Context(), startDir(args))
			if err != nil {
				return err
			}
			s := res.Session
			if s.Root() == "" {
				return domain.With(domain.ErrNoProjectRoot, "path", s.StartDir())
			}
			value := s.Root()
			if name, _ := cmd.Flags().GetBool("name"); name {
				value = s.ProjectName()
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
			return err
		},
	}
	cmd.Flags().Bool("name", false, "Print the project name instead of the root")
	return cmd
}

func (c *CLI) newFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files [path]",
		Short: "List the config files applied for the project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Load(cmd.Context(), startDir(args))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, file := range res.Session.LoadedFiles() {
				if _, err := fmt.Fprintln(out, file); err != nil {
					return err
				}
			}
			for _, failure := range res.Failures {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", style.Cross, failure.Path, failure.Err)
			}
			return nil
		},
	}
}

// printSummary writes the detected project and the applied files.
func printSummary(w io.Writer, res *app.Result) {
	s := res.Session
	if s.Root() == "" {
		_, _ = fmt.Fprintln(w, style.Muted.Render("no project root found"))
		return
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", style.Key.Render(s.ProjectName()), style.Muted.Render(s.Root()))
	for _, file := range s.LoadedFiles() {
		_, _ = fmt.Fprintf(w, "  %s %s\n", style.Check, style.Muted.Render(file))
	}
	for _, failure := range res.Failures {
		_, _ = fmt.Fprintf(w, "  %s %s\n", style.Cross, failure.Path)
	}
}
