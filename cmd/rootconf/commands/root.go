// Package commands implements the CLI commands for rootconf.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/rootconf/internal/app"
	"go.trai.ch/rootconf/internal/build"
)

// CLI represents the command line interface for rootconf.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Configure(opts app.ConfigureOptions) error
	ConfigureLogging(jsonLogs, verbose bool)
	Load(ctx context.Context, startDir string) (*app.Result, error)
	Get(ctx context.Context, startDir, key string) (any, error)
	Set(ctx context.Context, startDir, key, raw string, opts app.SetOptions) (string, error)
	Watch(ctx context.Context, startDir string, onReload func(*app.Result)) error
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "rootconf",
		Short:         "Project-scoped configuration discovered from the project root",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	flags := rootCmd.PersistentFlags()
	flags.String("config-dir", "", "Directory holding the per-project config files")
	flags.String("settings", "", "Path of the rootconf.yaml settings file")
	flags.Bool("json-logs", false, "Write logs as JSON")
	flags.Bool("verbose", false, "Enable debug logging")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}
	rootCmd.PersistentPreRunE = c.configure

	rootCmd.AddCommand(c.newLoadCmd())
	rootCmd.AddCommand(c.newRootCmd())
	rootCmd.AddCommand(c.newFilesCmd())
	rootCmd.AddCommand(c.newGetCmd())
	rootCmd.AddCommand(c.newSetCmd())
	rootCmd.AddCommand(c.newWatchCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

func (c *CLI) configure(cmd *cobra.Command, _ []string) error {
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")
	verbose, _ := cmd.Flags().GetBool("verbose")
	c.app.ConfigureLogging(jsonLogs, verbose)

	configDir, _ := cmd.Flags().GetString("config-dir")
	settings, _ := cmd.Flags().GetString("settings")
	return c.app.Configure(app.ConfigureOptions{
		SettingsPath: settings,
		ConfigDir:    configDir,
	})
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// startDir returns the optional path argument, defaulting to the working directory.
func startDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
