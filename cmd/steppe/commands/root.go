// Package commands implements the CLI commands for the steppe task runner.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/steppe/internal/app"
	"go.trai.ch/steppe/internal/build"
)

// LogFormatter switches the logger between the terminal and JSON formats.
type LogFormatter interface {
	SetJSON(enable bool)
}

// CLI represents the command line interface for steppe.
type CLI struct {
	app     *app.App
	logs    LogFormatter
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
// logs may be nil, in which case --json-logs only changes how task output is reported.
func New(a *app.App, logs LogFormatter) *CLI {
	rootCmd := &cobra.Command{
		Use:           "steppe",
		Short:         "A task runner with content-addressed caching",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON and forward task output through the logger")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to steppe.yaml, skipping discovery")

	c := &CLI{
		app:     a,
		logs:    logs,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if c.logs != nil {
			c.logs.SetJSON(jsonLogs)
		}
		c.app.WithJSONLogs(jsonLogs)
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newWatchCmd())
	rootCmd.AddCommand(c.newListCmd())
	rootCmd.AddCommand(c.newPlanCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
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

func loadOptions(cmd *cobra.Command) app.LoadOptions {
	path, _ := cmd.Flags().GetString("config")
	return app.LoadOptions{ConfigPath: path}
}

// SetOutput redirects help and version output. Used for testing.
func (c *CLI) SetOutput(w io.Writer) {
	c.rootCmd.SetOut(w)
	c.rootCmd.SetErr(w)
}
