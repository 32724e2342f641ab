package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/steppe/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [tasks...]",
		Short: "Run tasks and their dependencies",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return nil
			}
			return c.app.Run(cmd.Context(), args, runOptions(cmd))
		},
	}
	addRunFlags(cmd)
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass cache lookups and execute every task")
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("jobs", "j", 0, "Maximum number of tasks running at once (default: number of CPUs)")
	cmd.Flags().Bool("fail-all", false, "Stop the whole run on the first failure")
}

func runOptions(cmd *cobra.Command) app.RunOptions {
	jobs, _ := cmd.Flags().GetInt("jobs")
	failAll, _ := cmd.Flags().GetBool("fail-all")
	opts := app.RunOptions{
		LoadOptions: loadOptions(cmd),
		Jobs:        jobs,
		FailAll:     failAll,
	}
	if f := cmd.Flags().Lookup("no-cache"); f != nil {
		opts.NoCache, _ = cmd.Flags().GetBool("no-cache")
	}
	return opts
}
