package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/steppe/internal/adapters/watcher"
	"go.trai.ch/steppe/internal/app"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [tasks...]",
		Short: "Run tasks, then re-run them whenever their inputs change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			debounce, _ := cmd.Flags().GetDuration("debounce")
			return c.app.Watch(cmd.Context(), args, app.WatchOptions{
				RunOptions: runOptions(cmd),
				Debounce:   debounce,
			})
		},
	}
	addRunFlags(cmd)
	cmd.Flags().Duration("debounce", watcher.DefaultDebounceWindow, "Quiet period before a burst of changes triggers a run")
	return cmd
}
