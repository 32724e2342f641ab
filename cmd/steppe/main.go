// Package main is the entry point for the steppe task runner.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/steppe/cmd/steppe/commands"
	"go.trai.ch/steppe/internal/app"
	"go.trai.ch/steppe/internal/core/domain"
	_ "go.trai.ch/steppe/internal/wiring"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string, opts ...func(*app.App)) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, _, err := graft.ExecuteFor[*app.Components](ctx)
	if err != nil {
		// The logger is not available yet.
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}

	for _, opt := range opts {
		opt(components.App)
	}

	cli := commands.New(components.App, components.Logger)
	cli.SetArgs(args)

	if err := cli.Execute(ctx); err != nil {
		// Failed runs were reported by the app already.
		if errors.Is(err, domain.ErrRunFailed) {
			return 1
		}
		components.Logger.Error(err)
		return 1
	}
	return 0
}
