// Package app implements the application layer for steppe.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/steppe/internal/adapters/cas"
	"go.trai.ch/steppe/internal/adapters/linear"
	"go.trai.ch/steppe/internal/adapters/telemetry"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/steppe/internal/engine/executor"
	"go.trai.ch/steppe/internal/engine/scheduler"
	"go.trai.ch/steppe/internal/engine/watch"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	scheduler    *scheduler.Scheduler
	executor     *executor.Executor
	tracer       *telemetry.OTelTracer
	cacheOpener  ports.CacheOpener
	resolver     ports.InputResolver
	watcher      ports.Watcher
	logger       ports.Logger

	stdout      io.Writer
	stderr      io.Writer
	jsonLogs    bool
	newRenderer func(stdout, stderr io.Writer) ports.Renderer
	getwd       func() (string, error)
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	sched *scheduler.Scheduler,
	exec *executor.Executor,
	tracer *telemetry.OTelTracer,
	opener ports.CacheOpener,
	resolver ports.InputResolver,
	w ports.Watcher,
	log ports.Logger,
) *App {
	return &App{
		configLoader: loader,
		scheduler:    sched,
		executor:     exec,
		tracer:       tracer,
		cacheOpener:  opener,
		resolver:     resolver,
		watcher:      w,
		logger:       log,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		newRenderer: func(stdout, stderr io.Writer) ports.Renderer {
			return linear.NewRenderer(stdout, stderr)
		},
		getwd: os.Getwd,
	}
}

// WithOutput redirects command output and the renderer.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// WithJSONLogs replaces the renderer with line-by-line forwarding of task
// output to the logger.
func (a *App) WithJSONLogs(enabled bool) *App {
	a.jsonLogs = enabled
	a.executor.ForwardOutput(enabled)
	return a
}

// WithRenderer overrides how the per-run renderer is created.
func (a *App) WithRenderer(newRenderer func(stdout, stderr io.Writer) ports.Renderer) *App {
	a.newRenderer = newRenderer
	return a
}

// WithWorkingDir makes discovery start at dir instead of the process working directory.
func (a *App) WithWorkingDir(dir string) *App {
	a.getwd = func() (string, error) { return dir, nil }
	return a
}

// LoadOptions selects the configuration file.
type LoadOptions struct {
	// ConfigPath skips discovery when set.
	ConfigPath string
}

// RunOptions configures the Run method.
type RunOptions struct {
	LoadOptions
	NoCache bool
	Jobs    int
	FailAll bool
}

func (o RunOptions) scheduler() scheduler.Options {
	opts := scheduler.Options{Parallelism: o.Jobs, NoCache: o.NoCache}
	if o.FailAll {
		opts.Policy = scheduler.FailAll
	}
	return opts
}

// WatchOptions configures the Watch method.
type WatchOptions struct {
	RunOptions
	Debounce time.Duration
}

// Run executes the closure of targets once.
// A run with failed tasks returns domain.ErrRunFailed after the failure was logged.
func (a *App) Run(ctx context.Context, targets []string, opts RunOptions) error {
	if len(targets) == 0 {
		return domain.ErrNoTargetsSpecified
	}

	graph, err := a.load(opts.LoadOptions)
	if err != nil {
		return err
	}

	if _, err := a.scheduler.Plan(graph, targets); err != nil {
		return err
	}

	return a.runOnce(ctx, graph, targets, opts)
}

// Watch runs targets, then re-runs the tasks affected by each change until
// ctx is cancelled or the file watcher fails.
func (a *App) Watch(ctx context.Context, targets []string, opts WatchOptions) error {
	if len(targets) == 0 {
		return domain.ErrNoTargetsSpecified
	}

	graph, err := a.load(opts.LoadOptions)
	if err != nil {
		return err
	}

	run := func(ctx context.Context, targets []string) error {
		err := a.runOnce(ctx, graph, targets, opts.RunOptions)
		if err != nil && !errors.Is(err, domain.ErrRunFailed) {
			a.logger.Error(err)
		}
		return err
	}

	session, err := watch.NewSession(graph, targets, run, a.watcher, a.logger, watch.Options{Debounce: opts.Debounce})
	if err != nil {
		return err
	}
	return session.Run(ctx)
}

func (a *App) load(opts LoadOptions) (*domain.Graph, error) {
	if opts.ConfigPath != "" {
		path, err := filepath.Abs(opts.ConfigPath)
		if err != nil {
			return nil, domain.NewIOError("resolve config path", opts.ConfigPath, err)
		}
		return a.configLoader.LoadFile(path)
	}

	cwd, err := a.getwd()
	if err != nil {
		return nil, domain.NewIOError("get working directory", "", err)
	}
	return a.configLoader.Load(cwd)
}

// runOnce opens the cache, runs the scheduler next to the renderer and reports the outcome.
func (a *App) runOnce(ctx context.Context, graph *domain.Graph, targets []string, opts RunOptions) error {
	var renderer ports.Renderer
	if !a.jsonLogs {
		renderer = a.newRenderer(a.stdout, a.stderr)
	}

	provider := setupOTel(renderer)
	a.tracer.SetRenderer(renderer)
	defer func() {
		_ = provider.Shutdown(context.WithoutCancel(ctx))
		a.tracer.SetRenderer(nil)
	}()

	store := a.openCache(graph.Root())
	defer func() {
		if err := store.Close(); err != nil {
			a.logger.Warn(err.Error())
		}
	}()

	schedOpts := opts.scheduler()
	schedOpts.Cache = store

	var (
		report *scheduler.Report
		runErr error
	)

	g, gctx := errgroup.WithContext(ctx)

	if renderer != nil {
		g.Go(func() error {
			if err := renderer.Start(gctx); err != nil {
				return err
			}
			return renderer.Wait()
		})
	}

	g.Go(func() error {
		defer func() {
			if renderer != nil {
				_ = renderer.Stop()
			}
		}()
		defer zerr.Defer(func(err error) {
			runErr = err
		})

		report, runErr = a.scheduler.Run(ctx, graph, targets, schedOpts)
		return nil
	})

	if err := g.Wait(); err != nil {
		return zerr.Wrap(err, "renderer failed")
	}

	if report == nil {
		return runErr
	}

	a.logger.Info(report.Summary().String())
	if runErr != nil {
		if ctx.Err() != nil {
			a.logger.Warn("run interrupted")
		} else {
			a.logger.Error(runErr)
		}
		return zerr.With(domain.ErrRunFailed, "targets", targets)
	}
	return nil
}

// openCache falls back to a store that always misses when the database cannot be opened.
func (a *App) openCache(root string) ports.CacheStore {
	store, err := a.cacheOpener.Open(root)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("cache disabled: %v", err))
		return cas.Disabled{}
	}
	return store
}
