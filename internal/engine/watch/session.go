// Package watch re-runs tasks when the files they declare as inputs change.
package watch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.trai.ch/steppe/internal/adapters/watcher" //nolint:depguard // Debouncer is a plain helper
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/core/ports"
)

// RunFunc executes one run of the given targets and reports its own outcome.
// A returned error does not end the session.
type RunFunc func(ctx context.Context, targets []string) error

// Options configures a session.
type Options struct {
	// Debounce is the quiet window that coalesces bursts of changes.
	Debounce time.Duration
}

// Session owns the subscription table and serializes runs.
type Session struct {
	root    string
	targets []string
	table   *subscriptionTable
	run     RunFunc
	watcher ports.Watcher
	logger  ports.Logger
	opts    Options

	mu      sync.Mutex
	pending map[string]bool
	wake    chan struct{}
}

// NewSession plans the closure of targets and builds its subscription table.
func NewSession(
	graph *domain.Graph,
	targets []string,
	run RunFunc,
	w ports.Watcher,
	logger ports.Logger,
	opts Options,
) (*Session, error) {
	if len(targets) == 0 {
		return nil, domain.ErrNoTargetsSpecified
	}
	plan, err := graph.Closure(domain.NewInternedStrings(targets)...)
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = watcher.DefaultDebounceWindow
	}

	return &Session{
		root:    graph.Root(),
		targets: targets,
		table:   newSubscriptionTable(graph.Root(), plan),
		run:     run,
		watcher: w,
		logger:  logger,
		opts:    opts,
		pending: make(map[string]bool),
		wake:    make(chan struct{}, 1),
	}, nil
}

// Affected returns the tasks whose inputs match path, in plan order.
func (s *Session) Affected(path string) []string {
	return s.table.affected(path)
}

// Run performs the initial run, then re-runs affected tasks on change until
// ctx is cancelled or the observer fails.
//
// Cancelling ctx ends the session cleanly. An observer failure is returned as
// a Watch error once the in-flight run has finished.
func (s *Session) Run(ctx context.Context) error {
	watchCtx, stop := context.WithCancel(ctx)
	defer stop()

	if err := s.watcher.Start(watchCtx, s.root); err != nil {
		return asWatchError(err)
	}

	debouncer := watcher.NewDebouncer(s.opts.Debounce, s.enqueue)
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		for event := range s.watcher.Events() {
			if len(s.table.affected(event.Path)) > 0 {
				debouncer.Add(event.Path)
			}
		}
	}()
	defer func() {
		debouncer.Stop()
		_ = s.watcher.Stop()
		stop()
		<-eventsDone
	}()

	s.logger.Info(fmt.Sprintf("watching %d input(s) of %s", s.table.len(), strings.Join(s.targets, ", ")))
	_ = s.run(ctx, s.targets)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-eventsDone:
			if ctx.Err() != nil {
				return nil
			}
			if err := s.watcher.Err(); err != nil {
				return asWatchError(err)
			}
			return nil
		case <-s.wake:
			targets := s.drain()
			if len(targets) == 0 {
				continue
			}
			s.logger.Info("change detected, re-running " + strings.Join(targets, ", "))
			_ = s.run(ctx, targets)
		}
	}
}

// enqueue records the tasks affected by a debounced batch of paths.
func (s *Session) enqueue(paths []string) {
	affected := s.table.affected(paths...)
	if len(affected) == 0 {
		return
	}

	s.mu.Lock()
	for _, name := range affected {
		s.pending[name] = true
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// drain returns the pending tasks in plan order and clears the set.
func (s *Session) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets := make([]string, 0, len(s.pending))
	for name := range s.pending {
		targets = append(targets, name)
	}
	clear(s.pending)

	sortByPlan(targets, s.table.planOrder)
	return targets
}

func asWatchError(err error) error {
	if domain.KindOf(err) == domain.KindWatch {
		return err
	}
	return domain.NewWatchError(err)
}
