package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/steppe/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/steppe/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/steppe/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/steppe/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/steppe/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/steppe/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/steppe/internal/engine/executor"
	"go.trai.ch/steppe/internal/engine/scheduler"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components holds what the command line needs from the graph.
type Components struct {
	App    *App
	Logger *logger.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			scheduler.NodeID,
			executor.NodeID,
			telemetry.NodeID,
			cas.NodeID,
			fs.InputResolverNodeID,
			watcher.NodeID,
			logger.PortNodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			a, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[*logger.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return &Components{App: a, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	sched, err := graft.Dep[*scheduler.Scheduler](ctx)
	if err != nil {
		return nil, err
	}

	exec, err := graft.Dep[*executor.Executor](ctx)
	if err != nil {
		return nil, err
	}

	tracer, err := graft.Dep[*telemetry.OTelTracer](ctx)
	if err != nil {
		return nil, err
	}

	opener, err := graft.Dep[ports.CacheOpener](ctx)
	if err != nil {
		return nil, err
	}

	resolver, err := graft.Dep[ports.InputResolver](ctx)
	if err != nil {
		return nil, err
	}

	w, err := graft.Dep[ports.Watcher](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, sched, exec, tracer, opener, resolver, w, log), nil
}
