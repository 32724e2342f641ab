package executor

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/steppe/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/steppe/internal/adapters/script" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/steppe/internal/adapters/shell"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/steppe/internal/core/ports"
)

const (
	// NodeID is the unique identifier for the concrete executor Graft node.
	NodeID graft.ID = "engine.executor"
	// PortNodeID is the unique identifier for the ports.Executor Graft node.
	PortNodeID graft.ID = "engine.executor.port"
)

func init() {
	graft.Register(graft.Node[*Executor]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{shell.NodeID, script.NodeID, logger.PortNodeID},
		Run: func(ctx context.Context) (*Executor, error) {
			spawner, err := graft.Dep[ports.ProcessSpawner](ctx)
			if err != nil {
				return nil, err
			}
			evaluator, err := graft.Dep[ports.ScriptEvaluator](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(spawner, evaluator, log), nil
		},
	})

	graft.Register(graft.Node[ports.Executor]{
		ID:        PortNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{NodeID},
		Run: func(ctx context.Context) (ports.Executor, error) {
			exec, err := graft.Dep[*Executor](ctx)
			if err != nil {
				return nil, err
			}
			return exec, nil
		},
	})
}
