package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/steppe/internal/adapters/fs"        //nolint:depguard // Wired in engine wiring
	"go.trai.ch/steppe/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/steppe/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/steppe/internal/engine/executor"
)

// NodeID is the unique identifier for the scheduler Graft node.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			executor.PortNodeID,
			fs.FingerprinterNodeID,
			telemetry.TracerNodeID,
			logger.PortNodeID,
		},
		Run: func(ctx context.Context) (*Scheduler, error) {
			exec, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}

			fingerprinter, err := graft.Dep[ports.Fingerprinter](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return NewScheduler(exec, fingerprinter, tracer, log), nil
		},
	})
}
