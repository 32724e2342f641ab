package script

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/steppe/internal/adapters/logger"
	"go.trai.ch/steppe/internal/core/ports"
)

// NodeID is the unique identifier for the script evaluator Graft node.
const NodeID graft.ID = "adapter.script_evaluator"

func init() {
	graft.Register(graft.Node[ports.ScriptEvaluator]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.PortNodeID},
		Run: func(ctx context.Context) (ports.ScriptEvaluator, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewEvaluator(log), nil
		},
	})
}
