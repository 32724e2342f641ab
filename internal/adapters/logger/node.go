package logger

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/steppe/internal/core/ports"
)

const (
	// NodeID is the unique identifier for the concrete logger Graft node.
	NodeID graft.ID = "adapter.logger"
	// PortNodeID is the unique identifier for the ports.Logger Graft node.
	PortNodeID graft.ID = "adapter.logger.port"
)

func init() {
	graft.Register(graft.Node[*Logger]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Logger, error) {
			return New(), nil
		},
	})

	graft.Register(graft.Node[ports.Logger]{
		ID:        PortNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{NodeID},
		Run: func(ctx context.Context) (ports.Logger, error) {
			l, err := graft.Dep[*Logger](ctx)
			if err != nil {
				return nil, err
			}
			return l, nil
		},
	})
}
