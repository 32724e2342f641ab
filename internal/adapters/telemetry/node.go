package telemetry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/steppe/internal/core/ports"
)

const (
	// NodeID is the unique identifier for the concrete tracer Graft node.
	NodeID graft.ID = "adapter.telemetry"
	// TracerNodeID is the unique identifier for the ports.Tracer Graft node.
	TracerNodeID graft.ID = "adapter.telemetry.port"
)

// InstrumentationName names the tracer steppe reports spans under.
const InstrumentationName = "steppe"

func init() {
	graft.Register(graft.Node[*OTelTracer]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*OTelTracer, error) {
			return NewOTelTracer(InstrumentationName), nil
		},
	})

	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{NodeID},
		Run: func(ctx context.Context) (ports.Tracer, error) {
			t, err := graft.Dep[*OTelTracer](ctx)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	})
}
