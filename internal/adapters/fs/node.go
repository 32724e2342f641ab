package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/steppe/internal/core/ports"
)

const (
	// WalkerNodeID is the graft node ID for the walker.
	WalkerNodeID graft.ID = "adapter.fs.walker"
	// ResolverNodeID is the graft node ID for the concrete resolver.
	ResolverNodeID graft.ID = "adapter.fs.resolver"
	// InputResolverNodeID is the graft node ID for the InputResolver port.
	InputResolverNodeID graft.ID = "adapter.fs.input_resolver"
	// FingerprinterNodeID is the graft node ID for the Fingerprinter port.
	FingerprinterNodeID graft.ID = "adapter.fs.fingerprinter"
)

func init() {
	graft.Register(graft.Node[*Walker]{
		ID:        WalkerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Walker, error) {
			return NewWalker(), nil
		},
	})

	graft.Register(graft.Node[*Resolver]{
		ID:        ResolverNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{WalkerNodeID},
		Run: func(ctx context.Context) (*Resolver, error) {
			walker, err := graft.Dep[*Walker](ctx)
			if err != nil {
				return nil, err
			}
			return NewResolver(walker), nil
		},
	})

	graft.Register(graft.Node[ports.InputResolver]{
		ID:        InputResolverNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{ResolverNodeID},
		Run: func(ctx context.Context) (ports.InputResolver, error) {
			resolver, err := graft.Dep[*Resolver](ctx)
			if err != nil {
				return nil, err
			}
			return resolver, nil
		},
	})

	graft.Register(graft.Node[ports.Fingerprinter]{
		ID:        FingerprinterNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{ResolverNodeID},
		Run: func(ctx context.Context) (ports.Fingerprinter, error) {
			resolver, err := graft.Dep[*Resolver](ctx)
			if err != nil {
				return nil, err
			}
			return NewHasher(resolver), nil
		},
	})
}
