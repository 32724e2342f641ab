package ports

import "go.trai.ch/steppe/internal/core/domain"

// ConfigLoader defines the interface for loading the project configuration.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load discovers the configuration upward from cwd and returns the task graph.
	// The graph root is set to the project root.
	Load(cwd string) (*domain.Graph, error)

	// LoadFile reads the configuration at path, skipping discovery.
	LoadFile(path string) (*domain.Graph, error)

	// DiscoverRoot returns the directory holding the nearest configuration file.
	DiscoverRoot(cwd string) (string, error)
}
