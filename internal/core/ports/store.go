package ports

import "go.trai.ch/steppe/internal/core/domain"

// CacheStore persists cache entries keyed by fingerprint.
// Implementations are safe for concurrent use.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type CacheStore interface {
	// Get returns the entry for fingerprint.
	// Returns nil, nil if not found.
	Get(fingerprint string) (*domain.CacheEntry, error)

	// Put stores entry under its fingerprint.
	Put(entry domain.CacheEntry) error

	// Close releases the backing store.
	Close() error
}

// CacheOpener opens the cache store of a project.
type CacheOpener interface {
	// Open opens the store under root, creating it when absent.
	Open(root string) (CacheStore, error)
}
