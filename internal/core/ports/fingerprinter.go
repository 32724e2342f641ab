package ports

import "go.trai.ch/steppe/internal/core/domain"

// Fingerprinter computes cache keys.
//
//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_fingerprinter.go -package=mocks -source=fingerprinter.go
type Fingerprinter interface {
	// Fingerprint digests the task body and the content of its declared inputs.
	Fingerprint(task *domain.Task, root string) (string, error)

	// OutputHash digests the declared outputs. A missing output is an error.
	OutputHash(outputs []string, root string) (string, error)
}
