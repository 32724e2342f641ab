package ports

// InputResolver defines the interface for resolving input files.
//
//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_resolver.go -package=mocks -source=resolver.go
type InputResolver interface {
	// ResolveInputs expands files, directories and globs to a sorted, de-duplicated
	// list of absolute file paths.
	ResolveInputs(inputs []string, root string) ([]string, error)
}
