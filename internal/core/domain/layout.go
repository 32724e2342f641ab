package domain

import "path/filepath"

const (
	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "steppe.yaml"

	// StateDirName is the name of the per-project state directory.
	StateDirName = ".steppe"

	// CacheFileName is the name of the cache database inside the state directory.
	CacheFileName = "cache.db"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// StatePath returns the state directory under root.
func StatePath(root string) string {
	return filepath.Join(root, StateDirName)
}

// CachePath returns the cache database path under root.
// It joins .steppe and cache.db.
func CachePath(root string) string {
	return filepath.Join(root, StateDirName, CacheFileName)
}
