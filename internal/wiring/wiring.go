// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/steppe/internal/adapters/cas"
	_ "go.trai.ch/steppe/internal/adapters/config"
	_ "go.trai.ch/steppe/internal/adapters/fs"
	_ "go.trai.ch/steppe/internal/adapters/logger"
	_ "go.trai.ch/steppe/internal/adapters/script"
	_ "go.trai.ch/steppe/internal/adapters/shell"
	_ "go.trai.ch/steppe/internal/adapters/telemetry"
	_ "go.trai.ch/steppe/internal/adapters/watcher"
	// Register app and engine nodes.
	_ "go.trai.ch/steppe/internal/app"
	_ "go.trai.ch/steppe/internal/engine/executor"
	_ "go.trai.ch/steppe/internal/engine/scheduler"
)
